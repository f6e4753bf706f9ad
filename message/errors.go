package message

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/DeluxeOwl/dispatch/internal/typeutils"
)

var ErrNoCapability = errors.New("no capability")

// NoCapabilityError means a receiver was handed a payload type it was never
// built to handle. It is a wiring mistake, retrying will not help.
type NoCapabilityError struct {
	Type     reflect.Type
	Receiver string
	Known    []reflect.Type
}

func newNoCapabilityError(r Receiver, typ reflect.Type) *NoCapabilityError {
	err := &NoCapabilityError{
		Type:     typ,
		Receiver: typeutils.Name(r),
		Known:    nil,
	}

	if holder, ok := r.(CapabilityHolder); ok {
		caps := holder.Capabilities()
		if caps != nil {
			if caps.Owner() != "" {
				err.Receiver = caps.Owner()
			}
			err.Known = caps.Types()
		}
	}

	return err
}

func (e *NoCapabilityError) Error() string {
	msg := fmt.Sprintf("no capability: receiver %s cannot handle payload of type %s", e.Receiver, e.Type)
	if len(e.Known) == 0 {
		return msg
	}

	known := make([]string, len(e.Known))
	for i, t := range e.Known {
		known[i] = t.String()
	}

	return msg + " (handles " + strings.Join(known, ", ") + ")"
}

func (e *NoCapabilityError) Is(target error) bool {
	return target == ErrNoCapability
}
