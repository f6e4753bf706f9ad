package message

import (
	"fmt"
	"reflect"

	"github.com/DeluxeOwl/dispatch/internal/typeutils"
)

type Envelope[T any] struct {
	payload T
}

// New wraps payload in an envelope. Envelopes are immutable and meant to be
// dispatched once.
func New[T any](payload T) *Envelope[T] {
	return &Envelope[T]{
		payload: payload,
	}
}

func (e *Envelope[T]) Payload() T {
	return e.payload
}

func (e *Envelope[T]) PayloadValue() any {
	return e.payload
}

func (e *Envelope[T]) PayloadType() reflect.Type {
	return typeutils.TypeOf[T]()
}

// DispatchTo is the type-erased entry point. T is still known here, so the
// envelope hands itself to the generic Dispatch.
func (e *Envelope[T]) DispatchTo(r Receiver) error {
	return Dispatch(r, e)
}

// DispatchTypedTo calls h with the bare payload.
func (e *Envelope[T]) DispatchTypedTo(h Handler[T]) error {
	return h.Accept(e.payload)
}

func (e *Envelope[T]) String() string {
	return fmt.Sprintf("envelope[%s]", e.PayloadType())
}
