package message

import (
	"reflect"
	"slices"
	"strings"

	"github.com/DeluxeOwl/dispatch/internal/assert"
	"github.com/DeluxeOwl/dispatch/internal/typeutils"
	"go.uber.org/atomic"
	"golang.org/x/exp/maps"
)

// Capabilities maps a payload type to the handler for it.
//
// The zero value is ready to use. Handlers are registered while the owner is being
// constructed; the table is sealed by the first lookup and never changes after that.
// Registration is not safe for concurrent use.
type Capabilities struct {
	handlers map[reflect.Type]any
	owner    string
	// holder is the value handlers were registered on, usually the type
	// embedding Behavior.
	holder CapabilityHolder
	sealed atomic.Bool
}

// Handle registers fn as owner's capability for payloads of type T.
// It panics if T is already handled or the table is sealed.
func Handle[T any](owner CapabilityHolder, fn func(T) error) {
	assert.That(fn != nil, "message: nil handler func for %s", typeutils.TypeOf[T]())
	Register[T](owner, HandlerFunc[T](fn))
}

// Register is like Handle for an existing Handler.
func Register[T any](owner CapabilityHolder, h Handler[T]) {
	assert.That(owner != nil, "message: nil capability owner")
	assert.That(h != nil, "message: nil handler for %s", typeutils.TypeOf[T]())

	caps := owner.Capabilities()
	typ := typeutils.TypeOf[T]()

	assert.That(!caps.sealed.Load(),
		"message: cannot add capability %s to %s: capabilities are fixed once dispatch started",
		typ, typeutils.Name(owner))

	if caps.handlers == nil {
		caps.handlers = make(map[reflect.Type]any)
	}

	_, exists := caps.handlers[typ]
	assert.That(!exists, "message: duplicate capability %s on %s", typ, typeutils.Name(owner))

	assert.That(caps.holder == nil || caps.holder == owner,
		"message: capability %s registered on %s, table belongs to %s",
		typ, typeutils.Name(owner), caps.owner)

	caps.handlers[typ] = h
	caps.owner = typeutils.Name(owner)
	caps.holder = owner
}

func lookup[T any](caps *Capabilities) (Handler[T], bool) {
	if caps == nil {
		return nil, false
	}
	caps.sealed.Store(true)

	stored, ok := caps.handlers[typeutils.TypeOf[T]()]
	if !ok {
		return nil, false
	}

	h, ok := stored.(Handler[T])
	assert.That(ok, "message: capability for %s stored as %T", typeutils.TypeOf[T](), stored)

	return h, true
}

// Handles reports whether a handler is registered for typ.
func (c *Capabilities) Handles(typ reflect.Type) bool {
	_, ok := c.handlers[typ]
	return ok
}

// Types returns the handled payload types, sorted by name.
func (c *Capabilities) Types() []reflect.Type {
	types := maps.Keys(c.handlers)
	slices.SortFunc(types, func(a, b reflect.Type) int {
		return strings.Compare(a.String(), b.String())
	})
	return types
}

func (c *Capabilities) Len() int {
	return len(c.handlers)
}

// Owner is the type name of the receiver the handlers were registered on.
func (c *Capabilities) Owner() string {
	return c.owner
}

// Sealed reports whether a dispatch already looked into the table.
func (c *Capabilities) Sealed() bool {
	return c.sealed.Load()
}
