package message

import (
	"github.com/DeluxeOwl/dispatch/internal/typeutils"
)

// Dispatch is the receiver side of the protocol. It is reached from
// Envelope.DispatchTo once T is known again and never needs to be called by
// the queue owner.
func Dispatch[T any](r Receiver, e *Envelope[T]) error {
	h, ok := HandlerFor[T](r)
	if !ok {
		return newNoCapabilityError(r, typeutils.TypeOf[T]())
	}

	return e.DispatchTypedTo(h)
}

// HandlerFor returns r's capability for T. The capability table of a
// CapabilityHolder wins over a Handler[T] implemented by r itself.
func HandlerFor[T any](r Receiver) (Handler[T], bool) {
	if holder, ok := r.(CapabilityHolder); ok {
		if h, ok := lookup[T](holder.Capabilities()); ok {
			return h, true
		}
	}

	h, ok := r.(Handler[T])
	return h, ok
}
