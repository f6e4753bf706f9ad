// Package message implements typed dispatch of heterogeneous messages held in a
// single queue.
//
// A producer wraps a payload with New. The resulting *Envelope[T] is stored as the
// non-generic Any, so a mailbox can keep envelopes of any payload type in one
// slice or channel. Delivery recovers T without a type switch:
//
//  1. the queue owner calls env.DispatchTo(receiver) knowing only Any;
//  2. the envelope, which still knows T, calls Dispatch[T](receiver, env);
//  3. Dispatch looks up the receiver's Handler[T] and calls env.DispatchTypedTo(h);
//  4. the envelope unwraps the payload and calls h.Accept(payload).
//
// A receiver that has no Handler[T] fails with *NoCapabilityError.
package message

import "reflect"

// Any is the type-erased view of an *Envelope[T].
type Any interface {
	DispatchTo(r Receiver) error
	PayloadType() reflect.Type
	// PayloadValue returns the payload boxed as any, for diagnostics.
	PayloadValue() any
}

var _ Any = (*Envelope[struct{}])(nil)
