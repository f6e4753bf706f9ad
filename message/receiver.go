package message

// Receiver is the non-generic entry point of a behavior.
type Receiver interface {
	Receive(env Any) error
}

// CapabilityHolder is implemented by receivers that keep their handlers in a
// Capabilities table, usually by embedding Behavior.
type CapabilityHolder interface {
	Capabilities() *Capabilities
}

// Behavior is meant to be embedded. The embedding type registers its handlers
// with Handle in its constructor. Receive dispatches to the value the handlers
// were registered on, so a Handler[T] implemented by the embedding type is
// found the same way as through env.DispatchTo(embedder).
//
//	type Counter struct {
//		message.Behavior
//		n int
//	}
//
//	func NewCounter() *Counter {
//		c := new(Counter)
//		message.Handle(c, c.add)
//		return c
//	}
type Behavior struct {
	caps Capabilities
}

var (
	_ Receiver         = (*Behavior)(nil)
	_ CapabilityHolder = (*Behavior)(nil)
)

func (b *Behavior) Capabilities() *Capabilities {
	return &b.caps
}

func (b *Behavior) Receive(env Any) error {
	if r, ok := b.caps.holder.(Receiver); ok {
		return env.DispatchTo(r)
	}
	return env.DispatchTo(b)
}
