package testutils

import (
	"sync"

	"github.com/DeluxeOwl/dispatch/message"
)

// Recorder is a behavior that appends every accepted payload to Received.
// Capabilities are added with Record and RecordFailing.
type Recorder struct {
	message.Behavior `exhaustruct:"optional"`

	mu       sync.Mutex
	received []any
}

func NewRecorder() *Recorder {
	return new(Recorder)
}

func (r *Recorder) append(payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, payload)
}

func (r *Recorder) Received() []any {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]any, len(r.received))
	copy(out, r.received)
	return out
}

func Record[T any](r *Recorder) {
	message.Handle(r, func(payload T) error {
		r.append(payload)
		return nil
	})
}

// RecordFailing records the payload and then fails with err.
func RecordFailing[T any](r *Recorder, err error) {
	message.Handle(r, func(payload T) error {
		r.append(payload)
		return err
	})
}

// Only handles T by implementing message.Handler[T] itself, without a table.
type Only[T any] struct {
	Accepted []T
}

var _ message.Handler[int] = (*Only[int])(nil)

func (o *Only[T]) Receive(env message.Any) error {
	return env.DispatchTo(o)
}

func (o *Only[T]) Accept(payload T) error {
	o.Accepted = append(o.Accepted, payload)
	return nil
}

// Inbox is an address that keeps whatever it is told.
type Inbox struct {
	mu        sync.Mutex
	envelopes []message.Any
	attempts  int

	// Err, when set, is returned by Tell instead of storing the envelope.
	Err error
	// Refuse limits Err to the first Refuse calls. Zero means every call.
	Refuse int
}

func (i *Inbox) Tell(env message.Any) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.attempts++
	if i.Err != nil && (i.Refuse == 0 || i.attempts <= i.Refuse) {
		return i.Err
	}

	i.envelopes = append(i.envelopes, env)
	return nil
}

// Attempts counts Tell calls, refused ones included.
func (i *Inbox) Attempts() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.attempts
}

func (i *Inbox) Envelopes() []message.Any {
	i.mu.Lock()
	defer i.mu.Unlock()

	out := make([]message.Any, len(i.envelopes))
	copy(out, i.envelopes)
	return out
}
