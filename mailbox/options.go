package mailbox

import (
	"context"
	"log/slog"
)

// Policy decides what happens to the rest of the queue after a failed dispatch.
type Policy int

const (
	// Isolate reports the failure and keeps delivering.
	Isolate Policy = iota
	// Halt stops at the first failure.
	Halt
)

func (p Policy) String() string {
	switch p {
	case Isolate:
		return "isolate"
	case Halt:
		return "halt"
	default:
		return "unknown"
	}
}

// OnFailureFunc is the escalation hook. Returning an error stops delivery
// whatever the policy.
type OnFailureFunc = func(ctx context.Context, failure Failure) error

const DefaultCapacity = 128

type config struct {
	log       *slog.Logger
	policy    Policy
	onFailure OnFailureFunc
	capacity  int
}

type Option func(*config)

func WithSlogHandler(handler slog.Handler) Option {
	return func(c *config) {
		if handler == nil {
			c.log = slog.New(slog.DiscardHandler)
			return
		}
		c.log = slog.New(handler)
	}
}

func WithPolicy(policy Policy) Option {
	return func(c *config) {
		c.policy = policy
	}
}

func WithOnFailure(fn OnFailureFunc) Option {
	return func(c *config) {
		c.onFailure = fn
	}
}

// WithCapacity sets the mailbox buffer size. It has no effect on ProcessAll.
func WithCapacity(capacity int) Option {
	return func(c *config) {
		if capacity <= 0 {
			return
		}
		c.capacity = capacity
	}
}

func newConfig(opts []Option) config {
	c := config{
		log:       slog.Default(),
		policy:    Isolate,
		onFailure: nil,
		capacity:  DefaultCapacity,
	}

	for _, o := range opts {
		o(&c)
	}

	return c
}
