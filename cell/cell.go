// Package cell is a small behavior that stores one value.
// Set replaces the value, Get replies with it to the customer's address.
package cell

import (
	"errors"
	"time"

	"github.com/DeluxeOwl/dispatch/mailbox"
	"github.com/DeluxeOwl/dispatch/message"
	"github.com/DeluxeOwl/zerrors"
	"github.com/avast/retry-go/v4"
)

type CellError string

const (
	ErrNoCustomer CellError = "no_customer"
	ErrReply      CellError = "reply"
)

// Address is where replies go. *mailbox.Mailbox is one.
type Address interface {
	Tell(env message.Any) error
}

type Get struct {
	Customer Address
}

type Set[T any] struct {
	Value T
}

type Reply[T any] struct {
	Value T
}

type Cell[T any] struct {
	message.Behavior `exhaustruct:"optional"`

	value     T
	replyOpts []retry.Option
}

// New returns a cell holding initial. By default a reply refused with
// mailbox.ErrFull is retried up to 3 times; opts are applied on top.
func New[T any](initial T, opts ...retry.Option) *Cell[T] {
	c := &Cell[T]{value: initial, replyOpts: opts}

	message.Handle(c, c.get)
	message.Handle(c, c.set)

	return c
}

func (c *Cell[T]) Value() T {
	return c.value
}

func (c *Cell[T]) get(g Get) error {
	return reply(g, c.value, c.replyOpts)
}

func (c *Cell[T]) set(s Set[T]) error {
	c.value = s.Value
	return nil
}

// ReadOnly only answers Get. A Set sent to it fails with
// *message.NoCapabilityError and leaves the value alone.
type ReadOnly[T any] struct {
	message.Behavior `exhaustruct:"optional"`

	value     T
	replyOpts []retry.Option
}

func NewReadOnly[T any](value T, opts ...retry.Option) *ReadOnly[T] {
	r := &ReadOnly[T]{value: value, replyOpts: opts}
	message.Handle(r, r.get)
	return r
}

func (r *ReadOnly[T]) Value() T {
	return r.value
}

func (r *ReadOnly[T]) get(g Get) error {
	return reply(g, r.value, r.replyOpts)
}

func reply[T any](g Get, value T, extra []retry.Option) error {
	if g.Customer == nil {
		return zerrors.New(ErrNoCustomer)
	}

	opts := append([]retry.Option{
		retry.Attempts(3),
		retry.Delay(time.Millisecond),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, mailbox.ErrFull)
		}),
	}, extra...)

	env := message.New(Reply[T]{Value: value})
	err := retry.Do(func() error {
		return g.Customer.Tell(env)
	}, opts...)
	if err != nil {
		return zerrors.New(ErrReply).WithError(err)
	}

	return nil
}
