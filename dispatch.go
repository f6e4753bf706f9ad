package dispatch

import (
	"context"

	"github.com/DeluxeOwl/dispatch/mailbox"
	"github.com/DeluxeOwl/dispatch/message"
)

// Envelopes.
func NewEnvelope[T any](payload T) *message.Envelope[T] {
	return message.New(payload)
}

// Queue owners.
func ProcessAll(
	ctx context.Context,
	receiver message.Receiver,
	envelopes []message.Any,
	opts ...mailbox.Option,
) (mailbox.Report, error) {
	return mailbox.ProcessAll(ctx, receiver, envelopes, append(Config.options(), opts...)...)
}

func NewMailbox(receiver message.Receiver, opts ...mailbox.Option) *mailbox.Mailbox {
	return mailbox.New(receiver, append(Config.options(), opts...)...)
}

func NewGroup(mailboxes ...*mailbox.Mailbox) *mailbox.Group {
	return mailbox.NewGroup(mailboxes...)
}
