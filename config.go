package dispatch

import (
	"log/slog"

	"github.com/DeluxeOwl/dispatch/mailbox"
)

type DispatchConfig struct {
	MailboxCapacity int
	Policy          mailbox.Policy
	// SlogHandler is used when set, otherwise slog.Default().
	SlogHandler slog.Handler
}

// Config holds the defaults applied by the package level constructors.
// Options passed explicitly win.
//
//nolint:gochecknoglobals // Package defaults.
var Config = DispatchConfig{
	MailboxCapacity: mailbox.DefaultCapacity,
	Policy:          mailbox.Isolate,
	SlogHandler:     nil,
}

func (c DispatchConfig) options() []mailbox.Option {
	opts := []mailbox.Option{
		mailbox.WithCapacity(c.MailboxCapacity),
		mailbox.WithPolicy(c.Policy),
	}
	if c.SlogHandler != nil {
		opts = append(opts, mailbox.WithSlogHandler(c.SlogHandler))
	}
	return opts
}
