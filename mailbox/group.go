package mailbox

import (
	"context"
	"errors"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

// Group runs several mailboxes concurrently. Each mailbox still delivers
// serially to its own receiver.
type Group struct {
	mailboxes []*Mailbox
	started   atomic.Bool
	wg        *errgroup.Group `exhaustruct:"optional"`
}

func NewGroup(mailboxes ...*Mailbox) *Group {
	//nolint:exhaustruct // started and wg are set by Run.
	return &Group{
		mailboxes: mailboxes,
	}
}

// Run starts every mailbox. The first mailbox to fail cancels the others.
// A group runs once; later calls return ErrRunning.
func (g *Group) Run(ctx context.Context) error {
	if !g.started.CompareAndSwap(false, true) {
		return ErrRunning
	}

	wg, ctx := errgroup.WithContext(ctx)
	g.wg = wg

	for _, m := range g.mailboxes {
		g.wg.Go(func() error {
			return m.Run(ctx)
		})
	}

	return nil
}

// Close closes all mailboxes; running ones drain and stop.
func (g *Group) Close() {
	for _, m := range g.mailboxes {
		m.Close()
	}
}

// Wait blocks until all mailboxes have stopped and returns the first error.
// Cancellation counts as a clean shutdown.
func (g *Group) Wait() error {
	if g.wg == nil {
		return nil
	}

	err := g.wg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
