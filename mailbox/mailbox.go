package mailbox

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/DeluxeOwl/dispatch/message"
	"github.com/google/uuid"
	"go.uber.org/atomic"
)

var (
	ErrClosed  = errors.New("mailbox closed")
	ErrFull    = errors.New("mailbox full")
	ErrRunning = errors.New("mailbox already running")
)

// Mailbox owns a FIFO queue of envelopes for one receiver and delivers them
// from a single goroutine, so the receiver never sees two envelopes at once.
type Mailbox struct {
	id  uuid.UUID
	cfg config
	p   processor

	queue chan message.Any
	// done is closed by Close to release blocked senders. queue itself is
	// closed only after every sender registered in senders has left.
	done    chan struct{}
	senders sync.WaitGroup
	// mu orders the closed check and senders.Add against Close. It is never
	// held while waiting for room in queue.
	mu sync.RWMutex

	closed  atomic.Bool
	running atomic.Bool

	enqueued  atomic.Uint64
	dequeued  atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64
}

// Stats is a point-in-time view of a mailbox's counters.
type Stats struct {
	Enqueued  uint64
	Delivered uint64
	Failed    uint64
	Pending   int
}

var _ interface {
	Tell(env message.Any) error
} = (*Mailbox)(nil)

func New(receiver message.Receiver, opts ...Option) *Mailbox {
	cfg := newConfig(opts)

	//nolint:exhaustruct // Counters start at zero.
	return &Mailbox{
		id:    uuid.New(),
		cfg:   cfg,
		p:     processor{config: cfg, receiver: receiver},
		queue: make(chan message.Any, cfg.capacity),
		done:  make(chan struct{}),
	}
}

func (m *Mailbox) ID() uuid.UUID {
	return m.id
}

// Send enqueues env, waiting for room until ctx is done or the mailbox is
// closed.
func (m *Mailbox) Send(ctx context.Context, env message.Any) error {
	if isNil(env) {
		return ErrNilEnvelope
	}

	m.mu.RLock()
	if m.closed.Load() {
		m.mu.RUnlock()
		return ErrClosed
	}
	m.senders.Add(1)
	m.mu.RUnlock()
	defer m.senders.Done()

	select {
	case <-ctx.Done():
		return fmt.Errorf("mailbox send: %w", ctx.Err())
	case <-m.done:
		return ErrClosed
	case m.queue <- env:
		m.enqueued.Inc()
		return nil
	}
}

// Tell enqueues env without waiting. It fails with ErrFull when the buffer
// has no room.
func (m *Mailbox) Tell(env message.Any) error {
	if isNil(env) {
		return ErrNilEnvelope
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return ErrClosed
	}

	select {
	case m.queue <- env:
		m.enqueued.Inc()
		return nil
	default:
		return ErrFull
	}
}

// Close stops accepting envelopes and releases blocked senders with
// ErrClosed. Run keeps going until the queue is drained.
func (m *Mailbox) Close() {
	m.mu.Lock()
	if m.closed.Load() {
		m.mu.Unlock()
		return
	}
	m.closed.Store(true)
	close(m.done)
	m.mu.Unlock()

	m.senders.Wait()
	close(m.queue)
}

// Run delivers envelopes until the mailbox is closed and drained, ctx is
// done, or a failure halts delivery. Only one Run may be active at a time.
func (m *Mailbox) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer m.running.Store(false)

	log := m.cfg.log.With("mailbox", m.id.String())
	log.DebugContext(ctx, "Mailbox running.")

	for {
		select {
		case <-ctx.Done():
			log.DebugContext(ctx, "Mailbox context done.", "pending", len(m.queue))
			return ctx.Err()
		case env, ok := <-m.queue:
			if !ok {
				log.DebugContext(ctx, "Mailbox closed and drained.")
				return nil
			}

			seq := m.dequeued.Inc()
			failure, halt := m.p.deliver(ctx, seq, env)
			if failure != nil {
				m.failed.Inc()
			} else {
				m.delivered.Inc()
			}

			if halt != nil {
				return fmt.Errorf("mailbox %s: %w", m.id, halt)
			}
		}
	}
}

func (m *Mailbox) Stats() Stats {
	return Stats{
		Enqueued:  m.enqueued.Load(),
		Delivered: m.delivered.Load(),
		Failed:    m.failed.Load(),
		Pending:   len(m.queue),
	}
}
