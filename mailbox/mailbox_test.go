package mailbox_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/DeluxeOwl/dispatch/cell"
	"github.com/DeluxeOwl/dispatch/internal/testutils"
	"github.com/DeluxeOwl/dispatch/mailbox"
	"github.com/DeluxeOwl/dispatch/message"
	"github.com/stretchr/testify/require"
)

func quiet() mailbox.Option {
	return mailbox.WithSlogHandler(nil)
}

func intRecorder() *testutils.Recorder {
	rec := testutils.NewRecorder()
	testutils.Record[int](rec)
	return rec
}

func TestProcessAllIsolatesFailures(t *testing.T) {
	rec := intRecorder()
	queue := []message.Any{
		message.New(1),
		message.New("not handled"),
		message.New(2),
	}

	report, err := mailbox.ProcessAll(t.Context(), rec, queue, quiet())
	require.NoError(t, err)

	require.Equal(t, []any{1, 2}, rec.Received())
	require.Equal(t, 2, report.Delivered)
	require.Equal(t, 0, report.Remaining)
	require.Len(t, report.Failures, 1)
	require.Equal(t, uint64(2), report.Failures[0].Seq)
	require.ErrorIs(t, report.Failures[0], message.ErrNoCapability)
	require.ErrorIs(t, report.Err(), message.ErrNoCapability)
}

func TestProcessAllHalts(t *testing.T) {
	rec := intRecorder()
	queue := []message.Any{
		message.New(1),
		message.New("not handled"),
		message.New(2),
	}

	report, err := mailbox.ProcessAll(t.Context(), rec, queue, quiet(), mailbox.WithPolicy(mailbox.Halt))
	require.ErrorIs(t, err, message.ErrNoCapability)

	var failure mailbox.Failure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, uint64(2), failure.Seq)

	var noCap *message.NoCapabilityError
	require.ErrorAs(t, err, &noCap)
	require.Equal(t, "string", noCap.Type.String())

	require.Equal(t, []any{1}, rec.Received())
	require.Equal(t, 1, report.Delivered)
	require.Equal(t, 1, report.Remaining)
}

func TestProcessAllEscalation(t *testing.T) {
	queue := []message.Any{
		message.New("a"),
		message.New(1),
		message.New("b"),
		message.New(2),
	}

	t.Run("hook sees every failure", func(t *testing.T) {
		rec := intRecorder()
		var escalated []uint64

		report, err := mailbox.ProcessAll(t.Context(), rec, queue, quiet(),
			mailbox.WithOnFailure(func(_ context.Context, f mailbox.Failure) error {
				escalated = append(escalated, f.Seq)
				return nil
			}))
		require.NoError(t, err)
		require.Equal(t, []uint64{1, 3}, escalated)
		require.Equal(t, 2, report.Delivered)
		require.Equal(t, []any{1, 2}, rec.Received())
	})

	t.Run("hook error stops delivery", func(t *testing.T) {
		rec := intRecorder()
		supervisor := errors.New("supervisor gave up")

		report, err := mailbox.ProcessAll(t.Context(), rec, queue, quiet(),
			mailbox.WithOnFailure(func(context.Context, mailbox.Failure) error {
				return supervisor
			}))
		require.ErrorIs(t, err, supervisor)
		require.ErrorIs(t, err, message.ErrNoCapability)
		require.Empty(t, rec.Received())
		require.Equal(t, 3, report.Remaining)
	})
}

func TestProcessAllCanceled(t *testing.T) {
	rec := intRecorder()
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	report, err := mailbox.ProcessAll(ctx, rec, []message.Any{message.New(1), message.New(2)}, quiet())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 2, report.Remaining)
	require.Empty(t, rec.Received())
}

func TestProcessAllNilEnvelopes(t *testing.T) {
	rec := intRecorder()
	var typedNil *message.Envelope[int]

	report, err := mailbox.ProcessAll(t.Context(), rec, []message.Any{nil, typedNil, message.New(3)}, quiet())
	require.NoError(t, err)
	require.Len(t, report.Failures, 2)
	require.ErrorIs(t, report.Failures[0], mailbox.ErrNilEnvelope)
	require.ErrorIs(t, report.Failures[1], mailbox.ErrNilEnvelope)
	require.Equal(t, []any{3}, rec.Received())
}

func TestProcessAllLogs(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})

	_, err := mailbox.ProcessAll(t.Context(), intRecorder(),
		[]message.Any{message.New(42), message.New("x")},
		mailbox.WithSlogHandler(handler))
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, "Dispatching envelope.")
	require.Contains(t, out, "type=int")
	require.Contains(t, out, "Envelope dispatch failed.")
	require.Contains(t, out, "type=string")
}

func TestProcessAllDebugLogsLiveCustomers(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})

	customer := testutils.NewRecorder()
	testutils.Record[cell.Reply[int]](customer)
	customerBox := mailbox.New(customer, quiet(), mailbox.WithCapacity(1000))

	var queue []message.Any
	for i := range 100 {
		queue = append(queue,
			message.New(cell.Set[int]{Value: i}),
			message.New(cell.Get{Customer: customerBox}),
		)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 300 {
			_ = customerBox.Tell(message.New(cell.Reply[int]{Value: -1}))
		}
	}()

	report, err := mailbox.ProcessAll(t.Context(), cell.New(0), queue, mailbox.WithSlogHandler(handler))
	wg.Wait()
	require.NoError(t, err)
	require.Empty(t, report.Failures)

	out := buf.String()
	require.Contains(t, out, "cell.Get{Customer: *mailbox.Mailbox}")
	require.Contains(t, out, "Value:99")
}

func TestMailboxDeliversInOrder(t *testing.T) {
	rec := intRecorder()
	testutils.Record[string](rec)
	m := mailbox.New(rec, quiet(), mailbox.WithCapacity(4))

	done := make(chan error, 1)
	go func() {
		done <- m.Run(t.Context())
	}()

	var want []any
	for i := range 100 {
		var env message.Any
		if i%3 == 0 {
			env = message.New(fmt.Sprint(i))
			want = append(want, fmt.Sprint(i))
		} else {
			env = message.New(i)
			want = append(want, i)
		}
		require.NoError(t, m.Send(t.Context(), env))
	}
	m.Close()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("mailbox did not drain")
	}

	require.Equal(t, want, rec.Received())
	stats := m.Stats()
	require.Equal(t, uint64(100), stats.Enqueued)
	require.Equal(t, uint64(100), stats.Delivered)
	require.Equal(t, uint64(0), stats.Failed)
	require.Equal(t, 0, stats.Pending)
}

func TestMailboxConcurrentSenders(t *testing.T) {
	rec := intRecorder()
	m := mailbox.New(rec, quiet())

	var wg sync.WaitGroup
	for sender := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 25 {
				if err := m.Send(t.Context(), message.New(sender*100+i)); err != nil {
					t.Error(err)
				}
			}
		}()
	}

	done := make(chan error, 1)
	go func() {
		done <- m.Run(t.Context())
	}()

	wg.Wait()
	m.Close()
	require.NoError(t, <-done)

	// Per sender order survives even though senders interleave.
	last := map[int]int{}
	for _, v := range rec.Received() {
		n := v.(int)
		sender := n / 100
		if prev, ok := last[sender]; ok {
			require.Greater(t, n, prev)
		}
		last[sender] = n
	}
	require.Len(t, rec.Received(), 100)
}

func TestMailboxTellAndClose(t *testing.T) {
	m := mailbox.New(intRecorder(), quiet(), mailbox.WithCapacity(1))

	require.NoError(t, m.Tell(message.New(1)))
	require.ErrorIs(t, m.Tell(message.New(2)), mailbox.ErrFull)
	require.ErrorIs(t, m.Tell(nil), mailbox.ErrNilEnvelope)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, m.Send(ctx, message.New(2)), context.DeadlineExceeded)

	m.Close()
	m.Close()
	require.ErrorIs(t, m.Tell(message.New(3)), mailbox.ErrClosed)
	require.ErrorIs(t, m.Send(t.Context(), message.New(3)), mailbox.ErrClosed)

	// Closed mailboxes still drain what they accepted.
	require.NoError(t, m.Run(t.Context()))
	require.Equal(t, uint64(1), m.Stats().Delivered)
}

func TestMailboxCloseReleasesBlockedSend(t *testing.T) {
	m := mailbox.New(intRecorder(), quiet(), mailbox.WithCapacity(1))
	require.NoError(t, m.Tell(message.New(1)))

	sent := make(chan error, 1)
	go func() {
		sent <- m.Send(context.Background(), message.New(2))
	}()
	// Give the sender time to block on the full queue.
	time.Sleep(20 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		m.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("close waited for a blocked send")
	}

	select {
	case err := <-sent:
		require.ErrorIs(t, err, mailbox.ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("blocked send was not released by close")
	}

	told := make(chan error, 1)
	go func() { told <- m.Tell(message.New(3)) }()
	select {
	case err := <-told:
		require.ErrorIs(t, err, mailbox.ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("tell waited on a closed mailbox")
	}

	require.NoError(t, m.Run(t.Context()))
	require.Equal(t, uint64(1), m.Stats().Delivered)
}

func TestMailboxTellDoesNotWaitForBlockedSend(t *testing.T) {
	m := mailbox.New(intRecorder(), quiet(), mailbox.WithCapacity(1))
	require.NoError(t, m.Tell(message.New(1)))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	go func() { _ = m.Send(ctx, message.New(2)) }()
	time.Sleep(20 * time.Millisecond)

	told := make(chan error, 1)
	go func() { told <- m.Tell(message.New(3)) }()
	select {
	case err := <-told:
		require.ErrorIs(t, err, mailbox.ErrFull)
	case <-time.After(time.Second):
		t.Fatal("tell waited behind a blocked send")
	}
}

func TestMailboxHalt(t *testing.T) {
	rec := intRecorder()
	m := mailbox.New(rec, quiet(), mailbox.WithPolicy(mailbox.Halt))

	require.NoError(t, m.Tell(message.New(1)))
	require.NoError(t, m.Tell(message.New("bad")))
	require.NoError(t, m.Tell(message.New(2)))
	m.Close()

	err := m.Run(t.Context())
	require.ErrorIs(t, err, message.ErrNoCapability)
	require.Contains(t, err.Error(), m.ID().String())

	stats := m.Stats()
	require.Equal(t, uint64(1), stats.Delivered)
	require.Equal(t, uint64(1), stats.Failed)
	require.Equal(t, 1, stats.Pending)
	require.Equal(t, []any{1}, rec.Received())
}

func TestMailboxRunStopsOnContext(t *testing.T) {
	m := mailbox.New(intRecorder(), quiet())
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	require.ErrorIs(t, m.Run(ctx), context.Canceled)
}

func TestMailboxIDsAreUnique(t *testing.T) {
	a := mailbox.New(intRecorder(), quiet())
	b := mailbox.New(intRecorder(), quiet())
	require.NotEqual(t, a.ID(), b.ID())
}

func TestMailboxAsReplyAddress(t *testing.T) {
	c := cell.New(0)
	cellBox := mailbox.New(c, quiet())

	customer := testutils.NewRecorder()
	testutils.Record[cell.Reply[int]](customer)
	customerBox := mailbox.New(customer, quiet())

	require.NoError(t, cellBox.Tell(message.New(cell.Set[int]{Value: 5})))
	require.NoError(t, cellBox.Tell(message.New(cell.Get{Customer: customerBox})))
	cellBox.Close()
	require.NoError(t, cellBox.Run(t.Context()))
	require.Equal(t, 5, c.Value())

	customerBox.Close()
	require.NoError(t, customerBox.Run(t.Context()))
	require.Equal(t, []any{cell.Reply[int]{Value: 5}}, customer.Received())
}

func TestGroup(t *testing.T) {
	t.Run("drains every mailbox", func(t *testing.T) {
		first, second := intRecorder(), intRecorder()
		a := mailbox.New(first, quiet())
		b := mailbox.New(second, quiet())

		for i := range 10 {
			require.NoError(t, a.Tell(message.New(i)))
			require.NoError(t, b.Tell(message.New(-i)))
		}

		g := mailbox.NewGroup(a, b)
		require.NoError(t, g.Run(t.Context()))
		require.ErrorIs(t, g.Run(t.Context()), mailbox.ErrRunning)
		g.Close()
		require.NoError(t, g.Wait())

		require.Len(t, first.Received(), 10)
		require.Len(t, second.Received(), 10)
	})

	t.Run("first failure stops the group", func(t *testing.T) {
		halting := mailbox.New(intRecorder(), quiet(), mailbox.WithPolicy(mailbox.Halt))
		idle := mailbox.New(intRecorder(), quiet())
		require.NoError(t, halting.Tell(message.New("bad")))

		g := mailbox.NewGroup(halting, idle)
		require.NoError(t, g.Run(t.Context()))
		require.ErrorIs(t, g.Wait(), message.ErrNoCapability)
	})

	t.Run("wait without run", func(t *testing.T) {
		require.NoError(t, mailbox.NewGroup().Wait())
	})
}

func TestPolicyString(t *testing.T) {
	require.Equal(t, "isolate", mailbox.Isolate.String())
	require.Equal(t, "halt", mailbox.Halt.String())
	require.Equal(t, "unknown", mailbox.Policy(7).String())
}
