package mailbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/DeluxeOwl/dispatch/message"
)

var ErrNilEnvelope = errors.New("nil envelope")

// Failure is one envelope that could not be dispatched.
type Failure struct {
	// Seq is the 1-based position of the envelope in delivery order: the
	// batch position for ProcessAll, the dequeue count for a Mailbox.
	Seq      uint64
	Envelope message.Any
	Err      error
}

func (f Failure) Error() string {
	return fmt.Sprintf("envelope %d (%s): %v", f.Seq, payloadType(f.Envelope), f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Report summarizes a ProcessAll call.
type Report struct {
	Delivered int
	Failures  []Failure
	// Remaining counts the envelopes that were never attempted.
	Remaining int
}

// Err joins all failures, nil if there were none.
func (r Report) Err() error {
	errs := make([]error, len(r.Failures))
	for i := range r.Failures {
		errs[i] = r.Failures[i]
	}
	return errors.Join(errs...)
}

// ProcessAll dispatches envelopes to receiver one at a time, in order.
//
// With the default Isolate policy every envelope is attempted and failures
// only end up in the report. The returned error is non-nil when delivery
// stopped early: Halt policy, an escalation error or ctx being done.
func ProcessAll(
	ctx context.Context,
	receiver message.Receiver,
	envelopes []message.Any,
	opts ...Option,
) (Report, error) {
	cfg := newConfig(opts)
	p := processor{receiver: receiver, config: cfg}

	var report Report
	for i, env := range envelopes {
		if err := ctx.Err(); err != nil {
			report.Remaining = len(envelopes) - i
			return report, fmt.Errorf("process all: %w", err)
		}

		failure, halt := p.deliver(ctx, uint64(i)+1, env) //nolint:gosec // i is never negative.
		if failure != nil {
			report.Failures = append(report.Failures, *failure)
		} else {
			report.Delivered++
		}

		if halt != nil {
			report.Remaining = len(envelopes) - i - 1
			return report, fmt.Errorf("process all: %w", halt)
		}
	}

	return report, nil
}

type processor struct {
	config
	receiver message.Receiver
}

// deliver dispatches a single envelope. A non-nil halt error means the
// caller must stop delivering.
func (p *processor) deliver(ctx context.Context, seq uint64, env message.Any) (*Failure, error) {
	var err error
	if isNil(env) {
		err = ErrNilEnvelope
	} else {
		if p.log.Enabled(ctx, slog.LevelDebug) {
			p.log.DebugContext(ctx, "Dispatching envelope.",
				"seq", seq,
				"type", payloadType(env),
				"payload", dumpPayload(env.PayloadValue()),
			)
		}
		err = env.DispatchTo(p.receiver)
	}

	if err == nil {
		return nil, nil
	}

	failure := Failure{
		Seq:      seq,
		Envelope: env,
		Err:      err,
	}

	p.log.ErrorContext(ctx, "Envelope dispatch failed.",
		"seq", seq,
		"type", payloadType(env),
		"policy", p.policy.String(),
		"err", err,
	)

	if p.onFailure != nil {
		if escalated := p.onFailure(ctx, failure); escalated != nil {
			return &failure, fmt.Errorf("escalate %w: %w", failure, escalated)
		}
	}

	if p.policy == Halt {
		return &failure, failure
	}

	return &failure, nil
}

func isNil(env message.Any) bool {
	if env == nil {
		return true
	}
	v := reflect.ValueOf(env)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

func payloadType(env message.Any) string {
	if isNil(env) {
		return "<nil>"
	}
	return env.PayloadType().String()
}
