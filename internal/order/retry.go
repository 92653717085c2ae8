package order

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/autoorder/core/logger"
	"github.com/m3rciful/autoorder/internal/notify"
)

// Executor runs one ordering attempt.
type Executor interface {
	Execute(ctx context.Context, meals []string) (Result, error)
}

// Supervisor wraps attempts with bounded retries. An error from the
// executor counts as a crashed attempt: it is logged, reported through
// the crash notification channel and retried like any other failure.
type Supervisor struct {
	exec     Executor
	sink     notify.Sink
	attempts int
	delay    time.Duration
	clock    Clock
}

// NewSupervisor builds a Supervisor running up to attempts attempts
// with delay between them. sink may be nil.
func NewSupervisor(exec Executor, sink notify.Sink, attempts int, delay time.Duration, clock Clock) *Supervisor {
	if attempts < 1 {
		attempts = 1
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &Supervisor{exec: exec, sink: sink, attempts: attempts, delay: delay, clock: clock}
}

// Run drives attempts until one succeeds or the budget is spent and
// returns the final attempt's result. Result.OK is the run outcome;
// per-attempt detail is in the logs.
func (s *Supervisor) Run(ctx context.Context, meals []string) Result {
	ctx = logger.WithRun(ctx, logger.NewRunID())
	start := s.clock.Now()

	var last Result
	for attempt := 1; attempt <= s.attempts; attempt++ {
		actx := logger.WithAttempt(ctx, attempt)
		logger.Info(actx, "order.retry", "attempt.start",
			slog.Int("max_attempts", s.attempts))

		res, err := s.exec.Execute(actx, meals)
		last = res
		switch {
		case err == nil && res.OK:
			logger.Info(actx, "order.retry", "attempt.ok",
				slog.Bool("verified", res.Verified),
				slog.Duration("duration", s.clock.Now().Sub(start)))
			return res
		case err != nil:
			if last.Reason == "" {
				last.Reason = ReasonCrash
			}
			logger.Error(actx, "order.retry", "attempt.crash",
				slog.String("status", "retry"),
				slog.Any("err", err))
			s.notify(actx, notify.KindCrash, fmt.Sprintf("Attempt %d/%d crashed: %v", attempt, s.attempts, err))
		default:
			logger.Warn(actx, "order.retry", "attempt.fail",
				slog.String("status", "retry"),
				slog.String("reason", string(res.Reason)))
		}

		if attempt < s.attempts {
			logger.Info(actx, "order.retry", "attempt.wait",
				slog.Duration("backoff", s.delay))
			s.clock.Sleep(s.delay)
		}
	}

	logger.Error(ctx, "order.retry", "attempts.exhausted",
		slog.String("status", "fail"),
		slog.Int("attempts", s.attempts),
		slog.Duration("duration", s.clock.Now().Sub(start)))
	s.notify(ctx, notify.KindFailure, fmt.Sprintf("Order was not placed after %d attempts.", s.attempts))
	return last
}

func (s *Supervisor) notify(ctx context.Context, kind notify.Kind, text string) {
	if s.sink != nil {
		s.sink.Notify(ctx, kind, text)
	}
}
