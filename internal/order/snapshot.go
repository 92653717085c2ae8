package order

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/autoorder/core/logger"
	"github.com/m3rciful/autoorder/internal/chat"
)

// Reader polls the remote conversation for a message snapshot that
// satisfies a predicate. The remote bot edits and reposts its menu
// messages, so the newest message is not always the interesting one;
// each poll scans a small most-recent-first window and takes the first
// qualifying message in it.
type Reader struct {
	client   chat.Client
	peer     string
	window   int
	interval time.Duration
	clock    Clock
}

// NewReader builds a Reader over the given peer. window is the number
// of recent messages scanned per poll, interval the pause between
// polls.
func NewReader(client chat.Client, peer string, window int, interval time.Duration, clock Clock) *Reader {
	return &Reader{client: client, peer: peer, window: window, interval: interval, clock: clock}
}

// LatestWithActions polls until a message exposing at least one action
// appears. A nil message with a nil error means the timeout elapsed
// without a qualifying snapshot; callers must treat that as a hard
// failure for the current step.
func (r *Reader) LatestWithActions(ctx context.Context, timeout time.Duration) (*chat.Message, error) {
	return r.waitFor(ctx, timeout, func(m *chat.Message) bool { return m.HasActions() })
}

// LatestWithMatching polls until a message offers an action whose label
// matches one of the target labels.
func (r *Reader) LatestWithMatching(ctx context.Context, targets []string, timeout time.Duration) (*chat.Message, error) {
	return r.waitFor(ctx, timeout, func(m *chat.Message) bool { return hasAnyAction(m, targets) })
}

func (r *Reader) waitFor(ctx context.Context, timeout time.Duration, qualifies func(*chat.Message) bool) (*chat.Message, error) {
	deadline := r.clock.Now().Add(timeout)
	polls := 0
	for r.clock.Now().Before(deadline) {
		msgs, err := r.client.Recent(ctx, r.peer, r.window)
		if err != nil {
			return nil, fmt.Errorf("fetch history: %w", err)
		}
		polls++
		for i := range msgs {
			if qualifies(&msgs[i]) {
				return &msgs[i], nil
			}
		}
		if logger.ShouldSampleDebug() {
			logger.Debug(ctx, "order.poll", "poll.miss",
				slog.Int("messages", len(msgs)),
				slog.Int("count", polls))
		}
		r.clock.Sleep(r.interval)
	}
	logger.Debug(ctx, "order.poll", "poll.deadline",
		slog.String("status", "timeout"),
		slog.Int("count", polls))
	return nil, nil
}
