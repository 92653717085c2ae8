// Package schedule wakes on a short interval and fires supervised
// ordering runs at the configured hours, at most once per hour per day.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/autoorder/core/logger"
	"github.com/m3rciful/autoorder/internal/history"
	"github.com/m3rciful/autoorder/internal/notify"
	"github.com/m3rciful/autoorder/internal/order"
	"github.com/m3rciful/autoorder/internal/settings"
)

// RunFunc launches one supervised ordering run and returns its result.
type RunFunc func(ctx context.Context, meals []string) order.Result

// Options wires the daemon's collaborators.
type Options struct {
	Settings *settings.Store
	History  *history.Store
	Gate     *order.Gate
	Run      RunFunc
	Sink     notify.Sink

	// Zone is the ordering timezone; schedule hours are read in it.
	Zone *time.Location
	// Interval is the wake period; zero means 30 seconds.
	Interval time.Duration
}

// Daemon is the scheduling loop. Enabled state and schedule hours are
// re-read from the settings store on every wake, so operator changes
// take effect without a restart.
type Daemon struct {
	settings *settings.Store
	history  *history.Store
	gate     *order.Gate
	run      RunFunc
	sink     notify.Sink
	zone     *time.Location
	interval time.Duration

	// completed holds "YYYY-MM-DD@hour" keys already handled today.
	completed map[string]bool
	lastHour  int
}

// New builds the daemon; Run starts it.
func New(opts Options) *Daemon {
	zone := opts.Zone
	if zone == nil {
		zone = time.UTC
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Daemon{
		settings:  opts.Settings,
		history:   opts.History,
		gate:      opts.Gate,
		run:       opts.Run,
		sink:      opts.Sink,
		zone:      zone,
		interval:  interval,
		completed: make(map[string]bool),
		lastHour:  -1,
	}
}

// Run announces the daemon and ticks until ctx is canceled.
func (d *Daemon) Run(ctx context.Context) error {
	d.announce(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info(context.Background(), "schedule", "loop.stop")
			return nil
		case <-ticker.C:
			d.tick(ctx, time.Now().In(d.zone))
		}
	}
}

// tick is one wake of the loop: heartbeat, prune, and possibly a run.
func (d *Daemon) tick(ctx context.Context, now time.Time) {
	d.heartbeat(ctx, now)
	d.prune(now)

	if !d.settings.Enabled() {
		return
	}
	hour := now.Hour()
	if !scheduledAt(d.settings.ScheduleHours(), hour) {
		return
	}
	key := runKey(now)
	if d.completed[key] {
		return
	}

	if !d.gate.TryAcquire() {
		logger.Info(ctx, "schedule", "run.busy", slog.String("key", key))
		return
	}
	defer d.gate.Release()

	// One shot per scheduled hour whether or not it succeeds; the
	// supervisor has already retried by the time it returns.
	d.completed[key] = true

	meals := d.settings.SelectedMeals()
	logger.Info(ctx, "schedule", "run.due",
		slog.String("key", key),
		slog.String("meals", strings.Join(meals, ",")))

	res := d.run(ctx, meals)
	if res.OK {
		logger.Info(ctx, "schedule", "run.done",
			slog.String("key", key),
			slog.Bool("verified", res.Verified))
	} else {
		logger.Warn(ctx, "schedule", "run.fail",
			slog.String("status", "fail"),
			slog.String("key", key),
			slog.String("reason", string(res.Reason)))
	}

	if err := d.history.Record(ctx, history.At(now, history.SourceSchedule, meals, res.OK, res.Verified)); err != nil {
		logger.Warn(ctx, "schedule", "history.fail", slog.Any("err", err))
	}
}

func (d *Daemon) heartbeat(ctx context.Context, now time.Time) {
	if now.Hour() == d.lastHour {
		return
	}
	d.lastHour = now.Hour()
	logger.Info(ctx, "schedule", "heartbeat",
		slog.Int("hour", now.Hour()),
		slog.Bool("enabled", d.settings.Enabled()),
		slog.Int("completed_today", len(d.completed)))
}

// prune drops completed keys from previous days.
func (d *Daemon) prune(now time.Time) {
	day := now.Format("2006-01-02")
	for key := range d.completed {
		if !strings.HasPrefix(key, day) {
			delete(d.completed, key)
		}
	}
}

func (d *Daemon) announce(ctx context.Context) {
	view := d.settings.Snapshot()
	hours := make([]string, len(view.ScheduleHours))
	for i, h := range view.ScheduleHours {
		hours[i] = fmt.Sprintf("%d:00", h)
	}
	state := "enabled"
	if !view.Enabled {
		state = "disabled"
	}
	logger.Info(ctx, "schedule", "loop.start",
		slog.String("hours", strings.Join(hours, ",")),
		slog.String("meals", strings.Join(view.Meals, ",")),
		slog.String("state", state),
		slog.Duration("interval", d.interval))

	if d.sink != nil {
		d.sink.Notify(ctx, notify.KindStartup, fmt.Sprintf(
			"AutoOrder daemon started.\nSchedule: %s\nMeals: %s\nAuto-ordering is %s. Send /help for commands.",
			strings.Join(hours, ", "), strings.Join(view.Meals, ", "), state))
	}
}

func scheduledAt(hours []int, hour int) bool {
	for _, h := range hours {
		if h == hour {
			return true
		}
	}
	return false
}

func runKey(now time.Time) string {
	return fmt.Sprintf("%s@%d", now.Format("2006-01-02"), now.Hour())
}
