// Package order drives the remote food bot to an "all selected meals
// confirmed" state. The remote side is observable only through polled
// message snapshots, and its meal buttons are toggles, so the engine
// reads confirmed state from message text and clicks only what is
// missing. Clicking an already selected meal would deselect it, which
// is the one mistake this package is built to never make.
package order

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/autoorder/core/logger"
	"github.com/m3rciful/autoorder/internal/chat"
	"github.com/m3rciful/autoorder/internal/notify"
)

// Reason classifies a failed attempt for logging and notification
// gating.
type Reason string

const (
	ReasonWindow  Reason = "window"
	ReasonBotDown Reason = "bot_down"
	ReasonNoMeals Reason = "no_meals"
	ReasonFailure Reason = "failure"
	ReasonCrash   Reason = "crash"
)

// Result is the outcome of one attempt. Verified distinguishes a
// confirmation observed in the bot's own text from the optimistic
// "all clicks sent" success, which is a weaker guarantee.
type Result struct {
	OK        bool
	Reason    Reason
	Verified  bool
	Confirmed []string
	Clicked   []string
}

// Config carries the protocol constants for one remote bot.
type Config struct {
	// Peer is the remote bot's username, without the @ prefix.
	Peer string
	// Trigger is the label of the button that opens the order form.
	Trigger string

	// Ordering is allowed in [WindowStart, WindowEnd) hours of Zone
	// local time.
	WindowStart int
	WindowEnd   int
	Zone        *time.Location

	StartDelay       time.Duration
	ClickDelay       time.Duration
	SettleDelay      time.Duration
	PollTimeout      time.Duration
	PollInterval     time.Duration
	ClickPollTimeout time.Duration

	// HistoryWindow is the number of recent messages scanned per poll,
	// VerifyWindow the number scanned for the final confirmation.
	HistoryWindow int
	VerifyWindow  int

	// Clock defaults to the system clock when nil.
	Clock Clock
}

// Engine executes ordering attempts against one remote bot.
type Engine struct {
	client chat.Client
	reader *Reader
	sink   notify.Sink
	clock  Clock
	cfg    Config
}

// NewEngine builds an Engine. sink may be nil, in which case outcome
// notifications are dropped.
func NewEngine(client chat.Client, sink notify.Sink, cfg Config) *Engine {
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock()
	}
	if cfg.Zone == nil {
		cfg.Zone = time.UTC
	}
	return &Engine{
		client: client,
		reader: NewReader(client, cfg.Peer, cfg.HistoryWindow, cfg.PollInterval, clock),
		sink:   sink,
		clock:  clock,
		cfg:    cfg,
	}
}

// Execute runs one full ordering attempt for the given meals, in the
// given order. Anticipated remote-side irregularities fail closed with
// a Reason; only unexpected faults (transport errors and the like)
// are returned as errors, for the retry supervisor to treat as a
// crashed attempt.
func (e *Engine) Execute(ctx context.Context, meals []string) (Result, error) {
	start := e.clock.Now()

	if len(meals) == 0 {
		logger.Warn(ctx, "order", "guard.no_meals", slog.String("status", "skip"))
		e.notify(ctx, notify.KindFailure, "No meals selected. Use /meals to choose what to order.")
		return Result{Reason: ReasonNoMeals}, nil
	}
	hour := e.clock.Now().In(e.cfg.Zone).Hour()
	if hour < e.cfg.WindowStart || hour >= e.cfg.WindowEnd {
		logger.Warn(ctx, "order", "guard.window",
			slog.String("status", "skip"),
			slog.Int("hour", hour),
			slog.Int("window_start", e.cfg.WindowStart),
			slog.Int("window_end", e.cfg.WindowEnd))
		e.notify(ctx, notify.KindWindow, fmt.Sprintf(
			"Outside ordering window (%d:00 to %d:00). Current hour: %d.",
			e.cfg.WindowStart, e.cfg.WindowEnd, hour))
		return Result{Reason: ReasonWindow}, nil
	}

	mealList, _ := logger.SummarizeStrings(meals, len(meals))
	logger.Info(ctx, "order", "run.start",
		slog.String("peer", e.cfg.Peer),
		slog.String("meals", mealList))

	if err := e.client.SendText(ctx, e.cfg.Peer, "/start"); err != nil {
		return Result{Reason: ReasonCrash}, fmt.Errorf("send start command: %w", err)
	}
	e.clock.Sleep(e.cfg.StartDelay)

	snap, err := e.reader.LatestWithActions(ctx, e.cfg.PollTimeout)
	if err != nil {
		return Result{Reason: ReasonCrash}, err
	}
	if snap == nil {
		logger.Error(ctx, "order", "bootstrap.timeout", slog.String("status", "timeout"))
		e.notify(ctx, notify.KindBotDown, "Bot did not respond with any buttons.")
		return Result{Reason: ReasonBotDown}, nil
	}
	e.logButtons(ctx, "bootstrap.buttons", snap)

	if hasAnyAction(snap, meals) {
		logger.Info(ctx, "order", "navigate.skip")
	} else {
		trigger, ok := findAction(snap, e.cfg.Trigger)
		if !ok {
			buttons, truncated := logger.SummarizeStrings(snap.Labels(), maxLoggedButtons)
			logger.Error(ctx, "order", "navigate.missing",
				slog.String("status", "fail"),
				slog.String("buttons", buttons),
				slog.Bool("truncated", truncated))
			e.notify(ctx, notify.KindBotDown, fmt.Sprintf("Button %q not found in the bot menu.", e.cfg.Trigger))
			return Result{Reason: ReasonBotDown}, nil
		}
		logger.Info(ctx, "order", "navigate.click", slog.String("label", trigger.Label))
		if err := e.client.Invoke(ctx, e.cfg.Peer, trigger); err != nil {
			return Result{Reason: ReasonCrash}, fmt.Errorf("open order form: %w", err)
		}
		e.clock.Sleep(e.cfg.ClickDelay)

		snap, err = e.reader.LatestWithMatching(ctx, meals, e.cfg.PollTimeout)
		if err != nil {
			return Result{Reason: ReasonCrash}, err
		}
		if snap == nil {
			logger.Error(ctx, "order", "navigate.timeout", slog.String("status", "timeout"))
			e.notify(ctx, notify.KindBotDown, "Meal selection form did not appear.")
			return Result{Reason: ReasonBotDown}, nil
		}
		e.logButtons(ctx, "navigate.buttons", snap)
	}

	confirmed := confirmedMeals(snap.Text, meals)
	needed := missingMeals(meals, confirmed)
	confirmedList, _ := logger.SummarizeStrings(confirmed, len(confirmed))
	neededList, _ := logger.SummarizeStrings(needed, len(needed))
	logger.Info(ctx, "order", "select.state",
		slog.String("confirmed", confirmedList),
		slog.String("needed", neededList))

	if len(needed) == 0 {
		logger.Info(ctx, "order", "select.noop", slog.String("status", "ok"))
		return Result{OK: true, Verified: true, Confirmed: confirmed}, nil
	}

	clicked := make([]string, 0, len(needed))
	for _, meal := range needed {
		// Re-check against the freshest snapshot. A meal confirmed
		// since the needed set was computed must not be clicked again:
		// the buttons are toggles and a second click deselects it.
		if mealConfirmed(snap.Text, meal) {
			logger.Info(ctx, "order", "click.confirmed", slog.String("meal", meal))
			continue
		}
		act, ok := findAction(snap, meal)
		if !ok {
			buttons, _ := logger.SummarizeStrings(snap.Labels(), maxLoggedButtons)
			logger.Warn(ctx, "order", "click.skip",
				slog.String("status", "skip"),
				slog.String("meal", meal),
				slog.String("buttons", buttons))
			continue
		}
		logger.Info(ctx, "order", "click.send", slog.String("meal", meal))
		if err := e.client.Invoke(ctx, e.cfg.Peer, act); err != nil {
			return Result{Reason: ReasonCrash, Clicked: clicked}, fmt.Errorf("click %q: %w", meal, err)
		}
		clicked = append(clicked, meal)
		e.clock.Sleep(e.cfg.ClickDelay)

		fresh, err := e.reader.LatestWithMatching(ctx, meals, e.cfg.ClickPollTimeout)
		if err != nil {
			return Result{Reason: ReasonCrash, Clicked: clicked}, err
		}
		if fresh != nil {
			snap = fresh
			e.logButtons(ctx, "click.refresh", snap)
		}
	}

	e.clock.Sleep(e.cfg.SettleDelay)

	recent, err := e.client.Recent(ctx, e.cfg.Peer, e.cfg.VerifyWindow)
	if err != nil {
		return Result{Reason: ReasonCrash, Clicked: clicked}, fmt.Errorf("fetch confirmation: %w", err)
	}
	for i := range recent {
		final := confirmedMeals(recent[i].Text, meals)
		if len(final) == len(meals) {
			logger.Info(ctx, "order", "verify.confirmed",
				slog.String("confirmed", strings.Join(final, ",")),
				slog.Duration("duration", e.clock.Now().Sub(start)))
			e.notify(ctx, notify.KindSuccess, fmt.Sprintf("Order confirmed: %s.", strings.Join(final, ", ")))
			return Result{OK: true, Verified: true, Confirmed: final, Clicked: clicked}, nil
		}
	}

	clickedList, _ := logger.SummarizeStrings(clicked, len(clicked))
	logger.Info(ctx, "order", "verify.optimistic",
		slog.String("meals", clickedList),
		slog.Duration("duration", e.clock.Now().Sub(start)))
	e.notify(ctx, notify.KindSuccess, "All meal buttons clicked. Confirmation was not observed, check the chat.")
	return Result{OK: true, Clicked: clicked}, nil
}

const maxLoggedButtons = 12

func (e *Engine) logButtons(ctx context.Context, event string, m *chat.Message) {
	buttons, truncated := logger.SummarizeStrings(m.Labels(), maxLoggedButtons)
	logger.Info(ctx, "order", event,
		slog.String("buttons", buttons),
		slog.Bool("truncated", truncated))
}

func (e *Engine) notify(ctx context.Context, kind notify.Kind, text string) {
	if e.sink != nil {
		e.sink.Notify(ctx, kind, text)
	}
}
