// Package control runs the operator-facing Telegram bot: a fixed
// command set gated to a single admin account, plus the inline meal
// keyboard. It is the only runtime write path into the settings store
// and the manual trigger for ordering runs.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/autoorder/core/config"
	"github.com/m3rciful/autoorder/core/logger"
)

// Command binds one slash command to its handler and menu entry.
type Command struct {
	Text        string
	Description string
	Handler     tele.HandlerFunc
}

// Bot is the control-bot runtime.
type Bot struct {
	bot  *tele.Bot
	base context.Context
}

// New builds the bot with its middleware chain. Handlers are attached
// separately with Register once the rest of the application is wired.
func New(cfg coreconfig.TelegramConfig) (*Bot, error) {
	pollTimeout := time.Duration(cfg.LongPollTimeoutSeconds) * time.Second
	if pollTimeout <= 0 {
		pollTimeout = 10 * time.Second
	}

	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.ControlToken,
		Poller: &tele.LongPoller{Timeout: pollTimeout},
		Client: buildHTTPClient(pollTimeout),
		OnError: func(err error, c tele.Context) {
			ctx := context.Background()
			if c != nil {
				ctx = handlerContext(c)
			}
			logger.Error(ctx, "control", "handler.fail", slog.Any("err", err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("control bot init: %w", err)
	}

	ctrl := &Bot{bot: b, base: context.Background()}
	b.Use(recoverMiddleware, adminOnly(cfg.AdminID), ctrl.logging)
	return ctrl, nil
}

// Register wires the command table, the meal toggle callback and the
// fallbacks, and publishes the command menu.
func (b *Bot) Register(h *Handlers) {
	cmds := []Command{
		{"/help", "Show all commands", h.onHelp},
		{"/status", "Current state and schedule", h.onStatus},
		{"/schedule", "Show or set check hours", h.onSchedule},
		{"/meals", "Show or set ordered meals", h.onMeals},
		{"/order", "Run an order right now", h.onOrder},
		{"/on", "Enable automatic ordering", h.onOn},
		{"/off", "Disable automatic ordering", h.onOff},
		{"/notify", "Show or set notifications", h.onNotify},
	}

	menu := make([]tele.Command, 0, len(cmds))
	for _, cmd := range cmds {
		b.bot.Handle(cmd.Text, cmd.Handler)
		menu = append(menu, tele.Command{
			Text:        strings.TrimPrefix(cmd.Text, "/"),
			Description: cmd.Description,
		})
	}
	b.bot.Handle(&tele.Btn{Unique: mealToggleUnique}, h.onMealToggle)
	b.bot.Handle(tele.OnCallback, func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
	})
	b.bot.Handle(tele.OnText, h.onUnknown)

	if err := b.bot.SetCommands(menu); err != nil {
		logger.Warn(b.base, "control", "menu.fail", slog.Any("err", err))
	}
}

// Send lets other components message the admin through this bot.
func (b *Bot) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	return b.bot.Send(to, what, opts...)
}

// Run polls for updates until ctx is canceled. Handlers run in their
// own goroutines, so a long /order run does not block other commands.
func (b *Bot) Run(ctx context.Context) error {
	b.base = ctx
	logger.Info(ctx, "control", "poll.start",
		slog.String("bot", b.bot.Me.Username))

	done := make(chan struct{})
	go func() {
		b.bot.Start()
		close(done)
	}()

	select {
	case <-ctx.Done():
		b.bot.Stop()
		<-done
		logger.Info(context.Background(), "control", "poll.stop")
		return nil
	case <-done:
		return nil
	}
}
