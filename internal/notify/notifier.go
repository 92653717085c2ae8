package notify

import (
	"context"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/autoorder/core/logger"
)

// Prefs exposes the persisted per-kind delivery switches.
type Prefs interface {
	NotifyEnabled(kind string) bool
}

// sender is the slice of the control bot used for delivery.
type sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Notifier sends gated notifications to the admin chat through the
// control bot. Delivery failures are logged and swallowed so an
// ordering run never fails because Telegram hiccuped on the side
// channel.
type Notifier struct {
	bot   sender
	prefs Prefs
	chat  tele.Recipient
}

// New builds a Notifier addressing the given admin chat.
func New(bot sender, prefs Prefs, adminID int64) *Notifier {
	return &Notifier{bot: bot, prefs: prefs, chat: &tele.User{ID: adminID}}
}

// Notify implements Sink.
func (n *Notifier) Notify(ctx context.Context, kind Kind, text string) {
	if n == nil || n.bot == nil {
		return
	}
	if n.prefs != nil && !n.prefs.NotifyEnabled(string(kind)) {
		logger.Debug(ctx, "notify", "notify.muted", slog.String("kind", string(kind)))
		return
	}
	if _, err := n.bot.Send(n.chat, header(kind)+"\n\n"+text); err != nil {
		logger.Error(ctx, "notify", "notify.fail",
			slog.String("kind", string(kind)),
			slog.Any("err", err))
		return
	}
	logger.Info(ctx, "notify", "notify.sent", slog.String("kind", string(kind)))
}

func header(kind Kind) string {
	switch kind {
	case KindSuccess:
		return "✅ AutoOrder"
	case KindStartup:
		return "ℹ️ AutoOrder"
	default:
		return "⚠️ AutoOrder"
	}
}
