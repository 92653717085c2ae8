package control

import (
	"context"
	"log/slog"
	"runtime/debug"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/autoorder/core/logger"
)

// ctxKey stores the per-update context.Context inside tele.Context.
const ctxKey = "ctx"

// handlerContext returns the context derived for this update, falling
// back to Background on paths that skipped the middleware chain.
func handlerContext(c tele.Context) context.Context {
	if v := c.Get(ctxKey); v != nil {
		if ctx, ok := v.(context.Context); ok {
			return ctx
		}
	}
	return context.Background()
}

// recoverMiddleware keeps a panicking handler from taking the bot down.
func recoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(handlerContext(c), "control", "panic.recovered",
					slog.Any("err", r),
					slog.String("stack", string(debug.Stack())),
				)
			}
		}()
		return next(c)
	}
}

// adminOnly drops every update that is not from the operator account.
// Foreign callbacks are acked so the client does not show a spinner.
func adminOnly(adminID int64) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil || sender.ID != adminID {
				var from int64
				if sender != nil {
					from = sender.ID
				}
				logger.Warn(context.Background(), "control", "reject.unauthorized",
					slog.Int64("user_id", from))
				if c.Callback() != nil {
					return c.Respond(&tele.CallbackResponse{})
				}
				return nil
			}
			return next(c)
		}
	}
}

// logging derives the per-update context and writes one receipt line.
func (b *Bot) logging(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()
		var userID, chatID int64
		if u := c.Sender(); u != nil {
			userID = u.ID
		}
		if ch := c.Chat(); ch != nil {
			chatID = ch.ID
		}
		ctx := logger.WithUpdateMeta(b.base, upd.ID, userID, chatID)
		c.Set(ctxKey, ctx)

		if logger.ShouldSampleDebug() {
			attrs := []slog.Attr{slog.Int("update_id", upd.ID)}
			switch {
			case upd.Callback != nil:
				attrs = append(attrs,
					slog.String("cb_unique", logger.SanitizeLimit(upd.Callback.Unique, 64)),
					slog.String("payload", logger.SanitizeLimit(upd.Callback.Data, 128)))
			case upd.Message != nil:
				attrs = append(attrs,
					slog.String("payload", logger.SanitizeLimit(c.Text(), 256)))
			}
			logger.Debug(ctx, "control", "update.received", attrs...)
		}
		return next(c)
	}
}
