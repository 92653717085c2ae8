package userbot

import (
	"github.com/gotd/td/tg"

	"github.com/m3rciful/autoorder/internal/chat"
)

func historyMessages(res tg.MessagesMessagesClass) []tg.MessageClass {
	switch h := res.(type) {
	case *tg.MessagesMessages:
		return h.Messages
	case *tg.MessagesMessagesSlice:
		return h.Messages
	case *tg.MessagesChannelMessages:
		return h.Messages
	default:
		return nil
	}
}

// convertMessage projects a raw Telegram message onto the transport
// seam. Callback buttons keep their payload; other button kinds stay
// visible as labels so diagnostics can list what the bot offered.
func convertMessage(m *tg.Message) chat.Message {
	out := chat.Message{ID: m.ID, Text: m.Message}
	markup, ok := m.GetReplyMarkup()
	if !ok {
		return out
	}
	inline, ok := markup.(*tg.ReplyInlineMarkup)
	if !ok {
		return out
	}
	for _, row := range inline.Rows {
		actions := make([]chat.Action, 0, len(row.Buttons))
		for _, btn := range row.Buttons {
			switch b := btn.(type) {
			case *tg.KeyboardButtonCallback:
				actions = append(actions, chat.Action{Label: b.Text, MsgID: m.ID, Data: b.Data})
			default:
				if labeled, ok := b.(interface{ GetText() string }); ok {
					actions = append(actions, chat.Action{Label: labeled.GetText(), MsgID: m.ID})
				}
			}
		}
		if len(actions) > 0 {
			out.Actions = append(out.Actions, actions)
		}
	}
	return out
}
