package control

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/autoorder/core/logger"
	"github.com/m3rciful/autoorder/internal/history"
	"github.com/m3rciful/autoorder/internal/notify"
	"github.com/m3rciful/autoorder/internal/order"
	"github.com/m3rciful/autoorder/internal/settings"
)

// RunFunc launches one supervised ordering run and returns its result.
type RunFunc func(ctx context.Context, meals []string) order.Result

// Handlers binds the operator commands to the application state.
type Handlers struct {
	Settings *settings.Store
	History  *history.Store
	Gate     *order.Gate
	Run      RunFunc

	// WindowStart and WindowEnd are shown in /status; Zone is the
	// ordering timezone used for timestamps and history rows.
	WindowStart int
	WindowEnd   int
	Zone        *time.Location
}

var helpText = strings.Join([]string{
	"🤖 *AutoOrder commands*",
	"",
	"/help — this list",
	"/status — current state, schedule and meals",
	"/schedule `8 14 17` — set check hours",
	"/meals — show meal selection",
	"/meals `breakfast lunch dinner` — set meals by name or alias",
	"/order — run an order right now",
	"/on — enable automatic ordering",
	"/off — disable automatic ordering",
	"/notify — notification settings",
	"/notify `success off` — toggle one kind",
	"/notify `all on` — switch every kind at once",
}, "\n")

func (h *Handlers) onHelp(c tele.Context) error {
	return sendMD(c, helpText)
}

func (h *Handlers) onStatus(c tele.Context) error {
	ctx := handlerContext(c)
	last, err := h.History.LastSuccess(ctx)
	if err != nil {
		logger.Warn(ctx, "control", "history.fail", slog.Any("err", err))
	}
	recent, err := h.History.Recent(ctx, 3)
	if err != nil {
		logger.Warn(ctx, "control", "history.fail", slog.Any("err", err))
	}
	now := time.Now().In(h.Zone)
	return sendMD(c, statusText(h.Settings.Snapshot(), last, recent, now, h.WindowStart, h.WindowEnd))
}

func (h *Handlers) onSchedule(c tele.Context) error {
	ctx := handlerContext(c)
	args := commandArgs(c)
	if len(args) == 0 {
		return sendMD(c, fmt.Sprintf(
			"⏰ *Current schedule:* %s\n\nTo change: `/schedule 8 14 17`",
			hourList(h.Settings.ScheduleHours())))
	}

	hours, bad := parseHours(args)
	if len(bad) > 0 {
		return c.Send(fmt.Sprintf("❌ Invalid hours: %s. Use numbers from 0 to 23.", strings.Join(bad, ", ")))
	}
	saved, err := h.Settings.SetScheduleHours(ctx, hours)
	if err != nil {
		return c.Send("❌ " + err.Error())
	}
	return sendMD(c, fmt.Sprintf("✅ Schedule updated: *%s*", hourList(saved)))
}

func (h *Handlers) onMeals(c tele.Context) error {
	ctx := handlerContext(c)
	args := commandArgs(c)
	if len(args) == 0 {
		all := h.Settings.CanonicalMeals()
		selected := h.Settings.SelectedMeals()
		return sendMD(c, mealOverview(all, selected), mealKeyboard(all, selected))
	}

	saved, err := h.Settings.SetSelectedMeals(ctx, args)
	if err != nil {
		return c.Send("❌ " + err.Error())
	}
	lines := make([]string, 0, len(saved)+1)
	lines = append(lines, "✅ *Meals updated:*")
	for _, m := range saved {
		lines = append(lines, "  ☑️ "+mealLabel(m))
	}
	return sendMD(c, strings.Join(lines, "\n"))
}

func (h *Handlers) onOrder(c tele.Context) error {
	if !h.Gate.TryAcquire() {
		return c.Send("⏳ An order run is already in progress.")
	}
	defer h.Gate.Release()

	ctx := handlerContext(c)
	meals := h.Settings.SelectedMeals()
	if err := c.Send("🔄 Starting manual order..."); err != nil {
		logger.Warn(ctx, "control", "reply.fail", slog.Any("err", err))
	}

	res := h.Run(ctx, meals)
	h.recordRun(ctx, history.SourceManual, meals, res)
	if res.OK {
		return c.Send("✅ Manual order completed.")
	}
	return c.Send("⚠️ Manual order did not go through. Check the notifications for the reason.")
}

func (h *Handlers) onOn(c tele.Context) error {
	if err := h.Settings.SetEnabled(handlerContext(c), true); err != nil {
		return c.Send("❌ Could not save: " + err.Error())
	}
	return sendMD(c, "✅ Automatic ordering is now *enabled*.")
}

func (h *Handlers) onOff(c tele.Context) error {
	if err := h.Settings.SetEnabled(handlerContext(c), false); err != nil {
		return c.Send("❌ Could not save: " + err.Error())
	}
	return sendMD(c, "⚠️ Automatic ordering is now *disabled*. Nothing runs until /on.")
}

func (h *Handlers) onNotify(c tele.Context) error {
	ctx := handlerContext(c)
	args := commandArgs(c)
	if len(args) == 0 {
		return sendMD(c, notifyOverview(h.Settings.Notifications()))
	}
	if len(args) < 2 {
		return sendMD(c, "❌ Usage: `/notify <kind> <on|off>`\nExample: `/notify crash on`\nOr: `/notify all off`")
	}

	kind := strings.ToLower(args[0])
	state := strings.ToLower(args[1])
	if state != "on" && state != "off" {
		return sendMD(c, "❌ The second argument must be `on` or `off`.")
	}
	on := state == "on"

	if kind == "all" {
		if err := h.Settings.SetAllNotifications(ctx, on); err != nil {
			return c.Send("❌ Could not save: " + err.Error())
		}
		return sendMD(c, fmt.Sprintf("%s All notifications turned *%s*.", bellGlyph(on), state))
	}
	if !notify.Valid(kind) {
		return c.Send(fmt.Sprintf("❌ Unknown kind: %q\nValid kinds: %s, all", kind, strings.Join(kindNames(), ", ")))
	}
	if err := h.Settings.SetNotification(ctx, kind, on); err != nil {
		return c.Send("❌ Could not save: " + err.Error())
	}
	return sendMD(c, fmt.Sprintf("%s *%s* notifications turned *%s*.\n(%s)",
		bellGlyph(on), kind, state, notify.Kind(kind).Description()))
}

// onMealToggle flips one meal from the inline keyboard and redraws the
// overview message in place.
func (h *Handlers) onMealToggle(c tele.Context) error {
	cb := c.Callback()
	if cb == nil {
		return nil
	}
	ctx := handlerContext(c)
	meal := strings.TrimSpace(cb.Data)

	next := make([]string, 0, 4)
	removed := false
	for _, m := range h.Settings.SelectedMeals() {
		if m == meal {
			removed = true
			continue
		}
		next = append(next, m)
	}
	if !removed {
		next = append(next, meal)
	}
	if len(next) == 0 {
		return c.Respond(&tele.CallbackResponse{Text: "Keep at least one meal selected.", ShowAlert: true})
	}

	saved, err := h.Settings.SetSelectedMeals(ctx, next)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: err.Error(), ShowAlert: true})
	}
	all := h.Settings.CanonicalMeals()
	if err := editMD(c, mealOverview(all, saved), mealKeyboard(all, saved)); err != nil {
		logger.Warn(ctx, "control", "edit.fail", slog.Any("err", err))
	}
	return c.Respond(&tele.CallbackResponse{})
}

// onUnknown answers unrecognized slash commands; other text is ignored.
func (h *Handlers) onUnknown(c tele.Context) error {
	if !strings.HasPrefix(strings.TrimSpace(c.Text()), "/") {
		return nil
	}
	return c.Send("❓ Unknown command. Send /help for the list.")
}

func (h *Handlers) recordRun(ctx context.Context, source string, meals []string, res order.Result) {
	run := history.At(time.Now().In(h.Zone), source, meals, res.OK, res.Verified)
	if err := h.History.Record(ctx, run); err != nil {
		logger.Warn(ctx, "control", "history.fail", slog.Any("err", err))
	}
}

// sendMD sends a Markdown reply, optionally with an inline keyboard.
// Replies that embed free-form operator input go through c.Send plain
// instead: the legacy Markdown parser has no escaping and would reject
// unbalanced markers.
func sendMD(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdown}
	if len(markup) > 0 {
		opts.ReplyMarkup = markup[0]
	}
	return c.Send(text, opts)
}

// editMD edits the current message in place keeping Markdown mode.
func editMD(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	return c.Edit(text, &tele.SendOptions{ParseMode: tele.ModeMarkdown, ReplyMarkup: markup})
}

func commandArgs(c tele.Context) []string {
	msg := c.Message()
	if msg == nil {
		return nil
	}
	return strings.Fields(msg.Payload)
}

func parseHours(args []string) (hours []int, bad []string) {
	for _, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 0 || n > 23 {
			bad = append(bad, arg)
			continue
		}
		hours = append(hours, n)
	}
	return hours, bad
}

func hourList(hours []int) string {
	parts := make([]string, len(hours))
	for i, h := range hours {
		parts[i] = fmt.Sprintf("%d:00", h)
	}
	return strings.Join(parts, ", ")
}

func statusText(view settings.View, last *history.Run, recent []history.Run, now time.Time, windowStart, windowEnd int) string {
	var b strings.Builder
	b.WriteString("📊 *AutoOrder status*\n\n")

	state := "✅ enabled"
	if !view.Enabled {
		state = "❌ disabled"
	}
	fmt.Fprintf(&b, "*State:* %s\n", state)
	fmt.Fprintf(&b, "*Schedule:* %s\n", hourList(view.ScheduleHours))
	b.WriteString("*Meals:*\n")
	for _, m := range view.Meals {
		fmt.Fprintf(&b, "  • %s\n", mealLabel(m))
	}

	on := 0
	for _, enabled := range view.Notifications {
		if enabled {
			on++
		}
	}
	fmt.Fprintf(&b, "*Notifications:* %d/%d kinds on (see /notify)\n", on, len(view.Notifications))

	if last != nil {
		verified := ""
		if last.Verified {
			verified = ", verified"
		}
		fmt.Fprintf(&b, "*Last success:* %s at %d:00 (%s%s)\n", last.Day, last.Hour, last.Source, verified)
	} else {
		b.WriteString("*Last success:* none recorded\n")
	}
	if len(recent) > 0 {
		b.WriteString("*Recent runs:*\n")
		for _, r := range recent {
			mark := "❌"
			if r.OK {
				mark = "✅"
			}
			fmt.Fprintf(&b, "  %s %s %d:00 %s\n", mark, r.Day, r.Hour, r.Source)
		}
	}

	fmt.Fprintf(&b, "*Time:* %s\n", now.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "*Window:* %d:00–%d:00", windowStart, windowEnd)
	return b.String()
}

func mealOverview(all, selected []string) string {
	on := make(map[string]bool, len(selected))
	for _, m := range selected {
		on[m] = true
	}
	var b strings.Builder
	b.WriteString("🍽️ *Meal selection*\n\n")
	for _, m := range all {
		check := "⬜"
		if on[m] {
			check = "☑️"
		}
		fmt.Fprintf(&b, "  %s %s\n", check, mealLabel(m))
	}
	b.WriteString("\nTap a meal to toggle it, or set all at once: `/meals breakfast lunch dinner`")
	return b.String()
}

func notifyOverview(toggles map[string]bool) string {
	var b strings.Builder
	b.WriteString("🔔 *Notification settings*\n\n")
	for _, k := range notify.AllKinds {
		on, ok := toggles[string(k)]
		if !ok {
			on = true
		}
		fmt.Fprintf(&b, "  %s *%s* — %s\n", bellGlyph(on), k, k.Description())
	}
	b.WriteString("\nToggle one: `/notify success off`\nAll at once: `/notify all on`")
	return b.String()
}

func bellGlyph(on bool) string {
	if on {
		return "🔔"
	}
	return "🔕"
}

func kindNames() []string {
	names := make([]string, len(notify.AllKinds))
	for i, k := range notify.AllKinds {
		names[i] = string(k)
	}
	return names
}
