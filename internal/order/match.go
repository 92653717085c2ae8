package order

import (
	"strings"

	"github.com/m3rciful/autoorder/internal/chat"
)

// Glyphs the remote bot prepends to button labels to show toggle
// state. Stripped before comparing, per codepoint, so both the bare
// and the variation-selector emoji forms match.
var labelDecor = map[rune]bool{
	'✅':      true,
	'☑':      true,
	'📋':      true,
	'◀':      true,
	'❌':      true,
	'⬜':      true,
	'🔲':      true,
	'️': true,
}

// Body-text markers the remote bot uses for an already selected meal.
const (
	checkedBox  = "☑️ "
	checkedTick = "✅ "
)

func stripDecor(s string) string {
	return strings.Map(func(r rune) rune {
		if labelDecor[r] {
			return -1
		}
		return r
	}, s)
}

func normLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(stripDecor(s)))
}

// labelMatches reports whether a raw button label names the target once
// decoration and case are ignored.
func labelMatches(raw, target string) bool {
	return normLabel(raw) == normLabel(target)
}

// findAction returns the first action matching target, scanning rows
// top to bottom and buttons left to right.
func findAction(m *chat.Message, target string) (chat.Action, bool) {
	if m == nil {
		return chat.Action{}, false
	}
	for _, row := range m.Actions {
		for _, act := range row {
			if labelMatches(act.Label, target) {
				return act, true
			}
		}
	}
	return chat.Action{}, false
}

// hasAnyAction reports whether the message offers an action for any of
// the given labels.
func hasAnyAction(m *chat.Message, labels []string) bool {
	if m == nil {
		return false
	}
	for _, row := range m.Actions {
		for _, act := range row {
			for _, label := range labels {
				if labelMatches(act.Label, label) {
					return true
				}
			}
		}
	}
	return false
}

// mealConfirmed reports whether the body text marks the meal as already
// selected. The remote bot renders exactly "☑️ <meal>" or "✅ <meal>",
// so this is a literal substring test, not a fuzzy one.
func mealConfirmed(text, meal string) bool {
	return strings.Contains(text, checkedBox+meal) || strings.Contains(text, checkedTick+meal)
}

// confirmedMeals returns the subset of meals the body text marks as
// selected, preserving the order of meals. The body text is the single
// source of truth for what is already ordered.
func confirmedMeals(text string, meals []string) []string {
	if text == "" {
		return nil
	}
	var out []string
	for _, meal := range meals {
		if mealConfirmed(text, meal) {
			out = append(out, meal)
		}
	}
	return out
}

// missingMeals returns the meals not yet confirmed, preserving the
// order of meals.
func missingMeals(meals, confirmed []string) []string {
	if len(confirmed) == 0 {
		return meals
	}
	done := make(map[string]bool, len(confirmed))
	for _, meal := range confirmed {
		done[meal] = true
	}
	var out []string
	for _, meal := range meals {
		if !done[meal] {
			out = append(out, meal)
		}
	}
	return out
}
