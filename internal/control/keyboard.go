package control

import tele "gopkg.in/telebot.v4"

// mealToggleUnique routes meal keyboard callbacks.
const mealToggleUnique = "meal_toggle"

// mealDisplay maps canonical meal names to their pretty labels.
var mealDisplay = map[string]string{
	"Nonushta":     "🍳 Nonushta (Breakfast)",
	"Tushlik":      "🍛 Tushlik (Lunch)",
	"Kechki ovqat": "🌙 Kechki ovqat (Dinner)",
}

func mealLabel(name string) string {
	if label, ok := mealDisplay[name]; ok {
		return label
	}
	return name
}

// mealKeyboard builds one toggle row per meal. The callback payload is
// the canonical meal name.
func mealKeyboard(all, selected []string) *tele.ReplyMarkup {
	on := make(map[string]bool, len(selected))
	for _, m := range selected {
		on[m] = true
	}

	markup := &tele.ReplyMarkup{}
	rows := make([]tele.Row, 0, len(all))
	for _, m := range all {
		check := "⬜"
		if on[m] {
			check = "☑️"
		}
		rows = append(rows, markup.Row(markup.Data(check+" "+mealLabel(m), mealToggleUnique, m)))
	}
	markup.Inline(rows...)
	return markup
}
