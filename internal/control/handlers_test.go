package control

import (
	"strings"
	"testing"
	"time"

	"github.com/m3rciful/autoorder/internal/history"
	"github.com/m3rciful/autoorder/internal/notify"
	"github.com/m3rciful/autoorder/internal/settings"
)

func TestParseHours(t *testing.T) {
	cases := []struct {
		name     string
		args     []string
		hours    []int
		badCount int
	}{
		{"valid", []string{"8", "14", "17"}, []int{8, 14, 17}, 0},
		{"zero and midnight edge", []string{"0", "23"}, []int{0, 23}, 0},
		{"out of range", []string{"24", "-1", "8"}, []int{8}, 2},
		{"not a number", []string{"eight"}, nil, 1},
		{"empty", nil, nil, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hours, bad := parseHours(tc.args)
			if len(bad) != tc.badCount {
				t.Errorf("parseHours(%v) rejected %v, want %d rejects", tc.args, bad, tc.badCount)
			}
			if len(hours) != len(tc.hours) {
				t.Fatalf("parseHours(%v) = %v, want %v", tc.args, hours, tc.hours)
			}
			for i := range hours {
				if hours[i] != tc.hours[i] {
					t.Fatalf("parseHours(%v) = %v, want %v", tc.args, hours, tc.hours)
				}
			}
		})
	}
}

func TestStatusTextSummarizesState(t *testing.T) {
	zone := time.FixedZone("UTC+5", 5*60*60)
	now := time.Date(2025, 6, 16, 9, 12, 0, 0, zone)
	view := settings.View{
		Enabled:       true,
		ScheduleHours: []int{8, 14},
		Meals:         []string{"Nonushta", "Kechki ovqat"},
		Notifications: map[string]bool{"success": true, "window": false},
	}
	last := &history.Run{Day: "2025-06-15", Hour: 8, Source: history.SourceSchedule, OK: true, Verified: true}
	recent := []history.Run{
		{Day: "2025-06-15", Hour: 8, Source: history.SourceSchedule, OK: true},
		{Day: "2025-06-14", Hour: 8, Source: history.SourceManual, OK: false},
	}

	got := statusText(view, last, recent, now, 6, 19)

	for _, want := range []string{
		"✅ enabled",
		"*Schedule:* 8:00, 14:00",
		"🍳 Nonushta (Breakfast)",
		"🌙 Kechki ovqat (Dinner)",
		"*Notifications:* 1/2 kinds on",
		"*Last success:* 2025-06-15 at 8:00 (schedule, verified)",
		"✅ 2025-06-15 8:00 schedule",
		"❌ 2025-06-14 8:00 manual",
		"*Time:* 2025-06-16 09:12 UTC+5",
		"*Window:* 6:00–19:00",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("status text missing %q:\n%s", want, got)
		}
	}
}

func TestStatusTextWithoutHistory(t *testing.T) {
	zone := time.FixedZone("UTC+5", 5*60*60)
	now := time.Date(2025, 6, 16, 9, 0, 0, 0, zone)
	view := settings.View{Enabled: false, ScheduleHours: []int{8}, Meals: []string{"Tushlik"}}

	got := statusText(view, nil, nil, now, 6, 19)
	if !strings.Contains(got, "❌ disabled") {
		t.Errorf("status text missing disabled state:\n%s", got)
	}
	if !strings.Contains(got, "*Last success:* none recorded") {
		t.Errorf("status text missing empty-history line:\n%s", got)
	}
	if strings.Contains(got, "*Recent runs:*") {
		t.Errorf("status text lists runs with empty history:\n%s", got)
	}
}

func TestMealOverviewMarksSelection(t *testing.T) {
	all := []string{"Nonushta", "Tushlik", "Kechki ovqat"}
	got := mealOverview(all, []string{"Tushlik"})

	if !strings.Contains(got, "☑️ 🍛 Tushlik (Lunch)") {
		t.Errorf("selected meal not checked:\n%s", got)
	}
	if !strings.Contains(got, "⬜ 🍳 Nonushta (Breakfast)") {
		t.Errorf("unselected meal not unchecked:\n%s", got)
	}
}

func TestMealKeyboardPayloads(t *testing.T) {
	all := []string{"Nonushta", "Tushlik", "Kechki ovqat"}
	markup := mealKeyboard(all, []string{"Nonushta", "Kechki ovqat"})

	if len(markup.InlineKeyboard) != 3 {
		t.Fatalf("expected one row per meal, got %d rows", len(markup.InlineKeyboard))
	}
	for i, row := range markup.InlineKeyboard {
		if len(row) != 1 {
			t.Fatalf("row %d has %d buttons, want 1", i, len(row))
		}
		btn := row[0]
		if btn.Unique != mealToggleUnique {
			t.Errorf("row %d unique = %q, want %q", i, btn.Unique, mealToggleUnique)
		}
		if btn.Data != all[i] {
			t.Errorf("row %d payload = %q, want %q", i, btn.Data, all[i])
		}
	}
	if !strings.HasPrefix(markup.InlineKeyboard[0][0].Text, "☑️ ") {
		t.Errorf("selected meal button = %q, want checked prefix", markup.InlineKeyboard[0][0].Text)
	}
	if !strings.HasPrefix(markup.InlineKeyboard[1][0].Text, "⬜ ") {
		t.Errorf("unselected meal button = %q, want unchecked prefix", markup.InlineKeyboard[1][0].Text)
	}
}

func TestNotifyOverviewGlyphs(t *testing.T) {
	got := notifyOverview(map[string]bool{
		"success": true,
		"window":  false,
	})

	if !strings.Contains(got, "🔔 *success*") {
		t.Errorf("enabled kind not marked on:\n%s", got)
	}
	if !strings.Contains(got, "🔕 *window*") {
		t.Errorf("disabled kind not marked off:\n%s", got)
	}
	// Kinds absent from the toggle map default to enabled.
	if !strings.Contains(got, "🔔 *crash*") {
		t.Errorf("unlisted kind not defaulted on:\n%s", got)
	}
	for _, k := range notify.AllKinds {
		if !strings.Contains(got, string(k)) {
			t.Errorf("overview missing kind %s:\n%s", k, got)
		}
	}
}

func TestMealLabelFallsBack(t *testing.T) {
	if got := mealLabel("Palov"); got != "Palov" {
		t.Errorf("mealLabel(Palov) = %q, want the raw name", got)
	}
	if got := mealLabel("Tushlik"); got != "🍛 Tushlik (Lunch)" {
		t.Errorf("mealLabel(Tushlik) = %q", got)
	}
}
