// Package settings persists operator-tunable state: selected meals,
// schedule hours, the master switch and notification toggles. Values
// live in the settings table as JSON and are merged over compiled
// defaults at load, so a fresh database starts with sane behavior and
// unknown keys from newer versions are ignored.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/autoorder/core/logger"
)

const (
	keyScheduleHours = "schedule_hours"
	keySelectedMeals = "selected_meals"
	keyEnabled       = "enabled"
	keyNotifications = "notifications"
)

// Defaults seeds a Store before persisted overrides are applied.
// Meals doubles as the canonical meal list and its order.
type Defaults struct {
	ScheduleHours []int
	Meals         []string
	Notifications map[string]bool
}

// Store is safe for concurrent use by the scheduler and the control
// bot handlers. Reads hit the in-memory view; mutations persist first
// and update the view only on success.
type Store struct {
	db       *sqlx.DB
	defaults Defaults

	mu            sync.RWMutex
	scheduleHours []int
	meals         []string
	enabled       bool
	notifications map[string]bool
}

// View is one consistent read of everything status output needs.
type View struct {
	Enabled       bool
	ScheduleHours []int
	Meals         []string
	Notifications map[string]bool
}

// NewStore loads persisted overrides on top of defaults.
func NewStore(ctx context.Context, db *sqlx.DB, defaults Defaults) (*Store, error) {
	s := &Store{
		db:            db,
		defaults:      defaults,
		scheduleHours: append([]int(nil), defaults.ScheduleHours...),
		meals:         append([]string(nil), defaults.Meals...),
		enabled:       true,
		notifications: make(map[string]bool, len(defaults.Notifications)),
	}
	for kind, on := range defaults.Notifications {
		s.notifications[kind] = on
	}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	var rows []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT key, value FROM settings`); err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	for _, row := range rows {
		if err := s.apply(row.Key, []byte(row.Value)); err != nil {
			// A corrupt value falls back to the default for that key.
			logger.Warn(ctx, "settings", "settings.corrupt",
				slog.String("setting", row.Key),
				slog.Any("err", err))
		}
	}
	logger.Info(ctx, "settings", "settings.loaded", slog.Int("count", len(rows)))
	return nil
}

func (s *Store) apply(key string, raw []byte) error {
	switch key {
	case keyScheduleHours:
		var hours []int
		if err := json.Unmarshal(raw, &hours); err != nil {
			return err
		}
		s.scheduleHours = hours
	case keySelectedMeals:
		var meals []string
		if err := json.Unmarshal(raw, &meals); err != nil {
			return err
		}
		s.meals = meals
	case keyEnabled:
		var on bool
		if err := json.Unmarshal(raw, &on); err != nil {
			return err
		}
		s.enabled = on
	case keyNotifications:
		var toggles map[string]bool
		if err := json.Unmarshal(raw, &toggles); err != nil {
			return err
		}
		for kind, on := range toggles {
			s.notifications[kind] = on
		}
	}
	return nil
}

func (s *Store) put(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, string(raw))
	if err != nil {
		return fmt.Errorf("persist %s: %w", key, err)
	}
	return nil
}

// SelectedMeals returns the target meals in canonical order.
func (s *Store) SelectedMeals() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.meals...)
}

// ScheduleHours returns the hours the daemon fires at, sorted.
func (s *Store) ScheduleHours() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]int(nil), s.scheduleHours...)
}

// Enabled reports the master switch.
func (s *Store) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// CanonicalMeals returns every orderable meal in display order.
func (s *Store) CanonicalMeals() []string {
	return append([]string(nil), s.defaults.Meals...)
}

// Notifications returns a copy of the per-kind toggles.
func (s *Store) Notifications() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.notifications))
	for kind, on := range s.notifications {
		out[kind] = on
	}
	return out
}

// NotifyEnabled reports whether the kind should be delivered. Unknown
// kinds default to enabled.
func (s *Store) NotifyEnabled(kind string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if on, ok := s.notifications[kind]; ok {
		return on
	}
	return true
}

// Snapshot returns a consistent view for status output.
func (s *Store) Snapshot() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := View{
		Enabled:       s.enabled,
		ScheduleHours: append([]int(nil), s.scheduleHours...),
		Meals:         append([]string(nil), s.meals...),
		Notifications: make(map[string]bool, len(s.notifications)),
	}
	for kind, on := range s.notifications {
		v.Notifications[kind] = on
	}
	return v
}

// SetEnabled flips the master switch.
func (s *Store) SetEnabled(ctx context.Context, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.put(ctx, keyEnabled, on); err != nil {
		return err
	}
	s.enabled = on
	logger.Info(ctx, "settings", "settings.enabled", slog.Bool("enabled", on))
	return nil
}

// SetScheduleHours replaces the schedule, deduplicated and sorted.
// Hours outside 0..23 are dropped; an empty result is an error.
func (s *Store) SetScheduleHours(ctx context.Context, hours []int) ([]int, error) {
	seen := make(map[int]bool, len(hours))
	clean := make([]int, 0, len(hours))
	for _, h := range hours {
		if h < 0 || h > 23 || seen[h] {
			continue
		}
		seen[h] = true
		clean = append(clean, h)
	}
	sort.Ints(clean)
	if len(clean) == 0 {
		return nil, fmt.Errorf("at least one hour between 0 and 23 is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.put(ctx, keyScheduleHours, clean); err != nil {
		return nil, err
	}
	s.scheduleHours = clean
	hoursList, _ := logger.SummarizeStrings(formatHours(clean), len(clean))
	logger.Info(ctx, "settings", "settings.schedule", slog.String("hours", hoursList))
	return append([]int(nil), clean...), nil
}

// SetSelectedMeals resolves the given aliases or names and replaces
// the selection.
func (s *Store) SetSelectedMeals(ctx context.Context, keys []string) ([]string, error) {
	resolved, err := ResolveMeals(keys, s.CanonicalMeals())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.put(ctx, keySelectedMeals, resolved); err != nil {
		return nil, err
	}
	s.meals = resolved
	mealsList, _ := logger.SummarizeStrings(resolved, len(resolved))
	logger.Info(ctx, "settings", "settings.meals", slog.String("meals", mealsList))
	return append([]string(nil), resolved...), nil
}

// SetNotification toggles delivery of one kind. Kind validation is the
// caller's concern; the store persists whatever key it is given.
func (s *Store) SetNotification(ctx context.Context, kind string, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[string]bool, len(s.notifications)+1)
	for k, v := range s.notifications {
		next[k] = v
	}
	next[kind] = on
	if err := s.put(ctx, keyNotifications, next); err != nil {
		return err
	}
	s.notifications = next
	logger.Info(ctx, "settings", "settings.notify",
		slog.String("kind", kind),
		slog.Bool("enabled", on))
	return nil
}

// SetAllNotifications sets every known kind at once.
func (s *Store) SetAllNotifications(ctx context.Context, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[string]bool, len(s.defaults.Notifications))
	for kind := range s.defaults.Notifications {
		next[kind] = on
	}
	if err := s.put(ctx, keyNotifications, next); err != nil {
		return err
	}
	s.notifications = next
	logger.Info(ctx, "settings", "settings.notify_all", slog.Bool("enabled", on))
	return nil
}

func formatHours(hours []int) []string {
	out := make([]string, len(hours))
	for i, h := range hours {
		out[i] = fmt.Sprintf("%d:00", h)
	}
	return out
}
