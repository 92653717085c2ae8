package settings

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/autoorder/core/database"
	"github.com/m3rciful/autoorder/internal/notify"
)

func testDefaults() Defaults {
	return Defaults{
		ScheduleHours: []int{8},
		Meals:         []string{"Nonushta", "Tushlik", "Kechki ovqat"},
		Notifications: notify.DefaultToggles(),
	}
}

func testDB(t *testing.T) *sqlx.DB {
	t.Helper()
	cfg := database.Config{
		Path:          filepath.Join(t.TempDir(), "autoorder.db"),
		MigrationsDir: "../../migrations",
	}
	if err := database.RunMigrations(cfg); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestStoreStartsFromDefaults(t *testing.T) {
	store, err := NewStore(context.Background(), testDB(t), testDefaults())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if !store.Enabled() {
		t.Fatal("expected ordering enabled out of the box")
	}
	if got := store.SelectedMeals(); strings.Join(got, ",") != "Nonushta,Tushlik,Kechki ovqat" {
		t.Fatalf("unexpected default meals: %v", got)
	}
	if got := store.ScheduleHours(); len(got) != 1 || got[0] != 8 {
		t.Fatalf("unexpected default schedule: %v", got)
	}
	if store.NotifyEnabled("window") {
		t.Fatal("expected window notifications muted by default")
	}
	if !store.NotifyEnabled("success") || !store.NotifyEnabled("some_future_kind") {
		t.Fatal("expected other kinds enabled by default")
	}
}

func TestResolveMeals(t *testing.T) {
	canonical := []string{"Nonushta", "Tushlik", "Kechki ovqat"}

	got, err := ResolveMeals([]string{"dinner", "BREAKFAST"}, canonical)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if strings.Join(got, ",") != "Nonushta,Kechki ovqat" {
		t.Fatalf("expected canonical order, got %v", got)
	}

	got, err = ResolveMeals([]string{"lunch", "Tushlik", "tushlik"}, canonical)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 1 || got[0] != "Tushlik" {
		t.Fatalf("expected deduplication, got %v", got)
	}

	got, err = ResolveMeals([]string{"kechki", "palov"}, canonical)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 1 || got[0] != "Kechki ovqat" {
		t.Fatalf("expected partial resolution, got %v", got)
	}

	if _, err := ResolveMeals([]string{"palov", "somsa"}, canonical); err == nil {
		t.Fatal("expected an error when nothing resolves")
	}
}

func TestSetScheduleHoursCleansInput(t *testing.T) {
	store, err := NewStore(context.Background(), testDB(t), testDefaults())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	ctx := context.Background()

	got, err := store.SetScheduleHours(ctx, []int{17, 8, 8, 99})
	if err != nil {
		t.Fatalf("set schedule: %v", err)
	}
	if len(got) != 2 || got[0] != 8 || got[1] != 17 {
		t.Fatalf("expected [8 17], got %v", got)
	}

	if _, err := store.SetScheduleHours(ctx, []int{-1, 24}); err == nil {
		t.Fatal("expected an error when every hour is invalid")
	}
	if got := store.ScheduleHours(); len(got) != 2 {
		t.Fatalf("expected the failed update to leave state untouched, got %v", got)
	}
}

func TestStorePersistsAcrossReloads(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	store, err := NewStore(ctx, db, testDefaults())
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	if err := store.SetEnabled(ctx, false); err != nil {
		t.Fatalf("set enabled: %v", err)
	}
	if _, err := store.SetSelectedMeals(ctx, []string{"lunch"}); err != nil {
		t.Fatalf("set meals: %v", err)
	}
	if _, err := store.SetScheduleHours(ctx, []int{7, 12}); err != nil {
		t.Fatalf("set schedule: %v", err)
	}
	if err := store.SetNotification(ctx, "success", false); err != nil {
		t.Fatalf("set notification: %v", err)
	}

	fresh, err := NewStore(ctx, db, testDefaults())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if fresh.Enabled() {
		t.Fatal("expected persisted disabled state")
	}
	if got := fresh.SelectedMeals(); len(got) != 1 || got[0] != "Tushlik" {
		t.Fatalf("expected persisted meals, got %v", got)
	}
	if got := fresh.ScheduleHours(); len(got) != 2 || got[0] != 7 || got[1] != 12 {
		t.Fatalf("expected persisted schedule, got %v", got)
	}
	if fresh.NotifyEnabled("success") {
		t.Fatal("expected persisted success toggle")
	}
	if !fresh.NotifyEnabled("crash") {
		t.Fatal("expected untouched kinds to keep their defaults")
	}
}

func TestSetAllNotifications(t *testing.T) {
	store, err := NewStore(context.Background(), testDB(t), testDefaults())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	ctx := context.Background()

	if err := store.SetAllNotifications(ctx, false); err != nil {
		t.Fatalf("set all: %v", err)
	}
	for kind := range notify.DefaultToggles() {
		if store.NotifyEnabled(kind) {
			t.Fatalf("expected %s muted", kind)
		}
	}

	if err := store.SetAllNotifications(ctx, true); err != nil {
		t.Fatalf("set all: %v", err)
	}
	if !store.NotifyEnabled("window") {
		t.Fatal("expected window enabled after all on")
	}
}
