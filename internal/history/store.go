// Package history records ordering runs so status output can answer
// "when did this last work" across process restarts.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/autoorder/core/logger"
)

// Run sources.
const (
	SourceSchedule = "schedule"
	SourceManual   = "manual"
)

// Run is one recorded ordering run.
type Run struct {
	ID       int64  `db:"id"`
	Day      string `db:"run_day"`
	Hour     int    `db:"run_hour"`
	Source   string `db:"source"`
	OK       bool   `db:"ok"`
	Verified bool   `db:"verified"`
	Meals    string `db:"meals"`
}

// At builds a Run stamped with now's day and hour. now must already be
// in the ordering timezone.
func At(now time.Time, source string, meals []string, ok, verified bool) Run {
	return Run{
		Day:      now.Format("2006-01-02"),
		Hour:     now.Hour(),
		Source:   source,
		OK:       ok,
		Verified: verified,
		Meals:    strings.Join(meals, ","),
	}
}

// Store persists runs in the runs table.
type Store struct {
	db *sqlx.DB
}

// New wraps the given database handle.
func New(db *sqlx.DB) *Store { return &Store{db: db} }

// Record appends one run outcome.
func (s *Store) Record(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_day, run_hour, source, ok, verified, meals)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.Day, run.Hour, run.Source, run.OK, run.Verified, run.Meals)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	logger.Debug(ctx, "history", "history.record",
		slog.Int("hour", run.Hour),
		slog.Bool("ok", run.OK))
	return nil
}

// LastSuccess returns the most recent successful run, or nil when none
// is recorded yet.
func (s *Store) LastSuccess(ctx context.Context) (*Run, error) {
	var run Run
	err := s.db.GetContext(ctx, &run, `
		SELECT id, run_day, run_hour, source, ok, verified, meals
		FROM runs WHERE ok = 1 ORDER BY id DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last success: %w", err)
	}
	return &run, nil
}

// Recent returns the latest runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 5
	}
	var runs []Run
	if err := s.db.SelectContext(ctx, &runs, `
		SELECT id, run_day, run_hour, source, ok, verified, meals
		FROM runs ORDER BY id DESC LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	return runs, nil
}
