package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mschirtzinger/personal-dash/internal/schema"
)

// user_config keys.
const (
	keyHorizonDays     = "horizon_days"
	keyRefreshInterval = "refresh_interval_minutes"
	keySelection       = "selected_calendar_ids"
	keyLastSyncAt      = "last_sync_at"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func putConfig(ctx context.Context, ex execer, key, value string) error {
	_, err := ex.ExecContext(ctx, `
	INSERT INTO user_config (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func getConfig(ctx context.Context, q querier, key string) (string, bool, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM user_config WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, true, nil
}

func putSelection(ctx context.Context, ex execer, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to marshal selection: %w", err)
	}
	return putConfig(ctx, ex, keySelection, string(data))
}

// GetSettings returns the persisted settings, filling defaults for missing keys.
func (db *DB) GetSettings(ctx context.Context) (*schema.Settings, error) {
	s := schema.DefaultSettings()

	if v, ok, err := getConfig(ctx, db.conn, keyHorizonDays); err != nil {
		return nil, err
	} else if ok {
		if n, err := strconv.Atoi(v); err == nil {
			s.HorizonDays = n
		}
	}
	if v, ok, err := getConfig(ctx, db.conn, keyRefreshInterval); err != nil {
		return nil, err
	} else if ok {
		if n, err := strconv.Atoi(v); err == nil {
			s.RefreshIntervalMinutes = n
		}
	}
	if v, ok, err := getConfig(ctx, db.conn, keySelection); err != nil {
		return nil, err
	} else if ok && v != "" {
		if err := json.Unmarshal([]byte(v), &s.SelectedCalendarIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal selection: %w", err)
		}
	}
	if s.SelectedCalendarIDs == nil {
		s.SelectedCalendarIDs = []string{}
	}
	if v, ok, err := getConfig(ctx, db.conn, keyLastSyncAt); err != nil {
		return nil, err
	} else if ok {
		s.LastSyncAt = nullStringToTime(sql.NullString{String: v, Valid: true})
	}
	return s, nil
}

// UpdateSettings validates and persists horizon, refresh interval and
// selection. LastSyncAt is owned by the sync engine and ignored here.
func (db *DB) UpdateSettings(ctx context.Context, s *schema.Settings) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if err := putConfig(ctx, tx, keyHorizonDays, strconv.Itoa(s.HorizonDays)); err != nil {
			return err
		}
		if err := putConfig(ctx, tx, keyRefreshInterval, strconv.Itoa(s.RefreshIntervalMinutes)); err != nil {
			return err
		}
		if err := putSelection(ctx, tx, s.SelectedCalendarIDs); err != nil {
			return err
		}
		return reflectSelection(ctx, tx, s.SelectedCalendarIDs)
	})
}

// SetLastSyncAt records the completion time of a sync batch.
func (db *DB) SetLastSyncAt(ctx context.Context, t time.Time) error {
	return putConfig(ctx, db.conn, keyLastSyncAt, formatTime(t))
}
