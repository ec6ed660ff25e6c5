package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetAppSettings returns the settings row, creating it with defaults on
// first access.
func (s *Store) GetAppSettings(ctx context.Context) (*AppSettings, error) {
	settings := new(AppSettings)
	err := s.db.NewSelect().Model(settings).Where("id = 1").Limit(1).Scan(ctx)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	settings = &AppSettings{
		ID:                    1,
		GreetingText:          defaultGreetingText,
		ResponseWindowMinutes: defaultResponseWindowMinutes,
		SendIntervalMinutes:   defaultSendIntervalMinutes,
		UpdatedAt:             time.Now(),
	}
	if _, err := s.db.NewInsert().Model(settings).Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to insert app settings: %w", err)
	}
	return settings, nil
}

// SetGreetingText replaces the greeting shown at the end of onboarding.
func (s *Store) SetGreetingText(ctx context.Context, text string) (*AppSettings, error) {
	settings, err := s.GetAppSettings(ctx)
	if err != nil {
		return nil, err
	}
	settings.GreetingText = text
	return settings, s.saveAppSettings(ctx, settings)
}

// SetResponseWindowMinutes updates the response window, clamped to
// 1 minute .. 7 days.
func (s *Store) SetResponseWindowMinutes(ctx context.Context, minutes int) (*AppSettings, error) {
	settings, err := s.GetAppSettings(ctx)
	if err != nil {
		return nil, err
	}
	settings.ResponseWindowMinutes = clamp(minutes, 1, maxResponseWindowMinutes)
	return settings, s.saveAppSettings(ctx, settings)
}

// SetSendIntervalMinutes updates the delivery interval, clamped to
// 1 minute .. 365 days.
func (s *Store) SetSendIntervalMinutes(ctx context.Context, minutes int) (*AppSettings, error) {
	settings, err := s.GetAppSettings(ctx)
	if err != nil {
		return nil, err
	}
	settings.SendIntervalMinutes = clamp(minutes, 1, maxSendIntervalMinutes)
	return settings, s.saveAppSettings(ctx, settings)
}

func (s *Store) saveAppSettings(ctx context.Context, settings *AppSettings) error {
	settings.UpdatedAt = time.Now()
	_, err := s.db.NewUpdate().Model(settings).
		Column("greeting_text", "response_window_minutes", "send_interval_minutes", "updated_at").
		WherePK().
		Exec(ctx)
	return err
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
