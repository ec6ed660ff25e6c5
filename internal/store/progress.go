package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetOrCreateProgress returns the user's progress row, creating a fresh one
// with the given first send time when absent.
func (s *Store) GetOrCreateProgress(ctx context.Context, userID int64, nextSendAt time.Time) (*Progress, error) {
	p, err := s.GetProgressByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p != nil {
		return p, nil
	}

	p = &Progress{
		UserID:       userID,
		NextPosition: 1,
		NextSendAt:   nextSendAt,
		UpdatedAt:    time.Now(),
	}
	if _, err := s.db.NewInsert().Model(p).Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to insert progress: %w", err)
	}
	return p, nil
}

// GetProgressByUserID returns the user's progress or (nil, nil).
func (s *Store) GetProgressByUserID(ctx context.Context, userID int64) (*Progress, error) {
	p := new(Progress)
	err := s.db.NewSelect().Model(p).Where("user_id = ?", userID).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// SaveProgress persists every mutable field of the progress row.
func (s *Store) SaveProgress(ctx context.Context, p *Progress) error {
	p.UpdatedAt = time.Now()
	_, err := s.db.NewUpdate().Model(p).
		Column("next_position", "next_send_at", "pending_post_id", "active_post_id",
			"active_started_at", "active_until", "summary_prompt_sent", "updated_at").
		WherePK().
		Exec(ctx)
	return err
}

// ResetProgress returns the user to day one with the given next send time.
func (s *Store) ResetProgress(ctx context.Context, userID int64, nextSendAt time.Time) error {
	p, err := s.GetProgressByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if p == nil {
		_, err := s.GetOrCreateProgress(ctx, userID, nextSendAt)
		return err
	}

	p.NextPosition = 1
	p.NextSendAt = nextSendAt
	p.PendingPostID = nil
	p.ActivePostID = nil
	p.ActiveStartedAt = nil
	p.ActiveUntil = nil
	p.SummaryPromptSent = false
	return s.SaveProgress(ctx, p)
}

// ListProgress returns all progress rows ordered by due time, the order the
// scheduler serves users in.
func (s *Store) ListProgress(ctx context.Context) ([]*Progress, error) {
	var rows []*Progress
	err := s.db.NewSelect().Model(&rows).
		Order("next_send_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
