package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// CreateTaskRun opens a response window for a post.
func (s *Store) CreateTaskRun(ctx context.Context, userID, postID int64, startedAt, until time.Time) (*TaskRun, error) {
	run := &TaskRun{
		UserID:    userID,
		PostID:    postID,
		StartedAt: startedAt,
		Until:     until,
		UpdatedAt: time.Now(),
	}
	if _, err := s.db.NewInsert().Model(run).Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to insert task run: %w", err)
	}
	return run, nil
}

// LatestOpenRun returns the newest run whose window is still open, or
// (nil, nil).
func (s *Store) LatestOpenRun(ctx context.Context, userID int64, now time.Time) (*TaskRun, error) {
	run := new(TaskRun)
	err := s.db.NewSelect().Model(run).
		Where("user_id = ?", userID).
		Where("until >= ?", now).
		Order("started_at DESC", "id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return run, nil
}

// LatestOpenRunForPost returns the newest open run for a specific post, or
// (nil, nil).
func (s *Store) LatestOpenRunForPost(ctx context.Context, userID, postID int64, now time.Time) (*TaskRun, error) {
	run := new(TaskRun)
	err := s.db.NewSelect().Model(run).
		Where("user_id = ?", userID).
		Where("post_id = ?", postID).
		Where("until >= ?", now).
		Order("started_at DESC", "id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return run, nil
}

// LatestRunForPost returns the newest run for a post regardless of whether
// its window is still open, or (nil, nil).
func (s *Store) LatestRunForPost(ctx context.Context, userID, postID int64) (*TaskRun, error) {
	run := new(TaskRun)
	err := s.db.NewSelect().Model(run).
		Where("user_id = ?", userID).
		Where("post_id = ?", postID).
		Order("until DESC", "id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return run, nil
}

// CloseRunNow shifts the run's deadline just before now so every subsequent
// "open at now" comparison sees it closed.
func (s *Store) CloseRunNow(ctx context.Context, runID int64, now time.Time) error {
	_, err := s.db.NewUpdate().Model((*TaskRun)(nil)).
		Set("until = ?", now.Add(-time.Microsecond)).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", runID).
		Exec(ctx)
	return err
}

// DeleteRunsForUser wipes all task runs and responses of a user. Used by the
// admin reset so stale final-day runs can't retrigger the summary prompt.
func (s *Store) DeleteRunsForUser(ctx context.Context, userID int64) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*Response)(nil)).Where("user_id = ?", userID).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().Model((*TaskRun)(nil)).Where("user_id = ?", userID).Exec(ctx)
		return err
	})
}

// AddResponse appends an answer to a run with the next sequence number.
func (s *Store) AddResponse(ctx context.Context, runID, userID, postID int64, text string) (*Response, error) {
	var maxSeq sql.NullInt64
	err := s.db.NewSelect().Model((*Response)(nil)).
		ColumnExpr("MAX(seq)").
		Where("run_id = ?", runID).
		Scan(ctx, &maxSeq)
	if err != nil {
		return nil, err
	}

	r := &Response{
		RunID:     runID,
		UserID:    userID,
		PostID:    postID,
		Seq:       int(maxSeq.Int64) + 1,
		Text:      text,
		CreatedAt: time.Now(),
	}
	if _, err := s.db.NewInsert().Model(r).Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to insert response: %w", err)
	}
	return r, nil
}

// CountResponsesForRun returns how many answers a run already holds.
func (s *Store) CountResponsesForRun(ctx context.Context, runID int64) (int, error) {
	return s.db.NewSelect().Model((*Response)(nil)).Where("run_id = ?", runID).Count(ctx)
}

// SummaryForUser returns one item per post in day order. When a post has
// several runs, only the latest run's responses are included.
func (s *Store) SummaryForUser(ctx context.Context, userID int64) ([]SummaryItem, error) {
	posts, err := s.ListAllPosts(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]SummaryItem, 0, len(posts))
	for _, p := range posts {
		run, err := s.latestRunByStart(ctx, userID, p.ID)
		if err != nil {
			return nil, err
		}

		item := SummaryItem{Post: p}
		if run != nil {
			err := s.db.NewSelect().Model(&item.Responses).
				Where("user_id = ?", userID).
				Where("run_id = ?", run.ID).
				Order("seq ASC", "id ASC").
				Scan(ctx)
			if err != nil {
				return nil, err
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Store) latestRunByStart(ctx context.Context, userID, postID int64) (*TaskRun, error) {
	run := new(TaskRun)
	err := s.db.NewSelect().Model(run).
		Where("user_id = ?", userID).
		Where("post_id = ?", postID).
		Order("started_at DESC", "id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return run, nil
}
