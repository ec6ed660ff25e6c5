package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// CountPosts returns the number of posts.
func (s *Store) CountPosts(ctx context.Context) (int, error) {
	return s.db.NewSelect().Model((*Post)(nil)).Count(ctx)
}

// ListPosts returns a page of posts ordered by position.
func (s *Store) ListPosts(ctx context.Context, limit, offset int) ([]*Post, error) {
	var posts []*Post
	err := s.db.NewSelect().Model(&posts).
		Order("position ASC", "id ASC").
		Limit(limit).Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// ListAllPosts returns every post ordered by position.
func (s *Store) ListAllPosts(ctx context.Context) ([]*Post, error) {
	var posts []*Post
	if err := s.db.NewSelect().Model(&posts).Order("position ASC", "id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return posts, nil
}

// GetPost returns the post by id or (nil, nil). Lookups are served from the
// LRU cache when possible.
func (s *Store) GetPost(ctx context.Context, id int64) (*Post, error) {
	if p, ok := s.posts.get(id); ok {
		return p, nil
	}

	p := new(Post)
	err := s.db.NewSelect().Model(p).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.posts.add(p)
	return p, nil
}

// GetPostByPosition returns the post at the given day position or (nil, nil).
func (s *Store) GetPostByPosition(ctx context.Context, position int) (*Post, error) {
	p := new(Post)
	err := s.db.NewSelect().Model(p).Where("position = ?", position).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// CreatePost appends a post at the end of the ordering.
func (s *Store) CreatePost(ctx context.Context, title, textHTML, mediaType, fileID string) (*Post, error) {
	maxPos, err := s.maxPosition(ctx)
	if err != nil {
		return nil, err
	}

	p := &Post{
		Position:  maxPos + 1,
		Title:     strings.TrimSpace(title),
		TextHTML:  textHTML,
		MediaType: mediaType,
		FileID:    fileID,
		UpdatedAt: time.Now(),
	}
	if _, err := s.db.NewInsert().Model(p).Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to insert post: %w", err)
	}
	s.posts.purge()
	return p, nil
}

// UpdatePostTitle replaces the post title.
func (s *Store) UpdatePostTitle(ctx context.Context, id int64, title string) error {
	return s.updatePost(ctx, id, func(q *bun.UpdateQuery) {
		q.Set("title = ?", strings.TrimSpace(title))
	})
}

// UpdatePostText replaces the post body HTML.
func (s *Store) UpdatePostText(ctx context.Context, id int64, textHTML string) error {
	return s.updatePost(ctx, id, func(q *bun.UpdateQuery) {
		q.Set("text_html = ?", textHTML)
	})
}

// UpdatePostMedia replaces the attached media; empty values detach it.
func (s *Store) UpdatePostMedia(ctx context.Context, id int64, mediaType, fileID string) error {
	return s.updatePost(ctx, id, func(q *bun.UpdateQuery) {
		q.Set("media_type = ?", mediaType).Set("file_id = ?", fileID)
	})
}

func (s *Store) updatePost(ctx context.Context, id int64, apply func(*bun.UpdateQuery)) error {
	q := s.db.NewUpdate().Model((*Post)(nil)).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id)
	apply(q)
	if _, err := q.Exec(ctx); err != nil {
		return err
	}
	s.posts.purge()
	return nil
}

// DeletePost removes a post and compacts the positions above it.
func (s *Store) DeletePost(ctx context.Context, id int64) (bool, error) {
	p := new(Post)
	err := s.db.NewSelect().Model(p).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*Post)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewUpdate().Model((*Post)(nil)).
			Set("position = position - 1").
			Set("updated_at = ?", time.Now()).
			Where("position > ?", p.Position).
			Exec(ctx)
		return err
	})
	if err != nil {
		return false, err
	}
	s.posts.purge()
	return true, nil
}

// MovePost swaps the post with its neighbor in the given direction
// ("up" or "down"). Returns false when the move is impossible.
func (s *Store) MovePost(ctx context.Context, id int64, direction string) (bool, error) {
	var delta int
	switch direction {
	case "up":
		delta = -1
	case "down":
		delta = 1
	default:
		return false, nil
	}

	p := new(Post)
	err := s.db.NewSelect().Model(p).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	targetPos := p.Position + delta
	if targetPos < 1 {
		return false, nil
	}

	other := new(Post)
	err = s.db.NewSelect().Model(other).Where("position = ?", targetPos).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	now := time.Now()
	// The unique(position) constraint is checked immediately on SQLite, so
	// the swap goes through position 0, which is outside 1..N.
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		steps := []struct {
			id  int64
			pos int
		}{
			{p.ID, 0},
			{other.ID, p.Position},
			{p.ID, targetPos},
		}
		for _, st := range steps {
			if _, err := tx.NewUpdate().Model((*Post)(nil)).
				Set("position = ?", st.pos).
				Set("updated_at = ?", now).
				Where("id = ?", st.id).
				Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	s.posts.purge()
	return true, nil
}

// ReplacePostAtPosition overwrites all content fields of the post at the
// given position, creating it when absent. Returns true when a post was
// created. Unlike CreatePost the position is explicit, so seeding can keep
// JSON ordering even around skipped entries.
func (s *Store) ReplacePostAtPosition(ctx context.Context, position int, title, textHTML, mediaType, fileID string) (bool, error) {
	existing, err := s.GetPostByPosition(ctx, position)
	if err != nil {
		return false, err
	}

	if existing != nil {
		_, err := s.db.NewUpdate().Model((*Post)(nil)).
			Set("title = ?", strings.TrimSpace(title)).
			Set("text_html = ?", textHTML).
			Set("media_type = ?", mediaType).
			Set("file_id = ?", fileID).
			Set("updated_at = ?", time.Now()).
			Where("id = ?", existing.ID).
			Exec(ctx)
		if err != nil {
			return false, err
		}
		s.posts.purge()
		return false, nil
	}

	p := &Post{
		Position:  position,
		Title:     strings.TrimSpace(title),
		TextHTML:  textHTML,
		MediaType: mediaType,
		FileID:    fileID,
		UpdatedAt: time.Now(),
	}
	if _, err := s.db.NewInsert().Model(p).Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to insert post: %w", err)
	}
	s.posts.purge()
	return true, nil
}

// DeleteAllPosts wipes the posts table. Used by wipe-mode seeding.
func (s *Store) DeleteAllPosts(ctx context.Context) error {
	if _, err := s.db.NewDelete().Model((*Post)(nil)).Where("1 = 1").Exec(ctx); err != nil {
		return err
	}
	s.posts.purge()
	return nil
}

// DeletePostsAbove removes posts past the given position, trimming a stale
// tail when the seed file shrank.
func (s *Store) DeletePostsAbove(ctx context.Context, position int) error {
	if _, err := s.db.NewDelete().Model((*Post)(nil)).Where("position > ?", position).Exec(ctx); err != nil {
		return err
	}
	s.posts.purge()
	return nil
}

func (s *Store) maxPosition(ctx context.Context) (int, error) {
	var max sql.NullInt64
	err := s.db.NewSelect().Model((*Post)(nil)).
		ColumnExpr("MAX(position)").
		Scan(ctx, &max)
	if err != nil {
		return 0, err
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64), nil
}
