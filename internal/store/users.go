package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// UpsertUser returns the user with the given Telegram id, creating it on
// first contact.
func (s *Store) UpsertUser(ctx context.Context, telegramID int64) (*User, error) {
	u, err := s.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if u != nil {
		return u, nil
	}

	u = &User{
		TelegramID: telegramID,
		CreatedAt:  time.Now(),
	}
	if _, err := s.db.NewInsert().Model(u).Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return u, nil
}

// GetUserByTelegramID returns the user or (nil, nil) when unknown.
func (s *Store) GetUserByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	u := new(User)
	err := s.db.NewSelect().Model(u).Where("telegram_id = ?", telegramID).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// GetUserByID returns the user by primary key or (nil, nil).
func (s *Store) GetUserByID(ctx context.Context, id int64) (*User, error) {
	u := new(User)
	err := s.db.NewSelect().Model(u).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// SetUserAdminFlag synchronizes the stored admin flag with the config.
func (s *Store) SetUserAdminFlag(ctx context.Context, telegramID int64, isAdmin bool) error {
	_, err := s.db.NewUpdate().Model((*User)(nil)).
		Set("is_admin = ?", isAdmin).
		Where("telegram_id = ?", telegramID).
		Exec(ctx)
	return err
}

// SetUserFullName stores the onboarding full name.
func (s *Store) SetUserFullName(ctx context.Context, userID int64, fullName string) error {
	return s.setUserField(ctx, userID, "full_name", fullName)
}

// SetUserRegion stores the onboarding region.
func (s *Store) SetUserRegion(ctx context.Context, userID int64, region string) error {
	return s.setUserField(ctx, userID, "region", region)
}

// SetUserEmail stores the onboarding email.
func (s *Store) SetUserEmail(ctx context.Context, userID int64, email string) error {
	return s.setUserField(ctx, userID, "email", email)
}

func (s *Store) setUserField(ctx context.Context, userID int64, column, value string) error {
	_, err := s.db.NewUpdate().Model((*User)(nil)).
		Set(column+" = ?", value).
		Where("id = ?", userID).
		Exec(ctx)
	return err
}

// MarkUserOnboarded stamps onboarded_at once; later calls keep the first
// timestamp.
func (s *Store) MarkUserOnboarded(ctx context.Context, userID int64, at time.Time) error {
	_, err := s.db.NewUpdate().Model((*User)(nil)).
		Set("onboarded_at = ?", at).
		Where("id = ?", userID).
		Where("onboarded_at IS NULL").
		Exec(ctx)
	return err
}

// DeleteUserByTelegramID removes the user together with progress, runs and
// responses. Dependent rows are deleted explicitly rather than via cascades
// so the behavior doesn't depend on engine foreign-key settings.
func (s *Store) DeleteUserByTelegramID(ctx context.Context, telegramID int64) (bool, error) {
	u, err := s.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return false, err
	}
	if u == nil {
		return false, nil
	}

	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*Response)(nil)).Where("user_id = ?", u.ID).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*TaskRun)(nil)).Where("user_id = ?", u.ID).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*Progress)(nil)).Where("user_id = ?", u.ID).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().Model((*User)(nil)).Where("id = ?", u.ID).Exec(ctx)
		return err
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListUsers returns all users.
func (s *Store) ListUsers(ctx context.Context) ([]*User, error) {
	var users []*User
	if err := s.db.NewSelect().Model(&users).Order("id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return users, nil
}

// CountUsers returns the number of known users.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	return s.db.NewSelect().Model((*User)(nil)).Count(ctx)
}
