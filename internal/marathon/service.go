// Package marathon implements the challenge flow: delivering daily tasks,
// opening response windows, collecting answers and building summaries.
package marathon

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"marathonbot/internal/config"
	"marathonbot/internal/store"
)

// Notifier delivers marathon messages to a Telegram chat. The bot layer
// implements it; keeping it an interface lets service tests run without a
// live bot.
type Notifier interface {
	SendTaskNotification(ctx context.Context, chatID int64, post *store.Post) error
	SendSummaryPrompt(ctx context.Context, chatID int64) error
}

var (
	// ErrUserNotFound is returned for operations that require a known user.
	ErrUserNotFound = errors.New("user not found")
	// ErrPostNotFound is returned when the referenced task no longer exists.
	ErrPostNotFound = errors.New("post not found")
	// ErrNoOpenRun is returned when the response window is already closed.
	ErrNoOpenRun = errors.New("no open task run")
)

// DeliveryStatus describes the outcome of an on-demand task delivery.
type DeliveryStatus string

const (
	DeliverySent           DeliveryStatus = "sent"
	DeliveryAlreadyPending DeliveryStatus = "already_pending"
	DeliveryAlreadyActive  DeliveryStatus = "already_active"
	DeliveryTooEarly       DeliveryStatus = "too_early"
	DeliveryDone           DeliveryStatus = "done"
	DeliveryMissingPost    DeliveryStatus = "missing_post"
	DeliveryNoUser         DeliveryStatus = "no_user"
	DeliveryNotOnboarded   DeliveryStatus = "not_onboarded"
)

// Service owns the marathon state machine on top of the store.
//
// All timestamps flow through Now(), which yields wall time in the
// configured marathon timezone so comparisons behave the same on SQLite
// and PostgreSQL.
type Service struct {
	store    *store.Store
	cfg      *config.Config
	notifier Notifier
	logger   *zap.Logger

	loc *time.Location
	now func() time.Time
}

// NewService creates the marathon service.
func NewService(st *store.Store, cfg *config.Config, notifier Notifier, logger *zap.Logger) *Service {
	loc := cfg.Location()
	return &Service{
		store:    st,
		cfg:      cfg,
		notifier: notifier,
		logger:   logger.Named("marathon"),
		loc:      loc,
		now: func() time.Time {
			return time.Now().In(loc)
		},
	}
}

// Now returns the current time in the marathon timezone.
func (s *Service) Now() time.Time {
	return s.now()
}

// MaxResponsesPerTask returns the per-run answer cap.
func (s *Service) MaxResponsesPerTask() int {
	return s.cfg.Marathon.MaxResponsesPerTask
}

// FloorMinute drops seconds and below. Scheduling granularity is one minute.
func FloorMinute(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}

// RegisterUser records first contact with the bot and synchronizes the
// stored admin flag with the config.
func (s *Service) RegisterUser(ctx context.Context, telegramID int64) (*store.User, error) {
	u, err := s.store.UpsertUser(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetUserAdminFlag(ctx, telegramID, s.cfg.IsAdmin(telegramID)); err != nil {
		return nil, err
	}
	return u, nil
}

// MarkOnboarded stamps onboarding completion. Only the first call records a
// timestamp; repeated presses of the go button are no-ops.
func (s *Service) MarkOnboarded(ctx context.Context, telegramID int64) error {
	u, err := s.store.UpsertUser(ctx, telegramID)
	if err != nil {
		return err
	}
	return s.store.MarkUserOnboarded(ctx, u.ID, FloorMinute(s.now()))
}

// SendDueTaskNow delivers the next due task to a single user, with the same
// semantics the scheduler uses: one task at a time, honoring next_send_at.
// Used right after onboarding so the first task arrives immediately.
func (s *Service) SendDueTaskNow(ctx context.Context, telegramID int64) (DeliveryStatus, error) {
	now := s.now()
	nowMin := FloorMinute(now)

	user, err := s.store.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return DeliveryNoUser, nil
	}
	if user.OnboardedAt == nil {
		return DeliveryNotOnboarded, nil
	}

	prog, err := s.store.GetOrCreateProgress(ctx, user.ID, nowMin)
	if err != nil {
		return "", err
	}

	// At the very beginning the first task is allowed immediately, even if
	// the initial next_send_at landed in the future.
	if prog.NextPosition == 1 && prog.NextSendAt.After(nowMin) {
		prog.NextSendAt = nowMin
		if err := s.store.SaveProgress(ctx, prog); err != nil {
			return "", err
		}
	}

	if prog.PendingPostID != nil {
		post, err := s.store.GetPost(ctx, *prog.PendingPostID)
		if err != nil {
			return "", err
		}
		if post != nil {
			if err := s.notifier.SendTaskNotification(ctx, telegramID, post); err != nil {
				return "", err
			}
		}
		return DeliveryAlreadyPending, nil
	}
	if prog.ActivePostID != nil {
		return DeliveryAlreadyActive, nil
	}

	if prog.NextSendAt.After(nowMin) {
		return DeliveryTooEarly, nil
	}

	maxPosts, err := s.store.CountPosts(ctx)
	if err != nil {
		return "", err
	}
	if prog.NextPosition > maxPosts {
		return DeliveryDone, nil
	}

	post, err := s.store.GetPostByPosition(ctx, prog.NextPosition)
	if err != nil {
		return "", err
	}
	if post == nil {
		return DeliveryMissingPost, nil
	}

	if err := s.notifier.SendTaskNotification(ctx, telegramID, post); err != nil {
		return "", err
	}
	prog.PendingPostID = &post.ID
	prog.NextPosition++
	if err := s.store.SaveProgress(ctx, prog); err != nil {
		return "", err
	}
	return DeliverySent, nil
}

// StartedTask describes an opened (or rejoined) response window.
type StartedTask struct {
	Post          *store.Post
	Until         time.Time
	WindowMinutes int
	MaxResponses  int
	Reused        bool
}

// StartTask opens the response window for a delivered task. When a window
// for the same post is already open, the existing deadline is kept so the
// timer can't be restarted by pressing the button again.
func (s *Service) StartTask(ctx context.Context, telegramID, postID int64) (*StartedTask, error) {
	now := s.now()

	user, err := s.store.UpsertUser(ctx, telegramID)
	if err != nil {
		return nil, err
	}

	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound
	}

	prog, err := s.store.GetOrCreateProgress(ctx, user.ID, now)
	if err != nil {
		return nil, err
	}

	settings, err := s.store.GetAppSettings(ctx)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.LatestOpenRunForPost(ctx, user.ID, post.ID, now)
	if err != nil {
		return nil, err
	}

	var until time.Time
	reused := existing != nil
	if reused {
		until = existing.Until
	} else {
		until = now.Add(time.Duration(settings.ResponseWindowMinutes) * time.Minute)
		if _, err := s.store.CreateTaskRun(ctx, user.ID, post.ID, now, until); err != nil {
			return nil, err
		}
	}

	if prog.PendingPostID != nil && *prog.PendingPostID == post.ID {
		prog.PendingPostID = nil
	}
	prog.ActivePostID = &post.ID
	prog.ActiveStartedAt = &now
	prog.ActiveUntil = &until
	if err := s.store.SaveProgress(ctx, prog); err != nil {
		return nil, err
	}

	return &StartedTask{
		Post:          post,
		Until:         until,
		WindowMinutes: settings.ResponseWindowMinutes,
		MaxResponses:  s.cfg.Marathon.MaxResponsesPerTask,
		Reused:        reused,
	}, nil
}

// AnswerResult describes a recorded answer.
type AnswerResult struct {
	PostID          int64
	Seq             int
	Remaining       int
	Closed          bool
	IntervalMinutes int
}

// RecordAnswer saves a user answer against the matching open run.
//
// replyDay routes the answer to a specific day when the user replied to a
// task message; zero means "latest open run". A nil result with nil error
// means the message was silently ignored (no open window, or the cap was
// already reached). When the answer is the last allowed one, the run is
// closed and the next task is scheduled from the close time.
func (s *Service) RecordAnswer(ctx context.Context, telegramID int64, replyDay int, text string) (*AnswerResult, error) {
	if text == "" {
		return nil, nil
	}
	now := s.now()

	user, err := s.store.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}

	var run *store.TaskRun
	if replyDay > 0 {
		post, err := s.store.GetPostByPosition(ctx, replyDay)
		if err != nil {
			return nil, err
		}
		if post != nil {
			run, err = s.store.LatestOpenRunForPost(ctx, user.ID, post.ID, now)
			if err != nil {
				return nil, err
			}
		}
	}
	if run == nil && replyDay == 0 {
		run, err = s.store.LatestOpenRun(ctx, user.ID, now)
		if err != nil {
			return nil, err
		}
	}
	if run == nil {
		return nil, nil
	}

	maxResponses := s.cfg.Marathon.MaxResponsesPerTask
	count, err := s.store.CountResponsesForRun(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	if count >= maxResponses {
		// Cap already reached; close the stale window silently.
		if err := s.store.CloseRunNow(ctx, run.ID, now); err != nil {
			return nil, err
		}
		return nil, nil
	}

	post, err := s.store.GetPost(ctx, run.PostID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, nil
	}

	resp, err := s.store.AddResponse(ctx, run.ID, user.ID, post.ID, text)
	if err != nil {
		return nil, err
	}

	settings, err := s.store.GetAppSettings(ctx)
	if err != nil {
		return nil, err
	}

	result := &AnswerResult{
		PostID:          post.ID,
		Seq:             resp.Seq,
		Remaining:       maxResponses - (count + 1),
		IntervalMinutes: settings.SendIntervalMinutes,
	}
	if result.Remaining < 0 {
		result.Remaining = 0
	}

	if count+1 >= maxResponses {
		if err := s.store.CloseRunNow(ctx, run.ID, now); err != nil {
			return nil, err
		}
		if err := s.closeActiveAndReschedule(ctx, user.ID, now, settings.SendIntervalMinutes); err != nil {
			return nil, err
		}
		result.Closed = true
	}
	return result, nil
}

// CompleteTask closes the response window early when the user presses the
// done button. Returns the send interval in minutes for the confirmation
// message.
func (s *Service) CompleteTask(ctx context.Context, telegramID, postID int64) (int, error) {
	now := s.now()

	user, err := s.store.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return 0, err
	}
	if user == nil {
		return 0, ErrUserNotFound
	}

	settings, err := s.store.GetAppSettings(ctx)
	if err != nil {
		return 0, err
	}

	run, err := s.store.LatestOpenRunForPost(ctx, user.ID, postID, now)
	if err != nil {
		return 0, err
	}
	if run == nil {
		return 0, ErrNoOpenRun
	}

	if err := s.store.CloseRunNow(ctx, run.ID, now); err != nil {
		return 0, err
	}

	prog, err := s.store.GetProgressByUserID(ctx, user.ID)
	if err != nil {
		return 0, err
	}
	if prog != nil {
		if prog.ActivePostID != nil && *prog.ActivePostID == postID {
			prog.ActivePostID = nil
			prog.ActiveStartedAt = nil
			prog.ActiveUntil = nil
		}
		prog.PendingPostID = nil
		prog.NextSendAt = FloorMinute(now).Add(time.Duration(settings.SendIntervalMinutes) * time.Minute)
		if err := s.store.SaveProgress(ctx, prog); err != nil {
			return 0, err
		}
	}
	return settings.SendIntervalMinutes, nil
}

// Summary returns the user's answers grouped per day.
func (s *Service) Summary(ctx context.Context, telegramID int64) ([]store.SummaryItem, error) {
	user, err := s.store.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return s.store.SummaryForUser(ctx, user.ID)
}

// ForgetUser wipes a user completely. Bound to /null.
func (s *Service) ForgetUser(ctx context.Context, telegramID int64) (bool, error) {
	return s.store.DeleteUserByTelegramID(ctx, telegramID)
}

// ResetUser returns a user to day one. Runs and responses are wiped so a
// stale final-day run can't retrigger the summary prompt.
func (s *Service) ResetUser(ctx context.Context, userID int64, nextSendAt time.Time) error {
	if err := s.store.DeleteRunsForUser(ctx, userID); err != nil {
		return err
	}
	return s.store.ResetProgress(ctx, userID, nextSendAt)
}

// ResetAllUsers resets every known user.
func (s *Service) ResetAllUsers(ctx context.Context, nextSendAt time.Time) error {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		if err := s.ResetUser(ctx, u.ID, nextSendAt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) closeActiveAndReschedule(ctx context.Context, userID int64, now time.Time, intervalMinutes int) error {
	prog, err := s.store.GetProgressByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if prog == nil {
		return nil
	}
	prog.ActivePostID = nil
	prog.ActiveStartedAt = nil
	prog.ActiveUntil = nil
	prog.PendingPostID = nil
	prog.NextSendAt = FloorMinute(now).Add(time.Duration(intervalMinutes) * time.Minute)
	return s.store.SaveProgress(ctx, prog)
}
