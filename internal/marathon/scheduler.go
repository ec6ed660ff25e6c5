package marathon

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"marathonbot/internal/store"
	"marathonbot/pkg/util"
)

// tickPeriod is how often the scheduler scans progress rows. Delivery
// granularity is one minute, so a few seconds keeps sends punctual without
// hammering the database.
const tickPeriod = 5 * time.Second

// Scheduler periodically walks all progress rows and:
//
//   - closes expired response windows
//   - sends the one-time summary prompt after the final window closes
//   - delivers due tasks and advances next_send_at
type Scheduler struct {
	svc    *Service
	store  *store.Store
	logger *zap.Logger

	mu     sync.Mutex
	runner *util.IntervalRunner
}

// NewScheduler creates the scheduler. Call Start to begin ticking.
func NewScheduler(svc *Service, st *store.Store, logger *zap.Logger) *Scheduler {
	s := &Scheduler{
		svc:    svc,
		store:  st,
		logger: logger.Named("scheduler"),
	}
	s.runner = util.NewIntervalRunner(tickPeriod, func() {
		s.Tick(context.Background())
	})
	return s
}

// Start launches the periodic tick. The first tick fires immediately so due
// deliveries aren't delayed by the period after a restart.
func (s *Scheduler) Start() {
	s.runner.Start()
	s.logger.Info("scheduler started", zap.Duration("period", tickPeriod))
}

// Stop halts ticking and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.runner.Stop()
	s.logger.Info("scheduler stopped")
}

// Tick runs one scheduler pass. Safe to call concurrently; passes are
// serialized in-process by a mutex and across processes by the PostgreSQL
// advisory lock (two accidentally running instances must not double-send).
func (s *Scheduler) Tick(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	got, err := s.store.TryAdvisoryLock(ctx)
	if err != nil {
		s.logger.Warn("advisory lock failed", zap.Error(err))
		return
	}
	if !got {
		return
	}
	defer s.store.AdvisoryUnlock(ctx)

	if err := s.tick(ctx); err != nil {
		s.logger.Error("tick failed", zap.Error(err))
	}
}

func (s *Scheduler) tick(ctx context.Context) error {
	now := s.svc.Now()

	settings, err := s.store.GetAppSettings(ctx)
	if err != nil {
		return err
	}
	interval := time.Duration(settings.SendIntervalMinutes) * time.Minute

	maxPosts, err := s.store.CountPosts(ctx)
	if err != nil {
		return err
	}
	var lastPost *store.Post
	if maxPosts > 0 {
		if lastPost, err = s.store.GetPostByPosition(ctx, maxPosts); err != nil {
			return err
		}
	}

	rows, err := s.store.ListProgress(ctx)
	if err != nil {
		return err
	}

	for _, prog := range rows {
		if err := s.closeExpiredWindow(ctx, prog, now); err != nil {
			s.logger.Warn("failed to close expired window",
				zap.Int64("user_id", prog.UserID), zap.Error(err))
		}

		if lastPost != nil {
			s.maybeSendSummaryPrompt(ctx, prog, lastPost, maxPosts, now)
		}

		if prog.NextPosition <= maxPosts && !prog.NextSendAt.After(now) {
			s.deliverDue(ctx, prog, now, interval)
		}
	}
	return nil
}

func (s *Scheduler) closeExpiredWindow(ctx context.Context, prog *store.Progress, now time.Time) error {
	if prog.ActiveUntil == nil || now.Before(*prog.ActiveUntil) {
		return nil
	}
	prog.ActivePostID = nil
	prog.ActiveStartedAt = nil
	prog.ActiveUntil = nil
	return s.store.SaveProgress(ctx, prog)
}

// maybeSendSummaryPrompt fires once per user, after every task has been
// delivered and the final task's window has closed.
func (s *Scheduler) maybeSendSummaryPrompt(ctx context.Context, prog *store.Progress, lastPost *store.Post, maxPosts int, now time.Time) {
	if prog.SummaryPromptSent || prog.NextPosition <= maxPosts {
		return
	}

	lastRun, err := s.store.LatestRunForPost(ctx, prog.UserID, lastPost.ID)
	if err != nil {
		s.logger.Warn("failed to load final run", zap.Int64("user_id", prog.UserID), zap.Error(err))
		return
	}
	if lastRun == nil || now.Before(lastRun.Until) {
		return
	}

	user, err := s.store.GetUserByID(ctx, prog.UserID)
	if err != nil || user == nil {
		return
	}
	if err := s.svc.notifier.SendSummaryPrompt(ctx, user.TelegramID); err != nil {
		s.logger.Warn("failed to send summary prompt",
			zap.Int64("chat_id", user.TelegramID), zap.Error(err))
		return
	}

	prog.SummaryPromptSent = true
	if err := s.store.SaveProgress(ctx, prog); err != nil {
		s.logger.Warn("failed to mark summary prompt", zap.Int64("user_id", prog.UserID), zap.Error(err))
	}
}

func (s *Scheduler) deliverDue(ctx context.Context, prog *store.Progress, now time.Time, interval time.Duration) {
	post, err := s.store.GetPostByPosition(ctx, prog.NextPosition)
	if err != nil {
		s.logger.Warn("failed to load due post", zap.Int("position", prog.NextPosition), zap.Error(err))
		return
	}
	if post == nil {
		// A gap in positions, usually bad seeding. Don't advance, or days
		// would be skipped; retry after the interval.
		s.logger.Info("skip missing post",
			zap.Int("position", prog.NextPosition),
			zap.Int64("user_id", prog.UserID))
		prog.NextSendAt = now.Add(interval)
		if err := s.store.SaveProgress(ctx, prog); err != nil {
			s.logger.Warn("failed to reschedule", zap.Int64("user_id", prog.UserID), zap.Error(err))
		}
		return
	}

	// A new task silently supersedes the previous active window.
	if prog.ActivePostID != nil {
		prog.ActivePostID = nil
		prog.ActiveStartedAt = nil
		prog.ActiveUntil = nil
	}

	user, err := s.store.GetUserByID(ctx, prog.UserID)
	if err != nil {
		s.logger.Warn("failed to load user", zap.Int64("user_id", prog.UserID), zap.Error(err))
		return
	}
	if user == nil {
		s.logger.Warn("no chat for progress row", zap.Int64("user_id", prog.UserID))
		return
	}

	s.logger.Info("sending due task",
		zap.Int64("user_id", prog.UserID),
		zap.Int64("chat_id", user.TelegramID),
		zap.Int("position", prog.NextPosition),
		zap.Int64("post_id", post.ID),
		zap.Time("next_send_at", prog.NextSendAt))

	if err := s.svc.notifier.SendTaskNotification(ctx, user.TelegramID, post); err != nil {
		s.logger.Error("failed to send task notification",
			zap.Int64("chat_id", user.TelegramID),
			zap.Int64("post_id", post.ID),
			zap.Error(err))
		return
	}

	prog.PendingPostID = &post.ID
	prog.NextPosition++
	prog.NextSendAt = now.Add(interval)
	if err := s.store.SaveProgress(ctx, prog); err != nil {
		s.logger.Warn("failed to advance progress", zap.Int64("user_id", prog.UserID), zap.Error(err))
	}
}
