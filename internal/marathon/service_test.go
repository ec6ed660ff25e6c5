package marathon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"marathonbot/internal/config"
	"marathonbot/internal/store"
)

type sentTask struct {
	chatID int64
	postID int64
}

type fakeNotifier struct {
	tasks   []sentTask
	prompts []int64
	taskErr error
}

func (f *fakeNotifier) SendTaskNotification(_ context.Context, chatID int64, post *store.Post) error {
	if f.taskErr != nil {
		return f.taskErr
	}
	f.tasks = append(f.tasks, sentTask{chatID: chatID, postID: post.ID})
	return nil
}

func (f *fakeNotifier) SendSummaryPrompt(_ context.Context, chatID int64) error {
	f.prompts = append(f.prompts, chatID)
	return nil
}

type testClock struct {
	now time.Time
}

func (c *testClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestService(t *testing.T) (*Service, *fakeNotifier, *store.Store, *testClock) {
	t.Helper()

	cfg := &config.Config{
		Database: config.DatabaseConfig{Type: "sqlite", DSN: ":memory:"},
		Marathon: config.MarathonConfig{
			Timezone:            "UTC",
			MaxResponsesPerTask: 3,
		},
	}
	st, err := store.Open(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	notifier := &fakeNotifier{}
	svc := NewService(st, cfg, notifier, zap.NewNop())

	clk := &testClock{now: time.Date(2025, 3, 1, 12, 0, 30, 0, time.UTC)}
	svc.now = func() time.Time { return clk.now }

	return svc, notifier, st, clk
}

func seedThreePosts(t *testing.T, st *store.Store) []*store.Post {
	t.Helper()
	ctx := context.Background()
	var posts []*store.Post
	for _, title := range []string{"первый", "второй", "третий"} {
		p, err := st.CreatePost(ctx, title, "<b>текст</b>", "", "")
		require.NoError(t, err)
		posts = append(posts, p)
	}
	return posts
}

func TestSendDueTaskNow_RequiresOnboarding(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	status, err := svc.SendDueTaskNow(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, DeliveryNoUser, status)

	_, err = svc.RegisterUser(ctx, 7)
	require.NoError(t, err)

	status, err = svc.SendDueTaskNow(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, DeliveryNotOnboarded, status)
}

func TestSendDueTaskNow_DeliversAndTracksPending(t *testing.T) {
	svc, notifier, st, _ := newTestService(t)
	ctx := context.Background()
	posts := seedThreePosts(t, st)

	_, err := svc.RegisterUser(ctx, 7)
	require.NoError(t, err)
	require.NoError(t, svc.MarkOnboarded(ctx, 7))

	status, err := svc.SendDueTaskNow(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, DeliverySent, status)
	require.Len(t, notifier.tasks, 1)
	assert.Equal(t, posts[0].ID, notifier.tasks[0].postID)

	user, err := st.GetUserByTelegramID(ctx, 7)
	require.NoError(t, err)
	prog, err := st.GetProgressByUserID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, prog.PendingPostID)
	assert.Equal(t, posts[0].ID, *prog.PendingPostID)
	assert.Equal(t, 2, prog.NextPosition)

	// A second call re-sends the notification but doesn't advance.
	status, err = svc.SendDueTaskNow(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, DeliveryAlreadyPending, status)
	assert.Len(t, notifier.tasks, 2)

	prog, err = st.GetProgressByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, prog.NextPosition)
}

func TestSendDueTaskNow_AfterStartReportsActive(t *testing.T) {
	svc, _, st, _ := newTestService(t)
	ctx := context.Background()
	posts := seedThreePosts(t, st)

	_, err := svc.RegisterUser(ctx, 7)
	require.NoError(t, err)
	require.NoError(t, svc.MarkOnboarded(ctx, 7))
	_, err = svc.SendDueTaskNow(ctx, 7)
	require.NoError(t, err)

	_, err = svc.StartTask(ctx, 7, posts[0].ID)
	require.NoError(t, err)

	status, err := svc.SendDueTaskNow(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, DeliveryAlreadyActive, status)
}

func TestSendDueTaskNow_DoneWhenNoPosts(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RegisterUser(ctx, 7)
	require.NoError(t, err)
	require.NoError(t, svc.MarkOnboarded(ctx, 7))

	status, err := svc.SendDueTaskNow(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, DeliveryDone, status)
}

func TestStartTask_OpensWindowOnce(t *testing.T) {
	svc, _, st, clk := newTestService(t)
	ctx := context.Background()
	posts := seedThreePosts(t, st)

	started, err := svc.StartTask(ctx, 7, posts[0].ID)
	require.NoError(t, err)
	assert.False(t, started.Reused)
	assert.Equal(t, 720, started.WindowMinutes)
	assert.Equal(t, 3, started.MaxResponses)
	assert.True(t, started.Until.Equal(clk.now.Add(720*time.Minute)))

	// Pressing the button again must not restart the timer.
	clk.advance(10 * time.Minute)
	again, err := svc.StartTask(ctx, 7, posts[0].ID)
	require.NoError(t, err)
	assert.True(t, again.Reused)
	assert.True(t, again.Until.Equal(started.Until))

	_, err = svc.StartTask(ctx, 7, 99999)
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestRecordAnswer_CapClosesRunAndReschedules(t *testing.T) {
	svc, _, st, clk := newTestService(t)
	ctx := context.Background()
	posts := seedThreePosts(t, st)

	_, err := svc.StartTask(ctx, 7, posts[0].ID)
	require.NoError(t, err)

	res, err := svc.RecordAnswer(ctx, 7, 0, "раз")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 2, res.Remaining)
	assert.False(t, res.Closed)

	res, err = svc.RecordAnswer(ctx, 7, 0, "два")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Remaining)

	res, err = svc.RecordAnswer(ctx, 7, 0, "три")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 0, res.Remaining)
	assert.True(t, res.Closed)

	user, err := st.GetUserByTelegramID(ctx, 7)
	require.NoError(t, err)
	prog, err := st.GetProgressByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, prog.ActivePostID)
	assert.Nil(t, prog.PendingPostID)
	wantNext := FloorMinute(clk.now).Add(1440 * time.Minute)
	assert.True(t, prog.NextSendAt.Equal(wantNext))

	// The window is closed, so further messages are ignored.
	res, err = svc.RecordAnswer(ctx, 7, 0, "четыре")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestRecordAnswer_ReplyRoutesToDay(t *testing.T) {
	svc, _, st, _ := newTestService(t)
	ctx := context.Background()
	posts := seedThreePosts(t, st)

	_, err := svc.StartTask(ctx, 7, posts[0].ID)
	require.NoError(t, err)
	_, err = svc.StartTask(ctx, 7, posts[1].ID)
	require.NoError(t, err)

	// Reply to the day 1 message lands on day 1 even though day 2 is newer.
	res, err := svc.RecordAnswer(ctx, 7, 1, "ответ на первый день")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, posts[0].ID, res.PostID)

	// Replies to unknown days are ignored, never misrouted.
	res, err = svc.RecordAnswer(ctx, 7, 42, "куда-то")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestRecordAnswer_IgnoredWithoutOpenRun(t *testing.T) {
	svc, _, st, _ := newTestService(t)
	ctx := context.Background()
	seedThreePosts(t, st)

	res, err := svc.RecordAnswer(ctx, 7, 0, "рано")
	require.NoError(t, err)
	assert.Nil(t, res)

	_, err = svc.RegisterUser(ctx, 7)
	require.NoError(t, err)
	res, err = svc.RecordAnswer(ctx, 7, 0, "всё ещё рано")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestCompleteTask_ClosesWindow(t *testing.T) {
	svc, _, st, clk := newTestService(t)
	ctx := context.Background()
	posts := seedThreePosts(t, st)

	_, err := svc.StartTask(ctx, 7, posts[0].ID)
	require.NoError(t, err)

	interval, err := svc.CompleteTask(ctx, 7, posts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1440, interval)

	user, err := st.GetUserByTelegramID(ctx, 7)
	require.NoError(t, err)
	prog, err := st.GetProgressByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, prog.ActivePostID)
	wantNext := FloorMinute(clk.now).Add(1440 * time.Minute)
	assert.True(t, prog.NextSendAt.Equal(wantNext))

	_, err = svc.CompleteTask(ctx, 7, posts[0].ID)
	assert.ErrorIs(t, err, ErrNoOpenRun)

	_, err = svc.CompleteTask(ctx, 999, posts[0].ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSummary_RequiresKnownUser(t *testing.T) {
	svc, _, st, _ := newTestService(t)
	ctx := context.Background()
	posts := seedThreePosts(t, st)

	_, err := svc.Summary(ctx, 7)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.StartTask(ctx, 7, posts[0].ID)
	require.NoError(t, err)
	_, err = svc.RecordAnswer(ctx, 7, 0, "мой ответ")
	require.NoError(t, err)

	items, err := svc.Summary(ctx, 7)
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Len(t, items[0].Responses, 1)
	assert.Equal(t, "мой ответ", items[0].Responses[0].Text)
	assert.Empty(t, items[1].Responses)
}

func TestResetUser_ClearsRunsAndProgress(t *testing.T) {
	svc, _, st, clk := newTestService(t)
	ctx := context.Background()
	posts := seedThreePosts(t, st)

	_, err := svc.StartTask(ctx, 7, posts[0].ID)
	require.NoError(t, err)
	_, err = svc.RecordAnswer(ctx, 7, 0, "ответ")
	require.NoError(t, err)

	user, err := st.GetUserByTelegramID(ctx, 7)
	require.NoError(t, err)

	restartAt := clk.now.Add(10 * time.Second)
	require.NoError(t, svc.ResetUser(ctx, user.ID, restartAt))

	prog, err := st.GetProgressByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, prog.NextPosition)
	assert.True(t, prog.NextSendAt.Equal(restartAt))

	run, err := st.LatestOpenRun(ctx, user.ID, clk.now)
	require.NoError(t, err)
	assert.Nil(t, run)

	items, err := svc.Summary(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, items[0].Responses)
}
