package store_test

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

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	cfg := &config.Config{
		Database: config.DatabaseConfig{Type: "sqlite", DSN: ":memory:"},
	}
	s, err := store.Open(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertUser_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u1, err := s.UpsertUser(ctx, 100500)
	require.NoError(t, err)
	u2, err := s.UpsertUser(ctx, 100500)
	require.NoError(t, err)

	assert.Equal(t, u1.ID, u2.ID)

	n, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGetUserByTelegramID_UnknownIsNil(t *testing.T) {
	s := newTestStore(t)

	u, err := s.GetUserByTelegramID(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestUserProfileAndOnboarding(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.UpsertUser(ctx, 7)
	require.NoError(t, err)

	require.NoError(t, s.SetUserFullName(ctx, u.ID, "Иванов Иван Иванович"))
	require.NoError(t, s.SetUserRegion(ctx, u.ID, "Москва"))
	require.NoError(t, s.SetUserEmail(ctx, u.ID, "ivanov@example.com"))

	first := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.MarkUserOnboarded(ctx, u.ID, first))
	// A second stamp must not move the original timestamp.
	require.NoError(t, s.MarkUserOnboarded(ctx, u.ID, first.Add(time.Hour)))

	got, err := s.GetUserByTelegramID(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Иванов Иван Иванович", got.FullName)
	assert.Equal(t, "Москва", got.Region)
	assert.Equal(t, "ivanov@example.com", got.Email)
	require.NotNil(t, got.OnboardedAt)
	assert.True(t, got.OnboardedAt.Equal(first))
}

func TestDeleteUser_RemovesDependents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	u, err := s.UpsertUser(ctx, 7)
	require.NoError(t, err)
	p, err := s.CreatePost(ctx, "День первый", "<b>текст</b>", "", "")
	require.NoError(t, err)

	_, err = s.GetOrCreateProgress(ctx, u.ID, now)
	require.NoError(t, err)
	run, err := s.CreateTaskRun(ctx, u.ID, p.ID, now, now.Add(time.Hour))
	require.NoError(t, err)
	_, err = s.AddResponse(ctx, run.ID, u.ID, p.ID, "ответ")
	require.NoError(t, err)

	ok, err := s.DeleteUserByTelegramID(ctx, 7)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.GetUserByTelegramID(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, got)
	prog, err := s.GetProgressByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, prog)
	open, err := s.LatestOpenRun(ctx, u.ID, now)
	require.NoError(t, err)
	assert.Nil(t, open)

	ok, err = s.DeleteUserByTelegramID(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreatePost_AppendsPositions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p1, err := s.CreatePost(ctx, "один", "", "", "")
	require.NoError(t, err)
	p2, err := s.CreatePost(ctx, "два", "", "photo", "file123")
	require.NoError(t, err)

	assert.Equal(t, 1, p1.Position)
	assert.Equal(t, 2, p2.Position)
	assert.True(t, p2.HasPhoto())
}

func TestDeletePost_CompactsPositions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreatePost(ctx, "один", "", "", "")
	require.NoError(t, err)
	p2, err := s.CreatePost(ctx, "два", "", "", "")
	require.NoError(t, err)
	_, err = s.CreatePost(ctx, "три", "", "", "")
	require.NoError(t, err)

	ok, err := s.DeletePost(ctx, p2.ID)
	require.NoError(t, err)
	require.True(t, ok)

	posts, err := s.ListAllPosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, 1, posts[0].Position)
	assert.Equal(t, "один", posts[0].Title)
	assert.Equal(t, 2, posts[1].Position)
	assert.Equal(t, "три", posts[1].Title)
}

func TestMovePost_SwapsNeighbors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p1, err := s.CreatePost(ctx, "один", "", "", "")
	require.NoError(t, err)
	p2, err := s.CreatePost(ctx, "два", "", "", "")
	require.NoError(t, err)

	ok, err := s.MovePost(ctx, p2.ID, "up")
	require.NoError(t, err)
	require.True(t, ok)

	posts, err := s.ListAllPosts(ctx)
	require.NoError(t, err)
	assert.Equal(t, "два", posts[0].Title)
	assert.Equal(t, "один", posts[1].Title)

	// Moving past the edges must fail without changing anything.
	ok, err = s.MovePost(ctx, p2.ID, "up")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = s.MovePost(ctx, p1.ID, "down")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = s.MovePost(ctx, p1.ID, "sideways")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdatePostFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.CreatePost(ctx, "  старое имя  ", "тело", "", "")
	require.NoError(t, err)
	assert.Equal(t, "старое имя", p.Title)

	require.NoError(t, s.UpdatePostTitle(ctx, p.ID, "новое имя"))
	require.NoError(t, s.UpdatePostText(ctx, p.ID, "<i>новое тело</i>"))
	require.NoError(t, s.UpdatePostMedia(ctx, p.ID, "photo", "file42"))

	got, err := s.GetPost(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "новое имя", got.Title)
	assert.Equal(t, "<i>новое тело</i>", got.TextHTML)
	assert.True(t, got.HasPhoto())

	require.NoError(t, s.UpdatePostMedia(ctx, p.ID, "", ""))
	got, err = s.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, got.HasPhoto())
}

func TestRunWindowSemantics(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	u, err := s.UpsertUser(ctx, 7)
	require.NoError(t, err)
	p, err := s.CreatePost(ctx, "задание", "", "", "")
	require.NoError(t, err)

	run, err := s.CreateTaskRun(ctx, u.ID, p.ID, now, now.Add(time.Hour))
	require.NoError(t, err)

	open, err := s.LatestOpenRunForPost(ctx, u.ID, p.ID, now)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, run.ID, open.ID)

	// Past the window the run is invisible.
	open, err = s.LatestOpenRunForPost(ctx, u.ID, p.ID, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, open)

	require.NoError(t, s.CloseRunNow(ctx, run.ID, now))
	open, err = s.LatestOpenRun(ctx, u.ID, now)
	require.NoError(t, err)
	assert.Nil(t, open)

	// LatestRunForPost still sees closed runs.
	last, err := s.LatestRunForPost(ctx, u.ID, p.ID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, run.ID, last.ID)
}

func TestAddResponse_SequenceIncrements(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	u, err := s.UpsertUser(ctx, 7)
	require.NoError(t, err)
	p, err := s.CreatePost(ctx, "задание", "", "", "")
	require.NoError(t, err)
	run, err := s.CreateTaskRun(ctx, u.ID, p.ID, now, now.Add(time.Hour))
	require.NoError(t, err)

	r1, err := s.AddResponse(ctx, run.ID, u.ID, p.ID, "первый")
	require.NoError(t, err)
	r2, err := s.AddResponse(ctx, run.ID, u.ID, p.ID, "второй")
	require.NoError(t, err)

	assert.Equal(t, 1, r1.Seq)
	assert.Equal(t, 2, r2.Seq)

	n, err := s.CountResponsesForRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSummaryForUser_LatestRunOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	u, err := s.UpsertUser(ctx, 7)
	require.NoError(t, err)
	p1, err := s.CreatePost(ctx, "первый день", "", "", "")
	require.NoError(t, err)
	p2, err := s.CreatePost(ctx, "второй день", "", "", "")
	require.NoError(t, err)

	oldRun, err := s.CreateTaskRun(ctx, u.ID, p1.ID, base, base.Add(time.Hour))
	require.NoError(t, err)
	_, err = s.AddResponse(ctx, oldRun.ID, u.ID, p1.ID, "устаревший ответ")
	require.NoError(t, err)

	newRun, err := s.CreateTaskRun(ctx, u.ID, p1.ID, base.Add(24*time.Hour), base.Add(25*time.Hour))
	require.NoError(t, err)
	_, err = s.AddResponse(ctx, newRun.ID, u.ID, p1.ID, "свежий ответ")
	require.NoError(t, err)

	items, err := s.SummaryForUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, p1.ID, items[0].Post.ID)
	require.Len(t, items[0].Responses, 1)
	assert.Equal(t, "свежий ответ", items[0].Responses[0].Text)

	assert.Equal(t, p2.ID, items[1].Post.ID)
	assert.Empty(t, items[1].Responses)
}

func TestAppSettings_DefaultsAndClamping(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	settings, err := s.GetAppSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 720, settings.ResponseWindowMinutes)
	assert.Equal(t, 1440, settings.SendIntervalMinutes)
	assert.NotEmpty(t, settings.GreetingText)

	settings, err = s.SetResponseWindowMinutes(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, settings.ResponseWindowMinutes)

	settings, err = s.SetResponseWindowMinutes(ctx, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, 7*24*60, settings.ResponseWindowMinutes)

	settings, err = s.SetSendIntervalMinutes(ctx, 90)
	require.NoError(t, err)
	assert.Equal(t, 90, settings.SendIntervalMinutes)

	settings, err = s.SetGreetingText(ctx, "Привет!")
	require.NoError(t, err)
	assert.Equal(t, "Привет!", settings.GreetingText)

	// Values persist across reads.
	settings, err = s.GetAppSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Привет!", settings.GreetingText)
	assert.Equal(t, 90, settings.SendIntervalMinutes)
}

func TestResetProgress(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	u, err := s.UpsertUser(ctx, 7)
	require.NoError(t, err)
	p, err := s.CreatePost(ctx, "задание", "", "", "")
	require.NoError(t, err)

	prog, err := s.GetOrCreateProgress(ctx, u.ID, now)
	require.NoError(t, err)

	prog.NextPosition = 5
	prog.PendingPostID = &p.ID
	prog.ActivePostID = &p.ID
	until := now.Add(time.Hour)
	prog.ActiveUntil = &until
	prog.SummaryPromptSent = true
	require.NoError(t, s.SaveProgress(ctx, prog))

	later := now.Add(48 * time.Hour)
	require.NoError(t, s.ResetProgress(ctx, u.ID, later))

	got, err := s.GetProgressByUserID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.NextPosition)
	assert.True(t, got.NextSendAt.Equal(later))
	assert.Nil(t, got.PendingPostID)
	assert.Nil(t, got.ActivePostID)
	assert.Nil(t, got.ActiveUntil)
	assert.False(t, got.SummaryPromptSent)
}

func TestListProgress_OrderedByDueTime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	u1, err := s.UpsertUser(ctx, 1)
	require.NoError(t, err)
	u2, err := s.UpsertUser(ctx, 2)
	require.NoError(t, err)

	_, err = s.GetOrCreateProgress(ctx, u1.ID, base.Add(time.Hour))
	require.NoError(t, err)
	_, err = s.GetOrCreateProgress(ctx, u2.ID, base)
	require.NoError(t, err)

	rows, err := s.ListProgress(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, u2.ID, rows[0].UserID)
	assert.Equal(t, u1.ID, rows[1].UserID)
}
