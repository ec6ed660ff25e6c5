package store

import (
	"time"

	"github.com/uptrace/bun"
)

// User is a Telegram account known to the bot.
type User struct {
	bun.BaseModel `bun:"table:users"`

	ID          int64      `bun:"id,pk,autoincrement"`
	TelegramID  int64      `bun:"telegram_id,notnull,unique"`
	IsAdmin     bool       `bun:"is_admin,notnull,default:false"`
	FullName    string     `bun:"full_name,notnull,default:''"`
	Region      string     `bun:"region,notnull,default:''"`
	Email       string     `bun:"email,notnull,default:''"`
	OnboardedAt *time.Time `bun:"onboarded_at,nullzero"`
	CreatedAt   time.Time  `bun:"created_at,notnull"`
}

// Post is a task template. The day number shown to users is procedural and
// equals Position in the current ordering (1..N).
type Post struct {
	bun.BaseModel `bun:"table:posts"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Position  int       `bun:"position,notnull,unique"`
	Title     string    `bun:"title,notnull,default:''"`
	TextHTML  string    `bun:"text_html,notnull,default:''"`
	MediaType string    `bun:"media_type,notnull,default:''"`
	FileID    string    `bun:"file_id,notnull,default:''"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// HasPhoto reports whether the post carries an attached photo.
func (p *Post) HasPhoto() bool {
	return p.MediaType == "photo" && p.FileID != ""
}

// Progress tracks per-user marathon state.
//
//   - NextPosition / NextSendAt: which day to notify next and when
//   - PendingPostID: last delivered task awaiting the start button
//   - ActivePostID + ActiveUntil: response window opened by the start button
type Progress struct {
	bun.BaseModel `bun:"table:progress"`

	ID                int64      `bun:"id,pk,autoincrement"`
	UserID            int64      `bun:"user_id,notnull,unique"`
	NextPosition      int        `bun:"next_position,notnull,default:1"`
	NextSendAt        time.Time  `bun:"next_send_at,notnull"`
	PendingPostID     *int64     `bun:"pending_post_id,nullzero"`
	ActivePostID      *int64     `bun:"active_post_id,nullzero"`
	ActiveStartedAt   *time.Time `bun:"active_started_at,nullzero"`
	ActiveUntil       *time.Time `bun:"active_until,nullzero"`
	SummaryPromptSent bool       `bun:"summary_prompt_sent,notnull,default:false"`
	UpdatedAt         time.Time  `bun:"updated_at,notnull"`
}

// TaskRun is an opened response window for a post. Multiple runs for the
// same post can coexist when the send interval is shorter than the window.
type TaskRun struct {
	bun.BaseModel `bun:"table:task_runs"`

	ID        int64     `bun:"id,pk,autoincrement"`
	UserID    int64     `bun:"user_id,notnull"`
	PostID    int64     `bun:"post_id,notnull"`
	StartedAt time.Time `bun:"started_at,notnull"`
	Until     time.Time `bun:"until,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// Response is one user answer inside a task run.
type Response struct {
	bun.BaseModel `bun:"table:responses"`

	ID        int64     `bun:"id,pk,autoincrement"`
	RunID     int64     `bun:"run_id,notnull"`
	UserID    int64     `bun:"user_id,notnull"`
	PostID    int64     `bun:"post_id,notnull"`
	Seq       int       `bun:"seq,notnull,default:1"`
	Text      string    `bun:"text,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

// AppSettings is a single-row table of admin-tunable knobs.
type AppSettings struct {
	bun.BaseModel `bun:"table:app_settings"`

	ID                    int64     `bun:"id,pk"`
	GreetingText          string    `bun:"greeting_text,notnull"`
	ResponseWindowMinutes int       `bun:"response_window_minutes,notnull,default:720"`
	SendIntervalMinutes   int       `bun:"send_interval_minutes,notnull,default:1440"`
	UpdatedAt             time.Time `bun:"updated_at,notnull"`
}

// SummaryItem pairs a post with the responses of the user's latest run.
type SummaryItem struct {
	Post      *Post
	Responses []*Response
}

const (
	defaultGreetingText = "Добро пожаловать в марафон!\n\nСкоро пришлю первое задание."

	defaultResponseWindowMinutes = 12 * 60
	defaultSendIntervalMinutes   = 24 * 60

	maxResponseWindowMinutes = 7 * 24 * 60
	maxSendIntervalMinutes   = 365 * 24 * 60
)
