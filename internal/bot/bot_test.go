package bot

import (
	"context"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marathonbot/internal/store"
)

type fakeSender struct {
	sent      []tgbotapi.Chattable
	requested []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requested = append(f.requested, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func TestParseCallbackID(t *testing.T) {
	id, ok := parseCallbackID("task:start:42", "task:start:")
	require.True(t, ok)
	assert.Equal(t, int64(42), id)

	_, ok = parseCallbackID("task:start:abc", "task:start:")
	assert.False(t, ok)
}

func TestParseIDPage(t *testing.T) {
	id, page, ok := parseIDPage("edit:7:2", "edit:")
	require.True(t, ok)
	assert.Equal(t, int64(7), id)
	assert.Equal(t, 2, page)

	_, _, ok = parseIDPage("edit:7", "edit:")
	assert.False(t, ok)

	_, _, ok = parseIDPage("edit:x:2", "edit:")
	assert.False(t, ok)
}

func TestLooksLikeEmail(t *testing.T) {
	assert.True(t, looksLikeEmail("user@example.com"))
	assert.True(t, looksLikeEmail("  a@b.ru  "))
	assert.False(t, looksLikeEmail(""))
	assert.False(t, looksLikeEmail("no-at-sign"))
	assert.False(t, looksLikeEmail("two@@example.com"))
	assert.False(t, looksLikeEmail("with space@example.com"))
	assert.False(t, looksLikeEmail("@example.com"))
	assert.False(t, looksLikeEmail("user@"))
}

func TestExtractText(t *testing.T) {
	assert.Equal(t, "привет", extractText(&tgbotapi.Message{Text: "  привет  "}))
	assert.Equal(t, "подпись", extractText(&tgbotapi.Message{Caption: " подпись "}))
	assert.Equal(t, "", extractText(&tgbotapi.Message{}))
}

func TestSummaryTextForPost(t *testing.T) {
	item := store.SummaryItem{
		Post: &store.Post{Position: 3, Title: "Цели"},
		Responses: []*store.Response{
			{Text: " первый "},
			{Text: "второй"},
		},
	}
	got := summaryTextForPost(item)
	assert.Equal(t, "День 3. Цели\n\nОтвет(ы):\n- первый\n- второй\n", got)

	empty := store.SummaryItem{Post: &store.Post{Position: 1, Title: "Старт"}}
	assert.Equal(t, "День 1. Старт\n\nОтвет(ы):\n- —\n", summaryTextForPost(empty))
}

func TestMediaFromMessage(t *testing.T) {
	mt, id, ok := mediaFromMessage(&tgbotapi.Message{Text: " Remove "})
	require.True(t, ok)
	assert.Empty(t, mt)
	assert.Empty(t, id)

	mt, id, ok = mediaFromMessage(&tgbotapi.Message{Photo: []tgbotapi.PhotoSize{
		{FileID: "small"},
		{FileID: "large"},
	}})
	require.True(t, ok)
	assert.Equal(t, "photo", mt)
	assert.Equal(t, "large", id)

	_, _, ok = mediaFromMessage(&tgbotapi.Message{Text: "просто текст"})
	assert.False(t, ok)
}

func TestStateStore(t *testing.T) {
	s := newStateStore()
	assert.Equal(t, stateNone, s.get(1).kind)

	s.set(1, convState{kind: stateAdminCreateTitle})
	s.update(1, func(st *convState) {
		st.kind = stateAdminCreateText
		st.createTitle = "Заголовок"
	})

	st := s.get(1)
	assert.Equal(t, stateAdminCreateText, st.kind)
	assert.Equal(t, "Заголовок", st.createTitle)

	s.clear(1)
	assert.Equal(t, stateNone, s.get(1).kind)
}

func TestAdminPostsListKeyboard_Pagination(t *testing.T) {
	posts := []*store.Post{
		{ID: 10, Position: 9, Title: "Девятый"},
	}

	flatten := func(kb tgbotapi.InlineKeyboardMarkup) []string {
		var data []string
		for _, row := range kb.InlineKeyboard {
			for _, btn := range row {
				data = append(data, *btn.CallbackData)
			}
		}
		return data
	}

	// 17 posts over page size 8 give three pages; page 1 is in the middle.
	data := flatten(adminPostsListKeyboard(posts, 1, 17))
	assert.Contains(t, data, "admin:edit:10:1")
	assert.Contains(t, data, "admin:move:up:10:1")
	assert.Contains(t, data, "admin:move:down:10:1")
	assert.Contains(t, data, "admin:del:10:1")
	assert.Contains(t, data, "admin:list:0")
	assert.Contains(t, data, "admin:list:2")
	assert.Contains(t, data, "admin:menu")

	// First page has no back arrow, last page has no forward arrow.
	first := flatten(adminPostsListKeyboard(posts, 0, 17))
	assert.Contains(t, first, "admin:list:1")
	assert.NotContains(t, first, "admin:list:-1")

	last := flatten(adminPostsListKeyboard(posts, 2, 17))
	assert.Contains(t, last, "admin:list:1")
	assert.NotContains(t, last, "admin:list:3")
}

func TestNotifier_SendTaskNotification(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(sender)

	err := n.SendTaskNotification(context.Background(), 555, &store.Post{ID: 4, Title: "Цели & планы"})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	msg, ok := sender.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(555), msg.ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
	assert.Contains(t, msg.Text, "Цели &amp; планы")

	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, kb.InlineKeyboard, 1)
	assert.Equal(t, "task:start:4", *kb.InlineKeyboard[0][0].CallbackData)
}

func TestNotifier_SendSummaryPrompt(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(sender)

	require.NoError(t, n.SendSummaryPrompt(context.Background(), 777))
	require.Len(t, sender.sent, 1)

	msg, ok := sender.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(777), msg.ChatID)

	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	assert.Equal(t, "summary:show", *kb.InlineKeyboard[0][0].CallbackData)
}
