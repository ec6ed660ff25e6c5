package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"marathonbot/internal/marathon"
	"marathonbot/internal/store"
	"marathonbot/internal/telegram"
	"marathonbot/pkg/text"
)

// notifier implements marathon.Notifier on top of the Telegram sender, so
// the scheduler can push messages without depending on the bot loop.
type notifier struct {
	sender telegram.Sender
}

// NewNotifier creates the Telegram-backed marathon notifier.
func NewNotifier(sender telegram.Sender) marathon.Notifier {
	return &notifier{sender: sender}
}

func (n *notifier) SendTaskNotification(_ context.Context, chatID int64, post *store.Post) error {
	body := fmt.Sprintf("Вы получили сегодняшнее задание — <b>%s</b>\n\nНачать?", text.EscapeHTML(post.Title))
	msg := tgbotapi.NewMessage(chatID, body)
	msg.ReplyMarkup = startTaskKeyboard(post.ID)
	_, err := telegram.SendMessageHTML(n.sender, msg)
	return err
}

func (n *notifier) SendSummaryPrompt(_ context.Context, chatID int64) error {
	msg := tgbotapi.NewMessage(chatID, "Марафон завершён. Хотите посмотреть свои ответы?")
	msg.ReplyMarkup = summaryKeyboard()
	_, err := n.sender.Send(msg)
	return err
}
