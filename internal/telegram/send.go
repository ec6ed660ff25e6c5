package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// IsEntityParseError reports whether the Bot API rejected a message because
// its HTML entities could not be parsed. Post bodies and greetings are
// admin-authored, so broken markup must degrade instead of failing the send.
func IsEntityParseError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "can't parse entities")
}

// SendMessageHTML sends the message with HTML parse mode and falls back to
// plain text when Telegram rejects the markup.
func SendMessageHTML(s Sender, msg tgbotapi.MessageConfig) (tgbotapi.Message, error) {
	msg.ParseMode = tgbotapi.ModeHTML
	sent, err := s.Send(msg)
	if IsEntityParseError(err) {
		msg.ParseMode = ""
		return s.Send(msg)
	}
	return sent, err
}

// SendPhotoHTML sends a photo whose caption uses HTML parse mode, falling
// back to a plain caption when Telegram rejects the markup.
func SendPhotoHTML(s Sender, photo tgbotapi.PhotoConfig) (tgbotapi.Message, error) {
	photo.ParseMode = tgbotapi.ModeHTML
	sent, err := s.Send(photo)
	if IsEntityParseError(err) {
		photo.ParseMode = ""
		return s.Send(photo)
	}
	return sent, err
}

// RemoveInlineKeyboard strips the inline keyboard from a previously sent
// message. Failures are expected for old or already-edited messages and are
// reported to the caller to ignore.
func RemoveInlineKeyboard(s Sender, chatID int64, messageID int) error {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
	})
	_, err := s.Request(edit)
	return err
}
