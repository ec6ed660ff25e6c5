// Package bot wires Telegram updates to the marathon flow: onboarding,
// answer capture, inline button callbacks and the admin menu.
package bot

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"marathonbot/internal/config"
	"marathonbot/internal/marathon"
	"marathonbot/internal/store"
	"marathonbot/internal/telegram"
)

// updateTimeoutSeconds is the long-polling timeout for GetUpdates.
const updateTimeoutSeconds = 30

// Bot consumes Telegram updates and dispatches them to handlers.
type Bot struct {
	api    *tgbotapi.BotAPI
	sender telegram.Sender
	svc    *marathon.Service
	store  *store.Store
	cfg    *config.Config
	logger *zap.Logger

	states *stateStore
	wg     sync.WaitGroup
}

// NewBotParams holds dependencies for NewBot.
type NewBotParams struct {
	fx.In

	API    *tgbotapi.BotAPI
	Sender telegram.Sender
	Svc    *marathon.Service
	Store  *store.Store
	Cfg    *config.Config
	Logger *zap.Logger
}

// NewBot creates the bot. Call Start to begin consuming updates.
func NewBot(params NewBotParams) *Bot {
	return &Bot{
		api:    params.API,
		sender: params.Sender,
		svc:    params.Svc,
		store:  params.Store,
		cfg:    params.Cfg,
		logger: params.Logger.Named("bot"),
		states: newStateStore(),
	}
}

// Start launches the long-polling update loop.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = updateTimeoutSeconds
	updates := b.api.GetUpdatesChan(u)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for update := range updates {
			b.handleUpdate(context.Background(), update)
		}
	}()

	b.logger.Info("update loop started")
	return nil
}

// Stop shuts down polling and waits for the dispatch loop to drain.
func (b *Bot) Stop(ctx context.Context) error {
	b.api.StopReceivingUpdates()
	b.wg.Wait()
	b.logger.Info("update loop stopped")
	return nil
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("panic in update handler", zap.Any("panic", r))
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

// sendPlain sends a message without any parse mode.
func (b *Bot) sendPlain(chatID int64, body string) {
	msg := tgbotapi.NewMessage(chatID, body)
	msg.DisableWebPagePreview = true
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Warn("failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// sendPlainKeyboard sends a plain message with an inline keyboard.
func (b *Bot) sendPlainKeyboard(chatID int64, body string, kb tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, body)
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = kb
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Warn("failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// sendHTML sends a message in HTML parse mode with plain-text fallback.
func (b *Bot) sendHTML(chatID int64, body string) {
	msg := tgbotapi.NewMessage(chatID, body)
	msg.DisableWebPagePreview = true
	if _, err := telegram.SendMessageHTML(b.sender, msg); err != nil {
		b.logger.Warn("failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// sendHTMLKeyboard sends an HTML message with an inline keyboard.
func (b *Bot) sendHTMLKeyboard(chatID int64, body string, kb tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, body)
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = kb
	if _, err := telegram.SendMessageHTML(b.sender, msg); err != nil {
		b.logger.Warn("failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// answerCallback acknowledges a callback query with an optional toast.
func (b *Bot) answerCallback(id, note string) {
	if _, err := b.sender.Request(tgbotapi.NewCallback(id, note)); err != nil {
		b.logger.Debug("failed to answer callback", zap.Error(err))
	}
}

// alertCallback acknowledges a callback query with a popup alert.
func (b *Bot) alertCallback(id, note string) {
	if _, err := b.sender.Request(tgbotapi.NewCallbackWithAlert(id, note)); err != nil {
		b.logger.Debug("failed to answer callback", zap.Error(err))
	}
}
