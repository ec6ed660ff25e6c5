// Package telegram provides the Telegram Bot API client and its Fx module.
package telegram

import (
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"marathonbot/internal/config"
)

// Module provides Telegram-related dependencies.
var Module = fx.Module("telegram",
	fx.Provide(
		NewBotAPI,
		ProvideSender,
	),
)

// Sender is the subset of the Bot API client the rest of the application
// uses to talk to Telegram. *tgbotapi.BotAPI satisfies it; tests substitute
// a fake.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// BotAPIParams holds dependencies for NewBotAPI.
type BotAPIParams struct {
	fx.In
	Cfg    *config.Config
	Logger *zap.Logger
}

// NewBotAPI creates the Telegram Bot API client and verifies the token by
// fetching the bot identity.
func NewBotAPI(params BotAPIParams) (*tgbotapi.BotAPI, error) {
	if params.Cfg.Telegram.BotToken == "" {
		return nil, errors.New("telegram bot token is not set in config")
	}

	api, err := tgbotapi.NewBotAPI(params.Cfg.Telegram.BotToken)
	if err != nil {
		return nil, err
	}

	params.Logger.Info("Authorized on Telegram", zap.String("username", api.Self.UserName))

	return api, nil
}

// ProvideSender exposes the concrete client through the Sender interface.
func ProvideSender(api *tgbotapi.BotAPI) Sender {
	return api
}
