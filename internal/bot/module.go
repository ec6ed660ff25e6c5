package bot

import "go.uber.org/fx"

// Module provides the Telegram bot and the marathon notifier.
var Module = fx.Module("bot",
	fx.Provide(NewNotifier),
	fx.Provide(NewBot),
)
