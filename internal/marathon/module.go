package marathon

import (
	"go.uber.org/fx"
)

// Module provides the marathon service and scheduler.
var Module = fx.Module("marathon",
	fx.Provide(NewService),
	fx.Provide(NewScheduler),
)
