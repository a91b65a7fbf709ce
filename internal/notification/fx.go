package notification

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/marketfill/internal/notification/service"
)

var Module = fx.Module("notification.service",
	fx.Provide(service.New),
)
