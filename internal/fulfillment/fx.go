package fulfillment

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/marketfill/internal/fulfillment/service"
)

var Module = fx.Module("fulfillment.service",
	fx.Provide(service.New),
)
