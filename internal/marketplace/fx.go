package marketplace

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/marketfill/internal/marketplace/domain"
)

var Module = fx.Module("marketplace",
	fx.Provide(
		NewClient,
		func(c *Client) domain.Client { return c },
	),
)
