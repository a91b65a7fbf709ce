package ledger

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/marketfill/internal/ledger/repository"
	"github.com/smallbiznis/marketfill/internal/ledger/service"
)

var Module = fx.Module("ledger.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
