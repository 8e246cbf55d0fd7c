package invoice

import (
	"go.uber.org/fx"

	"github.com/salloumtech/fatoora/internal/invoice/repository"
	"github.com/salloumtech/fatoora/internal/invoice/service"
)

var Module = fx.Module("invoice",
	fx.Provide(repository.Provide),
	fx.Provide(service.Provide),
)
