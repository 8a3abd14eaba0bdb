package visit

import (
	"github.com/MphoBeeThwala/ahava-healthcare/internal/visit/repository"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/visit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("visit",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
