package webhook

import (
	"github.com/MphoBeeThwala/ahava-healthcare/internal/webhook/repository"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/webhook/service"
	"go.uber.org/fx"
)

var Module = fx.Module("webhook",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
