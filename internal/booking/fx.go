package booking

import (
	"github.com/MphoBeeThwala/ahava-healthcare/internal/booking/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("booking",
	fx.Provide(repository.Provide),
)
