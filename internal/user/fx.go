package user

import (
	"github.com/MphoBeeThwala/ahava-healthcare/internal/user/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("user",
	fx.Provide(repository.Provide),
)
