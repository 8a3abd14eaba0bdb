package payment

import (
	"github.com/MphoBeeThwala/ahava-healthcare/internal/config"
	paymentdomain "github.com/MphoBeeThwala/ahava-healthcare/internal/payment/domain"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/payment/gateway/paystack"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/payment/repository"
	paymentservice "github.com/MphoBeeThwala/ahava-healthcare/internal/payment/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("payment",
	fx.Provide(repository.Provide),
	fx.Provide(func(cfg config.Config, log *zap.Logger) paymentdomain.Gateway {
		return paystack.NewClient(cfg, log)
	}),
	fx.Provide(paymentservice.NewService),
)
