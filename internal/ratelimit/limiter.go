package ratelimit

import (
	"context"

	"github.com/MphoBeeThwala/ahava-healthcare/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Limiter throttles the two unauthenticated-ish entry points: webhook
// ingestion per provider IP and WebSocket connects per client IP. A nil
// Limiter (rate limiting disabled) allows everything.
type Limiter struct {
	bucket *TokenBucket
	cfg    config.RateLimitConfig
	log    *zap.Logger
}

func NewLimiter(cfg config.Config, log *zap.Logger) *Limiter {
	if !cfg.RateLimit.Enabled || cfg.RateLimit.RedisAddr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RateLimit.RedisAddr,
		Password: cfg.RateLimit.RedisPassword,
		DB:       cfg.RateLimit.RedisDB,
	})
	return &Limiter{
		bucket: NewTokenBucket(client),
		cfg:    cfg.RateLimit,
		log:    log.Named("ratelimit"),
	}
}

func (l *Limiter) WebhookAllowed(ctx context.Context, ip string) bool {
	if l == nil {
		return true
	}
	return l.allow(ctx, "rl:webhook:"+ip, l.cfg.WebhookRate, l.cfg.WebhookBurst)
}

func (l *Limiter) ConnectAllowed(ctx context.Context, ip string) bool {
	if l == nil {
		return true
	}
	return l.allow(ctx, "rl:ws:"+ip, l.cfg.ConnectRate, l.cfg.ConnectBurst)
}

// allow fails open: a broken limiter backend must not take down the
// webhook or realtime paths.
func (l *Limiter) allow(ctx context.Context, key string, rate float64, burst int) bool {
	if l == nil || l.bucket == nil {
		return true
	}
	res, err := l.bucket.Allow(ctx, key, rate, burst)
	if err != nil {
		l.log.Warn("rate limit check failed", zap.String("key", key), zap.Error(err))
		return true
	}
	return res.Allowed
}

var Module = fx.Module("rate.limit",
	fx.Provide(NewLimiter),
)
