package auth

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/config"
	userdomain "github.com/MphoBeeThwala/ahava-healthcare/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrMissingToken  = errors.New("missing_token")
	ErrInvalidToken  = errors.New("invalid_token")
	ErrTokenExpired  = errors.New("token_expired")
	ErrInactiveUser  = errors.New("inactive_user")
	ErrMissingSecret = errors.New("missing_jwt_secret")
)

type Claims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier authenticates a bearer token and resolves it to an active
// platform user.
type Verifier struct {
	secret []byte
	db     *gorm.DB
	users  userdomain.Repository
	log    *zap.Logger
}

type Params struct {
	fx.In

	Config config.Config
	DB     *gorm.DB
	Users  userdomain.Repository
	Log    *zap.Logger
}

func NewVerifier(p Params) *Verifier {
	return &Verifier{
		secret: []byte(p.Config.AuthJWTSecret),
		db:     p.DB,
		users:  p.Users,
		log:    p.Log.Named("auth"),
	}
}

func (v *Verifier) Verify(ctx context.Context, token string) (*userdomain.User, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	if len(v.secret) == 0 {
		return nil, ErrMissingSecret
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := snowflake.ParseString(claims.UserID)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := v.users.FindByID(ctx, v.db, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}
	return user, nil
}

var Module = fx.Module("auth",
	fx.Provide(NewVerifier),
)
