package account

import (
	"context"

	"github.com/bloodsync/bloodsync/internal/account/inbound"
	"github.com/bloodsync/bloodsync/internal/account/outbound/cache"
	"github.com/bloodsync/bloodsync/internal/account/outbound/db"
	"github.com/bloodsync/bloodsync/internal/account/outbound/mq"
	"github.com/bloodsync/bloodsync/internal/account/usecase"
	"github.com/bloodsync/bloodsync/internal/pkg/clock"
	"github.com/bloodsync/bloodsync/internal/pkg/config"
	"github.com/bloodsync/bloodsync/internal/pkg/goroutine"
	"github.com/bloodsync/bloodsync/internal/pkg/hash"
	"github.com/bloodsync/bloodsync/internal/pkg/idempotency"
	"github.com/bloodsync/bloodsync/internal/pkg/instrument"
	"github.com/bloodsync/bloodsync/internal/pkg/jwt"
	"github.com/bloodsync/bloodsync/internal/pkg/messaging"
	"github.com/bloodsync/bloodsync/internal/pkg/otp"
	"github.com/bloodsync/bloodsync/internal/pkg/router"
	"github.com/bloodsync/bloodsync/internal/pkg/secretbox"
	"github.com/bloodsync/bloodsync/internal/pkg/storage"
	"github.com/bloodsync/bloodsync/internal/pkg/uid"
	"github.com/bloodsync/bloodsync/internal/pkg/validator"
	"github.com/casbin/casbin/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Dependency struct {
	Ctx         context.Context            `validate:"required"`
	DBConn      *pgxpool.Pool              `validate:"required"`
	CacheConn   *redis.Client              `validate:"required"`
	Goroutine   *goroutine.Manager         `validate:"required"`
	Enforcer    *casbin.SyncedEnforcer     `validate:"required"`
	Router      *router.Router             `validate:"required"`
	Idempotency idempotency.Idempotency    `validate:"required"`
	Messaging   messaging.Publisher        `validate:"required"`
	Storage     storage.Storage            `validate:"required"`
	Config      config.Config              `validate:"required"`
	Instrument  instrument.Instrumentation `validate:"required"`
	UID         uid.NumberID               `validate:"required"`
	Token       uid.StringID               `validate:"required"`
	HMAC        hash.Hash                  `validate:"required"`
	Password    hash.Hash                  `validate:"required"`
	OTP         otp.Generator              `validate:"required"`
	SecretBox   secretbox.Box              `validate:"required"`
	Clock       clock.Clocker              `validate:"required"`
	Validator   validator.Validator        `validate:"required"`
	JWT         jwt.JWT                    `validate:"required"`
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	uc := usecase.New(usecase.Dependency{
		RepoDB:        db.NewDB(dep.DBConn, dep.Instrument),
		RepoCache:     cache.NewRedis(dep.CacheConn, dep.Instrument),
		RepoMessaging: mq.NewMessaging(dep.Messaging, dep.Instrument),
		Idempotency:   dep.Idempotency,
		Validator:     dep.Validator,
		Config:        dep.Config,
		Storage:       dep.Storage,
		HMAC:          dep.HMAC,
		Password:      dep.Password,
		OTP:           dep.OTP,
		SecretBox:     dep.SecretBox,
		UID:           dep.UID,
		Token:         dep.Token,
		Clock:         dep.Clock,
		JWT:           dep.JWT,
		Instrument:    dep.Instrument,
		Enforcer:      dep.Enforcer,
		Goroutine:     dep.Goroutine,
	})

	limit := router.RateLimit(router.RateLimitConfig{
		Requests: dep.Config.GetInt("modules.account.rate_limit.requests"),
		Window:   dep.Config.GetSecond("modules.account.rate_limit.window_seconds"),
		Burst:    dep.Config.GetInt("modules.account.rate_limit.burst"),
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc, limit)

	if email := dep.Config.GetString("modules.account.bootstrap_admin.email"); email != "" {
		if err := uc.EnsureAdmin(dep.Ctx, usecase.EnsureAdminInput{
			Email:    email,
			FullName: dep.Config.GetString("modules.account.bootstrap_admin.full_name"),
			Password: dep.Config.GetString("modules.account.bootstrap_admin.password"),
		}); err != nil {
			return err
		}
	}

	return nil
}
