package app

import (
	"log/slog"
	"os"

	"github.com/bloodsync/bloodsync/internal/account"
	"github.com/bloodsync/bloodsync/internal/notification"
)

func (a *App) initModules() {
	if a.config.GetBool("modules.account.enabled") {
		if err := account.New(account.Dependency{
			Ctx:         a.ctx,
			DBConn:      a.dbConn,
			CacheConn:   a.cacheConn,
			Goroutine:   a.goroutine,
			Enforcer:    a.casbin,
			Router:      a.router,
			Idempotency: a.idemp,
			Messaging:   a.messaging,
			Storage:     a.storage,
			Config:      a.config,
			Instrument:  a.ins,
			UID:         a.uid,
			Token:       a.token,
			HMAC:        a.hmac,
			Password:    a.password,
			OTP:         a.otp,
			SecretBox:   a.secretbox,
			Clock:       a.clock,
			Validator:   a.validator,
			JWT:         a.jwt,
		}); err != nil {
			slog.Error("failed to init module account", "error", err)
			os.Exit(1)
		}
	}

	if a.config.GetBool("modules.notification.enabled") {
		if err := notification.New(notification.Dependency{
			Ctx:        a.ctx,
			DBConn:     a.dbConn,
			Messaging:  a.messaging,
			Config:     a.config,
			Instrument: a.ins,
			UID:        a.uid,
			UUID:       a.uuid,
			Clock:      a.clock,
			Goroutine:  a.goroutine,
			Validator:  a.validator,
			Mail:       a.mail,
		}); err != nil {
			slog.Error("failed to init module notification", "error", err)
			os.Exit(1)
		}
	}
}
