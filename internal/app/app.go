package app

import (
	"context"
	"net/http"

	"github.com/bloodsync/bloodsync/internal/pkg/clock"
	"github.com/bloodsync/bloodsync/internal/pkg/config"
	"github.com/bloodsync/bloodsync/internal/pkg/goroutine"
	"github.com/bloodsync/bloodsync/internal/pkg/hash"
	"github.com/bloodsync/bloodsync/internal/pkg/idempotency"
	"github.com/bloodsync/bloodsync/internal/pkg/instrument"
	"github.com/bloodsync/bloodsync/internal/pkg/jwt"
	"github.com/bloodsync/bloodsync/internal/pkg/mail"
	"github.com/bloodsync/bloodsync/internal/pkg/messaging"
	"github.com/bloodsync/bloodsync/internal/pkg/otp"
	"github.com/bloodsync/bloodsync/internal/pkg/pgxcasbin"
	"github.com/bloodsync/bloodsync/internal/pkg/router"
	"github.com/bloodsync/bloodsync/internal/pkg/secretbox"
	"github.com/bloodsync/bloodsync/internal/pkg/storage"
	"github.com/bloodsync/bloodsync/internal/pkg/uid"
	"github.com/bloodsync/bloodsync/internal/pkg/validator"
	"github.com/casbin/casbin/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// App wires dependencies and manages service lifecycle.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	// configuration
	config config.Config
	ins    instrument.Instrumentation

	// libraries
	goroutine *goroutine.Manager
	validator validator.Validator
	clock     clock.Clocker
	hmac      hash.Hash
	password  hash.Hash
	uid       uid.NumberID
	uuid      uid.StringID
	token     uid.StringID
	otp       otp.Generator
	secretbox secretbox.Box
	jwt       jwt.JWT

	// resources
	dbConn        *pgxpool.Pool
	cacheConn     *redis.Client
	idemp         idempotency.Idempotency
	mail          mail.Mail
	messaging     messaging.Messaging
	storage       storage.Storage
	casbin        *casbin.SyncedEnforcer
	casbinWatcher *pgxcasbin.Watcher

	// server
	router     *router.Router
	httpServer *http.Server

	//
	closers []struct {
		name string
		fn   func(context.Context) error
	}
}

// New initializes the application with default wiring and returns an App instance.
func New() *App {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		ctx:    ctx,
		cancel: cancel,
	}

	app.initConfig()
	app.initInstrument()
	app.initLibraries()
	app.initJWT()
	app.initDatabase()
	app.initCache()
	app.initMail()
	app.initStorage()
	app.initMessaging()
	app.initCasbin()
	app.initHTTPServer()
	app.initModules()
	app.initClosers()

	return app
}
