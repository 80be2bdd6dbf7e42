package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/bloodsync/bloodsync/internal/pkg/clock"
	"github.com/bloodsync/bloodsync/internal/pkg/config"
	"github.com/bloodsync/bloodsync/internal/pkg/goroutine"
	"github.com/bloodsync/bloodsync/internal/pkg/hash"
	"github.com/bloodsync/bloodsync/internal/pkg/idempotency"
	"github.com/bloodsync/bloodsync/internal/pkg/instrument"
	"github.com/bloodsync/bloodsync/internal/pkg/jwt"
	"github.com/bloodsync/bloodsync/internal/pkg/mail"
	"github.com/bloodsync/bloodsync/internal/pkg/messaging"
	"github.com/bloodsync/bloodsync/internal/pkg/migration"
	"github.com/bloodsync/bloodsync/internal/pkg/otp"
	"github.com/bloodsync/bloodsync/internal/pkg/pgxcasbin"
	"github.com/bloodsync/bloodsync/internal/pkg/router"
	"github.com/bloodsync/bloodsync/internal/pkg/secretbox"
	"github.com/bloodsync/bloodsync/internal/pkg/storage"
	"github.com/bloodsync/bloodsync/internal/pkg/uid"
	"github.com/bloodsync/bloodsync/internal/pkg/validator"
	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

func (a *App) initConfig() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "/config/config.yaml"
		if os.Getenv("LOCAL") == "true" {
			path = "./config/config.yaml"
		}
	}

	cfg, err := config.NewViper(path)
	if err != nil {
		slog.Error("failed to init config", "error", err)
		os.Exit(1)
	}

	//nolint:errcheck,gosec // ignore error
	os.Setenv("TZ", cfg.GetString("app.tz"))

	a.config = cfg
}

func (a *App) initInstrument() {
	ins, err := instrument.New(context.Background(), &instrument.Config{
		Enabled:          a.config.GetBool("instrument.enabled"),
		ServiceName:      a.config.GetString("instrument.service_name"),
		ServiceVersion:   a.config.GetString("instrument.service_version"),
		Environment:      a.config.GetString("instrument.env"),
		OTLPEndpoint:     a.config.GetString("instrument.otlp_endpoint"),
		OTLPSecure:       a.config.GetBool("instrument.otlp_secure"),
		TraceSampleRatio: a.config.GetFloat64("instrument.trace_sample_ratio"),
		MetricsInterval:  a.config.GetSecond("instrument.metric_interval_seconds"),
		LogLevel:         a.config.GetString("instrument.log_level"),
		MaskFields:       a.config.GetArray("instrument.log_mask_fields"),
	})
	if err != nil {
		slog.Error("failed to init instrumentation", "error", err)
		os.Exit(1)
	}
	a.ins = ins
}

func (a *App) initLibraries() {
	a.clock = clock.New()
	a.uuid = uid.NewUUID()
	a.token = uid.NewToken(a.config.GetInt("app.token_random_bytes"))
	a.goroutine = goroutine.NewManager(a.config.GetInt("app.server.max_goroutine"))
	a.hmac = hash.NewHMACSHA256(a.config.GetString("hash.hmac.secret"))
	a.otp = otp.NewHOTP(a.config.GetInt("modules.account.reset.code_length"))

	password, err := hash.NewPassword(hash.PasswordConfig{
		Algorithm:  a.config.GetString("hash.password.algorithm"),
		Pepper:     a.config.GetString("hash.password.pepper"),
		BcryptCost: a.config.GetInt("hash.password.bcrypt_cost"),
	})
	if err != nil {
		slog.Error("failed to init password hash", "error", err)
		os.Exit(1)
	}
	a.password = password

	validator, err := validator.NewV10Validator()
	if err != nil {
		slog.Error("failed to init validation v10 validator", "error", err)
		os.Exit(1)
	}
	a.validator = validator

	snow, err := uid.NewSnowflakeNode(a.config.GetInt64("app.node_id"))
	if err != nil {
		slog.Error("failed to init uid number snowflake", "error", err)
		os.Exit(1)
	}
	a.uid = snow

	box, err := secretbox.NewAESGCM(a.config.GetBinary("secretbox.key"))
	if err != nil {
		slog.Error("failed to init secretbox, key must be 32 base64 encoded bytes", "error", err)
		os.Exit(1)
	}
	a.secretbox = box
}

func (a *App) initJWT() {
	defaultJWT, err := jwt.NewHS512(jwt.Config{
		Secret:    []byte(a.config.GetString("jwt.secret")),
		Issuer:    a.config.GetString("jwt.issuer"),
		Audiences: a.config.GetArray("jwt.audiences"),
		TTL:       a.config.GetMinute("jwt.ttl_minutes"),
		Clock:     a.clock,
		UUID:      a.uuid,
	})
	if err != nil {
		slog.Error("failed to init jwt token", "error", err)
		os.Exit(1)
	}
	a.jwt = defaultJWT
}

func (a *App) initDatabase() {
	config, err := pgxpool.ParseConfig(a.config.GetString("database.url"))
	if err != nil {
		slog.Error("failed to parse DB connection string.", "error", err)
		os.Exit(1)
	}

	config.MaxConns = a.config.GetInt32("database.pool.max_conns")
	config.MinConns = a.config.GetInt32("database.pool.min_conns")
	config.MaxConnLifetime = a.config.GetSecond("database.pool.max_conn_lifetime_seconds")
	config.MaxConnIdleTime = a.config.GetSecond("database.pool.max_conn_idle_seconds")
	config.HealthCheckPeriod = a.config.GetSecond("database.pool.health_check_period_seconds")

	pool, err := pgxpool.NewWithConfig(a.ctx, config)
	if err != nil {
		slog.Error("failed to create DB connection pool", "error", err)
		os.Exit(1)
	}

	pingCtx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		slog.Error("failed to ping DB", "error", err)
		os.Exit(1)
	}

	if a.config.GetBool("database.migrate") {
		if err := migration.Up(pool); err != nil {
			slog.Error("failed to migrate DB", "error", err)
			os.Exit(1)
		}
	}

	a.dbConn = pool
}

func (a *App) initCache() {
	opt, err := redis.ParseURL(a.config.GetString("redis.url"))
	if err != nil {
		slog.Error("failed to parse redis url", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		slog.Error("failed to init redis", "error", err)
		os.Exit(1)
	}

	a.cacheConn = rdb
	a.idemp = idempotency.New(a.cacheConn)
}

func (a *App) initMail() {
	mail, err := mail.NewSMTP(mail.SMTPConfig{
		Host:     a.config.GetString("mail.host"),
		Port:     a.config.GetInt("mail.port"),
		Username: a.config.GetString("mail.username"),
		Password: a.config.GetString("mail.password"),
		From:     a.config.GetString("mail.from"),
	})
	if err != nil {
		slog.Error("failed to init mail", "error", err)
		os.Exit(1)
	}

	a.mail = mail
}

func (a *App) initStorage() {
	driver := strings.TrimSpace(a.config.GetString("storage.driver"))

	var gcsClient *gcs.Client
	if driver == storage.DriverGCS {
		opts, err := a.googleClientOptions("storage.gcs", gcs.ScopeFullControl)
		if err != nil {
			slog.Error("failed to read gcs credentials", "error", err)
			os.Exit(1)
		}

		gcsClient, err = gcs.NewClient(a.ctx, opts...)
		if err != nil {
			slog.Error("failed to init gcs client", "error", err)
			os.Exit(1)
		}
	}

	stg, err := storage.NewFromDriver(a.ctx, driver, storage.FactoryOptions{
		S3: storage.S3Options{
			Region:       strings.TrimSpace(a.config.GetString("storage.s3.region")),
			Endpoint:     strings.TrimSpace(a.config.GetString("storage.s3.endpoint")),
			AccessKey:    strings.TrimSpace(a.config.GetString("storage.s3.access_key")),
			SecretKey:    strings.TrimSpace(a.config.GetString("storage.s3.secret_key")),
			SessionToken: strings.TrimSpace(a.config.GetString("storage.s3.session_token")),
			UsePathStyle: a.config.GetBool("storage.s3.use_path_style"),
		},
		MinIO: storage.MinIOOptions{
			Region:       strings.TrimSpace(a.config.GetString("storage.minio.region")),
			Endpoint:     strings.TrimSpace(a.config.GetString("storage.minio.endpoint")),
			AccessKey:    strings.TrimSpace(a.config.GetString("storage.minio.access_key")),
			SecretKey:    strings.TrimSpace(a.config.GetString("storage.minio.secret_key")),
			SessionToken: strings.TrimSpace(a.config.GetString("storage.minio.session_token")),
			UseSSL:       a.config.GetBool("storage.minio.use_ssl"),
		},
		GCS: storage.GCSOptions{
			Client:         gcsClient,
			GoogleAccessID: strings.TrimSpace(a.config.GetString("storage.gcs.signer_access_id")),
			PrivateKey:     a.config.GetBinary("storage.gcs.signer_private_key"),
		},
	})
	if err != nil {
		slog.Error("failed to init storage", "error", err)
		os.Exit(1)
	}

	a.storage = stg
}

func (a *App) initMessaging() {
	driver := a.config.GetString("messaging.driver")

	var pubsubOpts []option.ClientOption
	if driver == messaging.DriverPubSub {
		opts, err := a.googleClientOptions("messaging.pubsub", scopeCloudPlatform)
		if err != nil {
			slog.Error("failed to read pubsub credentials", "error", err)
			os.Exit(1)
		}
		pubsubOpts = opts
	}

	client, err := messaging.NewFromDriver(a.ctx, driver, messaging.FactoryOptions{
		NSQ: messaging.NSQConfig{
			ProducerAddr: a.config.GetString("messaging.nsq.producer_addr"),
			NSQDAddrs:    a.config.GetArray("messaging.nsq.consumer_nsqd_addrs"),
			LookupdAddrs: a.config.GetArray("messaging.nsq.consumer_lookupd_addrs"),
		},
		NATS: messaging.NATSConfig{
			URL: a.config.GetString("messaging.nats.url"),
			Options: []nats.Option{
				nats.Name(a.config.GetString("messaging.nats.name")),
				nats.MaxReconnects(a.config.GetInt("messaging.nats.max_reconnects")),
				nats.Timeout(a.config.GetSecond("messaging.nats.timeout_seconds")),
				nats.ReconnectWait(a.config.GetSecond("messaging.nats.reconnect_wait_seconds")),
				nats.PingInterval(a.config.GetSecond("messaging.nats.ping_interval_seconds")),
				nats.MaxPingsOutstanding(a.config.GetInt("messaging.nats.max_pings_outstanding")),
				nats.RetryOnFailedConnect(a.config.GetBool("messaging.nats.retry_on_failed_connect")),
			},
		},
		Kafka: messaging.KafkaConfig{
			Brokers: a.config.GetArray("messaging.kafka.brokers"),
		},
		PubSub: messaging.PubSubConfig{
			ProjectID:     strings.TrimSpace(a.config.GetString("messaging.pubsub.project_id")),
			ClientOptions: pubsubOpts,
		},
	})
	if err != nil {
		slog.Error("failed to init messaging", "error", err, "driver", driver)
		os.Exit(1)
	}

	a.messaging = client
}

const scopeCloudPlatform = "https://www.googleapis.com/auth/cloud-platform"

// googleClientOptions builds client options from <prefix>.credentials_file,
// <prefix>.credentials_json, <prefix>.endpoint and <prefix>.without_auth.
// With none of them set the client falls back to application default
// credentials, or to the emulator named by PUBSUB_EMULATOR_HOST /
// STORAGE_EMULATOR_HOST.
func (a *App) googleClientOptions(prefix, scope string) ([]option.ClientOption, error) {
	var opts []option.ClientOption

	if a.config.GetBool(prefix + ".without_auth") {
		opts = append(opts, option.WithoutAuthentication())
	}

	credsJSON := a.config.GetBinary(prefix + ".credentials_json")
	if path := strings.TrimSpace(a.config.GetString(prefix + ".credentials_file")); path != "" && len(credsJSON) == 0 {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		credsJSON = b
	}
	if len(credsJSON) > 0 {
		creds, err := google.CredentialsFromJSON(a.ctx, credsJSON, scope)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithCredentials(creds))
	}

	if v := strings.TrimSpace(a.config.GetString(prefix + ".endpoint")); v != "" {
		opts = append(opts, option.WithEndpoint(v))
	}

	return opts, nil
}

// rbacModel grants a subject (user id) everything its role group allows.
// "*" in a policy matches any object or action.
const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && (p.obj == "*" || r.obj == p.obj) && (p.act == "*" || r.act == p.act)
`

func (a *App) initCasbin() {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		slog.Error("failed to create model casbin", "error", err)
		os.Exit(1)
	}

	adapter := pgxcasbin.NewAdapter(a.dbConn, a.config.GetString("casbin.table"))

	e, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		slog.Error("failed to init casbin", "error", err)
		os.Exit(1)
	}

	watcher, err := pgxcasbin.NewWatcher(a.ctx, a.dbConn, a.config.GetString("casbin.channel"))
	if err != nil {
		slog.Error("failed to create watcher casbin", "error", err)
		os.Exit(1)
	}

	if err := watcher.SetUpdateCallback(pgxcasbin.ReloadCallback(e)); err != nil {
		slog.Error("failed to create watcher callback casbin", "error", err)
		os.Exit(1)
	}

	if err := e.SetWatcher(watcher); err != nil {
		slog.Error("failed to set watcher casbin", "error", err)
		os.Exit(1)
	}

	e.EnableAutoSave(true)
	e.EnableAutoNotifyWatcher(true)

	a.casbin = e
	a.casbinWatcher = watcher
}

func (a *App) initHTTPServer() {
	a.router = router.NewRouter(router.Config{
		Config:     a.config,
		UUID:       a.uuid,
		JWT:        a.jwt,
		Instrument: a.ins,

		TrustedProxies: a.config.GetArray("app.server.http.trusted_proxies"),
	})

	routerWithCORS := cors.New(cors.Options{
		AllowedOrigins: a.config.GetArray("app.server.cors"),
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(a.router)

	a.httpServer = &http.Server{
		Addr:              a.config.GetString("app.server.http.address"),
		Handler:           routerWithCORS,
		ReadTimeout:       a.config.GetSecond("app.server.http.read_timeout_seconds"),
		ReadHeaderTimeout: a.config.GetSecond("app.server.http.read_header_timeout_seconds"),
		WriteTimeout:      a.config.GetSecond("app.server.http.write_timeout_seconds"),
		IdleTimeout:       a.config.GetSecond("app.server.http.idle_timeout_seconds"),
	}
}

func (a *App) initClosers() {
	a.closers = []struct {
		name string
		fn   func(context.Context) error
	}{
		{
			name: "Instrument",
			fn: func(ctx context.Context) error {
				return a.ins.Shutdown(ctx)
			},
		},
		{
			name: "Messaging",
			fn: func(context.Context) error {
				return a.messaging.Close()
			},
		},
		{
			name: "CasbinWatcher",
			fn: func(context.Context) error {
				if a.casbinWatcher != nil {
					a.casbinWatcher.Close()
				}

				return nil
			},
		},
		{
			name: "Mail",
			fn: func(context.Context) error {
				return a.mail.Close()
			},
		},
		{
			name: "Redis",
			fn: func(context.Context) error {
				return a.cacheConn.Close()
			},
		},
		{
			name: "Database",
			fn: func(context.Context) error {
				a.dbConn.Close()

				return nil
			},
		},
		{
			name: "Storage",
			fn: func(context.Context) error {
				return a.storage.Close()
			},
		},
		{
			name: "Config",
			fn: func(context.Context) error {
				return a.config.Close()
			},
		},
	}
}
