package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/bloodsync/bloodsync/internal/account/entity"
	"github.com/bloodsync/bloodsync/internal/pkg/clock"
	"github.com/bloodsync/bloodsync/internal/pkg/config"
	"github.com/bloodsync/bloodsync/internal/pkg/goerror"
	"github.com/bloodsync/bloodsync/internal/pkg/goroutine"
	"github.com/bloodsync/bloodsync/internal/pkg/hash"
	"github.com/bloodsync/bloodsync/internal/pkg/idempotency"
	"github.com/bloodsync/bloodsync/internal/pkg/instrument"
	"github.com/bloodsync/bloodsync/internal/pkg/jwt"
	"github.com/bloodsync/bloodsync/internal/pkg/otp"
	"github.com/bloodsync/bloodsync/internal/pkg/secretbox"
	"github.com/bloodsync/bloodsync/internal/pkg/storage"
	"github.com/bloodsync/bloodsync/internal/pkg/uid"
	"github.com/bloodsync/bloodsync/internal/pkg/validator"
	"go.opentelemetry.io/otel/trace"
)

type AccountRegisteredEvent struct {
	UserID           int64
	Email            string
	FullName         string
	OrganizationName string
	ActivationToken  string
}

type ResetCodeIssuedEvent struct {
	UserID    int64
	Email     string
	Code      string
	ExpiresAt time.Time
	Resend    bool
}

type PasswordChangedEvent struct {
	UserID    int64
	Email     string
	ChangedAt time.Time
}

type AccountModeratedEvent struct {
	UserID   int64
	Email    string
	FullName string
	Decision string
}

type repoMessaging interface {
	PublishAccountRegistered(ctx context.Context, msg AccountRegisteredEvent) error
	PublishResetCodeIssued(ctx context.Context, msg ResetCodeIssuedEvent) error
	PublishPasswordChanged(ctx context.Context, msg PasswordChangedEvent) error
	PublishAccountModerated(ctx context.Context, msg AccountModeratedEvent) error
}

type repoDB interface {
	GetUserByID(ctx context.Context, id int64) (*entity.User, error)
	GetUserCredentialByEmail(ctx context.Context, email string) (*entity.UserCredential, error)
	GetActivationUser(ctx context.Context, token string) (*entity.ActivationUser, error)
	ListUsers(ctx context.Context, filter entity.UserFilter) ([]entity.User, error)

	CreateUser(ctx context.Context, user entity.NewUser) error
	NewRegistration(ctx context.Context, user entity.NewUser, act entity.Activation) error
	VerifyRegistration(ctx context.Context, activationID int64, change entity.StatusChange) error
	UpdateUserStatus(ctx context.Context, change entity.StatusChange) error
	UpdateUserRole(ctx context.Context, id int64, kind entity.UserKind, role entity.Role, by int64) error
	UpdateUserPassword(ctx context.Context, id int64, hash string) error
	MarkUserDeleted(ctx context.Context, id int64, kind entity.UserKind, by int64) error
}

// repoCache keeps reset sessions. Issuing a session for a user replaces any
// earlier session of that user.
type repoCache interface {
	PutResetSession(ctx context.Context, s *entity.ResetSession, ttl time.Duration) error
	GetResetSession(ctx context.Context, flowID string) (*entity.ResetSession, error)
	IncrResetAttempts(ctx context.Context, flowID string, ttl time.Duration) (int, error)
	DeleteResetSession(ctx context.Context, s *entity.ResetSession) error
}

type enforcer interface {
	Enforce(rvals ...any) (bool, error)
	AddGroupingPolicy(params ...any) (bool, error)
	RemoveFilteredGroupingPolicy(fieldIndex int, fieldValues ...string) (bool, error)
}

type Usecase struct {
	repoDB        repoDB
	repoCache     repoCache
	repoMessaging repoMessaging
	idemp         idempotency.Idempotency
	validator     validator.Validator
	cfg           config.Config
	storage       storage.Storage
	hmac          hash.Hash
	password      hash.Hash
	otp           otp.Generator
	box           secretbox.Box
	uid           uid.NumberID
	token         uid.StringID
	clock         clock.Clocker
	jwt           jwt.JWT
	ins           instrument.Instrumentation
	enforcer      enforcer
	goroutine     *goroutine.Manager
}

type Dependency struct {
	RepoDB        repoDB
	RepoCache     repoCache
	RepoMessaging repoMessaging
	Idempotency   idempotency.Idempotency
	Validator     validator.Validator
	Config        config.Config
	Storage       storage.Storage
	HMAC          hash.Hash
	Password      hash.Hash
	OTP           otp.Generator
	SecretBox     secretbox.Box
	UID           uid.NumberID
	Token         uid.StringID
	Clock         clock.Clocker
	JWT           jwt.JWT
	Instrument    instrument.Instrumentation
	Enforcer      enforcer
	Goroutine     *goroutine.Manager
}

func New(dep Dependency) *Usecase {
	return &Usecase{
		repoDB:        dep.RepoDB,
		repoCache:     dep.RepoCache,
		repoMessaging: dep.RepoMessaging,
		idemp:         dep.Idempotency,
		validator:     dep.Validator,
		cfg:           dep.Config,
		storage:       dep.Storage,
		hmac:          dep.HMAC,
		password:      dep.Password,
		otp:           dep.OTP,
		box:           dep.SecretBox,
		uid:           dep.UID,
		token:         dep.Token,
		clock:         dep.Clock,
		jwt:           dep.JWT,
		ins:           dep.Instrument,
		enforcer:      dep.Enforcer,
		goroutine:     dep.Goroutine,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("account.usecase").Start(ctx, name)
}

// authorize checks the caller's casbin permission and returns its claims.
func (s *Usecase) authorize(ctx context.Context, obj, act string) (*jwt.Claims, error) {
	clm := jwt.GetAuth(ctx)
	if clm == nil {
		return nil, goerror.NewBusiness("Authentication required", goerror.CodeUnauthorized)
	}

	ok, err := s.enforcer.Enforce(clm.Subject, obj, act)
	if err != nil {
		slog.ErrorContext(ctx, "failed to check authorization", "user_id", clm.Subject, "error", err)
		return nil, goerror.NewServer(err)
	}
	if !ok {
		return nil, goerror.NewBusiness("Account not allowed", goerror.CodeForbidden)
	}

	return clm, nil
}

// digest maps a bearer token (activation or reset flow) to its lookup key.
func (s *Usecase) digest(token string) (string, error) {
	sum, err := s.hmac.Hash(token)
	if err != nil {
		return "", err
	}
	return string(sum), nil
}

// resetPolicy is read per call so that config reloads apply to the next request.
type resetPolicy struct {
	codeTTL        time.Duration
	resendCooldown time.Duration
	maxAttempts    int
	minPassword    int
	redirectDelay  time.Duration
}

func (s *Usecase) resetPolicy() resetPolicy {
	p := resetPolicy{
		codeTTL:        s.cfg.GetSecond("modules.account.reset.code_ttl_seconds"),
		resendCooldown: s.cfg.GetSecond("modules.account.reset.resend_cooldown_seconds"),
		maxAttempts:    s.cfg.GetInt("modules.account.reset.max_attempts"),
		minPassword:    s.cfg.GetInt("modules.account.reset.password_min_length"),
		redirectDelay:  s.cfg.GetSecond("modules.account.reset.redirect_delay_seconds"),
	}
	if p.codeTTL <= 0 {
		p.codeTTL = 300 * time.Second
	}
	if p.resendCooldown <= 0 {
		p.resendCooldown = 60 * time.Second
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = 5
	}
	if p.minPassword < 8 {
		p.minPassword = 8
	}
	if p.redirectDelay <= 0 {
		p.redirectDelay = 3 * time.Second
	}
	return p
}

// sessionTTL keeps a session readable past expiry so that clients can still
// be told EXPIRED rather than "not found".
func (p resetPolicy) sessionTTL() time.Duration {
	return p.codeTTL + max(p.resendCooldown, time.Minute)
}

func maskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	r := []rune(local)
	if !ok || len(r) == 0 {
		return email
	}
	return string(r[0]) + strings.Repeat("*", max(len(r)-1, 3)) + "@" + domain
}
