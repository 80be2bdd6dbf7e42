package usecase

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"sync"
	"testing"
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
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- repositories ----

type userRecord struct {
	user     entity.User
	password string
	deleted  bool
}

type fakeDB struct {
	mu          sync.Mutex
	users       map[int64]*userRecord
	activations map[string]*entity.Activation
	used        map[int64]bool
	failCreate  error
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		users:       map[int64]*userRecord{},
		activations: map[string]*entity.Activation{},
		used:        map[int64]bool{},
	}
}

func (f *fakeDB) add(u entity.User, password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = &userRecord{user: u, password: password}
}

func (f *fakeDB) get(id int64) *userRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id]
}

func (f *fakeDB) live(id int64) (*userRecord, bool) {
	rec, ok := f.users[id]
	if !ok || rec.deleted {
		return nil, false
	}
	return rec, true
}

func (f *fakeDB) GetUserByID(_ context.Context, id int64) (*entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.live(id)
	if !ok {
		return nil, goerror.ErrNotFound
	}
	u := rec.user
	return &u, nil
}

func (f *fakeDB) GetUserCredentialByEmail(_ context.Context, email string) (*entity.UserCredential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.users {
		if !rec.deleted && rec.user.Email == email {
			return &entity.UserCredential{
				ID: rec.user.ID, Kind: rec.user.Kind, Email: rec.user.Email,
				Role: rec.user.Role, Status: rec.user.Status, PasswordHash: rec.password,
			}, nil
		}
	}
	return nil, goerror.ErrNotFound
}

func (f *fakeDB) GetActivationUser(_ context.Context, token string) (*entity.ActivationUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	act, ok := f.activations[token]
	if !ok || f.used[act.ID] {
		return nil, goerror.ErrNotFound
	}
	rec, ok := f.live(act.UserID)
	if !ok {
		return nil, goerror.ErrNotFound
	}
	return &entity.ActivationUser{
		ActivationID: act.ID, ExpiresAt: act.ExpiresAt, UserID: rec.user.ID,
		UserEmail: rec.user.Email, UserKind: rec.user.Kind, UserStatus: rec.user.Status,
	}, nil
}

func (f *fakeDB) ListUsers(_ context.Context, filter entity.UserFilter) ([]entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.User
	for _, rec := range f.users {
		if !rec.deleted && rec.user.Kind == filter.Kind && slices.Contains(filter.Statuses, rec.user.Status) {
			out = append(out, rec.user)
		}
	}
	slices.SortFunc(out, func(a, b entity.User) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (f *fakeDB) CreateUser(_ context.Context, user entity.NewUser) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.users {
		if !rec.deleted && rec.user.Email == user.Email {
			return goerror.ErrConflict
		}
	}
	f.users[user.ID] = &userRecord{
		user: entity.User{
			ID: user.ID, Kind: user.Kind, Email: user.Email, FullName: user.FullName,
			Role: user.Role, Status: user.Status,
		},
		password: user.PasswordHash,
	}
	return nil
}

func (f *fakeDB) NewRegistration(_ context.Context, user entity.NewUser, act entity.Activation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate != nil {
		return f.failCreate
	}
	for _, rec := range f.users {
		if !rec.deleted && rec.user.Email == user.Email {
			return goerror.ErrConflict
		}
	}
	f.users[user.ID] = &userRecord{
		user: entity.User{
			ID: user.ID, Kind: user.Kind, Email: user.Email, FullName: user.FullName,
			OrganizationName: user.OrganizationName, ContactNumber: user.ContactNumber,
			Role: user.Role, Status: user.Status, AccreditationKey: user.AccreditationKey,
		},
		password: user.PasswordHash,
	}
	a := act
	f.activations[act.Token] = &a
	return nil
}

func (f *fakeDB) VerifyRegistration(_ context.Context, activationID int64, change entity.StatusChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.used[activationID] {
		return goerror.ErrNotFound
	}
	rec, ok := f.live(change.UserID)
	if !ok || rec.user.Status != change.From {
		return goerror.ErrNotFound
	}
	f.used[activationID] = true
	rec.user.Status = change.To
	return nil
}

func (f *fakeDB) UpdateUserStatus(_ context.Context, change entity.StatusChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.live(change.UserID)
	if !ok || rec.user.Kind != change.Kind || rec.user.Status != change.From {
		return goerror.ErrNotFound
	}
	rec.user.Status = change.To
	return nil
}

func (f *fakeDB) UpdateUserRole(_ context.Context, id int64, kind entity.UserKind, role entity.Role, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.live(id)
	if !ok || rec.user.Kind != kind {
		return goerror.ErrNotFound
	}
	rec.user.Role = role
	return nil
}

func (f *fakeDB) UpdateUserPassword(_ context.Context, id int64, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.live(id)
	if !ok || rec.user.Status != entity.UserStatusActive {
		return goerror.ErrNotFound
	}
	rec.password = hash
	return nil
}

func (f *fakeDB) MarkUserDeleted(_ context.Context, id int64, kind entity.UserKind, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.live(id)
	if !ok || rec.user.Kind != kind {
		return goerror.ErrNotFound
	}
	rec.deleted = true
	return nil
}

type fakeCache struct {
	mu       sync.Mutex
	sessions map[string]entity.ResetSession
	attempts map[string]int
	byUser   map[int64]string
	gets     int
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		sessions: map[string]entity.ResetSession{},
		attempts: map[string]int{},
		byUser:   map[int64]string{},
	}
}

func (f *fakeCache) PutResetSession(_ context.Context, s *entity.ResetSession, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.Redeemable() {
		if prev, ok := f.byUser[s.UserID]; ok && prev != s.FlowID {
			delete(f.sessions, prev)
			delete(f.attempts, prev)
		}
		f.byUser[s.UserID] = s.FlowID
	}
	f.sessions[s.FlowID] = *s
	delete(f.attempts, s.FlowID)
	return nil
}

func (f *fakeCache) GetResetSession(_ context.Context, flowID string) (*entity.ResetSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	s, ok := f.sessions[flowID]
	if !ok {
		return nil, goerror.ErrNotFound
	}
	return &s, nil
}

func (f *fakeCache) IncrResetAttempts(_ context.Context, flowID string, _ time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts[flowID]++
	return f.attempts[flowID], nil
}

func (f *fakeCache) DeleteResetSession(_ context.Context, s *entity.ResetSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, s.FlowID)
	delete(f.attempts, s.FlowID)
	if f.byUser[s.UserID] == s.FlowID {
		delete(f.byUser, s.UserID)
	}
	return nil
}

func (f *fakeCache) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

type fakeMQ struct {
	mu         sync.Mutex
	registered []AccountRegisteredEvent
	codes      []ResetCodeIssuedEvent
	changed    []PasswordChangedEvent
	moderated  []AccountModeratedEvent
	err        error
}

func (f *fakeMQ) PublishAccountRegistered(_ context.Context, msg AccountRegisteredEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = append(f.registered, msg)
	return f.err
}

func (f *fakeMQ) PublishResetCodeIssued(_ context.Context, msg ResetCodeIssuedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.codes = append(f.codes, msg)
	return nil
}

func (f *fakeMQ) PublishPasswordChanged(_ context.Context, msg PasswordChangedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changed = append(f.changed, msg)
	return f.err
}

func (f *fakeMQ) PublishAccountModerated(_ context.Context, msg AccountModeratedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moderated = append(f.moderated, msg)
	return f.err
}

func (f *fakeMQ) lastCode(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.codes, "no reset code published")
	return f.codes[len(f.codes)-1].Code
}

type fakeIdempotency struct {
	mu   sync.Mutex
	done map[string]bool
}

func (f *fakeIdempotency) Exec(ctx context.Context, key string, fn func(context.Context) error, _ ...idempotency.Option) error {
	f.mu.Lock()
	if f.done[key] {
		f.mu.Unlock()
		return idempotency.ErrAlreadyCompleted
	}
	f.mu.Unlock()

	if err := fn(ctx); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.done[key] = true
	return nil
}

// fakeEnforcer grants everything to subjects grouped into "admin".
type fakeEnforcer struct {
	mu     sync.Mutex
	groups map[string]string
}

func (f *fakeEnforcer) Enforce(rvals ...any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.groups[rvals[0].(string)] == entity.RoleAdmin.String(), nil
}

func (f *fakeEnforcer) AddGroupingPolicy(params ...any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groups[params[0].(string)] = params[1].(string)
	return true, nil
}

func (f *fakeEnforcer) RemoveFilteredGroupingPolicy(_ int, fieldValues ...string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.groups[fieldValues[0]]
	delete(f.groups, fieldValues[0])
	return ok, nil
}

func (f *fakeEnforcer) role(id int64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.groups[strconv.FormatInt(id, 10)]
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut error
}

func (f *fakeStorage) Close() error { return nil }

func (f *fakeStorage) PutObject(_ context.Context, bucket, key string, r io.Reader, opts storage.PutOptions) (storage.ObjectInfo, error) {
	if f.failPut != nil {
		return storage.ObjectInfo{}, f.failPut
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return storage.ObjectInfo{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucket+"/"+key] = buf.Bytes()
	return storage.ObjectInfo{Bucket: bucket, Key: key, Size: int64(buf.Len()), ContentType: opts.ContentType}, nil
}

func (f *fakeStorage) StatObject(_ context.Context, bucket, key string) (storage.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[bucket+"/"+key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Bucket: bucket, Key: key, Size: int64(len(b))}, nil
}

func (f *fakeStorage) DeleteObject(_ context.Context, bucket, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, bucket+"/"+key)
	return nil
}

func (f *fakeStorage) PresignGet(_ context.Context, bucket, key string, expiry time.Duration) (string, error) {
	return fmt.Sprintf("https://objects.test/%s/%s?expires=%d", bucket, key, int(expiry.Seconds())), nil
}

func (f *fakeStorage) has(bucket, key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[bucket+"/"+key]
	return ok
}

// ---- harness ----

const testConfig = `
modules:
  account:
    activation_ttl_hours: 24
    reset:
      code_ttl_seconds: 300
      resend_cooldown_seconds: 60
      max_attempts: 3
      password_min_length: 10
      redirect_delay_seconds: 3
      reveal_unknown_email: %t
    accreditation:
      bucket: accreditations
      max_bytes: 64
      url_ttl_minutes: 15
`

var testStart = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type harness struct {
	uc       *Usecase
	db       *fakeDB
	cache    *fakeCache
	mq       *fakeMQ
	enforcer *fakeEnforcer
	storage  *fakeStorage
	clock    *clock.Fixed
	password hash.Hash
	hmac     hash.Hash
	jwt      jwt.JWT
	routines *goroutine.Manager
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	revealUnknown bool
}

func revealUnknownEmail() harnessOption {
	return func(c *harnessConfig) { c.revealUnknown = true }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	var hc harnessConfig
	for _, opt := range opts {
		opt(&hc)
	}

	cfg, err := config.NewViperFromBytes("yaml", []byte(fmt.Sprintf(testConfig, hc.revealUnknown)))
	require.NoError(t, err)

	v, err := validator.NewV10Validator()
	require.NoError(t, err)

	box, err := secretbox.NewAESGCM(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)

	snow, err := uid.NewSnowflakeNode(1)
	require.NoError(t, err)

	clk := clock.NewFixed(testStart)

	tokens, err := jwt.NewHS512(jwt.Config{
		Secret:    bytes.Repeat([]byte("k"), 64),
		Issuer:    "bloodsync",
		Audiences: []string{"bloodsync-app"},
		TTL:       15 * time.Minute,
		Clock:     clk,
		UUID:      uid.NewUUID(),
	})
	require.NoError(t, err)

	h := &harness{
		db:       newFakeDB(),
		cache:    newFakeCache(),
		mq:       &fakeMQ{},
		enforcer: &fakeEnforcer{groups: map[string]string{}},
		storage:  &fakeStorage{objects: map[string][]byte{}},
		clock:    clk,
		password: hash.NewBcrypt(4, "pepper"),
		hmac:     hash.NewHMACSHA256("hmac-secret"),
		jwt:      tokens,
		routines: goroutine.NewManager(4),
	}

	h.uc = New(Dependency{
		RepoDB:        h.db,
		RepoCache:     h.cache,
		RepoMessaging: h.mq,
		Idempotency:   &fakeIdempotency{done: map[string]bool{}},
		Validator:     v,
		Config:        cfg,
		Storage:       h.storage,
		HMAC:          h.hmac,
		Password:      h.password,
		OTP:           otp.NewHOTP(6),
		SecretBox:     box,
		UID:           snow,
		Token:         uid.NewToken(32),
		Clock:         clk,
		JWT:           tokens,
		Instrument:    instrument.NewNoop(),
		Enforcer:      h.enforcer,
		Goroutine:     h.routines,
	})

	return h
}

const (
	adminID = int64(1)
	donorPW = "Original#Pass1"
)

// seedActive stores an active account and returns its id.
func (h *harness) seedActive(t *testing.T, id int64, kind entity.UserKind, email string, role entity.Role) int64 {
	t.Helper()
	hashed, err := h.password.Hash(donorPW)
	require.NoError(t, err)

	h.db.add(entity.User{ID: id, Kind: kind, Email: email, FullName: "Seeded User", Role: role, Status: entity.UserStatusActive}, string(hashed))
	if role == entity.RoleAdmin {
		h.enforcer.groups[strconv.FormatInt(id, 10)] = role.String()
	}
	return id
}

func (h *harness) seedPending(t *testing.T, id int64, email string) int64 {
	t.Helper()
	h.db.add(entity.User{
		ID: id, Kind: entity.UserKindOrganization, Email: email, FullName: "Org Contact",
		OrganizationName: "Red Cross Chapter", Role: entity.RoleOrgCoordinator, Status: entity.UserStatusPending,
	}, "x")
	return id
}

func asUser(id int64) context.Context {
	return jwt.SetAuth(context.Background(), jwt.Claims{
		RegisteredClaims: jwtv5.RegisteredClaims{Subject: strconv.FormatInt(id, 10)},
		UserID:           id,
	})
}

func assertCode(t *testing.T, err error, code goerror.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code.String(), goerror.CodeOf(err).String(), "error: %v", err)
}
