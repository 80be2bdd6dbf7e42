package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bloodsync/bloodsync/internal/notification/entity"
	"github.com/bloodsync/bloodsync/internal/pkg/clock"
	"github.com/bloodsync/bloodsync/internal/pkg/config"
	"github.com/bloodsync/bloodsync/internal/pkg/instrument"
	"github.com/bloodsync/bloodsync/internal/pkg/mail"
	"github.com/bloodsync/bloodsync/internal/pkg/uid"
	"github.com/bloodsync/bloodsync/internal/pkg/validator"
	"github.com/bloodsync/bloodsync/internal/shared/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDB struct {
	mu      sync.Mutex
	created []entity.CreateDelivery
	updated []entity.UpdateDelivery
}

func (f *fakeDB) CreateDelivery(_ context.Context, d entity.CreateDelivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, d)
	return nil
}

func (f *fakeDB) UpdateDeliveryStatus(_ context.Context, u entity.UpdateDelivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, u)
	return nil
}

type fakeMail struct {
	sent []mail.Message
	err  error
}

func (f *fakeMail) Send(_ context.Context, msg mail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

const testConfig = `
app:
  name: BloodSync
  web: https://bloodsync.test
modules:
  notification:
    support_email: help@bloodsync.test
    retry_after_minutes: 3
`

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestUsecase(t *testing.T) (*Usecase, *fakeDB, *fakeMail) {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(testConfig))
	require.NoError(t, err)
	v, err := validator.NewV10Validator()
	require.NoError(t, err)
	snow, err := uid.NewSnowflakeNode(2)
	require.NoError(t, err)

	db, m := &fakeDB{}, &fakeMail{}
	uc := NewNotification(Dependency{
		RepoDB:     db,
		RepoMail:   m,
		Config:     cfg,
		UID:        snow,
		Clock:      clock.NewFixed(now),
		Validator:  v,
		Instrument: instrument.NewNoop(),
	})
	return uc, db, m
}

func TestConsumeAccountRegistered(t *testing.T) {
	uc, db, m := newTestUsecase(t)

	err := uc.ConsumeAccountRegistered(context.Background(), ConsumeAccountRegisteredInput{
		UserID: 42, Email: "org@redcross.test", FullName: "Maria Santos",
		OrganizationName: "Red Cross <Cebu>", Token: "a+b/c",
	})
	require.NoError(t, err)

	require.Len(t, m.sent, 1)
	msg := m.sent[0]
	assert.Equal(t, []string{"org@redcross.test"}, msg.To)
	assert.Equal(t, "Verify your BloodSync account", msg.Subject)
	assert.Contains(t, msg.HTMLBody, "https://bloodsync.test/verify-account?token=a%2Bb%2Fc")
	assert.Contains(t, msg.HTMLBody, "Red Cross &lt;Cebu&gt;")
	assert.Contains(t, msg.HTMLBody, "help@bloodsync.test")
	assert.Contains(t, msg.HTMLBody, "2026 BloodSync")

	require.Len(t, db.created, 1)
	assert.Equal(t, entity.TriggerKeyAccountVerify, db.created[0].TriggerKey)
	assert.Equal(t, entity.DeliveryStatusQueued, db.created[0].Status)
	require.Len(t, db.updated, 1)
	assert.Equal(t, db.created[0].ID, db.updated[0].ID)
	assert.Equal(t, entity.DeliveryStatusSent, db.updated[0].Status)
}

func TestConsumeResetCodeIssued(t *testing.T) {
	uc, db, m := newTestUsecase(t)

	err := uc.ConsumeResetCodeIssued(context.Background(), ConsumeResetCodeIssuedInput{
		UserID: 7, Email: "donor@example.com", Code: "042917", ExpiresAt: now.Add(299 * time.Second), Resend: true,
	})
	require.NoError(t, err)

	require.Len(t, m.sent, 1)
	assert.Contains(t, m.sent[0].HTMLBody, "042917")
	assert.Contains(t, m.sent[0].HTMLBody, "expires in 5 minutes")
	assert.Contains(t, m.sent[0].HTMLBody, "Earlier codes no longer work")

	require.Len(t, db.created, 1)
	assert.NotContains(t, db.created[0].Data, "code")
	assert.Equal(t, true, db.created[0].Data["resend"])
}

func TestConsumeResetCodeIssued_AlreadyExpired(t *testing.T) {
	uc, db, m := newTestUsecase(t)

	err := uc.ConsumeResetCodeIssued(context.Background(), ConsumeResetCodeIssuedInput{
		UserID: 7, Email: "donor@example.com", Code: "042917", ExpiresAt: now,
	})

	require.NoError(t, err)
	assert.Empty(t, m.sent)
	assert.Empty(t, db.created)
}

func TestConsumePasswordChanged_MailFailure(t *testing.T) {
	uc, db, m := newTestUsecase(t)
	m.err = assert.AnError

	err := uc.ConsumePasswordChanged(context.Background(), ConsumePasswordChangedInput{
		UserID: 7, Email: "donor@example.com", ChangedAt: now,
	})

	require.ErrorIs(t, err, assert.AnError)
	require.Len(t, db.updated, 1)
	up := db.updated[0]
	assert.Equal(t, entity.DeliveryStatusFailed, up.Status)
	assert.Equal(t, assert.AnError.Error(), up.ProviderResponse.GetString("error"))
	require.NotNil(t, up.NextRetryAt)
	assert.True(t, up.NextRetryAt.Equal(now.Add(3*time.Minute)))
}

func TestConsumeAccountModerated(t *testing.T) {
	tests := []struct {
		decision event.Decision
		subject  string
	}{
		{event.DecisionApproved, "Your BloodSync account is approved"},
		{event.DecisionRejected, "Your BloodSync registration was not approved"},
		{event.DecisionRevoked, "Your BloodSync access was revoked"},
	}
	for _, tt := range tests {
		t.Run(string(tt.decision), func(t *testing.T) {
			uc, _, m := newTestUsecase(t)

			err := uc.ConsumeAccountModerated(context.Background(), ConsumeAccountModeratedInput{
				UserID: 9, Email: "org@redcross.test", FullName: "Maria Santos", Decision: string(tt.decision),
			})

			require.NoError(t, err)
			require.Len(t, m.sent, 1)
			assert.Equal(t, tt.subject, m.sent[0].Subject)
			assert.Contains(t, m.sent[0].HTMLBody, "Maria Santos")
		})
	}
}

func TestConsume_DropsUnusableMessages(t *testing.T) {
	uc, db, m := newTestUsecase(t)
	ctx := context.Background()

	require.NoError(t, uc.ConsumeAccountModerated(ctx, ConsumeAccountModeratedInput{UserID: 9, Email: "org@redcross.test", Decision: "suspended"}))
	require.NoError(t, uc.ConsumeAccountRegistered(ctx, ConsumeAccountRegisteredInput{UserID: 9, Email: "not-an-email", FullName: "X", Token: "t"}))
	require.NoError(t, uc.ConsumeResetCodeIssued(ctx, ConsumeResetCodeIssuedInput{UserID: 9, Email: "a@b.co", Code: "12ab56", ExpiresAt: now.Add(time.Minute)}))

	assert.Empty(t, m.sent)
	assert.Empty(t, db.created)
}
