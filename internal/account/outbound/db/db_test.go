package db

import (
	"context"
	"testing"
	"time"

	"github.com/bloodsync/bloodsync/internal/account/entity"
	"github.com/bloodsync/bloodsync/internal/pkg/goerror"
	"github.com/bloodsync/bloodsync/internal/pkg/instrument"
	"github.com/bloodsync/bloodsync/internal/pkg/migration"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func newTestDB(t *testing.T) (*DB, *pgxpool.Pool) {
	t.Helper()
	if testing.Short() {
		t.Skip("container test")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := tcpostgres.Run(ctx, "postgres:17-alpine",
		tcpostgres.WithDatabase("bloodsync"),
		tcpostgres.WithUsername("bloodsync"),
		tcpostgres.WithPassword("bloodsync"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, migration.Up(pool))
	return NewDB(pool, instrument.NewNoop()), pool
}

func orgUser(id int64, email string) entity.NewUser {
	return entity.NewUser{
		ID: id, Kind: entity.UserKindOrganization, Email: email, FullName: "Maria Santos",
		OrganizationName: "Red Cross", Role: entity.RoleOrgCoordinator,
		Status: entity.UserStatusUnverified, PasswordHash: "hash",
	}
}

func TestDB_RegistrationLifecycle(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	act := entity.Activation{ID: 100, UserID: 10, Token: "digest-10", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, db.NewRegistration(ctx, orgUser(10, "Org@RedCross.test"), act))

	err := db.NewRegistration(ctx, orgUser(11, "org@redcross.test"), entity.Activation{ID: 101, UserID: 11, Token: "digest-11", ExpiresAt: act.ExpiresAt})
	require.ErrorIs(t, err, goerror.ErrConflict)
	_, err = db.GetUserByID(ctx, 11)
	require.ErrorIs(t, err, goerror.ErrNotFound, "failed registration leaves nothing behind")

	cred, err := db.GetUserCredentialByEmail(ctx, "ORG@redcross.test")
	require.NoError(t, err)
	assert.Equal(t, int64(10), cred.ID)
	assert.Equal(t, entity.UserStatusUnverified, cred.Status)
	assert.Equal(t, "hash", cred.PasswordHash)

	au, err := db.GetActivationUser(ctx, "digest-10")
	require.NoError(t, err)
	assert.Equal(t, int64(100), au.ActivationID)
	assert.Equal(t, entity.UserKindOrganization, au.UserKind)

	change := entity.StatusChange{UserID: 10, Kind: entity.UserKindOrganization, From: entity.UserStatusUnverified, To: entity.UserStatusPending, By: 10}
	require.NoError(t, db.VerifyRegistration(ctx, 100, change))
	require.ErrorIs(t, db.VerifyRegistration(ctx, 100, change), goerror.ErrNotFound)

	_, err = db.GetActivationUser(ctx, "digest-10")
	require.ErrorIs(t, err, goerror.ErrNotFound)

	u, err := db.GetUserByID(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, entity.UserStatusPending, u.Status)
	assert.NotNil(t, u.VerifiedAt)
	assert.Nil(t, u.ApprovedAt)

	pending, err := db.ListUsers(ctx, entity.UserFilter{Kind: entity.UserKindOrganization, Statuses: []entity.UserStatus{entity.UserStatusPending}})
	require.NoError(t, err)
	require.Len(t, pending, 1)

	approve := entity.StatusChange{UserID: 10, Kind: entity.UserKindOrganization, From: entity.UserStatusPending, To: entity.UserStatusActive, By: 1}
	require.NoError(t, db.UpdateUserStatus(ctx, approve))
	require.ErrorIs(t, db.UpdateUserStatus(ctx, approve), goerror.ErrNotFound, "stale From is refused")

	u, err = db.GetUserByID(ctx, 10)
	require.NoError(t, err)
	assert.NotNil(t, u.ApprovedAt)

	require.NoError(t, db.UpdateUserPassword(ctx, 10, "new-hash"))
	cred, err = db.GetUserCredentialByEmail(ctx, "org@redcross.test")
	require.NoError(t, err)
	assert.Equal(t, "new-hash", cred.PasswordHash)

	require.NoError(t, db.UpdateUserRole(ctx, 10, entity.UserKindOrganization, entity.RoleOrgRequester, 1))
	require.ErrorIs(t, db.UpdateUserRole(ctx, 10, entity.UserKindStaff, entity.RoleScheduler, 1), goerror.ErrNotFound)

	require.NoError(t, db.MarkUserDeleted(ctx, 10, entity.UserKindOrganization, 1))
	_, err = db.GetUserByID(ctx, 10)
	require.ErrorIs(t, err, goerror.ErrNotFound)
	require.ErrorIs(t, db.UpdateUserPassword(ctx, 10, "again"), goerror.ErrNotFound)

	require.NoError(t, db.NewRegistration(ctx, orgUser(12, "org@redcross.test"),
		entity.Activation{ID: 102, UserID: 12, Token: "digest-12", ExpiresAt: act.ExpiresAt}), "deleted email can register again")
}

func TestDB_UpdateUserPasswordRequiresActive(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.NewRegistration(ctx, orgUser(20, "pending@org.test"),
		entity.Activation{ID: 200, UserID: 20, Token: "digest-20", ExpiresAt: time.Now().Add(time.Hour)}))

	require.ErrorIs(t, db.UpdateUserPassword(ctx, 20, "new"), goerror.ErrNotFound)
}

func TestDB_CreateUser(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	admin := entity.NewUser{
		ID: 30, Kind: entity.UserKindStaff, Email: "root@bloodsync.test", FullName: "Blood Bank Admin",
		Role: entity.RoleAdmin, Status: entity.UserStatusActive, PasswordHash: "hash",
	}
	require.NoError(t, db.CreateUser(ctx, admin))
	require.ErrorIs(t, db.CreateUser(ctx, admin), goerror.ErrConflict)

	cred, err := db.GetUserCredentialByEmail(ctx, "root@bloodsync.test")
	require.NoError(t, err)
	assert.Equal(t, entity.UserStatusActive, cred.Status)
	assert.Equal(t, entity.RoleAdmin, cred.Role)

	require.NoError(t, db.UpdateUserPassword(ctx, 30, "new-hash"))
}
