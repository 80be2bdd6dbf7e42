package migration

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func TestUp(t *testing.T) {
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

	require.NoError(t, Up(pool))
	require.NoError(t, Up(pool), "second run must be a no-op")

	var policies int
	require.NoError(t, pool.QueryRow(ctx, `select count(*) from casbin_rules where ptype = 'p' and v0 = 'admin'`).Scan(&policies))
	assert.Equal(t, 2, policies)

	_, err = pool.Exec(ctx, `insert into account_users (id, kind, email, full_name, role, status, password, updated_by)
		values (1, 'staff', 'Ada@Example.com', 'Ada', 'admin', 3, 'x', 1)`)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `insert into account_users (id, kind, email, full_name, role, status, password, updated_by)
		values (2, 'staff', 'ada@example.com', 'Ada', 'admin', 3, 'x', 2)`)
	assert.Error(t, err, "email is unique regardless of case")
}
