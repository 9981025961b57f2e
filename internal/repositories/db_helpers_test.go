//go:build integration

package repositories

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/BradenHooton/cadmium/internal/database"
	"github.com/BradenHooton/cadmium/internal/models"
)

// testDB manages a PostgreSQL testcontainer with the schema migrated
type testDB struct {
	container testcontainers.Container
	db        *database.DB
}

func setupTestDatabase(t *testing.T) *testDB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("cadmium"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, database.Migrate(ctx, connStr, nil), "failed to run migrations")

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(ctx))

	tdb := &testDB{container: container, db: database.New(pool, nil)}
	t.Cleanup(func() {
		pool.Close()
		_ = container.Terminate(context.Background())
	})
	return tdb
}

// cleanupTables truncates all tables for test isolation
func (tdb *testDB) cleanupTables(t *testing.T) {
	t.Helper()
	for _, table := range []string{"attendance", "audit_logs", "accounts", "inventory_items"} {
		_, err := tdb.db.Pool.Exec(context.Background(), fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		require.NoError(t, err)
	}
}

func seedAccount(t *testing.T, repo *AccountRepository, username, rut string, admin, collaborator bool) *models.Account {
	t.Helper()
	a, err := repo.Create(context.Background(), &models.Account{
		Username:           username,
		PasswordHash:       "$2a$04$placeholderplaceholderplaceholderplaceholderplacehol",
		FirstName:          "Test",
		LastName:           username,
		RUT:                rut,
		Email:              username + "@cadmium.cl",
		IsAdministrator:    admin,
		IsCollaborator:     collaborator,
		MustChangePassword: true,
	})
	require.NoError(t, err)
	return a
}
