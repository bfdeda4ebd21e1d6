package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ankitvars/ai-resume-builder/internal/models"
	"github.com/ankitvars/ai-resume-builder/internal/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRepo(t *testing.T) *PostgresRepo {
	t.Helper()

	if testing.Short() {
		t.Skip("postgres container tests skipped in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:17-alpine",
		tcpostgres.WithDatabase("resume_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgContainer.Terminate(ctx) })

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	repo, err := Connect(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(repo.Close)

	require.NoError(t, repo.Migrate(ctx))

	return repo
}

func newUser(email string) models.User {
	return models.User{
		ID:       uuid.New(),
		Email:    email,
		Name:     "Alice",
		PassHash: []byte("old-hash"),
	}
}

func TestPostgresRepo(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, repo.Ping(ctx))
	})

	t.Run("save and load user", func(t *testing.T) {
		u := newUser("load@example.com")
		require.NoError(t, repo.SaveUser(ctx, u))

		got, err := repo.User(ctx, "load@example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
		assert.Equal(t, "Alice", got.Name)
		assert.Equal(t, []byte("old-hash"), got.PassHash)

		byID, err := repo.UserByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, u.Email, byID.Email)
	})

	t.Run("duplicate email", func(t *testing.T) {
		require.NoError(t, repo.SaveUser(ctx, newUser("dup@example.com")))

		err := repo.SaveUser(ctx, newUser("dup@example.com"))
		assert.ErrorIs(t, err, storage.ErrUserExists)
	})

	t.Run("user not found", func(t *testing.T) {
		_, err := repo.User(ctx, "ghost@example.com")
		assert.ErrorIs(t, err, storage.ErrUserNotFound)

		_, err = repo.UserByID(ctx, uuid.New())
		assert.ErrorIs(t, err, storage.ErrUserNotFound)
	})

	t.Run("reset token lookup honours expiry", func(t *testing.T) {
		now := time.Now()

		require.NoError(t, repo.SaveResetToken(ctx, models.PasswordResetToken{
			Email:     "load@example.com",
			TokenHash: "live-hash",
			ExpiresAt: now.Add(30 * time.Minute),
		}))
		require.NoError(t, repo.SaveResetToken(ctx, models.PasswordResetToken{
			Email:     "load@example.com",
			TokenHash: "dead-hash",
			ExpiresAt: now.Add(-time.Minute),
		}))

		tok, err := repo.ResetToken(ctx, "live-hash", now)
		require.NoError(t, err)
		assert.Equal(t, "load@example.com", tok.Email)

		_, err = repo.ResetToken(ctx, "dead-hash", now)
		assert.ErrorIs(t, err, storage.ErrResetTokenNotFound)
	})

	t.Run("reset password consumes every token for the email", func(t *testing.T) {
		u := newUser("reset@example.com")
		require.NoError(t, repo.SaveUser(ctx, u))

		now := time.Now()
		for _, h := range []string{"r1", "r2", "r3"} {
			require.NoError(t, repo.SaveResetToken(ctx, models.PasswordResetToken{
				Email:     u.Email,
				TokenHash: h,
				ExpiresAt: now.Add(30 * time.Minute),
			}))
		}

		require.NoError(t, repo.ResetPassword(ctx, "r2", []byte("new-hash"), now))

		got, err := repo.User(ctx, u.Email)
		require.NoError(t, err)
		assert.Equal(t, []byte("new-hash"), got.PassHash)

		for _, h := range []string{"r1", "r2", "r3"} {
			_, err := repo.ResetToken(ctx, h, now)
			assert.ErrorIs(t, err, storage.ErrResetTokenNotFound, h)
		}

		err = repo.ResetPassword(ctx, "r2", []byte("newer-hash"), now)
		assert.ErrorIs(t, err, storage.ErrResetTokenNotFound)
	})

	t.Run("expired token does not reset", func(t *testing.T) {
		u := newUser("expired@example.com")
		require.NoError(t, repo.SaveUser(ctx, u))

		now := time.Now()
		require.NoError(t, repo.SaveResetToken(ctx, models.PasswordResetToken{
			Email:     u.Email,
			TokenHash: "expired",
			ExpiresAt: now.Add(-time.Second),
		}))

		err := repo.ResetPassword(ctx, "expired", []byte("new-hash"), now)
		assert.ErrorIs(t, err, storage.ErrResetTokenNotFound)

		got, err := repo.User(ctx, u.Email)
		require.NoError(t, err)
		assert.Equal(t, []byte("old-hash"), got.PassHash)
	})

	t.Run("concurrent resets for one account apply once", func(t *testing.T) {
		u := newUser("race@example.com")
		require.NoError(t, repo.SaveUser(ctx, u))

		now := time.Now()
		hashes := []string{"c1", "c2", "c3", "c4"}
		for _, h := range hashes {
			require.NoError(t, repo.SaveResetToken(ctx, models.PasswordResetToken{
				Email:     u.Email,
				TokenHash: h,
				ExpiresAt: now.Add(30 * time.Minute),
			}))
		}

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
		)

		for _, h := range hashes {
			wg.Add(1)
			go func(h string) {
				defer wg.Done()

				if err := repo.ResetPassword(ctx, h, []byte("hash-"+h), now); err == nil {
					mu.Lock()
					successes++
					mu.Unlock()
				}
			}(h)
		}
		wg.Wait()

		assert.Equal(t, 1, successes)
	})

	t.Run("cleanup removes only expired rows", func(t *testing.T) {
		now := time.Now()

		require.NoError(t, repo.SaveResetToken(ctx, models.PasswordResetToken{
			Email: "gc@example.com", TokenHash: "gc-live", ExpiresAt: now.Add(time.Hour),
		}))
		require.NoError(t, repo.SaveResetToken(ctx, models.PasswordResetToken{
			Email: "gc@example.com", TokenHash: "gc-dead", ExpiresAt: now.Add(-time.Hour),
		}))

		deleted, err := repo.DeleteExpiredResetTokens(ctx, now)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, deleted, int64(1))

		_, err = repo.ResetToken(ctx, "gc-live", now)
		assert.NoError(t, err)
	})
}
