package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ankitvars/ai-resume-builder/internal/config"
	"github.com/ankitvars/ai-resume-builder/internal/models"
	"github.com/ankitvars/ai-resume-builder/internal/storage"
	"github.com/ankitvars/ai-resume-builder/internal/storage/postgres/migrations"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const uniqueViolation = "23505"

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg *config.Config) (*PostgresRepo, error) {
	return Connect(ctx, cfg.Postgres.DSN())
}

func Connect(ctx context.Context, dsn string) (*PostgresRepo, error) {
	const op = "storage.postgres.Connect"

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	return &PostgresRepo{pool: pool}, nil
}

// * Migrate applies the embedded goose migrations.
func (r *PostgresRepo) Migrate(ctx context.Context) error {
	const op = "storage.postgres.Migrate"

	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrations.FS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) SaveUser(ctx context.Context, user models.User) error {
	const op = "storage.postgres.SaveUser"

	query := `
		INSERT INTO users (id, email, name, password_hash)
		VALUES ($1, $2, $3, $4);
	`

	_, err := r.pool.Exec(ctx, query, user.ID, user.Email, user.Name, string(user.PassHash))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return storage.ErrUserExists
		}

		return fmt.Errorf("%s: failed to save user: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) User(ctx context.Context, email string) (models.User, error) {
	const op = "storage.postgres.User"

	query := `
		SELECT id, email, name, password_hash, created_at
		FROM users
		WHERE email = $1;
	`

	u, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrUserNotFound
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

func (r *PostgresRepo) UserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	const op = "storage.postgres.UserByID"

	query := `
		SELECT id, email, name, password_hash, created_at
		FROM users
		WHERE id = $1;
	`

	u, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrUserNotFound
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

func (r *PostgresRepo) SaveResetToken(ctx context.Context, token models.PasswordResetToken) error {
	const op = "storage.postgres.SaveResetToken"

	const query = `
		INSERT INTO password_reset_tokens (email, token_hash, expires_at)
		VALUES ($1, $2, $3)
	`

	if _, err := r.pool.Exec(ctx, query, token.Email, token.TokenHash, token.ExpiresAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// * ResetToken returns the token record with this hash that is still valid at now.
func (r *PostgresRepo) ResetToken(ctx context.Context, tokenHash string, now time.Time) (models.PasswordResetToken, error) {
	const op = "storage.postgres.ResetToken"

	const query = `
		SELECT id, email, token_hash, expires_at, created_at
		FROM password_reset_tokens
		WHERE token_hash = $1 AND expires_at > $2;
	`

	var t models.PasswordResetToken

	err := r.pool.QueryRow(ctx, query, tokenHash, now).Scan(
		&t.ID,
		&t.Email,
		&t.TokenHash,
		&t.ExpiresAt,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.PasswordResetToken{}, storage.ErrResetTokenNotFound
		}

		return models.PasswordResetToken{}, fmt.Errorf("%s: %w", op, err)
	}

	return t, nil
}

// * ResetPassword consumes the token and replaces the password in one
// transaction. The user row is locked first so concurrent resets for the same
// account run one after another; the second one finds its token already gone.
func (r *PostgresRepo) ResetPassword(ctx context.Context, tokenHash string, passHash []byte, now time.Time) error {
	const op = "storage.postgres.ResetPassword"

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var email string

		err := tx.QueryRow(ctx,
			`SELECT email FROM password_reset_tokens WHERE token_hash = $1 AND expires_at > $2`,
			tokenHash, now,
		).Scan(&email)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return storage.ErrResetTokenNotFound
			}
			return err
		}

		var userID uuid.UUID

		err = tx.QueryRow(ctx, `SELECT id FROM users WHERE email = $1 FOR UPDATE`, email).Scan(&userID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return storage.ErrUserNotFound
			}
			return err
		}

		tag, err := tx.Exec(ctx,
			`DELETE FROM password_reset_tokens WHERE token_hash = $1 AND expires_at > $2`,
			tokenHash, now,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return storage.ErrResetTokenNotFound
		}

		if _, err := tx.Exec(ctx,
			`UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`,
			string(passHash), userID,
		); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM password_reset_tokens WHERE email = $1`, email); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrResetTokenNotFound) || errors.Is(err, storage.ErrUserNotFound) {
			return err
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// * DeleteExpiredResetTokens removes token rows that can no longer be used.
func (r *PostgresRepo) DeleteExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.postgres.DeleteExpiredResetTokens"

	tag, err := r.pool.Exec(ctx, `DELETE FROM password_reset_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected(), nil
}

func (r *PostgresRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepo) Close() {
	r.pool.Close()
}

func scanUser(row pgx.Row) (models.User, error) {
	var (
		u        models.User
		passHash string
	)

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&passHash,
		&u.CreatedAt,
	)
	if err != nil {
		return models.User{}, err
	}

	u.PassHash = []byte(passHash)

	return u, nil
}
