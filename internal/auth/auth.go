package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ankitvars/ai-resume-builder/internal/lib/jwt"
	sl "github.com/ankitvars/ai-resume-builder/internal/lib/logger"
	"github.com/ankitvars/ai-resume-builder/internal/lib/resettoken"
	"github.com/ankitvars/ai-resume-builder/internal/models"
	"github.com/ankitvars/ai-resume-builder/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 8
	// bcrypt ignores everything past 72 bytes.
	MaxPasswordLength = 72

	DefaultResetTokenTTL = 30 * time.Minute

	passwordHashCost = 10
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrPasswordTooShort   = errors.New("password too short")
	ErrPasswordTooLong    = errors.New("password too long")
	ErrInvalidResetToken  = errors.New("invalid or expired token")
)

type Auth struct {
	log         *slog.Logger
	usrSaver    UserSaver
	usrProvider UserProvider
	resetStore  ResetTokenStore
	linkSender  ResetLinkSender
	sessionTTL  time.Duration
	sessionKey  string
	resetTTL    time.Duration
	now         func() time.Time
}

type UserSaver interface {
	SaveUser(ctx context.Context, user models.User) error
}

type UserProvider interface {
	User(ctx context.Context, email string) (models.User, error)
	UserByID(ctx context.Context, id uuid.UUID) (models.User, error)
}

type ResetTokenStore interface {
	SaveResetToken(ctx context.Context, token models.PasswordResetToken) error
	ResetToken(ctx context.Context, tokenHash string, now time.Time) (models.PasswordResetToken, error)
	// ResetPassword must replace the password and delete every token for the
	// email atomically, failing with storage.ErrResetTokenNotFound when the
	// token is no longer valid.
	ResetPassword(ctx context.Context, tokenHash string, passHash []byte, now time.Time) error
	DeleteExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

type ResetLinkSender interface {
	Send(ctx context.Context, email, token string) error
}

type Option func(*Auth)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Auth) { a.now = now }
}

// WithResetTokenTTL overrides DefaultResetTokenTTL.
func WithResetTokenTTL(ttl time.Duration) Option {
	return func(a *Auth) { a.resetTTL = ttl }
}

func New(
	log *slog.Logger,
	userSaver UserSaver,
	userProvider UserProvider,
	resetStore ResetTokenStore,
	linkSender ResetLinkSender,
	sessionKey string,
	sessionTTL time.Duration,
	opts ...Option,
) *Auth {
	a := &Auth{
		log:         log,
		usrSaver:    userSaver,
		usrProvider: userProvider,
		resetStore:  resetStore,
		linkSender:  linkSender,
		sessionKey:  sessionKey,
		sessionTTL:  sessionTTL,
		resetTTL:    DefaultResetTokenTTL,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// NormalizeEmail is the canonical form used for lookups and uniqueness.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func checkPassword(pass string) error {
	if len(pass) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(pass) > MaxPasswordLength {
		return ErrPasswordTooLong
	}

	return nil
}

func (a *Auth) RegisterNewUser(
	ctx context.Context,
	email string,
	name string,
	pass string,
) error {
	const op = "auth.RegisterNewUser"

	log := a.log.With(
		slog.String("op", op),
	)

	if err := checkPassword(pass); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	email = NormalizeEmail(email)

	log.Info("registering new user")

	_, err := a.usrProvider.User(ctx, email)
	switch {
	case err == nil:
		log.Warn("user already exists")
		return fmt.Errorf("%s: %w", op, ErrUserExists)
	case !errors.Is(err, storage.ErrUserNotFound):
		log.Error("failed to look up user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(pass), passwordHashCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	user := models.User{
		ID:       uuid.New(),
		Email:    email,
		Name:     strings.TrimSpace(name),
		PassHash: passHash,
	}

	if err := a.usrSaver.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			log.Warn("user already exists")
			return fmt.Errorf("%s: %w", op, ErrUserExists)
		}

		log.Error("failed to save user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user registered", slog.String("uid", user.ID.String()))

	return nil
}

// RequestPasswordReset issues a reset token when the account exists. It
// returns nil for unknown emails as well, so callers cannot tell them apart.
func (a *Auth) RequestPasswordReset(ctx context.Context, email string) error {
	const op = "auth.RequestPasswordReset"

	log := a.log.With(
		slog.String("op", op),
	)

	email = NormalizeEmail(email)

	user, err := a.usrProvider.User(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Info("password reset requested for unknown email")
			return nil
		}

		log.Error("failed to look up user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	plain, hash, err := resettoken.Generate()
	if err != nil {
		log.Error("failed to generate reset token", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	token := models.PasswordResetToken{
		Email:     user.Email,
		TokenHash: hash,
		ExpiresAt: a.now().Add(a.resetTTL),
	}

	if err := a.resetStore.SaveResetToken(ctx, token); err != nil {
		log.Error("failed to save reset token", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.linkSender.Send(ctx, user.Email, plain); err != nil {
		log.Error("failed to hand off reset link", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("password reset token issued", slog.String("uid", user.ID.String()))

	return nil
}

// ResetPassword consumes a reset token and sets a new password.
func (a *Auth) ResetPassword(ctx context.Context, token, pass string) error {
	const op = "auth.ResetPassword"

	log := a.log.With(
		slog.String("op", op),
	)

	if err := checkPassword(pass); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	hash := resettoken.Hash(token)

	if _, err := a.resetStore.ResetToken(ctx, hash, a.now()); err != nil {
		if errors.Is(err, storage.ErrResetTokenNotFound) {
			log.Warn("invalid or expired reset token")
			return fmt.Errorf("%s: %w", op, ErrInvalidResetToken)
		}

		log.Error("failed to look up reset token", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(pass), passwordHashCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.resetStore.ResetPassword(ctx, hash, passHash, a.now()); err != nil {
		if errors.Is(err, storage.ErrResetTokenNotFound) || errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("reset token consumed concurrently or account gone", sl.Err(err))
			return fmt.Errorf("%s: %w", op, ErrInvalidResetToken)
		}

		log.Error("failed to reset password", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("password reset completed")

	return nil
}

// * Login checks the credentials and returns a session token.
func (a *Auth) Login(ctx context.Context, email, pass string) (string, error) {
	const op = "auth.Login"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrProvider.User(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
			return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		log.Error("failed to get user", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(pass)); err != nil {
		log.Info("invalid credentials", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	token, err := jwt.NewToken(user, a.sessionKey, a.sessionTTL)
	if err != nil {
		log.Error("failed to generate session token", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in successfully", slog.String("uid", user.ID.String()))

	return token, nil
}

// Session loads the user behind a verified session.
func (a *Auth) Session(ctx context.Context, userID uuid.UUID) (models.User, error) {
	const op = "auth.Session"

	user, err := a.usrProvider.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.User{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// * CleanupExpiredResetTokens deletes expired tokens. Runs on a ticker.
func (a *Auth) CleanupExpiredResetTokens(ctx context.Context) (int64, error) {
	const op = "auth.CleanupExpiredResetTokens"

	deleted, err := a.resetStore.DeleteExpiredResetTokens(ctx, a.now())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	a.log.Info("expired reset tokens removed", slog.String("op", op), slog.Int64("deleted", deleted))

	return deleted, nil
}
