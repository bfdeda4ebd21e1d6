package resetlink

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	sl "github.com/ankitvars/ai-resume-builder/internal/lib/logger"
	"github.com/ankitvars/ai-resume-builder/internal/models"
)

type Publisher interface {
	SendMessage(ctx context.Context, msg models.Message) error
}

// Sender hands reset links to an out-of-band delivery channel.
type Sender struct {
	log     *slog.Logger
	pub     Publisher
	baseURL string
}

func New(log *slog.Logger, pub Publisher, baseURL string) *Sender {
	return &Sender{
		log:     log,
		pub:     pub,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (s *Sender) Link(token string) string {
	return fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, url.QueryEscape(token))
}

// * Send publishes the password reset link.
// Publish failures are only logged: the forgot-password response must not
// depend on whether the account exists.
func (s *Sender) Send(ctx context.Context, email, token string) error {
	const op = "resetlink.Send"

	msg := models.Message{
		Email:   email,
		Link:    s.Link(token),
		Purpose: models.PurposePasswordReset,
	}

	if err := s.pub.SendMessage(ctx, msg); err != nil {
		s.log.Error("failed to send reset link", slog.String("op", op), sl.Err(err))
	}

	return nil
}

// LogPublisher writes messages to the log instead of a broker.
type LogPublisher struct {
	log *slog.Logger
}

func NewLogPublisher(log *slog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) SendMessage(_ context.Context, msg models.Message) error {
	p.log.Info("outgoing message",
		slog.String("to", msg.Email),
		slog.String("purpose", msg.Purpose),
		slog.String("link", msg.Link),
	)

	return nil
}
