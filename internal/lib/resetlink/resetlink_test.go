package resetlink

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	sl "github.com/ankitvars/ai-resume-builder/internal/lib/logger"
	"github.com/ankitvars/ai-resume-builder/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	msgs []models.Message
	err  error
}

func (p *capturePublisher) SendMessage(_ context.Context, msg models.Message) error {
	p.msgs = append(p.msgs, msg)
	return p.err
}

func TestSend(t *testing.T) {
	pub := &capturePublisher{}
	s := New(sl.Discard(), pub, "https://resume.example.com/")

	require.NoError(t, s.Send(context.Background(), "a@b.com", "abc123"))

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, models.Message{
		Email:   "a@b.com",
		Link:    "https://resume.example.com/reset-password?token=abc123",
		Purpose: models.PurposePasswordReset,
	}, pub.msgs[0])
}

func TestSend_PublishErrorSwallowed(t *testing.T) {
	pub := &capturePublisher{err: errors.New("broker down")}
	s := New(sl.Discard(), pub, "http://localhost:3000")

	assert.NoError(t, s.Send(context.Background(), "a@b.com", "abc123"))
	assert.Len(t, pub.msgs, 1)
}

func TestLink_EscapesToken(t *testing.T) {
	s := New(sl.Discard(), &capturePublisher{}, "http://localhost:3000")

	assert.Equal(t, "http://localhost:3000/reset-password?token=a%2Bb%26c", s.Link("a+b&c"))
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	err := NewLogPublisher(log).SendMessage(context.Background(), models.Message{
		Email:   "a@b.com",
		Link:    "http://localhost:3000/reset-password?token=t",
		Purpose: models.PurposePasswordReset,
	})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "a@b.com")
	assert.Contains(t, buf.String(), "reset-password?token=t")
}
