package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	resp "github.com/ankitvars/ai-resume-builder/internal/lib/api/response"
	sl "github.com/ankitvars/ai-resume-builder/internal/lib/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (fn pingFunc) Ping(ctx context.Context) error { return fn(ctx) }

func serve(t *testing.T, h http.HandlerFunc) (int, resp.Response) {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var body resp.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	return rec.Code, body
}

func TestNew_AllReady(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })

	code, body := serve(t, New(sl.Discard(), Check{"postgres", ok}, Check{"redis", ok}))

	assert.Equal(t, http.StatusOK, code)
	assert.True(t, body.OK)
}

func TestNew_DependencyDown(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	code, body := serve(t, New(sl.Discard(), Check{"postgres", ok}, Check{"redis", down}))

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.False(t, body.OK)
	assert.Equal(t, "redis unavailable", body.Message)
}
