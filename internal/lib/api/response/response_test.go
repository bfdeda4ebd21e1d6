package response

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	type req struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8"`
	}

	err := validator.New().Struct(req{Email: "nope", Password: "short"})
	require.Error(t, err)

	resp := ValidationError(err.(validator.ValidationErrors))

	assert.False(t, resp.OK)
	assert.Equal(t, "Email must be a valid email address, Password must be at least 8 characters", resp.Message)
}

func TestRateLimited(t *testing.T) {
	resp := RateLimited(42)

	assert.False(t, resp.OK)
	assert.Equal(t, int64(42), resp.RetryAfter)
	assert.NotEmpty(t, resp.Message)
}

func TestOK(t *testing.T) {
	assert.Equal(t, Response{OK: true}, OK())
}
