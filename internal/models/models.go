package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID        uuid.UUID
	Email     string
	Name      string
	PassHash  []byte
	CreatedAt time.Time
}

// PasswordResetToken stores only the hash of the secret handed to the user.
type PasswordResetToken struct {
	ID        int64
	Email     string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

const PurposePasswordReset = "password_reset"

type Message struct {
	Email   string `json:"to"`
	Link    string `json:"link"`
	Purpose string `json:"purpose"`
}
