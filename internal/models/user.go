package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         string    `json:"role"` // client / lawyer / admin

	// PayoutAccountRef is the gateway connected-account id funds are
	// transferred to at release time. Nil until the lawyer connects one.
	PayoutAccountRef *string `json:"payout_account_ref,omitempty"`

	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}
