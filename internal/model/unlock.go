package model

import (
	"time"

	"github.com/google/uuid"
)

// UnlockDecision is derived on the set-selection screen, never persisted.
type UnlockDecision struct {
	Locked    bool       `json:"locked"`
	Message   string     `json:"message,omitempty"`
	UnlockAt  *time.Time `json:"unlock_at,omitempty"`
	Completed bool       `json:"completed"`
}

// SetAvailability pairs a chain set with its current unlock decision.
type SetAvailability struct {
	SetNumber int            `json:"set_number"`
	SetID     uuid.UUID      `json:"set_id"`
	Title     string         `json:"title"`
	Decision  UnlockDecision `json:"decision"`
}
