package model

import "time"

// Student is a candidate taking proctored sets. Accounts are managed elsewhere;
// the engine only reads them.
type Student struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
