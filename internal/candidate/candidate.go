// Package candidate manages the directory of interview candidates.
package candidate

import (
	"errors"
	"time"
)

// Errors
var (
	ErrCandidateNotFound = errors.New("candidate: not found")
	ErrEmailTaken        = errors.New("candidate: email already registered")
)

// Candidate represents a person being interviewed on the platform.
type Candidate struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
