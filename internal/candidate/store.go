package candidate

import "context"

// Store persists candidate data.
type Store interface {
	Create(ctx context.Context, c *Candidate) error
	Get(ctx context.Context, id string) (*Candidate, error)
	GetByEmail(ctx context.Context, email string) (*Candidate, error)
	Update(ctx context.Context, c *Candidate) error
	Exists(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, limit int) ([]*Candidate, error)
}
