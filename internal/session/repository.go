package session

import "context"

type Repository interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	List(ctx context.Context, limit, offset int) ([]*Session, int, error)
	Update(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}
