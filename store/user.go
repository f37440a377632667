package store

import "context"

type User struct {
	ID           int32
	UID          string
	Email        string
	Nickname     string
	PasswordHash string
	RowStatus    RowStatus
	CreatedTs    int64
	UpdatedTs    int64
}

type FindUser struct {
	ID    *int32
	UID   *string
	Email *string
}

func (s *Store) CreateUser(ctx context.Context, create *User) (*User, error) {
	return s.driver.CreateUser(ctx, create)
}

func (s *Store) ListUsers(ctx context.Context, find *FindUser) ([]*User, error) {
	return s.driver.ListUsers(ctx, find)
}

// GetUser returns the first user matching the condition, or nil when absent.
func (s *Store) GetUser(ctx context.Context, find *FindUser) (*User, error) {
	list, err := s.driver.ListUsers(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}
