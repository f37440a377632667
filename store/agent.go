package store

import "context"

// Agent is an AI assistant provider a conversation was captured from,
// e.g. "chatgpt", "claude", "gemini".
type Agent struct {
	ID          int32
	Name        string
	DisplayName string
	CreatedTs   int64
}

type FindAgent struct {
	ID   *int32
	Name *string
}

func (s *Store) CreateAgent(ctx context.Context, create *Agent) (*Agent, error) {
	return s.driver.CreateAgent(ctx, create)
}

func (s *Store) ListAgents(ctx context.Context, find *FindAgent) ([]*Agent, error) {
	return s.driver.ListAgents(ctx, find)
}

// GetAgent returns the first agent matching the condition, or nil when absent.
func (s *Store) GetAgent(ctx context.Context, find *FindAgent) (*Agent, error) {
	list, err := s.driver.ListAgents(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}
