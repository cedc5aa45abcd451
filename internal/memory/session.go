package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// SessionStore keeps JSON-encoded values so loads never alias saved state.
type SessionStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewSessionStore() *SessionStore {
	return &SessionStore{values: map[string][]byte{}}
}

func (s *SessionStore) Load(_ context.Context, sessionID, key string, dst any) (bool, error) {
	s.mu.RLock()
	data, ok := s.values[sessionID+":"+key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("json.Unmarshal: %w", err)
	}
	return true, nil
}

func (s *SessionStore) Save(_ context.Context, sessionID, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[sessionID+":"+key] = data
	return nil
}

func (s *SessionStore) Delete(_ context.Context, sessionID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, sessionID+":"+key)
	return nil
}
