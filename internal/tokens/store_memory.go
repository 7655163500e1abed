package tokens

import (
	"context"
	"fmt"
	"sync"

	"idhub/pkg/platform/sentinel"
	"idhub/pkg/requestcontext"
)

// MemoryStore keeps tokens in process memory; expired tokens are dropped
// lazily on read.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[Kind]map[string]Token
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: map[Kind]map[string]Token{}}
}

func (s *MemoryStore) AddToken(_ context.Context, token Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byKey, ok := s.tokens[token.Kind]
	if !ok {
		byKey = map[string]Token{}
		s.tokens[token.Kind] = byKey
	}
	if _, exists := byKey[token.Key]; exists {
		return fmt.Errorf("token %s: %w", token.Key, sentinel.ErrConflict)
	}
	byKey[token.Key] = token
	return nil
}

func (s *MemoryStore) ReplaceToken(_ context.Context, token Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byKey, ok := s.tokens[token.Kind]
	if !ok {
		byKey = map[string]Token{}
		s.tokens[token.Kind] = byKey
	}
	byKey[token.Key] = token
	return nil
}

func (s *MemoryStore) RemoveToken(_ context.Context, kind Kind, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byKey, ok := s.tokens[kind]
	if !ok {
		return fmt.Errorf("token %s: %w", key, sentinel.ErrNotFound)
	}
	if _, exists := byKey[key]; !exists {
		return fmt.Errorf("token %s: %w", key, sentinel.ErrNotFound)
	}
	delete(byKey, key)
	return nil
}

func (s *MemoryStore) GetAllTokens(ctx context.Context, kind Kind) ([]Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := requestcontext.Now(ctx)
	var out []Token
	for _, token := range s.tokens[kind] {
		if !token.Expires.IsZero() && token.Expires.Before(now) {
			continue
		}
		out = append(out, token)
	}
	return out, nil
}
