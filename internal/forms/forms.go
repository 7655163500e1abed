// Package forms holds the registration form catalog. Forms are authored out
// of band; this store is the read surface the request pipeline consults.
package forms

import (
	"fmt"
	"sync"

	"idhub/internal/domain"
	"idhub/pkg/platform/sentinel"
)

// Source resolves a form by name.
type Source interface {
	Form(name string) (*domain.RegistrationForm, error)
}

// MemoryStore is a concurrency-safe in-memory form catalog.
type MemoryStore struct {
	mu    sync.RWMutex
	forms map[string]*domain.RegistrationForm
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{forms: map[string]*domain.RegistrationForm{}}
}

// Install adds or replaces a form.
func (s *MemoryStore) Install(form *domain.RegistrationForm) error {
	if form == nil || form.Name == "" {
		return fmt.Errorf("form name is required: %w", sentinel.ErrInvalidState)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forms[form.Name] = form
	return nil
}

func (s *MemoryStore) Form(name string) (*domain.RegistrationForm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	form, ok := s.forms[name]
	if !ok {
		return nil, fmt.Errorf("form %s: %w", name, sentinel.ErrNotFound)
	}
	return form, nil
}
