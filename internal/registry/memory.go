package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"idhub/internal/domain"
	"idhub/pkg/platform/sentinel"
)

// ValueConverter normalizes a single raw external value into the internal
// representation of its type, or rejects it.
type ValueConverter func(raw string) (string, error)

// MemoryAttributeTypes is an in-memory attribute type registry for tests/dev.
type MemoryAttributeTypes struct {
	mu         sync.RWMutex
	types      map[string]*domain.AttributeType
	converters map[string]ValueConverter
}

func NewMemoryAttributeTypes() *MemoryAttributeTypes {
	return &MemoryAttributeTypes{
		types:      make(map[string]*domain.AttributeType),
		converters: make(map[string]ValueConverter),
	}
}

// Register installs an attribute type with an optional value converter.
func (m *MemoryAttributeTypes) Register(t domain.AttributeType, conv ValueConverter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.types[t.Name] = &t
	if conv != nil {
		m.converters[t.Name] = conv
	}
}

func (m *MemoryAttributeTypes) GetType(_ context.Context, name string) (*domain.AttributeType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.types[name]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("attribute type %q: %w", name, sentinel.ErrNotFound)
}

func (m *MemoryAttributeTypes) ExternalValuesToInternal(_ context.Context, name string, raw []string) ([]string, error) {
	m.mu.RLock()
	t, ok := m.types[name]
	conv := m.converters[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("attribute type %q: %w", name, sentinel.ErrNotFound)
	}
	if t.MaxElements > 0 && len(raw) > t.MaxElements {
		return nil, fmt.Errorf("attribute %q accepts at most %d values, got %d", name, t.MaxElements, len(raw))
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if conv != nil {
			converted, err := conv(v)
			if err != nil {
				return nil, fmt.Errorf("illegal value for attribute %q: %w", name, err)
			}
			v = converted
		}
		out = append(out, v)
	}
	return out, nil
}

// MemoryIdentityTypes is an in-memory identity type registry for tests/dev.
type MemoryIdentityTypes struct {
	mu    sync.RWMutex
	types map[string]*domain.IdentityTypeDefinition
}

func NewMemoryIdentityTypes() *MemoryIdentityTypes {
	return &MemoryIdentityTypes{types: make(map[string]*domain.IdentityTypeDefinition)}
}

func (m *MemoryIdentityTypes) Register(t domain.IdentityTypeDefinition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.types[t.Name] = &t
}

func (m *MemoryIdentityTypes) GetByName(_ context.Context, name string) (*domain.IdentityTypeDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.types[name]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("identity type %q: %w", name, sentinel.ErrNotFound)
}

func (m *MemoryIdentityTypes) Validate(_ context.Context, typeName, value string) error {
	m.mu.RLock()
	_, ok := m.types[typeName]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("identity type %q: %w", typeName, sentinel.ErrNotFound)
	}
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("identity value must not be empty")
	}
	return nil
}

// ConvertFromString builds an internal identity of the given type from a raw
// remote value, recording provenance.
func (m *MemoryIdentityTypes) ConvertFromString(ctx context.Context, typeName, raw, idp, profile string) (domain.IdentityParam, error) {
	if err := m.Validate(ctx, typeName, strings.TrimSpace(raw)); err != nil {
		return domain.IdentityParam{}, err
	}
	return domain.IdentityParam{
		TypeID:             typeName,
		Value:              strings.TrimSpace(raw),
		RemoteIdP:          idp,
		TranslationProfile: profile,
	}, nil
}
