// Package profile turns authored profile definitions into installed,
// compiled translation profiles. Compilation failures surface here, at
// install time, so a broken profile can never run.
package profile

import (
	"fmt"
	"sync"

	"idhub/internal/translate"
	"idhub/internal/translate/expression"
	dErrors "idhub/pkg/domain-errors"
	"idhub/pkg/platform/sentinel"
)

// RuleDefinition is the authored form of one rule.
type RuleDefinition struct {
	Condition string           `json:"condition,omitempty"`
	Action    string           `json:"action"`
	Params    translate.Params `json:"params,omitempty"`
}

// Definition is the authored form of a translation profile.
type Definition struct {
	Name       string                `json:"name"`
	Kind       translate.ProfileKind `json:"kind"`
	Rules      []RuleDefinition      `json:"rules"`
	AutoAccept string                `json:"autoAccept,omitempty"`
}

// Build compiles a definition into an immutable profile. Every expression is
// compiled and every action constructed here; any failure is fatal.
func Build(def Definition, reg *translate.ActionRegistry) (*translate.Profile, error) {
	if def.Name == "" {
		return nil, dErrors.New(dErrors.CodeInvalidProfile, "profile name is required")
	}
	switch def.Kind {
	case translate.KindInput, translate.KindRegistration, translate.KindEnquiry:
	default:
		return nil, dErrors.Newf(dErrors.CodeInvalidProfile, "unknown profile kind %q", def.Kind)
	}

	p := &translate.Profile{Name: def.Name, Kind: def.Kind}
	for i, rd := range def.Rules {
		var cond *expression.Program
		if rd.Condition != "" {
			compiled, err := expression.Compile(rd.Condition)
			if err != nil {
				return nil, fmt.Errorf("profile %q rule %d condition: %w", def.Name, i, err)
			}
			cond = compiled
		}
		action, err := reg.New(def.Kind, rd.Action, rd.Params)
		if err != nil {
			return nil, fmt.Errorf("profile %q rule %d: %w", def.Name, i, err)
		}
		p.Rules = append(p.Rules, translate.Rule{Condition: cond, Action: action})
	}

	if def.AutoAccept != "" {
		compiled, err := expression.Compile(def.AutoAccept)
		if err != nil {
			return nil, fmt.Errorf("profile %q auto-accept condition: %w", def.Name, err)
		}
		p.AutoAccept = compiled
	}
	return p, nil
}

// Store holds installed profiles. Implements translate.ProfileSource.
type Store struct {
	mu       sync.RWMutex
	reg      *translate.ActionRegistry
	profiles map[string]*translate.Profile
}

func NewStore(reg *translate.ActionRegistry) *Store {
	return &Store{reg: reg, profiles: map[string]*translate.Profile{}}
}

// Install builds and installs a profile definition. A definition that fails
// to build must not be installed; a reinstall under the same name replaces
// the previous profile atomically.
func (s *Store) Install(def Definition) error {
	p, err := Build(def, s.reg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.Name] = p
	return nil
}

// Profile returns an installed profile by name.
func (s *Store) Profile(name string) (*translate.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.profiles[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("translation profile %q: %w", name, sentinel.ErrNotFound)
}
