package store

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"idhub/internal/domain"
	"idhub/pkg/platform/sentinel"
)

// EntityRecord is the in-memory materialization of an entity.
type EntityRecord struct {
	ID                    domain.EntityID
	State                 domain.EntityState
	CredentialRequirement string
	Identities            []domain.IdentityParam
	Attributes            []domain.Attribute
	Groups                []string
	AttributeClasses      map[string][]string
	Credentials           map[string]string // credentialID -> bcrypt hash
	ScheduledChange       *domain.ScheduledChange
}

// Memory is the in-memory identity store for tests/dev. It doubles as a
// tx.Runner: RunInTx snapshots all state and restores it when the callback
// fails, giving the acceptance pipeline real rollback semantics without a
// database.
type Memory struct {
	mu       sync.RWMutex
	entities map[domain.EntityID]*EntityRecord
	groups   map[string]struct{}
	requests map[domain.RequestID]*domain.RegistrationRequest
	classes  *ClassRegistry

	snapshot *memorySnapshot
}

func NewMemory(classes *ClassRegistry) *Memory {
	if classes == nil {
		classes = NewClassRegistry()
	}
	return &Memory{
		entities: map[domain.EntityID]*EntityRecord{},
		groups:   map[string]struct{}{domain.RootGroup: {}},
		requests: map[domain.RequestID]*domain.RegistrationRequest{},
		classes:  classes,
	}
}

// RegisterGroup makes a group path known to the store. Parent paths are not
// created implicitly.
func (m *Memory) RegisterGroup(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[path] = struct{}{}
}

// Entity returns a copy-free view of an entity record for assertions.
func (m *Memory) Entity(id domain.EntityID) (*EntityRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entities[id]
	return e, ok
}

// EntityCount reports how many entities exist.
func (m *Memory) EntityCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entities)
}

func (m *Memory) CreateEntity(_ context.Context, initial domain.IdentityParam, credentialRequirement string,
	initialState domain.EntityState, rootAttrs []domain.Attribute) (domain.EntityID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entities {
		for _, id := range e.Identities {
			if id.TypeID == initial.TypeID && id.Value == initial.Value {
				return domain.EntityID{}, fmt.Errorf("identity %s:%s already taken: %w",
					initial.TypeID, initial.Value, sentinel.ErrConflict)
			}
		}
	}

	record := &EntityRecord{
		ID:                    domain.NewEntityID(),
		State:                 initialState,
		CredentialRequirement: credentialRequirement,
		Identities:            []domain.IdentityParam{initial},
		Attributes:            append([]domain.Attribute(nil), rootAttrs...),
		AttributeClasses:      map[string][]string{},
		Credentials:           map[string]string{},
	}
	m.entities[record.ID] = record
	return record.ID, nil
}

func (m *Memory) InsertIdentity(_ context.Context, id domain.IdentityParam, entity domain.EntityID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[entity]
	if !ok {
		return fmt.Errorf("entity %s: %w", entity, sentinel.ErrNotFound)
	}
	e.Identities = append(e.Identities, id)
	return nil
}

func (m *Memory) AddGroupMember(_ context.Context, path string, entity domain.EntityID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[entity]
	if !ok {
		return fmt.Errorf("entity %s: %w", entity, sentinel.ErrNotFound)
	}
	if _, ok := m.groups[path]; !ok {
		return fmt.Errorf("group %s: %w", path, sentinel.ErrNotFound)
	}
	for _, g := range e.Groups {
		if g == path {
			return fmt.Errorf("entity already member of %s: %w", path, sentinel.ErrConflict)
		}
	}
	e.Groups = append(e.Groups, path)
	return nil
}

func (m *Memory) SetAttributes(_ context.Context, entity domain.EntityID, attrs []domain.Attribute) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[entity]
	if !ok {
		return fmt.Errorf("entity %s: %w", entity, sentinel.ErrNotFound)
	}
next:
	for _, attr := range attrs {
		for i, existing := range e.Attributes {
			if existing.Name == attr.Name && existing.GroupPath == attr.GroupPath {
				e.Attributes[i] = attr
				continue next
			}
		}
		e.Attributes = append(e.Attributes, attr)
	}
	return nil
}

func (m *Memory) CheckAttributeClassConsistency(_ context.Context, attrs []domain.Attribute, group string, classes []string) error {
	return m.classes.Check(attrs, group, classes)
}

func (m *Memory) SetAttributeClasses(_ context.Context, entity domain.EntityID, group string, classes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[entity]
	if !ok {
		return fmt.Errorf("entity %s: %w", entity, sentinel.ErrNotFound)
	}
	e.AttributeClasses[group] = append([]string(nil), classes...)
	return nil
}

func (m *Memory) SetCredential(_ context.Context, entity domain.EntityID, credentialID, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[entity]
	if !ok {
		return fmt.Errorf("entity %s: %w", entity, sentinel.ErrNotFound)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash credential secret: %w", err)
	}
	e.Credentials[credentialID] = string(hash)
	return nil
}

func (m *Memory) ScheduleEntityChange(_ context.Context, entity domain.EntityID, change domain.ScheduledChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[entity]
	if !ok {
		return fmt.Errorf("entity %s: %w", entity, sentinel.ErrNotFound)
	}
	e.ScheduledChange = &change
	return nil
}

// --- RequestStore ---

func (m *Memory) Create(_ context.Context, req *domain.RegistrationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[req.ID]; ok {
		return fmt.Errorf("request %s: %w", req.ID, sentinel.ErrConflict)
	}
	m.requests[req.ID] = req
	return nil
}

func (m *Memory) Get(_ context.Context, id domain.RequestID) (*domain.RegistrationRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if req, ok := m.requests[id]; ok {
		return req, nil
	}
	return nil, fmt.Errorf("request %s: %w", id, sentinel.ErrNotFound)
}

// UpdateStatus is the check-and-set guard behind at-most-once acceptance.
func (m *Memory) UpdateStatus(_ context.Context, id domain.RequestID, from, to domain.RequestStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return fmt.Errorf("request %s: %w", id, sentinel.ErrNotFound)
	}
	if req.Status != from {
		return fmt.Errorf("request %s is %s, not %s: %w", id, req.Status, from, sentinel.ErrInvalidState)
	}
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("request %s cannot move %s -> %s: %w", id, from, to, sentinel.ErrInvalidState)
	}
	req.Status = to
	return nil
}

func (m *Memory) AppendComments(_ context.Context, id domain.RequestID, comments []domain.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return fmt.Errorf("request %s: %w", id, sentinel.ErrNotFound)
	}
	req.Comments = append(req.Comments, comments...)
	return nil
}

// --- tx.Runner ---

type memorySnapshot struct {
	entities map[domain.EntityID]*EntityRecord
	requests map[domain.RequestID]*domain.RegistrationRequest
}

// RunInTx gives the acceptance pipeline all-or-nothing semantics over the
// in-memory state: on error the pre-callback snapshot is restored. Nested
// transactions are not supported; executions are single-threaded per request
// so one outstanding snapshot suffices.
func (m *Memory) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	m.mu.Lock()
	if m.snapshot != nil {
		m.mu.Unlock()
		return fmt.Errorf("nested transaction: %w", sentinel.ErrInvalidState)
	}
	m.snapshot = m.takeSnapshot()
	m.mu.Unlock()

	err := fn(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.entities = m.snapshot.entities
		m.requests = m.snapshot.requests
	}
	m.snapshot = nil
	return err
}

func (m *Memory) takeSnapshot() *memorySnapshot {
	snap := &memorySnapshot{
		entities: make(map[domain.EntityID]*EntityRecord, len(m.entities)),
		requests: make(map[domain.RequestID]*domain.RegistrationRequest, len(m.requests)),
	}
	for id, e := range m.entities {
		copied := *e
		copied.Identities = append([]domain.IdentityParam(nil), e.Identities...)
		copied.Attributes = append([]domain.Attribute(nil), e.Attributes...)
		copied.Groups = append([]string(nil), e.Groups...)
		copied.AttributeClasses = map[string][]string{}
		for g, cs := range e.AttributeClasses {
			copied.AttributeClasses[g] = append([]string(nil), cs...)
		}
		copied.Credentials = map[string]string{}
		for k, v := range e.Credentials {
			copied.Credentials[k] = v
		}
		snap.entities[id] = &copied
	}
	for id, r := range m.requests {
		copied := *r
		snap.requests[id] = &copied
	}
	return snap
}

// VerifyCredential checks a secret against the stored bcrypt hash; test
// helper for credential application.
func (m *Memory) VerifyCredential(entity domain.EntityID, credentialID, secret string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entities[entity]
	if !ok {
		return false
	}
	hash, ok := e.Credentials[credentialID]
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
