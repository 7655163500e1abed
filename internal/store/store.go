// Package store is the identity-store boundary of the engine: entity
// creation, group membership, attributes, credentials and registration
// request persistence. The acceptance pipeline drives it inside one unit of
// work; every implementation must honor tx-from-context so all mutations
// commit or roll back together.
package store

import (
	"context"
	"fmt"

	"idhub/internal/domain"
	"idhub/pkg/platform/sentinel"
)

// EntityStore is the mutation surface the acceptance pipeline needs.
type EntityStore interface {
	// CreateEntity creates a new entity from its first identity, with root
	// attributes, a credential requirement and an initial state.
	CreateEntity(ctx context.Context, initial domain.IdentityParam, credentialRequirement string,
		initialState domain.EntityState, rootAttrs []domain.Attribute) (domain.EntityID, error)

	// InsertIdentity attaches an additional identity to an existing entity.
	InsertIdentity(ctx context.Context, id domain.IdentityParam, entity domain.EntityID) error

	// AddGroupMember adds the entity to a group. The group must exist.
	AddGroupMember(ctx context.Context, path string, entity domain.EntityID) error

	// SetAttributes sets group-scoped attributes on the entity.
	SetAttributes(ctx context.Context, entity domain.EntityID, attrs []domain.Attribute) error

	// CheckAttributeClassConsistency verifies that the attributes destined
	// for a group satisfy the group's attribute class assignments.
	CheckAttributeClassConsistency(ctx context.Context, attrs []domain.Attribute, group string, classes []string) error

	// SetAttributeClasses records the class assignment set for the entity in
	// a group.
	SetAttributeClasses(ctx context.Context, entity domain.EntityID, group string, classes []string) error

	// SetCredential stores a pre-validated credential secret for the entity.
	SetCredential(ctx context.Context, entity domain.EntityID, credentialID, secret string) error

	// ScheduleEntityChange records a deferred lifecycle operation.
	ScheduleEntityChange(ctx context.Context, entity domain.EntityID, change domain.ScheduledChange) error
}

// RequestStore persists registration requests.
type RequestStore interface {
	Create(ctx context.Context, req *domain.RegistrationRequest) error
	Get(ctx context.Context, id domain.RequestID) (*domain.RegistrationRequest, error)

	// UpdateStatus performs the check-and-set status transition guarding
	// at-most-once acceptance: it fails with sentinel.ErrInvalidState when
	// the stored status is not `from`.
	UpdateStatus(ctx context.Context, id domain.RequestID, from, to domain.RequestStatus) error

	// AppendComments attaches review comments to the stored request.
	AppendComments(ctx context.Context, id domain.RequestID, comments []domain.Comment) error
}

// AttributeClass constrains which attributes a group member may (or must)
// carry in that group.
type AttributeClass struct {
	Name string
	// Allowed lists permitted attribute names; empty means everything is
	// allowed.
	Allowed []string
	// Mandatory lists attribute names every member must carry.
	Mandatory []string
}

// ClassRegistry is the shared attribute-class consistency checker used by
// every EntityStore implementation.
type ClassRegistry struct {
	classes map[string]AttributeClass
}

func NewClassRegistry(classes ...AttributeClass) *ClassRegistry {
	r := &ClassRegistry{classes: map[string]AttributeClass{}}
	for _, c := range classes {
		r.classes[c.Name] = c
	}
	return r
}

// Check verifies attrs against the named classes. Unknown class names and
// violations are reported as errors; no classes means no constraints.
func (r *ClassRegistry) Check(attrs []domain.Attribute, group string, classes []string) error {
	present := map[string]struct{}{}
	for _, a := range attrs {
		present[a.Name] = struct{}{}
	}
	for _, name := range classes {
		class, ok := r.classes[name]
		if !ok {
			return fmt.Errorf("attribute class %q in group %s: %w", name, group, sentinel.ErrNotFound)
		}
		for _, mandatory := range class.Mandatory {
			if _, ok := present[mandatory]; !ok {
				return fmt.Errorf("group %s: attribute %q is mandatory in class %q: %w",
					group, mandatory, name, sentinel.ErrInvalidState)
			}
		}
		if len(class.Allowed) > 0 {
			allowed := map[string]struct{}{}
			for _, a := range class.Allowed {
				allowed[a] = struct{}{}
			}
			for _, a := range class.Mandatory {
				allowed[a] = struct{}{}
			}
			for name2 := range present {
				if _, ok := allowed[name2]; !ok {
					return fmt.Errorf("group %s: attribute %q is not allowed by class %q: %w",
						group, name2, name, sentinel.ErrInvalidState)
				}
			}
		}
	}
	return nil
}
