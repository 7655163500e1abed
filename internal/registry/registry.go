// Package registry holds the attribute-type and identity-type registries the
// translation engine validates against. Types are installed by the external
// admin subsystem; the engine only reads them.
package registry

import (
	"context"

	"idhub/internal/domain"
)

// AttributeTypes resolves attribute type definitions and converts raw
// external values into internally valid ones.
type AttributeTypes interface {
	// GetType returns the definition of an installed attribute type, or
	// sentinel.ErrNotFound (wrapped) when the type is unknown.
	GetType(ctx context.Context, name string) (*domain.AttributeType, error)

	// ExternalValuesToInternal validates and converts raw external values to
	// the type's internal representation. A conversion failure is reported
	// for the whole value list: mapping actions treat it as a skip.
	ExternalValuesToInternal(ctx context.Context, name string, raw []string) ([]string, error)
}

// IdentityTypes resolves identity type definitions and converts raw remote
// values into internal identity parameters.
type IdentityTypes interface {
	GetByName(ctx context.Context, name string) (*domain.IdentityTypeDefinition, error)
	Validate(ctx context.Context, typeName, value string) error
	// ConvertFromString builds an internal identity of the given type from a
	// raw remote value, recording provenance.
	ConvertFromString(ctx context.Context, typeName, raw, idp, profile string) (domain.IdentityParam, error)
}
