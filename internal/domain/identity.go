package domain

import "time"

// IdentityTypeDefinition describes an installed identity type.
type IdentityTypeDefinition struct {
	Name string
	// Verifiable marks types whose values require confirmation (email-like).
	Verifiable bool
}

// IdentityParam is a typed identity value, either submitted on a form or
// derived from a remote login.
type IdentityParam struct {
	TypeID    string
	Value     string
	Confirmed bool

	RemoteIdP          string
	TranslationProfile string
}

// EntityState is the lifecycle state of an entity. SetEntityState actions are
// limited to the non-destructive subset (everything except onlyLoginPermitted
// removal semantics is expressed through scheduled changes instead).
type EntityState string

const (
	EntityStateValid          EntityState = "valid"
	EntityStateAuthnDisabled  EntityState = "authenticationDisabled"
	EntityStateDisabled       EntityState = "disabled"
	EntityStateOnlyLoginAllow EntityState = "onlyLoginPermitted"
)

// ValidSetEntityState reports whether a state may be set via translation
// actions. onlyLoginPermitted is reserved for the platform itself.
func ValidSetEntityState(s EntityState) bool {
	switch s {
	case EntityStateValid, EntityStateAuthnDisabled, EntityStateDisabled:
		return true
	}
	return false
}

// ScheduledOperation is a deferred entity lifecycle operation.
type ScheduledOperation string

const (
	ScheduledOpRemove  ScheduledOperation = "REMOVE"
	ScheduledOpDisable ScheduledOperation = "DISABLE"
)

// ScheduledChange is a deferred entity operation produced by the
// ScheduleEntityChange action and applied by the store at acceptance.
type ScheduledChange struct {
	Operation     ScheduledOperation
	ScheduledTime time.Time
}
