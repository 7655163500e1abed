package domain

import "time"

// RequestStatus is the lifecycle state of a registration request.
//
// Transitions: pending → accepted or pending → rejected, exactly once.
// The at-most-once guarantee is enforced by the request store's
// check-and-set, not by callers.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// CanTransitionTo reports whether the status transition is allowed.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	return s == RequestPending && (next == RequestAccepted || next == RequestRejected)
}

// Selection is the submitter's answer to a group or agreement parameter.
type Selection struct {
	Selected bool
}

// Comment is a free-text note attached to a request by the submitter or an
// administrator during review.
type Comment struct {
	Text     string
	AuthorID string
	Date     time.Time
	Public   bool
}

// RegistrationRequest is a submitted registration or enquiry.
//
// Attributes and Identities align positionally with the form's parameter
// lists; a nil entry means the submitter skipped an optional parameter.
// The payload is immutable after acceptance/rejection except for
// confirmation-token re-owning side effects.
type RegistrationRequest struct {
	ID       RequestID
	FormName string
	Status   RequestStatus

	Attributes        []*Attribute
	Identities        []*IdentityParam
	GroupSelections   []Selection
	Agreements        []Selection
	CredentialSecrets []string

	RegistrationCode string
	UserLocale       string
	UserAgent        string
	Comments         []Comment

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FirstIdentity returns the first non-nil identity, used as the entity's
// creation identity at acceptance.
func (r *RegistrationRequest) FirstIdentity() *IdentityParam {
	for _, id := range r.Identities {
		if id != nil {
			return id
		}
	}
	return nil
}
