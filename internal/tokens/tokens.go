// Package tokens manages out-of-band confirmation tokens: the opaque keys
// mailed to users so they can prove control of an address or identity. While
// a registration request is pending its tokens belong to the request; once
// the request is accepted the surviving tokens are re-owned to the created
// entity so confirmations arriving later still land.
package tokens

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"idhub/internal/domain"
)

// Kind distinguishes token families sharing the store.
type Kind string

const (
	KindConfirmation Kind = "confirmation"
)

// Facility says which kind of object owns a confirmation token.
type Facility string

const (
	// FacilityRequestAttribute confirms an attribute submitted in a pending
	// registration request.
	FacilityRequestAttribute Facility = "registrationReqAttribute"
	// FacilityRequestIdentity confirms an identity submitted in a pending
	// registration request.
	FacilityRequestIdentity Facility = "registrationReqIdentity"
	// FacilityEntityAttribute confirms an attribute of an existing entity.
	FacilityEntityAttribute Facility = "entityAttribute"
	// FacilityEntityIdentity confirms an identity of an existing entity.
	FacilityEntityIdentity Facility = "entityIdentity"
)

// Payload is the tagged confirmation payload carried by a token. Facility
// discriminates the variant; Owner is a request id for the request-scoped
// facilities and an entity id afterwards.
type Payload struct {
	Owner    string   `json:"owner"`
	Facility Facility `json:"facility"`
	// Type is the attribute name or identity type the token confirms.
	Type  string `json:"type"`
	Value string `json:"value"`
	// Group is set for attribute confirmations only.
	Group string `json:"group,omitempty"`
}

func (p Payload) requestScoped() bool {
	return p.Facility == FacilityRequestAttribute || p.Facility == FacilityRequestIdentity
}

// Token is one stored confirmation token.
type Token struct {
	Kind    Kind      `json:"kind"`
	Key     string    `json:"key"`
	Payload []byte    `json:"payload"`
	Created time.Time `json:"created"`
	Expires time.Time `json:"expires"`
}

// ParsePayload decodes the token's confirmation payload.
func (t Token) ParsePayload() (Payload, error) {
	var p Payload
	if err := json.Unmarshal(t.Payload, &p); err != nil {
		return Payload{}, fmt.Errorf("parse token %s payload: %w", t.Key, err)
	}
	return p, nil
}

// NewConfirmationToken builds a token owned by a pending request.
func NewConfirmationToken(key string, payload Payload, created, expires time.Time) (Token, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Token{}, fmt.Errorf("marshal token payload: %w", err)
	}
	return Token{
		Kind:    KindConfirmation,
		Key:     key,
		Payload: raw,
		Created: created,
		Expires: expires,
	}, nil
}

// Store persists tokens by kind and key.
type Store interface {
	AddToken(ctx context.Context, token Token) error
	// ReplaceToken overwrites the token under its kind and key in one
	// write, so a failure leaves the previous token intact.
	ReplaceToken(ctx context.Context, token Token) error
	RemoveToken(ctx context.Context, kind Kind, key string) error
	GetAllTokens(ctx context.Context, kind Kind) ([]Token, error)
}

// entityFacility maps a request-scoped facility to its entity-scoped
// counterpart.
func entityFacility(f Facility) Facility {
	switch f {
	case FacilityRequestAttribute:
		return FacilityEntityAttribute
	case FacilityRequestIdentity:
		return FacilityEntityIdentity
	default:
		return f
	}
}

// reownedToken returns a copy of the token owned by the entity, timestamps
// unchanged.
func reownedToken(t Token, p Payload, entity domain.EntityID) (Token, error) {
	p.Owner = entity.String()
	p.Facility = entityFacility(p.Facility)
	raw, err := json.Marshal(p)
	if err != nil {
		return Token{}, fmt.Errorf("marshal reowned payload: %w", err)
	}
	t.Payload = raw
	return t, nil
}
