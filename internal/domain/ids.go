package domain

import "github.com/google/uuid"

// EntityID identifies a principal in the identity store.
type EntityID uuid.UUID

func NewEntityID() EntityID {
	return EntityID(uuid.New())
}

func (e EntityID) String() string {
	return uuid.UUID(e).String()
}

func (e EntityID) IsNil() bool {
	return uuid.UUID(e) == uuid.Nil
}

func (e EntityID) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

func (e *EntityID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*e = EntityID(u)
	return nil
}

// RequestID identifies a registration or enquiry request.
type RequestID uuid.UUID

func NewRequestID() RequestID {
	return RequestID(uuid.New())
}

func ParseRequestID(s string) (RequestID, error) {
	u, err := uuid.Parse(s)
	return RequestID(u), err
}

func (r RequestID) String() string {
	return uuid.UUID(r).String()
}

func (r RequestID) IsNil() bool {
	return uuid.UUID(r) == uuid.Nil
}

func (r RequestID) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *RequestID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*r = RequestID(u)
	return nil
}
