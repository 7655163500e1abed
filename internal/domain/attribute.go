package domain

// RootGroup is the path of the top-level group. Attributes assigned here are
// treated as entity-global attributes at acceptance time.
const RootGroup = "/"

// AttributeVisibility controls whether an attribute is exposed to relying
// parties or kept local to the platform.
type AttributeVisibility string

const (
	VisibilityFull  AttributeVisibility = "full"
	VisibilityLocal AttributeVisibility = "local"
)

// AttributeType describes an installed attribute type. Types are registered
// out-of-band by administrators; actions referencing an unknown type fail at
// construction time.
type AttributeType struct {
	Name        string
	ValueSyntax string
	MaxElements int
}

// Attribute is a named, multi-valued attribute scoped to a group path.
type Attribute struct {
	Name       string
	GroupPath  string
	Values     []string
	Visibility AttributeVisibility

	// RemoteIdP and TranslationProfile record provenance for attributes
	// produced by remote-input mapping.
	RemoteIdP          string
	TranslationProfile string
}

// VerifiableValue wraps a value that may require out-of-band confirmation
// (typically an email address). Confirmed reflects whether the submitter has
// already proven control of the value.
type VerifiableValue struct {
	Value     string
	Confirmed bool
}
