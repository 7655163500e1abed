package translate

import (
	"idhub/internal/domain"
)

// ProfileKind selects which half of the action catalog a profile may use.
type ProfileKind string

const (
	KindInput        ProfileKind = "INPUT"
	KindRegistration ProfileKind = "REGISTRATION"
	KindEnquiry      ProfileKind = "ENQUIRY"
)

// EffectMode governs how a mapped attribute or identity interacts with data
// that already exists for the entity. Carried by mapping actions, resolved by
// the merger.
type EffectMode string

const (
	CreateOnly     EffectMode = "CREATE_ONLY"
	UpdateOnly     EffectMode = "UPDATE_ONLY"
	CreateOrUpdate EffectMode = "CREATE_OR_UPDATE"
)

// GroupEffectMode governs whether a mapped group membership may create the
// group on demand.
type GroupEffectMode string

const (
	RequireExistingGroup GroupEffectMode = "REQUIRE_EXISTING"
	CreateMissingGroup   GroupEffectMode = "CREATE_MISSING"
)

// AutoDecision is the automatic disposition a profile may set for a request.
type AutoDecision string

const (
	AutoNothing AutoDecision = ""
	AutoAccept  AutoDecision = "accept"
	AutoReject  AutoDecision = "reject"
	AutoDrop    AutoDecision = "drop"
)

// MappedAttribute is the output of a remote-input attribute mapping, pending
// merge against the entity's prior data.
type MappedAttribute struct {
	Attribute domain.Attribute
	Mode      EffectMode
}

// MappedIdentity is the output of a remote-input identity mapping.
type MappedIdentity struct {
	Identity domain.IdentityParam
	Mode     EffectMode
}

// MappedGroup is the output of a remote-input group mapping.
type MappedGroup struct {
	Path          string
	Mode          GroupEffectMode
	SourceIdP     string
	SourceProfile string
}

// Accumulator is the single mutable result object threaded through one
// profile execution. It is owned exclusively by that execution: never shared
// across requests, never accessed concurrently. Registration/enquiry profiles
// write the direct fields; input profiles write the Mapped* lists and the
// stale-data flags.
type Accumulator struct {
	Kind ProfileKind

	Attributes            []domain.Attribute
	Identities            []domain.IdentityParam
	Groups                []string
	AttributeClasses      map[string][]string
	CredentialRequirement string
	EntityState           domain.EntityState
	ScheduledChange       *domain.ScheduledChange
	AutoDecision          AutoDecision
	RedirectURL           string

	MappedAttributes []MappedAttribute
	MappedIdentities []MappedIdentity
	MappedGroups     []MappedGroup

	CleanStaleAttributes bool
	CleanStaleGroups     bool
	CleanStaleIdentities bool
}

func NewAccumulator(kind ProfileKind) *Accumulator {
	return &Accumulator{
		Kind:             kind,
		AttributeClasses: map[string][]string{},
		EntityState:      domain.EntityStateValid,
	}
}

// AddAttribute adds an attribute, replacing any previously accumulated one
// with the same (name, group).
func (a *Accumulator) AddAttribute(attr domain.Attribute) {
	for i, existing := range a.Attributes {
		if existing.Name == attr.Name && existing.GroupPath == attr.GroupPath {
			a.Attributes[i] = attr
			return
		}
	}
	a.Attributes = append(a.Attributes, attr)
}

// FilterAttributes removes every accumulated attribute the predicate matches.
func (a *Accumulator) FilterAttributes(match func(domain.Attribute) bool) {
	kept := a.Attributes[:0]
	for _, attr := range a.Attributes {
		if !match(attr) {
			kept = append(kept, attr)
		}
	}
	a.Attributes = kept
}

// AddIdentity adds an identity unless an equal (type, value) pair is already
// accumulated.
func (a *Accumulator) AddIdentity(id domain.IdentityParam) {
	for _, existing := range a.Identities {
		if existing.TypeID == id.TypeID && existing.Value == id.Value {
			return
		}
	}
	a.Identities = append(a.Identities, id)
}

// FilterIdentities removes every accumulated identity the predicate matches.
func (a *Accumulator) FilterIdentities(match func(domain.IdentityParam) bool) {
	kept := a.Identities[:0]
	for _, id := range a.Identities {
		if !match(id) {
			kept = append(kept, id)
		}
	}
	a.Identities = kept
}

// AddGroup adds a group membership path, deduplicated.
func (a *Accumulator) AddGroup(path string) {
	for _, existing := range a.Groups {
		if existing == path {
			return
		}
	}
	a.Groups = append(a.Groups, path)
}

// FilterGroups removes every accumulated membership the predicate matches.
func (a *Accumulator) FilterGroups(match func(string) bool) {
	kept := a.Groups[:0]
	for _, g := range a.Groups {
		if !match(g) {
			kept = append(kept, g)
		}
	}
	a.Groups = kept
}

// AddAttributeClasses assigns attribute class names to a group's assignment
// set, deduplicated.
func (a *Accumulator) AddAttributeClasses(group string, classes ...string) {
	existing := a.AttributeClasses[group]
next:
	for _, c := range classes {
		for _, e := range existing {
			if e == c {
				continue next
			}
		}
		existing = append(existing, c)
	}
	a.AttributeClasses[group] = existing
}

// TranslatedRequest is the finalized registration/enquiry translation result
// consumed by the acceptance pipeline.
type TranslatedRequest struct {
	Attributes            []domain.Attribute
	Identities            []domain.IdentityParam
	Groups                []string
	AttributeClasses      map[string][]string
	CredentialRequirement string
	EntityState           domain.EntityState
	ScheduledChange       *domain.ScheduledChange
	AutoDecision          AutoDecision
	RedirectURL           string
}

// Translated snapshots the registration-path outputs.
func (a *Accumulator) Translated() TranslatedRequest {
	classes := make(map[string][]string, len(a.AttributeClasses))
	for g, cs := range a.AttributeClasses {
		classes[g] = append([]string(nil), cs...)
	}
	return TranslatedRequest{
		Attributes:            append([]domain.Attribute(nil), a.Attributes...),
		Identities:            append([]domain.IdentityParam(nil), a.Identities...),
		Groups:                append([]string(nil), a.Groups...),
		AttributeClasses:      classes,
		CredentialRequirement: a.CredentialRequirement,
		EntityState:           a.EntityState,
		ScheduledChange:       a.ScheduledChange,
		AutoDecision:          a.AutoDecision,
		RedirectURL:           a.RedirectURL,
	}
}

// MappingResult is the finalized remote-input translation result, pending
// merge against the entity's prior data.
type MappingResult struct {
	Attributes []MappedAttribute
	Identities []MappedIdentity
	Groups     []MappedGroup

	CleanStaleAttributes bool
	CleanStaleGroups     bool
	CleanStaleIdentities bool

	RedirectURL string
}

// Mapping snapshots the input-path outputs.
func (a *Accumulator) Mapping() MappingResult {
	return MappingResult{
		Attributes:           append([]MappedAttribute(nil), a.MappedAttributes...),
		Identities:           append([]MappedIdentity(nil), a.MappedIdentities...),
		Groups:               append([]MappedGroup(nil), a.MappedGroups...),
		CleanStaleAttributes: a.CleanStaleAttributes,
		CleanStaleGroups:     a.CleanStaleGroups,
		CleanStaleIdentities: a.CleanStaleIdentities,
		RedirectURL:          a.RedirectURL,
	}
}
