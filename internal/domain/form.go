package domain

// RetrievalSetting classifies how a form parameter's value is obtained.
//
// Security note: only values from parameters whose setting is strictly
// automatic (Automatic or AutomaticHidden) enter the restricted evaluation
// context, so that free-text typed by the submitter can never steer an
// automated decision. AutomaticOrInteractive counts as interactive because
// the submitter may have overridden the value.
type RetrievalSetting string

const (
	RetrievalInteractive            RetrievalSetting = "interactive"
	RetrievalAutomatic              RetrievalSetting = "automatic"
	RetrievalAutomaticHidden        RetrievalSetting = "automaticHidden"
	RetrievalAutomaticOrInteractive RetrievalSetting = "automaticOrInteractive"
)

// IsAutomaticOnly reports whether a value retrieved under this setting is
// guaranteed free of interactive user input.
func (r RetrievalSetting) IsAutomaticOnly() bool {
	return r == RetrievalAutomatic || r == RetrievalAutomaticHidden
}

// AttributeRegistrationParam asks the submitter for an attribute value.
type AttributeRegistrationParam struct {
	AttributeName string
	Group         string
	Optional      bool
	Retrieval     RetrievalSetting
}

// IdentityRegistrationParam asks the submitter for an identity value.
type IdentityRegistrationParam struct {
	IdentityType string
	Optional     bool
	Retrieval    RetrievalSetting
}

// GroupRegistrationParam offers the submitter membership in a group.
type GroupRegistrationParam struct {
	GroupPath string
	Retrieval RetrievalSetting
}

// CredentialRegistrationParam asks the submitter to define a credential.
type CredentialRegistrationParam struct {
	CredentialName string
}

// AgreementRegistrationParam presents a policy agreement.
type AgreementRegistrationParam struct {
	Text      string
	Mandatory bool
}

// RegistrationForm defines what a registration (or enquiry) form collects and
// what is assigned unconditionally on acceptance. Forms are authored by the
// external admin subsystem and are read-only configuration here.
//
// Invariants:
//   - parameter lists are positional: request entries align by index
//   - FixedAttributes and FixedGroups are applied before request-collected data
type RegistrationForm struct {
	Name      string
	IsEnquiry bool

	Attributes  []AttributeRegistrationParam
	Identities  []IdentityRegistrationParam
	Groups      []GroupRegistrationParam
	Credentials []CredentialRegistrationParam
	Agreements  []AgreementRegistrationParam

	FixedAttributes []Attribute
	FixedGroups     []string

	RegistrationCode   string
	TranslationProfile string

	// AdminsNotificationGroup receives acceptance/rejection notifications
	// when configured.
	AdminsNotificationGroup string
}
