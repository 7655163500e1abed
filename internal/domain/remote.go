package domain

// RemoteIdentity is an identity asserted by a federated IdP, before type
// conversion into an internal IdentityParam.
type RemoteIdentity struct {
	Type  string
	Value string
}

// RemotelyAuthenticatedInput is the untrusted payload of a federated login
// response, handed to an input translation profile. All values here are
// attacker-influenced data: they enter expression evaluation only as context
// values, never as expression source.
type RemotelyAuthenticatedInput struct {
	IdPName string
	// Profile is the name of the input translation profile bound to the IdP.
	Profile string

	Attributes map[string][]string
	Identities []RemoteIdentity
	Groups     []string

	// OnIdPEndpoint is true when the login arrived on the IdP-side endpoint
	// rather than via a proxied SP flow.
	OnIdPEndpoint bool
}
