package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"idhub/internal/domain"
)

func testForm() *domain.RegistrationForm {
	return &domain.RegistrationForm{
		Name: "signup",
		Attributes: []domain.AttributeRegistrationParam{
			{AttributeName: "email", Group: "/", Retrieval: domain.RetrievalAutomatic},
			{AttributeName: "nickname", Group: "/", Retrieval: domain.RetrievalInteractive, Optional: true},
		},
		Identities: []domain.IdentityRegistrationParam{
			{IdentityType: "userName", Retrieval: domain.RetrievalInteractive},
			{IdentityType: "x500Name", Retrieval: domain.RetrievalAutomaticHidden},
		},
		Groups: []domain.GroupRegistrationParam{
			{GroupPath: "/staff", Retrieval: domain.RetrievalInteractive},
			{GroupPath: "/federated", Retrieval: domain.RetrievalAutomatic},
		},
		Agreements: []domain.AgreementRegistrationParam{
			{Text: "terms", Mandatory: true},
		},
	}
}

func testRequest() *domain.RegistrationRequest {
	return &domain.RegistrationRequest{
		ID:       domain.NewRequestID(),
		FormName: "signup",
		Status:   domain.RequestPending,
		Attributes: []*domain.Attribute{
			{Name: "email", GroupPath: "/", Values: []string{"a@example.com"}},
			{Name: "nickname", GroupPath: "/", Values: []string{"ace"}},
		},
		Identities: []*domain.IdentityParam{
			{TypeID: "userName", Value: "ace"},
			{TypeID: "x500Name", Value: "CN=ace,O=example", Confirmed: true},
		},
		GroupSelections: []domain.Selection{{Selected: true}, {Selected: true}},
		Agreements:      []domain.Selection{{Selected: true}},
		UserLocale:      "en",
	}
}

type ContextBuilderSuite struct {
	suite.Suite
	ec Context
}

func (s *ContextBuilderSuite) SetupTest() {
	s.ec = BuildFormContext(testForm(), testRequest(), FormContextOptions{Triggered: true})
}

func (s *ContextBuilderSuite) TestUnrestrictedSections() {
	attr := s.ec[CtxAttr].(map[string]any)
	assert.Equal(s.T(), "a@example.com", attr["email"])
	assert.Equal(s.T(), "ace", attr["nickname"])

	attrs := s.ec[CtxAttrs].(map[string][]string)
	assert.Equal(s.T(), []string{"a@example.com"}, attrs["email"])

	ids := s.ec[CtxIDsByType].(map[string][]string)
	assert.Equal(s.T(), []string{"ace"}, ids["userName"])
	assert.Equal(s.T(), []string{"CN=ace,O=example"}, ids["x500Name"])

	objs := s.ec[CtxIDsByTypeObj].(map[string][]domain.VerifiableValue)
	require.Len(s.T(), objs["x500Name"], 1)
	assert.True(s.T(), objs["x500Name"][0].Confirmed)
	assert.False(s.T(), objs["userName"][0].Confirmed)

	assert.Equal(s.T(), []string{"/staff", "/federated"}, s.ec[CtxGroups])
	assert.Equal(s.T(), []string{"true"}, s.ec[CtxAgreements])
}

func (s *ContextBuilderSuite) TestRestrictedMirrorsExcludeInteractive() {
	rattr := s.ec[CtxRAttr].(map[string]any)
	assert.Equal(s.T(), "a@example.com", rattr["email"])
	_, hasNickname := rattr["nickname"]
	assert.False(s.T(), hasNickname, "interactive attribute must not appear in rattr")

	rids := s.ec[CtxRIDsByType].(map[string][]string)
	assert.Equal(s.T(), []string{"CN=ace,O=example"}, rids["x500Name"])
	_, hasUserName := rids["userName"]
	assert.False(s.T(), hasUserName)

	assert.Equal(s.T(), []string{"/federated"}, s.ec[CtxRGroups])
}

// Restricted sections must always be a subset of their unrestricted
// counterparts, entry for entry.
func (s *ContextBuilderSuite) TestRestrictedSubsetInvariant() {
	attrs := s.ec[CtxAttrs].(map[string][]string)
	rattrs := s.ec[CtxRAttrs].(map[string][]string)
	for name, values := range rattrs {
		assert.Equal(s.T(), attrs[name], values, "rattrs[%s] must mirror attrs", name)
	}

	ids := s.ec[CtxIDsByType].(map[string][]string)
	rids := s.ec[CtxRIDsByType].(map[string][]string)
	for typ, values := range rids {
		assert.Subset(s.T(), ids[typ], values)
	}

	groups := s.ec[CtxGroups].([]string)
	rgroups := s.ec[CtxRGroups].([]string)
	assert.Subset(s.T(), groups, rgroups)
}

func (s *ContextBuilderSuite) TestScalars() {
	assert.Equal(s.T(), "en", s.ec[CtxUserLocale])
	assert.Equal(s.T(), true, s.ec[CtxTriggered])
	assert.Equal(s.T(), false, s.ec[CtxOnIdPEndpoint])
	assert.Equal(s.T(), "pending", s.ec[CtxStatus])
	assert.Equal(s.T(), "signup", s.ec[CtxRegistrationForm])
	assert.NotEmpty(s.T(), s.ec[CtxRequestID])
}

func (s *ContextBuilderSuite) TestSkippedOptionalEntriesAreAbsent() {
	req := testRequest()
	req.Attributes[1] = nil
	ec := BuildFormContext(testForm(), req, FormContextOptions{})

	attr := ec[CtxAttr].(map[string]any)
	_, ok := attr["nickname"]
	assert.False(s.T(), ok)
}

func (s *ContextBuilderSuite) TestRestrictedView() {
	view := s.ec.RestrictedView()
	_, hasAttr := view[CtxAttr]
	assert.False(s.T(), hasAttr)
	_, hasGroups := view[CtxGroups]
	assert.False(s.T(), hasGroups)
	assert.Contains(s.T(), view, CtxRAttr)
	assert.Contains(s.T(), view, CtxStatus)
	assert.Contains(s.T(), view, CtxAgreements)
}

func (s *ContextBuilderSuite) TestRemoteContext() {
	input := &domain.RemotelyAuthenticatedInput{
		IdPName: "https://idp.example.com",
		Profile: "saml-in",
		Attributes: map[string][]string{
			"cn": {"Ace Example"},
		},
		Identities: []domain.RemoteIdentity{{Type: "identifier", Value: "abc123"}},
		Groups:     []string{"/remote"},
	}
	ec := BuildRemoteContext(input)
	assert.Equal(s.T(), "Ace Example", ec[CtxAttr].(map[string]any)["cn"])
	assert.Equal(s.T(), []string{"abc123"}, ec[CtxIDsByType].(map[string][]string)["identifier"])
	assert.Equal(s.T(), []string{"/remote"}, ec[CtxGroups])
	assert.Equal(s.T(), "https://idp.example.com", ec[CtxIdP])
}

func TestContextBuilderSuite(t *testing.T) {
	suite.Run(t, new(ContextBuilderSuite))
}
