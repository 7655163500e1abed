package translate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"idhub/internal/domain"
	"idhub/internal/registry"
	dErrors "idhub/pkg/domain-errors"
	"idhub/pkg/requestcontext"
)

func testDeps() Deps {
	attrTypes := registry.NewMemoryAttributeTypes()
	attrTypes.Register(domain.AttributeType{Name: "stringA"}, nil)
	attrTypes.Register(domain.AttributeType{Name: "email", MaxElements: 1}, nil)
	idTypes := registry.NewMemoryIdentityTypes()
	idTypes.Register(domain.IdentityTypeDefinition{Name: "idT"})
	idTypes.Register(domain.IdentityTypeDefinition{Name: "userName"})
	return Deps{AttrTypes: attrTypes, IDTypes: idTypes}
}

type ActionsSuite struct {
	suite.Suite
	reg *ActionRegistry
	acc *Accumulator
}

func (s *ActionsSuite) SetupTest() {
	s.reg = NewActionRegistry(testDeps())
	s.acc = NewAccumulator(KindRegistration)
}

func (s *ActionsSuite) invoke(a Action, ec Context) {
	require.NoError(s.T(), a.Invoke(context.Background(), s.acc, ec, "profile"))
}

func (s *ActionsSuite) TestAddAttribute() {
	a, err := s.reg.New(KindRegistration, ActionAddAttribute, Params{
		"attribute":  "stringA",
		"group":      "/A/B",
		"expression": "attr['attribute']",
		"visibility": "full",
	})
	require.NoError(s.T(), err)

	s.invoke(a, Context{CtxAttr: map[string]any{"attribute": "a1"}})

	require.Len(s.T(), s.acc.Attributes, 1)
	got := s.acc.Attributes[0]
	assert.Equal(s.T(), "stringA", got.Name)
	assert.Equal(s.T(), "/A/B", got.GroupPath)
	assert.Equal(s.T(), []string{"a1"}, got.Values)
	assert.Equal(s.T(), domain.VisibilityFull, got.Visibility)
}

func (s *ActionsSuite) TestAddAttributeNullSkips() {
	a, err := s.reg.New(KindRegistration, ActionAddAttribute, Params{
		"attribute":  "stringA",
		"group":      "/",
		"expression": "attr['missing']",
	})
	require.NoError(s.T(), err)

	s.invoke(a, Context{CtxAttr: map[string]any{}})
	assert.Empty(s.T(), s.acc.Attributes)
}

func (s *ActionsSuite) TestAddAttributeUnknownTypeFailsConstruction() {
	_, err := s.reg.New(KindRegistration, ActionAddAttribute, Params{
		"attribute":  "noSuchType",
		"group":      "/",
		"expression": "'x'",
	})
	require.Error(s.T(), err)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvalidProfile))
}

func (s *ActionsSuite) TestFilterAttribute() {
	s.acc.AddAttribute(domain.Attribute{Name: "attribute", GroupPath: "/", Values: []string{"a1"}})
	s.acc.AddAttribute(domain.Attribute{Name: "other", GroupPath: "/", Values: []string{"a2"}})

	a, err := s.reg.New(KindRegistration, ActionFilterAttribute, Params{
		"attribute": "a.*",
		"group":     "/",
	})
	require.NoError(s.T(), err)
	s.invoke(a, Context{})

	require.Len(s.T(), s.acc.Attributes, 1)
	assert.Equal(s.T(), "other", s.acc.Attributes[0].Name)
	assert.Equal(s.T(), []string{"a2"}, s.acc.Attributes[0].Values)
}

func (s *ActionsSuite) TestAddToGroup() {
	a, err := s.reg.New(KindRegistration, ActionAddToGroup, Params{"group": "'/A'"})
	require.NoError(s.T(), err)
	s.invoke(a, Context{})
	assert.Equal(s.T(), []string{"/A"}, s.acc.Groups)
}

func (s *ActionsSuite) TestFilterGroup() {
	s.acc.AddGroup("/A/B")
	s.acc.AddGroup("/Z")

	a, err := s.reg.New(KindRegistration, ActionFilterGroup, Params{"group": "/A.*"})
	require.NoError(s.T(), err)
	s.invoke(a, Context{})

	assert.Equal(s.T(), []string{"/Z"}, s.acc.Groups)
}

func (s *ActionsSuite) TestFilterIdentity() {
	s.acc.AddIdentity(domain.IdentityParam{TypeID: "idT", Value: "idAA"})
	s.acc.AddIdentity(domain.IdentityParam{TypeID: "idT", Value: "bbb"})

	a, err := s.reg.New(KindRegistration, ActionFilterIdentity, Params{
		"identity": "id.*",
		"type":     "idT",
	})
	require.NoError(s.T(), err)
	s.invoke(a, Context{})

	require.Len(s.T(), s.acc.Identities, 1)
	assert.Equal(s.T(), "bbb", s.acc.Identities[0].Value)
}

func (s *ActionsSuite) TestFilterLeavesOtherTypesAlone() {
	s.acc.AddIdentity(domain.IdentityParam{TypeID: "userName", Value: "idAA"})

	a, err := s.reg.New(KindRegistration, ActionFilterIdentity, Params{
		"identity": "id.*",
		"type":     "idT",
	})
	require.NoError(s.T(), err)
	s.invoke(a, Context{})
	assert.Len(s.T(), s.acc.Identities, 1)
}

func (s *ActionsSuite) TestScheduleEntityChange() {
	a, err := s.reg.New(KindRegistration, ActionScheduleEntityChange, Params{
		"operation": "REMOVE",
		"days":      "4",
	})
	require.NoError(s.T(), err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	require.NoError(s.T(), a.Invoke(ctx, s.acc, Context{}, "profile"))

	require.NotNil(s.T(), s.acc.ScheduledChange)
	assert.Equal(s.T(), domain.ScheduledOpRemove, s.acc.ScheduledChange.Operation)
	assert.Equal(s.T(), now.Add(4*24*time.Hour), s.acc.ScheduledChange.ScheduledTime)
}

func (s *ActionsSuite) TestAutoProcess() {
	a, err := s.reg.New(KindRegistration, ActionAutoProcess, Params{"action": "accept"})
	require.NoError(s.T(), err)
	s.invoke(a, Context{})
	assert.Equal(s.T(), AutoAccept, s.acc.AutoDecision)

	_, err = s.reg.New(KindRegistration, ActionAutoProcess, Params{"action": "explode"})
	assert.Error(s.T(), err)
}

func (s *ActionsSuite) TestSetEntityStateLimited() {
	a, err := s.reg.New(KindRegistration, ActionSetEntityState, Params{"state": "disabled"})
	require.NoError(s.T(), err)
	s.invoke(a, Context{})
	assert.Equal(s.T(), domain.EntityStateDisabled, s.acc.EntityState)

	_, err = s.reg.New(KindRegistration, ActionSetEntityState, Params{"state": "onlyLoginPermitted"})
	assert.Error(s.T(), err)
}

func (s *ActionsSuite) TestAddAttributeClassAndCredentialRequirement() {
	a, err := s.reg.New(KindRegistration, ActionAddAttributeClass, Params{
		"group": "/A",
		"class": "['c1', 'c2']",
	})
	require.NoError(s.T(), err)
	s.invoke(a, Context{})
	s.invoke(a, Context{})
	assert.Equal(s.T(), []string{"c1", "c2"}, s.acc.AttributeClasses["/A"])

	c, err := s.reg.New(KindRegistration, ActionSetCredentialRequirement, Params{"requirement": "sys:password"})
	require.NoError(s.T(), err)
	s.invoke(c, Context{})
	assert.Equal(s.T(), "sys:password", s.acc.CredentialRequirement)
}

func (s *ActionsSuite) TestRedirect() {
	a, err := s.reg.New(KindRegistration, ActionRedirect, Params{"url": "'https://example.com/done'"})
	require.NoError(s.T(), err)
	s.invoke(a, Context{})
	assert.Equal(s.T(), "https://example.com/done", s.acc.RedirectURL)
}

func (s *ActionsSuite) TestKindMismatchRejected() {
	_, err := s.reg.New(KindRegistration, ActionMapAttribute, Params{
		"attribute":  "stringA",
		"expression": "attrs['cn']",
	})
	require.Error(s.T(), err)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvalidProfile))

	_, err = s.reg.New(KindInput, ActionAddToGroup, Params{"group": "'/A'"})
	assert.Error(s.T(), err)
}

func (s *ActionsSuite) TestUnknownActionRejected() {
	_, err := s.reg.New(KindRegistration, "launchMissiles", Params{})
	assert.Error(s.T(), err)
}

type InputActionsSuite struct {
	suite.Suite
	reg *ActionRegistry
	acc *Accumulator
	ec  Context
}

func (s *InputActionsSuite) SetupTest() {
	s.reg = NewActionRegistry(testDeps())
	s.acc = NewAccumulator(KindInput)
	s.ec = BuildRemoteContext(&domain.RemotelyAuthenticatedInput{
		IdPName: "https://idp.example.com",
		Attributes: map[string][]string{
			"mail": {"a@example.com"},
			"cn":   {"Ace"},
		},
		Identities: []domain.RemoteIdentity{{Type: "identifier", Value: "abc"}},
		Groups:     []string{"/remote/students"},
	})
}

func (s *InputActionsSuite) invoke(a Action) {
	require.NoError(s.T(), a.Invoke(context.Background(), s.acc, s.ec, "saml-in"))
}

func (s *InputActionsSuite) TestMapAttribute() {
	a, err := s.reg.New(KindInput, ActionMapAttribute, Params{
		"attribute":  "email",
		"group":      "/",
		"expression": "attrs['mail']",
		"effect":     "CREATE_OR_UPDATE",
	})
	require.NoError(s.T(), err)
	s.invoke(a)

	require.Len(s.T(), s.acc.MappedAttributes, 1)
	got := s.acc.MappedAttributes[0]
	assert.Equal(s.T(), "email", got.Attribute.Name)
	assert.Equal(s.T(), []string{"a@example.com"}, got.Attribute.Values)
	assert.Equal(s.T(), CreateOrUpdate, got.Mode)
	assert.Equal(s.T(), "https://idp.example.com", got.Attribute.RemoteIdP)
	assert.Equal(s.T(), "saml-in", got.Attribute.TranslationProfile)
}

func (s *InputActionsSuite) TestMapAttributeConversionFailureSkips() {
	// email accepts at most one value; two must be rejected and skipped.
	a, err := s.reg.New(KindInput, ActionMapAttribute, Params{
		"attribute":  "email",
		"expression": "['a@example.com', 'b@example.com']",
	})
	require.NoError(s.T(), err)
	s.invoke(a)
	assert.Empty(s.T(), s.acc.MappedAttributes)
}

func (s *InputActionsSuite) TestMapIdentity() {
	a, err := s.reg.New(KindInput, ActionMapIdentity, Params{
		"type":       "idT",
		"expression": "idsByType['identifier'][0]",
		"effect":     "CREATE_ONLY",
	})
	require.NoError(s.T(), err)
	s.invoke(a)

	require.Len(s.T(), s.acc.MappedIdentities, 1)
	assert.Equal(s.T(), "abc", s.acc.MappedIdentities[0].Identity.Value)
	assert.Equal(s.T(), CreateOnly, s.acc.MappedIdentities[0].Mode)
}

func (s *InputActionsSuite) TestMapGroup() {
	a, err := s.reg.New(KindInput, ActionMapGroup, Params{
		"expression": "groups",
		"effect":     "CREATE_MISSING",
	})
	require.NoError(s.T(), err)
	s.invoke(a)

	require.Len(s.T(), s.acc.MappedGroups, 1)
	assert.Equal(s.T(), "/remote/students", s.acc.MappedGroups[0].Path)
	assert.Equal(s.T(), CreateMissingGroup, s.acc.MappedGroups[0].Mode)
}

func (s *InputActionsSuite) TestMultiMapAttribute() {
	a, err := s.reg.New(KindInput, ActionMultiMapAttribute, Params{
		"mapping": "mail email /\ncn stringA /A",
	})
	require.NoError(s.T(), err)
	s.invoke(a)

	require.Len(s.T(), s.acc.MappedAttributes, 2)
	assert.Equal(s.T(), "email", s.acc.MappedAttributes[0].Attribute.Name)
	assert.Equal(s.T(), "stringA", s.acc.MappedAttributes[1].Attribute.Name)
	assert.Equal(s.T(), "/A", s.acc.MappedAttributes[1].Attribute.GroupPath)
}

func (s *InputActionsSuite) TestRemoveStaleDataIdempotent() {
	a, err := s.reg.New(KindInput, ActionRemoveStaleData, Params{})
	require.NoError(s.T(), err)
	s.invoke(a)
	s.invoke(a)
	assert.True(s.T(), s.acc.CleanStaleAttributes)
	assert.True(s.T(), s.acc.CleanStaleGroups)
	assert.True(s.T(), s.acc.CleanStaleIdentities)
}

func TestActionsSuite(t *testing.T) {
	suite.Run(t, new(ActionsSuite))
}

func TestInputActionsSuite(t *testing.T) {
	suite.Run(t, new(InputActionsSuite))
}
