package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"idhub/internal/domain"
)

type MergeSuite struct {
	suite.Suite
	existing ExistingData
}

func (s *MergeSuite) SetupTest() {
	s.existing = NewExistingData()
}

func mappedAttr(name, group string, mode EffectMode, values ...string) MappedAttribute {
	return MappedAttribute{
		Attribute: domain.Attribute{Name: name, GroupPath: group, Values: values},
		Mode:      mode,
	}
}

func (s *MergeSuite) TestCreateOnlyDiscardedWhenPriorExists() {
	s.existing.Attributes[AttrKey{Name: "email", Group: "/"}] = struct{}{}

	out := MergeMappings(MappingResult{
		Attributes: []MappedAttribute{
			mappedAttr("email", "/", CreateOnly, "new@example.com"),
			mappedAttr("cn", "/", CreateOnly, "Ace"),
		},
	}, s.existing)

	require.Len(s.T(), out.Attributes, 1)
	assert.Equal(s.T(), "cn", out.Attributes[0].Name)
}

func (s *MergeSuite) TestUpdateOnlyDiscardedWithoutPrior() {
	s.existing.Identities[IdentityKey{Type: "idT", Value: "known"}] = struct{}{}

	out := MergeMappings(MappingResult{
		Identities: []MappedIdentity{
			{Identity: domain.IdentityParam{TypeID: "idT", Value: "known"}, Mode: UpdateOnly},
			{Identity: domain.IdentityParam{TypeID: "idT", Value: "unknown"}, Mode: UpdateOnly},
		},
	}, s.existing)

	require.Len(s.T(), out.Identities, 1)
	assert.Equal(s.T(), "known", out.Identities[0].Value)
}

func (s *MergeSuite) TestCreateOrUpdateAlwaysWins() {
	s.existing.Attributes[AttrKey{Name: "email", Group: "/"}] = struct{}{}

	out := MergeMappings(MappingResult{
		Attributes: []MappedAttribute{
			mappedAttr("email", "/", CreateOrUpdate, "new@example.com"),
		},
	}, s.existing)

	require.Len(s.T(), out.Attributes, 1)
	assert.Equal(s.T(), []string{"new@example.com"}, out.Attributes[0].Values)
}

// Two conflicting CREATE_OR_UPDATE mappings for one key: last in execution
// order wins.
func (s *MergeSuite) TestLastRuleWinsForSameKey() {
	out := MergeMappings(MappingResult{
		Attributes: []MappedAttribute{
			mappedAttr("email", "/", CreateOrUpdate, "first@example.com"),
			mappedAttr("email", "/", CreateOrUpdate, "second@example.com"),
		},
	}, s.existing)

	require.Len(s.T(), out.Attributes, 1)
	assert.Equal(s.T(), []string{"second@example.com"}, out.Attributes[0].Values)
}

func (s *MergeSuite) TestInadmissibleLaterEntryDoesNotEraseEarlierOne() {
	out := MergeMappings(MappingResult{
		Attributes: []MappedAttribute{
			mappedAttr("email", "/", CreateOrUpdate, "first@example.com"),
			mappedAttr("email", "/", UpdateOnly, "second@example.com"),
		},
	}, s.existing)

	require.Len(s.T(), out.Attributes, 1)
	assert.Equal(s.T(), []string{"first@example.com"}, out.Attributes[0].Values)
}

func (s *MergeSuite) TestGroupsDedupedLastModeWins() {
	out := MergeMappings(MappingResult{
		Groups: []MappedGroup{
			{Path: "/A", Mode: RequireExistingGroup},
			{Path: "/B", Mode: RequireExistingGroup},
			{Path: "/A", Mode: CreateMissingGroup},
		},
	}, s.existing)

	require.Len(s.T(), out.Groups, 2)
	assert.Equal(s.T(), "/A", out.Groups[0].Path)
	assert.Equal(s.T(), CreateMissingGroup, out.Groups[0].Mode)
	assert.Equal(s.T(), "/B", out.Groups[1].Path)
}

func (s *MergeSuite) TestStableOutputOrder() {
	out := MergeMappings(MappingResult{
		Identities: []MappedIdentity{
			{Identity: domain.IdentityParam{TypeID: "idT", Value: "a"}, Mode: CreateOrUpdate},
			{Identity: domain.IdentityParam{TypeID: "idT", Value: "b"}, Mode: CreateOrUpdate},
			{Identity: domain.IdentityParam{TypeID: "idT", Value: "a"}, Mode: CreateOrUpdate},
		},
	}, s.existing)

	require.Len(s.T(), out.Identities, 2)
	assert.Equal(s.T(), "a", out.Identities[0].Value)
	assert.Equal(s.T(), "b", out.Identities[1].Value)
}

func TestMergeSuite(t *testing.T) {
	suite.Run(t, new(MergeSuite))
}
