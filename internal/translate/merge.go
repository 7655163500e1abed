package translate

import (
	"idhub/internal/domain"
)

// AttrKey identifies a mapped attribute for merge purposes.
type AttrKey struct {
	Name  string
	Group string
}

// IdentityKey identifies a mapped identity for merge purposes.
type IdentityKey struct {
	Type  string
	Value string
}

// ExistingData describes the data an entity already has from local or prior
// remote logins, against which effect modes are resolved.
type ExistingData struct {
	Attributes map[AttrKey]struct{}
	Identities map[IdentityKey]struct{}
	Groups     map[string]struct{}
}

// NewExistingData returns an empty ExistingData, for brand new entities.
func NewExistingData() ExistingData {
	return ExistingData{
		Attributes: map[AttrKey]struct{}{},
		Identities: map[IdentityKey]struct{}{},
		Groups:     map[string]struct{}{},
	}
}

// MergedResult is the conflict-free output of MergeMappings, ready for store
// application.
type MergedResult struct {
	Attributes []domain.Attribute
	Identities []domain.IdentityParam
	Groups     []MappedGroup
}

// MergeMappings resolves effect-mode conflicts in a mapping result.
//
// Entries are considered in execution order; for a given key the last
// admissible entry wins. Admissibility per effect mode:
//   - CreateOnly is discarded when an equivalent already exists in prior data
//   - UpdateOnly is discarded when no prior value exists
//   - CreateOrUpdate always wins
//
// Group memberships are deduplicated by path; the last mode observed for a
// path wins.
func MergeMappings(m MappingResult, existing ExistingData) MergedResult {
	var out MergedResult

	attrOrder := []AttrKey{}
	attrByKey := map[AttrKey]domain.Attribute{}
	for _, mapped := range m.Attributes {
		key := AttrKey{Name: mapped.Attribute.Name, Group: mapped.Attribute.GroupPath}
		_, prior := existing.Attributes[key]
		if !admissible(mapped.Mode, prior) {
			continue
		}
		if _, seen := attrByKey[key]; !seen {
			attrOrder = append(attrOrder, key)
		}
		attrByKey[key] = mapped.Attribute
	}
	for _, key := range attrOrder {
		out.Attributes = append(out.Attributes, attrByKey[key])
	}

	idOrder := []IdentityKey{}
	idByKey := map[IdentityKey]domain.IdentityParam{}
	for _, mapped := range m.Identities {
		key := IdentityKey{Type: mapped.Identity.TypeID, Value: mapped.Identity.Value}
		_, prior := existing.Identities[key]
		if !admissible(mapped.Mode, prior) {
			continue
		}
		if _, seen := idByKey[key]; !seen {
			idOrder = append(idOrder, key)
		}
		idByKey[key] = mapped.Identity
	}
	for _, key := range idOrder {
		out.Identities = append(out.Identities, idByKey[key])
	}

	groupOrder := []string{}
	groupByPath := map[string]MappedGroup{}
	for _, mapped := range m.Groups {
		if _, seen := groupByPath[mapped.Path]; !seen {
			groupOrder = append(groupOrder, mapped.Path)
		}
		groupByPath[mapped.Path] = mapped
	}
	for _, path := range groupOrder {
		out.Groups = append(out.Groups, groupByPath[path])
	}

	return out
}

func admissible(mode EffectMode, priorExists bool) bool {
	switch mode {
	case CreateOnly:
		return !priorExists
	case UpdateOnly:
		return priorExists
	case CreateOrUpdate:
		return true
	}
	return false
}
