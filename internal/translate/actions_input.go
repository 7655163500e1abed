package translate

import (
	"context"
	"log/slog"
	"strings"

	"idhub/internal/domain"
	"idhub/internal/registry"
	"idhub/internal/translate/expression"
	dErrors "idhub/pkg/domain-errors"
)

func parseEffectMode(raw string) (EffectMode, error) {
	mode := EffectMode(raw)
	switch mode {
	case CreateOnly, UpdateOnly, CreateOrUpdate:
		return mode, nil
	}
	return "", dErrors.Newf(dErrors.CodeInvalidProfile, "unknown effect mode %q", raw)
}

func sourceIdP(ec Context) string {
	idp, _ := ec[CtxIdP].(string)
	return idp
}

type mapAttributeAction struct {
	attrName  string
	group     string
	valueExpr *expression.Program
	mode      EffectMode
	attrTypes registry.AttributeTypes
	log       *slog.Logger
}

func newMapAttribute(p Params, deps Deps) (Action, error) {
	name, err := p.require("attribute")
	if err != nil {
		return nil, err
	}
	src, err := p.require("expression")
	if err != nil {
		return nil, err
	}
	prog, err := expression.Compile(src)
	if err != nil {
		return nil, err
	}
	mode, err := parseEffectMode(p.optional("effect", string(CreateOrUpdate)))
	if err != nil {
		return nil, err
	}
	if _, err := deps.AttrTypes.GetType(context.Background(), name); err != nil {
		return nil, dErrors.Newf(dErrors.CodeInvalidProfile, "mapAttribute references unknown attribute type %q", name)
	}
	return &mapAttributeAction{
		attrName:  name,
		group:     p.optional("group", domain.RootGroup),
		valueExpr: prog,
		mode:      mode,
		attrTypes: deps.AttrTypes,
		log:       deps.logger(),
	}, nil
}

func (a *mapAttributeAction) Name() string { return ActionMapAttribute }

func (a *mapAttributeAction) Invoke(ctx context.Context, acc *Accumulator, ec Context, profileName string) error {
	v, err := a.valueExpr.Evaluate(ec)
	if err != nil {
		a.log.Warn("mapAttribute expression failed, skipping", "attribute", a.attrName, "error", err)
		return nil
	}
	raw := valueToStrings(v)
	if raw == nil {
		return nil
	}
	internal, err := a.attrTypes.ExternalValuesToInternal(ctx, a.attrName, raw)
	if err != nil {
		a.log.Warn("mapAttribute value conversion failed, skipping",
			"attribute", a.attrName, "error", err)
		return nil
	}
	acc.MappedAttributes = append(acc.MappedAttributes, MappedAttribute{
		Attribute: domain.Attribute{
			Name:               a.attrName,
			GroupPath:          a.group,
			Values:             internal,
			Visibility:         domain.VisibilityFull,
			RemoteIdP:          sourceIdP(ec),
			TranslationProfile: profileName,
		},
		Mode: a.mode,
	})
	return nil
}

type mapIdentityAction struct {
	typeName  string
	valueExpr *expression.Program
	mode      EffectMode
	idTypes   registry.IdentityTypes
	log       *slog.Logger
}

func newMapIdentity(p Params, deps Deps) (Action, error) {
	typeName, err := p.require("type")
	if err != nil {
		return nil, err
	}
	src, err := p.require("expression")
	if err != nil {
		return nil, err
	}
	prog, err := expression.Compile(src)
	if err != nil {
		return nil, err
	}
	mode, err := parseEffectMode(p.optional("effect", string(CreateOrUpdate)))
	if err != nil {
		return nil, err
	}
	if _, err := deps.IDTypes.GetByName(context.Background(), typeName); err != nil {
		return nil, dErrors.Newf(dErrors.CodeInvalidProfile, "mapIdentity references unknown identity type %q", typeName)
	}
	return &mapIdentityAction{
		typeName:  typeName,
		valueExpr: prog,
		mode:      mode,
		idTypes:   deps.IDTypes,
		log:       deps.logger(),
	}, nil
}

func (a *mapIdentityAction) Name() string { return ActionMapIdentity }

func (a *mapIdentityAction) Invoke(ctx context.Context, acc *Accumulator, ec Context, profileName string) error {
	v, err := a.valueExpr.Evaluate(ec)
	if err != nil {
		a.log.Warn("mapIdentity expression failed, skipping", "type", a.typeName, "error", err)
		return nil
	}
	raw := valueToStrings(v)
	if raw == nil {
		return nil
	}
	for _, value := range raw {
		id, err := a.idTypes.ConvertFromString(ctx, a.typeName, value, sourceIdP(ec), profileName)
		if err != nil {
			a.log.Warn("mapIdentity value conversion failed, skipping",
				"type", a.typeName, "error", err)
			continue
		}
		acc.MappedIdentities = append(acc.MappedIdentities, MappedIdentity{
			Identity: id,
			Mode:     a.mode,
		})
	}
	return nil
}

type mapGroupAction struct {
	groupExpr *expression.Program
	mode      GroupEffectMode
	log       *slog.Logger
}

func newMapGroup(p Params, deps Deps) (Action, error) {
	src, err := p.require("expression")
	if err != nil {
		return nil, err
	}
	prog, err := expression.Compile(src)
	if err != nil {
		return nil, err
	}
	mode := GroupEffectMode(p.optional("effect", string(RequireExistingGroup)))
	if mode != RequireExistingGroup && mode != CreateMissingGroup {
		return nil, dErrors.Newf(dErrors.CodeInvalidProfile, "unknown group effect mode %q", mode)
	}
	return &mapGroupAction{groupExpr: prog, mode: mode, log: deps.logger()}, nil
}

func (a *mapGroupAction) Name() string { return ActionMapGroup }

func (a *mapGroupAction) Invoke(_ context.Context, acc *Accumulator, ec Context, profileName string) error {
	v, err := a.groupExpr.Evaluate(ec)
	if err != nil {
		a.log.Warn("mapGroup expression failed, skipping", "error", err)
		return nil
	}
	paths := valueToStrings(v)
	if paths == nil {
		return nil
	}
	for _, path := range paths {
		if !strings.HasPrefix(path, "/") {
			a.log.Warn("mapGroup yielded a non-absolute path, skipping", "path", path)
			continue
		}
		acc.MappedGroups = append(acc.MappedGroups, MappedGroup{
			Path:          path,
			Mode:          a.mode,
			SourceIdP:     sourceIdP(ec),
			SourceProfile: profileName,
		})
	}
	return nil
}

// multiMapAttributeAction maps many remote attributes in one rule using a
// whitespace-delimited table: each line is "remoteName attributeType /group".
type multiMapAttributeAction struct {
	entries   []multiMapEntry
	mode      EffectMode
	attrTypes registry.AttributeTypes
	log       *slog.Logger
}

type multiMapEntry struct {
	remoteName string
	attrName   string
	group      string
}

func newMultiMapAttribute(p Params, deps Deps) (Action, error) {
	table, err := p.require("mapping")
	if err != nil {
		return nil, err
	}
	mode, err := parseEffectMode(p.optional("effect", string(CreateOrUpdate)))
	if err != nil {
		return nil, err
	}
	var entries []multiMapEntry
	for _, line := range strings.Split(table, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, dErrors.Newf(dErrors.CodeInvalidProfile,
				"multiMapAttribute line %q must be: remoteName attributeType group", line)
		}
		if _, err := deps.AttrTypes.GetType(context.Background(), fields[1]); err != nil {
			return nil, dErrors.Newf(dErrors.CodeInvalidProfile,
				"multiMapAttribute references unknown attribute type %q", fields[1])
		}
		entries = append(entries, multiMapEntry{remoteName: fields[0], attrName: fields[1], group: fields[2]})
	}
	if len(entries) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidProfile, "multiMapAttribute mapping table is empty")
	}
	return &multiMapAttributeAction{
		entries:   entries,
		mode:      mode,
		attrTypes: deps.AttrTypes,
		log:       deps.logger(),
	}, nil
}

func (a *multiMapAttributeAction) Name() string { return ActionMultiMapAttribute }

func (a *multiMapAttributeAction) Invoke(ctx context.Context, acc *Accumulator, ec Context, profileName string) error {
	attrs, _ := ec[CtxAttrs].(map[string][]string)
	for _, entry := range a.entries {
		raw, ok := attrs[entry.remoteName]
		if !ok {
			continue
		}
		internal, err := a.attrTypes.ExternalValuesToInternal(ctx, entry.attrName, raw)
		if err != nil {
			a.log.Warn("multiMapAttribute value conversion failed, skipping entry",
				"remote", entry.remoteName, "attribute", entry.attrName, "error", err)
			continue
		}
		acc.MappedAttributes = append(acc.MappedAttributes, MappedAttribute{
			Attribute: domain.Attribute{
				Name:               entry.attrName,
				GroupPath:          entry.group,
				Values:             internal,
				Visibility:         domain.VisibilityFull,
				RemoteIdP:          sourceIdP(ec),
				TranslationProfile: profileName,
			},
			Mode: a.mode,
		})
	}
	return nil
}

type includeInputProfileAction struct {
	profileName string
}

func newIncludeInputProfile(p Params, _ Deps) (Action, error) {
	name, err := p.require("profile")
	if err != nil {
		return nil, err
	}
	return &includeInputProfileAction{profileName: name}, nil
}

func (a *includeInputProfileAction) Name() string { return ActionIncludeInputProfile }

// IncludedProfile marks this action for executor-side splicing.
func (a *includeInputProfileAction) IncludedProfile() string { return a.profileName }

// Invoke is a no-op: the executor runs the included profile's rules itself so
// it can maintain the inclusion stack.
func (a *includeInputProfileAction) Invoke(context.Context, *Accumulator, Context, string) error {
	return nil
}

type removeStaleDataAction struct{}

func newRemoveStaleData(Params, Deps) (Action, error) {
	return removeStaleDataAction{}, nil
}

func (removeStaleDataAction) Name() string { return ActionRemoveStaleData }

// Invoke flags the accumulator for stale-data cleanup. Idempotent: running it
// twice is the same as running it once.
func (removeStaleDataAction) Invoke(_ context.Context, acc *Accumulator, _ Context, _ string) error {
	acc.CleanStaleAttributes = true
	acc.CleanStaleGroups = true
	acc.CleanStaleIdentities = true
	return nil
}
