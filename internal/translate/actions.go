package translate

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"

	"idhub/internal/registry"
	dErrors "idhub/pkg/domain-errors"
)

// Action catalog names.
const (
	ActionAddAttribute             = "addAttribute"
	ActionFilterAttribute          = "filterAttribute"
	ActionAddToGroup               = "addToGroup"
	ActionFilterGroup              = "filterGroup"
	ActionAddIdentity              = "addIdentity"
	ActionFilterIdentity           = "filterIdentity"
	ActionAddAttributeClass        = "addAttributeClass"
	ActionAutoProcess              = "autoProcess"
	ActionRedirect                 = "redirect"
	ActionConfirmationRedirect     = "confirmationRedirect"
	ActionScheduleEntityChange     = "scheduleEntityChange"
	ActionSetCredentialRequirement = "setCredentialRequirement"
	ActionSetEntityState           = "setEntityState"
	ActionMapAttribute             = "mapAttribute"
	ActionMapIdentity              = "mapIdentity"
	ActionMapGroup                 = "mapGroup"
	ActionMultiMapAttribute        = "multiMapAttribute"
	ActionIncludeInputProfile      = "includeInputProfile"
	ActionRemoveStaleData          = "removeStaleData"
)

// Params are the administrator-supplied parameters of one rule's action.
type Params map[string]string

func (p Params) require(key string) (string, error) {
	v, ok := p[key]
	if !ok || v == "" {
		return "", dErrors.Newf(dErrors.CodeInvalidProfile, "missing required action parameter %q", key)
	}
	return v, nil
}

func (p Params) optional(key, fallback string) string {
	if v, ok := p[key]; ok && v != "" {
		return v
	}
	return fallback
}

// Action is one variant of the catalog. Invoke observes and mutates the
// execution's accumulator; a legitimate no-op (skipped mapping, evaluated
// null) returns nil. A returned error fails the whole execution.
type Action interface {
	Name() string
	Invoke(ctx context.Context, acc *Accumulator, ec Context, profileName string) error
}

// includer is implemented by the includeInputProfile action; the executor
// splices the referenced profile's rules instead of calling Invoke.
type includer interface {
	IncludedProfile() string
}

// Deps are the registries actions validate against at construction time.
type Deps struct {
	AttrTypes registry.AttributeTypes
	IDTypes   registry.IdentityTypes
	Logger    *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// Factory validates parameters and constructs an action. Validation failures
// are fatal to profile installation.
type Factory func(p Params, deps Deps) (Action, error)

// ActionRegistry is the closed name→constructor catalog, the dispatch point
// for building rules from authored profile definitions.
type ActionRegistry struct {
	deps      Deps
	factories map[string]Factory
	kinds     map[string][]ProfileKind
}

// NewActionRegistry builds a registry holding the full built-in catalog.
func NewActionRegistry(deps Deps) *ActionRegistry {
	r := &ActionRegistry{
		deps:      deps,
		factories: map[string]Factory{},
		kinds:     map[string][]ProfileKind{},
	}

	formKinds := []ProfileKind{KindRegistration, KindEnquiry}
	inputKinds := []ProfileKind{KindInput}

	r.register(ActionAddAttribute, newAddAttribute, formKinds)
	r.register(ActionFilterAttribute, newFilterAttribute, formKinds)
	r.register(ActionAddToGroup, newAddToGroup, formKinds)
	r.register(ActionFilterGroup, newFilterGroup, formKinds)
	r.register(ActionAddIdentity, newAddIdentity, formKinds)
	r.register(ActionFilterIdentity, newFilterIdentity, formKinds)
	r.register(ActionAddAttributeClass, newAddAttributeClass, formKinds)
	r.register(ActionAutoProcess, newAutoProcess, formKinds)
	r.register(ActionRedirect, newRedirect, formKinds)
	r.register(ActionConfirmationRedirect, newConfirmationRedirect, formKinds)
	r.register(ActionScheduleEntityChange, newScheduleEntityChange, formKinds)
	r.register(ActionSetCredentialRequirement, newSetCredentialRequirement, formKinds)
	r.register(ActionSetEntityState, newSetEntityState, formKinds)

	r.register(ActionMapAttribute, newMapAttribute, inputKinds)
	r.register(ActionMapIdentity, newMapIdentity, inputKinds)
	r.register(ActionMapGroup, newMapGroup, inputKinds)
	r.register(ActionMultiMapAttribute, newMultiMapAttribute, inputKinds)
	r.register(ActionIncludeInputProfile, newIncludeInputProfile, inputKinds)
	r.register(ActionRemoveStaleData, newRemoveStaleData, inputKinds)

	return r
}

func (r *ActionRegistry) register(name string, f Factory, kinds []ProfileKind) {
	r.factories[name] = f
	r.kinds[name] = kinds
}

// New constructs a named action for a profile of the given kind. Unknown
// names, kind mismatches and parameter validation failures are all fatal
// install-time errors.
func (r *ActionRegistry) New(kind ProfileKind, name string, p Params) (Action, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeInvalidProfile, "unknown action %q", name)
	}
	allowed := false
	for _, k := range r.kinds[name] {
		if k == kind {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, dErrors.Newf(dErrors.CodeInvalidProfile, "action %q is not available in %s profiles", name, kind)
	}
	return f(p, r.deps)
}

// Names returns the catalog's action names, sorted.
func (r *ActionRegistry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// compileAnchored compiles a filter pattern anchored at both ends, so
// "a.*" matches "attribute" but not "xa".
func compileAnchored(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidProfile, fmt.Sprintf("invalid filter pattern %q", pattern))
	}
	return re, nil
}

// valueToStrings flattens an expression result into string values. Returns
// nil for a null result, which callers treat as a skip.
func valueToStrings(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return []string{t}
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if e == nil {
				continue
			}
			out = append(out, fmt.Sprint(e))
		}
		return out
	default:
		return []string{fmt.Sprint(t)}
	}
}
