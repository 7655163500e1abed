package translate

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"idhub/internal/domain"
	"idhub/internal/translate/expression"
	dErrors "idhub/pkg/domain-errors"
	"idhub/pkg/requestcontext"
)

type addAttributeAction struct {
	attrName   string
	group      string
	valueExpr  *expression.Program
	visibility domain.AttributeVisibility
	log        *slog.Logger
}

func newAddAttribute(p Params, deps Deps) (Action, error) {
	name, err := p.require("attribute")
	if err != nil {
		return nil, err
	}
	group, err := p.require("group")
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
	if _, err := deps.AttrTypes.GetType(context.Background(), name); err != nil {
		return nil, dErrors.Newf(dErrors.CodeInvalidProfile, "addAttribute references unknown attribute type %q", name)
	}
	visibility := domain.AttributeVisibility(p.optional("visibility", string(domain.VisibilityFull)))
	if visibility != domain.VisibilityFull && visibility != domain.VisibilityLocal {
		return nil, dErrors.Newf(dErrors.CodeInvalidProfile, "unknown attribute visibility %q", visibility)
	}
	return &addAttributeAction{
		attrName:   name,
		group:      group,
		valueExpr:  prog,
		visibility: visibility,
		log:        deps.logger(),
	}, nil
}

func (a *addAttributeAction) Name() string { return ActionAddAttribute }

func (a *addAttributeAction) Invoke(_ context.Context, acc *Accumulator, ec Context, _ string) error {
	v, err := a.valueExpr.Evaluate(ec)
	if err != nil {
		a.log.Warn("addAttribute expression failed, skipping", "attribute", a.attrName, "error", err)
		return nil
	}
	values := valueToStrings(v)
	if values == nil {
		return nil
	}
	acc.AddAttribute(domain.Attribute{
		Name:       a.attrName,
		GroupPath:  a.group,
		Values:     values,
		Visibility: a.visibility,
	})
	return nil
}

type filterAttributeAction struct {
	nameRe  *regexp.Regexp
	groupRe *regexp.Regexp
}

func newFilterAttribute(p Params, _ Deps) (Action, error) {
	namePattern, err := p.require("attribute")
	if err != nil {
		return nil, err
	}
	groupPattern, err := p.require("group")
	if err != nil {
		return nil, err
	}
	nameRe, err := compileAnchored(namePattern)
	if err != nil {
		return nil, err
	}
	groupRe, err := compileAnchored(groupPattern)
	if err != nil {
		return nil, err
	}
	return &filterAttributeAction{nameRe: nameRe, groupRe: groupRe}, nil
}

func (a *filterAttributeAction) Name() string { return ActionFilterAttribute }

func (a *filterAttributeAction) Invoke(_ context.Context, acc *Accumulator, _ Context, _ string) error {
	acc.FilterAttributes(func(attr domain.Attribute) bool {
		return a.nameRe.MatchString(attr.Name) && a.groupRe.MatchString(attr.GroupPath)
	})
	return nil
}

type addToGroupAction struct {
	groupExpr *expression.Program
	log       *slog.Logger
}

func newAddToGroup(p Params, deps Deps) (Action, error) {
	src, err := p.require("group")
	if err != nil {
		return nil, err
	}
	prog, err := expression.Compile(src)
	if err != nil {
		return nil, err
	}
	return &addToGroupAction{groupExpr: prog, log: deps.logger()}, nil
}

func (a *addToGroupAction) Name() string { return ActionAddToGroup }

func (a *addToGroupAction) Invoke(_ context.Context, acc *Accumulator, ec Context, _ string) error {
	v, err := a.groupExpr.Evaluate(ec)
	if err != nil {
		a.log.Warn("addToGroup expression failed, skipping", "error", err)
		return nil
	}
	path, ok := v.(string)
	if !ok || path == "" {
		a.log.Warn("addToGroup expression did not yield a group path, skipping", "value", v)
		return nil
	}
	acc.AddGroup(path)
	return nil
}

type filterGroupAction struct {
	pathRe *regexp.Regexp
}

func newFilterGroup(p Params, _ Deps) (Action, error) {
	pattern, err := p.require("group")
	if err != nil {
		return nil, err
	}
	re, err := compileAnchored(pattern)
	if err != nil {
		return nil, err
	}
	return &filterGroupAction{pathRe: re}, nil
}

func (a *filterGroupAction) Name() string { return ActionFilterGroup }

func (a *filterGroupAction) Invoke(_ context.Context, acc *Accumulator, _ Context, _ string) error {
	acc.FilterGroups(a.pathRe.MatchString)
	return nil
}

type addIdentityAction struct {
	typeName  string
	valueExpr *expression.Program
	log       *slog.Logger
}

func newAddIdentity(p Params, deps Deps) (Action, error) {
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
	if _, err := deps.IDTypes.GetByName(context.Background(), typeName); err != nil {
		return nil, dErrors.Newf(dErrors.CodeInvalidProfile, "addIdentity references unknown identity type %q", typeName)
	}
	return &addIdentityAction{typeName: typeName, valueExpr: prog, log: deps.logger()}, nil
}

func (a *addIdentityAction) Name() string { return ActionAddIdentity }

func (a *addIdentityAction) Invoke(_ context.Context, acc *Accumulator, ec Context, _ string) error {
	v, err := a.valueExpr.Evaluate(ec)
	if err != nil {
		a.log.Warn("addIdentity expression failed, skipping", "type", a.typeName, "error", err)
		return nil
	}
	values := valueToStrings(v)
	if values == nil {
		return nil
	}
	for _, value := range values {
		acc.AddIdentity(domain.IdentityParam{TypeID: a.typeName, Value: value})
	}
	return nil
}

type filterIdentityAction struct {
	valueRe  *regexp.Regexp
	typeName string
}

func newFilterIdentity(p Params, _ Deps) (Action, error) {
	pattern, err := p.require("identity")
	if err != nil {
		return nil, err
	}
	typeName, err := p.require("type")
	if err != nil {
		return nil, err
	}
	re, err := compileAnchored(pattern)
	if err != nil {
		return nil, err
	}
	return &filterIdentityAction{valueRe: re, typeName: typeName}, nil
}

func (a *filterIdentityAction) Name() string { return ActionFilterIdentity }

func (a *filterIdentityAction) Invoke(_ context.Context, acc *Accumulator, _ Context, _ string) error {
	acc.FilterIdentities(func(id domain.IdentityParam) bool {
		return id.TypeID == a.typeName && a.valueRe.MatchString(id.Value)
	})
	return nil
}

type addAttributeClassAction struct {
	group    string
	nameExpr *expression.Program
	log      *slog.Logger
}

func newAddAttributeClass(p Params, deps Deps) (Action, error) {
	group, err := p.require("group")
	if err != nil {
		return nil, err
	}
	src, err := p.require("class")
	if err != nil {
		return nil, err
	}
	prog, err := expression.Compile(src)
	if err != nil {
		return nil, err
	}
	return &addAttributeClassAction{group: group, nameExpr: prog, log: deps.logger()}, nil
}

func (a *addAttributeClassAction) Name() string { return ActionAddAttributeClass }

func (a *addAttributeClassAction) Invoke(_ context.Context, acc *Accumulator, ec Context, _ string) error {
	v, err := a.nameExpr.Evaluate(ec)
	if err != nil {
		a.log.Warn("addAttributeClass expression failed, skipping", "group", a.group, "error", err)
		return nil
	}
	classes := valueToStrings(v)
	if classes == nil {
		return nil
	}
	acc.AddAttributeClasses(a.group, classes...)
	return nil
}

type autoProcessAction struct {
	decision AutoDecision
}

func newAutoProcess(p Params, _ Deps) (Action, error) {
	raw, err := p.require("action")
	if err != nil {
		return nil, err
	}
	decision := AutoDecision(raw)
	switch decision {
	case AutoAccept, AutoReject, AutoDrop:
	default:
		return nil, dErrors.Newf(dErrors.CodeInvalidProfile, "unknown autoProcess action %q", raw)
	}
	return &autoProcessAction{decision: decision}, nil
}

func (a *autoProcessAction) Name() string { return ActionAutoProcess }

func (a *autoProcessAction) Invoke(_ context.Context, acc *Accumulator, _ Context, _ string) error {
	acc.AutoDecision = a.decision
	return nil
}

type redirectAction struct {
	name    string
	urlExpr *expression.Program
	log     *slog.Logger
}

func newRedirect(p Params, deps Deps) (Action, error) {
	return newRedirectNamed(ActionRedirect, p, deps)
}

func newConfirmationRedirect(p Params, deps Deps) (Action, error) {
	return newRedirectNamed(ActionConfirmationRedirect, p, deps)
}

func newRedirectNamed(name string, p Params, deps Deps) (Action, error) {
	src, err := p.require("url")
	if err != nil {
		return nil, err
	}
	prog, err := expression.Compile(src)
	if err != nil {
		return nil, err
	}
	return &redirectAction{name: name, urlExpr: prog, log: deps.logger()}, nil
}

func (a *redirectAction) Name() string { return a.name }

func (a *redirectAction) Invoke(_ context.Context, acc *Accumulator, ec Context, _ string) error {
	v, err := a.urlExpr.Evaluate(ec)
	if err != nil {
		a.log.Warn("redirect expression failed, skipping", "error", err)
		return nil
	}
	url, ok := v.(string)
	if !ok || url == "" {
		return nil
	}
	acc.RedirectURL = url
	return nil
}

type scheduleEntityChangeAction struct {
	op       domain.ScheduledOperation
	daysExpr *expression.Program
	log      *slog.Logger
}

func newScheduleEntityChange(p Params, deps Deps) (Action, error) {
	rawOp, err := p.require("operation")
	if err != nil {
		return nil, err
	}
	op := domain.ScheduledOperation(rawOp)
	if op != domain.ScheduledOpRemove && op != domain.ScheduledOpDisable {
		return nil, dErrors.Newf(dErrors.CodeInvalidProfile, "unknown scheduled operation %q", rawOp)
	}
	src, err := p.require("days")
	if err != nil {
		return nil, err
	}
	prog, err := expression.Compile(src)
	if err != nil {
		return nil, err
	}
	return &scheduleEntityChangeAction{op: op, daysExpr: prog, log: deps.logger()}, nil
}

func (a *scheduleEntityChangeAction) Name() string { return ActionScheduleEntityChange }

func (a *scheduleEntityChangeAction) Invoke(ctx context.Context, acc *Accumulator, ec Context, _ string) error {
	v, err := a.daysExpr.Evaluate(ec)
	if err != nil {
		a.log.Warn("scheduleEntityChange expression failed, skipping", "error", err)
		return nil
	}
	days, ok := toInt(v)
	if !ok {
		a.log.Warn("scheduleEntityChange expression did not yield a day count, skipping", "value", v)
		return nil
	}
	acc.ScheduledChange = &domain.ScheduledChange{
		Operation:     a.op,
		ScheduledTime: requestcontext.Now(ctx).Add(time.Duration(days) * 24 * time.Hour),
	}
	return nil
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

type setCredentialRequirementAction struct {
	name string
}

func newSetCredentialRequirement(p Params, _ Deps) (Action, error) {
	name, err := p.require("requirement")
	if err != nil {
		return nil, err
	}
	return &setCredentialRequirementAction{name: name}, nil
}

func (a *setCredentialRequirementAction) Name() string { return ActionSetCredentialRequirement }

func (a *setCredentialRequirementAction) Invoke(_ context.Context, acc *Accumulator, _ Context, _ string) error {
	acc.CredentialRequirement = a.name
	return nil
}

type setEntityStateAction struct {
	state domain.EntityState
}

func newSetEntityState(p Params, _ Deps) (Action, error) {
	raw, err := p.require("state")
	if err != nil {
		return nil, err
	}
	state := domain.EntityState(raw)
	if !domain.ValidSetEntityState(state) {
		return nil, dErrors.Newf(dErrors.CodeInvalidProfile, "entity state %q may not be set by a profile", raw)
	}
	return &setEntityStateAction{state: state}, nil
}

func (a *setEntityStateAction) Name() string { return ActionSetEntityState }

func (a *setEntityStateAction) Invoke(_ context.Context, acc *Accumulator, _ Context, _ string) error {
	acc.EntityState = a.state
	return nil
}
