package translate

import (
	"strconv"

	"idhub/internal/domain"
)

// Context variable names available to profile expressions.
const (
	CtxAttr         = "attr"
	CtxAttrs        = "attrs"
	CtxIDsByType    = "idsByType"
	CtxIDsByTypeObj = "idsByTypeObj"
	CtxGroups       = "groups"
	CtxAgreements   = "agrs"

	// Restricted mirrors: populated only from parameters whose retrieval
	// setting is strictly automatic. Automated decisions (auto-accept) see
	// these instead of the unrestricted sections.
	CtxRAttr         = "rattr"
	CtxRAttrs        = "rattrs"
	CtxRIDsByType    = "ridsByType"
	CtxRIDsByTypeObj = "ridsByTypeObj"
	CtxRGroups       = "rgroups"

	CtxUserLocale       = "userLocale"
	CtxRequestID        = "requestId"
	CtxOnIdPEndpoint    = "onIdpEndpoint"
	CtxTriggered        = "triggered"
	CtxStatus           = "status"
	CtxRegistrationForm = "registrationForm"
	CtxIdP              = "idp"
)

// Context is the evaluation environment for one profile execution. Values are
// always data, never code: nothing in a Context is ever compiled.
type Context map[string]any

// FormContextOptions carries submission metadata that is not part of the
// request payload itself.
type FormContextOptions struct {
	Triggered     bool
	OnIdPEndpoint bool
}

// BuildFormContext builds the evaluation context for a registration or
// enquiry submission.
//
// The restricted mirrors are derived by re-walking the submission against the
// automatic-only subset of the form's parameters (not by filtering the
// already-built maps), so per-value correctness follows the original
// positional parameter alignment.
func BuildFormContext(form *domain.RegistrationForm, req *domain.RegistrationRequest, opts FormContextOptions) Context {
	ec := Context{}

	attr, attrs := attributeSections(form, req, false)
	rattr, rattrs := attributeSections(form, req, true)
	ec[CtxAttr] = attr
	ec[CtxAttrs] = attrs
	ec[CtxRAttr] = rattr
	ec[CtxRAttrs] = rattrs

	ids, idObjs := identitySections(form, req, false)
	rids, ridObjs := identitySections(form, req, true)
	ec[CtxIDsByType] = ids
	ec[CtxIDsByTypeObj] = idObjs
	ec[CtxRIDsByType] = rids
	ec[CtxRIDsByTypeObj] = ridObjs

	ec[CtxGroups] = groupSection(form, req, false)
	ec[CtxRGroups] = groupSection(form, req, true)

	agrs := make([]string, 0, len(req.Agreements))
	for _, a := range req.Agreements {
		agrs = append(agrs, strconv.FormatBool(a.Selected))
	}
	ec[CtxAgreements] = agrs

	ec[CtxUserLocale] = req.UserLocale
	ec[CtxRequestID] = req.ID.String()
	ec[CtxOnIdPEndpoint] = opts.OnIdPEndpoint
	ec[CtxTriggered] = opts.Triggered
	ec[CtxStatus] = string(req.Status)
	ec[CtxRegistrationForm] = form.Name
	return ec
}

func attributeSections(form *domain.RegistrationForm, req *domain.RegistrationRequest, automaticOnly bool) (map[string]any, map[string][]string) {
	attr := map[string]any{}
	attrs := map[string][]string{}
	for i, param := range form.Attributes {
		if automaticOnly && !param.Retrieval.IsAutomaticOnly() {
			continue
		}
		if i >= len(req.Attributes) || req.Attributes[i] == nil {
			continue
		}
		a := req.Attributes[i]
		if len(a.Values) > 0 {
			attr[a.Name] = a.Values[0]
		}
		attrs[a.Name] = append([]string(nil), a.Values...)
	}
	return attr, attrs
}

func identitySections(form *domain.RegistrationForm, req *domain.RegistrationRequest, automaticOnly bool) (map[string][]string, map[string][]domain.VerifiableValue) {
	byType := map[string][]string{}
	byTypeObj := map[string][]domain.VerifiableValue{}
	for i, param := range form.Identities {
		if automaticOnly && !param.Retrieval.IsAutomaticOnly() {
			continue
		}
		if i >= len(req.Identities) || req.Identities[i] == nil {
			continue
		}
		id := req.Identities[i]
		byType[id.TypeID] = append(byType[id.TypeID], id.Value)
		byTypeObj[id.TypeID] = append(byTypeObj[id.TypeID], domain.VerifiableValue{
			Value:     id.Value,
			Confirmed: id.Confirmed,
		})
	}
	return byType, byTypeObj
}

func groupSection(form *domain.RegistrationForm, req *domain.RegistrationRequest, automaticOnly bool) []string {
	groups := []string{}
	for i, param := range form.Groups {
		if automaticOnly && !param.Retrieval.IsAutomaticOnly() {
			continue
		}
		if i >= len(req.GroupSelections) || !req.GroupSelections[i].Selected {
			continue
		}
		groups = append(groups, param.GroupPath)
	}
	return groups
}

// BuildRemoteContext builds the evaluation context for a federated login
// response handed to an input translation profile.
func BuildRemoteContext(input *domain.RemotelyAuthenticatedInput) Context {
	attr := map[string]any{}
	attrs := map[string][]string{}
	for name, values := range input.Attributes {
		if len(values) > 0 {
			attr[name] = values[0]
		}
		attrs[name] = append([]string(nil), values...)
	}

	byType := map[string][]string{}
	for _, id := range input.Identities {
		byType[id.Type] = append(byType[id.Type], id.Value)
	}

	return Context{
		CtxAttr:          attr,
		CtxAttrs:         attrs,
		CtxIDsByType:     byType,
		CtxGroups:        append([]string(nil), input.Groups...),
		CtxIdP:           input.IdPName,
		CtxOnIdPEndpoint: input.OnIdPEndpoint,
	}
}

// RestrictedView returns the context an automated decision is allowed to see:
// restricted sections, agreement answers and scalars. The unrestricted
// sections are absent entirely, so an expression referencing them evaluates
// to nothing rather than to interactively supplied data.
func (c Context) RestrictedView() Context {
	keep := []string{
		CtxRAttr, CtxRAttrs, CtxRIDsByType, CtxRIDsByTypeObj, CtxRGroups,
		CtxAgreements,
		CtxUserLocale, CtxRequestID, CtxOnIdPEndpoint, CtxTriggered,
		CtxStatus, CtxRegistrationForm, CtxIdP,
	}
	out := Context{}
	for _, k := range keep {
		if v, ok := c[k]; ok {
			out[k] = v
		}
	}
	return out
}
