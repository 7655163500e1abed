package accept

import (
	"context"

	"idhub/internal/domain"
	"idhub/internal/registry"
	dErrors "idhub/pkg/domain-errors"
)

// validateAgainstForm checks a request against the current revision of its
// form. Requests are validated at submit time too, but the form may have
// changed while the request sat in the review queue, so acceptance validates
// again and fails rather than apply data the current form no longer asks for.
func validateAgainstForm(ctx context.Context, form *domain.RegistrationForm, req *domain.RegistrationRequest,
	attrTypes registry.AttributeTypes, idTypes registry.IdentityTypes) error {

	if req.FormName != form.Name {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"request %s was submitted for form %q, not %q", req.ID, req.FormName, form.Name)
	}
	if len(req.Attributes) != len(form.Attributes) {
		return dErrors.Newf(dErrors.CodeBadRequest,
			"request carries %d attribute entries, form %q defines %d",
			len(req.Attributes), form.Name, len(form.Attributes))
	}
	if len(req.Identities) != len(form.Identities) {
		return dErrors.Newf(dErrors.CodeBadRequest,
			"request carries %d identity entries, form %q defines %d",
			len(req.Identities), form.Name, len(form.Identities))
	}
	if len(req.GroupSelections) != len(form.Groups) {
		return dErrors.Newf(dErrors.CodeBadRequest,
			"request carries %d group selections, form %q defines %d",
			len(req.GroupSelections), form.Name, len(form.Groups))
	}
	if len(req.Agreements) != len(form.Agreements) {
		return dErrors.Newf(dErrors.CodeBadRequest,
			"request carries %d agreement answers, form %q defines %d",
			len(req.Agreements), form.Name, len(form.Agreements))
	}
	if len(req.CredentialSecrets) != len(form.Credentials) {
		return dErrors.Newf(dErrors.CodeBadRequest,
			"request carries %d credential secrets, form %q defines %d",
			len(req.CredentialSecrets), form.Name, len(form.Credentials))
	}

	if form.RegistrationCode != "" && req.RegistrationCode != form.RegistrationCode {
		return dErrors.New(dErrors.CodeBadRequest, "registration code is missing or invalid")
	}

	for i, param := range form.Attributes {
		attr := req.Attributes[i]
		if attr == nil {
			if !param.Optional {
				return dErrors.Newf(dErrors.CodeBadRequest,
					"attribute %q is required by form %q", param.AttributeName, form.Name)
			}
			continue
		}
		if attr.Name != param.AttributeName || attr.GroupPath != param.Group {
			return dErrors.Newf(dErrors.CodeInvariantViolation,
				"attribute entry %d is %s@%s, form expects %s@%s",
				i, attr.Name, attr.GroupPath, param.AttributeName, param.Group)
		}
		if _, err := attrTypes.GetType(ctx, attr.Name); err != nil {
			return dErrors.Wrap(err, dErrors.CodeBadRequest, "unknown attribute type "+attr.Name)
		}
	}

	for i, param := range form.Identities {
		id := req.Identities[i]
		if id == nil {
			if !param.Optional {
				return dErrors.Newf(dErrors.CodeBadRequest,
					"identity of type %q is required by form %q", param.IdentityType, form.Name)
			}
			continue
		}
		if id.TypeID != param.IdentityType {
			return dErrors.Newf(dErrors.CodeInvariantViolation,
				"identity entry %d has type %q, form expects %q", i, id.TypeID, param.IdentityType)
		}
		if err := idTypes.Validate(ctx, id.TypeID, id.Value); err != nil {
			return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid identity value")
		}
	}

	for i, param := range form.Agreements {
		if param.Mandatory && !req.Agreements[i].Selected {
			return dErrors.Newf(dErrors.CodeBadRequest,
				"mandatory agreement %d of form %q was not accepted", i, form.Name)
		}
	}

	if !form.IsEnquiry && req.FirstIdentity() == nil {
		return dErrors.Newf(dErrors.CodeBadRequest,
			"form %q creates an entity but the request carries no identity", form.Name)
	}
	return nil
}
