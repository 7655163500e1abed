// Package accept drives the registration request pipeline: submission,
// review, and the transactional finalization that turns an accepted request
// into an entity with identities, group memberships, attributes and
// credentials.
package accept

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"idhub/internal/accept/metrics"
	"idhub/internal/domain"
	"idhub/internal/forms"
	"idhub/internal/notify"
	"idhub/internal/registry"
	"idhub/internal/store"
	"idhub/internal/tokens"
	"idhub/internal/translate"
	dErrors "idhub/pkg/domain-errors"
	"idhub/pkg/platform/sentinel"
	"idhub/pkg/platform/tx"
	"idhub/pkg/requestcontext"
)

// Service is the request pipeline. One instance serves all forms.
type Service struct {
	forms     forms.Source
	profiles  translate.ProfileSource
	executor  *translate.Executor
	entities  store.EntityStore
	requests  store.RequestStore
	runner    tx.Runner
	rewriter  *tokens.Rewriter
	notifier  notify.Dispatcher
	attrTypes registry.AttributeTypes
	idTypes   registry.IdentityTypes
	log       *slog.Logger
	tracer    trace.Tracer
}

// Config carries the service's collaborators.
type Config struct {
	Forms      forms.Source
	Profiles   translate.ProfileSource
	Executor   *translate.Executor
	Entities   store.EntityStore
	Requests   store.RequestStore
	Runner     tx.Runner
	Rewriter   *tokens.Rewriter
	Dispatcher notify.Dispatcher
	AttrTypes  registry.AttributeTypes
	IDTypes    registry.IdentityTypes
	Logger     *slog.Logger
}

func NewService(cfg Config) *Service {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	dispatcher := cfg.Dispatcher
	if dispatcher == nil {
		dispatcher = notify.NopDispatcher{}
	}
	return &Service{
		forms:     cfg.Forms,
		profiles:  cfg.Profiles,
		executor:  cfg.Executor,
		entities:  cfg.Entities,
		requests:  cfg.Requests,
		runner:    cfg.Runner,
		rewriter:  cfg.Rewriter,
		notifier:  dispatcher,
		attrTypes: cfg.AttrTypes,
		idTypes:   cfg.IDTypes,
		log:       log,
		tracer:    otel.Tracer("idhub/accept"),
	}
}

// SubmitOutcome is what the submitter learns right away.
type SubmitOutcome struct {
	RequestID   domain.RequestID
	Decision    translate.AutoDecision
	EntityID    domain.EntityID
	RedirectURL string
}

// SubmitRequest validates and stores a new request, runs the form's
// translation profile, and applies any automatic disposition the profile
// produced. A drop decision leaves no trace of the request.
func (s *Service) SubmitRequest(ctx context.Context, formName string, req *domain.RegistrationRequest) (*SubmitOutcome, error) {
	ctx, span := s.tracer.Start(ctx, "accept.SubmitRequest")
	defer span.End()

	form, err := s.form(formName)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	if req.ID.IsNil() {
		req.ID = domain.NewRequestID()
	}
	req.FormName = form.Name
	req.Status = domain.RequestPending
	req.CreatedAt = now
	req.UpdatedAt = now
	if ua := requestcontext.UserAgent(ctx); ua != "" {
		req.UserAgent = ua
	}

	if err := validateAgainstForm(ctx, form, req, s.attrTypes, s.idTypes); err != nil {
		return nil, err
	}

	translated, decision, redirect, err := s.translate(ctx, form, req)
	if err != nil {
		return nil, err
	}

	metrics.IncSubmitted(form.Name, string(decision))
	outcome := &SubmitOutcome{RequestID: req.ID, Decision: decision, RedirectURL: redirect}

	if decision == translate.AutoDrop {
		s.log.Info("request dropped by profile", "form", form.Name)
		return outcome, nil
	}

	if err := s.requests.Create(ctx, req); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "store request")
	}

	switch decision {
	case translate.AutoAccept:
		entityID, err := s.finalizeAccept(ctx, form, req, translated, nil)
		if err != nil {
			return nil, err
		}
		outcome.EntityID = entityID
	case translate.AutoReject:
		if err := s.finalizeReject(ctx, form, req.ID, nil); err != nil {
			return nil, err
		}
	default:
		s.notifyAdmins(ctx, form, req, notify.TemplateNewRequestAdmin)
	}
	return outcome, nil
}

// GetRequest returns a stored request.
func (s *Service) GetRequest(ctx context.Context, id domain.RequestID) (*domain.RegistrationRequest, error) {
	req, err := s.requests.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load request")
	}
	return req, nil
}

// AcceptRequest finalizes a pending request: the status flip, entity
// creation and every dependent write happen in one transaction.
func (s *Service) AcceptRequest(ctx context.Context, id domain.RequestID, comments []domain.Comment) (domain.EntityID, error) {
	ctx, span := s.tracer.Start(ctx, "accept.AcceptRequest")
	defer span.End()

	req, err := s.GetRequest(ctx, id)
	if err != nil {
		return domain.EntityID{}, err
	}
	form, err := s.form(req.FormName)
	if err != nil {
		return domain.EntityID{}, err
	}
	if err := validateAgainstForm(ctx, form, req, s.attrTypes, s.idTypes); err != nil {
		return domain.EntityID{}, err
	}
	translated, _, _, err := s.translate(ctx, form, req)
	if err != nil {
		return domain.EntityID{}, err
	}
	return s.finalizeAccept(ctx, form, req, translated, comments)
}

// RejectRequest finalizes a pending request negatively.
func (s *Service) RejectRequest(ctx context.Context, id domain.RequestID, comments []domain.Comment) error {
	ctx, span := s.tracer.Start(ctx, "accept.RejectRequest")
	defer span.End()

	req, err := s.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	form, err := s.form(req.FormName)
	if err != nil {
		return err
	}
	return s.finalizeReject(ctx, form, req.ID, comments)
}

func (s *Service) form(name string) (*domain.RegistrationForm, error) {
	form, err := s.forms.Form(name)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "form not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load form")
	}
	return form, nil
}

// translate runs the form's profile over the request. Forms without a
// profile translate to an empty result and no automatic decision.
func (s *Service) translate(ctx context.Context, form *domain.RegistrationForm, req *domain.RegistrationRequest) (
	translate.TranslatedRequest, translate.AutoDecision, string, error) {

	kind := translate.KindRegistration
	if form.IsEnquiry {
		kind = translate.KindEnquiry
	}
	acc := translate.NewAccumulator(kind)
	if form.TranslationProfile == "" {
		return acc.Translated(), translate.AutoNothing, "", nil
	}

	profile, err := s.profiles.Profile(form.TranslationProfile)
	if err != nil {
		return translate.TranslatedRequest{}, translate.AutoNothing, "",
			dErrors.Wrap(err, dErrors.CodeInvalidProfile, "form translation profile not installed")
	}
	if profile.Kind != kind {
		return translate.TranslatedRequest{}, translate.AutoNothing, "",
			dErrors.Newf(dErrors.CodeInvalidProfile,
				"profile %q has kind %s, form %q needs %s", profile.Name, profile.Kind, form.Name, kind)
	}

	ec := translate.BuildFormContext(form, req, translate.FormContextOptions{Triggered: true})
	if _, err := s.executor.Execute(ctx, profile, ec, acc); err != nil {
		return translate.TranslatedRequest{}, translate.AutoNothing, "",
			dErrors.Wrap(err, dErrors.CodeInvalidProfile, "translation profile failed")
	}

	translated := acc.Translated()
	decision := translated.AutoDecision
	if decision == translate.AutoNothing && s.executor.EvaluateAutoAccept(profile, ec) {
		decision = translate.AutoAccept
	}
	return translated, decision, translated.RedirectURL, nil
}

// finalizeAccept applies an accepted request. All writes share one
// transaction; the check-and-set status flip makes concurrent acceptances of
// the same request lose cleanly.
func (s *Service) finalizeAccept(ctx context.Context, form *domain.RegistrationForm, req *domain.RegistrationRequest,
	translated translate.TranslatedRequest, comments []domain.Comment) (domain.EntityID, error) {

	start := time.Now()
	var entityID domain.EntityID

	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.requests.UpdateStatus(txCtx, req.ID, domain.RequestPending, domain.RequestAccepted); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.Wrap(err, dErrors.CodeConflict, "request already finalized")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "flip request status")
		}
		req.Status = domain.RequestAccepted
		if len(comments) > 0 {
			if err := s.requests.AppendComments(txCtx, req.ID, comments); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "save review comments")
			}
		}

		if form.IsEnquiry {
			return nil
		}

		attrsByGroup := collectAttributes(form, req, translated)
		groups := targetGroups(form, req, translated)

		for g := range attrsByGroup {
			if g != domain.RootGroup && !containsString(groups, g) {
				return dErrors.Newf(dErrors.CodeInvariantViolation,
					"attributes target group %s but the entity is not joining it", g)
			}
		}

		first := req.FirstIdentity()
		id, err := s.entities.CreateEntity(txCtx, *first, translated.CredentialRequirement,
			translated.EntityState, attrsByGroup[domain.RootGroup])
		if err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.Wrap(err, dErrors.CodeConflict, "identity already registered")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "create entity")
		}
		entityID = id

		for _, extra := range remainingIdentities(req, translated, first) {
			if err := s.entities.InsertIdentity(txCtx, extra, entityID); err != nil {
				if errors.Is(err, sentinel.ErrConflict) {
					return dErrors.Wrap(err, dErrors.CodeConflict, "identity already registered")
				}
				return dErrors.Wrap(err, dErrors.CodeInternal, "insert identity")
			}
		}

		// lexicographic order adds parents before children
		for _, g := range groups {
			if err := s.entities.CheckAttributeClassConsistency(txCtx, attrsByGroup[g], g, translated.AttributeClasses[g]); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "attribute class check failed for "+g)
			}
			if err := s.entities.AddGroupMember(txCtx, g, entityID); err != nil {
				if errors.Is(err, sentinel.ErrNotFound) {
					return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "group does not exist: "+g)
				}
				return dErrors.Wrap(err, dErrors.CodeInternal, "add group member")
			}
			if attrs := attrsByGroup[g]; len(attrs) > 0 {
				if err := s.entities.SetAttributes(txCtx, entityID, attrs); err != nil {
					return dErrors.Wrap(err, dErrors.CodeInternal, "set group attributes")
				}
			}
		}

		for g, classes := range translated.AttributeClasses {
			if len(classes) == 0 {
				continue
			}
			if err := s.entities.SetAttributeClasses(txCtx, entityID, g, classes); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "set attribute classes")
			}
		}

		for i, param := range form.Credentials {
			if err := s.entities.SetCredential(txCtx, entityID, param.CredentialName, req.CredentialSecrets[i]); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "set credential")
			}
		}

		if translated.ScheduledChange != nil {
			if err := s.entities.ScheduleEntityChange(txCtx, entityID, *translated.ScheduledChange); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "schedule entity change")
			}
		}

		if s.rewriter != nil {
			if err := s.rewriter.RewriteRequestTokens(txCtx, req, entityID); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "rewrite confirmation tokens")
			}
		}
		return nil
	})
	if err != nil {
		metrics.IncFinalized(form.Name, "error")
		return domain.EntityID{}, err
	}

	metrics.IncFinalized(form.Name, "accepted")
	metrics.ObserveAcceptance(time.Since(start).Seconds())
	s.notifyRequester(ctx, req, notify.TemplateRequestAccepted)
	s.notifyAdmins(ctx, form, req, notify.TemplateRequestAccepted)
	s.log.Info("request accepted", "form", form.Name, "entity", entityID)
	return entityID, nil
}

func (s *Service) finalizeReject(ctx context.Context, form *domain.RegistrationForm, id domain.RequestID, comments []domain.Comment) error {
	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.requests.UpdateStatus(txCtx, id, domain.RequestPending, domain.RequestRejected); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.Wrap(err, dErrors.CodeConflict, "request already finalized")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "flip request status")
		}
		if len(comments) > 0 {
			if err := s.requests.AppendComments(txCtx, id, comments); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "save review comments")
			}
		}
		return nil
	})
	if err != nil {
		metrics.IncFinalized(form.Name, "error")
		return err
	}
	metrics.IncFinalized(form.Name, "rejected")
	if req, reqErr := s.requests.Get(ctx, id); reqErr == nil {
		s.notifyRequester(ctx, req, notify.TemplateRequestRejected)
	}
	s.log.Info("request rejected", "form", form.Name)
	return nil
}

// notifyRequester mails the submitter at the first email attribute found in
// the request. Delivery failures are logged, never propagated.
func (s *Service) notifyRequester(ctx context.Context, req *domain.RegistrationRequest, template string) {
	address := requesterAddress(req)
	if address == "" {
		return
	}
	if err := s.notifier.SendNotification(ctx, address, template, map[string]string{
		"requestId": req.ID.String(),
		"formName":  req.FormName,
	}); err != nil {
		s.log.Warn("requester notification failed", "template", template, "error", err)
	}
}

func (s *Service) notifyAdmins(ctx context.Context, form *domain.RegistrationForm, req *domain.RegistrationRequest, template string) {
	if form.AdminsNotificationGroup == "" {
		return
	}
	if err := s.notifier.SendNotificationToGroup(ctx, form.AdminsNotificationGroup, template, map[string]string{
		"requestId": req.ID.String(),
		"formName":  form.Name,
	}); err != nil {
		s.log.Warn("admin notification failed", "template", template, "error", err)
	}
}

func requesterAddress(req *domain.RegistrationRequest) string {
	for _, attr := range req.Attributes {
		if attr != nil && attr.Name == "email" && len(attr.Values) > 0 {
			return attr.Values[0]
		}
	}
	return ""
}

// collectAttributes builds the per-group attribute sets to apply: the form's
// fixed attributes first, then the submitted values, then profile-added
// ones. Later entries replace earlier ones with the same (name, group).
func collectAttributes(form *domain.RegistrationForm, req *domain.RegistrationRequest,
	translated translate.TranslatedRequest) map[string][]domain.Attribute {

	var ordered []domain.Attribute
	add := func(attr domain.Attribute) {
		for i, existing := range ordered {
			if existing.Name == attr.Name && existing.GroupPath == attr.GroupPath {
				ordered[i] = attr
				return
			}
		}
		ordered = append(ordered, attr)
	}

	for _, attr := range form.FixedAttributes {
		add(attr)
	}
	for _, attr := range req.Attributes {
		if attr != nil {
			add(*attr)
		}
	}
	for _, attr := range translated.Attributes {
		add(attr)
	}

	byGroup := map[string][]domain.Attribute{}
	for _, attr := range ordered {
		byGroup[attr.GroupPath] = append(byGroup[attr.GroupPath], attr)
	}
	return byGroup
}

// targetGroups is the deduplicated union of the form's fixed groups, the
// submitter's selections and profile-added memberships, sorted so parents
// precede children.
func targetGroups(form *domain.RegistrationForm, req *domain.RegistrationRequest,
	translated translate.TranslatedRequest) []string {

	seen := map[string]struct{}{}
	var out []string
	add := func(path string) {
		if path == "" || path == domain.RootGroup {
			return
		}
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		out = append(out, path)
	}

	for _, g := range form.FixedGroups {
		add(g)
	}
	for i, param := range form.Groups {
		if i < len(req.GroupSelections) && req.GroupSelections[i].Selected {
			add(param.GroupPath)
		}
	}
	for _, g := range translated.Groups {
		add(g)
	}
	sort.Strings(out)
	return out
}

func remainingIdentities(req *domain.RegistrationRequest, translated translate.TranslatedRequest,
	first *domain.IdentityParam) []domain.IdentityParam {

	var out []domain.IdentityParam
	add := func(id domain.IdentityParam) {
		if id.TypeID == first.TypeID && id.Value == first.Value {
			return
		}
		for _, existing := range out {
			if existing.TypeID == id.TypeID && existing.Value == id.Value {
				return
			}
		}
		out = append(out, id)
	}
	for _, id := range req.Identities {
		if id != nil {
			add(*id)
		}
	}
	for _, id := range translated.Identities {
		add(id)
	}
	return out
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
