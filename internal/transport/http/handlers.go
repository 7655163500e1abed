// Package httptransport is the thin HTTP layer over the request pipeline. It
// decodes payloads, delegates to the accept service and translates domain
// errors to status codes; no business logic lives here.
package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"idhub/internal/accept"
	"idhub/internal/domain"
	"idhub/internal/translate"
	dErrors "idhub/pkg/domain-errors"
	"idhub/pkg/requestcontext"
)

// Handler serves the registration request endpoints.
type Handler struct {
	service *accept.Service
	logger  *slog.Logger
}

func NewHandler(service *accept.Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type attributeDTO struct {
	Name   string   `json:"name"`
	Group  string   `json:"group"`
	Values []string `json:"values"`
}

type identityDTO struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type submitRequestDTO struct {
	Attributes        []*attributeDTO `json:"attributes"`
	Identities        []*identityDTO  `json:"identities"`
	GroupSelections   []bool          `json:"groupSelections"`
	Agreements        []bool          `json:"agreements"`
	CredentialSecrets []string        `json:"credentialSecrets"`
	RegistrationCode  string          `json:"registrationCode,omitempty"`
	UserLocale        string          `json:"userLocale,omitempty"`
}

type submitResponseDTO struct {
	RequestID   string `json:"requestId,omitempty"`
	Decision    string `json:"decision,omitempty"`
	EntityID    string `json:"entityId,omitempty"`
	RedirectURL string `json:"redirectUrl,omitempty"`
}

type commentDTO struct {
	Text   string `json:"text"`
	Public bool   `json:"public"`
}

type finalizeRequestDTO struct {
	Comments []commentDTO `json:"comments,omitempty"`
}

type requestViewDTO struct {
	ID        string   `json:"id"`
	FormName  string   `json:"formName"`
	Status    string   `json:"status"`
	CreatedAt string   `json:"createdAt"`
	UpdatedAt string   `json:"updatedAt"`
	Comments  []string `json:"comments,omitempty"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	formName := chi.URLParam(r, "formName")

	var dto submitRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	req := dto.toDomain()
	outcome, err := h.service.SubmitRequest(ctx, formName, req)
	if err != nil {
		h.logger.WarnContext(ctx, "request submission failed", "form", formName, "error", err)
		writeError(w, err)
		return
	}

	resp := submitResponseDTO{
		Decision:    string(outcome.Decision),
		RedirectURL: outcome.RedirectURL,
	}
	if outcome.Decision != translate.AutoDrop {
		resp.RequestID = outcome.RequestID.String()
	}
	if !outcome.EntityID.IsNil() {
		resp.EntityID = outcome.EntityID.String()
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request id"))
		return
	}
	req, err := h.service.GetRequest(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	view := requestViewDTO{
		ID:        req.ID.String(),
		FormName:  req.FormName,
		Status:    string(req.Status),
		CreatedAt: req.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt: req.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	for _, c := range req.Comments {
		if c.Public {
			view.Comments = append(view.Comments, c.Text)
		}
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request id"))
		return
	}
	comments, err := decodeComments(r)
	if err != nil {
		writeError(w, err)
		return
	}

	entityID, err := h.service.AcceptRequest(ctx, id, comments)
	if err != nil {
		h.logger.WarnContext(ctx, "request acceptance failed", "request", id, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"entityId": entityID.String()})
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request id"))
		return
	}
	comments, err := decodeComments(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.RejectRequest(ctx, id, comments); err != nil {
		h.logger.WarnContext(ctx, "request rejection failed", "request", id, "error", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeComments(r *http.Request) ([]domain.Comment, error) {
	if r.Body == nil || r.ContentLength == 0 {
		return nil, nil
	}
	var dto finalizeRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}
	now := requestcontext.Now(r.Context())
	comments := make([]domain.Comment, 0, len(dto.Comments))
	for _, c := range dto.Comments {
		comments = append(comments, domain.Comment{Text: c.Text, Public: c.Public, Date: now})
	}
	return comments, nil
}

func (d submitRequestDTO) toDomain() *domain.RegistrationRequest {
	req := &domain.RegistrationRequest{
		RegistrationCode:  d.RegistrationCode,
		UserLocale:        d.UserLocale,
		CredentialSecrets: d.CredentialSecrets,
	}
	for _, a := range d.Attributes {
		if a == nil {
			req.Attributes = append(req.Attributes, nil)
			continue
		}
		req.Attributes = append(req.Attributes, &domain.Attribute{
			Name:      a.Name,
			GroupPath: a.Group,
			Values:    a.Values,
		})
	}
	for _, id := range d.Identities {
		if id == nil {
			req.Identities = append(req.Identities, nil)
			continue
		}
		req.Identities = append(req.Identities, &domain.IdentityParam{
			TypeID: id.Type,
			Value:  id.Value,
		})
	}
	for _, sel := range d.GroupSelections {
		req.GroupSelections = append(req.GroupSelections, domain.Selection{Selected: sel})
	}
	for _, sel := range d.Agreements {
		req.Agreements = append(req.Agreements, domain.Selection{Selected: sel})
	}
	return req
}
