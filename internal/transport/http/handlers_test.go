package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"idhub/internal/accept"
	"idhub/internal/domain"
	"idhub/internal/forms"
	"idhub/internal/notify"
	"idhub/internal/profile"
	"idhub/internal/registry"
	"idhub/internal/store"
	"idhub/internal/tokens"
	"idhub/internal/translate"
)

const (
	testAdminToken = "test-admin-token"
	testSigningKey = "test-signing-key-units"
)

type HandlersSuite struct {
	suite.Suite
	store  *store.Memory
	router http.Handler
}

func (s *HandlersSuite) SetupTest() {
	attrTypes := registry.NewMemoryAttributeTypes()
	attrTypes.Register(domain.AttributeType{Name: "email", ValueSyntax: "string", MaxElements: 1}, nil)
	idTypes := registry.NewMemoryIdentityTypes()
	idTypes.Register(domain.IdentityTypeDefinition{Name: "userName"})

	s.store = store.NewMemory(nil)
	s.store.RegisterGroup("/staff")

	formStore := forms.NewMemoryStore()
	s.Require().NoError(formStore.Install(&domain.RegistrationForm{
		Name: "signup",
		Attributes: []domain.AttributeRegistrationParam{
			{AttributeName: "email", Group: domain.RootGroup, Retrieval: domain.RetrievalAutomatic},
		},
		Identities: []domain.IdentityRegistrationParam{
			{IdentityType: "userName", Retrieval: domain.RetrievalInteractive},
		},
		FixedGroups: []string{"/staff"},
	}))

	reg := translate.NewActionRegistry(translate.Deps{AttrTypes: attrTypes, IDTypes: idTypes})
	profiles := profile.NewStore(reg)

	service := accept.NewService(accept.Config{
		Forms:      formStore,
		Profiles:   profiles,
		Executor:   translate.NewExecutor(profiles),
		Entities:   s.store,
		Requests:   s.store,
		Runner:     s.store,
		Rewriter:   tokens.NewRewriter(tokens.NewMemoryStore()),
		Dispatcher: notify.NewMemoryDispatcher(),
		AttrTypes:  attrTypes,
		IDTypes:    idTypes,
	})

	handler := NewHandler(service, slog.Default())
	s.router = NewRouter(handler, RouterConfig{
		AdminToken:    testAdminToken,
		JWTSigningKey: []byte(testSigningKey),
	})
}

func (s *HandlersSuite) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlersSuite) submitBody() []byte {
	body, err := json.Marshal(map[string]any{
		"attributes": []any{
			map[string]any{"name": "email", "group": "/", "values": []string{"a@x.org"}},
		},
		"identities": []any{
			map[string]any{"type": "userName", "value": "alice"},
		},
	})
	s.Require().NoError(err)
	return body
}

func (s *HandlersSuite) submit() string {
	req := httptest.NewRequest(http.MethodPost, "/registration/signup/requests", bytes.NewReader(s.submitBody()))
	rec := s.do(req)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var resp map[string]string
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Require().NotEmpty(resp["requestId"])
	return resp["requestId"]
}

func (s *HandlersSuite) TestSubmitAndGet() {
	id := s.submit()

	rec := s.do(httptest.NewRequest(http.MethodGet, "/requests/"+id, nil))
	s.Require().Equal(http.StatusOK, rec.Code)
	var view map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &view))
	s.Equal("pending", view["status"])
	s.Equal("signup", view["formName"])
}

func (s *HandlersSuite) TestSubmitUnknownFormIs404() {
	req := httptest.NewRequest(http.MethodPost, "/registration/nope/requests", bytes.NewReader(s.submitBody()))
	s.Equal(http.StatusNotFound, s.do(req).Code)
}

func (s *HandlersSuite) TestSubmitMalformedBodyIs400() {
	req := httptest.NewRequest(http.MethodPost, "/registration/signup/requests", bytes.NewReader([]byte("{")))
	s.Equal(http.StatusBadRequest, s.do(req).Code)
}

func (s *HandlersSuite) TestGetUnknownRequestIs404() {
	rec := s.do(httptest.NewRequest(http.MethodGet, "/requests/"+domain.NewRequestID().String(), nil))
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *HandlersSuite) TestAcceptRequiresAdmin() {
	id := s.submit()

	req := httptest.NewRequest(http.MethodPost, "/requests/"+id+"/accept", nil)
	s.Equal(http.StatusUnauthorized, s.do(req).Code)
	s.Equal(0, s.store.EntityCount())
}

func (s *HandlersSuite) TestAcceptWithStaticToken() {
	id := s.submit()

	req := httptest.NewRequest(http.MethodPost, "/requests/"+id+"/accept", nil)
	req.Header.Set("X-Admin-Token", testAdminToken)
	rec := s.do(req)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]string
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.NotEmpty(resp["entityId"])
	s.Equal(1, s.store.EntityCount())
}

func (s *HandlersSuite) TestAcceptWithAdminJWT() {
	id := s.submit()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "admin"})
	signed, err := token.SignedString([]byte(testSigningKey))
	s.Require().NoError(err)

	req := httptest.NewRequest(http.MethodPost, "/requests/"+id+"/accept", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	s.Equal(http.StatusOK, s.do(req).Code)
}

func (s *HandlersSuite) TestNonAdminJWTRejected() {
	id := s.submit()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "user"})
	signed, err := token.SignedString([]byte(testSigningKey))
	s.Require().NoError(err)

	req := httptest.NewRequest(http.MethodPost, "/requests/"+id+"/accept", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	s.Equal(http.StatusUnauthorized, s.do(req).Code)
}

func (s *HandlersSuite) TestAcceptTwiceIs409() {
	id := s.submit()

	doAccept := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/requests/"+id+"/accept", nil)
		req.Header.Set("X-Admin-Token", testAdminToken)
		return s.do(req)
	}
	s.Require().Equal(http.StatusOK, doAccept().Code)
	s.Equal(http.StatusConflict, doAccept().Code)
}

func (s *HandlersSuite) TestRejectWithComments() {
	id := s.submit()

	body, _ := json.Marshal(map[string]any{
		"comments": []map[string]any{{"text": "incomplete data", "public": true}},
	})
	req := httptest.NewRequest(http.MethodPost, "/requests/"+id+"/reject", bytes.NewReader(body))
	req.Header.Set("X-Admin-Token", testAdminToken)
	s.Require().Equal(http.StatusNoContent, s.do(req).Code)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/requests/"+id, nil))
	var view map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &view))
	s.Equal("rejected", view["status"])
}

func (s *HandlersSuite) TestHealthz() {
	rec := s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	s.Equal(http.StatusOK, rec.Code)
}

func (s *HandlersSuite) TestUserAgentCaptured() {
	req := httptest.NewRequest(http.MethodPost, "/registration/signup/requests", bytes.NewReader(s.submitBody()))
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	rec := s.do(req)
	s.Require().Equal(http.StatusCreated, rec.Code)

	var resp map[string]string
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	id, err := domain.ParseRequestID(resp["requestId"])
	s.Require().NoError(err)

	stored, err := s.store.Get(context.Background(), id)
	s.Require().NoError(err)
	s.Contains(stored.UserAgent, "Chrome")
}

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersSuite))
}
