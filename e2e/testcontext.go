package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// TestContext carries HTTP state between steps of one scenario.
type TestContext struct {
	BaseURL    string
	AdminToken string
	client     *http.Client

	lastStatus int
	lastBody   map[string]any
	requestID  string
}

func NewTestContext() *TestContext {
	base := os.Getenv("IDHUB_E2E_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	admin := os.Getenv("IDHUB_E2E_ADMIN_TOKEN")
	if admin == "" {
		admin = "e2e-admin-token"
	}
	return &TestContext{
		BaseURL:    base,
		AdminToken: admin,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Reset clears per-scenario state.
func (tc *TestContext) Reset() {
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.requestID = ""
}

func (tc *TestContext) do(method, path string, body any, headers map[string]string) error {
	var payload *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(raw)
	} else {
		payload = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, tc.BaseURL+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastBody = nil
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err == nil {
		tc.lastBody = decoded
	}
	return nil
}

func (tc *TestContext) POST(path string, body any) error {
	return tc.do(http.MethodPost, path, body, nil)
}

func (tc *TestContext) POSTAsAdmin(path string, body any) error {
	return tc.do(http.MethodPost, path, body, map[string]string{"X-Admin-Token": tc.AdminToken})
}

func (tc *TestContext) GET(path string) error {
	return tc.do(http.MethodGet, path, nil, nil)
}

func (tc *TestContext) AssertStatus(want int) error {
	if tc.lastStatus != want {
		return fmt.Errorf("expected status %d, got %d (body %v)", want, tc.lastStatus, tc.lastBody)
	}
	return nil
}

func (tc *TestContext) ResponseField(field string) (any, error) {
	if tc.lastBody == nil {
		return nil, fmt.Errorf("no JSON body in last response")
	}
	v, ok := tc.lastBody[field]
	if !ok {
		return nil, fmt.Errorf("field %q not in response %v", field, tc.lastBody)
	}
	return v, nil
}
