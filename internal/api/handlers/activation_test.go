package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/CallismartLtd/smart-license-server-sub003/internal/license"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// fakeActivationService returns canned results for handler tests.
type fakeActivationService struct {
	activateResult *license.ActivationResult
	activateErr    error
	reauthToken    string
	reauthErr      error
}

func (s *fakeActivationService) Activate(_ context.Context, _ license.ActivateParams) (*license.ActivationResult, error) {
	return s.activateResult, s.activateErr
}

func (s *fakeActivationService) Deactivate(_ context.Context, _, _, _, _ string) (bool, error) {
	return true, nil
}

func (s *fakeActivationService) Uninstall(_ context.Context, _, _, _, _ string) error {
	return nil
}

func (s *fakeActivationService) Reauthenticate(_ context.Context, _, _, _, _, _ string) (string, error) {
	return s.reauthToken, s.reauthErr
}

func activationTestRouter(service ActivationService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	group := r.Group("/api/v1")
	NewActivationHandler(service, nil, zerolog.Nop()).RegisterRoutes(group)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func validActivateBody() map[string]any {
	return map[string]any{
		"service_id":  "svc-1",
		"license_key": "SMLISER-AAAABBBB",
		"domain":      "shop.example.com",
		"app_type":    "plugin",
		"app_slug":    "smart-woo",
	}
}

func TestActivationHandler_ActivateSuccess(t *testing.T) {
	service := &fakeActivationService{
		activateResult: &license.ActivationResult{
			DownloadToken: "token-123",
			SiteSecret:    "secret-456",
			Host:          "shop.example.com",
		},
	}
	r := activationTestRouter(service)

	w := postJSON(t, r, "/api/v1/licenses/activate", validActivateBody())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}

	var resp activateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.DownloadToken != "token-123" || resp.SiteSecret != "secret-456" {
		t.Errorf("response = %+v", resp)
	}
}

func TestActivationHandler_ActivateValidation(t *testing.T) {
	r := activationTestRouter(&fakeActivationService{})

	t.Run("missing fields", func(t *testing.T) {
		w := postJSON(t, r, "/api/v1/licenses/activate", map[string]any{"service_id": "svc-1"})
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("unknown app type", func(t *testing.T) {
		body := validActivateBody()
		body["app_type"] = "widget"
		w := postJSON(t, r, "/api/v1/licenses/activate", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}

func TestActivationHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", license.ErrNotFound, http.StatusNotFound},
		{"limit exceeded", license.ErrLimitExceeded, http.StatusUnprocessableEntity},
		{"invalid state", license.ErrInvalidState, http.StatusConflict},
		{"forbidden with reason", &license.ForbiddenError{Reason: license.ReasonExpired}, http.StatusForbidden},
		{"auth failure with code", &license.AuthError{Code: license.CodeAuthorizationFailed}, http.StatusUnauthorized},
		{"internal", license.ErrInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := activationTestRouter(&fakeActivationService{activateErr: tt.err})
			w := postJSON(t, r, "/api/v1/licenses/activate", validActivateBody())
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestActivationHandler_ForbiddenReasonInBody(t *testing.T) {
	r := activationTestRouter(&fakeActivationService{
		activateErr: &license.ForbiddenError{Reason: license.ReasonSuspended},
	})
	w := postJSON(t, r, "/api/v1/licenses/activate", validActivateBody())

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp["reason"] != "suspended" {
		t.Errorf("reason = %q, want %q", resp["reason"], "suspended")
	}
}
