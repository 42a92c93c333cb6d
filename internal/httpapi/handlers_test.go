package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"alyapos/backend/internal/domain"
	"alyapos/backend/internal/service"
	"alyapos/backend/internal/store/memory"
)

// okForwarder is the happy-path upstream stub.
type okForwarder struct{}

func (okForwarder) Submit(_ context.Context, _ domain.TransactionPayload) error { return nil }

// newTestAPI builds a full API with an in-memory store, real AuthManager
// and real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, okForwarder{}, nil, service.Options{
		RequireCategory:     true,
		ConfirmBeforeSubmit: false,
	})
	auth := NewAuthManager("test-secret-key-0123456789abcdef", time.Hour, repo)

	return New(svc, auth, "*")
}

func doJSON(t *testing.T, handler http.Handler, method string, path string, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, handler http.Handler, username string, password string) string {
	t.Helper()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if body.AccessToken == "" {
		t.Fatalf("expected access token")
	}
	return body.AccessToken
}

type draftEnvelope struct {
	Draft domain.DraftView `json:"draft"`
}

func decodeDraft(t *testing.T, rec *httptest.ResponseRecorder) domain.DraftView {
	t.Helper()
	var env draftEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode draft: %v", err)
	}
	return env.Draft
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleLogin_RateLimit(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	// The loginLimiter allows 5 attempts per minute; httptest requests all
	// share RemoteAddr 192.0.2.1 so the sixth must be rejected.
	var last int
	for i := 0; i < 6; i++ {
		rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"username": "admin",
			"password": "badpass",
		})
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on sixth attempt, got %d", last)
	}
}

func TestDraftEndpointsRequireAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/drafts", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestDraftLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "cashier", "cashier123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/drafts", token, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	draft := decodeDraft(t, rec)
	if draft.ID == "" || len(draft.Form.Items) != 1 {
		t.Fatalf("unexpected initial draft: %+v", draft)
	}
	base := "/api/v1/drafts/" + draft.ID
	itemID := draft.Form.Items[0].ID

	// submitting the empty form is a validation failure, not a 2xx
	rec = doJSON(t, handler, http.MethodPost, base+"/submit", token, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for invalid form, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPatch, base+"/phone", token, domain.PhoneUpdateRequest{Value: "0612345678"})
	if rec.Code != http.StatusOK {
		t.Fatalf("set phone failed: %d (body: %s)", rec.Code, rec.Body.String())
	}

	for field, value := range map[string]string{
		domain.FieldProductName: "Jus d'Orange 1L",
		domain.FieldQuantity:    "2",
		domain.FieldPrice:       "15.50",
		domain.FieldCategoryID:  "2",
	} {
		rec = doJSON(t, handler, http.MethodPatch, base+"/items/"+itemID, token, domain.ItemUpdateRequest{Field: field, Value: value})
		if rec.Code != http.StatusOK {
			t.Fatalf("update %s failed: %d (body: %s)", field, rec.Code, rec.Body.String())
		}
	}

	rec = doJSON(t, handler, http.MethodGet, base, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get draft failed: %d", rec.Code)
	}
	if view := decodeDraft(t, rec); view.Total != "31.00" {
		t.Fatalf("expected total 31.00, got %s", view.Total)
	}

	rec = doJSON(t, handler, http.MethodPost, base+"/submit", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit failed: %d (body: %s)", rec.Code, rec.Body.String())
	}
	var result domain.SubmitResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode submit result: %v", err)
	}
	if result.Status != domain.StatusIdle {
		t.Fatalf("expected idle after submit, got %s", result.Status)
	}
	if result.Draft.Toast == nil {
		t.Fatalf("expected success toast")
	}
	if result.Draft.Form.PhoneNumber != "" {
		t.Fatalf("expected form reset after submit")
	}
}

func TestDraftNotFoundIs404(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "cashier", "cashier123")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/drafts/does-not-exist", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestUnknownItemFieldIs400(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "cashier", "cashier123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/drafts", token, nil)
	draft := decodeDraft(t, rec)

	rec = doJSON(t, handler, http.MethodPatch, "/api/v1/drafts/"+draft.ID+"/items/"+draft.Form.Items[0].ID, token, domain.ItemUpdateRequest{Field: "color", Value: "red"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestProductSearchOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "cashier", "cashier123")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/products?q=lait", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("search failed: %d", rec.Code)
	}

	var body struct {
		Products []domain.Product `json:"products"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode products: %v", err)
	}
	if len(body.Products) != 1 {
		t.Fatalf("expected 1 match for lait, got %d", len(body.Products))
	}
}

func TestTransactionsEndpointIsAdminOnly(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	cashierToken := login(t, handler, "cashier", "cashier123")
	rec := doJSON(t, handler, http.MethodGet, "/api/v1/transactions", cashierToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier, got %d", rec.Code)
	}

	adminToken := login(t, handler, "admin", "admin123")
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/transactions", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body domain.TransactionListResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode transactions: %v", err)
	}
	if body.Transactions == nil {
		t.Fatalf("expected empty list, not null")
	}
}

func TestCreateCashierOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	adminToken := login(t, handler, "admin", "admin123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/users/cashiers", adminToken, domain.CashierCreateRequest{
		Username: "kasir-b",
		Password: "rahasia-kuat",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	// the new cashier can log in right away
	login(t, handler, "kasir-b", "rahasia-kuat")
}

func TestMethodNotAllowed(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "cashier", "cashier123")

	rec := doJSON(t, handler, http.MethodDelete, "/api/v1/products", token, nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestOptionsPreflight(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodOptions, "/api/v1/drafts", "", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rec.Code)
	}
	if origin := rec.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Fatalf("expected CORS origin header, got %q", origin)
	}
}
