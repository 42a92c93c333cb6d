package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"alyapos/backend/internal/domain"
	"alyapos/backend/internal/service"
	"alyapos/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string) *API {
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
	}
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)

	mux.HandleFunc("/api/v1/products", a.requireAuth(a.handleProducts, "cashier", "admin"))
	mux.HandleFunc("/api/v1/categories", a.requireAuth(a.handleCategories, "cashier", "admin"))
	mux.HandleFunc("/api/v1/drafts", a.requireAuth(a.handleDrafts, "cashier", "admin"))
	mux.HandleFunc("/api/v1/drafts/", a.requireAuth(a.handleDraftActions, "cashier", "admin"))

	mux.HandleFunc("/api/v1/transactions", a.requireAuth(a.handleTransactions, "admin"))
	mux.HandleFunc("/api/v1/users/cashiers", a.requireAuth(a.handleCashiers, "admin"))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,PUT,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleProducts serves the catalog: GET lists or searches it (the ?q=
// parameter is the search box), PUT installs a catalog override on
// behalf of the product-management surface.
func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		query := strings.TrimSpace(r.URL.Query().Get("q"))
		if query == "" {
			writeJSON(w, http.StatusOK, map[string]any{"products": a.service.ListProducts(r.Context())})
			return
		}
		matches, err := a.service.SearchProducts(r.Context(), query)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if matches == nil {
			matches = []domain.Product{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"products": matches})
	case http.MethodPut:
		var req domain.CatalogReplaceRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := a.service.ReplaceCatalog(r.Context(), req.Products); err != nil {
			status := http.StatusUnprocessableEntity
			if errors.Is(err, store.ErrInvalidRecord) {
				status = http.StatusBadRequest
			}
			if strings.Contains(strings.ToLower(err.Error()), "admin role required") {
				status = http.StatusForbidden
			}
			writeError(w, status, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"updated": true})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": a.service.Categories(r.Context())})
}

func (a *API) handleDrafts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	draft := a.service.CreateDraft(r.Context())
	writeJSON(w, http.StatusCreated, map[string]any{"draft": draft})
}

// handleDraftActions routes everything under /api/v1/drafts/{id}:
//
//	GET    {id}                  read the draft
//	DELETE {id}                  cancel (reset to the initial empty shape)
//	PATCH  {id}/phone            set the phone number
//	POST   {id}/items            append an empty item
//	PATCH  {id}/items/{itemID}   update one field of one item
//	DELETE {id}/items/{itemID}   remove the item (last one is a no-op)
//	POST   {id}/quick-add        search shorthand with trailing quantity
//	POST   {id}/submit           validate, then confirm gate or pipeline
//	POST   {id}/confirm          approve the review
//	DELETE {id}/confirm          back to editing
func (a *API) handleDraftActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/drafts/"
	tail := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("draft id required"))
		return
	}

	segments := strings.Split(tail, "/")
	draftID := segments[0]

	switch {
	case len(segments) == 1:
		a.handleDraft(w, r, draftID)
	case len(segments) == 2 && segments[1] == "phone":
		a.handleDraftPhone(w, r, draftID)
	case len(segments) == 2 && segments[1] == "items":
		a.handleDraftItems(w, r, draftID)
	case len(segments) == 3 && segments[1] == "items":
		a.handleDraftItem(w, r, draftID, segments[2])
	case len(segments) == 2 && segments[1] == "quick-add":
		a.handleDraftQuickAdd(w, r, draftID)
	case len(segments) == 2 && segments[1] == "submit":
		a.handleDraftSubmit(w, r, draftID)
	case len(segments) == 2 && segments[1] == "confirm":
		a.handleDraftConfirm(w, r, draftID)
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown draft action"))
	}
}

func (a *API) handleDraft(w http.ResponseWriter, r *http.Request, draftID string) {
	switch r.Method {
	case http.MethodGet:
		draft, err := a.service.GetDraft(r.Context(), draftID)
		if err != nil {
			writeDraftError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"draft": draft})
	case http.MethodDelete:
		draft, err := a.service.CancelDraft(r.Context(), draftID)
		if err != nil {
			writeDraftError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"draft": draft})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleDraftPhone(w http.ResponseWriter, r *http.Request, draftID string) {
	if r.Method != http.MethodPatch {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.PhoneUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	draft, err := a.service.SetPhone(r.Context(), draftID, req.Value)
	if err != nil {
		writeDraftError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"draft": draft})
}

func (a *API) handleDraftItems(w http.ResponseWriter, r *http.Request, draftID string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	draft, err := a.service.AddItem(r.Context(), draftID)
	if err != nil {
		writeDraftError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"draft": draft})
}

func (a *API) handleDraftItem(w http.ResponseWriter, r *http.Request, draftID string, itemID string) {
	switch r.Method {
	case http.MethodPatch:
		var req domain.ItemUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		draft, err := a.service.UpdateItem(r.Context(), draftID, itemID, req.Field, req.Value)
		if err != nil {
			writeDraftError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"draft": draft})
	case http.MethodDelete:
		draft, err := a.service.RemoveItem(r.Context(), draftID, itemID)
		if err != nil {
			writeDraftError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"draft": draft})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleDraftQuickAdd(w http.ResponseWriter, r *http.Request, draftID string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.QuickAddRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	draft, err := a.service.QuickAdd(r.Context(), draftID, req.Query)
	if err != nil {
		writeDraftError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"draft": draft})
}

// handleDraftSubmit returns 422 with the error mappings when validation
// fails; every other outcome (confirmation pending, saved, fallback
// error banner) is a 200 carrying the submission result.
func (a *API) handleDraftSubmit(w http.ResponseWriter, r *http.Request, draftID string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	result, err := a.service.Submit(r.Context(), draftID)
	if err != nil {
		writeDraftError(w, err)
		return
	}
	if result.Errors != nil && result.Status != domain.StatusError {
		writeJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleDraftConfirm(w http.ResponseWriter, r *http.Request, draftID string) {
	switch r.Method {
	case http.MethodPost:
		result, err := a.service.Confirm(r.Context(), draftID)
		if err != nil {
			writeDraftError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	case http.MethodDelete:
		draft, err := a.service.CancelConfirmation(r.Context(), draftID)
		if err != nil {
			writeDraftError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"draft": draft})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
	records, err := a.service.ListTransactions(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if records == nil {
		records = []domain.TransactionRecord{}
	}
	writeJSON(w, http.StatusOK, domain.TransactionListResponse{Transactions: records})
}

func (a *API) handleCashiers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"cashiers": a.auth.ListCashiers()})
	case http.MethodPost:
		var req domain.CashierCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		cashier, err := a.auth.CreateCashier(req)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"cashier": cashier})
	default:
		writeMethodNotAllowed(w)
	}
}

// writeDraftError maps service sentinels onto HTTP statuses.
func writeDraftError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrDraftNotFound), errors.Is(err, service.ErrItemNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrUnknownField):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrSubmissionInFlight),
		errors.Is(err, service.ErrAwaitingConfirmation),
		errors.Is(err, service.ErrNotAwaitingConfirmation):
		status = http.StatusConflict
	}
	writeError(w, status, err)
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// For 5xx responses, return a generic message to avoid leaking
	// internals. 4xx responses are user-facing so the original message
	// goes through.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
