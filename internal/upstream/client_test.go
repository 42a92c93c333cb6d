package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"alyapos/backend/internal/domain"
)

func samplePayload() domain.TransactionPayload {
	return domain.TransactionPayload{
		CustomerPhone: "0612345678",
		TotalPrice:    21.0,
		Products: []domain.ProductLine{
			{ProductName: "Lait Demi-Ecreme 1L", Quantity: 2, UnitPrice: 10.5, ProductCategoryID: 3},
		},
	}
}

func TestSubmitPostsBearerTokenAndPayload(t *testing.T) {
	var gotAuth string
	var gotPayload domain.TransactionPayload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := New(srv.URL, "secret-token")
	if err := client.Submit(context.Background(), samplePayload()); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
	if gotPayload.TotalPrice != 21.0 || len(gotPayload.Products) != 1 {
		t.Fatalf("unexpected payload: %+v", gotPayload)
	}
}

func TestSubmitNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := New(srv.URL, "secret-token")
	if err := client.Submit(context.Background(), samplePayload()); err == nil {
		t.Fatalf("expected error for 500 response")
	}
}

func TestSubmitWithoutTokenIsMissingCredential(t *testing.T) {
	client := New("http://127.0.0.1:0", "")
	err := client.Submit(context.Background(), samplePayload())
	if !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
}

func TestSubmitUnreachableEndpointIsError(t *testing.T) {
	// reserved TEST-NET address, nothing listens there
	client := New("http://192.0.2.1:1/api", "secret-token")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.Submit(ctx, samplePayload()); err == nil {
		t.Fatalf("expected transport error")
	}
}
