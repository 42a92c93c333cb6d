package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"alyapos/backend/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "archive.json"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func record(id string, total float64) domain.TransactionRecord {
	return domain.TransactionRecord{
		ID: id,
		TransactionPayload: domain.TransactionPayload{
			CustomerPhone: "0612345678",
			TotalPrice:    total,
			Products: []domain.ProductLine{
				{ProductName: "Eau Minerale 1.5L", Quantity: 1, UnitPrice: total},
			},
		},
		SavedAt: time.Now().UTC(),
	}
}

func TestAppendAndListSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.json")
	ctx := context.Background()

	s, err := New(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := s.AppendTransaction(ctx, record("txn-1", 6.0)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := s.AppendTransaction(ctx, record("txn-2", 12.0)); err != nil {
		t.Fatalf("append: %v", err)
	}

	// a second handle on the same file sees the appended records
	reopened, err := New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	records, err := reopened.ListTransactions(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "txn-1" || records[1].ID != "txn-2" {
		t.Fatalf("expected append order to be preserved, got %s then %s", records[0].ID, records[1].ID)
	}
}

func TestListTransactionsLimitKeepsNewest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if _, err := s.AppendTransaction(ctx, record(id, 1.0)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	records, err := s.ListTransactions(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 || records[0].ID != "b" || records[1].ID != "c" {
		t.Fatalf("expected the two newest records, got %+v", records)
	}
}

func TestAppendRejectsMissingID(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.AppendTransaction(context.Background(), domain.TransactionRecord{}); err == nil {
		t.Fatalf("expected record without id to be rejected")
	}
}

func TestCorruptDocumentIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	if _, err := New(path); err == nil {
		t.Fatalf("expected corrupt document to fail open")
	}
}

func TestDocumentUsesSavedTransactionsKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.json")
	ctx := context.Background()

	s, err := New(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := s.AppendTransaction(ctx, record("txn-1", 6.0)); err != nil {
		t.Fatalf("append: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if _, ok := doc["savedTransactions"]; !ok {
		t.Fatalf("expected savedTransactions key, got keys %v", keys(doc))
	}
}

func TestProductOverrideRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.GetProductOverride(ctx); err != nil || ok {
		t.Fatalf("expected no override initially, got ok=%v err=%v", ok, err)
	}

	products := []domain.Product{{ID: 1, Name: "Cafe Moulu 250g", CategoryID: 2}}
	if err := s.ReplaceProducts(ctx, products); err != nil {
		t.Fatalf("replace: %v", err)
	}

	got, ok, err := s.GetProductOverride(ctx)
	if err != nil || !ok {
		t.Fatalf("expected override after replace, got ok=%v err=%v", ok, err)
	}
	if len(got) != 1 || got[0].Name != "Cafe Moulu 250g" {
		t.Fatalf("unexpected override: %+v", got)
	}
}

func TestSeedsUsersOnFirstOpen(t *testing.T) {
	s := newTestStore(t)

	users, err := s.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected seeded admin and cashier, got %d users", len(users))
	}
}

func keys(m map[string]json.RawMessage) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
