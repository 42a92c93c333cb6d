package catalog

import (
	"testing"

	"alyapos/backend/internal/domain"
	"alyapos/backend/internal/form"
)

func TestFilterIsCaseInsensitive(t *testing.T) {
	matches := Filter(Products(), "LAIT")
	if len(matches) != 1 {
		t.Fatalf("expected 1 match for LAIT, got %d", len(matches))
	}
	if matches[0].Name != "Lait Demi-Ecreme 1L" {
		t.Fatalf("unexpected match: %s", matches[0].Name)
	}
}

func TestFilterCapsResultsAndKeepsOrder(t *testing.T) {
	products := make([]domain.Product, 0, 8)
	for i := 1; i <= 8; i++ {
		products = append(products, domain.Product{ID: i, Name: "Widget"})
	}

	matches := Filter(products, "widget")
	if len(matches) != MaxResults {
		t.Fatalf("expected %d matches, got %d", MaxResults, len(matches))
	}
	for i, match := range matches {
		if match.ID != i+1 {
			t.Fatalf("expected catalog order to be preserved, got id %d at position %d", match.ID, i)
		}
	}
}

func TestFilterEmptyQueryMatchesNothing(t *testing.T) {
	if matches := Filter(Products(), "   "); matches != nil {
		t.Fatalf("expected no matches for blank query, got %d", len(matches))
	}
}

func TestSplitQuantityTrailingNumber(t *testing.T) {
	term, qty := SplitQuantity("Eau Minerale 3")
	if term != "Eau Minerale" || qty != 3 {
		t.Fatalf("expected (Eau Minerale, 3), got (%s, %d)", term, qty)
	}
}

func TestSplitQuantityDefaults(t *testing.T) {
	cases := []struct {
		query string
		term  string
		qty   int
	}{
		{"Lait", "Lait", 1},
		{"Jus 0", "Jus 0", 1},
		{"Chips -2", "Chips -2", 1},
		{"  Savon  ", "Savon", 1},
		{"", "", 1},
	}
	for _, tc := range cases {
		term, qty := SplitQuantity(tc.query)
		if term != tc.term || qty != tc.qty {
			t.Fatalf("SplitQuantity(%q) = (%q, %d), expected (%q, %d)", tc.query, term, qty, tc.term, tc.qty)
		}
	}
}

// A term whose product name itself ends in a number still searches: the
// stripped trailing token only becomes a quantity, never part of the
// term, so "1.5L" style suffixes (non-integers) are left alone.
func TestSplitQuantityIgnoresNonIntegerSuffix(t *testing.T) {
	term, qty := SplitQuantity("Eau Minerale 1.5L")
	if term != "Eau Minerale 1.5L" || qty != 1 {
		t.Fatalf("expected suffix to stay in the term, got (%q, %d)", term, qty)
	}
}

func TestMergeFillsFirstEmptyItem(t *testing.T) {
	filled := form.NewItem()
	filled.ProductName = "Sucre Morceaux 2kg"
	filled.Price = "23.90"
	empty := form.NewItem()
	items := []domain.LineItem{filled, empty, form.NewItem()}

	product := Products()[0] // The Vert Menthe 200g, 24.50
	items = Merge(items, product, 3)

	if len(items) != 3 {
		t.Fatalf("expected no new item to be appended, got %d items", len(items))
	}
	target := items[1]
	if target.ProductName != product.Name {
		t.Fatalf("expected second item to be filled, got %q", target.ProductName)
	}
	if target.Quantity != 3 {
		t.Fatalf("expected quantity 3, got %d", target.Quantity)
	}
	if target.Price != "24.5" {
		t.Fatalf("expected price 24.5, got %q", target.Price)
	}
	if target.CategoryID != product.CategoryID {
		t.Fatalf("expected category %d, got %d", product.CategoryID, target.CategoryID)
	}
	if target.Reference != "" {
		t.Fatalf("expected reference to stay blank on merge, got %q", target.Reference)
	}
}

func TestMergeAppendsWhenNoEmptyItem(t *testing.T) {
	filled := form.NewItem()
	filled.ProductName = "Sucre Morceaux 2kg"
	filled.Price = "23.90"
	items := []domain.LineItem{filled}

	items = Merge(items, Products()[4], 2)
	if len(items) != 2 {
		t.Fatalf("expected a new item to be appended, got %d", len(items))
	}
	if items[1].ProductName != "Lait Demi-Ecreme 1L" {
		t.Fatalf("unexpected appended product: %s", items[1].ProductName)
	}
	if items[1].Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", items[1].Quantity)
	}
}

func TestCategoryName(t *testing.T) {
	if name := CategoryName(3); name != "Dairy" {
		t.Fatalf("expected Dairy, got %q", name)
	}
	if name := CategoryName(99); name != "" {
		t.Fatalf("expected empty name for unknown id, got %q", name)
	}
}
