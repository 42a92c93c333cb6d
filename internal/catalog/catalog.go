// Package catalog provides the read-only product and category reference
// data plus the search used by the transaction form: a case-insensitive
// substring filter and the "name plus trailing quantity" shorthand.
package catalog

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"alyapos/backend/internal/domain"
	"alyapos/backend/internal/form"
)

// MaxResults caps how many matches a search returns.
const MaxResults = 5

// Filter returns at most MaxResults products whose display name contains
// the query, case-insensitively, preserving catalog order among matches.
// An empty query matches nothing.
func Filter(products []domain.Product, query string) []domain.Product {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	matches := make([]domain.Product, 0, MaxResults)
	for _, product := range products {
		if strings.Contains(strings.ToLower(product.Name), query) {
			matches = append(matches, product)
			if len(matches) == MaxResults {
				break
			}
		}
	}
	return matches
}

// SplitQuantity interprets a trailing whitespace-separated positive
// integer as the desired quantity and strips it from the search term, so
// "Widget 3" searches for "Widget" with quantity 3. Without a valid
// trailing number the full query is the term and the quantity is 1.
func SplitQuantity(query string) (string, int) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return "", 1
	}

	parts := strings.Fields(trimmed)
	if len(parts) < 2 {
		return trimmed, 1
	}

	last := parts[len(parts)-1]
	qty, err := strconv.Atoi(last)
	if err != nil || qty < 1 {
		return trimmed, 1
	}
	return strings.Join(parts[:len(parts)-1], " "), qty
}

// Merge folds a selected product into the item list: into the first item
// that is still fully empty, or appended as a new item when none is.
// The returned list is the full new list.
func Merge(items []domain.LineItem, product domain.Product, qty int) []domain.LineItem {
	if qty < 1 {
		qty = 1
	}

	for i := range items {
		if form.IsEmptyItem(items[i]) {
			fill(&items[i], product, qty)
			return items
		}
	}

	item := form.NewItem()
	fill(&item, product, qty)
	return append(items, item)
}

func fill(item *domain.LineItem, product domain.Product, qty int) {
	item.ProductName = product.Name
	item.Reference = ""
	item.Quantity = qty
	item.Price = product.Price.String()
	item.CategoryID = product.CategoryID
}

// CategoryName resolves a category id against the reference table;
// unknown ids resolve to the empty string.
func CategoryName(id int) string {
	for _, category := range Categories() {
		if category.ID == id {
			return category.Name
		}
	}
	return ""
}

// Categories returns the static category table.
func Categories() []domain.Category {
	return []domain.Category{
		{ID: 1, Name: "Grocery"},
		{ID: 2, Name: "Beverages"},
		{ID: 3, Name: "Dairy"},
		{ID: 4, Name: "Household"},
		{ID: 5, Name: "Snacks"},
	}
}

// Products returns the seeded reference catalog, used when the store has
// no override from the product-management surface.
func Products() []domain.Product {
	price := func(s string) decimal.Decimal {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero
		}
		return d
	}

	return []domain.Product{
		{ID: 1, Name: "The Vert Menthe 200g", Reference: "REF-THE-200", Price: price("24.50"), CategoryID: 2},
		{ID: 2, Name: "Huile d'Olive 1L", Reference: "REF-HUILE-1L", Price: price("89.00"), CategoryID: 1},
		{ID: 3, Name: "Sucre Morceaux 2kg", Reference: "REF-SUCRE-2KG", Price: price("23.90"), CategoryID: 1},
		{ID: 4, Name: "Farine de Ble 1kg", Reference: "REF-FARINE-1KG", Price: price("7.50"), CategoryID: 1},
		{ID: 5, Name: "Lait Demi-Ecreme 1L", Reference: "REF-LAIT-1L", Price: price("8.20"), CategoryID: 3},
		{ID: 6, Name: "Yaourt Nature x4", Reference: "REF-YAOURT-X4", Price: price("12.00"), CategoryID: 3},
		{ID: 7, Name: "Eau Minerale 1.5L", Reference: "REF-EAU-15L", Price: price("6.00"), CategoryID: 2},
		{ID: 8, Name: "Jus d'Orange 1L", Reference: "REF-JUS-1L", Price: price("15.50"), CategoryID: 2},
		{ID: 9, Name: "Savon de Menage", Reference: "REF-SAVON-01", Price: price("9.90"), CategoryID: 4},
		{ID: 10, Name: "Lessive Poudre 3kg", Reference: "REF-LESSIVE-3KG", Price: price("54.00"), CategoryID: 4},
		{ID: 11, Name: "Biscuits Sables 250g", Reference: "REF-BISCUIT-250", Price: price("11.50"), CategoryID: 5},
		{ID: 12, Name: "Chips Paprika 120g", Reference: "REF-CHIPS-120", Price: price("8.90"), CategoryID: 5},
	}
}
