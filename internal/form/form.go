// Package form owns the transaction form state: the line-item list, the
// per-field validation rules, and the total calculator. Everything here is
// pure; the service layer decides when each entry point runs.
package form

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"alyapos/backend/internal/domain"
)

// User-facing validation messages.
const (
	MsgPhoneRequired   = "Phone number is required"
	MsgPhoneDigitsOnly = "Phone number should contain only numbers"
	MsgNameRequired    = "Product name is required"
	MsgQuantityMin     = "Quantity must be at least 1"
	MsgPriceRequired   = "Price is required"
	MsgPriceDigitsOnly = "Price should contain only numbers"
	MsgPriceMin        = "Price must be greater than or equal to 0"
	MsgCategoryReq     = "Category is required"
	MsgNoItems         = "At least one product is required"
)

// NewItem returns an empty line item with a generated id. Quantity starts
// at 1 and CategoryID at 0, the "not yet selected" sentinel.
func NewItem() domain.LineItem {
	return domain.LineItem{
		ID:       uuid.NewString(),
		Quantity: 1,
	}
}

// NewForm is the initial empty shape: no phone, exactly one empty item.
func NewForm() domain.TransactionForm {
	return domain.TransactionForm{
		Items: []domain.LineItem{NewItem()},
	}
}

// AddItem appends a fresh empty item and returns the new list.
func AddItem(items []domain.LineItem) []domain.LineItem {
	return append(items, NewItem())
}

// RemoveItem deletes the item with the given id. Removing the last
// remaining item is a no-op: the list never drops below one entry.
func RemoveItem(items []domain.LineItem, id string) []domain.LineItem {
	if len(items) <= 1 {
		return items
	}
	kept := make([]domain.LineItem, 0, len(items))
	for _, item := range items {
		if item.ID != id {
			kept = append(kept, item)
		}
	}
	if len(kept) == len(items) {
		return items
	}
	return kept
}

// UpdateItem replaces one field of the item with the given id, leaving
// every other field untouched. The raw value is coerced per field:
// quantity and categoryId parse as integers (unparsable input becomes
// zero so the validation rules flag it). The second return reports
// whether the item was found.
func UpdateItem(items []domain.LineItem, id string, field string, value string) ([]domain.LineItem, bool) {
	for i := range items {
		if items[i].ID != id {
			continue
		}
		switch field {
		case domain.FieldProductName:
			items[i].ProductName = value
		case domain.FieldReference:
			items[i].Reference = value
		case domain.FieldQuantity:
			qty, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				qty = 0
			}
			items[i].Quantity = qty
		case domain.FieldPrice:
			items[i].Price = strings.TrimSpace(value)
		case domain.FieldCategoryID:
			catID, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				catID = 0
			}
			items[i].CategoryID = catID
		default:
			return items, false
		}
		return items, true
	}
	return items, false
}

// FindItem returns a copy of the item with the given id.
func FindItem(items []domain.LineItem, id string) (domain.LineItem, bool) {
	for _, item := range items {
		if item.ID == id {
			return item, true
		}
	}
	return domain.LineItem{}, false
}

// IsItemField reports whether the name is a known per-item field.
func IsItemField(name string) bool {
	switch name {
	case domain.FieldProductName, domain.FieldReference, domain.FieldQuantity,
		domain.FieldPrice, domain.FieldCategoryID:
		return true
	}
	return false
}

// Validator applies the named per-field rules. RequireCategory mirrors
// the deployment toggle: when false the categoryId rule is skipped.
type Validator struct {
	RequireCategory bool
}

// Field validates a top-level form field and returns the error message,
// or "" when the value is valid.
func (v Validator) Field(name string, value string) string {
	if name != domain.FieldPhoneNumber {
		return ""
	}
	if value != "" && !isAllDigits(value) {
		return MsgPhoneDigitsOnly
	}
	if value == "" {
		return MsgPhoneRequired
	}
	return ""
}

// ItemField validates a single field of a line item and returns the
// error message, or "" when valid.
func (v Validator) ItemField(item domain.LineItem, field string) string {
	switch field {
	case domain.FieldProductName:
		if strings.TrimSpace(item.ProductName) == "" {
			return MsgNameRequired
		}
	case domain.FieldQuantity:
		if item.Quantity < 1 {
			return MsgQuantityMin
		}
	case domain.FieldPrice:
		raw := item.Price
		if raw == "" {
			return MsgPriceRequired
		}
		if !isDecimalString(raw) {
			return MsgPriceDigitsOnly
		}
		if price, err := decimal.NewFromString(raw); err == nil && price.IsNegative() {
			return MsgPriceMin
		}
	case domain.FieldCategoryID:
		if v.RequireCategory && item.CategoryID == 0 {
			return MsgCategoryReq
		}
	}
	return ""
}

// Validate re-runs every field rule plus the cross-field "at least one
// item" rule. It builds the error mappings from scratch each call, so
// calling it twice without intervening edits yields identical results.
func (v Validator) Validate(f domain.TransactionForm) (bool, domain.ValidationErrors) {
	errs := domain.ValidationErrors{
		Fields: map[string]string{},
		Items:  map[string]map[string]string{},
	}

	if msg := v.Field(domain.FieldPhoneNumber, f.PhoneNumber); msg != "" {
		errs.Fields[domain.FieldPhoneNumber] = msg
	}

	if len(f.Items) == 0 {
		errs.Message = MsgNoItems
	}

	for _, item := range f.Items {
		for _, field := range []string{domain.FieldProductName, domain.FieldQuantity, domain.FieldPrice, domain.FieldCategoryID} {
			if msg := v.ItemField(item, field); msg != "" {
				if errs.Items[item.ID] == nil {
					errs.Items[item.ID] = map[string]string{}
				}
				errs.Items[item.ID][field] = msg
			}
		}
	}

	return errs.Empty(), errs
}

// Total folds the item list into the grand total. An absent or
// unparsable price counts as exactly 0. The result is recomputed whole
// on every call; nothing is patched incrementally.
func Total(items []domain.LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		line := PriceValue(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(line)
	}
	return total
}

// PriceValue parses a raw price entry; empty or invalid input is zero.
func PriceValue(raw string) decimal.Decimal {
	if raw == "" {
		return decimal.Zero
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return price
}

// IsEmptyItem reports whether an item is still fully empty: no product
// name, no reference, and no price entered. Used to decide where a
// search result merges into the list.
func IsEmptyItem(item domain.LineItem) bool {
	if item.ProductName != "" || item.Reference != "" {
		return false
	}
	if item.Price == "" {
		return true
	}
	price, err := decimal.NewFromString(item.Price)
	return err == nil && price.IsZero()
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// isDecimalString accepts digits with at most one decimal point and
// nothing else, matching the per-keystroke price gate.
func isDecimalString(s string) bool {
	dots := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '.':
			dots++
			if dots > 1 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
