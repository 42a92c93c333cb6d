package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is one product entry within a transaction draft. Price is kept
// as the raw user input so that format validation sees exactly what was
// typed; an empty string means "not entered yet".
type LineItem struct {
	ID          string `json:"id"`
	ProductName string `json:"product_name"`
	Reference   string `json:"reference"`
	Quantity    int    `json:"quantity"`
	Price       string `json:"price"`
	CategoryID  int    `json:"category_id"`
}

type TransactionForm struct {
	PhoneNumber string     `json:"phone_number"`
	Items       []LineItem `json:"items"`
}

type SubmissionStatus string

const (
	StatusIdle           SubmissionStatus = "idle"
	StatusPendingConfirm SubmissionStatus = "pending_confirm"
	StatusLoading        SubmissionStatus = "loading"
	StatusError          SubmissionStatus = "error"
)

// Field names as they appear in API requests and error mappings.
const (
	FieldPhoneNumber = "phoneNumber"
	FieldProductName = "productName"
	FieldReference   = "reference"
	FieldQuantity    = "quantity"
	FieldPrice       = "price"
	FieldCategoryID  = "categoryId"
)

// ValidationErrors carries the two error mappings (top-level field to
// message, item id to per-field messages) plus the form-level banner.
type ValidationErrors struct {
	Message string                       `json:"message,omitempty"`
	Fields  map[string]string            `json:"fields,omitempty"`
	Items   map[string]map[string]string `json:"items,omitempty"`
}

func (v ValidationErrors) Empty() bool {
	return v.Message == "" && len(v.Fields) == 0 && len(v.Items) == 0
}

type Product struct {
	ID         int             `json:"id"`
	Name       string          `json:"name"`
	Reference  string          `json:"reference"`
	Price      decimal.Decimal `json:"price"`
	CategoryID int             `json:"category_id"`
}

type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// ProductLine is one line of the upstream ingestion payload. Monetary
// values cross the wire as JSON numbers, per the upstream contract.
type ProductLine struct {
	ProductName       string  `json:"productName"`
	ProductReference  string  `json:"productReference"`
	Quantity          int     `json:"quantity"`
	UnitPrice         float64 `json:"unitPrice"`
	ProductCategoryID int     `json:"productCategoryId"`
}

type TransactionPayload struct {
	CustomerPhone string        `json:"customerPhone"`
	TotalPrice    float64       `json:"totalPrice"`
	Products      []ProductLine `json:"products"`
}

// TransactionRecord is a payload archived in the local fallback store,
// with a generated id and a capture timestamp.
type TransactionRecord struct {
	ID string `json:"id"`
	TransactionPayload
	SavedAt time.Time `json:"savedAt"`
}

type Toast struct {
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DraftView is the API representation of a draft session. Total is the
// recomputed grand total formatted with two decimal places.
type DraftView struct {
	ID     string           `json:"id"`
	Form   TransactionForm  `json:"form"`
	Total  string           `json:"total"`
	Status SubmissionStatus `json:"status"`
	Errors ValidationErrors `json:"errors"`
	Toast  *Toast           `json:"toast,omitempty"`
}

type ConfirmationLine struct {
	ProductName  string `json:"product_name"`
	Reference    string `json:"reference"`
	Quantity     int    `json:"quantity"`
	UnitPrice    string `json:"unit_price"`
	CategoryName string `json:"category_name"`
	Subtotal     string `json:"subtotal"`
}

// Confirmation is the read-only review shown between validation success
// and submission.
type Confirmation struct {
	PhoneNumber string             `json:"phone_number"`
	Lines       []ConfirmationLine `json:"lines"`
	Total       string             `json:"total"`
}

type SubmitResult struct {
	Status       SubmissionStatus  `json:"status"`
	Errors       *ValidationErrors `json:"errors,omitempty"`
	Confirmation *Confirmation     `json:"confirmation,omitempty"`
	Draft        DraftView         `json:"draft"`
}

type PhoneUpdateRequest struct {
	Value string `json:"value"`
}

type ItemUpdateRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type QuickAddRequest struct {
	Query string `json:"query"`
}

type CatalogReplaceRequest struct {
	Products []Product `json:"products"`
}

type TransactionListResponse struct {
	Transactions []TransactionRecord `json:"transactions"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}
