package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"alyapos/backend/internal/cache"
	"alyapos/backend/internal/catalog"
	"alyapos/backend/internal/domain"
	"alyapos/backend/internal/form"
	"alyapos/backend/internal/store"
)

var (
	ErrDraftNotFound           = errors.New("draft not found")
	ErrItemNotFound            = errors.New("item not found")
	ErrUnknownField            = errors.New("unknown field")
	ErrSubmissionInFlight      = errors.New("submission already in progress")
	ErrAwaitingConfirmation    = errors.New("draft is awaiting confirmation")
	ErrNotAwaitingConfirmation = errors.New("draft is not awaiting confirmation")
)

const (
	successServerMessage = "Transaction has been saved to the server."
	successLocalMessage  = "Transaction has been saved locally to the fallback archive."
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Forwarder sends a payload to the remote ingestion endpoint. Any error
// (including a missing credential) escalates to the local fallback.
type Forwarder interface {
	Submit(ctx context.Context, payload domain.TransactionPayload) error
}

type Options struct {
	RequireCategory     bool
	ConfirmBeforeSubmit bool
	ToastTTL            time.Duration
	SearchTTL           time.Duration
}

// draft is one transaction-capture session. All access goes through the
// service mutex; the submission pipeline releases it only around the
// network call, with the loading status blocking re-entry.
type draft struct {
	id     string
	form   domain.TransactionForm
	status domain.SubmissionStatus
	errs   domain.ValidationErrors
	toast  *domain.Toast
}

type Service struct {
	mu          sync.Mutex
	repo        store.Repository
	forwarder   Forwarder
	searchCache cache.SearchCache
	validator   form.Validator
	opts        Options
	drafts      map[string]*draft
}

func New(repo store.Repository, forwarder Forwarder, searchCache cache.SearchCache, opts Options) *Service {
	if searchCache == nil {
		searchCache = cache.NoopSearchCache{}
	}
	if opts.ToastTTL <= 0 {
		opts.ToastTTL = 3 * time.Second
	}
	if opts.SearchTTL <= 0 {
		opts.SearchTTL = 30 * time.Second
	}

	return &Service{
		repo:        repo,
		forwarder:   forwarder,
		searchCache: searchCache,
		validator:   form.Validator{RequireCategory: opts.RequireCategory},
		opts:        opts,
		drafts:      map[string]*draft{},
	}
}

func (s *Service) CreateDraft(_ context.Context) domain.DraftView {
	d := &draft{
		id:     uuid.NewString(),
		form:   form.NewForm(),
		status: domain.StatusIdle,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[d.id] = d
	return s.view(d)
}

func (s *Service) GetDraft(_ context.Context, id string) (domain.DraftView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drafts[id]
	if !ok {
		return domain.DraftView{}, ErrDraftNotFound
	}
	return s.view(d), nil
}

// SetPhone replaces the phone number and re-validates only that field.
func (s *Service) SetPhone(_ context.Context, id string, value string) (domain.DraftView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.editableDraft(id)
	if err != nil {
		return domain.DraftView{}, err
	}

	d.form.PhoneNumber = value
	s.setFieldError(d, domain.FieldPhoneNumber, s.validator.Field(domain.FieldPhoneNumber, value))
	return s.view(d), nil
}

func (s *Service) AddItem(_ context.Context, id string) (domain.DraftView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.editableDraft(id)
	if err != nil {
		return domain.DraftView{}, err
	}

	d.form.Items = form.AddItem(d.form.Items)
	return s.view(d), nil
}

// RemoveItem drops the item and its error bucket. Removing the last
// remaining item is a no-op.
func (s *Service) RemoveItem(_ context.Context, id string, itemID string) (domain.DraftView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.editableDraft(id)
	if err != nil {
		return domain.DraftView{}, err
	}
	if _, found := form.FindItem(d.form.Items, itemID); !found {
		return domain.DraftView{}, ErrItemNotFound
	}

	d.form.Items = form.RemoveItem(d.form.Items, itemID)
	if _, still := form.FindItem(d.form.Items, itemID); !still {
		delete(d.errs.Items, itemID)
	}
	return s.view(d), nil
}

// UpdateItem replaces one field of one item and re-validates only the
// touched field.
func (s *Service) UpdateItem(_ context.Context, id string, itemID string, field string, value string) (domain.DraftView, error) {
	if !form.IsItemField(field) {
		return domain.DraftView{}, ErrUnknownField
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.editableDraft(id)
	if err != nil {
		return domain.DraftView{}, err
	}

	items, found := form.UpdateItem(d.form.Items, itemID, field, value)
	if !found {
		return domain.DraftView{}, ErrItemNotFound
	}
	d.form.Items = items

	item, _ := form.FindItem(d.form.Items, itemID)
	s.setItemError(d, itemID, field, s.validator.ItemField(item, field))
	return s.view(d), nil
}

// ListProducts returns the current catalog: the store override when the
// product-management surface wrote one, the seeded reference data
// otherwise.
func (s *Service) ListProducts(ctx context.Context) []domain.Product {
	return s.catalogProducts(ctx)
}

// SearchProducts filters the current catalog (store override when the
// product-management surface wrote one, seeded reference data otherwise)
// by case-insensitive substring match, capped at five results.
func (s *Service) SearchProducts(ctx context.Context, query string) ([]domain.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	key := "search:" + strings.ToLower(query)
	if cached, ok, err := s.searchCache.Get(ctx, key); err == nil && ok {
		return cached, nil
	} else if err != nil {
		log.Printf("[service] search cache get failed: %v", err)
	}

	matches := catalog.Filter(s.catalogProducts(ctx), query)
	if err := s.searchCache.Set(ctx, key, matches, s.opts.SearchTTL); err != nil {
		log.Printf("[service] search cache set failed: %v", err)
	}
	return matches, nil
}

// QuickAdd implements the search-box enter shorthand: a trailing
// positive integer is the quantity, the rest is the search term, and the
// first match merges into the first fully-empty item (or a new one).
// With no match the draft is left untouched.
func (s *Service) QuickAdd(ctx context.Context, id string, query string) (domain.DraftView, error) {
	term, qty := catalog.SplitQuantity(query)
	matches := catalog.Filter(s.catalogProducts(ctx), term)

	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.editableDraft(id)
	if err != nil {
		return domain.DraftView{}, err
	}
	if len(matches) == 0 {
		return s.view(d), nil
	}

	d.form.Items = catalog.Merge(d.form.Items, matches[0], qty)
	return s.view(d), nil
}

// CancelDraft resets the session to its initial empty shape.
func (s *Service) CancelDraft(_ context.Context, id string) (domain.DraftView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drafts[id]
	if !ok {
		return domain.DraftView{}, ErrDraftNotFound
	}
	if d.status == domain.StatusLoading {
		return domain.DraftView{}, ErrSubmissionInFlight
	}

	d.form = form.NewForm()
	d.errs = domain.ValidationErrors{}
	d.status = domain.StatusIdle
	return s.view(d), nil
}

// Submit runs exhaustive validation. On failure the error mappings are
// returned and the draft stays editable. On success the draft either
// enters the confirmation gate (when configured) or goes straight
// through the submission pipeline.
func (s *Service) Submit(ctx context.Context, id string) (domain.SubmitResult, error) {
	s.mu.Lock()

	d, ok := s.drafts[id]
	if !ok {
		s.mu.Unlock()
		return domain.SubmitResult{}, ErrDraftNotFound
	}
	switch d.status {
	case domain.StatusLoading:
		s.mu.Unlock()
		return domain.SubmitResult{}, ErrSubmissionInFlight
	case domain.StatusPendingConfirm:
		s.mu.Unlock()
		return domain.SubmitResult{}, ErrAwaitingConfirmation
	}

	valid, errs := s.validator.Validate(d.form)
	if !valid {
		d.errs = errs
		result := domain.SubmitResult{
			Status: d.status,
			Errors: &errs,
			Draft:  s.view(d),
		}
		s.mu.Unlock()
		return result, nil
	}
	d.errs = domain.ValidationErrors{}

	if s.opts.ConfirmBeforeSubmit {
		d.status = domain.StatusPendingConfirm
		confirmation := s.confirmation(d)
		result := domain.SubmitResult{
			Status:       d.status,
			Confirmation: &confirmation,
			Draft:        s.view(d),
		}
		s.mu.Unlock()
		return result, nil
	}

	return s.finalize(ctx, d), nil
}

// Confirm approves the review and runs the submission pipeline.
func (s *Service) Confirm(ctx context.Context, id string) (domain.SubmitResult, error) {
	s.mu.Lock()

	d, ok := s.drafts[id]
	if !ok {
		s.mu.Unlock()
		return domain.SubmitResult{}, ErrDraftNotFound
	}
	if d.status == domain.StatusLoading {
		s.mu.Unlock()
		return domain.SubmitResult{}, ErrSubmissionInFlight
	}
	if d.status != domain.StatusPendingConfirm {
		s.mu.Unlock()
		return domain.SubmitResult{}, ErrNotAwaitingConfirmation
	}

	return s.finalize(ctx, d), nil
}

// CancelConfirmation returns a reviewed draft to editing, mutating
// nothing.
func (s *Service) CancelConfirmation(_ context.Context, id string) (domain.DraftView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drafts[id]
	if !ok {
		return domain.DraftView{}, ErrDraftNotFound
	}
	if d.status != domain.StatusPendingConfirm {
		return domain.DraftView{}, ErrNotAwaitingConfirmation
	}

	d.status = domain.StatusIdle
	return s.view(d), nil
}

// finalize is the submission pipeline. Called with the mutex held; it
// releases it only around the upstream call, with status loading
// rejecting any re-submission meanwhile. Transport failures (and a
// missing credential) silently escalate to the local fallback; only a
// fallback write failure surfaces as an error, leaving the form intact.
func (s *Service) finalize(ctx context.Context, d *draft) domain.SubmitResult {
	d.status = domain.StatusLoading
	payload := buildPayload(d.form)
	s.mu.Unlock()

	var submitErr error
	if s.forwarder != nil {
		submitErr = s.forwarder.Submit(ctx, payload)
	} else {
		submitErr = errors.New("no upstream configured")
	}

	var saveErr error
	if submitErr != nil {
		log.Printf("[service] upstream submit unavailable (%v), falling back to local archive", submitErr)
		record := domain.TransactionRecord{
			ID:                 uuid.NewString(),
			TransactionPayload: payload,
			SavedAt:            time.Now().UTC(),
		}
		_, saveErr = s.repo.AppendTransaction(ctx, record)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if submitErr != nil && saveErr != nil {
		d.status = domain.StatusError
		d.errs = domain.ValidationErrors{
			Message: fmt.Sprintf("failed to save transaction locally: %v", saveErr),
		}
		return domain.SubmitResult{
			Status: d.status,
			Errors: &d.errs,
			Draft:  s.view(d),
		}
	}

	message := successServerMessage
	if submitErr != nil {
		message = successLocalMessage
	}

	d.form = form.NewForm()
	d.errs = domain.ValidationErrors{}
	d.status = domain.StatusIdle
	d.toast = &domain.Toast{
		Message:   message,
		ExpiresAt: time.Now().Add(s.opts.ToastTTL),
	}
	return domain.SubmitResult{
		Status: d.status,
		Draft:  s.view(d),
	}
}

// ListTransactions returns the archived fallback records.
func (s *Service) ListTransactions(ctx context.Context, limit int) ([]domain.TransactionRecord, error) {
	return s.repo.ListTransactions(ctx, limit)
}

// ReplaceCatalog installs a catalog override in the store on behalf of
// the product-management surface. Admin only.
func (s *Service) ReplaceCatalog(ctx context.Context, products []domain.Product) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required")
	}

	for _, p := range products {
		if strings.TrimSpace(p.Name) == "" || p.Price.IsNegative() {
			return store.ErrInvalidRecord
		}
	}
	return s.repo.ReplaceProducts(ctx, products)
}

func (s *Service) Categories(_ context.Context) []domain.Category {
	return catalog.Categories()
}

func (s *Service) catalogProducts(ctx context.Context) []domain.Product {
	override, ok, err := s.repo.GetProductOverride(ctx)
	if err != nil {
		log.Printf("[service] catalog override unavailable (%v), using reference catalog", err)
		return catalog.Products()
	}
	if ok {
		return override
	}
	return catalog.Products()
}

func (s *Service) editableDraft(id string) (*draft, error) {
	d, ok := s.drafts[id]
	if !ok {
		return nil, ErrDraftNotFound
	}
	switch d.status {
	case domain.StatusLoading:
		return nil, ErrSubmissionInFlight
	case domain.StatusPendingConfirm:
		return nil, ErrAwaitingConfirmation
	}
	return d, nil
}

func (s *Service) setFieldError(d *draft, field string, msg string) {
	if msg == "" {
		delete(d.errs.Fields, field)
		return
	}
	if d.errs.Fields == nil {
		d.errs.Fields = map[string]string{}
	}
	d.errs.Fields[field] = msg
}

func (s *Service) setItemError(d *draft, itemID string, field string, msg string) {
	if msg == "" {
		if bucket := d.errs.Items[itemID]; bucket != nil {
			delete(bucket, field)
			if len(bucket) == 0 {
				delete(d.errs.Items, itemID)
			}
		}
		return
	}
	if d.errs.Items == nil {
		d.errs.Items = map[string]map[string]string{}
	}
	if d.errs.Items[itemID] == nil {
		d.errs.Items[itemID] = map[string]string{}
	}
	d.errs.Items[itemID][field] = msg
}

// view snapshots a draft for API consumers. The total is recomputed on
// every call so the displayed figure can never drift from the items.
// An expired toast is cleared on read.
func (s *Service) view(d *draft) domain.DraftView {
	if d.toast != nil && time.Now().After(d.toast.ExpiresAt) {
		d.toast = nil
	}

	items := make([]domain.LineItem, len(d.form.Items))
	copy(items, d.form.Items)

	errs := domain.ValidationErrors{Message: d.errs.Message}
	if len(d.errs.Fields) > 0 {
		errs.Fields = make(map[string]string, len(d.errs.Fields))
		for k, v := range d.errs.Fields {
			errs.Fields[k] = v
		}
	}
	if len(d.errs.Items) > 0 {
		errs.Items = make(map[string]map[string]string, len(d.errs.Items))
		for id, bucket := range d.errs.Items {
			inner := make(map[string]string, len(bucket))
			for k, v := range bucket {
				inner[k] = v
			}
			errs.Items[id] = inner
		}
	}

	var toast *domain.Toast
	if d.toast != nil {
		t := *d.toast
		toast = &t
	}

	return domain.DraftView{
		ID:     d.id,
		Form:   domain.TransactionForm{PhoneNumber: d.form.PhoneNumber, Items: items},
		Total:  form.Total(d.form.Items).StringFixed(2),
		Status: d.status,
		Errors: errs,
		Toast:  toast,
	}
}

// confirmation builds the read-only review: the phone number, each line
// with its resolved category name and subtotal, and the grand total.
func (s *Service) confirmation(d *draft) domain.Confirmation {
	lines := make([]domain.ConfirmationLine, 0, len(d.form.Items))
	for _, item := range d.form.Items {
		price := form.PriceValue(item.Price)
		lines = append(lines, domain.ConfirmationLine{
			ProductName:  item.ProductName,
			Reference:    item.Reference,
			Quantity:     item.Quantity,
			UnitPrice:    price.StringFixed(2),
			CategoryName: catalog.CategoryName(item.CategoryID),
			Subtotal:     price.Mul(decimalFromInt(item.Quantity)).StringFixed(2),
		})
	}

	return domain.Confirmation{
		PhoneNumber: d.form.PhoneNumber,
		Lines:       lines,
		Total:       form.Total(d.form.Items).StringFixed(2),
	}
}

func decimalFromInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

// buildPayload maps the form into the upstream transport shape, with the
// total computed independently at submit time.
func buildPayload(f domain.TransactionForm) domain.TransactionPayload {
	products := make([]domain.ProductLine, 0, len(f.Items))
	for _, item := range f.Items {
		products = append(products, domain.ProductLine{
			ProductName:       item.ProductName,
			ProductReference:  item.Reference,
			Quantity:          item.Quantity,
			UnitPrice:         form.PriceValue(item.Price).InexactFloat64(),
			ProductCategoryID: item.CategoryID,
		})
	}

	return domain.TransactionPayload{
		CustomerPhone: f.PhoneNumber,
		TotalPrice:    form.Total(f.Items).InexactFloat64(),
		Products:      products,
	}
}
