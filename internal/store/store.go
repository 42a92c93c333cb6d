package store

import (
	"context"
	"errors"

	"alyapos/backend/internal/domain"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidRecord = errors.New("invalid record")
)

// Repository isolates the local durable store from the submission
// pipeline: the fallback transaction archive, the optional catalog
// override written by the product-management surface (this core only
// reads it), and the auth user accounts. A file-backed or embedded
// database can substitute any implementation without touching callers.
type Repository interface {
	AppendTransaction(ctx context.Context, record domain.TransactionRecord) (*domain.TransactionRecord, error)
	ListTransactions(ctx context.Context, limit int) ([]domain.TransactionRecord, error)
	GetProductOverride(ctx context.Context) ([]domain.Product, bool, error)
	ReplaceProducts(ctx context.Context, products []domain.Product) error
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
