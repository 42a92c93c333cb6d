// Package file is the local fallback Repository backed by a single JSON
// document, mirroring the browser-storage lifecycle this service
// replaces: the whole document is read, modified, and rewritten on every
// append. There is no multi-writer coordination; a lost update between
// two processes appending concurrently is accepted for this domain.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"alyapos/backend/internal/domain"
	"alyapos/backend/internal/store"
)

// document is the on-disk shape. The key names match the browser
// storage keys the original merchant app used.
type document struct {
	Transactions []domain.TransactionRecord `json:"savedTransactions"`
	Products     []domain.Product           `json:"products,omitempty"`
	OverrideSet  bool                       `json:"productsOverridden,omitempty"`
	Users        []domain.UserAccount       `json:"users,omitempty"`
}

type Store struct {
	mu   sync.Mutex
	path string
}

// New opens (or creates) the archive document at path. A document with
// no user accounts gets the same seeded dev credentials as the memory
// store so login works out of the box.
func New(path string) (*Store, error) {
	s := &Store{path: path}

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	if len(doc.Users) == 0 {
		doc.Users = seedUsers()
		if err := s.write(doc); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func seedUsers() []domain.UserAccount {
	now := time.Now().UTC()
	users := make([]domain.UserAccount, 0, 2)
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", "admin123", "admin"},
		{"cashier", "cashier123", "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			continue
		}
		users = append(users, domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		})
	}
	return users
}

func (s *Store) read() (document, error) {
	var doc document

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("read archive: %w", err)
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("decode archive: %w", err)
	}
	return doc, nil
}

func (s *Store) write(doc document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode archive: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}
	return nil
}

func (s *Store) AppendTransaction(_ context.Context, record domain.TransactionRecord) (*domain.TransactionRecord, error) {
	if record.ID == "" {
		return nil, store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	doc.Transactions = append(doc.Transactions, record)
	if err := s.write(doc); err != nil {
		return nil, err
	}
	saved := record
	return &saved, nil
}

func (s *Store) ListTransactions(_ context.Context, limit int) ([]domain.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	records := doc.Transactions
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}

func (s *Store) GetProductOverride(_ context.Context) ([]domain.Product, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, false, err
	}
	if !doc.OverrideSet {
		return nil, false, nil
	}
	return doc.Products, true, nil
}

func (s *Store) ReplaceProducts(_ context.Context, products []domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	doc.Products = products
	doc.OverrideSet = true
	return s.write(doc)
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	if user.Username == "" {
		return store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	for _, existing := range doc.Users {
		if existing.Username == user.Username {
			return store.ErrInvalidRecord
		}
	}
	doc.Users = append(doc.Users, user)
	return s.write(doc)
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	return doc.Users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	for i := range doc.Users {
		if doc.Users[i].Username == username {
			doc.Users[i].Password = password
			return s.write(doc)
		}
	}
	return store.ErrNotFound
}
