// Package postgres is the durable Repository used when DATABASE_URL is
// set. The transaction archive keeps the upstream payload lines as a
// JSONB column; the catalog override and user accounts live in their own
// tables.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"alyapos/backend/internal/domain"
	"alyapos/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(16)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS archived_transactions (
			id TEXT PRIMARY KEY,
			customer_phone TEXT NOT NULL,
			total_price NUMERIC(12,2) NOT NULL,
			products JSONB NOT NULL,
			saved_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS catalog_override (
			position INT PRIMARY KEY,
			product_id INT NOT NULL,
			name TEXT NOT NULL,
			reference TEXT NOT NULL DEFAULT '',
			price NUMERIC(12,2) NOT NULL,
			category_id INT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY,
			password TEXT NOT NULL,
			role TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) AppendTransaction(ctx context.Context, record domain.TransactionRecord) (*domain.TransactionRecord, error) {
	if record.ID == "" {
		return nil, store.ErrInvalidRecord
	}

	lines, err := json.Marshal(record.Products)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO archived_transactions (id, customer_phone, total_price, products, saved_at)
		VALUES ($1,$2,$3,$4,$5)
	`, record.ID, record.CustomerPhone, record.TotalPrice, lines, record.SavedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidRecord
		}
		return nil, err
	}

	saved := record
	return &saved, nil
}

func (s *Store) ListTransactions(ctx context.Context, limit int) ([]domain.TransactionRecord, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_phone, total_price, products, saved_at
		FROM archived_transactions
		ORDER BY saved_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.TransactionRecord, 0, limit)
	for rows.Next() {
		var rec domain.TransactionRecord
		var lines []byte
		if err := rows.Scan(&rec.ID, &rec.CustomerPhone, &rec.TotalPrice, &lines, &rec.SavedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(lines, &rec.Products); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) GetProductOverride(ctx context.Context) ([]domain.Product, bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, name, reference, price, category_id
		FROM catalog_override
		ORDER BY position
	`)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 32)
	for rows.Next() {
		var p domain.Product
		var price string
		if err := rows.Scan(&p.ID, &p.Name, &p.Reference, &price, &p.CategoryID); err != nil {
			return nil, false, err
		}
		parsed, err := decimal.NewFromString(price)
		if err != nil {
			return nil, false, err
		}
		p.Price = parsed
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	if len(products) == 0 {
		return nil, false, nil
	}
	return products, true, nil
}

func (s *Store) ReplaceProducts(ctx context.Context, products []domain.Product) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_override`); err != nil {
		return err
	}
	for i, p := range products {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO catalog_override (position, product_id, name, reference, price, category_id)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, i, p.ID, p.Name, p.Reference, p.Price.StringFixed(2), p.CategoryID)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" {
		return store.ErrInvalidRecord
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidRecord
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
