package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cloud-wave-best-zizon/sale-service/internal/domain"
	"github.com/shopspring/decimal"
)

// SQLiteStore implements Store on SQLite. Every ledger operation and sale
// transition runs in one transaction over a single connection, so writers
// are serialized by the database itself.
type SQLiteStore struct {
	db *sql.DB
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func openDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open(SQLiteDriverName, path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// single writer; ":memory:" also needs the one connection kept alive
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := openDatabase(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := applyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CreateProduct(ctx context.Context, product *domain.Product) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM products WHERE product_id = ?", product.ProductID).Scan(&exists)
		if err == nil {
			return ErrAlreadyExists
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("failed to check product: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO products (product_id, name, price, stock, weight_grams, length, width, height,
			                      category_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			product.ProductID, product.Name, product.Price, product.Stock, product.WeightGrams,
			product.Dimensions.Length, product.Dimensions.Width, product.Dimensions.Height,
			product.CategoryID, product.CreatedAt, product.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert product: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	return getProduct(ctx, s.db, productID)
}

func getProduct(ctx context.Context, q querier, productID string) (*domain.Product, error) {
	var p domain.Product
	err := q.QueryRowContext(ctx, `
		SELECT product_id, name, price, stock, weight_grams, length, width, height,
		       category_id, created_at, updated_at
		FROM products WHERE product_id = ?`, productID).Scan(
		&p.ProductID, &p.Name, &p.Price, &p.Stock, &p.WeightGrams,
		&p.Dimensions.Length, &p.Dimensions.Width, &p.Dimensions.Height,
		&p.CategoryID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

func (s *SQLiteStore) UpdatePrice(ctx context.Context, productID string, price decimal.Decimal) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE products SET price = ?, updated_at = ? WHERE product_id = ?",
		price, time.Now().UTC(), productID)
	if err != nil {
		return fmt.Errorf("failed to update price: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (s *SQLiteStore) EnsureCustomer(ctx context.Context, customerID string, now time.Time) (*domain.Customer, bool, error) {
	var (
		customer domain.Customer
		created  bool
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO customers (customer_id, created_at) VALUES (?, ?) ON CONFLICT (customer_id) DO NOTHING",
			customerID, now)
		if err != nil {
			return fmt.Errorf("failed to insert customer: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		created = n == 1
		return tx.QueryRowContext(ctx,
			"SELECT customer_id, created_at FROM customers WHERE customer_id = ?", customerID).
			Scan(&customer.CustomerID, &customer.CreatedAt)
	})
	if err != nil {
		return nil, false, err
	}
	return &customer, created, nil
}
