package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/glebarez/go-sqlite"
)

// OrderStore holds billing orders and their refund status.
type OrderStore struct {
	DB *sql.DB
}

func NewOrderStore(dbPath string) (*OrderStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create billing db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	query := `CREATE TABLE IF NOT EXISTS orders (
		order_id TEXT PRIMARY KEY,
		refund_status TEXT,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := db.Exec(query); err != nil {
		return nil, err
	}

	return &OrderStore{DB: db}, nil
}

// Seed inserts demo orders when the table is empty.
func (o *OrderStore) Seed() error {
	var count int
	if err := o.DB.QueryRow(`SELECT COUNT(*) FROM orders`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	_, err := o.DB.Exec(`INSERT INTO orders (order_id, refund_status) VALUES
		('ORD-123', 'Refund Processed'),
		('ORD-456', 'Pending Manager Approval'),
		('ORD-999', 'Rejected: Item damaged by user')`)
	return err
}

// GetRefundStatus looks up one order. The second return is false when
// the order does not exist.
func (o *OrderStore) GetRefundStatus(orderID string) (string, bool, error) {
	var status string
	err := o.DB.QueryRow(`SELECT refund_status FROM orders WHERE order_id = ?`, orderID).Scan(&status)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return status, true, nil
}

func (o *OrderStore) Close() error {
	return o.DB.Close()
}
