package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/agentmesh/agentpay/pkg/types"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists receipts in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an open database handle and creates the receipts
// table if needed.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenSQLiteStore opens (or creates) the database at path and returns a
// store backed by it.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}
	return NewSQLiteStore(db)
}

func (s *SQLiteStore) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS receipts (
        receipt_id TEXT PRIMARY KEY,
        service_id TEXT NOT NULL,
        resource TEXT NOT NULL,
        amount TEXT NOT NULL,
        asset TEXT NOT NULL,
        payer TEXT,
        pay_to TEXT NOT NULL,
        tx_hash TEXT,
        status TEXT NOT NULL,
        created_at DATETIME NOT NULL
    );`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *SQLiteStore) Record(ctx context.Context, r *types.PaymentReceipt) error {
	query := `INSERT INTO receipts (
		receipt_id, service_id, resource, amount, asset, payer, pay_to, tx_hash, status, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	createdAt := r.CreatedAt.UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.ServiceID, r.Resource, r.Amount, r.Asset, r.Payer, r.PayTo, r.TxHash, r.Status, createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*types.PaymentReceipt, error) {
	query := `
        SELECT receipt_id, service_id, resource, amount, asset, payer, pay_to, tx_hash, status, created_at
        FROM receipts
        WHERE receipt_id = ?
    `
	row := s.db.QueryRowContext(ctx, query, id)
	r, err := scanReceipt(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]*types.PaymentReceipt, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
        SELECT receipt_id, service_id, resource, amount, asset, payer, pay_to, tx_hash, status, created_at
        FROM receipts
        ORDER BY created_at DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var receipts []*types.PaymentReceipt
	for rows.Next() {
		r, err := scanReceipt(rows.Scan)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return receipts, nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanReceipt(scan func(dest ...any) error) (*types.PaymentReceipt, error) {
	var (
		receiptID string
		serviceID string
		resource  string
		amount    string
		asset     string
		payer     sql.NullString
		payTo     string
		txHash    sql.NullString
		status    string
		createdAt string
	)
	if err := scan(&receiptID, &serviceID, &resource, &amount, &asset, &payer, &payTo, &txHash, &status, &createdAt); err != nil {
		return nil, err
	}

	return &types.PaymentReceipt{
		ID:        receiptID,
		ServiceID: serviceID,
		Resource:  resource,
		Amount:    amount,
		Asset:     asset,
		Payer:     payer.String,
		PayTo:     payTo,
		TxHash:    txHash.String,
		Status:    status,
		CreatedAt: parseTime(createdAt),
	}, nil
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}

var _ Store = (*SQLiteStore)(nil)
