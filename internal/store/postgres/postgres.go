package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"lokapos/agent/internal/domain"
	"lokapos/agent/internal/store"
)

// Store is the durable LocalStore for terminals that run a local PostgreSQL.
// Schema: products(id, name, description, cost_price_cents,
// selling_price_cents, quantity, is_active, created_at, updated_at),
// transactions(id, items jsonb, total_cents, total_cost_cents, profit_cents,
// ts, synced), drafts(id, note, items jsonb, total_cents, created_at).
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

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	query := `
		SELECT id, name, description, cost_price_cents, selling_price_cents, quantity, is_active, created_at, updated_at
		FROM products
		ORDER BY name
	`
	if activeOnly {
		query = `
			SELECT id, name, description, cost_price_cents, selling_price_cents, quantity, is_active, created_at, updated_at
			FROM products
			WHERE is_active = true
			ORDER BY name
		`
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, cost_price_cents, selling_price_cents, quantity, is_active, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, cost_price_cents, selling_price_cents, quantity, is_active, created_at, updated_at
		FROM products
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) PutProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.Quantity < 0 {
		return nil, store.ErrInvalidRecord
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, description, cost_price_cents, selling_price_cents, quantity, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			cost_price_cents = EXCLUDED.cost_price_cents,
			selling_price_cents = EXCLUDED.selling_price_cents,
			quantity = EXCLUDED.quantity,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`, product.ID, product.Name, product.Description, product.CostPriceCents, product.SellingPriceCents,
		product.Quantity, product.IsActive, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		return nil, err
	}

	saved := product
	return &saved, nil
}

func (s *Store) BulkPutProducts(ctx context.Context, products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range products {
		if p.ID == "" {
			return store.ErrInvalidRecord
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO products (id, name, description, cost_price_cents, selling_price_cents, quantity, is_active, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				description = EXCLUDED.description,
				cost_price_cents = EXCLUDED.cost_price_cents,
				selling_price_cents = EXCLUDED.selling_price_cents,
				quantity = EXCLUDED.quantity,
				is_active = EXCLUDED.is_active,
				updated_at = EXCLUDED.updated_at
		`, p.ID, p.Name, p.Description, p.CostPriceCents, p.SellingPriceCents, p.Quantity, p.IsActive, p.CreatedAt, p.UpdatedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) CountProducts(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM products`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) CreateSale(ctx context.Context, saleTx domain.Transaction, deductions map[string]int) (*domain.Transaction, error) {
	if saleTx.ID == "" || len(saleTx.Items) == 0 {
		return nil, store.ErrInvalidRecord
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// Lock and validate every affected row before any deduction.
	quantities := make(map[string]int, len(deductions))
	for id := range deductions {
		var qty int
		err := tx.QueryRowContext(ctx, `
			SELECT quantity FROM products WHERE id = $1 FOR UPDATE
		`, id).Scan(&qty)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, store.ErrNotFound
			}
			return nil, err
		}
		quantities[id] = qty
	}
	for id, deduct := range deductions {
		if deduct < 1 {
			return nil, store.ErrInvalidRecord
		}
		if quantities[id] < deduct {
			return nil, store.ErrInsufficientStock
		}
	}

	for id, deduct := range deductions {
		if _, err := tx.ExecContext(ctx, `
			UPDATE products SET quantity = quantity - $2, updated_at = $3 WHERE id = $1
		`, id, deduct, saleTx.Timestamp); err != nil {
			return nil, err
		}
	}

	itemsJSON, err := json.Marshal(saleTx.Items)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (id, items, total_cents, total_cost_cents, profit_cents, ts, synced)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, saleTx.ID, itemsJSON, saleTx.TotalCents, saleTx.TotalCostCents, saleTx.ProfitCents, saleTx.Timestamp, saleTx.Synced); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := saleTx
	return &created, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, items, total_cents, total_cost_cents, profit_cents, ts, synced
		FROM transactions
		WHERE id = $1
	`, id)
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &tx, nil
}

func (s *Store) ListTransactions(ctx context.Context, limit int) ([]domain.Transaction, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, items, total_cents, total_cost_cents, profit_cents, ts, synced
		FROM transactions
		ORDER BY ts DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (s *Store) ListUnsyncedTransactions(ctx context.Context) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, items, total_cents, total_cost_cents, profit_cents, ts, synced
		FROM transactions
		WHERE synced = false
		ORDER BY ts ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (s *Store) CountUnsyncedTransactions(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM transactions WHERE synced = false`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) MarkTransactionsSynced(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions SET synced = true WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected != int64(len(ids)) {
		return fmt.Errorf("%w: marked %d of %d transactions", store.ErrNotFound, affected, len(ids))
	}
	return nil
}

func (s *Store) BulkPutTransactions(ctx context.Context, txs []domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, t := range txs {
		if t.ID == "" {
			return store.ErrInvalidRecord
		}
		itemsJSON, err := json.Marshal(t.Items)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO transactions (id, items, total_cents, total_cost_cents, profit_cents, ts, synced)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (id) DO UPDATE SET synced = EXCLUDED.synced
		`, t.ID, itemsJSON, t.TotalCents, t.TotalCostCents, t.ProfitCents, t.Timestamp, t.Synced); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) CreateDraft(ctx context.Context, draft domain.Draft) (*domain.Draft, error) {
	if draft.ID == "" || len(draft.Items) == 0 {
		return nil, store.ErrInvalidRecord
	}

	itemsJSON, err := json.Marshal(draft.Items)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO drafts (id, note, items, total_cents, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, draft.ID, draft.Note, itemsJSON, draft.TotalCents, draft.CreatedAt); err != nil {
		return nil, err
	}

	created := draft
	return &created, nil
}

func (s *Store) ListDrafts(ctx context.Context) ([]domain.Draft, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, note, items, total_cents, created_at
		FROM drafts
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	drafts := make([]domain.Draft, 0, 16)
	for rows.Next() {
		var d domain.Draft
		var itemsJSON []byte
		if err := rows.Scan(&d.ID, &d.Note, &itemsJSON, &d.TotalCents, &d.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(itemsJSON, &d.Items); err != nil {
			return nil, err
		}
		d.CreatedAt = d.CreatedAt.UTC()
		drafts = append(drafts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return drafts, nil
}

func (s *Store) PopDraft(ctx context.Context, id string) (*domain.Draft, error) {
	row := s.db.QueryRowContext(ctx, `
		DELETE FROM drafts WHERE id = $1
		RETURNING id, note, items, total_cents, created_at
	`, id)

	var d domain.Draft
	var itemsJSON []byte
	if err := row.Scan(&d.ID, &d.Note, &itemsJSON, &d.TotalCents, &d.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(itemsJSON, &d.Items); err != nil {
		return nil, err
	}
	d.CreatedAt = d.CreatedAt.UTC()
	return &d, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.CostPriceCents, &p.SellingPriceCents,
		&p.Quantity, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Product{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func scanTransaction(row rowScanner) (domain.Transaction, error) {
	var t domain.Transaction
	var itemsJSON []byte
	err := row.Scan(&t.ID, &itemsJSON, &t.TotalCents, &t.TotalCostCents, &t.ProfitCents, &t.Timestamp, &t.Synced)
	if err != nil {
		return domain.Transaction{}, err
	}
	if err := json.Unmarshal(itemsJSON, &t.Items); err != nil {
		return domain.Transaction{}, err
	}
	t.Timestamp = t.Timestamp.UTC()
	return t, nil
}

func collectTransactions(rows *sql.Rows) ([]domain.Transaction, error) {
	txs := make([]domain.Transaction, 0, 32)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return txs, nil
}
