package remote

import (
	"context"
	"fmt"
	"time"

	"lokapos/agent/internal/domain"
)

// Wire records use the remote side's snake_case column names and RFC3339
// date strings. Translation between local values and these records happens
// here, in both directions, and nowhere else.

type productRecord struct {
	ID                string `json:"id"`
	OwnerID           string `json:"owner_id"`
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	CostPriceCents    int64  `json:"cost_price_cents"`
	SellingPriceCents int64  `json:"selling_price_cents"`
	Quantity          int    `json:"quantity"`
	IsActive          bool   `json:"is_active"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
}

type transactionItemRecord struct {
	ProductID         string `json:"product_id"`
	Name              string `json:"name"`
	SellingPriceCents int64  `json:"selling_price_cents"`
	CostPriceCents    int64  `json:"cost_price_cents"`
	Qty               int    `json:"qty"`
}

type transactionRecord struct {
	ID             string                  `json:"id"`
	OwnerID        string                  `json:"owner_id"`
	Items          []transactionItemRecord `json:"items"`
	TotalCents     int64                   `json:"total_cents"`
	TotalCostCents int64                   `json:"total_cost_cents"`
	ProfitCents    int64                   `json:"profit_cents"`
	Timestamp      string                  `json:"ts"`
	Synced         bool                    `json:"synced"`
}

func toProductRecord(ownerID string, p domain.Product) productRecord {
	return productRecord{
		ID:                p.ID,
		OwnerID:           ownerID,
		Name:              p.Name,
		Description:       p.Description,
		CostPriceCents:    p.CostPriceCents,
		SellingPriceCents: p.SellingPriceCents,
		Quantity:          p.Quantity,
		IsActive:          p.IsActive,
		CreatedAt:         p.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:         p.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func fromProductRecord(r productRecord) (domain.Product, error) {
	createdAt, err := parseWireTime(r.CreatedAt)
	if err != nil {
		return domain.Product{}, fmt.Errorf("product %s created_at: %w", r.ID, err)
	}
	updatedAt, err := parseWireTime(r.UpdatedAt)
	if err != nil {
		return domain.Product{}, fmt.Errorf("product %s updated_at: %w", r.ID, err)
	}
	return domain.Product{
		ID:                r.ID,
		Name:              r.Name,
		Description:       r.Description,
		CostPriceCents:    r.CostPriceCents,
		SellingPriceCents: r.SellingPriceCents,
		Quantity:          r.Quantity,
		IsActive:          r.IsActive,
		CreatedAt:         createdAt,
		UpdatedAt:         updatedAt,
	}, nil
}

func toTransactionRecord(ownerID string, tx domain.Transaction) transactionRecord {
	items := make([]transactionItemRecord, 0, len(tx.Items))
	for _, item := range tx.Items {
		items = append(items, transactionItemRecord(item))
	}
	return transactionRecord{
		ID:             tx.ID,
		OwnerID:        ownerID,
		Items:          items,
		TotalCents:     tx.TotalCents,
		TotalCostCents: tx.TotalCostCents,
		ProfitCents:    tx.ProfitCents,
		Timestamp:      tx.Timestamp.UTC().Format(time.RFC3339Nano),
		Synced:         tx.Synced,
	}
}

func fromTransactionRecord(r transactionRecord) (domain.Transaction, error) {
	ts, err := parseWireTime(r.Timestamp)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s ts: %w", r.ID, err)
	}
	items := make([]domain.TransactionItem, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, domain.TransactionItem(item))
	}
	return domain.Transaction{
		ID:             r.ID,
		Items:          items,
		TotalCents:     r.TotalCents,
		TotalCostCents: r.TotalCostCents,
		ProfitCents:    r.ProfitCents,
		Timestamp:      ts,
		Synced:         r.Synced,
	}, nil
}

func parseWireTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func (c *Client) UpsertProducts(ctx context.Context, ownerID string, products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}
	records := make([]productRecord, 0, len(products))
	for _, p := range products {
		records = append(records, toProductRecord(ownerID, p))
	}
	return c.upsert(ctx, "products", records)
}

func (c *Client) SelectProducts(ctx context.Context, ownerID string, activeOnly bool) ([]domain.Product, error) {
	params := map[string]string{"owner_id": "eq." + ownerID}
	if activeOnly {
		params["is_active"] = "eq.true"
	}

	var records []productRecord
	if err := c.selectRows(ctx, "products", params, &records); err != nil {
		return nil, err
	}

	products := make([]domain.Product, 0, len(records))
	for _, r := range records {
		p, err := fromProductRecord(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		products = append(products, p)
	}
	return products, nil
}

func (c *Client) UpsertTransactions(ctx context.Context, ownerID string, txs []domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	records := make([]transactionRecord, 0, len(txs))
	for _, tx := range txs {
		records = append(records, toTransactionRecord(ownerID, tx))
	}
	return c.upsert(ctx, "transactions", records)
}

func (c *Client) SelectTransactions(ctx context.Context, ownerID string) ([]domain.Transaction, error) {
	params := map[string]string{"owner_id": "eq." + ownerID, "order": "ts.asc"}

	var records []transactionRecord
	if err := c.selectRows(ctx, "transactions", params, &records); err != nil {
		return nil, err
	}

	txs := make([]domain.Transaction, 0, len(records))
	for _, r := range records {
		tx, err := fromTransactionRecord(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}
