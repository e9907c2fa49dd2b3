package domain

import "time"

// Product is the locally authoritative catalog/inventory record. The remote
// store keeps a secondary copy per owner; reconciliation is last-writer-wins
// on UpdatedAt at whole-record granularity.
type Product struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description,omitempty"`
	CostPriceCents    int64     `json:"cost_price_cents"`
	SellingPriceCents int64     `json:"selling_price_cents"`
	Quantity          int       `json:"quantity"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// NewProduct stamps CreatedAt/UpdatedAt and the active flag before the value
// ever reaches a store. Stores never stamp fields themselves.
func NewProduct(id, name, description string, costCents, sellingCents int64, quantity int, now time.Time) Product {
	now = now.UTC()
	return Product{
		ID:                id,
		Name:              name,
		Description:       description,
		CostPriceCents:    costCents,
		SellingPriceCents: sellingCents,
		Quantity:          quantity,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Touch bumps UpdatedAt. Every local mutation of a product must go through it
// so last-writer-wins reconciliation stays meaningful.
func (p *Product) Touch(now time.Time) {
	p.UpdatedAt = now.UTC()
}

// CartLine is one line of a cart as assembled by the UI. Prices travel on the
// line because they become the immutable snapshot inside the transaction.
type CartLine struct {
	ProductID         string `json:"product_id" validate:"required"`
	Name              string `json:"name"`
	SellingPriceCents int64  `json:"selling_price_cents" validate:"gte=0"`
	CostPriceCents    int64  `json:"cost_price_cents" validate:"gte=0"`
	Qty               int    `json:"qty" validate:"gte=1"`
}

// TransactionItem is a price snapshot embedded in a transaction. Once written
// it is never recomputed from the live product.
type TransactionItem struct {
	ProductID         string `json:"product_id"`
	Name              string `json:"name"`
	SellingPriceCents int64  `json:"selling_price_cents"`
	CostPriceCents    int64  `json:"cost_price_cents"`
	Qty               int    `json:"qty"`
}

type Transaction struct {
	ID             string            `json:"id"`
	Items          []TransactionItem `json:"items"`
	TotalCents     int64             `json:"total_cents"`
	TotalCostCents int64             `json:"total_cost_cents"`
	ProfitCents    int64             `json:"profit_cents"`
	Timestamp      time.Time         `json:"timestamp"`
	Synced         bool              `json:"synced"`
}

// NewTransaction computes totals from the item snapshots and stamps the
// creation time. Synced starts false and only ever transitions to true.
func NewTransaction(id string, items []TransactionItem, now time.Time) Transaction {
	var total, totalCost int64
	for _, item := range items {
		total += item.SellingPriceCents * int64(item.Qty)
		totalCost += item.CostPriceCents * int64(item.Qty)
	}
	return Transaction{
		ID:             id,
		Items:          items,
		TotalCents:     total,
		TotalCostCents: totalCost,
		ProfitCents:    total - totalCost,
		Timestamp:      now.UTC(),
		Synced:         false,
	}
}

// Draft is a parked cart. Local-only: drafts are never pushed to the remote
// store and are deleted atomically when resumed.
type Draft struct {
	ID         string     `json:"id"`
	Note       string     `json:"note,omitempty"`
	Items      []CartLine `json:"items"`
	TotalCents int64      `json:"total_cents"`
	CreatedAt  time.Time  `json:"created_at"`
}

func NewDraft(id, note string, items []CartLine, now time.Time) Draft {
	var total int64
	for _, line := range items {
		total += line.SellingPriceCents * int64(line.Qty)
	}
	return Draft{
		ID:         id,
		Note:       note,
		Items:      items,
		TotalCents: total,
		CreatedAt:  now.UTC(),
	}
}

// SyncReport is the result of one sync cycle. Failures are captured here
// rather than propagated; the next periodic tick is the retry mechanism.
type SyncReport struct {
	Success            bool      `json:"success"`
	Error              string    `json:"error,omitempty"`
	PushedTransactions int       `json:"pushed_transactions"`
	PulledTransactions int       `json:"pulled_transactions"`
	PulledProducts     int       `json:"pulled_products"`
	ReconciledProducts int       `json:"reconciled_products"`
	InitialPull        bool      `json:"initial_pull"`
	StartedAt          time.Time `json:"started_at"`
	FinishedAt         time.Time `json:"finished_at"`
}

// SyncStatus is the observable status surfaced to the UI. Offline operation
// never blocks the interactive path; this is the only signal the user sees.
type SyncStatus struct {
	Online              bool        `json:"online"`
	Syncing             bool        `json:"syncing"`
	PendingTransactions int         `json:"pending_transactions"`
	LastReport          *SyncReport `json:"last_report,omitempty"`
}

type LoginRequest struct {
	Device   string `json:"device" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	OwnerID     string `json:"owner_id"`
	ExpiresAt   string `json:"expires_at"`
}

// Actor is the authenticated device session attached to request contexts.
type Actor struct {
	Device  string
	OwnerID string
}

type CheckoutRequest struct {
	Lines []CartLine `json:"lines" validate:"required,min=1,dive"`
}

type CheckoutResponse struct {
	Transaction Transaction `json:"transaction"`
}

type DraftCreateRequest struct {
	Note  string     `json:"note"`
	Items []CartLine `json:"items" validate:"required,min=1,dive"`
}

type DraftResponse struct {
	Draft Draft `json:"draft"`
}

type DraftListResponse struct {
	Items []Draft `json:"items"`
}

type ProductListResponse struct {
	Products []Product `json:"products"`
}

type ProductUpsertRequest struct {
	ID                string `json:"id"`
	Name              string `json:"name" validate:"required"`
	Description       string `json:"description"`
	CostPriceCents    int64  `json:"cost_price_cents" validate:"gte=0"`
	SellingPriceCents int64  `json:"selling_price_cents" validate:"gte=1"`
	Quantity          int    `json:"quantity" validate:"gte=0"`
	IsActive          *bool  `json:"is_active,omitempty"`
}
