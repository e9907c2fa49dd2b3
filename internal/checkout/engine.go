package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"lokapos/agent/internal/domain"
	"lokapos/agent/internal/store"
	"lokapos/agent/internal/xid"
)

var (
	ErrEmptyCart   = errors.New("empty cart")
	ErrInvalidLine = errors.New("invalid cart line")
)

// Receipts is the receipt-generation collaborator. Invoked fire-and-forget
// after a sale commits; its failure never rolls the sale back.
type Receipts interface {
	Generate(tx domain.Transaction) (string, error)
}

// Engine applies a cart to inventory and produces the immutable transaction
// record. All validation happens before any mutation; the write plus the
// quantity deductions are one atomic store operation.
type Engine struct {
	local    store.LocalStore
	receipts Receipts
	clock    func() time.Time
	logger   *zap.Logger
}

func New(local store.LocalStore, receipts Receipts, clock func() time.Time, logger *zap.Logger) *Engine {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		local:    local,
		receipts: receipts,
		clock:    clock,
		logger:   logger,
	}
}

func (e *Engine) Create(ctx context.Context, lines []domain.CartLine) (*domain.Transaction, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	// Aggregate requested quantities per product so a cart with the same
	// product on two lines is checked against the combined demand.
	requested := make(map[string]int, len(lines))
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		if line.ProductID == "" || line.Qty < 1 {
			return nil, ErrInvalidLine
		}
		if line.SellingPriceCents < 0 || line.CostPriceCents < 0 {
			return nil, ErrInvalidLine
		}
		if _, seen := requested[line.ProductID]; !seen {
			ids = append(ids, line.ProductID)
		}
		requested[line.ProductID] += line.Qty
	}

	products, err := e.local.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	// Full validation pass over every line before any mutation.
	for _, id := range ids {
		product, exists := products[id]
		if !exists {
			return nil, fmt.Errorf("product %s: %w", id, store.ErrNotFound)
		}
		if product.Quantity < requested[id] {
			return nil, fmt.Errorf("product %s: %w", id, store.ErrInsufficientStock)
		}
	}

	// Totals come from the line snapshots, never re-read from the product.
	items := make([]domain.TransactionItem, 0, len(lines))
	for _, line := range lines {
		name := line.Name
		if name == "" {
			name = products[line.ProductID].Name
		}
		items = append(items, domain.TransactionItem{
			ProductID:         line.ProductID,
			Name:              name,
			SellingPriceCents: line.SellingPriceCents,
			CostPriceCents:    line.CostPriceCents,
			Qty:               line.Qty,
		})
	}

	tx := domain.NewTransaction(xid.New("tx"), items, e.clock())

	created, err := e.local.CreateSale(ctx, tx, requested)
	if err != nil {
		return nil, err
	}

	if e.receipts != nil {
		go e.printReceipt(*created)
	}

	e.logger.Info("sale recorded",
		zap.String("transaction_id", created.ID),
		zap.Int64("total_cents", created.TotalCents),
		zap.Int("items", len(created.Items)))

	return created, nil
}

func (e *Engine) printReceipt(tx domain.Transaction) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("receipt generation panicked", zap.Any("panic", r), zap.String("transaction_id", tx.ID))
		}
	}()
	if _, err := e.receipts.Generate(tx); err != nil {
		e.logger.Warn("receipt generation failed", zap.Error(err), zap.String("transaction_id", tx.ID))
	}
}
