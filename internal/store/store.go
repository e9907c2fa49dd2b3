package store

import (
	"context"
	"errors"

	"lokapos/agent/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidRecord     = errors.New("invalid record")
)

// LocalStore is the on-device authoritative store. It is mutated only by the
// checkout engine (sales) and the sync engine (sync flags, pulled data).
type LocalStore interface {
	ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	PutProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	BulkPutProducts(ctx context.Context, products []domain.Product) error
	CountProducts(ctx context.Context) (int, error)

	// CreateSale writes the transaction and applies the quantity deductions in
	// one atomic unit. It re-validates stock under the store's own exclusion so
	// concurrent checkouts cannot oversell; on any failure nothing is written.
	CreateSale(ctx context.Context, tx domain.Transaction, deductions map[string]int) (*domain.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, limit int) ([]domain.Transaction, error)
	ListUnsyncedTransactions(ctx context.Context) ([]domain.Transaction, error)
	CountUnsyncedTransactions(ctx context.Context) (int, error)
	MarkTransactionsSynced(ctx context.Context, ids []string) error
	BulkPutTransactions(ctx context.Context, txs []domain.Transaction) error

	CreateDraft(ctx context.Context, draft domain.Draft) (*domain.Draft, error)
	ListDrafts(ctx context.Context) ([]domain.Draft, error)
	// PopDraft removes the draft and returns it; the removal and the read are
	// one atomic operation so a draft can be resumed at most once.
	PopDraft(ctx context.Context, id string) (*domain.Draft, error)
}
