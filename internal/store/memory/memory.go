package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"lokapos/agent/internal/domain"
	"lokapos/agent/internal/store"
)

// Store is an in-memory LocalStore used when DATABASE_URL is unset and
// throughout the test suite. All entity mutations are serialized behind a
// single lock, which is what makes CreateSale's check-then-deduct safe.
type Store struct {
	mu           sync.RWMutex
	products     map[string]domain.Product
	transactions map[string]domain.Transaction
	txOrder      []string
	drafts       map[string]domain.Draft
}

func New() *Store {
	return &Store{
		products:     make(map[string]domain.Product),
		transactions: make(map[string]domain.Transaction),
		txOrder:      make([]string, 0, 64),
		drafts:       make(map[string]domain.Draft),
	}
}

// NewSeeded returns a store preloaded with a small demo catalog.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()
	seed := []domain.Product{
		domain.NewProduct("prod-mie-01", "Mie Goreng Instan", "grocery", 2600, 3500, 120, now),
		domain.NewProduct("prod-telur-01", "Telur 10 Butir", "grocery", 23000, 26500, 80, now),
		domain.NewProduct("prod-susu-01", "Susu UHT 1L", "dairy", 13600, 18900, 60, now),
		domain.NewProduct("prod-kopi-01", "Kopi Sachet", "beverage", 1700, 2600, 200, now),
		domain.NewProduct("prod-roti-01", "Roti Tawar", "bakery", 12400, 17800, 40, now),
		domain.NewProduct("prod-sabun-01", "Sabun Mandi", "household", 5000, 7400, 90, now),
	}
	for _, p := range seed {
		s.products[p.ID] = p
	}
	return s
}

func (s *Store) ListProducts(_ context.Context, activeOnly bool) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if activeOnly && !p.IsActive {
			continue
		}
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		return strings.Compare(a.Name, b.Name)
	})

	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := product
	return &copied, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if product, exists := s.products[id]; exists {
			result[id] = product
		}
	}
	return result, nil
}

func (s *Store) PutProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" {
		return nil, store.ErrInvalidRecord
	}
	if product.Quantity < 0 || product.SellingPriceCents < 0 || product.CostPriceCents < 0 {
		return nil, store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.products[product.ID] = product
	saved := product
	return &saved, nil
}

func (s *Store) BulkPutProducts(_ context.Context, products []domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range products {
		if p.ID == "" {
			return store.ErrInvalidRecord
		}
		s.products[p.ID] = p
	}
	return nil
}

func (s *Store) CountProducts(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products), nil
}

func (s *Store) CreateSale(_ context.Context, tx domain.Transaction, deductions map[string]int) (*domain.Transaction, error) {
	if tx.ID == "" || len(tx.Items) == 0 {
		return nil, store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transactions[tx.ID]; exists {
		return nil, store.ErrInvalidRecord
	}

	// Validate every deduction before touching anything: all-or-nothing.
	for id, qty := range deductions {
		if qty < 1 {
			return nil, store.ErrInvalidRecord
		}
		product, exists := s.products[id]
		if !exists {
			return nil, store.ErrNotFound
		}
		if product.Quantity < qty {
			return nil, store.ErrInsufficientStock
		}
	}

	for id, qty := range deductions {
		product := s.products[id]
		product.Quantity -= qty
		product.Touch(tx.Timestamp)
		s.products[id] = product
	}

	tx.Items = slices.Clone(tx.Items)
	s.transactions[tx.ID] = tx
	s.txOrder = append(s.txOrder, tx.ID)

	created := tx
	return &created, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, exists := s.transactions[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	tx.Items = slices.Clone(tx.Items)
	return &tx, nil
}

func (s *Store) ListTransactions(_ context.Context, limit int) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Transaction, 0, len(s.txOrder))
	for i := len(s.txOrder) - 1; i >= 0; i-- {
		if limit > 0 && len(result) >= limit {
			break
		}
		tx := s.transactions[s.txOrder[i]]
		tx.Items = slices.Clone(tx.Items)
		result = append(result, tx)
	}
	return result, nil
}

func (s *Store) ListUnsyncedTransactions(_ context.Context) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Transaction, 0, 16)
	for _, id := range s.txOrder {
		tx := s.transactions[id]
		if tx.Synced {
			continue
		}
		tx.Items = slices.Clone(tx.Items)
		result = append(result, tx)
	}
	return result, nil
}

func (s *Store) CountUnsyncedTransactions(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, tx := range s.transactions {
		if !tx.Synced {
			count++
		}
	}
	return count, nil
}

func (s *Store) MarkTransactionsSynced(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		tx, exists := s.transactions[id]
		if !exists {
			return store.ErrNotFound
		}
		tx.Synced = true
		s.transactions[id] = tx
	}
	return nil
}

func (s *Store) BulkPutTransactions(_ context.Context, txs []domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range txs {
		if tx.ID == "" {
			return store.ErrInvalidRecord
		}
		if _, exists := s.transactions[tx.ID]; !exists {
			s.txOrder = append(s.txOrder, tx.ID)
		}
		tx.Items = slices.Clone(tx.Items)
		s.transactions[tx.ID] = tx
	}
	return nil
}

func (s *Store) CreateDraft(_ context.Context, draft domain.Draft) (*domain.Draft, error) {
	if draft.ID == "" || len(draft.Items) == 0 {
		return nil, store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	draft.Items = slices.Clone(draft.Items)
	s.drafts[draft.ID] = draft
	created := draft
	return &created, nil
}

func (s *Store) ListDrafts(_ context.Context) ([]domain.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	drafts := make([]domain.Draft, 0, len(s.drafts))
	for _, d := range s.drafts {
		d.Items = slices.Clone(d.Items)
		drafts = append(drafts, d)
	}
	slices.SortFunc(drafts, func(a, b domain.Draft) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(a.ID, b.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return drafts, nil
}

func (s *Store) PopDraft(_ context.Context, id string) (*domain.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft, exists := s.drafts[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	delete(s.drafts, id)
	popped := draft
	return &popped, nil
}
