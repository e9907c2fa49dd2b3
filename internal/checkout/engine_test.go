package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"lokapos/agent/internal/domain"
	"lokapos/agent/internal/store"
	"lokapos/agent/internal/store/memory"
)

func seedProduct(t *testing.T, local *memory.Store, id string, costCents, sellCents int64, qty int) domain.Product {
	t.Helper()
	product := domain.NewProduct(id, "Product "+id, "", costCents, sellCents, qty, time.Now())
	if _, err := local.PutProduct(context.Background(), product); err != nil {
		t.Fatalf("seed product %s: %v", id, err)
	}
	return product
}

func TestCreateComputesTotalsAndDeductsStock(t *testing.T) {
	local := memory.New()
	seedProduct(t, local, "p1", 1500, 2500, 50)
	seedProduct(t, local, "p2", 800, 1500, 30)

	engine := New(local, nil, nil, nil)

	tx, err := engine.Create(context.Background(), []domain.CartLine{
		{ProductID: "p1", SellingPriceCents: 2500, CostPriceCents: 1500, Qty: 2},
		{ProductID: "p2", SellingPriceCents: 1500, CostPriceCents: 800, Qty: 1},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if tx.TotalCents != 6500 {
		t.Fatalf("total = %d, want 6500", tx.TotalCents)
	}
	if tx.TotalCostCents != 3800 {
		t.Fatalf("total cost = %d, want 3800", tx.TotalCostCents)
	}
	if tx.ProfitCents != 2700 {
		t.Fatalf("profit = %d, want 2700", tx.ProfitCents)
	}
	if tx.Synced {
		t.Fatalf("new transaction must start unsynced")
	}
	if len(tx.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(tx.Items))
	}

	p1, err := local.GetProduct(context.Background(), "p1")
	if err != nil {
		t.Fatalf("GetProduct p1: %v", err)
	}
	if p1.Quantity != 48 {
		t.Fatalf("p1 quantity = %d, want 48", p1.Quantity)
	}
	p2, err := local.GetProduct(context.Background(), "p2")
	if err != nil {
		t.Fatalf("GetProduct p2: %v", err)
	}
	if p2.Quantity != 29 {
		t.Fatalf("p2 quantity = %d, want 29", p2.Quantity)
	}
}

func TestCreateInsufficientStockLeavesInventoryUntouched(t *testing.T) {
	local := memory.New()
	seedProduct(t, local, "p1", 1500, 2500, 5)

	engine := New(local, nil, nil, nil)

	_, err := engine.Create(context.Background(), []domain.CartLine{
		{ProductID: "p1", SellingPriceCents: 2500, CostPriceCents: 1500, Qty: 10},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}

	p1, err := local.GetProduct(context.Background(), "p1")
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if p1.Quantity != 5 {
		t.Fatalf("p1 quantity = %d, want 5 (unchanged)", p1.Quantity)
	}

	count, err := local.CountUnsyncedTransactions(context.Background())
	if err != nil {
		t.Fatalf("CountUnsyncedTransactions: %v", err)
	}
	if count != 0 {
		t.Fatalf("unsynced transactions = %d, want 0", count)
	}
}

func TestCreateEmptyCart(t *testing.T) {
	engine := New(memory.New(), nil, nil, nil)

	if _, err := engine.Create(context.Background(), nil); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("err = %v, want ErrEmptyCart", err)
	}
	if _, err := engine.Create(context.Background(), []domain.CartLine{}); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("err = %v, want ErrEmptyCart", err)
	}
}

func TestCreateUnknownProduct(t *testing.T) {
	local := memory.New()
	seedProduct(t, local, "p1", 1500, 2500, 50)

	engine := New(local, nil, nil, nil)

	_, err := engine.Create(context.Background(), []domain.CartLine{
		{ProductID: "p1", SellingPriceCents: 2500, CostPriceCents: 1500, Qty: 1},
		{ProductID: "ghost", SellingPriceCents: 100, CostPriceCents: 50, Qty: 1},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	// The valid line must not have been applied either.
	p1, _ := local.GetProduct(context.Background(), "p1")
	if p1.Quantity != 50 {
		t.Fatalf("p1 quantity = %d, want 50 (unchanged)", p1.Quantity)
	}
}

func TestCreateRejectsInvalidLines(t *testing.T) {
	engine := New(memory.New(), nil, nil, nil)

	cases := []domain.CartLine{
		{ProductID: "", SellingPriceCents: 100, CostPriceCents: 50, Qty: 1},
		{ProductID: "p1", SellingPriceCents: 100, CostPriceCents: 50, Qty: 0},
		{ProductID: "p1", SellingPriceCents: -1, CostPriceCents: 50, Qty: 1},
		{ProductID: "p1", SellingPriceCents: 100, CostPriceCents: -1, Qty: 1},
	}
	for i, line := range cases {
		if _, err := engine.Create(context.Background(), []domain.CartLine{line}); !errors.Is(err, ErrInvalidLine) {
			t.Fatalf("case %d: err = %v, want ErrInvalidLine", i, err)
		}
	}
}

func TestCreateAggregatesDuplicateLines(t *testing.T) {
	local := memory.New()
	seedProduct(t, local, "p1", 1500, 2500, 3)

	engine := New(local, nil, nil, nil)

	// Two lines of the same product demand 4 units combined; stock is 3.
	_, err := engine.Create(context.Background(), []domain.CartLine{
		{ProductID: "p1", SellingPriceCents: 2500, CostPriceCents: 1500, Qty: 2},
		{ProductID: "p1", SellingPriceCents: 2500, CostPriceCents: 1500, Qty: 2},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}

	tx, err := engine.Create(context.Background(), []domain.CartLine{
		{ProductID: "p1", SellingPriceCents: 2500, CostPriceCents: 1500, Qty: 2},
		{ProductID: "p1", SellingPriceCents: 2500, CostPriceCents: 1500, Qty: 1},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tx.TotalCents != 7500 {
		t.Fatalf("total = %d, want 7500", tx.TotalCents)
	}

	p1, _ := local.GetProduct(context.Background(), "p1")
	if p1.Quantity != 0 {
		t.Fatalf("p1 quantity = %d, want 0", p1.Quantity)
	}
}

func TestCreateSnapshotsLinePricesNotCatalogPrices(t *testing.T) {
	local := memory.New()
	seedProduct(t, local, "p1", 1500, 2500, 10)

	engine := New(local, nil, nil, nil)

	// The cart carries a discounted price; the snapshot must keep it even
	// though the catalog says otherwise.
	tx, err := engine.Create(context.Background(), []domain.CartLine{
		{ProductID: "p1", SellingPriceCents: 2000, CostPriceCents: 1500, Qty: 1},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tx.Items[0].SellingPriceCents != 2000 {
		t.Fatalf("snapshot price = %d, want 2000", tx.Items[0].SellingPriceCents)
	}
	if tx.TotalCents != 2000 {
		t.Fatalf("total = %d, want 2000", tx.TotalCents)
	}

	// Later catalog changes never touch the stored snapshot.
	p1, _ := local.GetProduct(context.Background(), "p1")
	updated := *p1
	updated.SellingPriceCents = 9900
	updated.Touch(time.Now())
	if _, err := local.PutProduct(context.Background(), updated); err != nil {
		t.Fatalf("PutProduct: %v", err)
	}

	stored, err := local.GetTransaction(context.Background(), tx.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if stored.Items[0].SellingPriceCents != 2000 {
		t.Fatalf("stored snapshot price = %d, want 2000", stored.Items[0].SellingPriceCents)
	}
}

type recordingReceipts struct {
	done chan domain.Transaction
	err  error
}

func (r *recordingReceipts) Generate(tx domain.Transaction) (string, error) {
	r.done <- tx
	return "", r.err
}

func TestCreateInvokesReceiptsAfterCommit(t *testing.T) {
	local := memory.New()
	seedProduct(t, local, "p1", 1500, 2500, 10)

	receipts := &recordingReceipts{done: make(chan domain.Transaction, 1)}
	engine := New(local, receipts, nil, nil)

	tx, err := engine.Create(context.Background(), []domain.CartLine{
		{ProductID: "p1", SellingPriceCents: 2500, CostPriceCents: 1500, Qty: 1},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	select {
	case printed := <-receipts.done:
		if printed.ID != tx.ID {
			t.Fatalf("receipt tx id = %s, want %s", printed.ID, tx.ID)
		}
	case <-time.After(time.Second):
		t.Fatalf("receipt generation never invoked")
	}
}

func TestCreateSurvivesReceiptFailure(t *testing.T) {
	local := memory.New()
	seedProduct(t, local, "p1", 1500, 2500, 10)

	receipts := &recordingReceipts{done: make(chan domain.Transaction, 1), err: errors.New("printer jam")}
	engine := New(local, receipts, nil, nil)

	tx, err := engine.Create(context.Background(), []domain.CartLine{
		{ProductID: "p1", SellingPriceCents: 2500, CostPriceCents: 1500, Qty: 1},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	<-receipts.done

	// The sale is committed regardless of the receipt outcome.
	if _, err := local.GetTransaction(context.Background(), tx.ID); err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
}
