package syncengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"lokapos/agent/internal/connectivity"
	"lokapos/agent/internal/domain"
	"lokapos/agent/internal/store"
)

var (
	ErrSyncInProgress   = errors.New("sync already in progress")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrOffline          = errors.New("offline")
)

// RemoteStore is the networked record store, reachable only while online.
// Upserts are idempotent (keyed by record id); selects are owner-scoped.
type RemoteStore interface {
	UpsertProducts(ctx context.Context, ownerID string, products []domain.Product) error
	SelectProducts(ctx context.Context, ownerID string, activeOnly bool) ([]domain.Product, error)
	UpsertTransactions(ctx context.Context, ownerID string, txs []domain.Transaction) error
	SelectTransactions(ctx context.Context, ownerID string) ([]domain.Transaction, error)
}

// OwnerProvider yields the authenticated owner id, or "" when logged out.
type OwnerProvider interface {
	CurrentOwnerID() string
}

// Engine orchestrates sync cycles. Single-flight: a trigger that arrives
// while a cycle runs is rejected with ErrSyncInProgress, never queued. The
// mutex matters because triggers come from the cron goroutine, connectivity
// callbacks and HTTP handlers concurrently.
type Engine struct {
	local   store.LocalStore
	remote  RemoteStore
	monitor *connectivity.Monitor
	owner   OwnerProvider
	clock   func() time.Time
	logger  *zap.Logger

	mu         sync.Mutex
	running    bool
	lastReport *domain.SyncReport
}

func New(local store.LocalStore, remote RemoteStore, monitor *connectivity.Monitor, owner OwnerProvider, clock func() time.Time, logger *zap.Logger) *Engine {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		local:   local,
		remote:  remote,
		monitor: monitor,
		owner:   owner,
		clock:   clock,
		logger:  logger,
	}
}

// TrySync runs one sync cycle unless one is already in flight. The returned
// report captures failures; the error is non-nil only for a rejected trigger.
func (e *Engine) TrySync(ctx context.Context) (domain.SyncReport, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return domain.SyncReport{}, ErrSyncInProgress
	}
	e.running = true
	e.mu.Unlock()

	report := e.performSync(ctx)

	e.mu.Lock()
	e.running = false
	saved := report
	e.lastReport = &saved
	e.mu.Unlock()

	return report, nil
}

// Status reports the observable sync state for the UI: pending count, whether
// a cycle is running, and the last cycle's report.
func (e *Engine) Status(ctx context.Context) domain.SyncStatus {
	pending, err := e.local.CountUnsyncedTransactions(ctx)
	if err != nil {
		e.logger.Warn("pending count unavailable", zap.Error(err))
		pending = -1
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.SyncStatus{
		Online:              e.monitor.IsOnline(),
		Syncing:             e.running,
		PendingTransactions: pending,
		LastReport:          e.lastReport,
	}
}

// performSync is the body of one cycle. Every exit path terminates in a
// report value so the periodic scheduler keeps running indefinitely. Order:
// auth gate, online gate, push, then initial pull or reconcile.
func (e *Engine) performSync(ctx context.Context) domain.SyncReport {
	report := domain.SyncReport{StartedAt: e.clock().UTC()}

	ownerID := e.owner.CurrentOwnerID()
	if ownerID == "" {
		return e.fail(report, ErrNotAuthenticated)
	}
	if !e.monitor.IsOnline() {
		return e.fail(report, ErrOffline)
	}

	pushed, err := e.pushTransactions(ctx, ownerID)
	report.PushedTransactions = pushed
	if err != nil {
		return e.fail(report, fmt.Errorf("push transactions: %w", err))
	}

	productCount, err := e.local.CountProducts(ctx)
	if err != nil {
		return e.fail(report, fmt.Errorf("count products: %w", err))
	}

	if productCount == 0 {
		report.InitialPull = true
		if err := e.initialPull(ctx, ownerID, &report); err != nil {
			return e.fail(report, fmt.Errorf("initial pull: %w", err))
		}
	} else {
		reconciled, err := e.reconcileProducts(ctx, ownerID)
		report.ReconciledProducts = reconciled
		if err != nil {
			return e.fail(report, fmt.Errorf("reconcile products: %w", err))
		}
	}

	report.Success = true
	report.FinishedAt = e.clock().UTC()
	e.logger.Info("sync cycle complete",
		zap.Int("pushed_transactions", report.PushedTransactions),
		zap.Int("pulled_transactions", report.PulledTransactions),
		zap.Int("pulled_products", report.PulledProducts),
		zap.Int("reconciled_products", report.ReconciledProducts),
		zap.Bool("initial_pull", report.InitialPull))
	return report
}

func (e *Engine) fail(report domain.SyncReport, err error) domain.SyncReport {
	report.Success = false
	report.Error = err.Error()
	report.FinishedAt = e.clock().UTC()
	if errors.Is(err, ErrNotAuthenticated) || errors.Is(err, ErrOffline) {
		e.logger.Debug("sync cycle skipped", zap.Error(err))
	} else {
		e.logger.Warn("sync cycle failed", zap.Error(err))
	}
	return report
}

// pushTransactions uploads every unsynced transaction as one idempotent
// upsert, then flips synced=true for exactly the pushed ids. If the upsert
// fails mid-call the transactions stay unsynced and are resent wholesale next
// cycle; the upsert keys on id, so the remote side ends with one record.
func (e *Engine) pushTransactions(ctx context.Context, ownerID string) (int, error) {
	unsynced, err := e.local.ListUnsyncedTransactions(ctx)
	if err != nil {
		return 0, err
	}
	if len(unsynced) == 0 {
		return 0, nil
	}

	if err := e.remote.UpsertTransactions(ctx, ownerID, unsynced); err != nil {
		return 0, err
	}

	ids := make([]string, 0, len(unsynced))
	for _, tx := range unsynced {
		ids = append(ids, tx.ID)
	}
	if err := e.local.MarkTransactionsSynced(ctx, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// initialPull seeds an empty local store from the remote copy. Pulled
// transactions already exist remotely by definition, so they are written
// with synced=true.
func (e *Engine) initialPull(ctx context.Context, ownerID string, report *domain.SyncReport) error {
	products, err := e.remote.SelectProducts(ctx, ownerID, true)
	if err != nil {
		return err
	}
	if err := e.local.BulkPutProducts(ctx, products); err != nil {
		return err
	}
	report.PulledProducts = len(products)

	txs, err := e.remote.SelectTransactions(ctx, ownerID)
	if err != nil {
		return err
	}
	for i := range txs {
		txs[i].Synced = true
	}
	if err := e.local.BulkPutTransactions(ctx, txs); err != nil {
		return err
	}
	report.PulledTransactions = len(txs)
	return nil
}

// reconcileProducts runs the resolver over the union of local and remote
// product ids and applies the actions in two batches: one upsert for all
// pushes, one bulk put for all pulls.
func (e *Engine) reconcileProducts(ctx context.Context, ownerID string) (int, error) {
	localProducts, err := e.local.ListProducts(ctx, false)
	if err != nil {
		return 0, err
	}
	remoteProducts, err := e.remote.SelectProducts(ctx, ownerID, false)
	if err != nil {
		return 0, err
	}

	localByID := make(map[string]domain.Product, len(localProducts))
	for _, p := range localProducts {
		localByID[p.ID] = p
	}
	remoteByID := make(map[string]domain.Product, len(remoteProducts))
	for _, p := range remoteProducts {
		remoteByID[p.ID] = p
	}

	union := make([]string, 0, len(localByID)+len(remoteByID))
	for _, p := range localProducts {
		union = append(union, p.ID)
	}
	for _, p := range remoteProducts {
		if _, exists := localByID[p.ID]; !exists {
			union = append(union, p.ID)
		}
	}

	pushes := make([]domain.Product, 0, len(union))
	pulls := make([]domain.Product, 0, len(union))
	for _, id := range union {
		var local, remote *domain.Product
		if p, exists := localByID[id]; exists {
			copied := p
			local = &copied
		}
		if p, exists := remoteByID[id]; exists {
			copied := p
			remote = &copied
		}

		switch Resolve(local, remote) {
		case PushLocal, CreateRemoteFromLocal:
			pushes = append(pushes, *local)
		case PullRemote, CreateLocalFromRemote:
			pulls = append(pulls, *remote)
		}
	}

	if len(pushes) > 0 {
		if err := e.remote.UpsertProducts(ctx, ownerID, pushes); err != nil {
			return 0, err
		}
	}
	if len(pulls) > 0 {
		if err := e.local.BulkPutProducts(ctx, pulls); err != nil {
			return len(pushes), err
		}
	}

	return len(pushes) + len(pulls), nil
}
