package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"lokapos/agent/internal/auth"
	"lokapos/agent/internal/cache"
	"lokapos/agent/internal/checkout"
	"lokapos/agent/internal/connectivity"
	"lokapos/agent/internal/domain"
	"lokapos/agent/internal/store"
	"lokapos/agent/internal/syncengine"
	"lokapos/agent/internal/xid"
)

const (
	productCacheKey = "products:active"
	productCacheTTL = 10 * time.Second
)

// API is the localhost surface the POS UI talks to. It never blocks on the
// network: everything answers from the local store, and sync is observable
// through its status endpoint only.
type API struct {
	checkout *checkout.Engine
	local    store.LocalStore
	sync     *syncengine.Engine
	monitor  *connectivity.Monitor
	auth     *auth.Manager
	products cache.ProductCache
	validate *validator.Validate
	clock    func() time.Time
	logger   *zap.Logger
}

func New(checkoutEngine *checkout.Engine, local store.LocalStore, syncEngine *syncengine.Engine, monitor *connectivity.Monitor, authManager *auth.Manager, products cache.ProductCache, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		checkout: checkoutEngine,
		local:    local,
		sync:     syncEngine,
		monitor:  monitor,
		auth:     authManager,
		products: products,
		validate: validator.New(),
		clock:    time.Now,
		logger:   logger,
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("/api/v1/auth/logout", a.requireAuth(a.handleLogout))

	mux.HandleFunc("/api/v1/products", a.requireAuth(a.handleProducts))
	mux.HandleFunc("/api/v1/checkout", a.requireAuth(a.handleCheckout))
	mux.HandleFunc("/api/v1/drafts", a.requireAuth(a.handleDrafts))
	mux.HandleFunc("/api/v1/drafts/", a.requireAuth(a.handleDraftActions))
	mux.HandleFunc("/api/v1/sync/trigger", a.requireAuth(a.handleSyncTrigger))
	mux.HandleFunc("/api/v1/sync/status", a.requireAuth(a.handleSyncStatus))

	return mux
}

func (a *API) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		next(w, r.WithContext(auth.WithActor(r.Context(), actor)))
	}
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"online": a.monitor.IsOnline(),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.LoginRequest
	if !a.decode(w, r, &req) {
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	a.auth.Logout()
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listProducts(w, r)
	case http.MethodPost:
		a.upsertProduct(w, r)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if cached, hit, err := a.products.Get(ctx, productCacheKey); err == nil && hit {
		writeJSON(w, http.StatusOK, domain.ProductListResponse{Products: cached})
		return
	} else if err != nil {
		a.logger.Warn("product cache read failed", zap.Error(err))
	}

	products, err := a.local.ListProducts(ctx, true)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if err := a.products.Set(ctx, productCacheKey, products, productCacheTTL); err != nil {
		a.logger.Warn("product cache write failed", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, domain.ProductListResponse{Products: products})
}

func (a *API) upsertProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductUpsertRequest
	if !a.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	now := a.clock()

	var product domain.Product
	if req.ID == "" {
		product = domain.NewProduct(xid.New("prod"), req.Name, req.Description, req.CostPriceCents, req.SellingPriceCents, req.Quantity, now)
	} else {
		existing, err := a.local.GetProduct(ctx, req.ID)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		product = *existing
		product.Name = req.Name
		product.Description = req.Description
		product.CostPriceCents = req.CostPriceCents
		product.SellingPriceCents = req.SellingPriceCents
		product.Quantity = req.Quantity
		if req.IsActive != nil {
			product.IsActive = *req.IsActive
		}
		product.Touch(now)
	}

	saved, err := a.local.PutProduct(ctx, product)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	a.invalidateProductCache(ctx)
	writeJSON(w, http.StatusOK, saved)
}

func (a *API) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.CheckoutRequest
	if !a.decode(w, r, &req) {
		return
	}

	created, err := a.checkout.Create(r.Context(), req.Lines)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	a.invalidateProductCache(r.Context())
	writeJSON(w, http.StatusCreated, domain.CheckoutResponse{Transaction: *created})
}

func (a *API) handleDrafts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		drafts, err := a.local.ListDrafts(r.Context())
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, domain.DraftListResponse{Items: drafts})
	case http.MethodPost:
		var req domain.DraftCreateRequest
		if !a.decode(w, r, &req) {
			return
		}
		draft := domain.NewDraft(xid.New("draft"), req.Note, req.Items, a.clock())
		created, err := a.local.CreateDraft(r.Context(), draft)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, domain.DraftResponse{Draft: *created})
	default:
		writeMethodNotAllowed(w)
	}
}

// POST /api/v1/drafts/{id}/resume pops the draft: the UI reloads the cart
// from the response and the draft is gone, atomically.
func (a *API) handleDraftActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/drafts/")
	draftID, action, found := strings.Cut(rest, "/")
	if !found || action != "resume" || draftID == "" {
		writeError(w, http.StatusNotFound, errors.New("unknown draft action"))
		return
	}

	draft, err := a.local.PopDraft(r.Context(), draftID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.DraftResponse{Draft: *draft})
}

func (a *API) handleSyncTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	report, err := a.sync.TrySync(r.Context())
	if err != nil {
		if errors.Is(err, syncengine.ErrSyncInProgress) {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	a.invalidateProductCache(r.Context())
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, a.sync.Status(r.Context()))
}

func (a *API) invalidateProductCache(ctx context.Context) {
	if err := a.products.Invalidate(ctx, productCacheKey); err != nil {
		a.logger.Warn("product cache invalidation failed", zap.Error(err))
	}
}

// decode unmarshals and validates a request body, writing the 400 itself on
// failure.
func (a *API) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer func() { _ = r.Body.Close() }()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("malformed request body"))
		return false
	}
	if err := a.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrInsufficientStock):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, checkout.ErrEmptyCart), errors.Is(err, checkout.ErrInvalidLine), errors.Is(err, store.ErrInvalidRecord):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}
