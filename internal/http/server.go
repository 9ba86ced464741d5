// Package http exposes the JSON API: plan management, the deduplicated
// display listing, the transaction ledger and the wallet/category reference
// data.
package http

import (
	"container/list"
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"plata/internal/core"
	"plata/internal/log"
)

// PlanManager is the plan-service surface the handlers use.
type PlanManager interface {
	CreatePlan(ctx context.Context, p core.Plan, now time.Time) (core.Plan, error)
	UpdatePlan(ctx context.Context, p core.Plan, now time.Time) (core.Plan, error)
	SetActive(ctx context.Context, id string, active bool, now time.Time) error
	DeletePlan(ctx context.Context, id string) error
	GetPlan(ctx context.Context, id string) (core.Plan, error)
	ListDisplayPlans(ctx context.Context, now time.Time) ([]core.DisplayPlan, error)
}

// LedgerStore is the repository surface for transactions and reference data.
type LedgerStore interface {
	ListTransactions(ctx context.Context, limit int) ([]core.Transaction, error)
	ListWallets(ctx context.Context) ([]core.Wallet, error)
	CreateWallet(ctx context.Context, w core.Wallet) error
	ListCategories(ctx context.Context) ([]core.Category, error)
	CreateCategory(ctx context.Context, c core.Category) error
}

type Server struct {
	http.Server
	plans  PlanManager
	ledger LedgerStore
	clock  func() time.Time
	logger *log.Logger

	// The display listing runs the full dedupe+accrual pipeline; cache it
	// briefly and drop it on any plan write.
	listingCache *lruCache[[]core.DisplayPlan]
}

func NewServer(addr string, plans PlanManager, ledger LedgerStore) *Server {
	s := &Server{
		plans:        plans,
		ledger:       ledger,
		clock:        time.Now,
		logger:       log.New(log.Config{Level: slog.LevelInfo, Component: log.ComponentHTTP}),
		listingCache: newLRUCache[[]core.DisplayPlan](8, 30*time.Second),
	}
	s.Addr = addr
	s.Handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("GET /api/plans", s.handleListPlans)
	mux.HandleFunc("POST /api/plans", s.handleCreatePlan)
	mux.HandleFunc("GET /api/plans/{id}", s.handleGetPlan)
	mux.HandleFunc("PUT /api/plans/{id}", s.handleUpdatePlan)
	mux.HandleFunc("DELETE /api/plans/{id}", s.handleDeletePlan)
	mux.HandleFunc("POST /api/plans/{id}/pause", s.handlePausePlan)
	mux.HandleFunc("POST /api/plans/{id}/resume", s.handleResumePlan)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("GET /api/wallets", s.handleListWallets)
	mux.HandleFunc("POST /api/wallets", s.handleCreateWallet)
	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)

	return requestLogger(s.logger, mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// LRU cache with TTL and size-based eviction
type lruCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	lru     *list.List
}

type cacheItem[T any] struct {
	key       string
	data      T
	expiresAt time.Time
}

func newLRUCache[T any](maxSize int, ttl time.Duration) *lruCache[T] {
	return &lruCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}
}

func (c *lruCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, exists := c.items[key]
	if !exists {
		return zero, false
	}

	item := elem.Value.(*cacheItem[T])
	if time.Now().After(item.expiresAt) {
		c.removeElement(elem)
		return zero, false
	}

	c.lru.MoveToFront(elem)
	return item.data, true
}

func (c *lruCache[T]) Set(key string, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.removeElement(elem)
	}

	item := &cacheItem[T]{
		key:       key,
		data:      data,
		expiresAt: time.Now().Add(c.ttl),
	}
	elem := c.lru.PushFront(item)
	c.items[key] = elem

	for c.lru.Len() > c.maxSize {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		c.removeElement(oldest)
	}
}

func (c *lruCache[T]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.lru.Init()
}

func (c *lruCache[T]) removeElement(elem *list.Element) {
	item := elem.Value.(*cacheItem[T])
	delete(c.items, item.key)
	c.lru.Remove(elem)
}
