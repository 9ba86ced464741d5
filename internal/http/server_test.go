package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"plata/internal/core"
)

type fakePlanManager struct {
	plans     map[string]core.Plan
	display   []core.DisplayPlan
	listCalls int
}

func newFakePlanManager() *fakePlanManager {
	return &fakePlanManager{plans: make(map[string]core.Plan)}
}

func (f *fakePlanManager) CreatePlan(_ context.Context, p core.Plan, now time.Time) (core.Plan, error) {
	p.ID = "plan-1"
	p.NextExecutionDate = p.StartDate
	p.IsActive = true
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := p.Validate(); err != nil {
		return core.Plan{}, err
	}
	f.plans[p.ID] = p
	return p, nil
}

func (f *fakePlanManager) UpdatePlan(_ context.Context, p core.Plan, now time.Time) (core.Plan, error) {
	if _, ok := f.plans[p.ID]; !ok {
		return core.Plan{}, sql.ErrNoRows
	}
	p.UpdatedAt = now
	f.plans[p.ID] = p
	return p, nil
}

func (f *fakePlanManager) SetActive(_ context.Context, id string, active bool, now time.Time) error {
	p, ok := f.plans[id]
	if !ok {
		return sql.ErrNoRows
	}
	p.IsActive = active
	p.UpdatedAt = now
	f.plans[id] = p
	return nil
}

func (f *fakePlanManager) DeletePlan(_ context.Context, id string) error {
	if _, ok := f.plans[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.plans, id)
	return nil
}

func (f *fakePlanManager) GetPlan(_ context.Context, id string) (core.Plan, error) {
	p, ok := f.plans[id]
	if !ok {
		return core.Plan{}, sql.ErrNoRows
	}
	return p, nil
}

func (f *fakePlanManager) ListDisplayPlans(_ context.Context, _ time.Time) ([]core.DisplayPlan, error) {
	f.listCalls++
	return f.display, nil
}

type fakeLedger struct {
	transactions []core.Transaction
	wallets      []core.Wallet
	categories   []core.Category
	lastLimit    int
}

func (f *fakeLedger) ListTransactions(_ context.Context, limit int) ([]core.Transaction, error) {
	f.lastLimit = limit
	if limit < len(f.transactions) {
		return f.transactions[:limit], nil
	}
	return f.transactions, nil
}

func (f *fakeLedger) ListWallets(_ context.Context) ([]core.Wallet, error) { return f.wallets, nil }

func (f *fakeLedger) CreateWallet(_ context.Context, w core.Wallet) error {
	f.wallets = append(f.wallets, w)
	return nil
}

func (f *fakeLedger) ListCategories(_ context.Context) ([]core.Category, error) {
	return f.categories, nil
}

func (f *fakeLedger) CreateCategory(_ context.Context, c core.Category) error {
	f.categories = append(f.categories, c)
	return nil
}

func newTestServer(plans *fakePlanManager, ledger *fakeLedger) *Server {
	s := NewServer(":0", plans, ledger)
	s.clock = func() time.Time { return time.Date(2024, 4, 15, 12, 0, 0, 0, time.UTC) }
	return s
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := newTestServer(newFakePlanManager(), &fakeLedger{})
	rec := doRequest(t, s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestCreatePlan(t *testing.T) {
	plans := newFakePlanManager()
	s := newTestServer(plans, &fakeLedger{})

	body := `{
		"description": "Netflix",
		"type": "expense",
		"amount": "15,99",
		"currency": "ARS",
		"start_date": "2024-01-01",
		"frequency": "monthly"
	}`
	rec := doRequest(t, s, http.MethodPost, "/api/plans", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var resp planResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Amount != 15.99 {
		t.Errorf("amount = %v, want 15.99", resp.Amount)
	}
	if resp.NextExecutionDate != resp.StartDate {
		t.Errorf("next execution should equal start date on create")
	}
	if !resp.IsActive {
		t.Errorf("new plan should be active")
	}
}

func TestCreatePlanRejectsBadInput(t *testing.T) {
	s := newTestServer(newFakePlanManager(), &fakeLedger{})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"bad amount", `{"description":"x","type":"expense","amount":"abc","currency":"ARS","start_date":"2024-01-01","frequency":"monthly"}`},
		{"bad start date", `{"description":"x","type":"expense","amount":"10","currency":"ARS","start_date":"not-a-date","frequency":"monthly"}`},
		{"unknown frequency", `{"description":"x","type":"expense","amount":"10","currency":"ARS","start_date":"2024-01-01","frequency":"fortnightly"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodPost, "/api/plans", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestGetPlanNotFound(t *testing.T) {
	s := newTestServer(newFakePlanManager(), &fakeLedger{})
	rec := doRequest(t, s, http.MethodGet, "/api/plans/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestListPlansUsesCacheUntilWrite(t *testing.T) {
	plans := newFakePlanManager()
	plans.display = []core.DisplayPlan{{
		Plan: core.Plan{
			ID:                "plan-1",
			Description:       "Netflix",
			Type:              core.Expense,
			Amount:            core.Money{Cents: 1599},
			Currency:          "ARS",
			StartDate:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Frequency:         core.Monthly,
			NextExecutionDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			IsActive:          true,
		},
		GroupSize: 2,
		MemberIDs: []string{"plan-1", "plan-2"},
	}}
	s := newTestServer(plans, &fakeLedger{})

	for i := 0; i < 3; i++ {
		rec := doRequest(t, s, http.MethodGet, "/api/plans", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	}
	if plans.listCalls != 1 {
		t.Errorf("listCalls = %d, want 1 (cached)", plans.listCalls)
	}

	// Any write must drop the cached listing.
	body := `{"description":"Gym","type":"expense","amount":"30","currency":"ARS","start_date":"2024-01-01","frequency":"monthly"}`
	if rec := doRequest(t, s, http.MethodPost, "/api/plans", body); rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	doRequest(t, s, http.MethodGet, "/api/plans", "")
	if plans.listCalls != 2 {
		t.Errorf("listCalls = %d, want 2 after write", plans.listCalls)
	}
}

func TestListPlansProjectionFields(t *testing.T) {
	plans := newFakePlanManager()
	plans.display = []core.DisplayPlan{{
		Plan: core.Plan{
			ID:        "open",
			StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Frequency: core.Monthly,
		},
		GroupSize:     1,
		MemberIDs:     []string{"open"},
		HasProjection: false,
		HasTotalCount: false,
	}}
	s := newTestServer(plans, &fakeLedger{})

	rec := doRequest(t, s, http.MethodGet, "/api/plans", "")
	var out []displayPlanResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("records = %d, want 1", len(out))
	}
	if out[0].Projected != nil {
		t.Errorf("open-ended plan must not carry a projection")
	}
	if out[0].TotalCount != nil {
		t.Errorf("open-ended plan must not carry a total count")
	}
}

func TestPauseAndResume(t *testing.T) {
	plans := newFakePlanManager()
	s := newTestServer(plans, &fakeLedger{})

	body := `{"description":"Netflix","type":"expense","amount":"15,99","currency":"ARS","start_date":"2024-01-01","frequency":"monthly"}`
	if rec := doRequest(t, s, http.MethodPost, "/api/plans", body); rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}

	if rec := doRequest(t, s, http.MethodPost, "/api/plans/plan-1/pause", ""); rec.Code != http.StatusOK {
		t.Fatalf("pause status = %d", rec.Code)
	}
	if plans.plans["plan-1"].IsActive {
		t.Errorf("plan should be paused")
	}

	if rec := doRequest(t, s, http.MethodPost, "/api/plans/plan-1/resume", ""); rec.Code != http.StatusOK {
		t.Fatalf("resume status = %d", rec.Code)
	}
	if !plans.plans["plan-1"].IsActive {
		t.Errorf("plan should be active again")
	}

	if rec := doRequest(t, s, http.MethodPost, "/api/plans/missing/pause", ""); rec.Code != http.StatusNotFound {
		t.Errorf("pausing a missing plan = %d, want 404", rec.Code)
	}
}

func TestDeletePlan(t *testing.T) {
	plans := newFakePlanManager()
	s := newTestServer(plans, &fakeLedger{})

	body := `{"description":"Netflix","type":"expense","amount":"15,99","currency":"ARS","start_date":"2024-01-01","frequency":"monthly"}`
	doRequest(t, s, http.MethodPost, "/api/plans", body)

	if rec := doRequest(t, s, http.MethodDelete, "/api/plans/plan-1", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodDelete, "/api/plans/plan-1", ""); rec.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", rec.Code)
	}
}

func TestListTransactionsLimit(t *testing.T) {
	ledger := &fakeLedger{}
	s := newTestServer(newFakePlanManager(), ledger)

	doRequest(t, s, http.MethodGet, "/api/transactions", "")
	if ledger.lastLimit != 50 {
		t.Errorf("default limit = %d, want 50", ledger.lastLimit)
	}

	doRequest(t, s, http.MethodGet, "/api/transactions?limit=9999", "")
	if ledger.lastLimit != 500 {
		t.Errorf("capped limit = %d, want 500", ledger.lastLimit)
	}
}

func TestCreateWalletAndCategory(t *testing.T) {
	ledger := &fakeLedger{}
	s := newTestServer(newFakePlanManager(), ledger)

	rec := doRequest(t, s, http.MethodPost, "/api/wallets", `{"name":"Mercado Pago","provider":"mercadopago","currency":"ARS"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("wallet status = %d: %s", rec.Code, rec.Body.String())
	}
	if len(ledger.wallets) != 1 || ledger.wallets[0].Name != "Mercado Pago" {
		t.Errorf("wallet not stored: %+v", ledger.wallets)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/categories", `{"name":"Streaming","type":"expense","color":"#e50914"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("category status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodPost, "/api/categories", `{"name":"Bad","type":"other"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid category type = %d, want 400", rec.Code)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/wallets", `{"name":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty wallet name = %d, want 400", rec.Code)
	}
}
