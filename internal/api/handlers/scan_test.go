package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/vigil/internal/budget"
	"github.com/wonny/vigil/internal/contracts"
	"github.com/wonny/vigil/internal/conviction"
	"github.com/wonny/vigil/internal/scheduler"
	"github.com/wonny/vigil/internal/weights"
	"github.com/wonny/vigil/pkg/config"
	"github.com/wonny/vigil/pkg/logger"
)

func newTestHandler() (*ScanHandler, *conviction.Aggregator) {
	log := logger.New(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"})
	agg := conviction.New(weights.Default().Conviction)
	bm := budget.NewManager(budget.DefaultLimits(), time.UTC, 0, nil)
	sched := scheduler.New(log, bm, scheduler.NewCooldownTracker(45*time.Minute, nil), time.UTC)
	return NewScanHandler(agg, bm, sched, nil, log), agg
}

type fakeHistory struct {
	latest  *contracts.CycleResult
	results []contracts.ScoredResult
}

func (f *fakeHistory) GetLatestCycle(_ context.Context) (*contracts.CycleResult, error) {
	return f.latest, nil
}

func (f *fakeHistory) GetSymbolHistory(_ context.Context, _ string, _ time.Time) ([]contracts.ScoredResult, error) {
	return f.results, nil
}

func TestHealth_Starting(t *testing.T) {
	h, _ := newTestHandler()

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "starting" {
		t.Errorf("status = %v, want starting before the first cycle", body["status"])
	}
}

func TestGetAlerts(t *testing.T) {
	h, agg := newTestHandler()

	now := time.Now()
	agg.Record(contracts.ScoredResult{
		Symbol:      "NVDA",
		Cycle:       now,
		Engine:      contracts.EngineClassification{Symbol: "NVDA", Engine: contracts.EngineGammaDrain},
		FinalScore:  0.85,
		PassedGates: true,
	}, now)

	req := httptest.NewRequest("GET", "/api/alerts", nil)
	rec := httptest.NewRecorder()
	h.GetAlerts(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Count  int                          `json:"count"`
		Alerts []contracts.ConvictionRecord `json:"alerts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Count != 1 || len(body.Alerts) != 1 {
		t.Fatalf("count = %d, want 1", body.Count)
	}
	if body.Alerts[0].Symbol != "NVDA" || body.Alerts[0].Level != contracts.LevelAct {
		t.Errorf("alert = %+v, want NVDA at act", body.Alerts[0])
	}
}

func TestGetAlert_NotFound(t *testing.T) {
	h, _ := newTestHandler()

	req := httptest.NewRequest("GET", "/api/alerts/ZZZZ", nil)
	req = mux.SetURLVars(req, map[string]string{"symbol": "ZZZZ"})
	rec := httptest.NewRecorder()
	h.GetAlert(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for untracked symbol", rec.Code)
	}
}

func TestGetBudget(t *testing.T) {
	h, _ := newTestHandler()

	req := httptest.NewRequest("GET", "/api/budget", nil)
	rec := httptest.NewRecorder()
	h.GetBudget(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %s, want application/json", ct)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if _, ok := body["windows"]; !ok {
		t.Error("response must carry a windows field")
	}
}

func TestGetLatestCycle_NoStore(t *testing.T) {
	h, _ := newTestHandler()

	req := httptest.NewRequest("GET", "/api/cycles/latest", nil)
	rec := httptest.NewRecorder()
	h.GetLatestCycle(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 without a database", rec.Code)
	}
}

func TestGetSymbolHistory(t *testing.T) {
	h, _ := newTestHandler()
	h.history = &fakeHistory{results: []contracts.ScoredResult{
		{Symbol: "NVDA", FinalScore: 0.8},
		{Symbol: "NVDA", FinalScore: 0.7},
	}}

	req := httptest.NewRequest("GET", "/api/alerts/NVDA/history", nil)
	req = mux.SetURLVars(req, map[string]string{"symbol": "NVDA"})
	rec := httptest.NewRecorder()
	h.GetSymbolHistory(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Symbol  string                   `json:"symbol"`
		Count   int                      `json:"count"`
		Results []contracts.ScoredResult `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Symbol != "NVDA" || body.Count != 2 {
		t.Errorf("history = %+v, want 2 NVDA rows", body)
	}
}

func TestGetJobs_Empty(t *testing.T) {
	h, _ := newTestHandler()

	req := httptest.NewRequest("GET", "/api/jobs", nil)
	rec := httptest.NewRecorder()
	h.GetJobs(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]scheduler.JobStats
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body) != 0 {
		t.Errorf("jobs = %v, want empty before any job is added", body)
	}
}
