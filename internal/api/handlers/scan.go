// Package handlers contains the HTTP handlers behind the read-only API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"

	"github.com/wonny/vigil/internal/budget"
	"github.com/wonny/vigil/internal/contracts"
	"github.com/wonny/vigil/internal/conviction"
	"github.com/wonny/vigil/internal/scheduler"
	"github.com/wonny/vigil/pkg/logger"
)

// staleAfter is the liveness ceiling: if no cycle has completed within this
// interval during a session, the scanner is considered stuck.
const staleAfter = 90 * time.Minute

// historyWindow bounds the per-symbol history endpoint.
const historyWindow = 7 * 24 * time.Hour

// HistoryStore serves persisted cycle output. Satisfied by store.Store; nil
// when the scanner runs without a database.
type HistoryStore interface {
	GetLatestCycle(ctx context.Context) (*contracts.CycleResult, error)
	GetSymbolHistory(ctx context.Context, symbol string, since time.Time) ([]contracts.ScoredResult, error)
}

// ScanHandler serves scan state: alerts, budget counters, job stats and
// persisted history.
// SSOT: scan API handlers live here only.
type ScanHandler struct {
	conviction *conviction.Aggregator
	budget     *budget.Manager
	scheduler  *scheduler.Scheduler
	history    HistoryStore
	logger     *logger.Logger
}

// NewScanHandler creates a new scan handler. history may be nil.
func NewScanHandler(agg *conviction.Aggregator, bm *budget.Manager, sched *scheduler.Scheduler, history HistoryStore, log *logger.Logger) *ScanHandler {
	return &ScanHandler{
		conviction: agg,
		budget:     bm,
		scheduler:  sched,
		history:    history,
		logger:     log,
	}
}

// Health reports liveness: ok while cycles complete on schedule.
func (h *ScanHandler) Health(w http.ResponseWriter, r *http.Request) {
	last := h.scheduler.LastCompleted()

	status := "ok"
	code := http.StatusOK
	if last.IsZero() {
		status = "starting"
	} else if time.Since(last) > staleAfter {
		status = "stale"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]interface{}{
		"status":          status,
		"service":         "vigil",
		"last_cycle":      last,
		"since_last_scan": time.Since(last).String(),
	})
}

// GetAlerts returns the live early-warning set, strongest conviction first.
func (h *ScanHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	records := h.conviction.Snapshot(time.Now())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(records),
		"alerts": records,
	})
}

// GetAlert returns one symbol's conviction record.
func (h *ScanHandler) GetAlert(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	rec, ok := h.conviction.Get(symbol, time.Now())
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "symbol not tracked",
		})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// GetBudget returns the live counters for every source in the open window.
func (h *ScanHandler) GetBudget(w http.ResponseWriter, r *http.Request) {
	windows := h.budget.Snapshot(time.Now())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"windows": windows,
	})
}

// GetJobs returns per-job scheduler statistics.
func (h *ScanHandler) GetJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.scheduler.GetJobStats())
}

// GetLatestCycle returns the most recent persisted cycle result.
func (h *ScanHandler) GetLatestCycle(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "no database configured",
		})
		return
	}

	result, err := h.history.GetLatestCycle(r.Context())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "no cycle persisted yet",
			})
			return
		}
		h.logger.WithError(err).Error("Latest cycle query failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "cycle lookup failed",
		})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetSymbolHistory returns a symbol's persisted scored results over the
// trailing week, newest first.
func (h *ScanHandler) GetSymbolHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "no database configured",
		})
		return
	}

	symbol := mux.Vars(r)["symbol"]
	results, err := h.history.GetSymbolHistory(r.Context(), symbol, time.Now().Add(-historyWindow))
	if err != nil {
		h.logger.WithError(err).WithField("symbol", symbol).Error("History query failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "history lookup failed",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":  symbol,
		"count":   len(results),
		"results": results,
	})
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
