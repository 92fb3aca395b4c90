package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/vigil/internal/api/handlers"
	"github.com/wonny/vigil/pkg/logger"
)

// NewRouter creates and configures the HTTP router
// SSOT: routing happens in this function only.
func NewRouter(scanHandler *handlers.ScanHandler, hub *Hub, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Liveness
	r.HandleFunc("/healthz", scanHandler.Health).Methods("GET")

	// API v1
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/alerts", scanHandler.GetAlerts).Methods("GET")
	api.HandleFunc("/alerts/{symbol}", scanHandler.GetAlert).Methods("GET")
	api.HandleFunc("/alerts/{symbol}/history", scanHandler.GetSymbolHistory).Methods("GET")
	api.HandleFunc("/budget", scanHandler.GetBudget).Methods("GET")
	api.HandleFunc("/cycles/latest", scanHandler.GetLatestCycle).Methods("GET")
	api.HandleFunc("/jobs", scanHandler.GetJobs).Methods("GET")

	// Live alert stream
	if hub != nil {
		r.HandleFunc("/ws/alerts", hub.Serve).Methods("GET")
	}

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
