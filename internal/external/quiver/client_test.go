package quiver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/wonny/vigil/pkg/config"
	"github.com/wonny/vigil/pkg/logger"
)

// One symbol snapshot is exactly two requests: insider filings and
// congressional trading. The scan calendar budgets against this number.
func TestSnapshot_RequestFanout(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	log := logger.New(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"})
	c := NewClient(&config.Config{
		Quiver: config.QuiverConfig{APIKey: "test", BaseURL: srv.URL},
	}, log)

	if _, err := c.Snapshot(context.Background(), "NVDA"); err != nil {
		t.Fatal(err)
	}

	if got := atomic.LoadInt32(&requests); got != 2 {
		t.Errorf("Snapshot issued %d requests, want 2", got)
	}
}
