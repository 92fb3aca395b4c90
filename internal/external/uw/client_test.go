package uw

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

func testClient(baseURL string) *Client {
	log := logger.New(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"})
	return NewClient(&config.Config{
		UW: config.UWConfig{APIKey: "test", BaseURL: baseURL},
	}, log)
}

func countingServer(requests *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(requests, 1)
		fmt.Fprint(w, `{}`)
	}))
}

// One symbol snapshot is exactly four requests: greek exposure, options
// volume, dark pool prints and the put-wall scan. The scan calendar budgets
// against this number.
func TestSnapshot_RequestFanout(t *testing.T) {
	var requests int32
	srv := countingServer(&requests)
	defer srv.Close()

	c := testClient(srv.URL)
	if _, err := c.Snapshot(context.Background(), "NVDA"); err != nil {
		t.Fatal(err)
	}

	if got := atomic.LoadInt32(&requests); got != 4 {
		t.Errorf("Snapshot issued %d requests, want 4", got)
	}
}

// The regime context costs three requests: SPY greeks, QQQ greeks and the
// borrow data.
func TestMarketState_RequestFanout(t *testing.T) {
	var requests int32
	srv := countingServer(&requests)
	defer srv.Close()

	c := testClient(srv.URL)
	if _, err := c.MarketState(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := atomic.LoadInt32(&requests); got != 3 {
		t.Errorf("MarketState issued %d requests, want 3", got)
	}
}
