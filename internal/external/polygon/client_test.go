package polygon

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
		Polygon: config.PolygonConfig{APIKey: "test", BaseURL: baseURL},
	}, log)
}

func countingServer(requests *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(requests, 1)
		fmt.Fprint(w, `{"status":"OK"}`)
	}))
}

// One symbol snapshot is exactly three requests: the live snapshot, daily
// bars and intraday half-hour bars. The scan calendar budgets against this
// number.
func TestSnapshot_RequestFanout(t *testing.T) {
	var requests int32
	srv := countingServer(&requests)
	defer srv.Close()

	c := testClient(srv.URL)
	if _, err := c.Snapshot(context.Background(), "NVDA"); err != nil {
		t.Fatal(err)
	}

	if got := atomic.LoadInt32(&requests); got != 3 {
		t.Errorf("Snapshot issued %d requests, want 3", got)
	}
}

func TestIndexStatus_SingleRequest(t *testing.T) {
	var requests int32
	srv := countingServer(&requests)
	defer srv.Close()

	c := testClient(srv.URL)
	if _, _, err := c.IndexStatus(context.Background(), "SPY"); err != nil {
		t.Fatal(err)
	}

	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Errorf("IndexStatus issued %d requests, want 1", got)
	}
}
