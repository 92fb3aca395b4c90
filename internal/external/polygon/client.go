// Package polygon is the price/volume bar source. It fetches daily and
// intraday aggregates and resolves them into the normalizer's snapshot
// shape; nothing downstream sees vendor payloads.
package polygon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/vigil/internal/normalize"
	"github.com/wonny/vigil/pkg/config"
	"github.com/wonny/vigil/pkg/httputil"
	"github.com/wonny/vigil/pkg/logger"
)

const (
	lookbackDays = 21

	// Down at least this much on rising volume counts as a distribution day.
	distributionDayDropPct = 0.2
)

// Client is a thin vendor client with request pacing.
type Client struct {
	http    *httputil.Client
	baseURL string
	apiKey  string
	logger  *logger.Logger

	// Rolling per-symbol microstructure baselines, fed by successive
	// snapshots. Depth and spread ratios are relative to these.
	mu        sync.Mutex
	baselines map[string]*baseline
}

type baseline struct {
	depth  float64 // EWMA of bid depth
	spread float64 // EWMA of spread fraction
	n      int
}

// NewClient creates a polygon client.
func NewClient(cfg *config.Config, log *logger.Logger) *Client {
	return &Client{
		http:      httputil.New(log).WithRateLimit(5, 5),
		baseURL:   cfg.Polygon.BaseURL,
		apiKey:    cfg.Polygon.APIKey,
		logger:    log.WithField("source", "polygon"),
		baselines: make(map[string]*baseline),
	}
}

type aggsResponse struct {
	Ticker  string `json:"ticker"`
	Results []struct {
		Open   float64 `json:"o"`
		Close  float64 `json:"c"`
		Volume float64 `json:"v"`
		VWAP   float64 `json:"vw"`
		High   float64 `json:"h"`
		Start  int64   `json:"t"`
	} `json:"results"`
	Status string `json:"status"`
}

type snapshotResponse struct {
	Ticker struct {
		Day struct {
			Open   float64 `json:"o"`
			Close  float64 `json:"c"`
			Volume float64 `json:"v"`
			VWAP   float64 `json:"vw"`
		} `json:"day"`
		LastQuote struct {
			BidPrice float64 `json:"p"`
			BidSize  float64 `json:"s"`
			AskPrice float64 `json:"P"`
			AskSize  float64 `json:"S"`
		} `json:"lastQuote"`
		TodaysChangePerc float64 `json:"todaysChangePerc"`
	} `json:"ticker"`
	Status string `json:"status"`
}

// Snapshot assembles the per-symbol price view from daily bars, the live
// snapshot and intraday half-hour bars.
func (c *Client) Snapshot(ctx context.Context, symbol string) (*normalize.PriceSnapshot, error) {
	snap, err := c.tickerSnapshot(ctx, symbol)
	if err != nil {
		return nil, err
	}

	daily, err := c.dailyBars(ctx, symbol, lookbackDays)
	if err != nil {
		return nil, err
	}

	out := &normalize.PriceSnapshot{
		Symbol: symbol,
		Open:   snap.Ticker.Day.Open,
		Close:  snap.Ticker.Day.Close,
		VWAP:   snap.Ticker.Day.VWAP,
	}

	if avg := averageVolume(daily); avg > 0 {
		out.RVOL = snap.Ticker.Day.Volume / avg
	}
	out.DistributionDays = distributionDays(daily)

	if rejections, err := c.vwapRejections(ctx, symbol); err == nil {
		out.VWAPRejections = rejections
	} else {
		c.logger.WithError(err).WithField("symbol", symbol).Warn("intraday bars unavailable")
	}

	q := snap.Ticker.LastQuote
	depth := q.BidPrice * q.BidSize
	var spread float64
	if mid := (q.BidPrice + q.AskPrice) / 2; mid > 0 {
		spread = (q.AskPrice - q.BidPrice) / mid
	}
	out.BidDepthRatio, out.SpreadRatio = c.microRatios(symbol, depth, spread)

	return out, nil
}

// IndexStatus returns the current price and session VWAP for an index proxy
// such as SPY or QQQ.
func (c *Client) IndexStatus(ctx context.Context, symbol string) (price, vwap float64, err error) {
	snap, err := c.tickerSnapshot(ctx, symbol)
	if err != nil {
		return 0, 0, err
	}
	return snap.Ticker.Day.Close, snap.Ticker.Day.VWAP, nil
}

// VIXChangePct returns the volatility index day-over-day change in percent.
func (c *Client) VIXChangePct(ctx context.Context) (float64, error) {
	snap, err := c.tickerSnapshot(ctx, "I:VIX")
	if err != nil {
		return 0, err
	}
	return snap.Ticker.TodaysChangePerc, nil
}

func (c *Client) tickerSnapshot(ctx context.Context, symbol string) (*snapshotResponse, error) {
	url := fmt.Sprintf("%s/v2/snapshot/locale/us/markets/stocks/tickers/%s?apiKey=%s", c.baseURL, symbol, c.apiKey)
	var resp snapshotResponse
	if err := c.http.GetJSON(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", symbol, err)
	}
	return &resp, nil
}

func (c *Client) dailyBars(ctx context.Context, symbol string, days int) (*aggsResponse, error) {
	to := time.Now()
	from := to.AddDate(0, 0, -days*2) // calendar padding over weekends/holidays
	url := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/1/day/%s/%s?limit=%d&apiKey=%s",
		c.baseURL, symbol, from.Format("2006-01-02"), to.Format("2006-01-02"), days, c.apiKey)

	var resp aggsResponse
	if err := c.http.GetJSON(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("daily bars %s: %w", symbol, err)
	}
	return &resp, nil
}

// vwapRejections counts half-hour bars that probed the session VWAP from
// below and closed back under it.
func (c *Client) vwapRejections(ctx context.Context, symbol string) (int, error) {
	day := time.Now().Format("2006-01-02")
	url := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/30/minute/%s/%s?apiKey=%s", c.baseURL, symbol, day, day, c.apiKey)

	var resp aggsResponse
	if err := c.http.GetJSON(ctx, url, &resp); err != nil {
		return 0, err
	}

	count := 0
	for _, bar := range resp.Results {
		if bar.VWAP > 0 && bar.High >= bar.VWAP && bar.Close < bar.VWAP {
			count++
		}
	}
	return count, nil
}

// microRatios updates the symbol's depth/spread baselines and returns the
// current readings relative to them. First observations read as neutral.
func (c *Client) microRatios(symbol string, depth, spread float64) (depthRatio, spreadRatio float64) {
	const alpha = 0.1

	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.baselines[symbol]
	if !ok {
		b = &baseline{}
		c.baselines[symbol] = b
	}

	if b.n > 0 && b.depth > 0 {
		depthRatio = depth / b.depth
	} else {
		depthRatio = 1
	}
	if b.n > 0 && b.spread > 0 {
		spreadRatio = spread / b.spread
	} else {
		spreadRatio = 1
	}

	if b.n == 0 {
		b.depth, b.spread = depth, spread
	} else {
		b.depth = (1-alpha)*b.depth + alpha*depth
		b.spread = (1-alpha)*b.spread + alpha*spread
	}
	b.n++
	return depthRatio, spreadRatio
}

func averageVolume(a *aggsResponse) float64 {
	if len(a.Results) == 0 {
		return 0
	}
	var total float64
	for _, bar := range a.Results {
		total += bar.Volume
	}
	return total / float64(len(a.Results))
}

func distributionDays(a *aggsResponse) int {
	count := 0
	for i := 1; i < len(a.Results); i++ {
		prev, cur := a.Results[i-1], a.Results[i]
		if prev.Close == 0 {
			continue
		}
		dropPct := (prev.Close - cur.Close) / prev.Close * 100
		if dropPct >= distributionDayDropPct && cur.Volume > prev.Volume {
			count++
		}
	}
	return count
}
