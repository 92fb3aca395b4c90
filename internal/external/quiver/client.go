// Package quiver is the insider and congressional filings source.
package quiver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/vigil/internal/normalize"
	"github.com/wonny/vigil/pkg/config"
	"github.com/wonny/vigil/pkg/httputil"
	"github.com/wonny/vigil/pkg/logger"
)

const (
	insiderLookbackDays  = 30
	congressLookbackDays = 60
)

// Client is a thin vendor client with request pacing.
type Client struct {
	http    *httputil.Client
	baseURL string
	logger  *logger.Logger
}

// NewClient creates a quiver client.
func NewClient(cfg *config.Config, log *logger.Logger) *Client {
	return &Client{
		http: httputil.New(log).
			WithRateLimit(1, 2).
			WithHeader("Authorization", "Bearer "+cfg.Quiver.APIKey).
			WithHeader("Accept", "application/json"),
		baseURL: cfg.Quiver.BaseURL,
		logger:  log.WithField("source", "quiver"),
	}
}

type insiderTransaction struct {
	Date             string  `json:"Date"`
	Name             string  `json:"Name"`
	AcquiredDisposed string  `json:"AcquiredDisposedCode"` // A or D
	Shares           float64 `json:"Shares"`
}

type congressTransaction struct {
	TransactionDate string `json:"TransactionDate"`
	Transaction     string `json:"Transaction"` // Purchase or Sale
	Representative  string `json:"Representative"`
}

// Snapshot assembles the per-symbol filings view: disposal counts over the
// lookback windows with distinct-filer counts for cluster detection.
func (c *Client) Snapshot(ctx context.Context, symbol string) (*normalize.FilingsSnapshot, error) {
	out := &normalize.FilingsSnapshot{Symbol: symbol}

	var insiders []insiderTransaction
	url := fmt.Sprintf("%s/beta/historical/insiders/%s", c.baseURL, symbol)
	if err := c.http.GetJSON(ctx, url, &insiders); err != nil {
		return nil, fmt.Errorf("insider filings %s: %w", symbol, err)
	}

	cutoff := time.Now().AddDate(0, 0, -insiderLookbackDays)
	sellers := make(map[string]bool)
	for _, tx := range insiders {
		when, err := parseFilingDate(tx.Date)
		if err != nil || when.Before(cutoff) {
			continue
		}
		if tx.AcquiredDisposed == "D" && tx.Shares > 0 {
			out.InsiderSells30D++
			sellers[tx.Name] = true
		}
	}
	out.InsiderSellers = len(sellers)

	var congress []congressTransaction
	url = fmt.Sprintf("%s/beta/historical/congresstrading/%s", c.baseURL, symbol)
	if err := c.http.GetJSON(ctx, url, &congress); err != nil {
		// Congressional data lags filings by weeks; degrade to insider-only.
		c.logger.WithError(err).WithField("symbol", symbol).Warn("congress trading unavailable")
		return out, nil
	}

	cutoff = time.Now().AddDate(0, 0, -congressLookbackDays)
	for _, tx := range congress {
		when, err := parseFilingDate(tx.TransactionDate)
		if err != nil || when.Before(cutoff) {
			continue
		}
		if strings.EqualFold(tx.Transaction, "Sale") {
			out.CongressSells60D++
		}
	}

	return out, nil
}

func parseFilingDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006-01-02T15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
