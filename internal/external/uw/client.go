// Package uw is the options-flow, dark-pool and gamma-exposure source.
package uw

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/wonny/vigil/internal/normalize"
	"github.com/wonny/vigil/pkg/config"
	"github.com/wonny/vigil/pkg/httputil"
	"github.com/wonny/vigil/pkg/logger"
)

const (
	blockMinSize = 10000

	// Short-borrow rates above this read as a stress transition.
	borrowStressRatePct = 20.0
)

// Client is a thin vendor client with request pacing.
type Client struct {
	http    *httputil.Client
	baseURL string
	logger  *logger.Logger
}

// NewClient creates an unusual-whales client.
func NewClient(cfg *config.Config, log *logger.Logger) *Client {
	return &Client{
		http: httputil.New(log).
			WithRateLimit(2, 2).
			WithHeader("Authorization", "Bearer "+cfg.UW.APIKey).
			WithHeader("Accept", "application/json"),
		baseURL: cfg.UW.BaseURL,
		logger:  log.WithField("source", "uw"),
	}
}

type greekExposureResponse struct {
	Data []struct {
		Date       string  `json:"date"`
		GammaTotal float64 `json:"gamma_per_one_percent_move_dir"`
	} `json:"data"`
}

type optionsVolumeResponse struct {
	Data []struct {
		PutVolume         float64 `json:"put_volume"`
		AvgPutVolume30D   float64 `json:"avg_30_day_put_volume"`
		BearishPremium    float64 `json:"bearish_premium"`
		BullishPremium    float64 `json:"bullish_premium"`
		ImpliedVolatility float64 `json:"iv"`
		IVOpen            float64 `json:"iv_open"`
	} `json:"data"`
}

type darkPoolResponse struct {
	Data []struct {
		Size       float64 `json:"size"`
		Price      float64 `json:"price"`
		NBBOBid    float64 `json:"nbbo_bid"`
		ExecutedAt string  `json:"executed_at"`
	} `json:"data"`
}

type oiPerStrikeResponse struct {
	Data []struct {
		Strike string  `json:"strike"`
		PutOI  float64 `json:"put_oi"`
	} `json:"data"`
	SpotPrice float64 `json:"spot_price"`
}

type shortDataResponse struct {
	Data struct {
		BorrowRatePct float64 `json:"borrow_rate"`
	} `json:"data"`
}

// Snapshot assembles the per-symbol flow view.
func (c *Client) Snapshot(ctx context.Context, symbol string) (*normalize.FlowSnapshot, error) {
	out := &normalize.FlowSnapshot{Symbol: symbol}

	var greeks greekExposureResponse
	url := fmt.Sprintf("%s/api/stock/%s/greek-exposure", c.baseURL, symbol)
	if err := c.http.GetJSON(ctx, url, &greeks); err != nil {
		return nil, fmt.Errorf("greek exposure %s: %w", symbol, err)
	}
	if len(greeks.Data) > 0 {
		out.GammaExposure = greeks.Data[len(greeks.Data)-1].GammaTotal
	}

	var vol optionsVolumeResponse
	url = fmt.Sprintf("%s/api/stock/%s/options-volume", c.baseURL, symbol)
	if err := c.http.GetJSON(ctx, url, &vol); err != nil {
		return nil, fmt.Errorf("options volume %s: %w", symbol, err)
	}
	if len(vol.Data) > 0 {
		d := vol.Data[0]
		if d.AvgPutVolume30D > 0 {
			out.PutVolumeRatio = d.PutVolume / d.AvgPutVolume30D
		}
		if total := d.BearishPremium + d.BullishPremium; total > 0 {
			// Signed skew: -1 all bearish, +1 all bullish.
			out.FlowSkew = (d.BullishPremium - d.BearishPremium) / total
		}
		if d.IVOpen > 0 {
			out.IVChangeIntraday = (d.ImpliedVolatility - d.IVOpen) / d.IVOpen * 100
		}
	}

	blocks, err := c.darkPoolSellBlocks(ctx, symbol)
	if err != nil {
		// Dark pool endpoint is flaky on small caps; degrade to zero blocks.
		c.logger.WithError(err).WithField("symbol", symbol).Warn("dark pool unavailable")
	}
	out.DarkPoolSellBlocks = blocks

	if err := c.putWall(ctx, symbol, out); err != nil {
		c.logger.WithError(err).WithField("symbol", symbol).Warn("put wall scan unavailable")
	}

	return out, nil
}

// darkPoolSellBlocks counts block-sized prints executed at or below the bid.
func (c *Client) darkPoolSellBlocks(ctx context.Context, symbol string) (int, error) {
	var resp darkPoolResponse
	url := fmt.Sprintf("%s/api/darkpool/%s?limit=200", c.baseURL, symbol)
	if err := c.http.GetJSON(ctx, url, &resp); err != nil {
		return 0, err
	}

	count := 0
	for _, print := range resp.Data {
		if print.Size >= blockMinSize && print.NBBOBid > 0 && print.Price <= print.NBBOBid {
			count++
		}
	}
	return count, nil
}

// putWall finds the largest put open-interest strike and its distance from
// spot.
func (c *Client) putWall(ctx context.Context, symbol string, out *normalize.FlowSnapshot) error {
	var resp oiPerStrikeResponse
	url := fmt.Sprintf("%s/api/stock/%s/oi-per-strike", c.baseURL, symbol)
	if err := c.http.GetJSON(ctx, url, &resp); err != nil {
		return err
	}
	if resp.SpotPrice <= 0 {
		return nil
	}

	var wallStrike, wallOI float64
	for _, row := range resp.Data {
		var strike float64
		if _, err := fmt.Sscanf(row.Strike, "%f", &strike); err != nil {
			continue
		}
		if row.PutOI > wallOI {
			wallOI = row.PutOI
			wallStrike = strike
		}
	}
	if wallOI > 0 {
		out.HasPutWall = true
		out.PutWallDistancePct = math.Abs(wallStrike-resp.SpotPrice) / resp.SpotPrice * 100
	}
	return nil
}

// MarketState is the broad-market view for the regime gate.
type MarketState struct {
	AggregateGamma float64
	BorrowStress   bool
	AsOf           time.Time
}

// MarketState aggregates index-complex gamma exposure and the borrow-rate
// stress flag.
func (c *Client) MarketState(ctx context.Context) (*MarketState, error) {
	state := &MarketState{AsOf: time.Now().UTC()}

	for _, proxy := range []string{"SPY", "QQQ"} {
		var greeks greekExposureResponse
		url := fmt.Sprintf("%s/api/stock/%s/greek-exposure", c.baseURL, proxy)
		if err := c.http.GetJSON(ctx, url, &greeks); err != nil {
			return nil, fmt.Errorf("greek exposure %s: %w", proxy, err)
		}
		if len(greeks.Data) > 0 {
			state.AggregateGamma += greeks.Data[len(greeks.Data)-1].GammaTotal
		}
	}

	var short shortDataResponse
	url := fmt.Sprintf("%s/api/shorts/SPY/data", c.baseURL)
	if err := c.http.GetJSON(ctx, url, &short); err != nil {
		// Borrow data is auxiliary; missing it is not a market-state failure.
		c.logger.WithError(err).Warn("borrow data unavailable")
	} else {
		state.BorrowStress = short.Data.BorrowRatePct >= borrowStressRatePct
	}

	return state, nil
}
