// Package earnings scrapes a public earnings calendar. The regime gate uses
// it to veto cycles near mega-cap report dates.
package earnings

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/vigil/pkg/httputil"
	"github.com/wonny/vigil/pkg/logger"
	"github.com/wonny/vigil/pkg/redis"
)

const defaultBaseURL = "https://finance.yahoo.com/calendar/earnings"

// Index-moving reporters. An earnings date from any of these inside the scan
// horizon vetoes the cycle.
var megaCaps = map[string]bool{
	"AAPL": true, "MSFT": true, "NVDA": true, "AMZN": true,
	"GOOGL": true, "GOOG": true, "META": true, "TSLA": true,
	"AVGO": true, "BRK.B": true,
}

// Event is one earnings calendar row.
type Event struct {
	Symbol  string    `json:"symbol"`
	Company string    `json:"company"`
	Date    time.Time `json:"date"`
	Session string    `json:"session"` // bmo, amc or blank
}

// Calendar fetches and caches daily earnings pages.
type Calendar struct {
	http    *httputil.Client
	baseURL string
	cache   *redis.Cache
	logger  *logger.Logger
}

// NewCalendar creates a calendar scraper. cache may be nil.
func NewCalendar(log *logger.Logger, cache *redis.Cache) *Calendar {
	return &Calendar{
		http:    httputil.New(log).WithRateLimit(0.5, 1),
		baseURL: defaultBaseURL,
		cache:   cache,
		logger:  log.WithField("source", "earnings"),
	}
}

// Day returns the events reporting on the given date. Pages are cached for
// an hour; the calendar rarely changes intraday.
func (c *Calendar) Day(ctx context.Context, day time.Time) ([]Event, error) {
	dateStr := day.Format("2006-01-02")

	var events []Event
	if c.cache != nil {
		if found, err := c.cache.Get(ctx, redis.EarningsCalendarKey(dateStr), &events); err == nil && found {
			return events, nil
		}
	}

	url := fmt.Sprintf("%s?day=%s", c.baseURL, dateStr)
	resp, err := c.http.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("earnings calendar fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("earnings calendar fetch: status %d", resp.StatusCode)
	}

	events, err = parseEvents(resp.Body, day)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		_ = c.cache.Set(ctx, redis.EarningsCalendarKey(dateStr), events, redis.TTLLong)
	}
	return events, nil
}

// HasMegaCapEarnings reports whether any index-moving name reports within
// the next `days` calendar days.
func (c *Calendar) HasMegaCapEarnings(ctx context.Context, from time.Time, days int) (bool, error) {
	for i := 0; i <= days; i++ {
		events, err := c.Day(ctx, from.AddDate(0, 0, i))
		if err != nil {
			return false, err
		}
		for _, ev := range events {
			if megaCaps[ev.Symbol] {
				return true, nil
			}
		}
	}
	return false, nil
}

// HasEarningsWithin reports whether the symbol reports within the next
// `days` calendar days.
func (c *Calendar) HasEarningsWithin(ctx context.Context, symbol string, from time.Time, days int) (bool, error) {
	for i := 0; i <= days; i++ {
		events, err := c.Day(ctx, from.AddDate(0, 0, i))
		if err != nil {
			return false, err
		}
		for _, ev := range events {
			if ev.Symbol == symbol {
				return true, nil
			}
		}
	}
	return false, nil
}

// parseEvents extracts calendar rows from the page table.
func parseEvents(r io.Reader, day time.Time) ([]Event, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("earnings calendar parse: %w", err)
	}

	var events []Event
	doc.Find("table tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}

		symbol := strings.TrimSpace(cells.Eq(0).Text())
		if symbol == "" {
			return
		}

		ev := Event{
			Symbol:  strings.ToUpper(symbol),
			Company: strings.TrimSpace(cells.Eq(1).Text()),
			Date:    day,
		}

		if cells.Length() > 2 {
			call := strings.ToLower(strings.TrimSpace(cells.Eq(2).Text()))
			switch {
			case strings.Contains(call, "before"):
				ev.Session = "bmo"
			case strings.Contains(call, "after"):
				ev.Session = "amc"
			}
		}

		events = append(events, ev)
	})

	return events, nil
}
