package contracts

import "time"

// JobType identifies a scan job flavor on the calendar.
type JobType string

const (
	JobFullScan    JobType = "full_scan"    // all sources, full pipeline
	JobFlowScan    JobType = "flow_scan"    // options flow / dark pool only
	JobFilingsScan JobType = "filings_scan" // insider / congressional filings
	JobMaintenance JobType = "maintenance"  // persistence housekeeping, no vendor calls
)

// ScanJob is an immutable job definition on the scan calendar. Execution
// produces zero or more scored results plus budget consumption.
type ScanJob struct {
	Type JobType `json:"job_type"`

	// Schedule is a cron expression in exchange-local time.
	Schedule string `json:"schedule"`

	Symbols         []string `json:"symbols"`
	RequiredSources []Source `json:"required_sources"`

	// CallsPerSymbol is the admission-time cost estimate per source: the
	// number of vendor requests one symbol snapshot fans out to. A source
	// without an entry is per-cycle, costing one call regardless of
	// watchlist size.
	CallsPerSymbol map[Source]int `json:"calls_per_symbol"`

	// AllowDegraded permits running against only the sources that have
	// headroom. When false the job is skipped unless every required source
	// can serve it.
	AllowDegraded bool `json:"allow_degraded"`
}

// CycleResult is the persisted per-cycle output, keyed by engine.
type CycleResult struct {
	Cycle           time.Time                 `json:"cycle_timestamp"`
	Verdict         *RegimeVerdict            `json:"verdict"`
	ResultsByEngine map[Engine][]ScoredResult `json:"results_by_engine"`
	CompletedAt     time.Time                 `json:"completed_at"`
}
