package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/vigil/internal/api"
	"github.com/wonny/vigil/internal/contracts"
	"github.com/wonny/vigil/internal/budget"
	"github.com/wonny/vigil/internal/conviction"
	"github.com/wonny/vigil/internal/external/earnings"
	"github.com/wonny/vigil/internal/external/polygon"
	"github.com/wonny/vigil/internal/external/quiver"
	"github.com/wonny/vigil/internal/external/uw"
	"github.com/wonny/vigil/internal/scan"
	"github.com/wonny/vigil/internal/scheduler"
	"github.com/wonny/vigil/internal/scheduler/jobs"
	"github.com/wonny/vigil/internal/scoring"
	"github.com/wonny/vigil/internal/store"
	"github.com/wonny/vigil/internal/universe"
	"github.com/wonny/vigil/internal/weights"
	"github.com/wonny/vigil/pkg/config"
	"github.com/wonny/vigil/pkg/database"
	"github.com/wonny/vigil/pkg/logger"
	"github.com/wonny/vigil/pkg/redis"
)

// runtime holds the wired application graph shared by the commands.
type runtime struct {
	cfg     *config.Config
	log     *logger.Logger
	db      *database.DB
	redis   *redis.Client
	store   *store.Store
	budget  *budget.Manager
	agg     *conviction.Aggregator
	orch    *scan.Orchestrator
	sched   *scheduler.Scheduler
	hub     *api.Hub
	symbols []string
}

// initRuntime wires the full scanner. The database and Redis are optional:
// without a DATABASE_URL results stay in memory, without Redis the cooldown
// state does not survive restarts.
func initRuntime() (*runtime, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Load the weight table
	wcfg, err := weights.LoadOrDefault(cfg.Scan.WeightsPath)
	if err != nil {
		return nil, fmt.Errorf("load weights: %w", err)
	}
	scorer, err := scoring.New(wcfg)
	if err != nil {
		return nil, fmt.Errorf("init scorer: %w", err)
	}

	// 4. Connect to Redis (optional)
	redisClient, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, running without cache")
		redisClient = nil
	}
	var cache *redis.Cache
	if redisClient != nil && redisClient.Enabled() {
		cache = redis.NewCache(redisClient, "vigil")
	}

	// 5. Connect to PostgreSQL (optional)
	var db *database.DB
	var st *store.Store
	if cfg.Database.URL != "" {
		db, err = database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		st = store.New(db.Pool, log)
		log.Info("Connected to database")
	} else {
		log.Warn("No DATABASE_URL, cycle results will not be persisted")
	}

	// 6. Budget manager in exchange time, with the ledger sink when available
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return nil, fmt.Errorf("load exchange timezone: %w", err)
	}
	var checkpoint budget.CheckpointFunc
	if st != nil {
		checkpoint = st.Ledger.Checkpoint
	}
	bm := budget.NewManager(budget.DefaultLimits(), loc, cfg.Scan.LedgerCheckpointEvery, checkpoint)

	// 7. Cooldown tracker, persisted through Redis when enabled
	cooldown := scheduler.NewCooldownTracker(cfg.Scan.Cooldown, cache)

	// 8. External data source clients
	polygonClient := polygon.NewClient(cfg, log)
	uwClient := uw.NewClient(cfg, log)
	quiverClient := quiver.NewClient(cfg, log)
	calendar := earnings.NewCalendar(log, cache)

	// 9. Conviction aggregator, warm-started from the last persisted alert
	// set so conviction does not reset to zero on every restart
	agg := conviction.New(wcfg.Conviction)
	warmStartConviction(agg, st, cache, log)
	hub := api.NewHub(log)

	// 10. Orchestrator
	deps := scan.Deps{
		Logger:     log,
		Scorer:     scorer,
		Conviction: agg,
		Budget:     bm,
		Cooldown:   cooldown,
		Price:      polygonClient,
		Flow:       uwClient,
		Filings:    quiverClient,
		Earnings:   calendar,
		Publisher:  hub,
		Workers:    cfg.Scan.Workers,
		Location:   loc,
	}
	if st != nil {
		deps.Store = st
	}
	if cache != nil {
		deps.Cache = cache
	}
	orch := scan.New(deps)

	// 11. Scheduler with the scan calendar, in exchange time
	symbols := universe.Build(cfg.Scan.Watchlist)
	sched := scheduler.New(log, bm, cooldown, loc)
	for _, job := range jobs.All(orch, symbols) {
		if err := sched.AddJob(job); err != nil {
			return nil, fmt.Errorf("register job: %w", err)
		}
	}
	if st != nil {
		if err := sched.AddJob(jobs.NewHistoryPrune(st, log)); err != nil {
			return nil, fmt.Errorf("register job: %w", err)
		}
	}

	return &runtime{
		cfg:     cfg,
		log:     log,
		db:      db,
		redis:   redisClient,
		store:   st,
		budget:  bm,
		agg:     agg,
		orch:    orch,
		sched:   sched,
		hub:     hub,
		symbols: symbols,
	}, nil
}

// warmStartConviction seeds the aggregator with the alert set the previous
// process left behind: the database when wired, the Redis mirror otherwise.
// Best effort; a cold start is degraded, not fatal.
func warmStartConviction(agg *conviction.Aggregator, st *store.Store, cache *redis.Cache, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var records []contracts.ConvictionRecord
	switch {
	case st != nil:
		recs, err := st.Alerts.GetActive(ctx)
		if err != nil {
			log.WithError(err).Warn("Conviction warm start failed, starting cold")
			return
		}
		records = recs
	case cache != nil:
		if found, err := cache.Get(ctx, redis.AlertSetKey(), &records); err != nil || !found {
			return
		}
	default:
		return
	}

	if len(records) > 0 {
		agg.Seed(records, time.Now())
		log.WithField("symbols", len(records)).Info("Conviction history restored")
	}
}

// close releases the runtime's connections.
func (rt *runtime) close() {
	if rt.db != nil {
		rt.db.Close()
	}
	if rt.redis != nil {
		_ = rt.redis.Close()
	}
}
