package daemon

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cortexd/cortexd/internal/anomaly"
	"github.com/cortexd/cortexd/internal/api"
	"github.com/cortexd/cortexd/internal/bus"
	"github.com/cortexd/cortexd/internal/compress"
	"github.com/cortexd/cortexd/internal/cortex"
	"github.com/cortexd/cortexd/internal/crossdomain"
	"github.com/cortexd/cortexd/internal/domain"
	"github.com/cortexd/cortexd/internal/escalation"
	"github.com/cortexd/cortexd/internal/incident"
	"github.com/cortexd/cortexd/internal/infra/metricsdb"
	"github.com/cortexd/cortexd/internal/infra/store"
	"github.com/cortexd/cortexd/internal/probe"
	"github.com/cortexd/cortexd/internal/rtl"
	"github.com/cortexd/cortexd/internal/runbook"
	"github.com/cortexd/cortexd/internal/session"
)

// Daemon is the cortexd runtime. It wires together the shared store and
// bus, the three cognitive subsystems (self-healing, real-time
// learning, knowledge compression), and the session preserver and
// cortex router that sit alongside them.
type Daemon struct {
	Config Config

	Store     *store.Store
	MetricsDB *metricsdb.DB
	Bus       *bus.Bus
	Server    *api.Server

	Probes     *probe.Registry
	Classifier *anomaly.Classifier
	Incidents  *incident.Manager
	Runbooks   *runbook.Registry
	Executor   *runbook.Executor
	Escalation *escalation.Router

	RTL *rtl.Pipeline

	Compressor *compress.Compressor
	CrossMatch *crossdomain.Matcher
	Sessions   *session.Preserver
	Router     *cortex.Router

	cancel context.CancelFunc
}

// New creates and initializes a Daemon with all services wired, loading
// configuration from disk.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration. Every
// optional backend (the guaranteed-delivery bus channel, most directly)
// degrades to a no-op rather than failing construction — the daemon
// must always come up, same as the teacher daemon's cascading backend
// selection never hard-fails.
func NewWithConfig(cfg Config) (*Daemon, error) {
	st, err := store.Open(cfg.Store.Dir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	mdb, err := metricsdb.Open(cfg.Store.Dir)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open metrics db: %w", err)
	}

	var guaranteed bus.GuaranteedChannel
	if cfg.Bus.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Bus.RedisAddr})
		guaranteed = bus.NewRedisChannel(client, cfg.Bus.RedisTopic)
	} else {
		guaranteed = bus.NoopChannel{}
	}
	b := bus.New(guaranteed)

	d := &Daemon{Config: cfg, Store: st, MetricsDB: mdb, Bus: b}

	// ─── Self-healing engine ────────────────────────────────────────────

	d.Probes = probe.NewRegistry(func(r domain.Reading) {
		for _, a := range d.Classifier.Classify(r) {
			d.handleAnomaly(a)
		}
	})

	d.Classifier = anomaly.New(anomaly.DefaultRules())

	incidentCfg := incident.DefaultConfig()
	incidentCfg.MaxAttempts = cfg.Incident.MaxAttempts
	incidentCfg.DismissWindow = time.Duration(cfg.Incident.DismissWindowSecs) * time.Second
	d.Incidents = incident.New(st, incidentCfg)

	d.Runbooks = runbook.NewRegistry(st, runbook.DefaultDefinitions())
	d.Executor = runbook.NewExecutor(d.Runbooks, d.Classifier.AsFunc(), d.Incidents, b)

	d.Escalation = escalation.NewRouter(b, mdb)

	// ─── Real-time learning pipeline ────────────────────────────────────

	d.RTL = rtl.New(rtl.Config{
		Store:           st,
		Bus:             b,
		SOPDir:          cfg.RTL.SOPDir,
		GitDir:          cfg.RTL.GitDir,
		RegressionRoot:  cfg.RTL.RegressionRoot,
		StoreDBPath:     filepath.Join(cfg.Store.Dir, "cortex.db"),
		QueueCapacity:   cfg.RTL.QueueCapacity,
		CorrectionRPS:   cfg.RTL.CorrectionRPS,
		CorrectionBurst: cfg.RTL.CorrectionBurst,
	})

	// ─── Knowledge compression engine ───────────────────────────────────

	clusterCfg := compress.ClusterConfig{
		MinMembers:       cfg.Compression.MinClusterMembers,
		MaxMembers:       cfg.Compression.MaxClusterMembers,
		MinAvgSimilarity: cfg.Compression.MinAvgSimilarity,
	}
	distiller := compress.NewDistiller(compress.TemplateClient{}, cfg.Compression.MinCompressionRatio)
	archiver := compress.NewArchiver(st)
	d.Compressor = compress.NewCompressor(st, compress.NewClusterFinder(clusterCfg), distiller, archiver)

	// ─── Cross-domain pattern matching ──────────────────────────────────

	d.CrossMatch = crossdomain.NewMatcher(st,
		crossdomain.NewTradingExtractor(),
		crossdomain.NewRadioExtractor(),
		crossdomain.NewFleetExtractor(),
		crossdomain.NewMetaExtractor(),
	)

	// ─── Session preserver ───────────────────────────────────────────────

	d.Sessions = session.NewPreserver(cfg.Session.Dir, st, session.Config{
		LookbackDays:       cfg.Session.LookbackDays,
		RelevanceThreshold: cfg.Session.RelevanceThreshold,
		MaxSessionsScored:  cfg.Session.MaxSessionsScored,
		MaxInheritedPins:   cfg.Session.MaxInheritedPins,
		DecayMinFloor:      cfg.Session.DecayMinFloor,
	})

	// ─── Shared cortex router ────────────────────────────────────────────

	d.Router = cortex.NewRouter(st, b, mdb)

	// ─── Admin HTTP surface ──────────────────────────────────────────────

	srv := api.NewServer(d.Incidents, d.Runbooks, d.Sessions)
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}
	d.Server = srv

	return d, nil
}

// handleAnomaly is the central control flow of spec §2: detect → classify
// (already done by the caller) → upsert the incident → run the applicable
// runbook under verification → escalate per the resulting tier. Every step
// after the upsert is best-effort with respect to the incident's own
// lifecycle — a runbook or escalation failure is logged, never dropped
// silently, since the incident row itself already reflects the outcome.
func (d *Daemon) handleAnomaly(a domain.Anomaly) {
	inc, err := d.Incidents.UpsertIncident(a)
	if err != nil {
		log.Printf("[daemon] incident upsert failed for %s/%s: %v", a.Type, a.TargetID, err)
		return
	}
	if inc.State == domain.IncidentDismissed {
		return
	}

	defs := d.Runbooks.For(a.Type)
	runbookExists := len(defs) > 0
	mode := domain.RunbookModeDryRun
	confidence := 0.0
	remediationFailed := false

	if runbookExists {
		def := defs[0]
		if stats, err := d.Runbooks.Stats(def.ID); err == nil {
			mode = stats.Mode
			if total := stats.SuccessCount + stats.FailureCount; total > 0 {
				confidence = float64(stats.SuccessCount) / float64(total)
			}
		}

		reading := func() domain.Reading {
			r, _ := d.Probes.Latest(a.SourceID)
			return r
		}

		execCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		result, err := d.Executor.Execute(execCtx, def, inc, a, reading)
		cancel()
		switch {
		case err != nil:
			log.Printf("[daemon] runbook %s execution error for incident %s: %v", def.ID, inc.ID, err)
		case result.SelfResolved:
			return
		default:
			remediationFailed = result.EscalationNeeded
		}
	}

	tier := escalation.SelectTier(runbookExists, mode, confidence, d.Config.Escalation.ConfidenceThreshold, remediationFailed, a.Severity)
	fireCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.Escalation.Fire(fireCtx, tier, *inc); err != nil {
		log.Printf("[daemon] escalation fire failed for incident %s: %v", inc.ID, err)
	}
}

// Serve starts every background loop (probe polling, RTL drain) and the
// HTTP server, blocking until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	go d.Probes.Run(ctx)
	go d.RTL.Run(ctx)

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		_ = httpServer.Shutdown(shutdownCtx)
		d.Close()
	}()

	log.Printf("[daemon] cortexd serving admin API on http://%s", addr)
	if d.Config.Telemetry.Prometheus {
		log.Printf("[daemon] metrics: http://%s/metrics", addr)
	}

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.MetricsDB != nil {
		_ = d.MetricsDB.Close()
	}
	if d.Store != nil {
		_ = d.Store.Close()
	}
}
