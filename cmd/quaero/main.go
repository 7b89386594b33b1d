// -----------------------------------------------------------------------
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quaero/internal/common"
	"github.com/ternarybob/quaero/internal/fetch"
	"github.com/ternarybob/quaero/internal/htmlparser"
	"github.com/ternarybob/quaero/internal/interfaces"
	"github.com/ternarybob/quaero/internal/providers"
	"github.com/ternarybob/quaero/internal/queuebuilder"
	"github.com/ternarybob/quaero/internal/ratelimit"
	"github.com/ternarybob/quaero/internal/scheduler"
	"github.com/ternarybob/quaero/internal/session"
	"github.com/ternarybob/quaero/internal/storage/sqlite"
	"github.com/ternarybob/quaero/internal/worker"
)

var (
	configPath  = flag.String("config", "", "Configuration file path (TOML)")
	runOnce     = flag.Bool("once", false, "Run a single scheduler pass and exit, instead of looping")
	showVersion = flag.Bool("version", false, "Print version information")
)

func main() {
	common.InstallCrashHandler("./logs")
	defer common.RecoverWithCrashFile()

	flag.Parse()

	if *showVersion {
		fmt.Printf("quaero version %s\n", common.GetVersion())
		os.Exit(0)
	}

	path := *configPath
	if path == "" {
		if _, err := os.Stat("quaero.toml"); err == nil {
			path = "quaero.toml"
		}
	}

	config, err := common.LoadConfig(path)
	if err != nil {
		arbor.NewLogger().Fatal().Err(err).Str("path", path).Msg("Failed to load configuration")
		os.Exit(1)
	}

	logger := common.SetupLogger(config)
	common.PrintBanner(config, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := build(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize scheduler")
	}
	defer app.storage.Close()

	if *runOnce {
		if err := app.scheduler.RunOnce(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Single scheduler pass failed")
		}
		common.PrintShutdownBanner(logger)
		return
	}

	if err := app.scheduler.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Scheduler failed to start")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := app.scheduler.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Scheduler shutdown failed")
	}

	common.PrintShutdownBanner(logger)
}

// application bundles the storage handle alongside the scheduler so main can
// close the database after the scheduler has fully stopped.
type application struct {
	storage   interfaces.StorageManager
	scheduler *scheduler.Service
}

// build wires every component: storage, rate gate, HTTP fetcher, structured
// API router, HTML fallback parser, queue builder, worker pool, and
// scheduler, in the dependency order each needs its collaborators.
func build(config *common.Config, logger arbor.ILogger) (*application, error) {
	storageManager, err := sqlite.NewManager(logger, &config.Database, config.Environment, config.Scheduler.CrawlIntervalHours)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	gate := ratelimit.New(config.RateLimit)
	httpFetcher := fetch.New(config.HTTP, config.Retry)
	rateGatedFetcher := session.New(gate, httpFetcher)

	router := providers.NewRouter(httpFetcher, logger)
	parser := htmlparser.New(rateGatedFetcher, logger, jobFilterFrom(config.JobFilter))

	builder := queuebuilder.New(storageManager.Companies(), storageManager.Cache(), router, config.Scheduler.CrawlInterval(), logger)
	pool := worker.New(storageManager.Companies(), storageManager.Cache(), storageManager.CrawlLogs(), router, parser, config.Worker, logger)

	sched := scheduler.New(builder, pool, config.Scheduler, config.Heartbeat, logger)

	return &application{storage: storageManager, scheduler: sched}, nil
}

// jobFilterFrom converts configuration into the HTML parser's keyword
// filter, or nil when no keywords are configured, so an empty config block
// keeps every scraped posting rather than matching nothing.
func jobFilterFrom(cfg common.JobFilterConfig) *interfaces.JobFilter {
	if len(cfg.IncludeKeywords) == 0 && len(cfg.ExcludeKeywords) == 0 && len(cfg.RequiredKeywords) == 0 {
		return nil
	}
	return &interfaces.JobFilter{
		IncludeKeywords:  cfg.IncludeKeywords,
		ExcludeKeywords:  cfg.ExcludeKeywords,
		RequiredKeywords: cfg.RequiredKeywords,
		TitleOnly:        cfg.TitleOnly,
		MinMatches:       cfg.MinMatches,
	}
}
