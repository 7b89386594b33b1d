// Package scheduler drives the periodic crawl loop: robfig/cron/v3 for the
// outer tick cadence, a hand-rolled state machine for the inner batch
// choreography, grounded on the teacher's cron-based scheduler.Service.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quaero/internal/common"
	"github.com/ternarybob/quaero/internal/interfaces"
	"github.com/ternarybob/quaero/internal/models"
)

// state names the scheduler's current phase, reported via the heartbeat file.
type state string

const (
	stateIdle        state = "idle"
	stateBuilding    state = "building"
	stateDispatching state = "dispatching"
	stateWaiting     state = "waiting"
)

// Service implements interfaces.SchedulerService, driving the
// IDLE -> BUILDING -> DISPATCHING -> WAITING state machine on a cron cadence.
type Service struct {
	builder interfaces.QueueBuilder
	pool    interfaces.WorkerPool
	cfg     common.SchedulerConfig
	hbCfg   common.HeartbeatConfig
	logger  arbor.ILogger

	cron *cron.Cron

	// running acts as a non-blocking reentrancy guard: a tick takes the
	// single token before dispatching and returns it when done. A tick
	// that finds the channel empty skips itself rather than blocking.
	running chan struct{}

	mu        sync.Mutex
	state     state
	heartbeat chan struct{} // closed on Stop to end the heartbeat ticker and further batch dispatch
}

// New wires a scheduler service from the queue builder, worker pool, and
// scheduler/heartbeat configuration.
func New(builder interfaces.QueueBuilder, pool interfaces.WorkerPool, cfg common.SchedulerConfig, hbCfg common.HeartbeatConfig, logger arbor.ILogger) *Service {
	return &Service{
		builder:   builder,
		pool:      pool,
		cfg:       cfg,
		hbCfg:     hbCfg,
		logger:    logger,
		cron:      cron.New(),
		running:   make(chan struct{}, 1),
		state:     stateIdle,
		heartbeat: make(chan struct{}),
	}
}

// Start registers the periodic tick with cron, fires one tick immediately,
// and begins the idle-heartbeat ticker.
func (s *Service) Start(ctx context.Context) error {
	spec := fmt.Sprintf("@every %s", s.cfg.CrawlInterval())
	if _, err := s.cron.AddFunc(spec, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("scheduler: failed to register tick: %w", err)
	}
	s.cron.Start()

	common.SafeGo(s.logger, "heartbeatLoop", s.heartbeatLoop)
	common.SafeGoWithContext(ctx, s.logger, "initialTick", func() { s.tick(ctx) })

	s.logger.Info().Str("interval", s.cfg.CrawlInterval().String()).Msg("Scheduler started")
	return nil
}

// Stop halts the cron scheduler and waits (best-effort, bounded) for any
// in-flight tick's current batch to finish.
func (s *Service) Stop(ctx context.Context) error {
	close(s.heartbeat)

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		s.logger.Warn().Msg("Scheduler shutdown deadline exceeded waiting for cron to drain")
	}

	// Wait for the reentrancy token to be free, meaning no tick is mid-flight.
	select {
	case s.running <- struct{}{}:
		<-s.running
	case <-ctx.Done():
		s.logger.Warn().Msg("Scheduler shutdown deadline exceeded waiting for in-flight tick")
	}

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// RunOnce executes exactly one tick synchronously, for the CLI's -once flag.
func (s *Service) RunOnce(ctx context.Context) error {
	s.tick(ctx)
	return nil
}

// tick runs one full IDLE -> BUILDING -> DISPATCHING -> WAITING pass. If a
// previous tick is still dispatching, this tick is skipped.
func (s *Service) tick(ctx context.Context) {
	select {
	case s.running <- struct{}{}:
	default:
		s.logger.Warn().Msg("Scheduler tick skipped: previous tick still dispatching")
		return
	}
	defer func() { <-s.running }()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(debug.Stack())).
				Msg("panic recovered in scheduler tick")
		}
	}()

	s.setState(stateBuilding)
	entries, stats, err := s.builder.BuildStale(ctx, s.cfg.CrawlInterval())
	if err != nil {
		s.logger.Error().Err(err).Msg("Queue build failed, tick aborted")
		s.setState(stateIdle)
		return
	}
	if len(entries) == 0 {
		s.logger.Debug().Msg("Queue empty, nothing to crawl this tick")
		s.setState(stateIdle)
		return
	}

	s.logger.Info().
		Int("companies", stats.CompanyCount).
		Int("subscribers", stats.SubscriberTotal).
		Str("estimated_duration", stats.EstimatedDuration.String()).
		Msg("Queue built")

	s.setState(stateDispatching)
	s.dispatch(ctx, entries)

	s.setState(stateWaiting)
}

// dispatch splits entries into batches of cfg.BatchSize and runs each
// through the worker pool in order, sleeping batch_delay between batches
// and refreshing the heartbeat after each.
func (s *Service) dispatch(ctx context.Context, entries []models.QueueEntry) {
	batchSize := s.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}

	tickID := common.NewTickID()

	for start := 0; start < len(entries); start += batchSize {
		end := start + batchSize
		if end > len(entries) {
			end = len(entries)
		}
		batch := entries[start:end]
		batchID := common.NewBatchID()

		results := s.pool.Run(ctx, batch, tickID, batchID, false)
		s.logBatch(batchID, results)
		s.writeHeartbeat(stateDispatching)

		isLast := end >= len(entries)
		if !isLast {
			select {
			case <-ctx.Done():
				s.logger.Warn().Msg("Shutdown signalled mid-dispatch, remaining batches not started")
				return
			case <-s.heartbeat:
				s.logger.Warn().Msg("Scheduler stopping mid-dispatch, remaining batches not started")
				return
			case <-time.After(s.cfg.BatchDelay()):
			}
		}
	}
}

func (s *Service) logBatch(batchID string, results []interfaces.WorkResult) {
	success, failed, jobsFound := 0, 0, 0
	for _, r := range results {
		if r.Success {
			success++
		} else {
			failed++
		}
		jobsFound += r.JobsFound
	}
	s.logger.Info().
		Str("batch_id", batchID).
		Int("success", success).
		Int("failed", failed).
		Int("jobs_found", jobsFound).
		Msg("Batch complete")
}

func (s *Service) setState(st state) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	s.writeHeartbeat(st)
}

// heartbeatLoop refreshes the heartbeat file every 60s with the current state,
// whatever it is, so an external liveness check never sees a stale timestamp between ticks.
func (s *Service) heartbeatLoop() {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.heartbeat:
			return
		case <-ticker.C:
			s.mu.Lock()
			st := s.state
			s.mu.Unlock()
			s.writeHeartbeat(st)
		}
	}
}

type heartbeatPayload struct {
	UpdatedAt string `json:"updated_at"`
	State     string `json:"state"`
}

func (s *Service) writeHeartbeat(st state) {
	path := s.hbCfg.Path
	if path == "" {
		path = "./data/heartbeat.json"
	}
	payload := heartbeatPayload{
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
		State:     string(st),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to encode heartbeat payload")
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("Failed to write heartbeat file")
	}
}

var _ interfaces.SchedulerService = (*Service)(nil)
