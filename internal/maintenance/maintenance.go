// Package maintenance runs the hub's background upkeep jobs: sweeping
// expired correlator awaits, evicting connections that never completed
// registration, and polling registered MCP servers for liveness.
//
// Grounded on arkeep-io-arkeep/server/internal/scheduler/scheduler.go's
// gocron.Scheduler wrapper (New/Start/Stop lifecycle, one gocron job per
// concern, a zap logger named per component), generalized from that
// package's single backup-dispatch job to three independent recurring
// jobs with no database behind them.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/orchestratorhub/hub/internal/correlator"
	"github.com/orchestratorhub/hub/internal/listener"
	"github.com/orchestratorhub/hub/internal/mcpsupervisor"
	"github.com/orchestratorhub/hub/internal/registry"
)

const (
	correlatorSweepInterval = 5 * time.Second
	pendingSweepInterval    = 30 * time.Second
	pendingMaxAge           = 10 * time.Second
	mcpPollInterval         = time.Minute
	mcpPollTimeout          = 10 * time.Second
)

// Scheduler wraps gocron and coordinates the hub's recurring upkeep
// jobs. The zero value is not usable — create instances with New.
type Scheduler struct {
	cron gocron.Scheduler

	correlator *correlator.Correlator

	agents       *registry.AgentRegistry
	services     *registry.ServiceRegistry
	agentConns   *listener.Listener
	serviceConns *listener.Listener

	mcp *mcpsupervisor.Supervisor

	logger *zap.Logger
}

// Deps names every dependency Scheduler's jobs touch, mirroring the
// teacher's constructor-parameter-per-repository style.
type Deps struct {
	Correlator   *correlator.Correlator
	Agents       *registry.AgentRegistry
	Services     *registry.ServiceRegistry
	AgentConns   *listener.Listener
	ServiceConns *listener.Listener
	MCP          *mcpsupervisor.Supervisor
	Logger       *zap.Logger
}

// New creates and configures a new Scheduler. Call Start to begin
// processing.
func New(deps Deps) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		cron:         s,
		correlator:   deps.Correlator,
		agents:       deps.Agents,
		services:     deps.Services,
		agentConns:   deps.AgentConns,
		serviceConns: deps.ServiceConns,
		mcp:          deps.MCP,
		logger:       deps.Logger.Named("maintenance"),
	}, nil
}

// Start registers and starts all three jobs. Should be called once at
// hub startup, after every component it touches has been constructed.
func (s *Scheduler) Start() error {
	if _, err := s.cron.NewJob(
		gocron.DurationJob(correlatorSweepInterval),
		gocron.NewTask(s.sweepCorrelator),
		gocron.WithTags("correlator-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return fmt.Errorf("failed to schedule correlator sweep: %w", err)
	}

	if _, err := s.cron.NewJob(
		gocron.DurationJob(pendingSweepInterval),
		gocron.NewTask(s.sweepStalePending),
		gocron.WithTags("pending-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return fmt.Errorf("failed to schedule stale-pending sweep: %w", err)
	}

	if _, err := s.cron.NewJob(
		gocron.DurationJob(mcpPollInterval),
		gocron.NewTask(s.pollMCPServers),
		gocron.WithTags("mcp-health-poll"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return fmt.Errorf("failed to schedule mcp health poll: %w", err)
	}

	s.logger.Info("maintenance scheduler started")
	s.cron.Start()
	return nil
}

// Stop gracefully shuts down the underlying gocron scheduler, waiting for
// any currently running job functions to complete before returning.
func (s *Scheduler) Stop() error {
	if err := s.cron.Shutdown(); err != nil {
		return fmt.Errorf("maintenance scheduler shutdown error: %w", err)
	}
	s.logger.Info("maintenance scheduler stopped")
	return nil
}

// sweepCorrelator reclaims correlator awaits whose deadline has already
// passed but whose own timer has not yet fired — a safety net behind
// Await's per-call timer, not the primary expiry path.
func (s *Scheduler) sweepCorrelator() {
	n := s.correlator.SweepExpired(time.Now())
	if n > 0 {
		s.logger.Info("swept expired correlator awaits", zap.Int("count", n))
	}
}

// sweepStalePending force-closes connections that were accepted but never
// completed registration within pendingMaxAge, freeing the hub from
// half-open sockets left by misbehaving or abandoned clients.
func (s *Scheduler) sweepStalePending() {
	cutoff := time.Now().Add(-pendingMaxAge)

	for _, connID := range s.agents.PendingOlderThan(cutoff) {
		if err := s.agentConns.Close(connID); err != nil {
			s.logger.Warn("failed to close stale pending agent connection", zap.String("conn_id", connID), zap.Error(err))
			continue
		}
		s.logger.Info("closed stale pending agent connection", zap.String("conn_id", connID))
	}

	for _, connID := range s.services.PendingOlderThan(cutoff) {
		if err := s.serviceConns.Close(connID); err != nil {
			s.logger.Warn("failed to close stale pending service connection", zap.String("conn_id", connID), zap.Error(err))
			continue
		}
		s.logger.Info("closed stale pending service connection", zap.String("conn_id", connID))
	}
}

// pollMCPServers probes every registered MCP server by requesting its
// tool list, which lazy-reconnects a dropped server and surfaces a
// connection failure as a logged warning rather than silently leaving a
// stale "online" status in place.
func (s *Scheduler) pollMCPServers() {
	for _, server := range s.mcp.List() {
		ctx, cancel := context.WithTimeout(context.Background(), mcpPollTimeout)
		_, err := s.mcp.ListTools(ctx, server.ID)
		cancel()
		if err != nil {
			s.logger.Warn("mcp health poll failed",
				zap.String("server_id", server.ID),
				zap.String("server_name", server.Name),
				zap.Error(err),
			)
		}
	}
}
