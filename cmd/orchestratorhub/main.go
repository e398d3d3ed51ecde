// Command orchestratorhub runs the message-routing hub: three
// peer-facing websocket listeners (agent, service, client), the admin
// HTTP API, and the background maintenance scheduler.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/orchestratorhub/hub/internal/adminapi"
	"github.com/orchestratorhub/hub/internal/config"
	"github.com/orchestratorhub/hub/internal/correlator"
	"github.com/orchestratorhub/hub/internal/envelope"
	"github.com/orchestratorhub/hub/internal/eventbus"
	"github.com/orchestratorhub/hub/internal/listener"
	"github.com/orchestratorhub/hub/internal/maintenance"
	"github.com/orchestratorhub/hub/internal/mcpsupervisor"
	"github.com/orchestratorhub/hub/internal/registry"
	"github.com/orchestratorhub/hub/internal/router"
	"github.com/orchestratorhub/hub/internal/task"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	cfg := config.Default()

	root := &cobra.Command{
		Use:   "orchestratorhub",
		Short: "orchestratorhub — websocket message-routing hub for agents, services, and clients",
		Long: `orchestratorhub connects Agent, Service, and Client peers over three
websocket endpoints and routes typed JSON envelopes between them:
task delegation, service invocation, and MCP tool execution.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			// Flags are the final override layer: anything the operator set
			// explicitly on the command line wins over file/env/defaults.
			applyFlagOverrides(cmd, loaded)
			return run(cmd.Context(), loaded)
		},
	}

	root.AddCommand(newVersionCmd())

	root.PersistentFlags().StringVar(&configPath, "config", envOrDefault("ORCHESTRATORHUB_CONFIG", ""), "Path to a YAML config file")
	root.PersistentFlags().StringVar(&cfg.AgentAddr, "agent-addr", cfg.AgentAddr, "Agent listener address")
	root.PersistentFlags().StringVar(&cfg.ServiceAddr, "service-addr", cfg.ServiceAddr, "Service listener address")
	root.PersistentFlags().StringVar(&cfg.ClientAddr, "client-addr", cfg.ClientAddr, "Client listener address")
	root.PersistentFlags().StringVar(&cfg.AdminAddr, "admin-addr", cfg.AdminAddr, "Admin API listen address")
	root.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&cfg.AdminTokenSecret, "admin-token-secret", cfg.AdminTokenSecret, "Shared secret for admin API bearer tokens (empty = disabled, dev only)")

	return root
}

// applyFlagOverrides copies flag values the operator explicitly set onto
// the loaded config, so a flag the operator never touched does not
// clobber a value that came from the YAML file or environment.
func applyFlagOverrides(cmd *cobra.Command, loaded *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("agent-addr") {
		loaded.AgentAddr, _ = flags.GetString("agent-addr")
	}
	if flags.Changed("service-addr") {
		loaded.ServiceAddr, _ = flags.GetString("service-addr")
	}
	if flags.Changed("client-addr") {
		loaded.ClientAddr, _ = flags.GetString("client-addr")
	}
	if flags.Changed("admin-addr") {
		loaded.AdminAddr, _ = flags.GetString("admin-addr")
	}
	if flags.Changed("log-level") {
		loaded.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("admin-token-secret") {
		loaded.AdminTokenSecret, _ = flags.GetString("admin-token-secret")
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("orchestratorhub %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting orchestratorhub",
		zap.String("version", version),
		zap.String("agent_addr", cfg.AgentAddr),
		zap.String("service_addr", cfg.ServiceAddr),
		zap.String("client_addr", cfg.ClientAddr),
		zap.String("admin_addr", cfg.AdminAddr),
		zap.String("log_level", cfg.LogLevel),
	)

	// --- Signal handling ---
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// --- 1. Event bus ---
	bus := eventbus.New()

	// --- 2. Correlator ---
	corr := correlator.New(logger)

	// --- 3. Registries ---
	agents := registry.NewAgentRegistry(logger, bus)
	services := registry.NewServiceRegistry(logger, bus)
	clients := registry.NewClientRegistry(logger, bus)

	// --- 4. Task registries ---
	agentTasks := task.NewAgentRegistry(logger, bus)
	serviceTasks := task.NewServiceRegistry(logger, bus)

	// --- 5. MCP supervisor ---
	mcp := mcpsupervisor.New(logger, bus)
	if err := registerConfiguredMCPServers(mcp, cfg, logger); err != nil {
		return fmt.Errorf("failed to register configured MCP servers: %w", err)
	}

	// --- 6. Router ---
	rtr := router.New(agents, services, clients, agentTasks, serviceTasks, mcp, corr, bus, logger)

	// --- 7. Listeners ---
	agentListener := listener.New("agent", cfg.AgentAddr, envelope.TypeOrchestratorWelcome, rtr.AgentHooks(), logger)
	serviceListener := listener.New("service", cfg.ServiceAddr, envelope.TypeOrchestratorWelcome, rtr.ServiceHooks(), logger)
	clientListener := listener.New("client", cfg.ClientAddr, envelope.TypeOrchestratorClientWelcome, rtr.ClientHooks(), logger)
	rtr.SetListeners(agentListener, serviceListener, clientListener)

	for _, l := range []*listener.Listener{agentListener, serviceListener, clientListener} {
		l := l
		go func() {
			if err := l.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("listener error", zap.Error(err))
				cancel()
			}
		}()
	}

	// --- 8. Maintenance scheduler ---
	maintSched, err := maintenance.New(maintenance.Deps{
		Correlator:   corr,
		Agents:       agents,
		Services:     services,
		AgentConns:   agentListener,
		ServiceConns: serviceListener,
		MCP:          mcp,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create maintenance scheduler: %w", err)
	}
	if err := maintSched.Start(); err != nil {
		return fmt.Errorf("failed to start maintenance scheduler: %w", err)
	}
	defer func() {
		if err := maintSched.Stop(); err != nil {
			logger.Warn("maintenance scheduler shutdown error", zap.Error(err))
		}
	}()

	// --- 9. Admin API ---
	adminHandler := adminapi.NewRouter(adminapi.Config{
		Agents:       agents,
		Services:     services,
		Clients:      clients,
		AgentTasks:   agentTasks,
		ServiceTasks: serviceTasks,
		MCP:          mcp,
		Correlator:   corr,
		Bus:          bus,
		Logger:       logger,
		TokenSecret:  cfg.AdminTokenSecret,
	})
	adminSrv := &http.Server{
		Addr:         cfg.AdminAddr,
		Handler:      adminHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("admin api listening", zap.String("addr", cfg.AdminAddr))
		if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("admin api error", zap.Error(err))
			cancel()
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	logger.Info("shutting down orchestratorhub")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("admin api graceful shutdown error", zap.Error(err))
	}
	for _, l := range []*listener.Listener{agentListener, serviceListener, clientListener} {
		if err := l.Shutdown(shutdownCtx); err != nil {
			logger.Warn("listener graceful shutdown error", zap.Error(err))
		}
	}
	corr.Shutdown()

	logger.Info("orchestratorhub stopped")
	return nil
}

// registerConfiguredMCPServers pre-registers every MCP server named in
// the config file, so a deployer can describe a fixed fleet of MCP
// servers declaratively instead of relying solely on runtime
// registration requests from agents.
func registerConfiguredMCPServers(mcp *mcpsupervisor.Supervisor, cfg *config.Config, logger *zap.Logger) error {
	for name, serverCfg := range cfg.MCPServers {
		_, err := mcp.Register(mcpsupervisor.RegisterConfig{
			Name:         name,
			Type:         serverCfg.Type,
			Path:         serverCfg.Path,
			Command:      serverCfg.Command,
			Args:         serverCfg.Args,
			Capabilities: serverCfg.Capabilities,
		})
		if err != nil {
			return fmt.Errorf("mcp server %q: %w", name, err)
		}
		logger.Info("registered configured mcp server", zap.String("name", name))
	}
	return nil
}

func buildLogger(level string) (*zap.Logger, error) {
	var cfg zap.Config

	switch level {
	case "debug":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}

	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return cfg.Build()
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
