// Command agent runs a commandhub worker agent: it polls the control
// server for work, executes it, and reports the result. Grounded on the
// teacher's cmd/agent/main.go (load identity, build a client, start a
// worker loop, wait for a signal).
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/relaydev/commandhub/internal/agentclient"
	"github.com/relaydev/commandhub/internal/agentrun"
	"github.com/relaydev/commandhub/internal/config"
	"github.com/relaydev/commandhub/internal/executor"
	"github.com/relaydev/commandhub/internal/logging"
)

func main() {
	cfg, err := config.LoadAgentConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logManager, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: "stdout",
	})
	if err != nil {
		log.Fatalf("failed to init logging: %v", err)
	}

	agentID, err := agentrun.LoadOrCreateIdentity(cfg.AgentDataPath)
	if err != nil {
		log.Fatalf("failed to load agent identity: %v", err)
	}
	logManager.Info("startup", "identity", "loaded agent identity", map[string]interface{}{"agent_id": agentID})

	client := agentclient.New(cfg.ServerURL)
	registry := executor.NewRegistry(
		&executor.DelayExecutor{},
		&executor.HTTPGetJSONExecutor{},
		&executor.NoopExecutor{},
	)

	runner := agentrun.New(client, registry, logManager, agentID, cfg.PollInterval, cfg.KillAfter, cfg.RandomFailures)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logManager.Info("startup", "poll_loop", "agent starting poll loop", map[string]interface{}{
		"server_url":    cfg.ServerURL,
		"poll_interval": cfg.PollInterval.String(),
	})

	if err := runner.Run(ctx); err != nil {
		log.Fatalf("agent runner exited with error: %v", err)
	}
	logManager.Info("shutdown", "complete", "agent exited cleanly", nil)
}
