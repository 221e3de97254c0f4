// Command server runs the commandhub control server: it accepts
// commands from clients, hands them to agents, and reclaims work from
// agents that go silent. Grounded on the teacher's cmd/master/main.go
// (build app, listen in a goroutine, wait for a signal, shut down with
// a bounded deadline).
package main

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

	"github.com/relaydev/commandhub/internal/config"
	"github.com/relaydev/commandhub/internal/logging"
	"github.com/relaydev/commandhub/internal/reclaim"
	"github.com/relaydev/commandhub/internal/serverapi"
	"github.com/relaydev/commandhub/internal/store"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logManager, err := logging.New(logging.Options{
		Level:    cfg.LogLevel,
		Format:   cfg.LogFormat,
		Output:   cfg.LogOutput,
		FilePath: cfg.LogFilePath,
	})
	if err != nil {
		log.Fatalf("failed to init logging: %v", err)
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("failed to create data directory: %v", err)
		}
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	// Server-side crash recovery (SPEC_FULL.md §4.5): every Running
	// command is indeterminate at startup and is reset to Pending
	// before anything is served.
	reclaimed, err := st.ReclaimCrashedRunning(time.Now().UTC())
	if err != nil {
		log.Fatalf("failed to reclaim crashed running commands: %v", err)
	}
	logManager.Info("startup", "reclaim_crashed_running", "server-side crash recovery complete", map[string]interface{}{
		"reclaimed_count": reclaimed,
	})

	reclaimer := reclaim.New(st, logManager, cfg.StaleCheckInterval, cfg.CommandTimeout)
	go reclaimer.Start()
	defer reclaimer.Stop()

	srv := serverapi.New(st, logManager)
	engine := srv.Router()

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logManager.Info("startup", "listen", "starting control server", map[string]interface{}{"addr": addr})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logManager.Info("shutdown", "signal", "shutting down control server", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	logManager.Info("shutdown", "complete", "control server exited cleanly", nil)
}
