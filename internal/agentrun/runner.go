// Package agentrun implements the agent's crash-recovery-then-poll
// lifecycle of SPEC_FULL.md §4.6-4.8, grounded on the teacher's
// service/task.agentTaskService StartWorker/processTask shape: a poll
// loop that fetches, executes, and reports one command at a time,
// sleeping the poll interval only when there was nothing to run.
package agentrun

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/relaydev/commandhub/internal/agentclient"
	"github.com/relaydev/commandhub/internal/executor"
	"github.com/relaydev/commandhub/internal/logging"
	"github.com/relaydev/commandhub/pkg/wire"
)

const (
	crashUnknownReason  = "crash — state unknown"
	heartbeatDuringExec = 5 * time.Second
)

// Runner drives one agent's poll loop.
type Runner struct {
	client         *agentclient.Client
	registry       *executor.Registry
	log            *logging.Manager
	agentID        string
	pollInterval   time.Duration
	killAfter      int
	randomFailures bool
}

// New builds a Runner. killAfter of 0 means "never exit" — it is the
// KILL_AFTER test hook from SPEC_FULL.md §6.
func New(client *agentclient.Client, registry *executor.Registry, log *logging.Manager, agentID string, pollInterval time.Duration, killAfter int, randomFailures bool) *Runner {
	return &Runner{
		client:         client,
		registry:       registry,
		log:            log,
		agentID:        agentID,
		pollInterval:   pollInterval,
		killAfter:      killAfter,
		randomFailures: randomFailures,
	}
}

// Run performs agent-side crash recovery (SPEC_FULL.md §4.6) and then
// enters the polling loop (SPEC_FULL.md §4.7) until ctx is cancelled or
// the KILL_AFTER test hook fires.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.syncOnStartup(ctx); err != nil {
		r.log.Error("agent", "sync", "startup sync failed", err, nil)
	}

	pollCount := 0
	for {
		if ctx.Err() != nil {
			return nil
		}
		pollCount++
		if r.killAfter > 0 && pollCount > r.killAfter {
			r.log.Info("agent", "kill_after", "exiting after configured poll count", map[string]interface{}{
				"poll_count": pollCount - 1,
			})
			return nil
		}

		r.client.Heartbeat(ctx, r.agentID, "")

		cmd, err := r.client.Fetch(ctx, r.agentID)
		if err != nil {
			r.log.Warn("agent", "fetch", "fetch failed, will retry next tick", map[string]interface{}{"error": err.Error()})
			if !r.sleep(ctx) {
				return nil
			}
			continue
		}
		r.maybeRandomFailure("after_fetch")

		if cmd == nil {
			if !r.sleep(ctx) {
				return nil
			}
			continue
		}

		r.executeAndReport(ctx, cmd)
	}
}

func (r *Runner) sleep(ctx context.Context) bool {
	timer := time.NewTimer(r.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// syncOnStartup implements SPEC_FULL.md §4.6 steps 2-3: ask the server
// for a command still owned by this agent and, if one exists, report it
// Failed without re-executing — the server-side Result handler
// recognizes the crash reason and reopens it to Pending.
func (r *Runner) syncOnStartup(ctx context.Context) error {
	cmd, err := r.client.Sync(ctx, r.agentID)
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	if cmd == nil {
		return nil
	}

	r.log.Info("agent", "sync", "found unfinished command from previous run", map[string]interface{}{
		"command_id": cmd.ID,
	})
	_, err = r.client.Report(ctx, wire.ResultRequest{
		AgentID:   r.agentID,
		CommandID: cmd.ID,
		Status:    wire.StatusFailed,
		Error:     crashUnknownReason,
	})
	if err != nil {
		return fmt.Errorf("report crash recovery: %w", err)
	}
	return nil
}

// executeAndReport implements SPEC_FULL.md §4.8: run the executor for
// this command's kind, emit a heartbeat every 5s while it runs, and
// report the outcome.
func (r *Runner) executeAndReport(ctx context.Context, cmd *wire.Command) {
	exec, err := r.registry.Get(string(cmd.Kind))
	if err != nil {
		r.report(ctx, cmd.ID, wire.StatusFailed, nil, err.Error())
		return
	}

	payloadJSON, err := json.Marshal(cmd.Payload)
	if err != nil {
		r.report(ctx, cmd.ID, wire.StatusFailed, nil, fmt.Sprintf("marshal payload: %v", err))
		return
	}

	stop := make(chan struct{})
	go r.heartbeatDuring(ctx, cmd.ID, stop)
	defer close(stop)

	r.maybeRandomFailure("during_execution")

	result, err := exec.Execute(ctx, payloadJSON, func() {
		r.client.Heartbeat(ctx, r.agentID, cmd.ID)
	})

	r.maybeRandomFailure("before_report")

	if err != nil {
		r.report(ctx, cmd.ID, wire.StatusFailed, nil, err.Error())
		return
	}
	r.report(ctx, cmd.ID, wire.StatusCompleted, result, "")
}

// heartbeatDuring fires a heartbeat every 5s bound to commandID until
// stop is closed. It must be cancelled on every exit path from
// execution (SPEC_FULL.md §4.8).
func (r *Runner) heartbeatDuring(ctx context.Context, commandID string, stop <-chan struct{}) {
	ticker := time.NewTicker(heartbeatDuringExec)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.client.Heartbeat(ctx, r.agentID, commandID)
		}
	}
}

func (r *Runner) report(ctx context.Context, commandID string, status wire.CommandStatus, result interface{}, errMsg string) {
	_, err := r.client.Report(ctx, wire.ResultRequest{
		AgentID:   r.agentID,
		CommandID: commandID,
		Status:    status,
		Result:    result,
		Error:     errMsg,
	})
	if err != nil {
		r.log.Error("agent", "report", "reporting result failed", err, map[string]interface{}{
			"command_id": commandID, "status": status,
		})
		return
	}
	r.log.Info("agent", "report", "reported command result", map[string]interface{}{
		"command_id": commandID, "status": status,
	})
}

// maybeRandomFailure implements the RANDOM_FAILURES test hook
// (SPEC_FULL.md §6): a 20% chance of exiting at a labelled point,
// simulating an agent crash mid-cycle.
func (r *Runner) maybeRandomFailure(label string) {
	if !r.randomFailures {
		return
	}
	if rand.Intn(5) == 0 {
		r.log.Warn("agent", "random_failure", "simulating crash", map[string]interface{}{"point": label})
		panic(fmt.Sprintf("simulated crash at %s", label))
	}
}
