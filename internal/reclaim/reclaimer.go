// Package reclaim runs the periodic stale-reclamation job described in
// SPEC_FULL.md §4.4, grounded on the teacher's ticker-driven monitor
// loop (internal/service/agent/monitor.go, run from a ticker in
// internal/app/master).
package reclaim

import (
	"sync/atomic"
	"time"

	"github.com/relaydev/commandhub/internal/logging"
	"github.com/relaydev/commandhub/internal/store"
)

// Reclaimer periodically resets Running commands whose owner has gone
// silent back to Pending. It must not overlap with itself — a busy
// flag drops a tick rather than queuing it.
type Reclaimer struct {
	st            store.Store
	log           *logging.Manager
	interval      time.Duration
	staleTimeout  time.Duration
	busy          atomic.Bool
	stop          chan struct{}
	done          chan struct{}
}

// New builds a Reclaimer. staleTimeout is COMMAND_TIMEOUT; interval is
// STALE_CHECK_INTERVAL.
func New(st store.Store, log *logging.Manager, interval, staleTimeout time.Duration) *Reclaimer {
	return &Reclaimer{
		st:           st,
		log:          log,
		interval:     interval,
		staleTimeout: staleTimeout,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start runs the reclaim loop until Stop is called. It should be
// launched in its own goroutine.
func (r *Reclaimer) Start() {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.tick()
		}
	}
}

// Stop cancels the reclaim loop and blocks until it has exited.
func (r *Reclaimer) Stop() {
	close(r.stop)
	<-r.done
}

func (r *Reclaimer) tick() {
	if !r.busy.CompareAndSwap(false, true) {
		return // previous tick still running; skip this one.
	}
	defer r.busy.Store(false)

	now := time.Now().UTC()
	cutoff := now.Add(-r.staleTimeout)

	count, err := r.st.ReclaimStale(cutoff, now)
	if err != nil {
		r.log.Error("reclaimer", "reclaim_stale", "stale reclaim failed", err, nil)
		return
	}
	if count > 0 {
		r.log.Info("reclaimer", "reclaim_stale", "reclaimed stale running commands", map[string]interface{}{"count": count})
	}
}
