package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/relaydev/commandhub/pkg/wire"
)

const delayChunk = time.Second

// DelayExecutor sleeps for the requested duration in chunks, emitting a
// progress heartbeat after each chunk, per SPEC_FULL.md §4.8.
type DelayExecutor struct{}

func (DelayExecutor) Kind() string { return string(wire.KindDelay) }

func (DelayExecutor) Execute(ctx context.Context, payload []byte, onProgress ProgressFunc) (interface{}, error) {
	var p wire.DelayPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("unmarshal delay payload: %w", err)
	}
	if p.Ms <= 0 {
		return nil, fmt.Errorf("ms must be a positive integer, got %d", p.Ms)
	}

	remaining := time.Duration(p.Ms) * time.Millisecond
	start := time.Now()

	for remaining > 0 {
		chunk := delayChunk
		if remaining < chunk {
			chunk = remaining
		}

		timer := time.NewTimer(chunk)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		remaining -= chunk
		if onProgress != nil {
			onProgress()
		}
	}

	return wire.DelayResult{OK: true, TookMs: time.Since(start).Milliseconds()}, nil
}
