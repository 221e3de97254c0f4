// Package executor implements the contract SPEC_FULL.md §4.8 names:
// one interface, three built-in kinds. It is grounded on the teacher's
// executor/base.Executor interface, trimmed to the operations this
// coordination core actually needs — no lifecycle/health/metrics
// surface, since that belongs to the teacher's own tool-adapter domain.
package executor

import (
	"context"
	"fmt"
)

// ProgressFunc is invoked by a running executor to emit a heartbeat
// bound to the command it is currently executing.
type ProgressFunc func()

// Executor runs one command's payload to completion and returns its
// result. Implementations must be safe to re-run (SPEC_FULL.md §9,
// at-least-once execution).
type Executor interface {
	Kind() string
	Execute(ctx context.Context, payload []byte, onProgress ProgressFunc) (interface{}, error)
}

// Registry resolves a command kind to its executor.
type Registry struct {
	executors map[string]Executor
}

// NewRegistry builds a Registry from a set of executors, keyed by their
// own Kind().
func NewRegistry(executors ...Executor) *Registry {
	r := &Registry{executors: make(map[string]Executor, len(executors))}
	for _, e := range executors {
		r.executors[e.Kind()] = e
	}
	return r
}

// Get returns the executor registered for kind, or an error if none is.
func (r *Registry) Get(kind string) (Executor, error) {
	e, ok := r.executors[kind]
	if !ok {
		return nil, fmt.Errorf("no executor registered for kind %q", kind)
	}
	return e, nil
}
