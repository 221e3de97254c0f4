package executor

import (
	"context"

	"github.com/relaydev/commandhub/pkg/wire"
)

// NoopExecutor completes immediately with {ok:true}. It is not part of
// the distilled spec — it exists so FIFO-ordering and polling-loop
// tests don't have to wait on a real Delay to observe ordering.
type NoopExecutor struct{}

func (NoopExecutor) Kind() string { return string(wire.KindNoop) }

func (NoopExecutor) Execute(ctx context.Context, payload []byte, onProgress ProgressFunc) (interface{}, error) {
	return map[string]bool{"ok": true}, nil
}
