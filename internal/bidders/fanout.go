// Package bidders implements the three fan-out stages that talk to the
// seated council in parallel: response collection, self-evaluation, and
// final acceptance. All three share drop semantics: a failing bidder is an
// omission in the joined result, never an error for the stage.
package bidders

import (
	"context"
	"sync"
	"time"

	"github.com/ahrav/go-council/internal/llm"
	"github.com/ahrav/go-council/pkg/activity"
)

// defaultCallTimeout bounds one bidder call in any fan-out stage.
const defaultCallTimeout = 120 * time.Second

// heartbeatEvery paces heartbeats while a fan-out join is in flight.
const heartbeatEvery = 10 * time.Second

// reply carries one bidder's outcome across a fan-out join.
type reply struct {
	model   string
	content string
	err     error
}

// fanOut invokes prompt(model) for every model concurrently, each call under
// its own timeout, and joins all outcomes. The map always has an entry per
// model; callers decide what a failed entry means for their stage.
func fanOut(
	ctx context.Context,
	invoker llm.Invoker,
	models []string,
	timeout time.Duration,
	build func(model string) *llm.Request,
) map[string]reply {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	replies := make(map[string]reply, len(models))

	stopHeartbeat := heartbeatDuring(ctx)
	defer stopHeartbeat()

	for _, model := range models {
		wg.Add(1)
		go func(model string) {
			defer wg.Done()

			callCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			resp, err := invoker.Invoke(callCtx, build(model))

			r := reply{model: model, err: err}
			if err == nil {
				r.content = resp.Content
			}

			mu.Lock()
			replies[model] = r
			mu.Unlock()
		}(model)
	}
	wg.Wait()

	return replies
}

// heartbeatDuring paces heartbeats while a fan-out join is in flight,
// keeping slow bidder calls within the activity's heartbeat window. The
// returned stop function must be called once the join completes.
func heartbeatDuring(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(heartbeatEvery)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				activity.RecordHeartbeat(ctx, "collecting bidder replies")
			}
		}
	}()
	return func() { close(done) }
}
