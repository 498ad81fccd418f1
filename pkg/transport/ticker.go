package transport

import (
	"context"
	"time"

	"github.com/atvirokodosprendimai/gossipmesh/pkg/node"
)

// StartTicker emits a Trigger of the given kind into inbox every interval,
// starting one interval after it is called — time.Ticker's own semantics
// already give a first tick one period after startup, with no priming
// tick needed. It stops when ctx is canceled.
func StartTicker(ctx context.Context, inbox chan<- node.Event, interval time.Duration, kind node.TriggerKind) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				select {
				case inbox <- node.TriggerEvent{Trig: node.Trigger{Kind: kind}}:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Bootstrap enqueues the initial Register trigger toward addr, ahead of
// any other events.
func Bootstrap(inbox chan<- node.Event, addr node.Address) {
	inbox <- node.TriggerEvent{Trig: node.Trigger{Kind: node.TriggerRegister, Addr: addr}}
}
