package transport

import (
	"context"
	"log"
	"net"
	"time"

	"github.com/atvirokodosprendimai/gossipmesh/pkg/node"
	"github.com/atvirokodosprendimai/gossipmesh/pkg/otel"
	"github.com/atvirokodosprendimai/gossipmesh/pkg/wire"
)

// DialTimeout bounds how long a single outbound connection attempt may
// take before it is treated as a dial failure. The spec leaves this as
// "the underlying OS dial timeout"; this is the concrete value chosen for
// that contract.
const DialTimeout = 5 * time.Second

// Sender drains the outbox, dials each message's destination, writes the
// encoded envelope, and closes. Dial failures are reported back to the
// inbox as Strike triggers; write failures after a successful dial are
// only logged — the peer is assumed already dialed.
type Sender struct {
	outbox <-chan node.Message
	inbox  chan<- node.Event
}

// NewSender constructs a Sender reading from outbox and reporting strikes
// to inbox.
func NewSender(outbox <-chan node.Message, inbox chan<- node.Event) *Sender {
	return &Sender{outbox: outbox, inbox: inbox}
}

// Run drains outbox until it is closed or ctx is canceled.
func (s *Sender) Run(ctx context.Context) {
	for {
		select {
		case msg, ok := <-s.outbox:
			if !ok {
				return
			}
			s.send(ctx, msg)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sender) send(ctx context.Context, msg node.Message) {
	data, err := wire.Encode(msg)
	if err != nil {
		// Malformed outbound message is a programmer error in the
		// reducer, not a peer failure; log and drop rather than strike.
		log.Printf("[transport] refusing to send unencodable message to %s: %v", msg.Dst, err)
		return
	}

	dialCtx, endSpan := otel.DialSpan(ctx, msg.Dst.String())
	dialCtx, cancel := context.WithTimeout(dialCtx, DialTimeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(dialCtx, "tcp", msg.Dst.String())
	endSpan(err)
	if err != nil {
		log.Printf("[transport] dial %s failed: %v", msg.Dst, err)
		select {
		case s.inbox <- node.TriggerEvent{Trig: node.Trigger{Kind: node.TriggerStrike, Addr: msg.Dst}}:
		case <-ctx.Done():
		}
		return
	}
	defer conn.Close()

	if _, err := conn.Write(data); err != nil {
		log.Printf("[transport] write to %s failed: %v", msg.Dst, err)
		return
	}
}
