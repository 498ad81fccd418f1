package node

import (
	"context"
	"time"
)

// DefaultChannelCapacity is the suggested bound for the inbox/outbox
// channels: large enough to absorb bursts, small enough to convert
// sustained overload into producer-side backpressure.
const DefaultChannelCapacity = 1000

// Node owns all reducer state: its own address, the monotonic id counter,
// the neighborhood, and the pending-reply table. Nothing outside Step
// mutates this state.
type Node struct {
	self    Address
	nextID  uint32
	neigh   *Neighborhood
	pending *pendingReplies
	clock   func() time.Time

	inbox  <-chan Event
	outbox chan<- Message

	observe func(Event, []Message)
	trace   func(Event) func()
}

// Option configures a Node at construction time.
type Option func(*Node)

// WithClock overrides the wall clock Step uses to stamp pending-reply
// dispatch times and evaluate staleness. Tests use this to avoid sleeping
// for real STALE_TIMEOUT durations.
func WithClock(clock func() time.Time) Option {
	return func(n *Node) { n.clock = clock }
}

// WithObserver registers a callback invoked once per Run loop iteration
// with the event that was consumed and the messages Step produced for it.
// It exists so callers (pkg/metrics) can count events without pkg/node
// importing any telemetry library: Step itself stays a pure function of
// its own state.
func WithObserver(observe func(Event, []Message)) Option {
	return func(n *Node) { n.observe = observe }
}

// WithTrace registers a callback invoked immediately before each Step call;
// it returns a closer run immediately after Step returns. It exists so a
// caller (pkg/otel) can wrap every reducer invocation in a span tagged by
// event kind without pkg/node importing any tracing library itself — the
// same no-telemetry-imports-in-the-reducer rule WithObserver follows.
func WithTrace(trace func(Event) func()) Option {
	return func(n *Node) { n.trace = trace }
}

// New constructs a Node listening logically at self, consuming events from
// inbox and publishing outbound messages to outbox. Both channels are
// owned by the caller (typically cmd/gossipmesh, wiring pkg/transport).
func New(self Address, inbox <-chan Event, outbox chan<- Message, opts ...Option) *Node {
	n := &Node{
		self:    self,
		neigh:   NewNeighborhood(),
		pending: newPendingReplies(),
		clock:   time.Now,
		inbox:   inbox,
		outbox:  outbox,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Run is the single-consumer event loop: pull one Event, run Step, forward
// every produced Message to the outbox. It returns when the inbox is
// closed (clean shutdown) or when ctx is canceled, including while it is
// waiting to publish to the outbox — both treated as normal termination.
func (n *Node) Run(ctx context.Context) {
	for {
		select {
		case event, ok := <-n.inbox:
			if !ok {
				return
			}
			var end func()
			if n.trace != nil {
				end = n.trace(event)
			}
			out := n.Step(event)
			if end != nil {
				end()
			}
			if n.observe != nil {
				n.observe(event, out)
			}
			for _, msg := range out {
				select {
				case n.outbox <- msg:
				case <-ctx.Done():
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// Snapshot is a read-only view of reducer state for telemetry (pkg/metrics)
// and tests. It never feeds back into Step.
type Snapshot struct {
	Self               Address
	NeighborCount      int
	OnlineCount        int
	SuspectCount       int
	AwaitingReplyCount int
}

// Snapshot captures the node's current state. Only safe to call from the
// same goroutine driving Run — the reducer keeps no lock, by design
// (see DESIGN.md: metrics poll Snapshot rather than subscribing).
func (n *Node) Snapshot() Snapshot {
	return Snapshot{
		Self:               n.self,
		NeighborCount:      n.neigh.Size(),
		OnlineCount:        len(n.neigh.SelectGossipers()),
		SuspectCount:       len(n.neigh.GetSuspects()),
		AwaitingReplyCount: n.pending.len(),
	}
}

// Self returns the node's own listen address.
func (n *Node) Self() Address { return n.self }

// message is the message factory: assign the next monotonic id, stamp
// src/dst/reply_to, and record a pending-reply entry when the payload
// requires one.
func (n *Node) message(dst Address, replyTo *uint32, payload Payload) Message {
	n.nextID++
	msg := Message{
		Src:     n.self,
		Dst:     dst,
		ID:      n.nextID,
		ReplyTo: replyTo,
		Payload: payload,
	}
	if payload.RequiresReply() {
		n.pending.add(n.nextID, dst, n.clock())
	}
	return msg
}
