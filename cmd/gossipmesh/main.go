// gossipmesh runs one node of a peer-to-peer gossip cluster: a TCP listener
// for inbound Messages, a dialer for outbound ones, and three tickers that
// drive periodic gossip and failure detection.
//
// Usage:
//
//	gossipmesh --port 7000 --period 2s
//	gossipmesh --port 7001 --period 2s --connect 127.0.0.1:7000
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/atvirokodosprendimai/gossipmesh/pkg/metrics"
	"github.com/atvirokodosprendimai/gossipmesh/pkg/node"
	"github.com/atvirokodosprendimai/gossipmesh/pkg/otel"
	"github.com/atvirokodosprendimai/gossipmesh/pkg/transport"
)

// checkRepliesInterval and suspectGossipInterval are fixed; only the
// random-gossip period is operator-configurable (--period).
const (
	checkRepliesInterval  = 10 * time.Second
	suspectGossipInterval = 1 * time.Second
)

func main() {
	port := flag.Uint("port", 0, "TCP port to listen on (required)")
	period := flag.Duration("period", 0, "gossip period, e.g. 2s (required, >=1s)")
	connect := flag.String("connect", "", "address of an existing peer to bootstrap from (host:port)")
	host := flag.String("host", "127.0.0.1", "advertised/bound host for this node's address")
	metricsAddr := flag.String("metrics-addr", "", "address to serve Prometheus metrics on, e.g. :9100 (empty disables)")
	flag.Parse()

	if *port == 0 || *port > 65535 {
		log.Fatalf("[gossipmesh] --port is required and must be in 1..65535")
	}
	if *period < time.Second {
		log.Fatalf("[gossipmesh] --period is required and must be at least 1s")
	}

	instanceID := uuid.NewString()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	self := node.Address{Host: *host, Port: uint16(*port)}

	shutdownOTel, err := otel.Init(ctx, "gossipmesh", "v1.0.0", instanceID, self.String())
	if err != nil {
		log.Printf("[gossipmesh] WARNING: OTel setup failed: %v — telemetry disabled", err)
	}
	defer shutdownOTel(context.Background())

	inbox := make(chan node.Event, node.DefaultChannelCapacity)
	outbox := make(chan node.Message, node.DefaultChannelCapacity)

	receiver, err := transport.Listen(self, inbox)
	if err != nil {
		log.Fatalf("[gossipmesh] %v", err)
	}
	defer receiver.Close()

	sender := transport.NewSender(outbox, inbox)

	m := metrics.New()
	metricsSrv := metrics.NewServer(*metricsAddr)
	go func() {
		if err := metricsSrv.Start(); err != nil {
			log.Printf("[gossipmesh] metrics server: %v", err)
		}
	}()

	n := node.New(self, inbox, outbox,
		node.WithObserver(m.Observer()),
		node.WithTrace(otel.StepSpan),
	)

	log.Printf("[gossipmesh] instance=%s self=%s period=%s connect=%q metrics=%q",
		instanceID, self, *period, *connect, *metricsAddr)

	go receiver.Run()
	go sender.Run(ctx)
	go m.Poll(ctx, n)
	go m.PollRateLimiter(ctx, receiver.Rejected)

	transport.StartTicker(ctx, inbox, *period, node.TriggerGossipRandom)
	transport.StartTicker(ctx, inbox, suspectGossipInterval, node.TriggerGossipSuspects)
	transport.StartTicker(ctx, inbox, checkRepliesInterval, node.TriggerCheckReplies)

	if *connect != "" {
		peer, err := node.ParseAddress(*connect)
		if err != nil {
			log.Fatalf("[gossipmesh] --connect: %v", err)
		}
		transport.Bootstrap(inbox, peer)
	}

	n.Run(ctx)

	log.Printf("[gossipmesh] shutdown: stopping metrics server...")
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Stop(stopCtx); err != nil {
		log.Printf("[gossipmesh] metrics server shutdown: %v", err)
	}
	// os.Exit skips deferred calls, so flush telemetry explicitly.
	shutdownOTel(context.Background())
	log.Printf("[gossipmesh] shutdown: complete")
	os.Exit(0)
}
