// Package transport implements the gossip node's external collaborators:
// the TCP listener and dialer that produce and consume the reducer's
// events, and the periodic tickers that drive gossip and failure
// detection.
package transport

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"

	"github.com/atvirokodosprendimai/gossipmesh/pkg/node"
	"github.com/atvirokodosprendimai/gossipmesh/pkg/ratelimit"
	"github.com/atvirokodosprendimai/gossipmesh/pkg/wire"
)

// MaxMessageSize bounds how many bytes a single connection may send before
// the receiver gives up on it, protecting against unbounded memory growth
// from a misbehaving or hostile peer.
const MaxMessageSize = 1 << 20 // 1MB

// Receiver binds the node's listen address, accepts one connection per
// inbound Message, and decodes+forwards it to the inbox. Malformed
// payloads are dropped; they never become events.
type Receiver struct {
	listener net.Listener
	inbox    chan<- node.Event
	limiter  *ratelimit.IPRateLimiter
}

// Listen binds addr and returns a Receiver ready to Run.
func Listen(addr node.Address, inbox chan<- node.Event) (*Receiver, error) {
	ln, err := net.Listen("tcp", addr.String())
	if err != nil {
		return nil, fmt.Errorf("transport: bind %s: %w", addr, err)
	}
	return &Receiver{
		listener: ln,
		inbox:    inbox,
		limiter:  ratelimit.NewDefault(),
	}, nil
}

// Addr returns the bound local address (useful when addr.Port was 0).
func (r *Receiver) Addr() net.Addr {
	return r.listener.Addr()
}

// Close stops accepting new connections.
func (r *Receiver) Close() error {
	return r.listener.Close()
}

// Rejected returns the cumulative number of inbound connections the rate
// limiter has turned away. pkg/metrics polls this for a gauge.
func (r *Receiver) Rejected() uint64 {
	return r.limiter.Rejected()
}

// Run accepts connections until the listener is closed.
func (r *Receiver) Run() {
	for {
		conn, err := r.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("[transport] accept error: %v", err)
			continue
		}

		if !r.limiter.AllowConn(conn) {
			conn.Close()
			continue
		}

		go r.handleConn(conn)
	}
}

func (r *Receiver) handleConn(conn net.Conn) {
	defer conn.Close()

	data, err := io.ReadAll(io.LimitReader(conn, MaxMessageSize+1))
	if err != nil {
		log.Printf("[transport] read error from %s: %v", conn.RemoteAddr(), err)
		return
	}
	if len(data) > MaxMessageSize {
		log.Printf("[transport] dropping oversized message from %s", conn.RemoteAddr())
		return
	}

	msg, err := wire.Decode(data)
	if err != nil {
		log.Printf("[transport] dropping malformed message from %s: %v", conn.RemoteAddr(), err)
		return
	}

	r.inbox <- node.MessageEvent{Msg: msg}
}
