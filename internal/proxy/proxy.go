// Package proxy implements the background connection proxy: a small
// long-lived process that holds one persistent, authenticated upstream
// connection to a remote vexd and fronts it with a local Unix socket, so
// that repeated vex invocations don't each pay a fresh TLS handshake and
// TOFU check.
//
// There is no equivalent in grove — it has no remote transport at all —
// so this package generalizes grove's implicit "one client owns one
// daemon file descriptor for the duration of a request" assumption
// (visible throughout cmd/grove/main.go's request helpers) to N local
// clients serialized one-at-a-time over a single shared upstream
// connection (see DESIGN.md): correctness (no interleaved frames on one
// TCP stream) over throughput. Pipelining multiple in-flight requests is
// a named follow-up, not implemented here.
package proxy

import (
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/sandipndev/vex/internal/clientconn"
	"github.com/sandipndev/vex/internal/proto"
	"github.com/sandipndev/vex/internal/tlsidentity"
)

const (
	minBackoff = 1 * time.Second
	maxBackoff = 30 * time.Second
)

// Proxy owns the upstream connection and the local listener fronting it.
type Proxy struct {
	target     clientconn.Target
	pins       *tlsidentity.PinStore
	socketPath string

	mu          sync.Mutex
	upstream    net.Conn
	backoff     time.Duration // current reconnect backoff, doubled on each failure
	nextAttempt time.Time     // zero until a dial has failed; holds off retries until it passes

	closed chan struct{}
}

// New creates a proxy fronting target at socketPath. It does not dial or
// listen until Run is called.
func New(target clientconn.Target, pins *tlsidentity.PinStore, socketPath string) *Proxy {
	return &Proxy{target: target, pins: pins, socketPath: socketPath, backoff: minBackoff, closed: make(chan struct{})}
}

// Run listens on the local socket and serves client connections until
// Close is called or l is closed. It blocks.
func (p *Proxy) Run(l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-p.closed:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go p.serveClient(conn)
	}
}

// Close stops Run from accepting further connections and drops the
// upstream connection.
func (p *Proxy) Close() {
	close(p.closed)
	p.mu.Lock()
	if p.upstream != nil {
		p.upstream.Close()
		p.upstream = nil
	}
	p.mu.Unlock()
}

// TODO: this serializes every local client behind a single in-flight
// upstream request (resolved toward correctness over throughput). A pool
// of upstream connections with per-slot request/response pipelining would
// be a compatible extension if proxy throughput ever becomes a
// bottleneck.

// serveClient handles one local client: read one framed command, forward
// it to the upstream, read the response, write it back, close. The
// upstream is a single framed request/response stream with no
// interleaving, so the whole exchange runs under p.mu — a second local
// client blocks here until this one's round trip completes. Reconnecting
// to a downed upstream makes at most one dial attempt per request: a
// failure advances the persistent backoff and returns Internal
// immediately rather than retrying (and holding p.mu) inside the call.
func (p *Proxy) serveClient(conn net.Conn) {
	defer conn.Close()

	req, err := proto.ReadEnvelope(conn)
	if err != nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	upstream, err := p.ensureUpstreamLocked()
	if err != nil {
		log.Printf("proxy: no upstream available: %v", err)
		proto.WriteFrame(conn, proto.RespError, proto.ErrorPayload{Kind: proto.ErrInternal, Message: err.Error()})
		return
	}

	if err := proto.WriteFrame(upstream, req.Type, req.Payload); err != nil {
		p.dropUpstreamLocked()
		proto.WriteFrame(conn, proto.RespError, proto.ErrorPayload{Kind: proto.ErrInternal, Message: err.Error()})
		return
	}
	resp, err := proto.ReadEnvelope(upstream)
	if err != nil {
		p.dropUpstreamLocked()
		proto.WriteFrame(conn, proto.RespError, proto.ErrorPayload{Kind: proto.ErrInternal, Message: err.Error()})
		return
	}
	proto.WriteFrame(conn, resp.Type, resp.Payload)
}

// dropUpstreamLocked closes and forgets the current upstream so the next
// serveClient call reconnects. Caller must hold p.mu.
func (p *Proxy) dropUpstreamLocked() {
	if p.upstream != nil {
		p.upstream.Close()
		p.upstream = nil
	}
}

// ensureUpstreamLocked returns the current upstream connection, making at
// most one dial attempt if there is none. Caller must hold p.mu.
//
// Backoff is persistent state on Proxy, not a retry loop local to one
// call: a failed dial here advances p.backoff (doubling, capped at
// maxBackoff) and sets p.nextAttempt, so back-to-back requests during an
// outage fail fast without redialing on every single one; a successful
// dial resets the backoff to minBackoff for the next time the upstream
// drops.
func (p *Proxy) ensureUpstreamLocked() (net.Conn, error) {
	if p.upstream != nil {
		return p.upstream, nil
	}
	select {
	case <-p.closed:
		return nil, fmt.Errorf("proxy: closed")
	default:
	}
	if wait := time.Until(p.nextAttempt); wait > 0 {
		return nil, fmt.Errorf("proxy: upstream unreachable, retrying in %s", wait.Round(time.Second))
	}

	conn, err := clientconn.Dial(p.target, p.pins)
	if err != nil {
		p.nextAttempt = time.Now().Add(p.backoff)
		log.Printf("proxy: upstream dial failed: %v (next attempt in %s)", err, p.backoff)
		p.backoff *= 2
		if p.backoff > maxBackoff {
			p.backoff = maxBackoff
		}
		return nil, fmt.Errorf("proxy: upstream dial failed: %w", err)
	}

	p.backoff = minBackoff
	p.nextAttempt = time.Time{}
	p.upstream = conn
	return conn, nil
}
