package irc

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/pydawan/pydabot/pkg/constants"
)

// relay owns the socket to the server and hands the library a loopback socket
// instead. Closing the relay ends any library read immediately, whatever read
// deadline the library has set.
type relay struct {
	upstream net.Conn
	ln       net.Listener

	mu     sync.Mutex
	local  net.Conn
	closed bool
}

// dialRelay connects to the server (with TLS when configured) and starts accepting
// the library's loopback connection
func dialRelay(ctx context.Context, cfg Config) (*relay, error) {
	d := net.Dialer{Timeout: constants.DialTimeout}
	upstream, err := d.DialContext(ctx, "tcp", cfg.Server())
	if err != nil {
		return nil, err
	}

	if cfg.UseTLS {
		tc := tls.Client(upstream, &tls.Config{ServerName: cfg.Hostname})
		if err := tc.HandshakeContext(ctx); err != nil {
			_ = upstream.Close()
			return nil, fmt.Errorf("tls handshake failed: %w", err)
		}
		upstream = tc
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		_ = upstream.Close()
		return nil, fmt.Errorf("failed to open loopback listener: %w", err)
	}

	r := &relay{upstream: upstream, ln: ln}
	go r.accept()
	return r, nil
}

// Addr is the loopback address the library should connect to
func (r *relay) Addr() string {
	return r.ln.Addr().String()
}

// accept takes exactly one connection and copies both ways. Once the server side is
// gone the library's writes are still drained, so its writer never stalls, until the
// library closes its socket.
func (r *relay) accept() {
	local, err := r.ln.Accept()
	_ = r.ln.Close()
	if err != nil {
		r.Close()
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = local.Close()
		return
	}
	r.local = local
	r.mu.Unlock()

	go func() {
		_, _ = io.Copy(local, r.upstream)
		r.Close()
	}()

	_, _ = io.Copy(r.upstream, local)
	r.Close()
	_, _ = io.Copy(io.Discard, local)
	_ = local.Close()
}

// Close closes the server socket and ends the library's reads. Safe to call more
// than once.
func (r *relay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	_ = r.ln.Close()
	_ = r.upstream.Close()
	if r.local != nil {
		closeWrite(r.local)
	}
}

func closeWrite(conn net.Conn) {
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
		return
	}
	_ = conn.Close()
}
