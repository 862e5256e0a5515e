package websocket

import (
	"context"
	"net"
	"time"
)

// noDeadline clears any previously set read/write deadline on a net.Conn.
var noDeadline time.Time

// ByteStream is the only thing this package needs from its host: a way to
// pull bytes off a connection and push bytes back onto it. It is the Go
// equivalent of the original embedded mod's asynchronous Stream collaborator
// (spec.md §6) — receive/send both suspend the caller (here, by blocking
// the calling goroutine or respecting ctx), close is idempotent and
// non-blocking, and addr/peer_addr expose the two endpoints.
type ByteStream interface {
	// Receive returns between 1 and n bytes, or ErrStreamClosed once the
	// peer has closed the connection. It blocks until data is available,
	// ctx is done, or the stream is closed.
	Receive(ctx context.Context, n int) ([]byte, error)

	// Send writes all of data, blocking until the write completes, ctx is
	// done, or the stream is closed.
	Send(ctx context.Context, data []byte) error

	// Close is idempotent and never blocks.
	Close() error

	// Addr is the local endpoint.
	Addr() net.Addr

	// PeerAddr is the remote endpoint.
	PeerAddr() net.Addr
}

// netByteStream adapts a net.Conn to ByteStream, the default host
// collaborator used by cmd/wsloop-echo. It is the Go stand-in for the
// original mod's engine-provided Stream, grounded on net.Conn the same way
// the teacher package wraps net.Conn directly in its Conn type.
type netByteStream struct {
	conn net.Conn
}

// NewNetByteStream wraps an already-accepted net.Conn as a ByteStream.
func NewNetByteStream(conn net.Conn) ByteStream {
	return &netByteStream{conn: conn}
}

func (s *netByteStream) Receive(ctx context.Context, n int) ([]byte, error) {
	if err := s.applyDeadline(ctx); err != nil {
		return nil, err
	}
	defer s.watchCancellation(ctx)()

	buf := make([]byte, n)
	read, err := s.conn.Read(buf)
	if err != nil {
		if read == 0 {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, ErrStreamClosed
		}
	}
	return buf[:read], nil
}

func (s *netByteStream) Send(ctx context.Context, data []byte) error {
	if err := s.applyDeadline(ctx); err != nil {
		return err
	}
	defer s.watchCancellation(ctx)()

	if _, err := s.conn.Write(data); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return ErrStreamClosed
	}
	return nil
}

// applyDeadline propagates ctx's deadline (if any) onto the underlying
// net.Conn, the idiomatic Go substitute for the original's bespoke
// `timeout(seconds, op)` combinator (spec.md §1, §9). A ctx with no deadline
// (e.g. a plain context.WithCancel) still needs watchCancellation to make
// ctx.Done() actually interrupt a blocked Read/Write.
func (s *netByteStream) applyDeadline(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = noDeadline
	}
	// SetDeadline only fails once the connection has been closed.
	if err := s.conn.SetDeadline(deadline); err != nil {
		return ErrStreamClosed
	}
	return nil
}

// watchCancellation arranges for ctx's cancellation to interrupt whatever
// Read or Write is in flight on s.conn, by forcing the conn's deadline into
// the past the moment ctx.Done() fires — net.Conn has no ctx-aware I/O, so
// this is the standard way to graft one on. The returned stop func must be
// called (via defer, right after the deadline is armed) once the I/O call
// has returned, successfully or not, so the watcher goroutine doesn't leak
// and doesn't clobber a later, unrelated deadline on the same connection.
func (s *netByteStream) watchCancellation(ctx context.Context) (stop func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = s.conn.SetDeadline(time.Unix(0, 0))
		case <-done:
		}
	}()
	return func() { close(done) }
}

func (s *netByteStream) Close() error {
	return s.conn.Close()
}

func (s *netByteStream) Addr() net.Addr {
	return s.conn.LocalAddr()
}

func (s *netByteStream) PeerAddr() net.Addr {
	return s.conn.RemoteAddr()
}
