package websocket

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// handshakeTimeout bounds how long Serve waits for a complete, accepted
// opening handshake before giving up on a connection (spec.md §9's 5-second
// budget).
const handshakeTimeout = 5 * time.Second

// Handler is the application routine invoked once a connection has
// completed its handshake. It owns stream for the remainder of the
// connection's lifetime; Serve closes stream after handler returns
// regardless of how it returns.
type Handler func(ctx context.Context, stream *MessageStream)

// Serve binds the handshake and the message stream for one accepted
// connection: it runs PerformHandshake under a fixed timeout, and on
// success constructs a MessageStream and invokes handler, guaranteeing the
// stream is closed on every exit path (spec.md §4.4, §5).
//
// A handshake that does not complete within handshakeTimeout is abandoned
// silently — Serve returns without closing stream, leaving that to the
// caller, matching the original's "the host will close the byte stream"
// convention for connections that never leave the handshake. Every other
// handshake failure (wrong method, bad version, origin rejected, request
// too large, ...) is a rejected — not abandoned — handshake: Serve closes
// stream itself before returning, without ever sending a WebSocket CLOSE
// frame, since the session never opened (spec.md §7).
func Serve(ctx context.Context, stream ByteStream, allowedOrigins OriginAllowList, handler Handler, logger zerolog.Logger) {
	hsCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	headers, err := PerformHandshake(hsCtx, stream, allowedOrigins)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return
		}
		logger.Debug().
			Str("peer", addrString(stream.PeerAddr())).
			Err(err).
			Msg("websocket handshake rejected")
		_ = stream.Close()
		return
	}

	logger.Info().
		Str("peer", addrString(stream.PeerAddr())).
		Str("origin", headers["origin"]).
		Msg("websocket connection accepted")

	ms := NewMessageStream(stream, headers)
	defer func() {
		_ = ms.Close(ctx, 1000, "")
		logger.Info().
			Str("peer", addrString(stream.PeerAddr())).
			Msg("websocket connection closed")
	}()

	handler(ctx, ms)
}

func addrString(addr interface{ String() string }) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}
