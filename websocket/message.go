package websocket

import (
	"context"
	"encoding/binary"
	"net"
)

// streamState is the MessageStream lifecycle (spec.md §4.3): OPEN on
// creation, CLOSING once a CLOSE frame has been sent (by us or in reply to
// the peer), terminal CLOSED once the underlying byte stream has been
// closed.
type streamState int

const (
	streamOpen streamState = iota
	streamClosing
	streamClosed
)

const receiveChunkSize = 512

// MessageStream composes the frame codec over a ByteStream into a text
// message abstraction: ReceiveMessage/SendMessage exchange whole UTF-8
// strings, while PING/PONG/CLOSE are handled transparently. A MessageStream
// is created after a successful handshake and is not safe for concurrent
// use — exactly one goroutine should drive it (spec.md §5).
type MessageStream struct {
	stream  ByteStream
	parser  *multiFrameParser
	inbound []string // FIFO queue of decoded inbound text messages.
	headers map[string]string
	state   streamState
}

// NewMessageStream wraps stream with the frame codec. headers is the
// immutable snapshot of the handshake's request headers.
func NewMessageStream(stream ByteStream, headers map[string]string) *MessageStream {
	return &MessageStream{
		stream:  stream,
		parser:  newMultiFrameParser(),
		headers: headers,
		state:   streamOpen,
	}
}

// Headers returns the handshake headers captured when the stream was
// created.
func (m *MessageStream) Headers() map[string]string { return m.headers }

// Addr is the local endpoint of the underlying byte stream.
func (m *MessageStream) Addr() net.Addr { return m.stream.Addr() }

// PeerAddr is the remote endpoint of the underlying byte stream.
func (m *MessageStream) PeerAddr() net.Addr { return m.stream.PeerAddr() }

// ReceiveMessage blocks until a complete text message has been decoded,
// reading 512-byte chunks from the byte stream and feeding them through the
// frame codec until the inbound queue is non-empty. PING frames are
// answered with PONG and CLOSE frames drive the close handshake
// transparently, neither surfacing as a message.
func (m *MessageStream) ReceiveMessage(ctx context.Context) (string, error) {
	for len(m.inbound) == 0 {
		chunk, err := m.stream.Receive(ctx, receiveChunkSize)
		if err != nil {
			return "", err
		}

		frames, err := m.parser.feed(chunk)
		if err != nil {
			return "", err
		}

		for _, f := range frames {
			if err := m.handleFrame(ctx, f); err != nil {
				return "", err
			}
		}
	}

	msg := m.inbound[0]
	m.inbound = m.inbound[1:]
	return msg, nil
}

// handleFrame dispatches a decoded frame per spec.md §4.3's table.
func (m *MessageStream) handleFrame(ctx context.Context, f *frame) error {
	if !f.fin {
		return ErrFragmentationUnsupported
	}

	switch f.opCode {
	case OpText:
		m.inbound = append(m.inbound, string(f.payload))
		return nil

	case OpBinary:
		return ErrBinaryUnsupported

	case OpContinuation:
		return ErrFragmentationUnsupported

	case OpPing:
		pong := &frame{fin: true, opCode: OpPong, payload: f.payload}
		return m.sendFrame(ctx, pong)

	case OpClose:
		if len(f.payload) >= 2 {
			code := int(binary.BigEndian.Uint16(f.payload[:2]))
			reason := string(f.payload[2:])
			return m.Close(ctx, code, reason)
		}
		return m.Close(ctx, 1000, "")
	}

	return nil
}

// SendMessage encodes payload as UTF-8 and writes it as a single,
// unfragmented, unmasked TEXT frame (server frames are never masked).
func (m *MessageStream) SendMessage(ctx context.Context, payload string) error {
	return m.sendFrame(ctx, &frame{fin: true, opCode: OpText, payload: []byte(payload)})
}

func (m *MessageStream) sendFrame(ctx context.Context, f *frame) error {
	return m.stream.Send(ctx, f.serialize())
}

// closeTransport closes the underlying byte stream without attempting to
// send a CLOSE frame first. Used by Hub, which must never block its
// single event-loop goroutine on a network write to a peer that may no
// longer be reading.
func (m *MessageStream) closeTransport() error {
	m.state = streamClosed
	return m.stream.Close()
}

// Close sends a CLOSE frame carrying code and reason, then unconditionally
// closes the underlying byte stream. If the stream is already closed the
// write error is swallowed so the shutdown still runs (spec.md §4.3
// "finally" semantics). reason is written verbatim; callers must keep
// 2+len(reason) <= 125 bytes themselves (spec.md Open Question (b)),
// otherwise Close sends nothing, closes the stream and returns
// ErrControlTooLarge.
func (m *MessageStream) Close(ctx context.Context, code int, reason string) error {
	if m.state == streamClosed {
		return nil
	}
	m.state = streamClosing

	payload := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(payload, uint16(code))
	copy(payload[2:], reason)

	closeFrame := &frame{fin: true, opCode: OpClose, payload: payload}
	if len(payload) > maxControlPayload {
		_ = m.stream.Close()
		m.state = streamClosed
		return ErrControlTooLarge
	}

	err := m.sendFrame(ctx, closeFrame)
	if err != nil && err != ErrStreamClosed {
		_ = m.stream.Close()
		m.state = streamClosed
		return err
	}

	_ = m.stream.Close()
	m.state = streamClosed
	return nil
}
