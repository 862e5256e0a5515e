package websocket

import "errors"

// Protocol violations, surfaced by the frame codec and the message stream.
// Neither recovers from these; they propagate to Serve, whose deferred
// close tears the connection down; the CLOSE frame it sends carries the
// default code 1000, not RFC 6455's protocol-error code 1002.
var (
	// ErrReservedBits indicates RSV1/RSV2/RSV3 is set on an incoming frame.
	// RFC 6455 Section 5.2: reserved for extensions this package does not
	// negotiate.
	ErrReservedBits = errors.New("websocket: reserved bits must be 0")

	// ErrInvalidOpcode indicates an unknown or reserved opcode.
	// RFC 6455 Section 5.2: opcodes 0x3-0x7 and 0xB-0xF are reserved.
	ErrInvalidOpcode = errors.New("websocket: invalid opcode")

	// ErrControlTooLarge indicates a control frame payload > 125 bytes.
	// Only enforced on frames this package sends, via MessageStream.Close
	// (RFC 6455 Section 5.5); incoming frame size is not separately
	// validated by the codec.
	ErrControlTooLarge = errors.New("websocket: control frame payload too large")

	// ErrFragmentationUnsupported indicates a frame with FIN=0, or a
	// CONTINUATION frame. This implementation never assembles fragmented
	// messages (spec Non-goal).
	ErrFragmentationUnsupported = errors.New("websocket: message fragmentation is not supported")

	// ErrBinaryUnsupported indicates a BINARY frame (spec Non-goal).
	ErrBinaryUnsupported = errors.New("websocket: binary frames are not supported")

	// ErrPayloadTooLarge indicates a payload length with the high bit of
	// the 64-bit extended length set. RFC 6455 Section 5.2: the most
	// significant bit must be 0.
	ErrPayloadTooLarge = errors.New("websocket: payload length exceeds 63 bits")
)

// Handshake failures (RFC 6455 Section 4). Propagate up; Serve closes the
// byte stream without ever sending a WebSocket CLOSE frame, because the
// session never opened.
var (
	// ErrMethodNotGet indicates the request line's method was not GET.
	ErrMethodNotGet = errors.New("websocket: method must be GET")

	// ErrHTTPVersionTooOld indicates an HTTP version below 1.1.
	ErrHTTPVersionTooOld = errors.New("websocket: HTTP version must be at least 1.1")

	// ErrUpgradeHeaderMissing indicates the Upgrade header did not contain
	// "websocket".
	ErrUpgradeHeaderMissing = errors.New("websocket: Upgrade header must include \"websocket\"")

	// ErrConnectionHeaderMissing indicates the Connection header did not
	// contain "upgrade".
	ErrConnectionHeaderMissing = errors.New("websocket: Connection header must include \"upgrade\"")

	// ErrUnsupportedWebsocketVersion indicates Sec-WebSocket-Version was
	// not exactly "13".
	ErrUnsupportedWebsocketVersion = errors.New("websocket: unsupported Sec-WebSocket-Version")

	// ErrOriginNotAllowed indicates the Origin header did not match the
	// configured allow-list.
	ErrOriginNotAllowed = errors.New("websocket: origin not allowed")

	// ErrRequestTooLarge indicates the request did not complete within 8
	// chunks of 512 bytes (~4 KiB).
	ErrRequestTooLarge = errors.New("websocket: handshake request too large")

	// ErrMalformedRequest indicates the request line or a header line
	// could not be split into its required parts.
	ErrMalformedRequest = errors.New("websocket: malformed handshake request")
)

// ErrStreamClosed is the transport condition raised by a ByteStream once
// the peer has closed the connection. MessageStream.Close recovers it
// (swallowed so the underlying stream close still runs); ReceiveMessage and
// SendMessage surface it so the caller can exit its loop.
var ErrStreamClosed = errors.New("websocket: stream closed")
