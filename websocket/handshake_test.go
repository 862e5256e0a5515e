package websocket

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"
	"time"
)

// fakeStream is a ByteStream backed by a fixed sequence of chunks for
// Receive and a buffer capturing what was sent.
type fakeStream struct {
	chunks [][]byte
	sent   bytes.Buffer
}

func (s *fakeStream) Receive(_ context.Context, n int) ([]byte, error) {
	if len(s.chunks) == 0 {
		return nil, ErrStreamClosed
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	if len(c) > n {
		c = c[:n]
	}
	return c, nil
}

func (s *fakeStream) Send(_ context.Context, data []byte) error {
	s.sent.Write(data)
	return nil
}

func (s *fakeStream) Close() error       { return nil }
func (s *fakeStream) Addr() net.Addr     { return nil }
func (s *fakeStream) PeerAddr() net.Addr { return nil }

func chunkRequest(req string, size int) [][]byte {
	var chunks [][]byte
	b := []byte(req)
	for len(b) > 0 {
		n := size
		if n > len(b) {
			n = len(b)
		}
		chunks = append(chunks, b[:n])
		b = b[n:]
	}
	return chunks
}

const rfcExampleRequest = "GET /chat HTTP/1.1\r\n" +
	"Host: server.example.com\r\n" +
	"Upgrade: websocket\r\n" +
	"Connection: Upgrade\r\n" +
	"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
	"Origin: http://example.com\r\n" +
	"Sec-WebSocket-Version: 13\r\n\r\n"

func TestPerformHandshake_RFC6455Example(t *testing.T) {
	stream := &fakeStream{chunks: chunkRequest(rfcExampleRequest, 512)}

	headers, err := PerformHandshake(context.Background(), stream, nil)
	if err != nil {
		t.Fatalf("PerformHandshake: %v", err)
	}
	if headers["sec-websocket-key"] != "dGhlIHNhbXBsZSBub25jZQ==" {
		t.Fatalf("unexpected headers: %+v", headers)
	}

	resp := stream.sent.String()
	if !strings.Contains(resp, "HTTP/1.1 101 Switching Protocols") {
		t.Fatalf("missing 101 line: %q", resp)
	}
	if !strings.Contains(resp, "Sec-WebSocket-Accept: s3pPLMBiTxaQ9kYGzzhZRbK+xOo=") {
		t.Fatalf("wrong accept key: %q", resp)
	}
	if !strings.Contains(resp, "Upgrade: WebSocket") || !strings.Contains(resp, "Connection: Upgrade") {
		t.Fatalf("missing required headers: %q", resp)
	}
}

func TestComputeAcceptKey_RFCExample(t *testing.T) {
	got := computeAcceptKey("dGhlIHNhbXBsZSBub25jZQ==")
	want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestPerformHandshake_RejectsWrongVersion(t *testing.T) {
	req := strings.Replace(rfcExampleRequest, "Sec-WebSocket-Version: 13", "Sec-WebSocket-Version: 8", 1)
	stream := &fakeStream{chunks: chunkRequest(req, 512)}

	_, err := PerformHandshake(context.Background(), stream, nil)
	if err != ErrUnsupportedWebsocketVersion {
		t.Fatalf("got %v, want ErrUnsupportedWebsocketVersion", err)
	}
	if stream.sent.Len() != 0 {
		t.Fatal("no 101 response should have been sent")
	}
}

func TestPerformHandshake_RejectsNonGetMethod(t *testing.T) {
	req := strings.Replace(rfcExampleRequest, "GET /chat", "POST /chat", 1)
	stream := &fakeStream{chunks: chunkRequest(req, 512)}

	_, err := PerformHandshake(context.Background(), stream, nil)
	if err != ErrMethodNotGet {
		t.Fatalf("got %v, want ErrMethodNotGet", err)
	}
}

func TestPerformHandshake_RejectsMissingUpgradeHeader(t *testing.T) {
	req := strings.Replace(rfcExampleRequest, "Upgrade: websocket\r\n", "", 1)
	stream := &fakeStream{chunks: chunkRequest(req, 512)}

	_, err := PerformHandshake(context.Background(), stream, nil)
	if err != ErrUpgradeHeaderMissing {
		t.Fatalf("got %v, want ErrUpgradeHeaderMissing", err)
	}
}

func TestPerformHandshake_OriginRejection(t *testing.T) {
	stream := &fakeStream{chunks: chunkRequest(rfcExampleRequest, 512)}
	allow := OriginAllowList{Exact("https://a")}

	_, err := PerformHandshake(context.Background(), stream, allow)
	if err != ErrOriginNotAllowed {
		t.Fatalf("got %v, want ErrOriginNotAllowed", err)
	}
}

func TestPerformHandshake_OriginAllowedWhenMatched(t *testing.T) {
	stream := &fakeStream{chunks: chunkRequest(rfcExampleRequest, 512)}
	allow := OriginAllowList{Exact("http://example.com")}

	_, err := PerformHandshake(context.Background(), stream, allow)
	if err != nil {
		t.Fatalf("PerformHandshake: %v", err)
	}
}

func TestPerformHandshake_NoOriginHeaderSkipsAllowList(t *testing.T) {
	req := strings.Replace(rfcExampleRequest, "Origin: http://example.com\r\n", "", 1)
	stream := &fakeStream{chunks: chunkRequest(req, 512)}
	allow := OriginAllowList{Exact("https://a")}

	_, err := PerformHandshake(context.Background(), stream, allow)
	if err != nil {
		t.Fatalf("PerformHandshake: %v", err)
	}
}

func TestPerformHandshake_RequestTooLarge(t *testing.T) {
	// A request line with no terminator, repeated past the 8*512 budget.
	stream := &fakeStream{chunks: [][]byte{}}
	for i := 0; i < maxReadChunks+1; i++ {
		stream.chunks = append(stream.chunks, bytes.Repeat([]byte{'a'}, readChunkSize))
	}

	_, err := PerformHandshake(context.Background(), stream, nil)
	if err != ErrRequestTooLarge {
		t.Fatalf("got %v, want ErrRequestTooLarge", err)
	}
}

func TestLineSplitter_SplitAcrossChunks(t *testing.T) {
	var s lineSplitter
	lines := s.feed([]byte("GET / HTTP/1.1\r\nHost: exam"))
	if len(lines) != 1 || lines[0] != "GET / HTTP/1.1" {
		t.Fatalf("got %v", lines)
	}
	lines = s.feed([]byte("ple.com\r\n\r\n"))
	if len(lines) != 2 || lines[0] != "Host: example.com" || lines[1] != "" {
		t.Fatalf("got %v", lines)
	}
}

func TestPerformHandshake_HandshakeViaRealConn(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	server := NewNetByteStream(a)
	client := NewNetByteStream(b)

	done := make(chan error, 1)
	go func() {
		_, err := PerformHandshake(context.Background(), server, nil)
		done <- err
	}()

	if err := client.Send(context.Background(), []byte(rfcExampleRequest)); err != nil {
		t.Fatalf("client send: %v", err)
	}

	// net.Pipe is synchronous: PerformHandshake's write of the 101 response
	// only completes once the client reads it.
	resp, err := client.Receive(context.Background(), 1024)
	if err != nil {
		t.Fatalf("client receive: %v", err)
	}
	if !strings.Contains(string(resp), "101 Switching Protocols") {
		t.Fatalf("unexpected response: %q", resp)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("PerformHandshake: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for handshake")
	}
}
