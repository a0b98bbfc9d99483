package asoc

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/sparksbenjamin/asoc/protocol"
)

// TestRecvFrameRejectsOversizedLength exercises the oversized-frame
// failure path: a header claiming a Length beyond what any sender could
// have legitimately encoded must be rejected before the payload buffer
// is allocated, not once a wire-version full read deadline is hit.
func TestRecvFrameRejectsOversizedLength(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	header := make([]byte, protocol.HeaderSize)
	header[0] = protocol.Version
	header[1] = protocol.FrameData
	binary.BigEndian.PutUint32(header[2:6], 1)
	binary.BigEndian.PutUint32(header[6:10], 0)
	binary.BigEndian.PutUint32(header[10:14], protocol.MaxEncodablePayload+1)

	go client.Write(header)

	conn := newConnection(server, false, 0)

	done := make(chan struct{})
	var err error
	go func() {
		_, _, err = conn.recvFrame(5 * time.Second)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("recvFrame did not return promptly; oversized length was not rejected before reading the payload")
	}

	if err != ErrRecvFailed {
		t.Fatalf("recvFrame error = %v, want ErrRecvFailed", err)
	}
}

// TestNewConnectionGateSize confirms a configured gate size actually
// sizes the send gate, rather than the package default always winning.
func TestNewConnectionGateSize(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	conn := newConnection(server, true, 3)
	if cap(conn.gate) != 3 {
		t.Fatalf("gate capacity = %d, want 3", cap(conn.gate))
	}

	conn = newConnection(server, true, 0)
	if cap(conn.gate) != sendGateSize {
		t.Fatalf("gate capacity = %d, want default %d", cap(conn.gate), sendGateSize)
	}
}
