// Connection wraps a bidirectional byte stream (normally a net.Conn, or
// the tls.Conn produced by the transport package) with framed I/O,
// bounded write concurrency, and per-operation timeouts.
package asoc

import (
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sparksbenjamin/asoc/identity"
	"github.com/sparksbenjamin/asoc/protocol"
)

const (
	sendGateSize      = 10
	connectTimeout    = 5 * time.Second
	handshakeTimeout  = 10 * time.Second
	steadyRecvTimeout = 30 * time.Second
	sendDrainTimeout  = 10 * time.Second
)

// Connection is an established, authenticated byte stream to one peer.
// Its sender side may be driven concurrently by any number of producers,
// serialized by the send gate and a write mutex; its receive side is
// owned by exactly one receive loop goroutine.
type Connection struct {
	conn net.Conn

	PeerID       identity.ID
	SessionToken [8]byte

	// initiator is true if this node dialed out to establish the
	// underlying connection (we sent HELLO first). It decides which
	// half of the stream-id space this connection allocates from when
	// this node originates a stream locally: odd if initiator, even
	// otherwise. This keeps both ends of one connection from ever
	// picking the same stream id independently.
	initiator bool

	gate chan struct{}

	writeMu sync.Mutex
	closeMu sync.Mutex
	closed  bool

	streamCounter uint32 // next value handed out by nextStreamID, pre-increment
}

// newConnection wraps conn. initiator indicates whether this side dialed
// out (true) or accepted the connection (false); it fixes the parity of
// locally-allocated stream ids for the lifetime of the connection.
// gateSize bounds the number of concurrently in-flight sends; a value
// less than 1 falls back to sendGateSize.
func newConnection(conn net.Conn, initiator bool, gateSize int) *Connection {
	if gateSize < 1 {
		gateSize = sendGateSize
	}
	c := &Connection{
		conn:      conn,
		initiator: initiator,
		gate:      make(chan struct{}, gateSize),
	}
	if initiator {
		c.streamCounter = 1 // odd: 1, 3, 5, ...
	} else {
		c.streamCounter = 2 // even: 2, 4, 6, ...
	}
	return c
}

// nextStreamID atomically allocates the next locally-originated stream id
// on this connection and advances by two, preserving parity.
func (c *Connection) nextStreamID() uint32 {
	return atomic.AddUint32(&c.streamCounter, 2) - 2
}

// sendFrame acquires a gate slot, encodes the frame, and writes it with a
// bounded deadline. The gate limits outstanding concurrent writers to
// the gate size given to newConnection (default sendGateSize); the
// write mutex then serializes the actual bytes on the wire once a slot
// is held.
func (c *Connection) sendFrame(frameType uint8, streamID, seq uint32, payload []byte) error {
	c.gate <- struct{}{}
	defer func() { <-c.gate }()

	frame, err := protocol.EncodeFrame(frameType, streamID, seq, payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(sendDrainTimeout)); err != nil {
		return ErrSendFailed
	}
	if _, err := c.conn.Write(frame); err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return ErrSendTimeout
		}
		return ErrSendFailed
	}
	return nil
}

// recvFrame reads exactly one frame: a 14-byte header, bounded by
// deadline, then exactly Length payload bytes, bounded by the same
// deadline class. recvFrame is not safe for concurrent use; it is owned
// by a single receive loop.
func (c *Connection) recvFrame(deadline time.Duration) (protocol.Header, []byte, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(deadline)); err != nil {
		return protocol.Header{}, nil, ErrRecvFailed
	}

	headerBuf := make([]byte, protocol.HeaderSize)
	if _, err := io.ReadFull(c.conn, headerBuf); err != nil {
		return protocol.Header{}, nil, classifyRecvErr(err)
	}

	header, err := protocol.DecodeHeader(headerBuf)
	if err != nil {
		return protocol.Header{}, nil, ErrRecvFailed
	}

	if header.Version != protocol.Version {
		return protocol.Header{}, nil, ErrRecvFailed
	}

	if header.Length > protocol.MaxEncodablePayload {
		return protocol.Header{}, nil, ErrRecvFailed
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(deadline)); err != nil {
		return protocol.Header{}, nil, ErrRecvFailed
	}

	payload := make([]byte, header.Length)
	if header.Length > 0 {
		if _, err := io.ReadFull(c.conn, payload); err != nil {
			return protocol.Header{}, nil, classifyRecvErr(err)
		}
	}

	return header, payload, nil
}

func classifyRecvErr(err error) error {
	if err == io.EOF {
		return ErrRecvClosed
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return ErrRecvTimeout
	}
	return ErrRecvFailed
}

// close idempotently closes the underlying connection, swallowing
// transport errors.
func (c *Connection) close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	_ = c.conn.Close()
}
