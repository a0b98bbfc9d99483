/*
File Name:  Errors.go
Package:    asoc

Sentinel errors returned by the node manager and connection layer. Callers
are expected to discriminate on these via errors.Is rather than string
matching.
*/

package asoc

import "errors"

var (
	// ErrSendTimeout is returned when a frame could not be written within
	// the connection's send deadline.
	ErrSendTimeout = errors.New("asoc: send timed out")

	// ErrRecvTimeout is returned when no frame arrived within the
	// connection's receive deadline.
	ErrRecvTimeout = errors.New("asoc: receive timed out")

	// ErrSendFailed is returned in place of a lower-level transport error
	// encountered while writing a frame; the underlying error is not kept.
	ErrSendFailed = errors.New("asoc: send failed")

	// ErrRecvFailed is returned in place of a lower-level transport error
	// encountered while reading a frame (the underlying error is not
	// kept), and for a header with a bad version or an oversized length.
	ErrRecvFailed = errors.New("asoc: receive failed")

	// ErrRecvClosed is returned when a read hits a clean end of stream,
	// i.e. the peer closed the connection. A read on a locally closed
	// connection yields ErrRecvFailed instead.
	ErrRecvClosed = errors.New("asoc: connection closed")

	// ErrDuplicate is logged when a handshake completes for a peer
	// identity that already has an established connection; the new
	// connection is closed rather than replacing the existing one.
	ErrDuplicate = errors.New("asoc: duplicate peer connection")

	// ErrNoPeer is returned when an operation names a peer identity with
	// no established connection.
	ErrNoPeer = errors.New("asoc: no such peer")

	// ErrStopped is returned by any operation attempted after the node
	// has begun or completed shutdown.
	ErrStopped = errors.New("asoc: node stopped")

	// ErrConfigInvalid is returned by NewNode when the configuration has
	// an empty community or an empty secret.
	ErrConfigInvalid = errors.New("asoc: invalid configuration")

	// ErrSelfConnect is logged when a handshake would connect a node to
	// itself (matching node identities); the connection is closed.
	ErrSelfConnect = errors.New("asoc: refused connection to self")
)
