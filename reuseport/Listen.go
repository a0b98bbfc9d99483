// Package reuseport provides address-reuse listeners for the node
// manager's server accept loop and the discovery subsystem's
// broadcast/listen sockets: a thin SO_REUSEADDR/SO_REUSEPORT wrapper
// around net.ListenConfig.Control, built directly on golang.org/x/sys.
package reuseport

import (
	"context"
	"net"
	"syscall"
)

type controlFunc func(network, address string, c syscall.RawConn) error

// Listen opens a TCP listener with SO_REUSEADDR set, and SO_REUSEPORT
// where the platform supports it (Linux, *BSD, macOS). address is
// "host:port".
func Listen(network, address string) (net.Listener, error) {
	lc := net.ListenConfig{Control: controlReuseAddr}
	return lc.Listen(context.Background(), network, address)
}

// ListenPacket opens a UDP socket with SO_REUSEADDR set (so multiple
// discovery listeners on the same machine, or a quick restart, do not
// collide on "address already in use"). If broadcast is true, SO_BROADCAST
// is also set so the socket may send to a broadcast address.
func ListenPacket(network, address string, broadcast bool) (net.PacketConn, error) {
	control := controlReuseAddr
	if broadcast {
		control = controlReuseAddrBroadcast
	}

	lc := net.ListenConfig{Control: control}
	return lc.ListenPacket(context.Background(), network, address)
}
