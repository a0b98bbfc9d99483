// Package discovery runs periodic broadcast and listen loops on a
// well-known UDP port, maintaining the DiscoveryTable and ReplayWindow
// defined alongside it.
package discovery

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/sparksbenjamin/asoc/identity"
	"github.com/sparksbenjamin/asoc/protocol"
	"github.com/sparksbenjamin/asoc/reuseport"
)

// DefaultPort is the well-known discovery UDP port.
const DefaultPort = 9999

const broadcastInterval = 3 * time.Second
const cleanupInterval = 30 * time.Second

// broadcastScopeTTL keeps the discovery datagram from being forwarded
// beyond the local subnet by any router that would otherwise relay a
// directed broadcast; discovery is bounded to the local network.
const broadcastScopeTTL = 1

// Logger receives non-fatal discovery diagnostics. Both fields may be
// nil, in which case messages are dropped (matching the protocol's
// "silently drop/swallow" failure policy for this subsystem).
type Logger struct {
	Errorf func(format string, args ...interface{})
	Infof  func(format string, args ...interface{})
}

func (l Logger) errorf(format string, args ...interface{}) {
	if l.Errorf != nil {
		l.Errorf(format, args...)
	}
}

func (l Logger) infof(format string, args ...interface{}) {
	if l.Infof != nil {
		l.Infof(format, args...)
	}
}

// Discovery runs the broadcast, listen, and cleanup loops for one node.
type Discovery struct {
	Community  string
	Secret     []byte
	NodeID     identity.ID
	ListenPort uint16
	Port       uint16 // discovery UDP port, defaults to DefaultPort
	Logger     Logger

	table  *table
	replay *replayWindow

	broadcastConn net.PacketConn
	listenConn    net.PacketConn

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// Start begins the broadcast, listen, and cleanup loops. The returned
// error reflects only failure to bind the listen or broadcast socket;
// the broadcast loop swallows its own transient send errors.
func (d *Discovery) Start(ctx context.Context) error {
	if d.Port == 0 {
		d.Port = DefaultPort
	}
	d.table = newTable()
	d.replay = newReplayWindow()

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	listenConn, err := reuseport.ListenPacket("udp4", net.JoinHostPort("", strconv.Itoa(int(d.Port))), true)
	if err != nil {
		cancel()
		return err
	}
	d.listenConn = listenConn

	broadcastConn, err := reuseport.ListenPacket("udp4", ":0", true)
	if err != nil {
		listenConn.Close()
		cancel()
		return err
	}
	d.broadcastConn = broadcastConn
	if pc := ipv4.NewPacketConn(broadcastConn); pc != nil {
		_ = pc.SetTTL(broadcastScopeTTL)
	}

	d.wg.Add(3)
	go d.broadcastLoop(ctx)
	go d.listenLoop(ctx)
	go d.cleanupLoop(ctx)

	return nil
}

// Stop halts all loops and releases the sockets. Idempotent.
func (d *Discovery) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.broadcastConn != nil {
		d.broadcastConn.Close()
	}
	if d.listenConn != nil {
		d.listenConn.Close()
	}
	d.wg.Wait()
}

// GetPeers returns a snapshot of the discovery table, not a live view.
func (d *Discovery) GetPeers() map[identity.ID]PeerAddr {
	return d.table.snapshot()
}

func (d *Discovery) broadcastLoop(ctx context.Context) {
	defer d.wg.Done()

	broadcastAddr := &net.UDPAddr{IP: net.IPv4bcast, Port: int(d.Port)}

	ticker := time.NewTicker(broadcastInterval)
	defer ticker.Stop()

	d.broadcastOnce(broadcastAddr)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.broadcastOnce(broadcastAddr)
		}
	}
}

func (d *Discovery) broadcastOnce(broadcastAddr *net.UDPAddr) {
	now := uint32(time.Now().Unix())
	msg, err := protocol.EncodeDiscovery(d.Community, [16]byte(d.NodeID), d.ListenPort, d.Secret, &now, nil)
	if err != nil {
		d.Logger.errorf("discovery: encode announcement: %v", err)
		return
	}

	// Transient send errors are swallowed; the loop continues.
	if _, err := d.broadcastConn.WriteTo(msg, broadcastAddr); err != nil {
		d.Logger.errorf("discovery: broadcast send: %v", err)
	}
}

func (d *Discovery) listenLoop(ctx context.Context) {
	defer d.wg.Done()

	buffer := make([]byte, 1024)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_ = d.listenConn.SetReadDeadline(time.Now().Add(time.Second))
		n, addr, err := d.listenConn.ReadFrom(buffer)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue // timeout or transient error; keep listening
		}

		msg, ok := protocol.DecodeDiscovery(buffer[:n], d.Community, d.Secret)
		if !ok {
			continue
		}

		id := identity.ID(msg.NodeID)
		if id == d.NodeID {
			continue
		}

		if d.replay.seenAndRecord(msg.Challenge) {
			continue
		}

		udpAddr, ok := addr.(*net.UDPAddr)
		if !ok {
			continue
		}

		d.table.upsert(id, udpAddr.IP, msg.Port, time.Now())
		d.Logger.infof("discovery: peer %s at %s:%d", id, udpAddr.IP, msg.Port)
	}
}

func (d *Discovery) cleanupLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.table.purgeStale(time.Now())
			d.replay.clearIfOversized()
		}
	}
}
