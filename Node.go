// Node owns the PeerTable and every long-lived task: the server accept
// loop, the static and discovery-driven connectors, and the handshake
// state machines that feed them. The stream-id allocator is
// per-Connection (see Connection.go).
package asoc

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/sparksbenjamin/asoc/discovery"
	"github.com/sparksbenjamin/asoc/identity"
	"github.com/sparksbenjamin/asoc/peerstore"
	"github.com/sparksbenjamin/asoc/protocol"
	"github.com/sparksbenjamin/asoc/reuseport"
	"github.com/sparksbenjamin/asoc/transport"
)

const (
	staticRetryInterval    = 10 * time.Second
	discoveryRetryInterval = 2 * time.Second
)

// Consumer receives DATA and END frames from established connections.
// OnData may run concurrently with the receive loop but must not block
// it for longer than the receive timeout. OnEnd is
// called once per stream, after its final DATA frame.
type Consumer interface {
	OnData(peer identity.ID, streamID, seq uint32, payload []byte)
	OnEnd(peer identity.ID, streamID, seq uint32)
}

// Config is the construction-time configuration for a Node. It mirrors
// the operator surface.
type Config struct {
	Community string
	Secret    []byte

	// NodeID, if the zero value, causes a fresh random identity to be
	// generated.
	NodeID identity.ID

	ListenHost string
	ListenPort uint16

	// StaticPeers are "host:port" strings dialed by the static
	// connector. Malformed entries are logged and dropped, never fatal.
	StaticPeers []string

	// DiscoveryEnabled is tri-state: nil means "enabled iff StaticPeers
	// is empty".
	DiscoveryEnabled *bool
	DiscoveryPort    uint16

	// MaxInFlightSends overrides the Connection send gate size for every
	// connection this node establishes (0 or less keeps the package
	// default of 10).
	MaxInFlightSends int

	// ChunkSize overrides the stream sender's default chunk size (0
	// keeps the default of 1 MiB).
	ChunkSize int

	Consumer Consumer
	Filters  Filters

	// Dialer and Listener optionally wrap outbound/inbound connections
	// in an out-of-scope transport-encryption collaborator.
	// Nil keeps the base protocol's plain, unencrypted TCP stream.
	Dialer   transport.Dialer
	Listener transport.Listener

	// PeerStore, if set, is consulted at Start for a cold-start address
	// book (tried once, before the first discovery round completes) and
	// updated with the DiscoveryTable snapshot at Shutdown.
	PeerStore *peerstore.Store
}

// Node is one running instance of the peer-to-peer transport. A zero
// Node is not usable; construct one with NewNode.
type Node struct {
	community string
	secret    []byte
	self      identity.ID

	listenHost string
	listenPort uint16

	staticPeers  []string
	chunkSize    int
	sendGateSize int

	consumer Consumer
	filters  Filters

	dialer         transport.Dialer
	externListener transport.Listener
	peerStore      *peerstore.Store

	peers *peerTable

	discoveryEnabled bool
	discoveryPort    uint16
	disc             *discovery.Discovery

	listener net.Listener

	mu      sync.Mutex
	running bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// provisional tracks outbound connections installed under a
	// "host:port" key because the responder answered with a base
	// (unextended) ACCEPT that carries no identity. An entry stays
	// under that key until its receive loop ends; connections whose
	// ACCEPT-Extended carried an identity go into the PeerTable
	// instead and never appear here.
	provisionalMu sync.Mutex
	provisional   map[string]*Connection
}

// NewNode constructs a Node from cfg. It does not start any network
// activity; call Start for that.
func NewNode(cfg Config) (*Node, error) {
	if cfg.Community == "" {
		return nil, ErrConfigInvalid
	}
	if len(cfg.Secret) == 0 {
		return nil, ErrConfigInvalid
	}

	self := cfg.NodeID
	if self.IsNil() {
		self = identity.New()
	}

	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = protocol.MaxPayloadSize
	}

	discoveryPort := cfg.DiscoveryPort
	if discoveryPort == 0 {
		discoveryPort = discovery.DefaultPort
	}

	discoveryEnabled := len(cfg.StaticPeers) == 0
	if cfg.DiscoveryEnabled != nil {
		discoveryEnabled = *cfg.DiscoveryEnabled
	}

	filters := cfg.Filters
	filters.init()

	var staticPeers []string
	for _, entry := range cfg.StaticPeers {
		if _, _, err := net.SplitHostPort(entry); err != nil {
			filters.LogError("NewNode", "malformed static peer %q: %v", entry, err)
			continue
		}
		staticPeers = append(staticPeers, entry)
	}

	consumer := cfg.Consumer
	if consumer == nil {
		consumer = discardConsumer{}
	}

	return &Node{
		community:        cfg.Community,
		secret:           append([]byte(nil), cfg.Secret...),
		self:             self,
		listenHost:       cfg.ListenHost,
		listenPort:       cfg.ListenPort,
		staticPeers:      staticPeers,
		chunkSize:        chunkSize,
		sendGateSize:     cfg.MaxInFlightSends,
		consumer:         consumer,
		filters:          filters,
		dialer:           cfg.Dialer,
		externListener:   cfg.Listener,
		peerStore:        cfg.PeerStore,
		peers:            newPeerTable(self),
		discoveryEnabled: discoveryEnabled,
		discoveryPort:    discoveryPort,
		provisional:      make(map[string]*Connection),
	}, nil
}

// ID returns the node's own identity.
func (n *Node) ID() identity.ID { return n.self }

type discardConsumer struct{}

func (discardConsumer) OnData(identity.ID, uint32, uint32, []byte) {}
func (discardConsumer) OnEnd(identity.ID, uint32, uint32)          {}

// Start begins the server accept loop and, per configuration, the static
// connector, discovery subsystem, and discovery-driven connector.
func (n *Node) Start() error {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return ErrStopped
	}
	if n.running {
		n.mu.Unlock()
		return nil
	}
	n.running = true
	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	n.mu.Unlock()

	if n.externListener != nil {
		n.listener = n.externListener
	} else {
		addr := net.JoinHostPort(n.listenHost, strconv.Itoa(int(n.listenPort)))
		ln, err := reuseport.Listen("tcp", addr)
		if err != nil {
			return err
		}
		n.listener = ln
	}

	n.wg.Add(1)
	go n.acceptLoop(ctx)

	n.dialPersistedPeers(ctx)

	if len(n.staticPeers) > 0 {
		n.wg.Add(1)
		go n.staticConnectorLoop(ctx)
	}

	if n.discoveryEnabled {
		n.disc = &discovery.Discovery{
			Community:  n.community,
			Secret:     n.secret,
			NodeID:     n.self,
			ListenPort: n.listenPort,
			Port:       n.discoveryPort,
			Logger: discovery.Logger{
				Errorf: func(format string, args ...interface{}) { n.filters.LogError("discovery", format, args...) },
				Infof:  func(format string, args ...interface{}) { n.filters.LogInfo("discovery", format, args...) },
			},
		}
		if err := n.disc.Start(ctx); err != nil {
			n.filters.LogError("Start", "discovery: %v", err)
		} else {
			n.wg.Add(1)
			go n.discoveryConnectorLoop(ctx)
		}
	}

	return nil
}

// Shutdown marks the node stopped, closes the listener, and closes every
// connection. Subsequent operations fail with ErrStopped. Idempotent.
func (n *Node) Shutdown() {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return
	}
	n.stopped = true
	running := n.running
	cancel := n.cancel
	n.mu.Unlock()

	if !running {
		return
	}

	if cancel != nil {
		cancel()
	}
	if n.listener != nil {
		_ = n.listener.Close()
	}
	if n.disc != nil {
		n.disc.Stop()
	}

	n.persistDiscoveredPeers()

	n.peers.closeAll()
	n.wg.Wait()
}

// dialPersistedPeers attempts one outbound handshake to every peer
// address previously persisted to the peerstore, giving the node a
// cold-start address book before the first discovery broadcast round
// completes (SPEC_FULL.md Supplemented Features #1). Purely an
// optimization: every dial still goes through the normal HELLO/ACCEPT
// handshake, so a stale entry only costs one failed connection attempt.
func (n *Node) dialPersistedPeers(ctx context.Context) {
	if n.peerStore == nil {
		return
	}

	entries, err := n.peerStore.All()
	if err != nil {
		n.filters.LogError("dialPersistedPeers", "read peerstore: %v", err)
		return
	}

	for id, entry := range entries {
		if id == n.self || n.peers.has(id) {
			continue
		}

		target := net.JoinHostPort(entry.Host, strconv.Itoa(int(entry.Port)))
		n.wg.Add(1)
		go n.outboundHandshake(ctx, target)
	}
}

// persistDiscoveredPeers writes the current DiscoveryTable snapshot to
// the peerstore, if configured, so a future restart can reach these
// peers immediately.
func (n *Node) persistDiscoveredPeers() {
	if n.peerStore == nil || n.disc == nil {
		return
	}

	for id, addr := range n.disc.GetPeers() {
		if err := n.peerStore.Put(id, addr.IP.String(), addr.Port); err != nil {
			n.filters.LogError("persistDiscoveredPeers", "write peerstore: %v", err)
		}
	}
}

// PeerIDs returns the text form of every currently connected peer
// identity. Provisional (not-yet-identified outbound) entries are
// excluded from the operator surface.
func (n *Node) PeerIDs() []string {
	ids := n.peers.ids()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func (n *Node) acceptLoop(ctx context.Context) {
	defer n.wg.Done()

	for {
		conn, err := n.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			n.filters.LogError("acceptLoop", "accept: %v", err)
			continue
		}

		n.wg.Add(1)
		go n.inboundHandshake(ctx, conn)
	}
}

// inboundHandshake runs the AwaitHello state machine.
func (n *Node) inboundHandshake(ctx context.Context, rawConn net.Conn) {
	defer n.wg.Done()

	c := newConnection(rawConn, false, n.sendGateSize)

	header, payload, err := c.recvFrame(handshakeTimeout)
	if err != nil || header.Type != protocol.FrameHello || !protocol.VerifyHello(payload, n.secret) {
		c.close()
		return
	}

	hello, err := protocol.DecodeHello(payload)
	if err != nil {
		c.close()
		return
	}
	peerID := identity.ID(hello.NodeID)

	acceptPayload, token, err := protocol.EncodeAcceptExtended(n.secret, [16]byte(n.self))
	if err != nil {
		n.filters.LogError("inboundHandshake", "encode accept: %v", err)
		c.close()
		return
	}
	if err := c.sendFrame(protocol.FrameAccept, 0, 0, acceptPayload); err != nil {
		c.close()
		return
	}

	c.PeerID = peerID
	c.SessionToken = token

	if peerID == n.self {
		n.filters.LogError("inboundHandshake", "%v", ErrSelfConnect)
		c.close()
		return
	}
	if !n.peers.install(peerID, c) {
		n.filters.LogError("inboundHandshake", "%v", ErrDuplicate)
		c.close()
		return
	}

	n.filters.OnPeerConnected(peerID)
	n.runReceiveLoop(ctx, c)
}

// staticConnectorLoop dials the configured addresses once at start and
// then every staticRetryInterval. An address is skipped only while it
// has a live provisional connection; an address whose peer was
// installed by identity is dialed again each round, and that new
// connection is closed as a duplicate once its handshake completes.
func (n *Node) staticConnectorLoop(ctx context.Context) {
	defer n.wg.Done()

	n.staticConnectOnce(ctx)

	ticker := time.NewTicker(staticRetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.staticConnectOnce(ctx)
		}
	}
}

func (n *Node) staticConnectOnce(ctx context.Context) {
	for _, addr := range n.staticPeers {
		if n.hasProvisionalOrAddr(addr) {
			continue
		}

		n.wg.Add(1)
		go n.outboundHandshake(ctx, addr)
	}
}

// hasProvisionalOrAddr reports whether addr already has a live
// provisional (unidentified) connection, avoiding a redundant redial
// while the peer's true identity is still unknown.
func (n *Node) hasProvisionalOrAddr(addr string) bool {
	n.provisionalMu.Lock()
	defer n.provisionalMu.Unlock()

	_, ok := n.provisional[addr]
	return ok
}

// discoveryConnectorLoop retries every discoveryRetryInterval, dialing
// every discovered address whose node identity is not yet in the
// PeerTable.
func (n *Node) discoveryConnectorLoop(ctx context.Context) {
	defer n.wg.Done()

	ticker := time.NewTicker(discoveryRetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.discoveryConnectOnce(ctx)
		}
	}
}

func (n *Node) discoveryConnectOnce(ctx context.Context) {
	for id, addr := range n.disc.GetPeers() {
		if n.peers.has(id) {
			continue
		}

		target := net.JoinHostPort(addr.IP.String(), strconv.Itoa(int(addr.Port)))
		n.wg.Add(1)
		go n.outboundHandshake(ctx, target)
	}
}

// outboundHandshake runs the Idle->Connected->Established state
// machine. If ACCEPT-Extended carried the responder's identity, the
// connection is installed in the PeerTable under that identity;
// otherwise it is installed under a provisional host:port key.
func (n *Node) outboundHandshake(ctx context.Context, addr string) {
	defer n.wg.Done()

	var dialer transport.Dialer = transport.PlainDialer{Dialer: net.Dialer{Timeout: connectTimeout}}
	if n.dialer != nil {
		dialer = n.dialer
	}

	dialCtx, dialCancel := context.WithTimeout(ctx, connectTimeout)
	defer dialCancel()

	rawConn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return // swallow: the retry loop re-attempts
	}

	c := newConnection(rawConn, true, n.sendGateSize)

	helloPayload, err := protocol.EncodeHello([16]byte(n.self), n.secret, nil)
	if err != nil {
		c.close()
		return
	}
	if err := c.sendFrame(protocol.FrameHello, 0, 0, helloPayload); err != nil {
		c.close()
		return
	}

	header, payload, err := c.recvFrame(handshakeTimeout)
	if err != nil || header.Type != protocol.FrameAccept {
		c.close()
		return
	}

	token, responderID, hasID, ok := protocol.DecodeAcceptExtended(payload, n.secret)
	if !ok {
		c.close()
		return
	}
	c.SessionToken = token

	if hasID {
		c.PeerID = responderID
		if responderID == n.self {
			n.filters.LogError("outboundHandshake", "%v", ErrSelfConnect)
			c.close()
			return
		}
		if !n.peers.install(responderID, c) {
			n.filters.LogError("outboundHandshake", "%v", ErrDuplicate)
			c.close()
			return
		}
		n.filters.OnPeerConnected(responderID)
		n.runReceiveLoop(ctx, c)
		return
	}

	// Base (non-extended) ACCEPT: the responder's identity is unknown.
	// Install under the provisional host:port key.
	n.provisionalMu.Lock()
	if _, exists := n.provisional[addr]; exists {
		n.provisionalMu.Unlock()
		c.close()
		return
	}
	n.provisional[addr] = c
	n.provisionalMu.Unlock()

	n.filters.LogInfo("outboundHandshake", "connected to %s (identity pending)", addr)
	n.runReceiveLoopProvisional(ctx, c, addr)
}

// runReceiveLoop drives the receive loop for an identified connection
// removing it from the PeerTable on termination.
func (n *Node) runReceiveLoop(ctx context.Context, c *Connection) {
	n.receiveLoop(ctx, c)
	n.peers.remove(c.PeerID, c)
	n.filters.OnPeerDisconnected(c.PeerID)
	c.close()
}

// runReceiveLoopProvisional is identical but removes the provisional
// host:port entry on termination instead of a PeerTable entry.
func (n *Node) runReceiveLoopProvisional(ctx context.Context, c *Connection, addr string) {
	n.receiveLoop(ctx, c)

	n.provisionalMu.Lock()
	if n.provisional[addr] == c {
		delete(n.provisional, addr)
	}
	n.provisionalMu.Unlock()
	c.close()
}

// receiveLoop calls recvFrame repeatedly and dispatches by type until
// failure or shutdown. It never removes c from any table itself;
// callers do that after receiveLoop returns.
func (n *Node) receiveLoop(ctx context.Context, c *Connection) {
	for {
		if ctx.Err() != nil {
			return
		}

		header, payload, err := c.recvFrame(steadyRecvTimeout)
		if err != nil {
			return
		}

		switch header.Type {
		case protocol.FrameData:
			n.consumer.OnData(c.PeerID, header.StreamID, header.Sequence, payload)
		case protocol.FrameEnd:
			n.consumer.OnEnd(c.PeerID, header.StreamID, header.Sequence)
		case protocol.FrameControl:
			// Reserved; currently a no-op.
		case protocol.FrameHello, protocol.FrameAccept:
			// Protocol violation after Established: close.
			return
		default:
			return
		}
	}
}
