package asoc

import (
	"sync"
	"testing"
	"time"

	"github.com/sparksbenjamin/asoc/identity"
)

type recordingConsumer struct {
	mu      sync.Mutex
	data    map[uint32][][]byte
	ended   map[uint32]uint32
	endSeen chan struct{}
}

func newRecordingConsumer() *recordingConsumer {
	return &recordingConsumer{
		data:    make(map[uint32][][]byte),
		ended:   make(map[uint32]uint32),
		endSeen: make(chan struct{}, 16),
	}
}

func (r *recordingConsumer) OnData(_ identity.ID, streamID, _ uint32, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := append([]byte(nil), payload...)
	r.data[streamID] = append(r.data[streamID], cp)
}

func (r *recordingConsumer) OnEnd(_ identity.ID, streamID, seq uint32) {
	r.mu.Lock()
	r.ended[streamID] = seq
	r.mu.Unlock()
	r.endSeen <- struct{}{}
}

func waitForPeer(t *testing.T, n *Node, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if len(n.PeerIDs()) > 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("no peer connected within %s", timeout)
}

// TestBidirectionalLoopback mirrors scenario E1: two nodes, static peers
// pointing at each other, discovery off. After a few seconds each has
// exactly one peer, and a stream sent from A reconstructs correctly on B.
func TestBidirectionalLoopback(t *testing.T) {
	consumerA := newRecordingConsumer()
	consumerB := newRecordingConsumer()
	discOff := false

	a, err := NewNode(Config{
		Community:        "t",
		Secret:           []byte("k"),
		ListenHost:       "127.0.0.1",
		ListenPort:       19101,
		StaticPeers:      []string{"127.0.0.1:19102"},
		DiscoveryEnabled: &discOff,
		Consumer:         consumerA,
	})
	if err != nil {
		t.Fatalf("NewNode a: %v", err)
	}
	b, err := NewNode(Config{
		Community:        "t",
		Secret:           []byte("k"),
		ListenHost:       "127.0.0.1",
		ListenPort:       19102,
		StaticPeers:      []string{"127.0.0.1:19101"},
		DiscoveryEnabled: &discOff,
		Consumer:         consumerB,
	})
	if err != nil {
		t.Fatalf("NewNode b: %v", err)
	}

	if err := a.Start(); err != nil {
		t.Fatalf("a.Start: %v", err)
	}
	defer a.Shutdown()
	if err := b.Start(); err != nil {
		t.Fatalf("b.Start: %v", err)
	}
	defer b.Shutdown()

	waitForPeer(t, a, 5*time.Second)
	waitForPeer(t, b, 5*time.Second)
	if got := len(a.PeerIDs()); got != 1 {
		t.Fatalf("a has %d peers, want exactly 1", got)
	}
	if got := len(b.PeerIDs()); got != 1 {
		t.Fatalf("b has %d peers, want exactly 1", got)
	}

	bID := identity.ID{}
	for _, id := range a.peers.ids() {
		bID = id
	}

	payload := make([]byte, (1<<20)+123)
	for i := range payload {
		payload[i] = byte(i)
	}

	streamID, err := a.SendStream(bID, payload, nil)
	if err != nil {
		t.Fatalf("SendStream: %v", err)
	}

	select {
	case <-consumerB.endSeen:
	case <-time.After(5 * time.Second):
		t.Fatalf("END frame never observed on B")
	}

	consumerB.mu.Lock()
	chunks := consumerB.data[streamID]
	endSeq := consumerB.ended[streamID]
	consumerB.mu.Unlock()

	if len(chunks) != 2 {
		t.Fatalf("got %d DATA frames, want 2", len(chunks))
	}
	if len(chunks[0]) != 1<<20 || len(chunks[1]) != 123 {
		t.Errorf("chunk sizes = %d, %d; want %d, 123", len(chunks[0]), len(chunks[1]), 1<<20)
	}
	if endSeq != 2 {
		t.Errorf("END sequence = %d, want 2", endSeq)
	}

	reassembled := append(append([]byte(nil), chunks[0]...), chunks[1]...)
	if len(reassembled) != len(payload) {
		t.Fatalf("reassembled length = %d, want %d", len(reassembled), len(payload))
	}
	for i := range payload {
		if reassembled[i] != payload[i] {
			t.Fatalf("reassembled byte %d mismatch", i)
			break
		}
	}
}

// TestBadSecretNeverInstallsPeer mirrors scenario E2: mismatched secrets
// mean the HELLO tag never verifies, so neither side ever records a peer.
func TestBadSecretNeverInstallsPeer(t *testing.T) {
	discOff := false

	a, err := NewNode(Config{
		Community:        "t",
		Secret:           []byte("k"),
		ListenHost:       "127.0.0.1",
		ListenPort:       19111,
		StaticPeers:      []string{"127.0.0.1:19112"},
		DiscoveryEnabled: &discOff,
	})
	if err != nil {
		t.Fatalf("NewNode a: %v", err)
	}
	b, err := NewNode(Config{
		Community:        "t",
		Secret:           []byte("k2"),
		ListenHost:       "127.0.0.1",
		ListenPort:       19112,
		StaticPeers:      []string{"127.0.0.1:19111"},
		DiscoveryEnabled: &discOff,
	})
	if err != nil {
		t.Fatalf("NewNode b: %v", err)
	}

	if err := a.Start(); err != nil {
		t.Fatalf("a.Start: %v", err)
	}
	defer a.Shutdown()
	if err := b.Start(); err != nil {
		t.Fatalf("b.Start: %v", err)
	}
	defer b.Shutdown()

	time.Sleep(2 * time.Second)

	if ids := a.PeerIDs(); len(ids) != 0 {
		t.Errorf("a has peers %v, want none", ids)
	}
	if ids := b.PeerIDs(); len(ids) != 0 {
		t.Errorf("b has peers %v, want none", ids)
	}
}

// TestSendStreamNoPeer exercises the NoPeer error path.
func TestSendStreamNoPeer(t *testing.T) {
	discOff := false
	n, err := NewNode(Config{
		Community:        "t",
		Secret:           []byte("k"),
		ListenHost:       "127.0.0.1",
		ListenPort:       19121,
		DiscoveryEnabled: &discOff,
	})
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	if err := n.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer n.Shutdown()

	if _, err := n.SendStream(identity.New(), []byte("x"), nil); err != ErrNoPeer {
		t.Fatalf("SendStream error = %v, want ErrNoPeer", err)
	}
}

// TestSendStreamAfterShutdown exercises the Stopped error path.
func TestSendStreamAfterShutdown(t *testing.T) {
	discOff := false
	n, err := NewNode(Config{
		Community:        "t",
		Secret:           []byte("k"),
		ListenHost:       "127.0.0.1",
		ListenPort:       19131,
		DiscoveryEnabled: &discOff,
	})
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	if err := n.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	n.Shutdown()

	if _, err := n.SendStream(identity.New(), []byte("x"), nil); err != ErrStopped {
		t.Fatalf("SendStream error = %v, want ErrStopped", err)
	}
}
