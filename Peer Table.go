/*
File Name:  Peer Table.go
Package:    asoc

PeerTable maps a node identity to its single established Connection. A
second accepted or initiated connection to an already-present identity
must be closed without installation, and the local node's own identity
must never be entered, regardless of what the wire claims.
*/

package asoc

import (
	"sync"

	"github.com/sparksbenjamin/asoc/identity"
)

type peerTable struct {
	mu    sync.RWMutex
	peers map[identity.ID]*Connection
	self  identity.ID
}

func newPeerTable(self identity.ID) *peerTable {
	return &peerTable{peers: make(map[identity.ID]*Connection), self: self}
}

// install adds conn under id unless id is the local node's own identity
// or already present, in which case it returns false and the caller must
// close conn itself.
func (t *peerTable) install(id identity.ID, conn *Connection) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id == t.self {
		return false
	}
	if _, exists := t.peers[id]; exists {
		return false
	}
	t.peers[id] = conn
	return true
}

// remove deletes the entry for id if conn is still the installed
// connection for it (guards against a racing newer installation removing
// itself because of a stale receive-loop teardown).
func (t *peerTable) remove(id identity.ID, conn *Connection) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if current, ok := t.peers[id]; ok && current == conn {
		delete(t.peers, id)
	}
}

func (t *peerTable) get(id identity.ID) (*Connection, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	conn, ok := t.peers[id]
	return conn, ok
}

func (t *peerTable) has(id identity.ID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.peers[id]
	return ok
}

// ids returns a snapshot of currently connected peer identities.
func (t *peerTable) ids() []identity.ID {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]identity.ID, 0, len(t.peers))
	for id := range t.peers {
		out = append(out, id)
	}
	return out
}

// closeAll closes every connection and empties the table. Used only
// during shutdown.
func (t *peerTable) closeAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, conn := range t.peers {
		conn.close()
		delete(t.peers, id)
	}
}
