/*
File Name:  Table.go
Package:    discovery

DiscoveryTable maps a node identity to the most recently announced
address for that peer. Entries older than staleAfter are purged by the
periodic cleanup loop.
*/

package discovery

import (
	"net"
	"sync"
	"time"

	"github.com/sparksbenjamin/asoc/identity"
)

// PeerAddr is a discovered peer's last-known address.
type PeerAddr struct {
	IP       net.IP
	Port     uint16
	LastSeen time.Time
}

// staleAfter is how long a PeerAddr is trusted without a fresh announcement.
const staleAfter = 15 * time.Second

type table struct {
	mu      sync.RWMutex
	entries map[identity.ID]PeerAddr
}

func newTable() *table {
	return &table{entries: make(map[identity.ID]PeerAddr)}
}

// upsert inserts or refreshes the entry for id.
func (t *table) upsert(id identity.ID, ip net.IP, port uint16, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries[id] = PeerAddr{IP: ip, Port: port, LastSeen: now}
}

// snapshot returns a point-in-time copy, not a live view.
func (t *table) snapshot() map[identity.ID]PeerAddr {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[identity.ID]PeerAddr, len(t.entries))
	for id, addr := range t.entries {
		out[id] = addr
	}
	return out
}

// purgeStale removes entries whose LastSeen predates now-staleAfter.
func (t *table) purgeStale(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, addr := range t.entries {
		if now.Sub(addr.LastSeen) > staleAfter {
			delete(t.entries, id)
		}
	}
}
