// Package peerstore is a small on-disk "known peer" address-book cache,
// backed by an embedded KV store (github.com/akrylysov/pogreb). It
// persists a node's DiscoveryTable snapshot on clean shutdown, so a
// restarted node can attempt outbound handshakes to previously-seen
// peers immediately rather than waiting for the first discovery
// broadcast round. This is a pure optimization: peers re-authenticate
// via the normal HELLO/ACCEPT handshake regardless of where their
// address came from, so a stale or wrong entry here only costs one
// failed dial.
package peerstore

import (
	"encoding/json"
	"io"
	"log"

	"github.com/akrylysov/pogreb"

	"github.com/sparksbenjamin/asoc/identity"
)

// Entry is the persisted form of one known peer address.
type Entry struct {
	Host string `json:"host"`
	Port uint16 `json:"port"`
}

// Store wraps a pogreb database keyed by 16-byte node identity.
type Store struct {
	db *pogreb.DB
}

// Open opens (creating if absent) the peerstore database at filename.
func Open(filename string) (*Store, error) {
	pogreb.SetLogger(log.New(io.Discard, "", 0))

	db, err := pogreb.Open(filename, nil)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put persists or overwrites the address for id.
func (s *Store) Put(id identity.ID, host string, port uint16) error {
	data, err := json.Marshal(Entry{Host: host, Port: port})
	if err != nil {
		return err
	}
	return s.db.Put(id.Bytes(), data)
}

// Get returns the last-persisted address for id, if any.
func (s *Store) Get(id identity.ID) (Entry, bool) {
	data, err := s.db.Get(id.Bytes())
	if err != nil || data == nil {
		return Entry{}, false
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, false
	}
	return e, true
}

// All iterates every persisted entry. Records that cannot be decoded (a
// key that is not 16 bytes, or malformed JSON) are skipped; an error from
// the underlying iterator ends the scan and is returned together with
// the entries read so far.
func (s *Store) All() (map[identity.ID]Entry, error) {
	out := make(map[identity.ID]Entry)

	it := s.db.Items()
	for {
		key, value, err := it.Next()
		if err == pogreb.ErrIterationDone {
			break
		}
		if err != nil {
			return out, err
		}

		var id identity.ID
		if len(key) != 16 {
			continue
		}
		id = identity.FromBytes(key)

		var e Entry
		if err := json.Unmarshal(value, &e); err != nil {
			continue
		}
		out[id] = e
	}

	return out, nil
}
