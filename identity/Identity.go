/*
File Name:  Identity.go
Package:    identity

NodeIdentity is an opaque 128-bit value identifying a node within a
community. It has two equivalent views: 16 raw bytes (the wire form used
by the protocol package) and a canonical text form (a UUID string, used
only at the operator surface).
*/

package identity

import (
	"fmt"

	"github.com/google/uuid"
)

// ID is a node identity: 16 raw bytes, wire-compatible, comparable, and
// usable directly as a map key.
type ID [16]byte

// Nil is the zero identity. No node should legitimately hold it.
var Nil ID

// New generates a fresh random node identity.
func New() ID {
	return ID(uuid.New())
}

// Parse decodes a canonical text form (UUID string) into an ID.
func Parse(text string) (ID, error) {
	u, err := uuid.Parse(text)
	if err != nil {
		return ID{}, fmt.Errorf("identity: invalid node id %q: %w", text, err)
	}
	return ID(u), nil
}

// FromBytes copies a 16-byte wire form into an ID. It does not check the
// length: a shorter b leaves the trailing bytes zero and bytes past the
// 16th are ignored, so callers decoding untrusted wire data should check
// length themselves (the protocol package's codec already does).
func FromBytes(b []byte) (id ID) {
	copy(id[:], b)
	return id
}

// Bytes returns the 16-byte wire form.
func (id ID) Bytes() []byte {
	b := make([]byte, 16)
	copy(b, id[:])
	return b
}

// String returns the canonical UUID text form.
func (id ID) String() string {
	return uuid.UUID(id).String()
}

// IsNil reports whether this is the zero identity.
func (id ID) IsNil() bool {
	return id == Nil
}
