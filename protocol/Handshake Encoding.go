/*
File Name:  Handshake Encoding.go
Package:    protocol

HELLO payload (36 bytes):
0    16   node_id
16   16   hmac_sha256(secret, node_id || challenge)[:16]
32   4    challenge (u32)

ACCEPT payload (16 bytes):
0    8    session_token (random)
8    8    hmac_sha256(secret, session_token)[:8]

ACCEPT Extended payload (32 bytes) — an optional extension carrying the
base 16-byte ACCEPT plus the responder's own 16-byte node id, still well
within a single handshake frame. This is what the node manager actually
exchanges; decoding only the first 16
bytes keeps strict wire compatibility with a peer using the base form.
0    8    session_token (random)
8    8    hmac_sha256(secret, session_token)[:8]
16   16   responder node_id
*/

package protocol

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
)

// HelloSize is the size of an encoded HELLO payload.
const HelloSize = 36

// AcceptSize is the size of a base ACCEPT payload.
const AcceptSize = 16

// AcceptExtendedSize is the size of an ACCEPT payload carrying the
// responder's node id.
const AcceptExtendedSize = 32

const helloTagSize = 16
const acceptTagSize = 8

// Hello is a decoded HELLO payload.
type Hello struct {
	NodeID    [16]byte
	Tag       [16]byte
	Challenge uint32
}

// randomUint32 draws a uniform random 32-bit value from a cryptographic source.
func randomUint32() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func helloTag(nodeID [16]byte, challenge uint32, secret []byte) [helloTagSize]byte {
	var challengeBE [4]byte
	binary.BigEndian.PutUint32(challengeBE[:], challenge)

	mac := hmac.New(sha256.New, secret)
	mac.Write(nodeID[:])
	mac.Write(challengeBE[:])
	sum := mac.Sum(nil)

	var tag [helloTagSize]byte
	copy(tag[:], sum[:helloTagSize])
	return tag
}

// EncodeHello builds a 36-byte HELLO payload. If challenge is nil, a
// fresh random 32-bit challenge is drawn from crypto/rand.
func EncodeHello(nodeID [16]byte, secret []byte, challenge *uint32) ([]byte, error) {
	var c uint32
	if challenge != nil {
		c = *challenge
	} else {
		var err error
		if c, err = randomUint32(); err != nil {
			return nil, err
		}
	}

	tag := helloTag(nodeID, c, secret)

	payload := make([]byte, HelloSize)
	copy(payload[0:16], nodeID[:])
	copy(payload[16:32], tag[:])
	binary.BigEndian.PutUint32(payload[32:36], c)

	return payload, nil
}

// DecodeHello parses a 36-byte HELLO payload.
func DecodeHello(payload []byte) (Hello, error) {
	if len(payload) != HelloSize {
		return Hello{}, ErrBadHello
	}

	var h Hello
	copy(h.NodeID[:], payload[0:16])
	copy(h.Tag[:], payload[16:32])
	h.Challenge = binary.BigEndian.Uint32(payload[32:36])
	return h, nil
}

// VerifyHello recomputes the HELLO tag and compares it constant-time.
func VerifyHello(payload []byte, secret []byte) bool {
	h, err := DecodeHello(payload)
	if err != nil {
		return false
	}

	expected := helloTag(h.NodeID, h.Challenge, secret)
	return hmac.Equal(expected[:], h.Tag[:])
}

func acceptTag(token [8]byte, secret []byte) [acceptTagSize]byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(token[:])
	sum := mac.Sum(nil)

	var tag [acceptTagSize]byte
	copy(tag[:], sum[:acceptTagSize])
	return tag
}

// EncodeAccept draws a random 8-byte session token and returns the
// 16-byte ACCEPT payload plus the token.
func EncodeAccept(secret []byte) (payload []byte, token [8]byte, err error) {
	if _, err = rand.Read(token[:]); err != nil {
		return nil, token, err
	}

	tag := acceptTag(token, secret)

	payload = make([]byte, AcceptSize)
	copy(payload[0:8], token[:])
	copy(payload[8:16], tag[:])

	return payload, token, nil
}

// DecodeAccept verifies a base 16-byte ACCEPT payload and returns the
// session token on success. ok is false on length mismatch or tag
// mismatch (constant-time compared).
func DecodeAccept(payload []byte, secret []byte) (token [8]byte, ok bool) {
	if len(payload) != AcceptSize {
		return token, false
	}

	copy(token[:], payload[0:8])
	var tag [acceptTagSize]byte
	copy(tag[:], payload[8:16])

	expected := acceptTag(token, secret)
	return token, hmac.Equal(expected[:], tag[:])
}

// EncodeAcceptExtended builds the 32-byte ACCEPT variant that appends the
// responder's own node id after the base payload, resolving the base
// protocol's ambiguity about the responder's identity (see package doc).
func EncodeAcceptExtended(secret []byte, responderID [16]byte) (payload []byte, token [8]byte, err error) {
	base, token, err := EncodeAccept(secret)
	if err != nil {
		return nil, token, err
	}

	payload = make([]byte, AcceptExtendedSize)
	copy(payload[0:AcceptSize], base)
	copy(payload[AcceptSize:AcceptExtendedSize], responderID[:])

	return payload, token, nil
}

// DecodeAcceptExtended verifies the base 16 bytes like DecodeAccept and,
// if the payload is the full 32-byte extended form, also returns the
// responder's node id. If payload is only the base 16 bytes, hasID is
// false but the token/ok result is still valid — this keeps interop
// with a peer using the unextended wire form.
func DecodeAcceptExtended(payload []byte, secret []byte) (token [8]byte, responderID [16]byte, hasID bool, ok bool) {
	switch len(payload) {
	case AcceptSize:
		token, ok = DecodeAccept(payload, secret)
		return token, responderID, false, ok
	case AcceptExtendedSize:
		token, ok = DecodeAccept(payload[:AcceptSize], secret)
		if !ok {
			return token, responderID, false, false
		}
		copy(responderID[:], payload[AcceptSize:AcceptExtendedSize])
		return token, responderID, true, true
	default:
		return token, responderID, false, false
	}
}
