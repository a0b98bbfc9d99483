/*
File Name:  Discovery Encoding.go
Package:    protocol

Discovery datagram (50 bytes, sent over UDP broadcast):
0    8    sha256(community_utf8)[:8]
8    16   node_id
24   2    listen_port (u16)
26   4    timestamp   (u32, seconds)
30   4    challenge   (u32)
34   16   hmac_sha256(secret, bytes_0..34)[:16]
*/

package protocol

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"time"
)

// DiscoverySize is the size of an encoded discovery datagram.
const DiscoverySize = 50

const communityHashSize = 8
const discoveryTagSize = 16
const discoverySignedSize = 34 // everything before the tag

// Discovery is a decoded, verified discovery datagram.
type Discovery struct {
	NodeID    [16]byte
	Port      uint16
	Timestamp uint32
	Challenge uint32
}

// CommunityHash returns the first 8 bytes of SHA-256 over the
// community string's UTF-8 byte encoding.
func CommunityHash(community string) (hash [communityHashSize]byte) {
	sum := sha256.Sum256([]byte(community))
	copy(hash[:], sum[:communityHashSize])
	return hash
}

func discoveryTag(signed []byte, secret []byte) [discoveryTagSize]byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(signed)
	sum := mac.Sum(nil)

	var tag [discoveryTagSize]byte
	copy(tag[:], sum[:discoveryTagSize])
	return tag
}

// EncodeDiscovery builds a 50-byte discovery datagram. If timestamp is
// nil, the current Unix time is used; if challenge is nil, a fresh
// random 32-bit value is drawn from crypto/rand.
func EncodeDiscovery(community string, nodeID [16]byte, listenPort uint16, secret []byte, timestamp, challenge *uint32) ([]byte, error) {
	var ts, ch uint32
	if timestamp != nil {
		ts = *timestamp
	} else {
		ts = uint32(time.Now().Unix())
	}
	if challenge != nil {
		ch = *challenge
	} else {
		var err error
		if ch, err = randomUint32(); err != nil {
			return nil, err
		}
	}

	payload := make([]byte, DiscoverySize)
	communityHash := CommunityHash(community)
	copy(payload[0:8], communityHash[:])
	copy(payload[8:24], nodeID[:])
	binary.BigEndian.PutUint16(payload[24:26], listenPort)
	binary.BigEndian.PutUint32(payload[26:30], ts)
	binary.BigEndian.PutUint32(payload[30:34], ch)

	tag := discoveryTag(payload[:discoverySignedSize], secret)
	copy(payload[34:50], tag[:])

	return payload, nil
}

// DecodeDiscovery validates and decodes a 50-byte discovery datagram.
// ok is false on length mismatch, community-hash mismatch, or tag
// mismatch (constant-time compared).
func DecodeDiscovery(payload []byte, expectedCommunity string, secret []byte) (msg Discovery, ok bool) {
	if len(payload) != DiscoverySize {
		return msg, false
	}

	expectedHash := CommunityHash(expectedCommunity)
	if !hmac.Equal(expectedHash[:], payload[0:8]) {
		return msg, false
	}

	tag := discoveryTag(payload[:discoverySignedSize], secret)
	if !hmac.Equal(tag[:], payload[34:50]) {
		return msg, false
	}

	copy(msg.NodeID[:], payload[8:24])
	msg.Port = binary.BigEndian.Uint16(payload[24:26])
	msg.Timestamp = binary.BigEndian.Uint32(payload[26:30])
	msg.Challenge = binary.BigEndian.Uint32(payload[30:34])

	return msg, true
}
