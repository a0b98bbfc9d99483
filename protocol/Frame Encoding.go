/*
File Name:  Frame Encoding.go
Package:    protocol

Basic frame structure of every post-handshake exchange:
Offset  Size   Info
0       1      Version = 1
1       1      Type (1 DATA, 2 END, 3 CONTROL, 4 HELLO, 5 ACCEPT)
2       4      Stream ID
6       4      Sequence
10      4      Payload length
14      ?      Payload

All multi-byte integers are network byte order (big-endian). The codec
does no I/O and holds no state; every function here is a pure transform.
*/

package protocol

import "encoding/binary"

// Version is the only protocol version this codec understands.
const Version = 1

// Frame types.
const (
	FrameData    = 1
	FrameEnd     = 2
	FrameControl = 3
	FrameHello   = 4
	FrameAccept  = 5
)

// HeaderSize is the fixed size of a frame header in bytes.
const HeaderSize = 14

// MaxPayloadSize is the sender's default chunk ceiling: 1 MiB.
const MaxPayloadSize = 1 << 20

// handshakeHeadroom allows HELLO/ACCEPT frames, which carry small fixed
// payloads, some room above MaxPayloadSize without a separate limit.
const handshakeHeadroom = 64

// MaxEncodablePayload is the largest payload EncodeFrame will accept,
// and the bound a receiver should enforce against an incoming header's
// Length before allocating a buffer for it.
const MaxEncodablePayload = MaxPayloadSize + handshakeHeadroom

// Header is the decoded form of a 14-byte frame header.
type Header struct {
	Version  uint8
	Type     uint8
	StreamID uint32
	Sequence uint32
	Length   uint32
}

// EncodeFrame prepends a 14-byte header to payload and returns the
// complete wire frame. It fails with ErrOversizedPayload if payload
// exceeds the configured maximum.
func EncodeFrame(frameType uint8, streamID, sequence uint32, payload []byte) ([]byte, error) {
	if len(payload) > MaxEncodablePayload {
		return nil, ErrOversizedPayload
	}

	frame := make([]byte, HeaderSize+len(payload))
	frame[0] = Version
	frame[1] = frameType
	binary.BigEndian.PutUint32(frame[2:6], streamID)
	binary.BigEndian.PutUint32(frame[6:10], sequence)
	binary.BigEndian.PutUint32(frame[10:14], uint32(len(payload)))
	copy(frame[HeaderSize:], payload)

	return frame, nil
}

// DecodeHeader decodes a 14-byte frame header. It fails with
// ErrBadHeader if data is not exactly HeaderSize bytes.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) != HeaderSize {
		return Header{}, ErrBadHeader
	}

	return Header{
		Version:  data[0],
		Type:     data[1],
		StreamID: binary.BigEndian.Uint32(data[2:6]),
		Sequence: binary.BigEndian.Uint32(data[6:10]),
		Length:   binary.BigEndian.Uint32(data[10:14]),
	}, nil
}
