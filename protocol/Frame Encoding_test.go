package protocol

import (
	"bytes"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	payload := []byte("tensor-chunk-data")

	frame, err := EncodeFrame(FrameData, 7, 3, payload)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}

	header, err := DecodeHeader(frame[:HeaderSize])
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}

	if header.Version != Version {
		t.Errorf("version = %d, want %d", header.Version, Version)
	}
	if header.Type != FrameData {
		t.Errorf("type = %d, want %d", header.Type, FrameData)
	}
	if header.StreamID != 7 {
		t.Errorf("stream id = %d, want 7", header.StreamID)
	}
	if header.Sequence != 3 {
		t.Errorf("sequence = %d, want 3", header.Sequence)
	}
	if int(header.Length) != len(payload) {
		t.Errorf("length = %d, want %d", header.Length, len(payload))
	}
	if !bytes.Equal(frame[HeaderSize:], payload) {
		t.Errorf("tail = %q, want %q", frame[HeaderSize:], payload)
	}
}

func TestFrameEmptyPayload(t *testing.T) {
	frame, err := EncodeFrame(FrameEnd, 9, 5, nil)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	if len(frame) != HeaderSize {
		t.Fatalf("len(frame) = %d, want %d", len(frame), HeaderSize)
	}

	header, err := DecodeHeader(frame)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if header.Length != 0 {
		t.Errorf("length = %d, want 0", header.Length)
	}
}

func TestDecodeHeaderBadLength(t *testing.T) {
	for _, n := range []int{0, 13, 15, 100} {
		if _, err := DecodeHeader(make([]byte, n)); err != ErrBadHeader {
			t.Errorf("DecodeHeader(len=%d) error = %v, want ErrBadHeader", n, err)
		}
	}
}

func TestEncodeFrameOversized(t *testing.T) {
	_, err := EncodeFrame(FrameData, 1, 0, make([]byte, MaxEncodablePayload+1))
	if err != ErrOversizedPayload {
		t.Fatalf("error = %v, want ErrOversizedPayload", err)
	}
}
