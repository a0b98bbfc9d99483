package protocol

import "testing"

func TestDiscoveryRoundTrip(t *testing.T) {
	nodeID := [16]byte{1, 2, 3}
	secret := []byte("k")
	ts := uint32(1_700_000_000)
	ch := uint32(555)

	payload, err := EncodeDiscovery("cluster-a", nodeID, 9000, secret, &ts, &ch)
	if err != nil {
		t.Fatalf("EncodeDiscovery: %v", err)
	}
	if len(payload) != DiscoverySize {
		t.Fatalf("len(payload) = %d, want %d", len(payload), DiscoverySize)
	}

	msg, ok := DecodeDiscovery(payload, "cluster-a", secret)
	if !ok {
		t.Fatalf("DecodeDiscovery: valid datagram rejected")
	}
	if msg.NodeID != nodeID || msg.Port != 9000 || msg.Timestamp != ts || msg.Challenge != ch {
		t.Errorf("got %+v", msg)
	}
}

func TestDiscoveryCommunityMismatch(t *testing.T) {
	payload, err := EncodeDiscovery("x", [16]byte{1}, 9000, []byte("k"), nil, nil)
	if err != nil {
		t.Fatalf("EncodeDiscovery: %v", err)
	}
	if _, ok := DecodeDiscovery(payload, "y", []byte("k")); ok {
		t.Fatalf("DecodeDiscovery accepted mismatched community")
	}
}

func TestDiscoverySecretMismatch(t *testing.T) {
	payload, err := EncodeDiscovery("x", [16]byte{1}, 9000, []byte("k"), nil, nil)
	if err != nil {
		t.Fatalf("EncodeDiscovery: %v", err)
	}
	if _, ok := DecodeDiscovery(payload, "x", []byte("k2")); ok {
		t.Fatalf("DecodeDiscovery accepted mismatched secret")
	}
}

func TestDecodeDiscoveryBadLength(t *testing.T) {
	if _, ok := DecodeDiscovery(make([]byte, 49), "x", []byte("k")); ok {
		t.Fatalf("DecodeDiscovery accepted a truncated datagram")
	}
}
