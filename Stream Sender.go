package asoc

import (
	"github.com/sparksbenjamin/asoc/identity"
	"github.com/sparksbenjamin/asoc/protocol"
)

// SendStream chunks payload into DATA frames of at most n.chunkSize
// bytes each, followed by one END frame, all on streamID (or a freshly
// allocated local odd/even id if streamID is nil). Returns the stream id
// used.
func (n *Node) SendStream(peer identity.ID, payload []byte, streamID *uint32) (uint32, error) {
	n.mu.Lock()
	stopped := n.stopped
	n.mu.Unlock()
	if stopped {
		return 0, ErrStopped
	}

	conn, ok := n.peers.get(peer)
	if !ok {
		return 0, ErrNoPeer
	}

	sid := streamID
	var id uint32
	if sid != nil {
		id = *sid
	} else {
		id = conn.nextStreamID()
	}

	chunk := n.chunkSize
	if chunk <= 0 {
		chunk = protocol.MaxPayloadSize
	}

	var seq uint32
	for offset := 0; offset < len(payload); offset += chunk {
		end := offset + chunk
		if end > len(payload) {
			end = len(payload)
		}

		if err := conn.sendFrame(protocol.FrameData, id, seq, payload[offset:end]); err != nil {
			return id, err
		}
		seq++
	}

	if err := conn.sendFrame(protocol.FrameEnd, id, seq, nil); err != nil {
		return id, err
	}

	return id, nil
}
