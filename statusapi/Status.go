// Package statusapi is a small read-only HTTP status surface for
// operators: current node identity, connected peer count, and a peer
// identity listing. This is an operator convenience; it carries none of
// the wire protocol logic.
package statusapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// NodeStatus is the narrow view of asoc.Node this package needs. Kept
// as an interface so statusapi never imports the root asoc package;
// *asoc.Node satisfies it through its PeerIDs method.
type NodeStatus interface {
	PeerIDs() []string
}

// Server wraps a mux.Router exposing /status and /status/peers for a
// single node.
type Server struct {
	Router *mux.Router

	nodeID string
	node   NodeStatus
	hub    *hub
}

// New builds a Server for node (identified by nodeID, the canonical
// text form of its identity), registering its routes on a fresh
// mux.Router. Callers may register additional routes on Server.Router
// before starting an http.Server with it.
func New(nodeID string, node NodeStatus) *Server {
	s := &Server{
		Router: mux.NewRouter(),
		nodeID: nodeID,
		node:   node,
		hub:    newHub(),
	}

	s.Router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.Router.HandleFunc("/status/peers", s.handlePeers).Methods(http.MethodGet)
	s.Router.HandleFunc("/status/stream", s.handleStream)

	return s
}

type statusResponse struct {
	NodeID    string `json:"node_id"`
	PeerCount int    `json:"peer_count"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, statusResponse{NodeID: s.nodeID, PeerCount: len(s.node.PeerIDs())})
}

type peersResponse struct {
	Peers []string `json:"peers"`
}

func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, peersResponse{Peers: s.node.PeerIDs()})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
