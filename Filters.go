/*
File Name:  Filters.go
Package:    asoc

Filters let the caller observe node lifecycle events without modifying the
node's behavior. Unset function fields are replaced with defaults at Node
construction (log.Printf for the log hooks, no-ops for the peer hooks) so
call sites never need a nil check.
*/

package asoc

import (
	"log"

	"github.com/sparksbenjamin/asoc/identity"
)

// Filters contains all hook functions a caller may install. Use nil for
// any hook not needed; NewNode fills in logging defaults that print via
// the standard log package and leaves the rest as no-ops.
type Filters struct {
	// LogError is called for any internal error worth surfacing.
	LogError func(function, format string, v ...interface{})

	// LogInfo is called for routine lifecycle messages.
	LogInfo func(function, format string, v ...interface{})

	// OnPeerConnected is called once a peer's handshake completes and it
	// is added to the peer table.
	OnPeerConnected func(peer identity.ID)

	// OnPeerDisconnected is called once a peer's connection is removed
	// from the peer table, whether by error, the peer closing, or local
	// shutdown.
	OnPeerDisconnected func(peer identity.ID)
}

func (f *Filters) init() {
	if f.LogError == nil {
		f.LogError = func(function, format string, v ...interface{}) {
			log.Printf("[error] "+function+": "+format, v...)
		}
	}
	if f.LogInfo == nil {
		f.LogInfo = func(function, format string, v ...interface{}) {
			log.Printf("[info] "+function+": "+format, v...)
		}
	}
	if f.OnPeerConnected == nil {
		f.OnPeerConnected = func(peer identity.ID) {}
	}
	if f.OnPeerDisconnected == nil {
		f.OnPeerDisconnected = func(peer identity.ID) {}
	}
}
