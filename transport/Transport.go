// Package transport defines a thin Dialer/Listener interface pair for
// an optional transport-layer encryption wrapper around the base
// protocol, plus a crypto/tls-based reference implementation. The base
// protocol itself is unencrypted on the wire; confidentiality, when
// wanted, is delegated entirely to this interchangeable collaborator.
package transport

import (
	"context"
	"crypto/tls"
	"net"
)

// Dialer opens an outbound connection, optionally wrapped in transport
// encryption. The node manager's outbound handshake uses this in place
// of net.Dialer when a Dialer is configured.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Listener accepts inbound connections, optionally wrapped in transport
// encryption. The node manager's server accept loop uses this in place
// of net.Listener when a Listener is configured.
type Listener interface {
	Accept() (net.Conn, error)
	Close() error
	Addr() net.Addr
}

// PlainDialer is the zero-configuration Dialer: a bare net.Dialer, no
// encryption. This is the default the node manager uses when no
// transport is configured, matching the base protocol's unencrypted
// wire.
type PlainDialer struct {
	net.Dialer
}

// TLSDialer wraps outbound connections in a TLS client handshake using
// the given config (typically a certificate pool pinned to the
// community's CA, generated by an external, out-of-scope tool).
type TLSDialer struct {
	Dialer net.Dialer
	Config *tls.Config
}

func (d TLSDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	tlsDialer := tls.Dialer{NetDialer: &d.Dialer, Config: d.Config}
	return tlsDialer.DialContext(ctx, network, address)
}

// TLSListener wraps an inner net.Listener (typically from reuseport.Listen)
// so every accepted connection performs a TLS server handshake before
// being handed to the node manager's inbound handshake state machine.
type TLSListener struct {
	Inner  net.Listener
	Config *tls.Config
}

func NewTLSListener(inner net.Listener, cfg *tls.Config) *TLSListener {
	return &TLSListener{Inner: inner, Config: cfg}
}

func (l *TLSListener) Accept() (net.Conn, error) {
	conn, err := l.Inner.Accept()
	if err != nil {
		return nil, err
	}
	return tls.Server(conn, l.Config), nil
}

func (l *TLSListener) Close() error   { return l.Inner.Close() }
func (l *TLSListener) Addr() net.Addr { return l.Inner.Addr() }
