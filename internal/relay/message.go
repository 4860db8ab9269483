package relay

import (
	"errors"
	"net"
)

// Identity is the remote address of a connection. It only filters a
// connection's own lines out of its egress stream.
type Identity string

// IdentityOf returns the identity of conn's remote peer.
func IdentityOf(conn net.Conn) Identity {
	return Identity(conn.RemoteAddr().String())
}

// Message is one line read from a client, terminator included.
// Text is a string so every subscriber shares the same immutable bytes.
type Message struct {
	Text   string
	Origin Identity
}

var (
	ErrBusClosed   = errors.New("relay: bus closed")
	ErrLineTooLong = errors.New("relay: line too long")
)
