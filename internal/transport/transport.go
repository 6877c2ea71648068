// Package transport provides abstractions for network connection
// establishment and the line-oriented Transport that link controllers
// read from and write to.  Dialers handle the "how" of reaching the
// peer (plain TCP or through an SSH gateway); Transport handles the
// framing (newline-delimited text) once a connection exists.
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound network connections.  Implementations include
// a plain TCP dialer and an SSH-tunnelled dialer that routes traffic
// through an encrypted gateway.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH session).  Stateless dialers return nil.
	Close() error
}
