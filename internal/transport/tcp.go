package transport

import (
	"context"
	"net"
	"strconv"
	"time"

	ncerr "microcli/internal/errors"
)

// TCPDialer opens direct TCP connections to a board.
type TCPDialer struct {
	Timeout   time.Duration // 0 = OS connect timeout
	LocalPort int           // bind this source port; 0 = ephemeral
}

// Dial connects to address.  A source port that cannot be resolved for
// network fails with a NetworkError whose Op is "resolve".
func (d *TCPDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: d.Timeout}

	if d.LocalPort > 0 {
		local, err := net.ResolveTCPAddr(network, net.JoinHostPort("", strconv.Itoa(d.LocalPort)))
		if err != nil {
			return nil, ncerr.Wrap("resolve", address, err)
		}
		dialer.LocalAddr = local
	}

	return dialer.DialContext(ctx, network, address)
}

// Close does nothing; a TCPDialer holds no resources between dials.
func (d *TCPDialer) Close() error { return nil }
