package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"microcli/tunnel"
	"microcli/util"
)

// SSHDialer routes connections through an SSH tunnel.  The tunnel is
// connected lazily on the first Dial, re-established on a later Dial if
// it has died in the meantime, and torn down on Close.
type SSHDialer struct {
	tunnel    tunnel.Tunnel
	name      string
	logger    *util.Logger
	mu        sync.Mutex
	connected bool
}

// NewSSHDialer creates a dialer that forwards connections through an
// SSH tunnel.  The tunnel is not connected until the first Dial.
func NewSSHDialer(cfg *tunnel.SSHConfig, logger *util.Logger) *SSHDialer {
	return NewTunnelDialer(tunnel.NewSSHTunnel(cfg, logger),
		fmt.Sprintf("%s@%s:%d", cfg.User, cfg.Host, cfg.Port), logger)
}

// NewTunnelDialer wraps an arbitrary Tunnel.  name is only used in log
// messages.
func NewTunnelDialer(t tunnel.Tunnel, name string, logger *util.Logger) *SSHDialer {
	return &SSHDialer{tunnel: t, name: name, logger: logger}
}

// connect establishes the SSH tunnel if it is not already up.
func (d *SSHDialer) connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected && d.tunnel.IsAlive() {
		return nil
	}
	if d.connected {
		d.logger.Verbose("SSH tunnel to %s was lost; reconnecting", d.name)
		d.tunnel.Close() //nolint:errcheck
		d.connected = false
	}

	d.logger.Verbose("establishing SSH tunnel to %s", d.name)

	if err := d.tunnel.Connect(ctx); err != nil {
		return fmt.Errorf("tunnel: %w", err)
	}

	d.connected = true
	d.logger.Verbose("SSH tunnel established")
	return nil
}

// Dial connects to address through the SSH tunnel, lazily establishing
// the tunnel on the first call.
func (d *SSHDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if err := d.connect(ctx); err != nil {
		return nil, err
	}
	return d.tunnel.Dial(ctx, network, address)
}

// Close tears down the underlying SSH tunnel.
func (d *SSHDialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		d.connected = false
		return d.tunnel.Close()
	}
	return nil
}
