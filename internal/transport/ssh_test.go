package transport

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microcli/util"
)

// fakeTunnel records calls and hands out in-memory pipes.
type fakeTunnel struct {
	mu       sync.Mutex
	connects int
	closes   int
	alive    bool
	dialed   []string
}

func (f *fakeTunnel) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	f.alive = true
	return nil
}

func (f *fakeTunnel) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	f.mu.Lock()
	f.dialed = append(f.dialed, address)
	f.mu.Unlock()
	a, b := net.Pipe()
	b.Close()
	return a, nil
}

func (f *fakeTunnel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	f.alive = false
	return nil
}

func (f *fakeTunnel) IsAlive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive
}

func quietLogger() *util.Logger {
	l := util.NewLogger(0)
	l.SetOutput(io.Discard)
	return l
}

func TestSSHDialer_LazyConnect(t *testing.T) {
	ft := &fakeTunnel{}
	d := NewTunnelDialer(ft, "test", quietLogger())

	for i := 0; i < 3; i++ {
		c, err := d.Dial(context.Background(), "tcp", "10.0.0.5:2000")
		require.NoError(t, err)
		c.Close()
	}

	assert.Equal(t, 1, ft.connects, "tunnel should be connected once")
	assert.Equal(t, []string{"10.0.0.5:2000", "10.0.0.5:2000", "10.0.0.5:2000"}, ft.dialed)
}

func TestSSHDialer_ReconnectsDeadTunnel(t *testing.T) {
	ft := &fakeTunnel{}
	d := NewTunnelDialer(ft, "test", quietLogger())

	c, err := d.Dial(context.Background(), "tcp", "board:2000")
	require.NoError(t, err)
	c.Close()

	ft.mu.Lock()
	ft.alive = false
	ft.mu.Unlock()

	c, err = d.Dial(context.Background(), "tcp", "board:2000")
	require.NoError(t, err)
	c.Close()

	assert.Equal(t, 2, ft.connects)
	assert.Equal(t, 1, ft.closes)
}

func TestSSHDialer_Close(t *testing.T) {
	ft := &fakeTunnel{}
	d := NewTunnelDialer(ft, "test", quietLogger())

	// Closing before any dial does not touch the tunnel.
	require.NoError(t, d.Close())
	assert.Equal(t, 0, ft.closes)

	c, err := d.Dial(context.Background(), "tcp", "board:2000")
	require.NoError(t, err)
	c.Close()

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	assert.Equal(t, 1, ft.closes)
}
