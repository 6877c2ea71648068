// Package link maintains a single line-oriented TCP connection to a
// fixed peer and reports everything that happens on it as an ordered
// stream of events.
//
// A Controller owns one connection at a time.  Start dials the peer and
// launches a reader goroutine; Stop tears the connection down; Send
// writes one CRLF-terminated line under a single-writer lock.  Received
// lines, successful sends and failures all arrive on Events() in the
// order they were produced.  The controller never reconnects on its
// own: after a Fault the consumer decides whether to Start again.
package link

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	ncerr "microcli/internal/errors"
	"microcli/internal/metrics"
	"microcli/internal/transport"
	"microcli/util"
)

// ── Configuration ────────────────────────────────────────────────────

const (
	DefaultStopTimeout = 2 * time.Second
	DefaultTerminator  = "\r\n"
)

// ErrClosed is returned by Start after Close.
var ErrClosed = ncerr.New("link: controller closed")

// ErrAborted is returned by Start when Stop ran while it was dialing.
var ErrAborted = ncerr.New("link: stopped while connecting")

// Options configure a Controller.  Only Address is required.
type Options struct {
	Address string           // host:port of the peer
	Network string           // "tcp" (default), "tcp4" or "tcp6"
	Dialer  transport.Dialer // defaults to a TCPDialer with ConnectTimeout

	ConnectTimeout time.Duration // 0 = OS default
	ReadTimeout    time.Duration // idle limit between lines, 0 = none
	WriteTimeout   time.Duration // per-send limit, 0 = none
	MaxLineLength  int           // 0 = unlimited

	// StopTimeout bounds how long Stop waits for the reader goroutine
	// before detaching from it.
	StopTimeout time.Duration

	// Terminator is appended by Send.  Defaults to CRLF.
	Terminator string

	Logger  *util.Logger
	Metrics *metrics.Collector
	Clock   clock.Clock
}

func (o *Options) setDefaults() {
	if o.Network == "" {
		o.Network = "tcp"
	}
	if o.Dialer == nil {
		o.Dialer = &transport.TCPDialer{Timeout: o.ConnectTimeout}
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = DefaultStopTimeout
	}
	if o.Terminator == "" {
		o.Terminator = DefaultTerminator
	}
	if o.Logger == nil {
		o.Logger = util.NewLogger(0)
		o.Logger.SetOutput(io.Discard)
	}
	if o.Metrics == nil {
		o.Metrics = metrics.New()
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
}

// ── Controller ───────────────────────────────────────────────────────

// conn is one live connection and its reader goroutine.
type conn struct {
	id         string
	tr         *transport.Transport
	done       chan struct{} // closed when the reader goroutine exits
	unwritable bool          // guarded by Controller.mu
}

// Controller owns the connection lifecycle.  All methods are safe for
// concurrent use.
type Controller struct {
	opts   Options
	log    *util.Logger
	clk    clock.Clock
	stats  *metrics.Collector
	events *queue

	// writeMu serializes Send/Write.  Lock order: writeMu, then mu.
	writeMu sync.Mutex

	mu     sync.Mutex
	state  State
	cur    *conn
	gen    uint64 // bumped by every Start and Stop; a dial compares it on return
	closed bool

	// abortDial cancels the dial of the Start in flight, if any.
	abortDial context.CancelFunc
}

// New returns a stopped Controller.  The event pump starts immediately;
// the consumer must drain Events() until it is closed.
func New(opts Options) *Controller {
	opts.setDefaults()
	return &Controller{
		opts:   opts,
		log:    opts.Logger,
		clk:    opts.Clock,
		stats:  opts.Metrics,
		events: newQueue(),
		state:  Stopped,
	}
}

// Events returns the ordered event stream.  It is closed by Close after
// every queued event has been delivered.
func (c *Controller) Events() <-chan Event { return c.events.out }

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ConnID returns the ID of the current connection, or "" if there is none.
func (c *Controller) ConnID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil {
		return ""
	}
	return c.cur.id
}

// Addr returns the configured peer address.
func (c *Controller) Addr() string { return c.opts.Address }

// Metrics returns the controller's counters.
func (c *Controller) Metrics() *metrics.Collector { return c.stats }

// Start connects to the peer and launches the reader.  It is a no-op
// while Starting, or while Connected on a writable connection.  From
// Faulted, or from a connection whose write side has failed, it
// releases the old connection first and dials again.
//
// A connect failure is emitted as a ConnectFailure Fault and also
// returned; the controller is then Faulted.  The dial runs without
// holding the controller lock, so Stop may be called concurrently and
// wins: the dial is cancelled (a socket that still arrives is closed),
// nothing is emitted and ErrAborted is returned.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == Starting || (c.state == Connected && c.cur != nil && !c.cur.unwritable) {
		c.mu.Unlock()
		return nil
	}
	stale := c.detachLocked()
	c.gen++
	gen := c.gen
	c.state = Starting

	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.abortDial = cancel
	c.mu.Unlock()

	if stale != nil {
		c.release(stale)
	}

	c.log.Verbose("connecting to %s", c.opts.Address)

	if c.opts.ConnectTimeout > 0 {
		var cancelTimeout context.CancelFunc
		dialCtx, cancelTimeout = context.WithTimeout(dialCtx, c.opts.ConnectTimeout)
		defer cancelTimeout()
	}
	tr, err := transport.Open(dialCtx, c.opts.Dialer, c.opts.Network, c.opts.Address, transport.Options{
		ReadTimeout:   c.opts.ReadTimeout,
		WriteTimeout:  c.opts.WriteTimeout,
		MaxLineLength: c.opts.MaxLineLength,
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen {
		if tr != nil {
			tr.Close() //nolint:errcheck // never handed out
		}
		c.log.Verbose("connect to %s abandoned by stop", c.opts.Address)
		return ErrAborted
	}
	c.abortDial = nil

	if err != nil {
		f := newFault(ConnectFailure, "dial", c.opts.Address, err)
		c.state = Faulted
		c.emitFaultLocked(f, "")
		return f
	}

	cn := &conn{
		id:   uuid.NewString(),
		tr:   tr,
		done: make(chan struct{}),
	}
	c.cur = cn
	c.state = Connected
	c.stats.ConnectionOpened()
	c.log.Verbose("connected to %s (local %s, conn %s)", c.opts.Address, tr.LocalAddr(), cn.id)

	go c.readLoop(cn)
	return nil
}

// Stop closes the connection and waits, up to StopTimeout, for the
// reader goroutine to exit.  Once Stop has detached the connection no
// event from it reaches the consumer.  Stop is idempotent and never
// fails; cleanup errors are logged.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state == Stopped && c.cur == nil {
		c.mu.Unlock()
		return
	}
	cn := c.detachLocked()
	c.gen++
	c.state = Stopped
	c.cancelDialLocked()
	c.mu.Unlock()

	if cn != nil {
		c.release(cn)
	}
	c.log.Verbose("link to %s stopped", c.opts.Address)
}

// Close stops the controller, releases the dialer and closes the event
// channel once every queued event has been delivered.  Start fails with
// ErrClosed afterwards.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cn := c.detachLocked()
	c.gen++
	c.state = Stopped
	c.cancelDialLocked()
	c.mu.Unlock()

	if cn != nil {
		c.release(cn)
	}
	c.events.close()
	return c.opts.Dialer.Close()
}

// detachLocked takes the current connection away from the controller.
// From here on emitLocked treats it as stale.
func (c *Controller) detachLocked() *conn {
	cn := c.cur
	c.cur = nil
	return cn
}

func (c *Controller) cancelDialLocked() {
	if c.abortDial != nil {
		c.abortDial()
		c.abortDial = nil
	}
}

// release closes a detached connection and waits for its reader.
func (c *Controller) release(cn *conn) {
	if err := cn.tr.Close(); err != nil {
		c.log.Verbose("conn %s: cleanup: %v", cn.id, err)
	}

	timer := c.clk.Timer(c.opts.StopTimeout)
	defer timer.Stop()

	select {
	case <-cn.done:
	case <-timer.C:
		c.log.Warn("conn %s: reader did not exit within %v; detaching", cn.id, c.opts.StopTimeout)
	}
	c.stats.ConnectionClosed()
}

// ── Sending ──────────────────────────────────────────────────────────

// Send writes payload followed by the terminator.  On success a Sent
// event carrying payload (without terminator) is emitted.  Failures are
// returned as a *Fault and, unless Stop detached the connection during
// the write, also emitted:
//
//   - not Connected: InvalidState wrapping ErrNotConnected, nothing is written
//   - the socket write fails: WriteFailure, and the connection stops
//     accepting writes while its reader keeps running; Start replaces it
//   - a previous write failed: WriteFailure wrapping ErrNotWritable
func (c *Controller) Send(payload []byte) error {
	return c.write(payload, true)
}

// SendString is Send for text.
func (c *Controller) SendString(s string) error {
	return c.write([]byte(s), true)
}

// Write is Send without the terminator.
func (c *Controller) Write(raw []byte) error {
	return c.write(raw, false)
}

func (c *Controller) write(payload []byte, terminate bool) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	cn := c.cur
	switch {
	case c.state != Connected || cn == nil:
		f := newFault(InvalidState, "send", c.opts.Address,
			fmt.Errorf("%w (%s)", ncerr.ErrNotConnected, c.state))
		c.emitFaultLocked(f, "")
		c.mu.Unlock()
		return f

	case cn.unwritable:
		f := newFault(WriteFailure, "write", c.opts.Address, ncerr.ErrNotWritable)
		c.emitFaultLocked(f, cn.id)
		c.mu.Unlock()
		return f
	}
	c.mu.Unlock()

	buf := payload
	if terminate {
		buf = make([]byte, 0, len(payload)+len(c.opts.Terminator))
		buf = append(buf, payload...)
		buf = append(buf, c.opts.Terminator...)
	}
	err := cn.tr.Write(buf)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cur != cn {
		// Stopped mid-write.  The connection is gone, so is its news.
		if err != nil {
			return newFault(WriteFailure, "write", c.opts.Address, err)
		}
		return nil
	}
	if err != nil {
		cn.unwritable = true
		f := newFault(WriteFailure, "write", c.opts.Address, err)
		c.emitFaultLocked(f, cn.id)
		return f
	}

	c.stats.LineSent(len(buf))
	c.emitLocked(Event{
		Kind:    KindSent,
		Payload: append([]byte(nil), payload...),
		Length:  len(payload),
		ConnID:  cn.id,
	})
	return nil
}

// ── Emission ─────────────────────────────────────────────────────────

// emitLocked stamps ev and queues it.  Callers hold c.mu, which gives
// every event a single position in the total order.
func (c *Controller) emitLocked(ev Event) {
	ev.Time = c.clk.Now()
	if !c.events.push(ev) {
		c.log.Debug("dropped %s event after close", ev.Kind)
	}
}

func (c *Controller) emitFaultLocked(f *Fault, connID string) {
	c.stats.RecordFault(f.Error())
	if f.Abnormal {
		c.log.Verbose("%s: %v", c.opts.Address, f)
	} else {
		c.log.Debug("%s: %v", c.opts.Address, f)
	}
	c.emitLocked(Event{Kind: KindFault, Fault: f, ConnID: connID})
}
