package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	ncerr "microcli/internal/errors"
)

// ── Line transport ───────────────────────────────────────────────────

// Options tunes a Transport.  The zero value means no deadlines and no
// line-length limit.
type Options struct {
	ReadTimeout   time.Duration // idle limit for a single ReadLine (0 = none)
	WriteTimeout  time.Duration // limit for a single Write (0 = none)
	MaxLineLength int           // max payload bytes per line (0 = unlimited)
	BufferSize    int           // reader/writer buffer size (0 = 4096)
}

const defaultBufferSize = 4096

// Transport wraps a single stream connection and frames it as
// newline-delimited text.  ReadLine must only be called from one
// goroutine and Write must be serialized by the caller; Close may be
// called from anywhere and any number of times.
type Transport struct {
	conn net.Conn
	addr string
	opts Options
	r    *bufio.Reader
	w    *bufio.Writer

	closed    atomic.Bool
	closeOnce sync.Once
}

// Open dials address with d and wraps the resulting connection.
// Failures are returned as *errors.NetworkError with Op "dial".
func Open(ctx context.Context, d Dialer, network, address string, opts Options) (*Transport, error) {
	conn, err := d.Dial(ctx, network, address)
	if err != nil {
		return nil, ncerr.Wrap("dial", address, err)
	}
	return New(conn, address, opts), nil
}

// New wraps an already established connection.
func New(conn net.Conn, addr string, opts Options) *Transport {
	size := opts.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}
	return &Transport{
		conn: conn,
		addr: addr,
		opts: opts,
		r:    bufio.NewReaderSize(conn, size),
		w:    bufio.NewWriterSize(conn, size),
	}
}

// Addr returns the address the transport was opened against.
func (t *Transport) Addr() string { return t.addr }

// LocalAddr returns the local end of the connection.
func (t *Transport) LocalAddr() net.Addr { return t.conn.LocalAddr() }

// ReadLine blocks until a full line is available and returns it with
// the trailing LF and at most one CR before it removed.  Bytes that
// arrive before the peer closes without a final newline are returned as
// a last line; the call after that returns io.EOF.
//
// The returned slice is owned by the caller.
func (t *Transport) ReadLine() ([]byte, error) {
	if t.opts.ReadTimeout > 0 {
		_ = t.conn.SetReadDeadline(time.Now().Add(t.opts.ReadTimeout))
	}

	var line []byte
	for {
		frag, err := t.r.ReadSlice('\n')
		switch {
		case err == nil:
			line = append(line, frag...)
			return t.finish(line)

		case t.closed.Load():
			return nil, ncerr.Wrap("read", t.addr, net.ErrClosed)

		case err == bufio.ErrBufferFull:
			line = append(line, frag...)
			if t.opts.MaxLineLength > 0 && len(line) > t.opts.MaxLineLength+2 {
				return nil, ncerr.Wrap("read", t.addr, ncerr.ErrLineTooLong)
			}

		case err == io.EOF:
			line = append(line, frag...)
			if len(line) == 0 {
				return nil, io.EOF
			}
			return t.finish(line)

		case ncerr.IsTimeout(err):
			return nil, ncerr.Wrap("read", t.addr,
				fmt.Errorf("%w: idle for %v", ncerr.ErrTimeout, t.opts.ReadTimeout))

		default:
			return nil, ncerr.Wrap("read", t.addr, err)
		}
	}
}

// finish strips the terminator and enforces the length limit.
func (t *Transport) finish(line []byte) ([]byte, error) {
	line = trimEOL(line)
	if t.opts.MaxLineLength > 0 && len(line) > t.opts.MaxLineLength {
		return nil, ncerr.Wrap("read", t.addr, ncerr.ErrLineTooLong)
	}
	return line, nil
}

func trimEOL(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	if n := len(b); n > 0 && b[n-1] == '\r' {
		b = b[:n-1]
	}
	return b
}

// Write sends p and flushes it to the connection before returning.
func (t *Transport) Write(p []byte) error {
	if t.opts.WriteTimeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.opts.WriteTimeout))
	}
	if _, err := t.w.Write(p); err != nil {
		return ncerr.Wrap("write", t.addr, err)
	}
	if err := t.w.Flush(); err != nil {
		return ncerr.Wrap("write", t.addr, err)
	}
	return nil
}

// halfCloser is implemented by *net.TCPConn.
type halfCloser interface {
	CloseRead() error
	CloseWrite() error
}

// Close shuts down both directions of the stream and releases the
// connection.  A ReadLine in progress on another goroutine is woken by
// an immediate read deadline first and by the socket teardown second;
// either way it reports net.ErrClosed.  Only the first call does any
// work; the cleanup errors it collects are returned once and later
// calls return nil.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		_ = t.conn.SetReadDeadline(time.Now())
		if hc, ok := t.conn.(halfCloser); ok {
			err = multierr.Append(err, ignoreClosed(hc.CloseRead()))
			err = multierr.Append(err, ignoreClosed(hc.CloseWrite()))
		}
		err = multierr.Append(err, ignoreClosed(t.conn.Close()))
	})
	return err
}

func ignoreClosed(err error) error {
	if err == nil || ncerr.IsClosed(err) {
		return nil
	}
	return err
}
