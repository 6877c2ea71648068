package link

import (
	"io"

	ncerr "microcli/internal/errors"
)

// readLoop drains cn until the stream ends or the connection is taken
// away.  It only ever reads from cn.tr; closing belongs to release.
func (c *Controller) readLoop(cn *conn) {
	defer close(cn.done)

	for {
		line, err := cn.tr.ReadLine()
		if err != nil {
			c.endOfRead(cn, err)
			return
		}
		if !c.received(cn, line) {
			return
		}
	}
}

// received emits one line.  It reports false once cn is stale.
func (c *Controller) received(cn *conn, line []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cur != cn || c.state != Connected {
		return false
	}
	c.stats.LineReceived(len(line))
	c.log.Debug("conn %s: << %q", cn.id, line)
	c.emitLocked(Event{
		Kind:    KindReceived,
		Payload: line,
		Length:  len(line),
		ConnID:  cn.id,
	})
	return true
}

// endOfRead reports the reader's termination exactly once, and only
// while cn is still the live connection.  A read failing because Stop
// closed the socket is never reported.
func (c *Controller) endOfRead(cn *conn, err error) {
	reason := ReadFailure
	if ncerr.Is(err, io.EOF) {
		reason = EndOfStream
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cur != cn || c.state != Connected {
		c.log.Debug("conn %s: reader exit after detach: %v", cn.id, err)
		return
	}
	c.state = Faulted
	c.emitFaultLocked(newFault(reason, "read", c.opts.Address, err), cn.id)
}
