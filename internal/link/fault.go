package link

import (
	"fmt"

	ncerr "microcli/internal/errors"
)

// Reason classifies a Fault.
type Reason int

const (
	// ConnectFailure: the connection could not be established.
	ConnectFailure Reason = iota
	// ReadFailure: the read side failed with an I/O error.
	ReadFailure
	// EndOfStream: the peer closed the stream cleanly.
	EndOfStream
	// WriteFailure: a write failed, or the connection already lost its
	// write side.
	WriteFailure
	// InvalidState: Send was called while not connected.
	InvalidState
)

var reasonNames = [...]string{
	ConnectFailure: "connect failure",
	ReadFailure:    "read failure",
	EndOfStream:    "end of stream",
	WriteFailure:   "write failure",
	InvalidState:   "invalid state",
}

func (r Reason) String() string {
	if r >= 0 && int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

// Fault describes a failed connect, read or write.  It is both the
// payload of a KindFault event and the error returned by the operation
// that raised it, so callers can use errors.As on either path.
type Fault struct {
	Reason Reason
	Op     string // "dial", "read", "write", "send"
	Addr   string
	Err    error

	// Abnormal is false only for EndOfStream: the peer hung up on purpose.
	Abnormal bool

	// Retryable hints that a fresh Start may succeed.  Nothing in this
	// package acts on it.
	Retryable bool
}

func newFault(reason Reason, op, addr string, err error) *Fault {
	return &Fault{
		Reason:    reason,
		Op:        op,
		Addr:      addr,
		Err:       err,
		Abnormal:  reason != EndOfStream,
		Retryable: ncerr.IsRetryable(err),
	}
}

func (f *Fault) Error() string {
	if f.Err == nil {
		return f.Reason.String()
	}
	return fmt.Sprintf("%s: %v", f.Reason, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }
