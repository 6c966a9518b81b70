// Package protoerr defines the closed set of error kinds the link and
// session layers can raise, so callers can switch on them with errors.Is.
package protoerr

import "errors"

// Sentinel kinds. Wrap these with fmt.Errorf("...: %w", kind) to add
// context; errors.Is still matches the sentinel.
var (
	// Transport means the underlying serial I/O failed irrecoverably.
	Transport = errors.New("transport error")

	// PeerReset means an unexpected INIT arrived mid-session; the
	// session is poisoned and must not be reused.
	PeerReset = errors.New("peer reset unexpectedly")

	// Protocol means STALL, RESET or ACKRESET arrived where it never
	// should; fatal for the session.
	Protocol = errors.New("protocol violation")

	// Unacked means the retry budget was exhausted on a single frame.
	Unacked = errors.New("frame unacked after retry budget exhausted")

	// Unexpected means a sync reply's command byte did not match what
	// the caller asked for.
	Unexpected = errors.New("unexpected reply")

	// Discovery means no candidate serial port produced a valid INIT.
	Discovery = errors.New("no printer found")
)

// DecodeErrorKind enumerates why frame validation failed. Decode
// errors never escape the link layer: they are consumed by a NACK and
// retry (spec.md §7 "decode errors are invisible").
type DecodeErrorKind int

const (
	BadLength DecodeErrorKind = iota
	BadSequenceBits
	BadParity
)

// DecodeError reports why frame validation failed. Returned by package
// frame, consumed entirely inside package link.
type DecodeError struct {
	Kind DecodeErrorKind
}

func (e *DecodeError) Error() string {
	switch e.Kind {
	case BadLength:
		return "frame: bad length"
	case BadSequenceBits:
		return "frame: bad check-byte sequence bits"
	case BadParity:
		return "frame: bad parity"
	default:
		return "frame: decode error"
	}
}

func NewDecodeError(kind DecodeErrorKind) error {
	return &DecodeError{Kind: kind}
}
