// Package link implements the reliable, flip-flop-sequenced delivery
// layer on top of package frame: single-byte control tokens, sender
// and receiver sequence bits, retransmission with a configurable retry
// cap, and the DEBUG side channel (spec.md §4.2-§4.3).
package link

import (
	"fmt"
	"time"

	"printerlink/frame"
	"printerlink/protoerr"
	"printerlink/transport"
)

// Single-byte control tokens. Closed set (spec.md §4.2).
const (
	tokACK      byte = 0x80
	tokNACK     byte = 0xe1
	tokACKWAIT  byte = 0xd2
	tokSTALL    byte = 0xb3
	tokRESET    byte = 0xf4
	tokINIT     byte = 0x95
	tokACKRESET byte = 0xa6
	tokDEBUG    byte = 0xc7
)

func isControlToken(b byte) bool {
	switch b {
	case tokACK, tokNACK, tokACKWAIT, tokSTALL, tokRESET, tokINIT, tokACKRESET, tokDEBUG:
		return true
	default:
		return false
	}
}

// DebugSink receives text collected from the DEBUG side channel. It
// never affects protocol state (spec.md §4.3).
type DebugSink func(text string)

// Options configures a Link's timeouts and retry policy. Zero values
// are replaced with the defaults below by New.
type Options struct {
	// ShortTimeout is used while waiting for an ACK/NACK/etc after a
	// frame write, and while assembling an inbound frame.
	ShortTimeout time.Duration
	// MaxRetries bounds how many times a single logical frame is
	// retransmitted before link.Send returns protoerr.Unacked
	// (spec.md §4.2: "configurable cap (default >= 10)").
	MaxRetries int
	// TraceWire, when set, is called for each single control byte the
	// link writes and each byte it reads while awaiting an ACK or
	// assembling a frame. Whole frames written by Send, the first byte
	// read by ReceiveTimeout, and the raw PLAY reads and writes are not
	// traced (not a default feature; analogous to the Python
	// source's show_own_debug global, kept as an explicit knob per
	// spec.md §9's "Session as explicit state machine").
	TraceWire func(direction string, b byte)
	Debug     DebugSink
}

const (
	DefaultShortTimeout = 5 * time.Second
	DefaultMaxRetries   = 10
)

func (o *Options) fillDefaults() {
	if o.ShortTimeout <= 0 {
		o.ShortTimeout = DefaultShortTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.Debug == nil {
		o.Debug = func(string) {}
	}
}

// Link owns the framing/ack state for one serial endpoint: the
// sender and receiver flip-flops (ff_out/ff_in) and the retry policy.
// Not safe for concurrent use (spec.md §5).
type Link struct {
	port *transport.Port
	opts Options

	ffOut bool
	ffIn  bool
}

// New wraps a transport.Port with link-layer framing. ffOut/ffIn start
// at false, as required after a fresh handshake (spec.md §4.5 step 7).
func New(port *transport.Port, opts Options) *Link {
	opts.fillDefaults()
	return &Link{port: port, opts: opts}
}

// ResetFlipFlops clears both sequence bits, e.g. after a fresh BEGIN
// handshake.
func (l *Link) ResetFlipFlops() {
	l.ffOut = false
	l.ffIn = false
}

func (l *Link) trace(dir string, b byte) {
	if l.opts.TraceWire != nil {
		l.opts.TraceWire(dir, b)
	}
}

func (l *Link) writeByte(b byte) error {
	l.trace("out", b)
	return l.port.Write([]byte{b})
}

// readByte reads one byte honoring the link's short timeout; ok=false
// on a timeout with zero bytes.
func (l *Link) readByte() (b byte, ok bool, err error) {
	b, ok, err = l.port.ReadByte()
	if ok {
		l.trace("in", b)
	}
	return b, ok, err
}

// drainDebug reads a NUL-terminated (or timeout-terminated) debug
// string and hands it to the configured sink (spec.md §4.3).
func (l *Link) drainDebug() error {
	var text []byte
	for {
		b, ok, err := l.readByte()
		if err != nil {
			return err
		}
		if !ok || b == 0 {
			break
		}
		text = append(text, b)
	}
	l.opts.Debug(string(text))
	return nil
}

// Send frames payload, sets its flip-flop bit, and runs the send loop
// of spec.md §4.2. asyncHandler is invoked for every async-class frame
// the peer interleaves ahead of our ACK; it must not block. Returns
// (waitAsserted, error): waitAsserted reports whether the peer
// answered ACKWAIT (flow control, spec.md §4.4).
func (l *Link) Send(payload []byte, asyncHandler func(payload []byte) error) (waitAsserted bool, err error) {
	if len(payload) == 0 {
		return false, fmt.Errorf("link: Send: empty payload")
	}
	out := append([]byte(nil), payload...)
	if l.ffOut {
		out[0] |= 0x80
	} else {
		out[0] &^= 0x80
	}
	// The flip-flop toggles exactly once per logical payload, no
	// matter how many wire retries follow (spec.md §4.2 hard invariant).
	l.ffOut = !l.ffOut

	framed := frame.Encode(out)

	for attempt := 0; ; attempt++ {
		if attempt > 0 && attempt > l.opts.MaxRetries {
			return false, fmt.Errorf("link: %w", protoerr.Unacked)
		}
		if err := l.port.Write(framed); err != nil {
			return false, fmt.Errorf("link: %w: %v", protoerr.Transport, err)
		}

		resent, waitSeen, done, err := l.awaitAck(asyncHandler)
		if err != nil {
			return false, err
		}
		if done {
			return waitSeen, nil
		}
		if resent {
			continue
		}
	}
}

// awaitAck reads control bytes after a frame write until ACK/ACKWAIT
// (done=true) or a NACK/timeout (resent=true, caller retransmits).
func (l *Link) awaitAck(asyncHandler func(payload []byte) error) (resent, waitSeen, done bool, err error) {
	for {
		b, ok, err := l.readByte()
		if err != nil {
			return false, false, false, fmt.Errorf("link: %w: %v", protoerr.Transport, err)
		}
		if !ok {
			return true, false, false, nil // timeout: retransmit whole frame
		}
		switch b {
		case tokDEBUG:
			if err := l.drainDebug(); err != nil {
				return false, false, false, err
			}
			continue
		case tokACK:
			return false, false, true, nil
		case tokACKWAIT:
			return false, true, true, nil
		case tokNACK:
			return true, false, false, nil
		case tokSTALL, tokRESET, tokACKRESET:
			return false, false, false, fmt.Errorf("link: %w: got 0x%02x", protoerr.Protocol, b)
		case tokINIT:
			return false, false, false, fmt.Errorf("link: %w", protoerr.PeerReset)
		default:
			if b&0x80 != 0 {
				// Peer tried to start a frame on top of us; force it
				// to restart from frame start.
				if err := l.writeByte(tokNACK); err != nil {
					return false, false, false, fmt.Errorf("link: %w: %v", protoerr.Transport, err)
				}
				continue
			}
			// Low-bit byte: this is the length byte of a frame the
			// peer is sending us concurrently. Receive it as one
			// async frame, then keep waiting for our own ACK.
			payload, err := l.receiveFrame(b)
			if err != nil {
				return false, false, false, err
			}
			if payload != nil && asyncHandler != nil {
				if err := asyncHandler(payload); err != nil {
					return false, false, false, err
				}
			}
			continue
		}
	}
}

// receiveFrame assembles one frame whose length byte has already been
// read as lengthByte, validates it, drives the ACK/NACK/flip-flop
// protocol of spec.md §4.3, and returns the payload of a *new* frame
// (nil if it was a duplicate retransmission that was re-ACKed and
// dropped).
func (l *Link) receiveFrame(lengthByte byte) ([]byte, error) {
	for {
		extra := frame.ExtraBytes(int(lengthByte))
		buf := make([]byte, 0, 1+extra)
		buf = append(buf, lengthByte)

		ok, err := l.readN(&buf, extra)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Timed out mid-frame: NACK and restart framing fresh.
			if err := l.writeByte(tokNACK); err != nil {
				return nil, fmt.Errorf("link: %w: %v", protoerr.Transport, err)
			}
			lb, ok2, err := l.readFrameStart()
			if err != nil {
				return nil, err
			}
			if !ok2 {
				return nil, nil
			}
			lengthByte = lb
			continue
		}

		payload, err := frame.Decode(buf)
		if err != nil {
			if err := l.writeByte(tokNACK); err != nil {
				return nil, fmt.Errorf("link: %w: %v", protoerr.Transport, err)
			}
			lb, ok2, err := l.readFrameStart()
			if err != nil {
				return nil, err
			}
			if !ok2 {
				return nil, nil
			}
			lengthByte = lb
			continue
		}

		newFrame := (payload[0]&0x80 != 0) == l.ffIn
		if err := l.writeByte(tokACK); err != nil {
			return nil, fmt.Errorf("link: %w: %v", protoerr.Transport, err)
		}
		if !newFrame {
			// Peer retransmitted because our prior ACK was lost.
			return nil, nil
		}
		payload[0] &^= 0x80
		l.ffIn = !l.ffIn
		return payload, nil
	}
}

// readN reads n more bytes into *buf, honoring DEBUG interleaving.
// ok=false on a timeout before n bytes were collected.
func (l *Link) readN(buf *[]byte, n int) (ok bool, err error) {
	for i := 0; i < n; i++ {
		b, got, err := l.readByte()
		if err != nil {
			return false, fmt.Errorf("link: %w: %v", protoerr.Transport, err)
		}
		if !got {
			return false, nil
		}
		if b == tokDEBUG {
			if err := l.drainDebug(); err != nil {
				return false, err
			}
			i--
			continue
		}
		*buf = append(*buf, b)
	}
	return true, nil
}

// readFrameStart reads bytes one at a time, skipping DEBUG text, until
// it finds a byte with bit 7 clear (a candidate length byte) or times
// out.
func (l *Link) readFrameStart() (b byte, ok bool, err error) {
	for {
		b, ok, err = l.readByte()
		if err != nil {
			return 0, false, err
		}
		if !ok {
			return 0, false, nil
		}
		if b == tokDEBUG {
			if err := l.drainDebug(); err != nil {
				return 0, false, err
			}
			continue
		}
		if b&0x80 == 0 {
			return b, true, nil
		}
		// Spurious control/garbage byte before a frame start: NACK
		// to force the peer to resend from frame start.
		if err := l.writeByte(tokNACK); err != nil {
			return 0, false, err
		}
	}
}

// Receive waits for and returns the payload of the next frame the
// peer sends, applying the session-layer dispatch in asyncHandler for
// any async-class frames seen first (spec.md §4.4's "pull exactly one
// sync-class payload ... async frames interleaved before it are
// applied and skipped"). If wantAny is true, the first async frame
// observed causes Receive to return (nil, nil) immediately after it is
// applied, rather than continuing to wait for a sync frame (used by
// session.Block).
func (l *Link) Receive(wantAny bool, isAsync func(payload []byte) bool, asyncHandler func(payload []byte) error) ([]byte, error) {
	for {
		lb, ok, err := l.readFrameStart()
		if err != nil {
			return nil, err
		}
		if !ok {
			if err := l.writeByte(tokNACK); err != nil {
				return nil, err
			}
			continue
		}
		payload, err := l.receiveFrame(lb)
		if err != nil {
			return nil, err
		}
		if payload == nil {
			continue // duplicate retransmission, already re-ACKed
		}
		if isAsync != nil && isAsync(payload) {
			if asyncHandler != nil {
				if err := asyncHandler(payload); err != nil {
					return nil, err
				}
			}
			if wantAny {
				return nil, nil
			}
			continue
		}
		return payload, nil
	}
}

// RawWrite bypasses framing entirely and writes bytes straight to the
// transport. Used only by the PLAY bulk upload (spec.md §4.4), which
// puts the firmware into a raw streaming-upload mode on purpose.
func (l *Link) RawWrite(data []byte) error {
	return l.port.Write(data)
}

// RawReadByte bypasses framing and reads one raw byte with the link's
// current timeout. Used only by the PLAY bulk upload's per-chunk INIT
// handshake.
func (l *Link) RawReadByte() (b byte, ok bool, err error) {
	return l.port.ReadByte()
}

// IsInitToken reports whether b is the INIT control token, exposed so
// package printer can recognize PLAY's per-chunk acknowledgment
// without duplicating the token table.
func IsInitToken(b byte) bool { return b == tokINIT }

// ReceiveTimeout waits up to timeout for the first byte of one inbound
// frame and then receives that frame with the short timeout; used by
// session.Block(timeout, probe). After a leading DEBUG string it falls
// back to Receive, which has no deadline. ok=false, err=nil means
// nothing was received: no byte arrived within timeout, the first byte
// was a control token other than DEBUG, or the frame was a duplicate
// retransmission.
func (l *Link) ReceiveTimeout(timeout time.Duration, isAsync func(payload []byte) bool, asyncHandler func(payload []byte) error) (ok bool, err error) {
	prev := l.opts.ShortTimeout
	if err := l.port.SetReadTimeout(timeout); err != nil {
		return false, err
	}
	defer func() {
		l.opts.ShortTimeout = prev
		_ = l.port.SetReadTimeout(prev)
	}()

	b, gotByte, err := l.port.ReadByte()
	if err != nil {
		return false, err
	}
	if !gotByte {
		return false, nil
	}
	if err := l.port.SetReadTimeout(l.opts.ShortTimeout); err != nil {
		return false, err
	}
	if b == tokDEBUG {
		if err := l.drainDebug(); err != nil {
			return false, err
		}
		_, err := l.Receive(true, isAsync, asyncHandler)
		return true, err
	}
	if b&0x80 != 0 {
		// Spurious token while probing; treat as nothing useful seen.
		return false, nil
	}
	payload, err := l.receiveFrame(b)
	if err != nil {
		return false, err
	}
	if payload == nil {
		return false, nil
	}
	if isAsync != nil && isAsync(payload) && asyncHandler != nil {
		if err := asyncHandler(payload); err != nil {
			return false, err
		}
	}
	return true, nil
}
