package link

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"printerlink/frame"
	"printerlink/protoerr"
	"printerlink/transport"
)

// scriptedConn is a transport.Conn whose Read drains a canned byte
// queue (returning (0, nil) once exhausted, matching go.bug.st/serial's
// reported behavior on a read timeout) and whose Write records every
// byte sent.
type scriptedConn struct {
	in  []byte
	out []byte
}

func (c *scriptedConn) Read(p []byte) (int, error) {
	if len(c.in) == 0 {
		return 0, nil
	}
	n := copy(p, c.in)
	c.in = c.in[n:]
	return n, nil
}

func (c *scriptedConn) Write(p []byte) (int, error) {
	c.out = append(c.out, p...)
	return len(p), nil
}

func (c *scriptedConn) Close() error                      { return nil }
func (c *scriptedConn) SetReadTimeout(time.Duration) error { return nil }
func (c *scriptedConn) SetDTR(bool) error                  { return nil }
func (c *scriptedConn) ResetInputBuffer() error            { return nil }

func newTestLink(in []byte) (*Link, *scriptedConn) {
	conn := &scriptedConn{in: in}
	port := transport.New(conn, "test")
	return New(port, Options{ShortTimeout: time.Millisecond, MaxRetries: 3}), conn
}

func TestSendSingleFrameACKed(t *testing.T) {
	l, conn := newTestLink([]byte{tokACK})

	waitAsserted, err := l.Send([]byte{0x0f, 0x2a}, nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if waitAsserted {
		t.Errorf("waitAsserted = true, want false (peer answered ACK, not ACKWAIT)")
	}
	wantFrame := frame.Encode([]byte{0x0f, 0x2a})
	if !bytes.Equal(conn.out, wantFrame) {
		t.Errorf("wrote % x, want % x", conn.out, wantFrame)
	}
	if !l.ffOut {
		t.Errorf("ffOut did not toggle after a successful send")
	}
}

func TestSendACKWaitAsserted(t *testing.T) {
	l, _ := newTestLink([]byte{tokACKWAIT})

	waitAsserted, err := l.Send([]byte{0x01}, nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !waitAsserted {
		t.Errorf("waitAsserted = false, want true after ACKWAIT")
	}
}

func TestSendRetriesOnNack(t *testing.T) {
	l, conn := newTestLink([]byte{tokNACK, tokACK})

	if _, err := l.Send([]byte{0x01}, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	wantFrame := frame.Encode([]byte{0x01})
	wantOut := append(append([]byte{}, wantFrame...), wantFrame...)
	if !bytes.Equal(conn.out, wantOut) {
		t.Errorf("frame not retransmitted after NACK: wrote % x, want % x", conn.out, wantOut)
	}
}

func TestSendFlipFlopTogglesOnceDespiteRetries(t *testing.T) {
	l, _ := newTestLink([]byte{tokNACK, tokNACK, tokACK})

	if _, err := l.Send([]byte{0x01}, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !l.ffOut {
		t.Errorf("ffOut should have toggled exactly once, ending true")
	}
}

func TestSendExceedsRetryCap(t *testing.T) {
	in := bytes.Repeat([]byte{tokNACK}, 10)
	conn := &scriptedConn{in: in}
	port := transport.New(conn, "test")
	l := New(port, Options{ShortTimeout: time.Millisecond, MaxRetries: 2})

	_, err := l.Send([]byte{0x01}, nil)
	if !errors.Is(err, protoerr.Unacked) {
		t.Fatalf("err = %v, want wrapping protoerr.Unacked", err)
	}
}

func TestSendAppliesInterleavedAsyncFrame(t *testing.T) {
	asyncPayload := []byte{0x18, 0x07}
	framedAsync := frame.Encode(asyncPayload)
	in := append(append([]byte{}, framedAsync...), tokACK)
	conn := &scriptedConn{in: in}
	port := transport.New(conn, "test")
	l := New(port, Options{ShortTimeout: time.Millisecond, MaxRetries: 3})

	var got []byte
	if _, err := l.Send([]byte{0x01}, func(p []byte) error {
		got = p
		return nil
	}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !bytes.Equal(got, asyncPayload) {
		t.Errorf("asyncHandler payload = % x, want % x", got, asyncPayload)
	}
}

func TestReceiveReturnsSyncFrame(t *testing.T) {
	payload := []byte{0x11, 0x00, 0x00, 0x00, 0x00}
	framed := frame.Encode(payload)
	l, conn := newTestLink(framed)

	got, err := l.Receive(false, func([]byte) bool { return false }, nil)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Receive = % x, want % x", got, payload)
	}
	if len(conn.out) == 0 || conn.out[len(conn.out)-1] != tokACK {
		t.Errorf("did not ACK the received frame: wrote % x", conn.out)
	}
}

func TestReceiveDropsDuplicateRetransmission(t *testing.T) {
	payloadA := []byte{0x11, 0x00, 0x00, 0x00, 0x00}
	framedA := frame.Encode(payloadA)
	dupA := frame.Encode(payloadA) // same sequence bit: a lost-ACK retransmission

	payloadB := []byte{0x91, 0x01, 0x00, 0x00, 0x00} // bit7 set: ff_in has toggled to true
	framedB := frame.Encode(payloadB)

	in := append(append(append([]byte{}, framedA...), dupA...), framedB...)
	l, _ := newTestLink(in)

	got1, err := l.Receive(false, func([]byte) bool { return false }, nil)
	if err != nil {
		t.Fatalf("first Receive: %v", err)
	}
	if !bytes.Equal(got1, payloadA) {
		t.Errorf("first Receive = % x, want % x", got1, payloadA)
	}

	got2, err := l.Receive(false, func([]byte) bool { return false }, nil)
	if err != nil {
		t.Fatalf("second Receive: %v", err)
	}
	wantB := append([]byte(nil), payloadB...)
	wantB[0] &^= 0x80
	if !bytes.Equal(got2, wantB) {
		t.Errorf("second Receive = % x, want % x (duplicate should have been skipped)", got2, wantB)
	}
}
