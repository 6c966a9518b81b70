package printer

import (
	"bytes"
	"math"
	"testing"
	"time"

	"printerlink/frame"
	"printerlink/link"
	"printerlink/session"
	"printerlink/transport"
)

// Control token values from spec.md §4.2; printer only needs ACK/INIT
// to script a fake peer and has no reason to import package link's
// unexported token table for it.
const (
	tokACK  = 0x80
	tokINIT = 0x95
)

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

func newTestPrinter(in []byte) (*Printer, *scriptedConn) {
	conn := &scriptedConn{in: in}
	port := transport.New(conn, "test")
	l := link.New(port, link.Options{ShortTimeout: time.Millisecond, MaxRetries: 3})
	sess := session.New(l)
	sess.NumAxes = 3
	sess.NumExtruders = 1
	return New(sess), conn
}

func f32At(data []byte, i int) float32 {
	return math.Float32frombits(
		uint32(data[i]) | uint32(data[i+1])<<8 | uint32(data[i+2])<<16 | uint32(data[i+3])<<24)
}

func TestGotoBitmapEncoding(t *testing.T) {
	p, conn := newTestPrinter([]byte{tokACK})

	speed := float32(500)
	e := float32(1.5)
	targets := GotoTargets{
		Axes:  map[uint8]float32{0: 10, 2: -20},
		F0:    &speed,
		E:     &e,
		Which: 0,
	}
	if err := p.Goto(targets, false); err != nil {
		t.Fatalf("Goto: %v", err)
	}

	payload, err := frame.Decode(conn.out)
	if err != nil {
		t.Fatalf("decode sent frame: %v", err)
	}
	if payload[0] != session.CmdGoto {
		t.Fatalf("command byte = 0x%02x, want CmdGoto", payload[0])
	}

	// numBits = 2 (speed) + 3 axes + 1 extruder = 6 -> ceil(6/8)+1 = 2 bitmap bytes.
	bitmap := payload[1:3]
	args := payload[3:]

	wantBits := byte(1<<0 | 1<<1 | 1<<2 | 1<<4 | 1<<5)
	if bitmap[0] != wantBits {
		t.Fatalf("bitmap[0] = %08b, want %08b", bitmap[0], wantBits)
	}
	if bitmap[1] != 0 {
		t.Fatalf("bitmap[1] = %08b, want 0", bitmap[1])
	}

	if got := f32At(args, 0); got != speed {
		t.Errorf("f0 = %v, want %v", got, speed)
	}
	if got := f32At(args, 4); got != speed {
		t.Errorf("f1 = %v, want %v (defaults to f0)", got, speed)
	}
	if got := f32At(args, 8); got != 10 {
		t.Errorf("axis 0 = %v, want 10", got)
	}
	if got := f32At(args, 12); got != -20 {
		t.Errorf("axis 2 = %v, want -20", got)
	}
	if got := f32At(args, 16); got != e {
		t.Errorf("extruder = %v, want %v", got, e)
	}
}

func TestGotoDefaultSpeedIsInfinity(t *testing.T) {
	p, conn := newTestPrinter([]byte{tokACK})

	if err := p.Goto(GotoTargets{}, false); err != nil {
		t.Fatalf("Goto: %v", err)
	}
	payload, err := frame.Decode(conn.out)
	if err != nil {
		t.Fatalf("decode sent frame: %v", err)
	}
	args := payload[3:]
	if f0 := f32At(args, 0); !math.IsInf(float64(f0), 1) {
		t.Errorf("f0 = %v, want +Inf", f0)
	}
}

func TestGotoCBArmsMoveWaitAndUsesCBCommand(t *testing.T) {
	p, conn := newTestPrinter([]byte{tokACK})

	if err := p.Goto(GotoTargets{}, true); err != nil {
		t.Fatalf("Goto: %v", err)
	}
	if p.Sess.MoveWait != 1 {
		t.Errorf("MoveWait = %d, want 1 after a callback-armed goto", p.Sess.MoveWait)
	}
	payload, err := frame.Decode(conn.out)
	if err != nil {
		t.Fatalf("decode sent frame: %v", err)
	}
	if payload[0] != session.CmdGotoCB {
		t.Errorf("command byte = 0x%02x, want CmdGotoCB", payload[0])
	}
}

func TestPlayUploadsChunksWithInitHandshake(t *testing.T) {
	// 60-byte initial chunk + one 30-byte chunk, each acked with INIT.
	in := []byte{tokACK, tokINIT, tokINIT}
	p, conn := newTestPrinter(in)

	data := bytes.Repeat([]byte{0xaa}, 90)
	if err := p.Play(data); err != nil {
		t.Fatalf("Play: %v", err)
	}

	// The framed PLAY command precedes the raw 60+30 byte upload; just
	// confirm the raw payload bytes landed on the wire after it,
	// untouched by framing (spec.md §4.4's intentional framing bypass).
	if !bytes.Contains(conn.out, data) {
		t.Fatalf("wrote %d bytes, raw upload payload not found verbatim on the wire", len(conn.out))
	}
}

func TestGetPos(t *testing.T) {
	reply := make([]byte, 1+4)
	reply[0] = session.RplPos
	reply[1], reply[2], reply[3], reply[4] = 0xd8, 0xff, 0xff, 0xff // -40 little-endian

	framedReply := frame.Encode(reply)
	in := append([]byte{tokACK}, framedReply...)
	p, _ := newTestPrinter(in)

	pos, err := p.GetPos(2)
	if err != nil {
		t.Fatalf("GetPos: %v", err)
	}
	if pos != -40 {
		t.Errorf("GetPos = %d, want -40", pos)
	}
}
