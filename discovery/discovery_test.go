package discovery

import (
	"errors"
	"testing"
	"time"

	"printerlink/frame"
	"printerlink/profile"
	"printerlink/protoerr"
	"printerlink/transport"
)

const (
	tokINIT = 0x95
	tokACK  = 0x80
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

// bootSequence builds the byte stream a zero-axis, zero-extruder,
// zero-temp device would emit for the boot token plus the full
// handshake of spec.md §4.5 steps 3-9 (no channels beyond globals, so
// the LOAD sweep is empty).
func bootSequence() []byte {
	var in []byte
	in = append(in, tokINIT)
	in = append(in, tokACK) // BEGIN send acked
	in = append(in, frame.Encode([]byte{0x11})...) // RplStart, ff_in starts false

	in = append(in, tokACK) // READ(0) send acked
	capReply := []byte{0x14 | 0x80, 0, 0, 0, 0} // RplData|bit7, namelen=maxaxes=maxext=maxtemps=0
	in = append(in, frame.Encode(capReply)...)

	in = append(in, tokACK) // LOAD(1) send acked
	in = append(in, tokACK) // READ(1) (inside refresh) send acked
	globalReply := append([]byte{0x14}, make([]byte, 17)...) // RplData, ff_in back to false
	in = append(in, frame.Encode(globalReply)...)
	return in
}

func TestFindPicksFirstNonBlacklistedCandidate(t *testing.T) {
	conn := &scriptedConn{in: bootSequence()}

	lister := listerFunc(func() ([]string, error) {
		return []string{"/dev/ttyS0", "/dev/ttyFake0"}, nil
	})
	opened := []string{}
	opener := func(name string, baud int, timeout time.Duration) (*transport.Port, error) {
		opened = append(opened, name)
		return transport.New(conn, name), nil
	}

	prof := profile.Profile{
		Baud:         115200,
		MaxRetries:   10,
		ShortTimeout: time.Millisecond,
		BootTimeout:  time.Millisecond,
		ProbeTimeout: time.Millisecond,
		ResetSettle:  time.Millisecond,
		Blacklist:    "ttyS[0-9]+$",
	}

	res, err := Find(prof, Options{Lister: lister, Open: opener})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	defer res.Close()

	if len(opened) != 1 || opened[0] != "/dev/ttyFake0" {
		t.Fatalf("opened candidates = %v, want exactly [/dev/ttyFake0] (ttyS0 should be blacklisted)", opened)
	}
	if res.Session.MaxAxes != 0 || res.Session.MaxExtruders != 0 || res.Session.MaxTemps != 0 {
		t.Errorf("capability = %+v, want all zero", res.Session.Capability)
	}
}

func TestFindSkipsCandidateThatNeverBoots(t *testing.T) {
	deadConn := &scriptedConn{} // no boot token ever arrives
	liveConn := &scriptedConn{in: bootSequence()}

	lister := listerFunc(func() ([]string, error) {
		return []string{"/dev/ttyDead", "/dev/ttyLive"}, nil
	})
	opener := func(name string, baud int, timeout time.Duration) (*transport.Port, error) {
		if name == "/dev/ttyDead" {
			return transport.New(deadConn, name), nil
		}
		return transport.New(liveConn, name), nil
	}

	prof := profile.Profile{
		Baud:         115200,
		MaxRetries:   10,
		ShortTimeout: time.Millisecond,
		BootTimeout:  time.Millisecond,
		ProbeTimeout: time.Millisecond,
		ResetSettle:  time.Millisecond,
		Blacklist:    "$^", // matches nothing: no candidate name is excluded
	}

	res, err := Find(prof, Options{Lister: lister, Open: opener})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	defer res.Close()
}

func TestFindReturnsDiscoveryErrorWhenNoCandidateBoots(t *testing.T) {
	deadConn := &scriptedConn{} // no boot token ever arrives

	lister := listerFunc(func() ([]string, error) {
		return []string{"/dev/ttyDead"}, nil
	})
	opener := func(name string, baud int, timeout time.Duration) (*transport.Port, error) {
		return transport.New(deadConn, name), nil
	}

	prof := profile.Profile{
		Baud:         115200,
		MaxRetries:   10,
		ShortTimeout: time.Millisecond,
		BootTimeout:  time.Millisecond,
		ProbeTimeout: time.Millisecond,
		ResetSettle:  time.Millisecond,
		Blacklist:    "$^",
	}

	_, err := Find(prof, Options{Lister: lister, Open: opener})
	if !errors.Is(err, protoerr.Discovery) {
		t.Fatalf("Find error = %v, want wrapping protoerr.Discovery", err)
	}
}

type listerFunc func() ([]string, error)

func (f listerFunc) List() ([]string, error) { return f() }
