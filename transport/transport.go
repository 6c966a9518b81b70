// Package transport owns a single serial endpoint exclusively and
// exposes byte read/write with a configurable read timeout (spec.md
// §4 component 1). It never interprets the bytes it moves.
package transport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// Conn is the slice of go.bug.st/serial.Port that package transport
// depends on. Narrowing to an interface here (rather than holding a
// serial.Port directly) lets tests in other packages (link, session,
// printer, discovery) drive a Port against a scripted fake instead of
// real hardware.
type Conn interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Close() error
	SetReadTimeout(t time.Duration) error
	SetDTR(dtr bool) error
	ResetInputBuffer() error
}

// Port is the exclusive handle to a configured serial endpoint.
type Port struct {
	port Conn
	name string
}

// New wraps an already-configured Conn. Exported so tests can build a
// Port around a scripted fake; real callers normally use Open.
func New(conn Conn, name string) *Port {
	return &Port{port: conn, name: name}
}

// Open opens name at 8N1, baud, with the given initial read timeout.
func Open(name string, baud int, timeout time.Duration) (*Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", name, err)
	}
	if err := p.SetReadTimeout(timeout); err != nil {
		p.Close()
		return nil, fmt.Errorf("transport: set read timeout on %s: %w", name, err)
	}
	return New(p, name), nil
}

// Name returns the underlying device path, for diagnostics.
func (p *Port) Name() string { return p.name }

// SetReadTimeout changes the read deadline applied to future Read calls.
func (p *Port) SetReadTimeout(d time.Duration) error {
	if err := p.port.SetReadTimeout(d); err != nil {
		return fmt.Errorf("transport: set read timeout on %s: %w", p.name, err)
	}
	return nil
}

// ReadByte reads exactly one byte, or returns (0, false, nil) on a
// read-timeout with zero bytes returned (the link layer's empty-read
// case). Any other error is returned as-is.
func (p *Port) ReadByte() (b byte, ok bool, err error) {
	buf := make([]byte, 1)
	n, err := p.port.Read(buf)
	if err != nil {
		return 0, false, fmt.Errorf("transport: read from %s: %w", p.name, err)
	}
	if n == 0 {
		return 0, false, nil
	}
	return buf[0], true, nil
}

// Write writes the full buffer, retrying short writes.
func (p *Port) Write(data []byte) error {
	written := 0
	for written < len(data) {
		n, err := p.port.Write(data[written:])
		if err != nil {
			return fmt.Errorf("transport: write to %s: %w", p.name, err)
		}
		if n == 0 {
			return fmt.Errorf("transport: short write to %s", p.name)
		}
		written += n
	}
	return nil
}

// ResetDevice toggles DTR low-then-high with the given settle delay
// between edges and flushes the input buffer, per spec.md §6 "Reset
// sequence": DTR asserted low, settle, DTR high, settle, input flushed.
func (p *Port) ResetDevice(settle time.Duration) error {
	if err := p.port.SetDTR(false); err != nil {
		return fmt.Errorf("transport: assert DTR low on %s: %w", p.name, err)
	}
	time.Sleep(settle)
	if err := p.port.SetDTR(true); err != nil {
		return fmt.Errorf("transport: assert DTR high on %s: %w", p.name, err)
	}
	time.Sleep(settle)
	if err := p.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("transport: flush input on %s: %w", p.name, err)
	}
	return nil
}

// Close releases the serial endpoint. Safe to call once, on every exit
// path (spec.md §5 "scoped acquisition with guaranteed release").
func (p *Port) Close() error {
	if p.port == nil {
		return nil
	}
	err := p.port.Close()
	p.port = nil
	if err != nil {
		return fmt.Errorf("transport: close %s: %w", p.name, err)
	}
	return nil
}
