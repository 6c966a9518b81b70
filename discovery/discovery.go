// Package discovery enumerates candidate serial devices, performs the
// reset/boot-token handshake, and populates a fresh session.Session
// (spec.md §4.5). Port enumeration is abstracted behind PortLister so
// tests can inject a scripted provider (spec.md §9 soft spot: "abstract
// the port enumeration behind a provider interface").
package discovery

import (
	"fmt"
	"regexp"
	"time"

	"go.bug.st/serial/enumerator"

	"printerlink/config"
	"printerlink/link"
	"printerlink/printer"
	"printerlink/profile"
	"printerlink/protoerr"
	"printerlink/session"
	"printerlink/transport"
)

// PortLister returns the device paths of candidate serial ports. The
// default implementation wraps go.bug.st/serial/enumerator.
type PortLister interface {
	List() ([]string, error)
}

type serialEnumeratorLister struct{}

func (serialEnumeratorLister) List() ([]string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("discovery: list serial ports: %w", err)
	}
	names := make([]string, 0, len(ports))
	for _, p := range ports {
		names = append(names, p.Name)
	}
	return names, nil
}

// DefaultLister is go.bug.st/serial/enumerator-backed; tests can
// replace the lister passed to Find with a scripted PortLister.
var DefaultLister PortLister = serialEnumeratorLister{}

// portFilter further excludes candidates beyond the profile's
// blacklist regex, analogous to the teacher's
// adapter.RegisterAdapter/AdapterFactory registry shape, repurposed
// here for exclusion rules instead of VID/PID factories.
type portFilter func(name string) bool

var registeredFilters []portFilter

// RegisterPortFilter adds an exclusion rule: candidates for which
// reject returns true are skipped by Find, in addition to the
// profile's Blacklist pattern. Intended for platform-specific
// exclusions (e.g. a known debug-console alias) layered on top of the
// default blacklist.
func RegisterPortFilter(reject func(name string) bool) {
	registeredFilters = append(registeredFilters, reject)
}

// Opener opens a named serial port. Tests can pass a fake opener to
// exercise Find without real hardware.
type Opener func(name string, baud int, timeout time.Duration) (*transport.Port, error)

func defaultOpener(name string, baud int, timeout time.Duration) (*transport.Port, error) {
	return transport.Open(name, baud, timeout)
}

// Result is everything Find assembles for a live device.
type Result struct {
	Port    *transport.Port
	Link    *link.Link
	Session *session.Session
	Printer *printer.Printer
}

// Close releases the underlying transport.
func (r *Result) Close() error {
	if r.Port == nil {
		return nil
	}
	return r.Port.Close()
}

// Options customizes Find for testing; zero value uses real hardware.
type Options struct {
	Lister PortLister
	Open   Opener
	Debug  link.DebugSink
}

// Find enumerates candidates, tries each in order, and returns the
// first that completes the boot handshake (spec.md §4.5).
// prof.NamePattern, if non-empty, additionally requires the device's
// reported Global name to match.
func Find(prof profile.Profile, opts Options) (*Result, error) {
	if opts.Lister == nil {
		opts.Lister = DefaultLister
	}
	if opts.Open == nil {
		opts.Open = defaultOpener
	}

	blacklist, err := regexp.Compile(prof.Blacklist)
	if err != nil {
		return nil, fmt.Errorf("discovery: invalid blacklist pattern %q: %w", prof.Blacklist, err)
	}
	var namePattern *regexp.Regexp
	if prof.NamePattern != "" {
		namePattern, err = regexp.Compile(prof.NamePattern)
		if err != nil {
			return nil, fmt.Errorf("discovery: invalid name pattern %q: %w", prof.NamePattern, err)
		}
	}

	candidates, err := opts.Lister.List()
	if err != nil {
		return nil, err
	}

	for _, name := range candidates {
		if blacklist.MatchString(name) {
			continue
		}
		excluded := false
		for _, f := range registeredFilters {
			if f(name) {
				excluded = true
				break
			}
		}
		if excluded {
			continue
		}

		result, err := tryCandidate(name, prof, opts, namePattern)
		if err != nil {
			continue // try next candidate
		}
		return result, nil
	}

	return nil, fmt.Errorf("discovery: %w", protoerr.Discovery)
}

// tryCandidate performs spec.md §4.5 steps 1-9 on a single candidate.
func tryCandidate(name string, prof profile.Profile, opts Options, namePattern *regexp.Regexp) (res *Result, err error) {
	port, err := opts.Open(name, prof.Baud, prof.ProbeTimeout)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			port.Close()
		}
	}()

	if err := port.ResetDevice(prof.ResetSettle); err != nil {
		return nil, err
	}

	if err := port.SetReadTimeout(prof.BootTimeout); err != nil {
		return nil, err
	}

	var debugText []byte
	if err := waitForInit(port, &debugText); err != nil {
		return nil, err
	}

	if err := port.SetReadTimeout(prof.ShortTimeout); err != nil {
		return nil, err
	}

	l := link.New(port, link.Options{
		ShortTimeout: prof.ShortTimeout,
		MaxRetries:   prof.MaxRetries,
		Debug:        opts.Debug,
	})
	sess := session.New(l)

	p := printer.New(sess)
	if err := handshake(sess, p); err != nil {
		return nil, err
	}

	if namePattern != nil && !namePattern.Match(sess.Name) {
		return nil, fmt.Errorf("discovery: device name %q does not match pattern", sess.Name)
	}

	return &Result{Port: port, Link: l, Session: sess, Printer: p}, nil
}

const tokINIT = 0x95
const tokDEBUG = 0xc7

// waitForInit reads bytes (draining DEBUG text into *debugText) until
// the boot token INIT arrives (spec.md §4.5 steps 3-5).
func waitForInit(port *transport.Port, debugText *[]byte) error {
	for {
		b, ok, err := port.ReadByte()
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("discovery: timed out waiting for boot token")
		}
		if b == tokDEBUG {
			for {
				db, ok, err := port.ReadByte()
				if err != nil {
					return err
				}
				if !ok || db == 0 {
					break
				}
				*debugText = append(*debugText, db)
			}
			continue
		}
		if b == tokINIT {
			return nil
		}
		return fmt.Errorf("discovery: unexpected byte 0x%02x before boot token", b)
	}
}

// handshake performs BEGIN, capability READ, and the initial LOAD
// sweep over every channel (spec.md §4.5 steps 7-9).
func handshake(sess *session.Session, p *printer.Printer) error {
	l := sess.Link
	l.ResetFlipFlops()

	reply, err := sess.ExpectReply([]byte{session.CmdBegin, 0, 0, 0, 0}, session.RplStart)
	if err != nil {
		return fmt.Errorf("discovery: BEGIN handshake: %w", err)
	}
	_ = reply // START's f32 payload is always 0.0; nothing to extract

	capData, err := p.Read(0)
	if err != nil {
		return fmt.Errorf("discovery: capability read: %w", err)
	}
	if len(capData) != 4 {
		return fmt.Errorf("discovery: capability record has %d bytes, want 4", len(capData))
	}
	sess.Capability = session.Capability{
		NameLen:      capData[0],
		MaxAxes:      capData[1],
		MaxExtruders: capData[2],
		MaxTemps:     capData[3],
	}
	sess.Axes = make([]config.Axis, 0, sess.MaxAxes)
	sess.Extruders = make([]config.Extruder, 0, sess.MaxExtruders)
	sess.Temps = make([]config.Temp, 0, sess.MaxTemps)

	if err := p.LoadVariables(); err != nil {
		return fmt.Errorf("discovery: load globals: %w", err)
	}

	total := 2 + int(sess.MaxAxes) + int(sess.MaxExtruders) + int(sess.MaxTemps)
	for ch := 2; ch < total; ch++ {
		if err := p.Load(uint8(ch)); err != nil {
			return fmt.Errorf("discovery: load channel %d: %w", ch, err)
		}
	}
	return nil
}
