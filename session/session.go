// Package session implements the request/response correlation and
// asynchronous event dispatch described in spec.md §4.4: the device
// session state (flip-flops live in package link; this package owns
// wait/movewait/tempwait/limits/messages/capability/records) plus the
// reply-code classification table.
package session

import (
	"encoding/binary"
	"fmt"
	"time"

	"printerlink/config"
	"printerlink/link"
	"printerlink/protoerr"
)

// Command codes, spec.md §4.7.
const (
	CmdBegin    byte = 0x00
	CmdGoto     byte = 0x01
	CmdGotoCB   byte = 0x02
	CmdRun      byte = 0x03
	CmdSleep    byte = 0x04
	CmdSetTemp  byte = 0x05
	CmdWaitTemp byte = 0x06
	CmdReadTemp byte = 0x07
	CmdSetPos   byte = 0x08
	CmdGetPos   byte = 0x09
	CmdLoad     byte = 0x0a
	CmdSave     byte = 0x0b
	CmdRead     byte = 0x0c
	CmdWrite    byte = 0x0d
	CmdPause    byte = 0x0e
	CmdPing     byte = 0x0f
	CmdPlay     byte = 0x10
)

// Reply codes, spec.md §4.4.
const (
	RplStart    byte = 0x11
	RplTemp     byte = 0x12
	RplPos      byte = 0x13
	RplData     byte = 0x14
	RplPong     byte = 0x15
	RplMoveCB   byte = 0x16
	RplTempCB   byte = 0x17
	RplContinue byte = 0x18
	RplLimit    byte = 0x19
	RplMessage  byte = 0x1a
)

// Message is one entry of the session's message queue (spec.md §3).
type Message struct {
	Tag  int32
	Text []byte
}

// Capability holds the boot-time limits read from the device (spec.md
// §4.5 step 8).
type Capability struct {
	NameLen      uint8
	MaxAxes      uint8
	MaxExtruders uint8
	MaxTemps     uint8
}

// Session owns the device-session state (spec.md §3). Not safe for
// concurrent use (spec.md §5): wrap at the caller boundary if needed.
type Session struct {
	Link *link.Link

	Wait     bool
	MoveWait int
	TempWait map[int]struct{}
	Limits   map[int]int32
	Messages []Message

	Capability

	NumAxes      uint8
	NumExtruders uint8
	NumTemps     uint8
	Name         []byte
	PrinterType  uint8
	LedPin       uint8
	RoomT        float32
	MotorLimit   uint32
	TempLimit    uint32

	Axes      []config.Axis
	Extruders []config.Extruder
	Temps     []config.Temp

	// CompatTempCBUsesReplyCode preserves the original firmware
	// driver's bug (spec.md §9): TEMPCB removes payload[0] (the reply
	// code itself) from TempWait instead of payload[1] (the channel).
	// Default true to match every firmware built against the original
	// protocol in the field.
	CompatTempCBUsesReplyCode bool

	// MessageSink receives MESSAGE frames instead of being printed
	// unconditionally (spec.md §9 soft spot).
	MessageSink func(tag int32, text []byte)
}

// New creates a session wrapping l. ff_in/ff_out start at false inside
// l (spec.md §4.5 step 7); TempWait/Limits start empty.
func New(l *link.Link) *Session {
	return &Session{
		Link:                      l,
		TempWait:                  make(map[int]struct{}),
		Limits:                    make(map[int]int32),
		CompatTempCBUsesReplyCode: true,
		MessageSink:               func(int32, []byte) {},
	}
}

// IsAsync classifies a payload's first byte per spec.md §4.4's table.
func IsAsync(payload []byte) bool {
	if len(payload) == 0 {
		return false
	}
	switch payload[0] {
	case RplMoveCB, RplTempCB, RplContinue, RplLimit, RplMessage:
		return true
	default:
		return false
	}
}

// applyAsync applies one async-class frame's effect to session state.
func (s *Session) applyAsync(payload []byte) error {
	switch payload[0] {
	case RplMoveCB:
		n := int(payload[1])
		if s.MoveWait < n {
			return fmt.Errorf("session: MOVECB{n=%d} exceeds outstanding movewait=%d", n, s.MoveWait)
		}
		s.MoveWait -= n
	case RplTempCB:
		var channel int
		if s.CompatTempCBUsesReplyCode {
			channel = int(payload[0])
		} else {
			channel = int(payload[1])
		}
		delete(s.TempWait, channel)
	case RplContinue:
		s.Wait = false
	case RplLimit:
		channel := int(payload[1])
		pos := int32(binary.LittleEndian.Uint32(payload[2:6]))
		s.Limits[channel] = pos
	case RplMessage:
		tag := int32(binary.LittleEndian.Uint32(payload[1:5]))
		text := append([]byte(nil), payload[5:]...)
		s.Messages = append(s.Messages, Message{Tag: tag, Text: text})
		s.MessageSink(tag, text)
	}
	return nil
}

// Command sends payload and waits for ACK/ACKWAIT, applying any
// interleaved async frames, but does not expect a further sync reply
// (spec.md §4.7 rows whose "Reply expected" column is "none").
func (s *Session) Command(payload []byte) error {
	waitAsserted, err := s.Link.Send(payload, s.applyAsync)
	if err != nil {
		return err
	}
	if waitAsserted {
		s.Wait = true
	}
	return nil
}

// Request sends payload, then pulls exactly one sync-class reply,
// applying and skipping any async frames interleaved before it
// (spec.md §4.4).
func (s *Session) Request(payload []byte) ([]byte, error) {
	if err := s.Command(payload); err != nil {
		return nil, err
	}
	reply, err := s.Link.Receive(false, IsAsync, s.applyAsync)
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// ExpectReply calls Request and checks the reply's command byte.
func (s *Session) ExpectReply(payload []byte, want byte) ([]byte, error) {
	reply, err := s.Request(payload)
	if err != nil {
		return nil, err
	}
	if len(reply) == 0 || reply[0] != want {
		return nil, fmt.Errorf("session: %w: wanted 0x%02x, got % x", protoerr.Unexpected, want, reply)
	}
	return reply[1:], nil
}

// Block waits up to timeout for one async event and applies it
// (spec.md §5 "block(timeout, probe)"). When probe is false, an empty
// read within the deadline is an error; when probe is true it is a
// normal "nothing pending" return.
func (s *Session) Block(timeout time.Duration, probe bool) error {
	got, err := s.Link.ReceiveTimeout(timeout, IsAsync, s.applyAsync)
	if err != nil {
		return err
	}
	if !got && !probe {
		return fmt.Errorf("session: block: no event within %s", timeout)
	}
	return nil
}

// PumpUntil repeatedly blocks (with the given per-iteration timeout)
// until cond() is true. Used for goto's flow-control wait and
// blocktemps (spec.md §4.4).
func (s *Session) PumpUntil(timeout time.Duration, cond func() bool) error {
	for !cond() {
		if err := s.Block(timeout, false); err != nil {
			return err
		}
	}
	return nil
}
