// Package printer is the thin command façade of spec.md §4.7: one
// method per operation, each building a payload and driving
// session.Session. Motion planning, gcode streaming and any UI stay
// out of scope; this is the surface an external scheduler drives.
package printer

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"printerlink/config"
	"printerlink/link"
	"printerlink/session"
)

// Printer drives one device session. Not safe for concurrent use
// (spec.md §5); wrap at the call boundary if multiple goroutines need
// access.
type Printer struct {
	Sess *session.Session

	// BlockTimeout bounds each poll iteration of the flow-control and
	// temperature-wait pumps (goto/blocktemps), not the overall wait.
	BlockTimeout time.Duration
}

// New wraps an already-handshaken session.
func New(sess *session.Session) *Printer {
	return &Printer{Sess: sess, BlockTimeout: 30 * time.Second}
}

func putF32(dst []byte, v float32) {
	binary.LittleEndian.PutUint32(dst, math.Float32bits(v))
}

func f32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

// Ping round-trips a single byte through the device (spec.md §4.7).
func (p *Printer) Ping(n byte) error {
	reply, err := p.Sess.ExpectReply([]byte{session.CmdPing, n}, session.RplPong)
	if err != nil {
		return err
	}
	if len(reply) != 1 || reply[0] != n {
		return fmt.Errorf("printer: ping: got %v, want echo of %#x", reply, n)
	}
	return nil
}

// Read returns the raw record bytes stored at channel.
func (p *Printer) Read(channel uint8) ([]byte, error) {
	return p.Sess.ExpectReply([]byte{session.CmdRead, channel}, session.RplData)
}

// Write sends raw record bytes for channel; no reply is expected.
func (p *Printer) Write(channel uint8, data []byte) error {
	payload := append([]byte{session.CmdWrite, channel}, data...)
	return p.Sess.Command(payload)
}

// Load asks the device to (re)populate its RAM copy of channel from
// persisted storage, then observes it with Read, updating the cached
// session fields (spec.md §4.7: "none (followed by READ(ch) to
// observe)").
func (p *Printer) Load(channel uint8) error {
	if err := p.Sess.Command([]byte{session.CmdLoad, channel}); err != nil {
		return err
	}
	return p.refresh(channel)
}

// refresh re-reads channel's record and stores it in the session cache.
func (p *Printer) refresh(channel uint8) error {
	s := p.Sess
	switch {
	case channel == 1:
		data, err := p.Read(1)
		if err != nil {
			return err
		}
		if len(data) < int(s.NameLen) {
			return fmt.Errorf("printer: global record shorter than namelen")
		}
		s.Name = append([]byte(nil), data[:s.NameLen]...)
		rest := data[s.NameLen:]
		if len(rest) < 17 {
			return fmt.Errorf("printer: global record truncated")
		}
		s.NumAxes = rest[0]
		s.NumExtruders = rest[1]
		s.NumTemps = rest[2]
		s.PrinterType = rest[3]
		s.LedPin = rest[4]
		s.RoomT = f32(rest[5:9])
		s.MotorLimit = binary.LittleEndian.Uint32(rest[9:13])
		s.TempLimit = binary.LittleEndian.Uint32(rest[13:17])
	case channel >= 2 && int(channel) < 2+int(s.MaxAxes):
		idx := int(channel) - 2
		data, err := p.Read(channel)
		if err != nil {
			return err
		}
		for len(s.Axes) <= idx {
			s.Axes = append(s.Axes, axisZero())
		}
		s.Axes[idx].Unmarshal(data)
	case int(channel) >= 2+int(s.MaxAxes) && int(channel) < 2+int(s.MaxAxes)+int(s.MaxExtruders):
		idx := int(channel) - 2 - int(s.MaxAxes)
		data, err := p.Read(channel)
		if err != nil {
			return err
		}
		for len(s.Extruders) <= idx {
			s.Extruders = append(s.Extruders, extruderZero())
		}
		s.Extruders[idx].Unmarshal(data)
	default:
		idx := int(channel) - 2 - int(s.MaxAxes) - int(s.MaxExtruders)
		data, err := p.Read(channel)
		if err != nil {
			return err
		}
		for len(s.Temps) <= idx {
			s.Temps = append(s.Temps, tempZero())
		}
		s.Temps[idx].Unmarshal(data)
	}
	return nil
}

// Save asks the device to persist channel's current RAM record.
func (p *Printer) Save(channel uint8) error {
	return p.Sess.Command([]byte{session.CmdSave, channel})
}

// LoadVariables, LoadAxis, LoadExtruder, LoadTemp are channel-arithmetic
// convenience wrappers ported from the original firmware driver
// (supplemented feature, see SPEC_FULL.md).
func (p *Printer) LoadVariables() error          { return p.Load(1) }
func (p *Printer) LoadAxis(which uint8) error    { return p.Load(2 + which) }
func (p *Printer) LoadExtruder(which uint8) error {
	return p.Load(2 + uint8(p.Sess.MaxAxes) + which)
}
func (p *Printer) LoadTemp(which uint8) error {
	return p.Load(2 + uint8(p.Sess.MaxAxes) + uint8(p.Sess.MaxExtruders) + which)
}

func (p *Printer) SaveVariables() error          { return p.Save(1) }
func (p *Printer) SaveAxis(which uint8) error    { return p.Save(2 + which) }
func (p *Printer) SaveExtruder(which uint8) error {
	return p.Save(2 + uint8(p.Sess.MaxAxes) + which)
}
func (p *Printer) SaveTemp(which uint8) error {
	return p.Save(2 + uint8(p.Sess.MaxAxes) + uint8(p.Sess.MaxExtruders) + which)
}

// LoadAll / SaveAll / WriteAll iterate every channel (supplemented
// feature from the original driver's load_all/save_all/write_all).
func (p *Printer) totalChannels() int {
	return 2 + int(p.Sess.MaxAxes) + int(p.Sess.MaxExtruders) + int(p.Sess.MaxTemps)
}

func (p *Printer) LoadAll() error {
	for ch := 1; ch < p.totalChannels(); ch++ {
		if err := p.Load(uint8(ch)); err != nil {
			return fmt.Errorf("printer: load_all: channel %d: %w", ch, err)
		}
	}
	return nil
}

func (p *Printer) SaveAll() error {
	for ch := 1; ch < p.totalChannels(); ch++ {
		if err := p.Save(uint8(ch)); err != nil {
			return fmt.Errorf("printer: save_all: channel %d: %w", ch, err)
		}
	}
	return nil
}

func (p *Printer) WriteAll() error {
	for ch := 1; ch < p.totalChannels(); ch++ {
		if err := p.WriteChannel(uint8(ch)); err != nil {
			return fmt.Errorf("printer: write_all: channel %d: %w", ch, err)
		}
	}
	return nil
}

// WriteChannel writes the session's cached record for channel back to
// the device (dispatches to WriteVariables/WriteAxis/WriteExtruder/WriteTemp).
func (p *Printer) WriteChannel(channel uint8) error {
	s := p.Sess
	switch {
	case channel == 1:
		return p.WriteVariables()
	case channel >= 2 && int(channel) < 2+int(s.MaxAxes):
		return p.WriteAxis(channel - 2)
	case int(channel) >= 2+int(s.MaxAxes) && int(channel) < 2+int(s.MaxAxes)+int(s.MaxExtruders):
		return p.WriteExtruder(channel - 2 - uint8(s.MaxAxes))
	default:
		return p.WriteTemp(channel - 2 - uint8(s.MaxAxes) - uint8(s.MaxExtruders))
	}
}

func (p *Printer) WriteVariables() error {
	s := p.Sess
	data := make([]byte, int(s.NameLen))
	copy(data, s.Name)
	rest := make([]byte, 17)
	rest[0] = s.NumAxes
	rest[1] = s.NumExtruders
	rest[2] = s.NumTemps
	rest[3] = s.PrinterType
	rest[4] = s.LedPin
	putF32(rest[5:9], s.RoomT)
	binary.LittleEndian.PutUint32(rest[9:13], s.MotorLimit)
	binary.LittleEndian.PutUint32(rest[13:17], s.TempLimit)
	return p.Write(1, append(data, rest...))
}

func (p *Printer) WriteAxis(which uint8) error {
	if int(which) >= len(p.Sess.Axes) {
		return fmt.Errorf("printer: write_axis: axis %d not loaded", which)
	}
	return p.Write(2+which, p.Sess.Axes[which].Marshal())
}

func (p *Printer) WriteExtruder(which uint8) error {
	if int(which) >= len(p.Sess.Extruders) {
		return fmt.Errorf("printer: write_extruder: extruder %d not loaded", which)
	}
	return p.Write(2+uint8(p.Sess.MaxAxes)+which, p.Sess.Extruders[which].Marshal())
}

func (p *Printer) WriteTemp(which uint8) error {
	if int(which) >= len(p.Sess.Temps) {
		return fmt.Errorf("printer: write_temp: temp %d not loaded", which)
	}
	return p.Write(2+uint8(p.Sess.MaxAxes)+uint8(p.Sess.MaxExtruders)+which, p.Sess.Temps[which].Marshal())
}

// Pause toggles the device's pause state.
func (p *Printer) Pause(pausing bool) error {
	var b byte
	if pausing {
		b = 1
	}
	return p.Sess.Command([]byte{session.CmdPause, b})
}

// SetPos overrides channel's current position.
func (p *Printer) SetPos(channel uint8, pos int32) error {
	buf := make([]byte, 6)
	buf[0] = session.CmdSetPos
	buf[1] = channel
	binary.LittleEndian.PutUint32(buf[2:], uint32(pos))
	return p.Sess.Command(buf)
}

// GetPos returns channel's current position.
func (p *Printer) GetPos(channel uint8) (int32, error) {
	reply, err := p.Sess.ExpectReply([]byte{session.CmdGetPos, channel}, session.RplPos)
	if err != nil {
		return 0, err
	}
	if len(reply) != 4 {
		return 0, fmt.Errorf("printer: get_pos: reply length %d, want 4", len(reply))
	}
	return int32(binary.LittleEndian.Uint32(reply)), nil
}

// Run spins channel at speed (0 means off).
func (p *Printer) Run(channel uint8, speed float32) error {
	buf := make([]byte, 6)
	buf[0] = session.CmdRun
	buf[1] = channel
	putF32(buf[2:], speed)
	return p.Sess.Command(buf)
}

func (p *Printer) RunAxis(which uint8, speed float32) error { return p.Run(2+which, speed) }
func (p *Printer) RunExtruder(which uint8, speed float32) error {
	return p.Run(2+uint8(p.Sess.MaxAxes)+which, speed)
}

// Sleep engages or disengages channel's motor holding current.
func (p *Printer) Sleep(channel uint8, sleeping bool) error {
	b := channel & 0x7f
	if sleeping {
		b |= 0x80
	}
	return p.Sess.Command([]byte{session.CmdSleep, b})
}

func (p *Printer) SleepAxis(which uint8, sleeping bool) error { return p.Sleep(2+which, sleeping) }
func (p *Printer) SleepExtruder(which uint8, sleeping bool) error {
	return p.Sleep(2+uint8(p.Sess.MaxAxes)+which, sleeping)
}

// SetTemp sets channel's target temperature.
func (p *Printer) SetTemp(channel uint8, t float32) error {
	buf := make([]byte, 6)
	buf[0] = session.CmdSetTemp
	buf[1] = channel
	putF32(buf[2:], t)
	return p.Sess.Command(buf)
}

func (p *Printer) SetTempExtruder(which uint8, t float32) error {
	return p.SetTemp(2+uint8(p.Sess.MaxAxes)+which, t)
}
func (p *Printer) SetTempTemp(which uint8, t float32) error {
	return p.SetTemp(2+uint8(p.Sess.MaxAxes)+uint8(p.Sess.MaxExtruders)+which, t)
}

// WaitTemp arms (or, if both bounds are NaN, disarms) a temperature
// callback for channel (spec.md §4.4 "Temperature wait set").
func (p *Printer) WaitTemp(channel uint8, lo, hi float32) error {
	buf := make([]byte, 10)
	buf[0] = session.CmdWaitTemp
	buf[1] = channel
	putF32(buf[2:6], lo)
	putF32(buf[6:10], hi)
	if err := p.Sess.Command(buf); err != nil {
		return err
	}
	if math.IsNaN(float64(lo)) && math.IsNaN(float64(hi)) {
		delete(p.Sess.TempWait, int(channel))
	} else {
		p.Sess.TempWait[int(channel)] = struct{}{}
	}
	return nil
}

func (p *Printer) WaitTempExtruder(which uint8, lo, hi float32) error {
	return p.WaitTemp(2+uint8(p.Sess.MaxAxes)+which, lo, hi)
}
func (p *Printer) WaitTempTemp(which uint8, lo, hi float32) error {
	return p.WaitTemp(2+uint8(p.Sess.MaxAxes)+uint8(p.Sess.MaxExtruders)+which, lo, hi)
}

// BlockTemps pumps async frames until TempWait is empty (spec.md §4.4).
func (p *Printer) BlockTemps() error {
	return p.Sess.PumpUntil(p.BlockTimeout, func() bool { return len(p.Sess.TempWait) == 0 })
}

// ReadTemp returns channel's current measured temperature.
func (p *Printer) ReadTemp(channel uint8) (float32, error) {
	reply, err := p.Sess.ExpectReply([]byte{session.CmdReadTemp, channel}, session.RplTemp)
	if err != nil {
		return 0, err
	}
	if len(reply) != 4 {
		return 0, fmt.Errorf("printer: read_temp: reply length %d, want 4", len(reply))
	}
	return f32(reply), nil
}

// GotoTargets names the per-call targets for Goto/GotoCB (spec.md §4.7
// "GOTO target encoding").
type GotoTargets struct {
	Axes  map[uint8]float32
	F0    *float32 // nil means +inf
	F1    *float32 // nil means equal to F0
	E     *float32 // extruder feed; nil means none set
	Which uint8    // which extruder E applies to
}

// Goto waits for any outstanding flow control to clear, then issues a
// GOTO (or, if cb is true, a GOTOCB, which additionally arms a move
// callback) (spec.md §4.4 "Move flow control", §4.7 "GOTO target
// encoding").
func (p *Printer) Goto(t GotoTargets, cb bool) error {
	if err := p.Sess.PumpUntil(p.BlockTimeout, func() bool { return !p.Sess.Wait }); err != nil {
		return err
	}

	cmd := session.CmdGoto
	if cb {
		cmd = session.CmdGotoCB
		p.Sess.MoveWait++
	}

	numBits := 2 + int(p.Sess.NumAxes) + int(p.Sess.NumExtruders)
	bitmapLen := (numBits+7)/8 + 1
	bitmap := make([]byte, bitmapLen)
	var args []byte

	f0 := float32(math.Inf(1))
	if t.F0 != nil {
		f0 = *t.F0
	}
	f1 := f0
	if t.F1 != nil {
		f1 = *t.F1
	}
	bitmap[0] |= 1 << 0
	bitmap[0] |= 1 << 1
	args = appendF32(args, f0)
	args = appendF32(args, f1)

	for axis := uint8(0); axis < p.Sess.NumAxes; axis++ {
		v, ok := t.Axes[axis]
		if !ok {
			continue
		}
		bit := 2 + int(axis)
		bitmap[bit>>3] |= 1 << uint(bit&0x7)
		args = appendF32(args, v)
	}

	if t.E != nil {
		bit := 2 + int(p.Sess.NumAxes) + int(t.Which)
		bitmap[bit>>3] |= 1 << uint(bit&0x7)
		args = appendF32(args, *t.E)
	}

	payload := append([]byte{cmd}, bitmap...)
	payload = append(payload, args...)
	return p.Sess.Command(payload)
}

func appendF32(dst []byte, v float32) []byte {
	buf := make([]byte, 4)
	putF32(buf, v)
	return append(dst, buf...)
}

// Play performs the bulk raw upload of spec.md §4.4: a framed PLAY
// command carrying the truncated length, immediately followed by an
// unframed raw byte stream (60 bytes, then 30-byte chunks), each
// chunk gated on an INIT handshake byte. This path intentionally
// bypasses framing; the firmware is in raw-upload mode for its
// duration.
func (p *Printer) Play(data []byte) error {
	truncated := len(data) - len(data)%32
	lenBuf := make([]byte, 9)
	lenBuf[0] = session.CmdPlay
	binary.LittleEndian.PutUint64(lenBuf[1:], uint64(truncated))
	if err := p.Sess.Command(lenBuf); err != nil {
		return err
	}

	first := 60
	if first > len(data) {
		first = len(data)
	}
	if err := p.Sess.Link.RawWrite(data[:first]); err != nil {
		return fmt.Errorf("printer: play: initial write: %w", err)
	}

	b, ok, err := p.Sess.Link.RawReadByte()
	if err != nil {
		return fmt.Errorf("printer: play: initial ack: %w", err)
	}
	if !ok || !isInit(b) {
		return fmt.Errorf("printer: play: device did not ack raw-upload mode")
	}

	for pos := first; pos+30 <= len(data); pos += 30 {
		if err := p.Sess.Link.RawWrite(data[pos : pos+30]); err != nil {
			return fmt.Errorf("printer: play: chunk at %d: %w", pos, err)
		}
		b, ok, err := p.Sess.Link.RawReadByte()
		if err != nil {
			return fmt.Errorf("printer: play: chunk ack at %d: %w", pos, err)
		}
		if !ok || !isInit(b) {
			return fmt.Errorf("printer: play: chunk at %d not acked", pos)
		}
	}
	return nil
}

func isInit(b byte) bool {
	return link.IsInitToken(b)
}

func axisZero() config.Axis         { return config.Axis{} }
func extruderZero() config.Extruder { return config.Extruder{} }
func tempZero() config.Temp         { return config.Temp{} }
