// Package config implements the fixed-layout configuration records
// described in spec.md §4.6: Motor, Temp, Axis, Extruder and the
// global record. These are also the device's persisted EEPROM layout,
// so the byte order and field widths are not negotiable.
package config

import "encoding/binary"

// Motor is 15 bytes on the wire: u8 u8 u8 f32 f32 f32.
type Motor struct {
	StepPin   uint8
	DirPin    uint8
	EnablePin uint8
	StepsPerMM float32
	MaxFNeg   float32
	MaxFPos   float32
}

const MotorSize = 15

func (m *Motor) Unmarshal(data []byte) {
	m.StepPin = data[0]
	m.DirPin = data[1]
	m.EnablePin = data[2]
	m.StepsPerMM = float32FromBits(data[3:7])
	m.MaxFNeg = float32FromBits(data[7:11])
	m.MaxFPos = float32FromBits(data[11:15])
}

func (m *Motor) Marshal() []byte {
	out := make([]byte, MotorSize)
	out[0] = m.StepPin
	out[1] = m.DirPin
	out[2] = m.EnablePin
	putFloat32(out[3:7], m.StepsPerMM)
	putFloat32(out[7:11], m.MaxFNeg)
	putFloat32(out[11:15], m.MaxFPos)
	return out
}

// Temp is 30 bytes on the wire: f32 x7, u8 x2.
type Temp struct {
	Alpha         float32
	Beta          float32
	CoreC         float32
	ShellC        float32
	Transfer      float32
	Radiation     float32
	Power         float32
	PowerPin      uint8
	ThermistorPin uint8
}

const TempSize = 30

func (t *Temp) Unmarshal(data []byte) {
	t.Alpha = float32FromBits(data[0:4])
	t.Beta = float32FromBits(data[4:8])
	t.CoreC = float32FromBits(data[8:12])
	t.ShellC = float32FromBits(data[12:16])
	t.Transfer = float32FromBits(data[16:20])
	t.Radiation = float32FromBits(data[20:24])
	t.Power = float32FromBits(data[24:28])
	t.PowerPin = data[28]
	t.ThermistorPin = data[29]
}

func (t *Temp) Marshal() []byte {
	out := make([]byte, TempSize)
	putFloat32(out[0:4], t.Alpha)
	putFloat32(out[4:8], t.Beta)
	putFloat32(out[8:12], t.CoreC)
	putFloat32(out[12:16], t.ShellC)
	putFloat32(out[16:20], t.Transfer)
	putFloat32(out[20:24], t.Radiation)
	putFloat32(out[24:28], t.Power)
	out[28] = t.PowerPin
	out[29] = t.ThermistorPin
	return out
}

// Axis is Motor ‖ u8 u8 = 17 bytes.
type Axis struct {
	Motor      Motor
	LimitMinPin uint8
	LimitMaxPin uint8
}

const AxisSize = MotorSize + 2

func (a *Axis) Unmarshal(data []byte) {
	a.Motor.Unmarshal(data[:MotorSize])
	a.LimitMinPin = data[MotorSize]
	a.LimitMaxPin = data[MotorSize+1]
}

func (a *Axis) Marshal() []byte {
	out := make([]byte, 0, AxisSize)
	out = append(out, a.Motor.Marshal()...)
	out = append(out, a.LimitMinPin, a.LimitMaxPin)
	return out
}

// Extruder is Motor ‖ Temp ‖ f32 f32 f32 = 57 bytes.
type Extruder struct {
	Motor        Motor
	Temp         Temp
	FilamentHeat float32
	NozzleSize   float32
	FilamentSize float32
}

const ExtruderSize = MotorSize + TempSize + 12

func (e *Extruder) Unmarshal(data []byte) {
	e.Motor.Unmarshal(data[:MotorSize])
	e.Temp.Unmarshal(data[MotorSize : MotorSize+TempSize])
	rest := data[MotorSize+TempSize:]
	e.FilamentHeat = float32FromBits(rest[0:4])
	e.NozzleSize = float32FromBits(rest[4:8])
	e.FilamentSize = float32FromBits(rest[8:12])
}

func (e *Extruder) Marshal() []byte {
	out := make([]byte, 0, ExtruderSize)
	out = append(out, e.Motor.Marshal()...)
	out = append(out, e.Temp.Marshal()...)
	tail := make([]byte, 12)
	putFloat32(tail[0:4], e.FilamentHeat)
	putFloat32(tail[4:8], e.NozzleSize)
	putFloat32(tail[8:12], e.FilamentSize)
	return append(out, tail...)
}

// Global is the channel-1 record: namelen bytes of name (zero-padded)
// followed by u8 u8 u8 u8 u8 f32 u32 u32.
type Global struct {
	Name         []byte // exactly NameLen bytes, zero-padded
	NumAxes      uint8
	NumExtruders uint8
	NumTemps     uint8
	PrinterType  uint8
	LedPin       uint8
	RoomT        float32
	MotorLimit   uint32
	TempLimit    uint32
}

// GlobalSize returns the wire size of a Global record for the given
// name length.
func GlobalSize(nameLen int) int {
	return nameLen + 1 + 1 + 1 + 1 + 1 + 4 + 4 + 4
}

func (g *Global) Unmarshal(data []byte, nameLen int) {
	g.Name = make([]byte, nameLen)
	copy(g.Name, data[:nameLen])
	rest := data[nameLen:]
	g.NumAxes = rest[0]
	g.NumExtruders = rest[1]
	g.NumTemps = rest[2]
	g.PrinterType = rest[3]
	g.LedPin = rest[4]
	g.RoomT = float32FromBits(rest[5:9])
	g.MotorLimit = binary.LittleEndian.Uint32(rest[9:13])
	g.TempLimit = binary.LittleEndian.Uint32(rest[13:17])
}

// Marshal writes the record using exactly nameLen bytes for Name
// (truncated or zero-padded).
func (g *Global) Marshal(nameLen int) []byte {
	out := make([]byte, GlobalSize(nameLen))
	n := copy(out[:nameLen], g.Name)
	_ = n
	rest := out[nameLen:]
	rest[0] = g.NumAxes
	rest[1] = g.NumExtruders
	rest[2] = g.NumTemps
	rest[3] = g.PrinterType
	rest[4] = g.LedPin
	putFloat32(rest[5:9], g.RoomT)
	binary.LittleEndian.PutUint32(rest[9:13], g.MotorLimit)
	binary.LittleEndian.PutUint32(rest[13:17], g.TempLimit)
	return out
}
