package config

import (
	"math/rand"
	"reflect"
	"testing"
)

func randMotor(r *rand.Rand) Motor {
	return Motor{
		StepPin:    uint8(r.Intn(256)),
		DirPin:     uint8(r.Intn(256)),
		EnablePin:  uint8(r.Intn(256)),
		StepsPerMM: r.Float32(),
		MaxFNeg:    r.Float32(),
		MaxFPos:    r.Float32(),
	}
}

func TestMotorRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for i := 0; i < 200; i++ {
		m := randMotor(r)
		data := m.Marshal()
		if len(data) != MotorSize {
			t.Fatalf("Marshal() len = %d, want %d", len(data), MotorSize)
		}
		var got Motor
		got.Unmarshal(data)
		if !reflect.DeepEqual(got, m) {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, m)
		}
	}
}

func randTemp(r *rand.Rand) Temp {
	return Temp{
		Alpha: r.Float32(), Beta: r.Float32(), CoreC: r.Float32(),
		ShellC: r.Float32(), Transfer: r.Float32(), Radiation: r.Float32(),
		Power:         r.Float32(),
		PowerPin:      uint8(r.Intn(256)),
		ThermistorPin: uint8(r.Intn(256)),
	}
}

func TestTempRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	for i := 0; i < 200; i++ {
		tm := randTemp(r)
		data := tm.Marshal()
		if len(data) != TempSize {
			t.Fatalf("Marshal() len = %d, want %d", len(data), TempSize)
		}
		var got Temp
		got.Unmarshal(data)
		if !reflect.DeepEqual(got, tm) {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, tm)
		}
	}
}

func TestAxisRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	for i := 0; i < 200; i++ {
		a := Axis{Motor: randMotor(r), LimitMinPin: uint8(r.Intn(256)), LimitMaxPin: uint8(r.Intn(256))}
		data := a.Marshal()
		if len(data) != AxisSize {
			t.Fatalf("Marshal() len = %d, want %d", len(data), AxisSize)
		}
		var got Axis
		got.Unmarshal(data)
		if !reflect.DeepEqual(got, a) {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, a)
		}
	}
}

func TestExtruderRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(6))
	for i := 0; i < 200; i++ {
		e := Extruder{
			Motor: randMotor(r), Temp: randTemp(r),
			FilamentHeat: r.Float32(), NozzleSize: r.Float32(), FilamentSize: r.Float32(),
		}
		data := e.Marshal()
		if len(data) != ExtruderSize {
			t.Fatalf("Marshal() len = %d, want %d", len(data), ExtruderSize)
		}
		var got Extruder
		got.Unmarshal(data)
		if !reflect.DeepEqual(got, e) {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, e)
		}
	}
}

func TestGlobalRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for _, nameLen := range []int{0, 1, 8, 16} {
		for i := 0; i < 50; i++ {
			name := make([]byte, nameLen)
			r.Read(name)
			g := Global{
				Name: name,
				NumAxes: uint8(r.Intn(256)), NumExtruders: uint8(r.Intn(256)), NumTemps: uint8(r.Intn(256)),
				PrinterType: uint8(r.Intn(256)), LedPin: uint8(r.Intn(256)),
				RoomT: r.Float32(), MotorLimit: r.Uint32(), TempLimit: r.Uint32(),
			}
			data := g.Marshal(nameLen)
			if len(data) != GlobalSize(nameLen) {
				t.Fatalf("Marshal() len = %d, want %d", len(data), GlobalSize(nameLen))
			}
			var got Global
			got.Unmarshal(data, nameLen)
			if !reflect.DeepEqual(got, g) {
				t.Fatalf("round trip mismatch: got %+v, want %+v", got, g)
			}
		}
	}
}
