package config

import (
	"encoding/binary"
	"math"
)

// float32FromBits decodes a little-endian IEEE-754 single from a
// 4-byte slice (spec.md §6: "floats IEEE-754 single precision").
func float32FromBits(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func putFloat32(dst []byte, v float32) {
	binary.LittleEndian.PutUint32(dst, math.Float32bits(v))
}
