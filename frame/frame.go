// Package frame implements the wire framing and checksum described in
// spec.md §4.1: a length byte, the payload, and a trailer of group
// check bytes built from the fixed 5x4 parity matrix M.
package frame

import "printerlink/protoerr"

// matrix is the bit-exact checksum matrix from spec.md §6. Rows are
// bit positions 0..4, columns are byte offsets 0..3 (offset 3 is the
// check byte itself). These values define the wire contract and must
// never change.
var matrix = [5][4]byte{
	{0xc0, 0xc3, 0xff, 0x09},
	{0x38, 0x3a, 0x7e, 0x13},
	{0x26, 0xb5, 0xb9, 0x23},
	{0x95, 0x6c, 0xd5, 0x43},
	{0x4b, 0xdc, 0xe2, 0x83},
}

func fold(s byte) byte {
	s ^= s >> 4
	s ^= s >> 2
	s ^= s >> 1
	return s & 1
}

// checkByte computes c_t for group index t, where group is up to 3
// bytes of the covered stream (short-padded with zero on the final
// partial group).
func checkByte(t int, group [3]byte) byte {
	c := byte(t & 7)
	for b := 0; b < 5; b++ {
		s := c & matrix[b][3]
		for k := 0; k < 3; k++ {
			s ^= group[k] & matrix[b][k]
		}
		if fold(s) == 1 {
			c |= 1 << uint(b+3)
		}
	}
	return c
}

// Encode frames a payload (1..255 bytes, payload[0] already carrying
// the flip-flop bit) into length byte + payload + check trailer.
func Encode(payload []byte) []byte {
	stream := make([]byte, 0, len(payload)+1)
	stream = append(stream, byte(len(payload)))
	stream = append(stream, payload...)

	numGroups := (len(stream) + 2) / 3
	out := make([]byte, len(stream), len(stream)+numGroups)
	copy(out, stream)

	for t := 0; t < numGroups; t++ {
		var group [3]byte
		for k := 0; k < 3; k++ {
			idx := 3*t + k
			if idx < len(stream) {
				group[k] = stream[idx]
			}
		}
		out = append(out, checkByte(t, group))
	}
	return out
}

// FrameLen returns the total wire length of a frame carrying a payload
// of l bytes: 1 length byte + l payload bytes + a trailer of
// ceil((l+1)/3) check bytes, one per 3-byte group of the covered
// stream (the length byte counts as the first byte of group 0, per
// spec.md §4.1).
func FrameLen(l int) int {
	covered := 1 + l
	groups := (covered + 2) / 3
	return covered + groups
}

// ExtraBytes returns how many more bytes a receiver must read once it
// has already consumed the length byte off the wire, to have a
// complete framed stream ready for Decode (spec.md §4.3).
func ExtraBytes(l int) int {
	return FrameLen(l) - 1
}

// Decode validates and strips a complete framed stream (length byte,
// payload, trailer) and returns the payload. The stream must be
// exactly FrameLen(payload-length) bytes; callers assemble that many
// bytes off the wire before calling Decode.
func Decode(stream []byte) ([]byte, error) {
	if len(stream) < 1 {
		return nil, protoerr.NewDecodeError(protoerr.BadLength)
	}
	length := int(stream[0])
	if FrameLen(length) != len(stream) {
		return nil, protoerr.NewDecodeError(protoerr.BadLength)
	}

	covered := stream[:length+1]
	trailer := stream[length+1:]

	for t := 0; t < len(trailer); t++ {
		var group [3]byte
		for k := 0; k < 3; k++ {
			idx := 3*t + k
			if idx < len(covered) {
				group[k] = covered[idx]
			}
		}
		c := trailer[t]
		if c&7 != byte(t&7) {
			return nil, protoerr.NewDecodeError(protoerr.BadSequenceBits)
		}
		for b := 0; b < 5; b++ {
			s := c & matrix[b][3]
			for k := 0; k < 3; k++ {
				s ^= group[k] & matrix[b][k]
			}
			if fold(s) != 0 {
				return nil, protoerr.NewDecodeError(protoerr.BadParity)
			}
		}
	}

	return covered[1:], nil
}
