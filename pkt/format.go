// Package pkt implements baldaquin's packet framework: a declarative
// description of fixed-layout binary records with round-tripping
// pack/unpack, structural validation, and an append-only on-disk
// container parameterized by the packet type.
//
// A concrete packet type declares a package-level Descriptor built from
// Field values, then wraps Descriptor.Pack/Unpack in typed constructor and
// decoder functions. This plays the role that the `packetclass` decorator
// and Python's struct module play in the original implementation, made
// explicit because Go has no runtime class mutation to hang a decorator off.
package pkt

import (
	"encoding/binary"

	"github.com/lucabaldini/baldaquin/errors"
)

// Format is a single-character field format code drawn from the fixed
// alphabet below.
type Format rune

// The supported format characters, one per primitive wire type.
const (
	Pad      Format = 'x' // padding byte, no associated value
	Char     Format = 'c' // single byte, typically an ASCII character
	Int8     Format = 'b'
	Uint8    Format = 'B'
	Bool     Format = '?'
	Int16    Format = 'h'
	Uint16   Format = 'H'
	Int32    Format = 'i'
	Uint32   Format = 'I'
	Long32   Format = 'l' // 32-bit signed, distinct wire name from Int32
	ULong32  Format = 'L'
	Int64    Format = 'q'
	Uint64   Format = 'Q'
	Float32  Format = 'f'
	Float64  Format = 'd'
	Bytes    Format = 's' // fixed-length byte string, length from Field.Len
	Pascal   Format = 'p' // length-prefixed byte string, length from Field.Len
	Pointer  Format = 'P' // native-word-sized integer
)

var formatSizes = map[Format]int{
	Pad:     1,
	Char:    1,
	Int8:    1,
	Uint8:   1,
	Bool:    1,
	Int16:   2,
	Uint16:  2,
	Int32:   4,
	Uint32:  4,
	Long32:  4,
	ULong32: 4,
	Int64:   8,
	Uint64:  8,
	Float32: 4,
	Float64: 8,
	Pointer: 8,
}

func (f Format) valid() bool {
	switch f {
	case Bytes, Pascal:
		return true
	}
	_, ok := formatSizes[f]
	return ok
}

// Layout is the byte-order/alignment mode a Descriptor packs and unpacks
// under. Go's encoding/binary never pads between fields, so NativeAligned
// and NativePacked are equivalent here; both are kept to mirror the
// vocabulary of the original struct-format layout characters.
type Layout rune

const (
	NativeAligned Layout = '@'
	NativePacked  Layout = '='
	BigEndian     Layout = '>'
	LittleEndian  Layout = '<'
	Network       Layout = '!' // identical to BigEndian
)

func (l Layout) byteOrder() (binary.ByteOrder, error) {
	switch l {
	case NativeAligned, NativePacked, LittleEndian:
		return binary.LittleEndian, nil
	case BigEndian, Network:
		return binary.BigEndian, nil
	default:
		return nil, errors.E(errors.LayoutError, "unsupported layout character")
	}
}
