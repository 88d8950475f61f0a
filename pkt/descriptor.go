package pkt

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/lucabaldini/baldaquin/errors"
)

// Field describes a single field of a packet type: its name, its wire
// format, and, for fields carrying a header magic or other fixed marker, an
// expected constant value that Unpack must verify.
//
// Expect, when non-nil, must be a uint64 (for integer/bool/char formats) or
// a float64 (for float formats); it is compared against the decoded value
// at Unpack time and produces FieldMismatch on any discrepancy.
type Field struct {
	Name   string
	Format Format
	Expect interface{}
	// Len is the byte length of Bytes/Pascal fields; ignored otherwise.
	Len int
}

func (f Field) size() int {
	switch f.Format {
	case Bytes:
		return f.Len
	case Pascal:
		return f.Len + 1
	default:
		return formatSizes[f.Format]
	}
}

// Descriptor is the fixed-layout schema of a packet type: an ordered field
// list under a single byte-order/alignment Layout. Build one with
// NewDescriptor and keep it as a package-level value shared by every
// instance of the packet type it describes.
type Descriptor struct {
	Layout Layout
	Fields []Field
	order  binary.ByteOrder
	size   int
}

// NewDescriptor validates layout and field format characters and returns a
// ready-to-use Descriptor. It fails with LayoutError if layout is
// unrecognized or FormatError if any field's format character is
// unrecognized.
func NewDescriptor(layout Layout, fields ...Field) (*Descriptor, error) {
	order, err := layout.byteOrder()
	if err != nil {
		return nil, err
	}
	size := 0
	for _, f := range fields {
		if !f.Format.valid() {
			return nil, errors.E(errors.FormatError, fmt.Sprintf("unsupported format character %q for field %q", rune(f.Format), f.Name))
		}
		size += f.size()
	}
	return &Descriptor{Layout: layout, Fields: fields, order: order, size: size}, nil
}

// MustNewDescriptor is NewDescriptor for package-level var initializers,
// where a malformed declaration is a programmer error that should fail
// fast at startup rather than be handled.
func MustNewDescriptor(layout Layout, fields ...Field) *Descriptor {
	d, err := NewDescriptor(layout, fields...)
	if err != nil {
		panic(err)
	}
	return d
}

// Size returns the fixed size in bytes of any packet packed under d.
func (d *Descriptor) Size() int {
	return d.size
}

// Pack serializes values, one per non-pad field in d.Fields, in declaration
// order, returning a byte slice of exactly d.Size() bytes.
func (d *Descriptor) Pack(values []interface{}) ([]byte, error) {
	buf := make([]byte, d.size)
	off := 0
	vi := 0
	for _, f := range d.Fields {
		n := f.size()
		if f.Format == Pad {
			off += n
			continue
		}
		if vi >= len(values) {
			return nil, errors.E(errors.SizeMismatch, fmt.Sprintf("missing value for field %q", f.Name))
		}
		v := values[vi]
		vi++
		if err := d.putField(buf[off:off+n], f, v); err != nil {
			return nil, err
		}
		off += n
	}
	return buf, nil
}

// Unpack decodes data into a slice of field values, one per non-pad field
// in d.Fields, in declaration order. It fails with SizeMismatch if
// len(data) != d.Size(), and with FieldMismatch if a field carrying an
// expected constant decodes to a different value.
func (d *Descriptor) Unpack(data []byte) ([]interface{}, error) {
	if len(data) != d.size {
		return nil, errors.E(errors.SizeMismatch, fmt.Sprintf("expected %d bytes, got %d", d.size, len(data)))
	}
	values := make([]interface{}, 0, len(d.Fields))
	off := 0
	for _, f := range d.Fields {
		n := f.size()
		if f.Format == Pad {
			off += n
			continue
		}
		v, err := d.getField(data[off:off+n], f)
		if err != nil {
			return nil, err
		}
		if f.Expect != nil && !matchesExpect(f.Expect, v) {
			return nil, errors.E(errors.FieldMismatch, fmt.Sprintf(
				"field %q: expected %v, found %v", f.Name, f.Expect, v))
		}
		values = append(values, v)
		off += n
	}
	return values, nil
}

func matchesExpect(expect, actual interface{}) bool {
	switch e := expect.(type) {
	case uint64:
		switch a := actual.(type) {
		case uint64:
			return a == e
		case bool:
			return a == (e != 0)
		}
		return false
	case float64:
		a, ok := actual.(float64)
		return ok && a == e
	default:
		return false
	}
}

func (d *Descriptor) putField(b []byte, f Field, v interface{}) error {
	switch f.Format {
	case Bytes, Pascal:
		s, ok := v.(string)
		if !ok {
			return errors.E(errors.FormatError, fmt.Sprintf("field %q: expected string value", f.Name))
		}
		if f.Format == Pascal {
			b[0] = byte(len(s))
			copy(b[1:], s)
			return nil
		}
		copy(b, s)
		return nil
	case Char, Int8, Uint8, Bool:
		u, err := toUint64(v)
		if err != nil {
			return err
		}
		b[0] = byte(u)
		return nil
	case Int16, Uint16:
		u, err := toUint64(v)
		if err != nil {
			return err
		}
		d.order.PutUint16(b, uint16(u))
		return nil
	case Int32, Uint32, Long32, ULong32:
		u, err := toUint64(v)
		if err != nil {
			return err
		}
		d.order.PutUint32(b, uint32(u))
		return nil
	case Int64, Uint64, Pointer:
		u, err := toUint64(v)
		if err != nil {
			return err
		}
		d.order.PutUint64(b, u)
		return nil
	case Float32:
		f64, err := toFloat64(v)
		if err != nil {
			return err
		}
		d.order.PutUint32(b, math.Float32bits(float32(f64)))
		return nil
	case Float64:
		f64, err := toFloat64(v)
		if err != nil {
			return err
		}
		d.order.PutUint64(b, math.Float64bits(f64))
		return nil
	default:
		return errors.E(errors.FormatError, fmt.Sprintf("unsupported format character %q", rune(f.Format)))
	}
}

func (d *Descriptor) getField(b []byte, f Field) (interface{}, error) {
	switch f.Format {
	case Bytes:
		return string(b), nil
	case Pascal:
		n := int(b[0])
		if n > len(b)-1 {
			n = len(b) - 1
		}
		return string(b[1 : 1+n]), nil
	case Bool:
		return b[0] != 0, nil
	case Char, Int8, Uint8:
		return uint64(b[0]), nil
	case Int16, Uint16:
		return uint64(d.order.Uint16(b)), nil
	case Int32, Uint32, Long32, ULong32:
		return uint64(d.order.Uint32(b)), nil
	case Int64, Uint64, Pointer:
		return d.order.Uint64(b), nil
	case Float32:
		return float64(math.Float32frombits(d.order.Uint32(b))), nil
	case Float64:
		return math.Float64frombits(d.order.Uint64(b)), nil
	default:
		return nil, errors.E(errors.FormatError, fmt.Sprintf("unsupported format character %q", rune(f.Format)))
	}
}

func toUint64(v interface{}) (uint64, error) {
	switch n := v.(type) {
	case uint64:
		return n, nil
	case uint32:
		return uint64(n), nil
	case uint16:
		return uint64(n), nil
	case uint8:
		return uint64(n), nil
	case int:
		return uint64(n), nil
	case int64:
		return uint64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, errors.E(errors.FormatError, fmt.Sprintf("cannot encode value of type %T as an integer field", v))
	}
}

func toFloat64(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	default:
		return 0, errors.E(errors.FormatError, fmt.Sprintf("cannot encode value of type %T as a float field", v))
	}
}
