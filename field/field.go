// Package field implements TellDB's typed, dynamically-tagged value: the
// Field type that Tuples, index keys, and store records are all built from.
//
// A Field carries exactly one of the tags in Tag; the sentinel NOTYPE marks
// an uninitialized Field and is illegal in every operation below except
// checking IsTyped. Comparison, casting, and the fixed wire serialization
// format are the three operations every other TellDB component depends on,
// so their edge cases (NULL ordering, the BLOB cast asymmetry, overflow on
// cast) are pinned down precisely here rather than left to callers.
package field

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"

	"github.com/Stone1973/telldb"
)

// Tag identifies which payload arm a Field carries.
type Tag int

const (
	// NOTYPE marks an uninitialized Field. It is the zero value so a
	// zero-value Field is never mistaken for a legitimate NULL.
	NOTYPE Tag = iota
	NULL
	SMALLINT
	INT
	BIGINT
	FLOAT
	DOUBLE
	TEXT
	BLOB
)

func (t Tag) String() string {
	switch t {
	case NULL:
		return "NULL"
	case SMALLINT:
		return "SMALLINT"
	case INT:
		return "INT"
	case BIGINT:
		return "BIGINT"
	case FLOAT:
		return "FLOAT"
	case DOUBLE:
		return "DOUBLE"
	case TEXT:
		return "TEXT"
	case BLOB:
		return "BLOB"
	default:
		return "NOTYPE"
	}
}

// Ordering is the result of Compare.
type Ordering int

const (
	Less Ordering = iota - 1
	Equal
	Greater
)

// Field is a tagged value. The tag and the stored payload always agree; the
// zero value is the NOTYPE sentinel.
type Field struct {
	tag  Tag
	i64  int64   // backs SMALLINT/INT/BIGINT
	f64  float64 // backs DOUBLE
	f32  float32 // backs FLOAT
	blob []byte  // backs TEXT/BLOB
}

// Tag returns the Field's tag.
func (f Field) Tag() Tag { return f.tag }

// IsTyped reports whether f carries a real tag (i.e. is not NOTYPE).
func (f Field) IsTyped() bool { return f.tag != NOTYPE }

// NoType returns the uninitialized-Field sentinel.
func NoType() Field { return Field{tag: NOTYPE} }

// Null returns a NULL Field.
func Null() Field { return Field{tag: NULL} }

// NewSmallInt returns an INT16-tagged Field.
func NewSmallInt(v int16) Field { return Field{tag: SMALLINT, i64: int64(v)} }

// NewInt returns an INT32-tagged Field.
func NewInt(v int32) Field { return Field{tag: INT, i64: int64(v)} }

// NewBigInt returns a BIGINT-tagged Field.
func NewBigInt(v int64) Field { return Field{tag: BIGINT, i64: v} }

// NewFloat returns a FLOAT-tagged (32-bit) Field.
func NewFloat(v float32) Field { return Field{tag: FLOAT, f32: v} }

// NewDouble returns a DOUBLE-tagged (64-bit) Field.
func NewDouble(v float64) Field { return Field{tag: DOUBLE, f64: v} }

// NewText returns a TEXT-tagged Field over the given UTF-8 bytes.
func NewText(s string) Field { return Field{tag: TEXT, blob: []byte(s)} }

// NewBlob returns a BLOB-tagged Field over the given opaque bytes.
func NewBlob(b []byte) Field {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Field{tag: BLOB, blob: cp}
}

// SmallInt returns the SMALLINT payload. Panics if f is not tagged SMALLINT;
// callers are expected to check Tag() first, exactly as a Tuple's typed
// accessor does.
func (f Field) SmallInt() int16 { f.mustBe(SMALLINT); return int16(f.i64) }

// Int returns the INT payload.
func (f Field) Int() int32 { f.mustBe(INT); return int32(f.i64) }

// BigInt returns the BIGINT payload.
func (f Field) BigInt() int64 { f.mustBe(BIGINT); return f.i64 }

// Float32 returns the FLOAT payload.
func (f Field) Float32() float32 { f.mustBe(FLOAT); return f.f32 }

// Float64 returns the DOUBLE payload.
func (f Field) Float64() float64 { f.mustBe(DOUBLE); return f.f64 }

// Text returns the TEXT payload.
func (f Field) Text() string { f.mustBe(TEXT); return string(f.blob) }

// Blob returns the BLOB payload. The returned slice is a copy.
func (f Field) Blob() []byte {
	f.mustBe(BLOB)
	cp := make([]byte, len(f.blob))
	copy(cp, f.blob)
	return cp
}

func (f Field) mustBe(t Tag) {
	if f.tag != t {
		panic(fmt.Sprintf("field: accessor for %s called on a %s Field", t, f.tag))
	}
}

// Equal reports whether f and other compare Equal, per Compare's rules.
// It returns false (rather than panicking) for incomparable pairs, mirroring
// spec's preserved choice that two NULLs are "equal" but never "ordered".
func (f Field) Equal(other Field) bool {
	o, err := Compare(f, other)
	return err == nil && o == Equal
}

// Less reports whether f < other. See the package-level Design Note on
// NULL: two NULL Fields are Equal, never Less, by the preserved source
// behavior.
func (f Field) Less(other Field) bool {
	o, err := Compare(f, other)
	return err == nil && o == Less
}

// Greater reports whether f > other.
func (f Field) Greater(other Field) bool {
	o, err := Compare(f, other)
	return err == nil && o == Greater
}

// Compare compares a and b. NULL compares Equal to NULL and is not ordered
// against anything else: a NULL compared with a Field of any other tag fails
// Unorderable (two NULLs resolve to Equal, never Less or Greater — the
// source's operator< treats two NULLs as simply not less than one another).
// Otherwise Compare requires a.Tag() == b.Tag(), failing TypeMismatch, and
// fails Unorderable if the shared tag is BLOB or NOTYPE.
func Compare(a, b Field) (Ordering, error) {
	if a.tag != b.tag {
		if a.tag == NULL || b.tag == NULL {
			return 0, telldb.NewError(telldb.Unorderable, fmt.Errorf("compare: NULL is not ordered (%s vs %s)", a.tag, b.tag), nil)
		}
		return 0, telldb.NewError(telldb.TypeMismatch, fmt.Errorf("compare: %s vs %s", a.tag, b.tag), nil)
	}
	switch a.tag {
	case BLOB, NOTYPE:
		return 0, telldb.NewError(telldb.Unorderable, fmt.Errorf("tag %s is not orderable", a.tag), nil)
	case NULL:
		return Equal, nil
	case SMALLINT, INT, BIGINT:
		return cmpInt64(a.i64, b.i64), nil
	case FLOAT:
		return cmpFloat64(float64(a.f32), float64(b.f32)), nil
	case DOUBLE:
		return cmpFloat64(a.f64, b.f64), nil
	case TEXT:
		return cmpBytes(a.blob, b.blob), nil
	}
	return 0, telldb.NewError(telldb.Unorderable, fmt.Errorf("tag %s is not orderable", a.tag), nil)
}

func cmpInt64(a, b int64) Ordering {
	switch {
	case a < b:
		return Less
	case a > b:
		return Greater
	default:
		return Equal
	}
}

func cmpFloat64(a, b float64) Ordering {
	switch {
	case a < b:
		return Less
	case a > b:
		return Greater
	default:
		return Equal
	}
}

func cmpBytes(a, b []byte) Ordering {
	switch bytes.Compare(a, b) {
	case -1:
		return Less
	case 1:
		return Greater
	default:
		return Equal
	}
}

// Cast converts f to the target tag. Identity when target == f.Tag(). Fails
// BadCast when either the source or target tag is NULL, NOTYPE, or BLOB —
// BLOBs are transportable (Serialize handles them) but never convertible,
// in either direction, by design. Between numeric tags, and between any
// numeric tag and TEXT, the value is round-tripped through its canonical
// decimal text form; overflow on the way back into a fixed-width numeric
// type fails BadCast.
func (f Field) Cast(target Tag) (Field, error) {
	if target == f.tag {
		return f, nil
	}
	if isUncastable(f.tag) || isUncastable(target) {
		return Field{}, telldb.NewError(telldb.BadCast, fmt.Errorf("cannot cast %s to %s", f.tag, target), nil)
	}

	if f.tag == TEXT {
		return parseInto(f.Text(), target)
	}
	if target == TEXT {
		return NewText(f.formatDecimal()), nil
	}
	// numeric -> numeric: round-trip through decimal text.
	return parseInto(f.formatDecimal(), target)
}

func isUncastable(t Tag) bool {
	return t == NULL || t == NOTYPE || t == BLOB
}

func (f Field) formatDecimal() string {
	switch f.tag {
	case SMALLINT, INT, BIGINT:
		return strconv.FormatInt(f.i64, 10)
	case FLOAT:
		return strconv.FormatFloat(float64(f.f32), 'g', -1, 32)
	case DOUBLE:
		return strconv.FormatFloat(f.f64, 'g', -1, 64)
	default:
		return ""
	}
}

func parseInto(s string, target Tag) (Field, error) {
	switch target {
	case SMALLINT:
		v, err := strconv.ParseInt(s, 10, 16)
		if err != nil {
			return Field{}, badCast(s, target, err)
		}
		return NewSmallInt(int16(v)), nil
	case INT:
		v, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return Field{}, badCast(s, target, err)
		}
		return NewInt(int32(v)), nil
	case BIGINT:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Field{}, badCast(s, target, err)
		}
		return NewBigInt(v), nil
	case FLOAT:
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return Field{}, badCast(s, target, err)
		}
		return NewFloat(float32(v)), nil
	case DOUBLE:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Field{}, badCast(s, target, err)
		}
		return NewDouble(v), nil
	case TEXT:
		return NewText(s), nil
	default:
		return Field{}, telldb.NewError(telldb.BadCast, fmt.Errorf("cannot cast to %s", target), nil)
	}
}

func badCast(s string, target Tag, err error) error {
	return telldb.NewError(telldb.BadCast, fmt.Errorf("cast %q to %s: %w", s, target, err), nil)
}

// Serialize writes f's fixed wire layout to dest and returns the number of
// bytes written:
//
//	NULL:                                0 bytes
//	SMALLINT/INT/BIGINT/FLOAT/DOUBLE:    little-endian fixed width (2/4/8/4/8)
//	TEXT/BLOB:                           4-byte LE length prefix, the bytes,
//	                                     then zero-padding to a multiple of 8
//	NOTYPE:                              fails NotSerializable
func (f Field) Serialize(dest io.Writer) (int, error) {
	switch f.tag {
	case NULL:
		return 0, nil
	case SMALLINT:
		return writeFixed(dest, int16(f.i64))
	case INT:
		return writeFixed(dest, int32(f.i64))
	case BIGINT:
		return writeFixed(dest, f.i64)
	case FLOAT:
		return writeFixed(dest, f.f32)
	case DOUBLE:
		return writeFixed(dest, f.f64)
	case TEXT, BLOB:
		return writeLengthPrefixed(dest, f.blob)
	default:
		return 0, telldb.NewError(telldb.NotSerializable, fmt.Errorf("tag %s is not serializable", f.tag), nil)
	}
}

func writeFixed(dest io.Writer, v any) (int, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		return 0, telldb.NewError(telldb.NotSerializable, err, nil)
	}
	n, err := dest.Write(buf.Bytes())
	return n, err
}

func writeLengthPrefixed(dest io.Writer, data []byte) (int, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(data))); err != nil {
		return 0, telldb.NewError(telldb.NotSerializable, err, nil)
	}
	buf.Write(data)
	for buf.Len()%8 != 0 {
		buf.WriteByte(0)
	}
	n, err := dest.Write(buf.Bytes())
	return n, err
}

// Deserialize reads a Field of the given tag back from src, the inverse of
// Serialize. The caller supplies tag because the wire format itself carries
// no type byte — the schema a Tuple is bound to is the source of truth for
// each column's tag.
func Deserialize(tag Tag, src io.Reader) (Field, error) {
	switch tag {
	case NULL:
		return Null(), nil
	case SMALLINT:
		var v int16
		if err := binary.Read(src, binary.LittleEndian, &v); err != nil {
			return Field{}, telldb.NewError(telldb.NotSerializable, err, nil)
		}
		return NewSmallInt(v), nil
	case INT:
		var v int32
		if err := binary.Read(src, binary.LittleEndian, &v); err != nil {
			return Field{}, telldb.NewError(telldb.NotSerializable, err, nil)
		}
		return NewInt(v), nil
	case BIGINT:
		var v int64
		if err := binary.Read(src, binary.LittleEndian, &v); err != nil {
			return Field{}, telldb.NewError(telldb.NotSerializable, err, nil)
		}
		return NewBigInt(v), nil
	case FLOAT:
		var v float32
		if err := binary.Read(src, binary.LittleEndian, &v); err != nil {
			return Field{}, telldb.NewError(telldb.NotSerializable, err, nil)
		}
		return NewFloat(v), nil
	case DOUBLE:
		var v float64
		if err := binary.Read(src, binary.LittleEndian, &v); err != nil {
			return Field{}, telldb.NewError(telldb.NotSerializable, err, nil)
		}
		return NewDouble(v), nil
	case TEXT, BLOB:
		var length uint32
		if err := binary.Read(src, binary.LittleEndian, &length); err != nil {
			return Field{}, telldb.NewError(telldb.NotSerializable, err, nil)
		}
		data := make([]byte, length)
		if length > 0 {
			if _, err := io.ReadFull(src, data); err != nil {
				return Field{}, telldb.NewError(telldb.NotSerializable, err, nil)
			}
		}
		padded := 4 + int(length)
		for padded%8 != 0 {
			var pad [1]byte
			if _, err := io.ReadFull(src, pad[:]); err != nil {
				return Field{}, telldb.NewError(telldb.NotSerializable, err, nil)
			}
			padded++
		}
		if tag == TEXT {
			return NewText(string(data)), nil
		}
		return NewBlob(data), nil
	default:
		return Field{}, telldb.NewError(telldb.NotSerializable, fmt.Errorf("tag %s is not serializable", tag), nil)
	}
}
