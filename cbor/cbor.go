// Package cbor decodes the CBOR subset used by WebAuthn structures:
// unsigned and negative integers, byte strings, text strings, arrays and
// maps, with length arguments of up to four bytes.
//
// Indefinite-length items, tags, floats and 8-byte arguments are outside
// the subset and are rejected. All input is treated as attacker-controlled:
// every read is bounds-checked and failures surface as ErrMalformed.
//
// https://www.rfc-editor.org/rfc/rfc8949.html
package cbor

import (
	"encoding/binary"
	"errors"
)

// ErrMalformed is returned for any input that is truncated, uses an
// unsupported major type or argument encoding, or nests too deeply.
var ErrMalformed = errors.New("cbor: malformed data")

const (
	majorUnsignedInteger = 0
	majorNegativeInteger = 1
	majorByteString      = 2
	majorTextString      = 3
	majorArray           = 4
	majorMap             = 5
)

// WebAuthn payloads are shallow. The cap keeps a hostile buffer full of
// nested array headers from exhausting the stack.
const maxNestingDepth = 16

// Decoder reads CBOR items from a byte buffer, tracking how many bytes
// have been consumed so a caller can locate the end of an item embedded
// in a larger buffer.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder creates a decoder over the provided buffer. The buffer is not
// copied; callers must not mutate it while decoding.
func NewDecoder(b []byte) *Decoder {
	return &Decoder{buf: b}
}

// Decode consumes exactly one CBOR item and returns it as one of:
// int64 (unsigned and negative integers), []byte, string, []any or
// map[any]any with int64 or string keys.
func (d *Decoder) Decode() (any, error) {
	return d.item(0)
}

// NumBytesRead reports how many bytes have been consumed so far.
func (d *Decoder) NumBytesRead() int {
	return d.pos
}

// Rest returns the unconsumed remainder of the buffer.
func (d *Decoder) Rest() []byte {
	return d.buf[d.pos:]
}

// Done reports whether the whole buffer has been consumed.
func (d *Decoder) Done() bool {
	return d.pos == len(d.buf)
}

// DecodeFirst decodes the first CBOR item in b and returns it along with
// any trailing bytes. WebAuthn appends extension data after the COSE key
// inside attested credential data; the caller discards rest without
// parsing it.
func DecodeFirst(b []byte) (v any, rest []byte, err error) {
	d := NewDecoder(b)
	v, err = d.Decode()
	if err != nil {
		return nil, nil, err
	}
	return v, d.Rest(), nil
}

// Unmarshal decodes a single CBOR item and requires the buffer to hold
// nothing else.
func Unmarshal(b []byte) (any, error) {
	d := NewDecoder(b)
	v, err := d.Decode()
	if err != nil {
		return nil, err
	}
	if !d.Done() {
		return nil, ErrMalformed
	}
	return v, nil
}

func (d *Decoder) remaining() int {
	return len(d.buf) - d.pos
}

func (d *Decoder) take(n int) ([]byte, bool) {
	if n < 0 || d.remaining() < n {
		return nil, false
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, true
}

// head reads the initial byte of an item plus its argument. Additional
// information 0-23 is the argument itself, 24-26 read one, two or four
// big-endian bytes. 27 and indefinite lengths are not part of the
// WebAuthn subset.
func (d *Decoder) head() (major byte, arg uint64, err error) {
	b, ok := d.take(1)
	if !ok {
		return 0, 0, ErrMalformed
	}
	major = b[0] >> 5
	info := b[0] & 0x1f

	switch {
	case info < 24:
		return major, uint64(info), nil
	case info == 24:
		b, ok := d.take(1)
		if !ok {
			return 0, 0, ErrMalformed
		}
		return major, uint64(b[0]), nil
	case info == 25:
		b, ok := d.take(2)
		if !ok {
			return 0, 0, ErrMalformed
		}
		return major, uint64(binary.BigEndian.Uint16(b)), nil
	case info == 26:
		b, ok := d.take(4)
		if !ok {
			return 0, 0, ErrMalformed
		}
		return major, uint64(binary.BigEndian.Uint32(b)), nil
	default:
		return 0, 0, ErrMalformed
	}
}

func (d *Decoder) item(depth int) (any, error) {
	if depth > maxNestingDepth {
		return nil, ErrMalformed
	}

	major, arg, err := d.head()
	if err != nil {
		return nil, err
	}

	switch major {
	case majorUnsignedInteger:
		return int64(arg), nil

	case majorNegativeInteger:
		// COSE key maps use negative integer labels (-1, -2, -3).
		return -1 - int64(arg), nil

	case majorByteString:
		b, ok := d.take(int(arg))
		if !ok {
			return nil, ErrMalformed
		}
		out := make([]byte, len(b))
		copy(out, b)
		return out, nil

	case majorTextString:
		b, ok := d.take(int(arg))
		if !ok {
			return nil, ErrMalformed
		}
		return string(b), nil

	case majorArray:
		if arg > uint64(d.remaining()) {
			return nil, ErrMalformed
		}
		arr := make([]any, 0, arg)
		for i := uint64(0); i < arg; i++ {
			v, err := d.item(depth + 1)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil

	case majorMap:
		if arg > uint64(d.remaining()) {
			return nil, ErrMalformed
		}
		m := make(map[any]any, arg)
		for i := uint64(0); i < arg; i++ {
			k, err := d.item(depth + 1)
			if err != nil {
				return nil, err
			}
			switch k.(type) {
			case int64, string:
			default:
				return nil, ErrMalformed
			}
			v, err := d.item(depth + 1)
			if err != nil {
				return nil, err
			}
			m[k] = v
		}
		return m, nil

	default:
		return nil, ErrMalformed
	}
}
