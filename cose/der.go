package cose

import (
	"encoding/binary"
)

// Minimal DER construction for the encodings this package emits: INTEGER,
// BIT STRING, OBJECT IDENTIFIER (pre-encoded), SEQUENCE. Only definite
// lengths are produced.

const (
	tagInteger   = 0x02
	tagBitString = 0x03
	tagSequence  = 0x30
)

// encodeLength emits a DER length field: short form below 128, otherwise
// the minimal long form.
func encodeLength(n int) []byte {
	if n < 0x80 {
		return []byte{byte(n)}
	}
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(n))
	i := 0
	for buf[i] == 0 {
		i++
	}
	out := make([]byte, 0, 5)
	out = append(out, 0x80|byte(4-i))
	return append(out, buf[i:]...)
}

// encodeInteger emits a DER INTEGER from unsigned big-endian bytes.
// Leading zero bytes are stripped, then a single 0x00 is prepended when
// the high bit of the first remaining byte is set, so the value stays
// non-negative.
func encodeInteger(b []byte) []byte {
	i := 0
	for i < len(b)-1 && b[i] == 0 {
		i++
	}
	b = b[i:]
	if len(b) == 0 {
		b = []byte{0}
	}
	if b[0]&0x80 != 0 {
		b = append([]byte{0}, b...)
	}
	out := []byte{tagInteger}
	out = append(out, encodeLength(len(b))...)
	return append(out, b...)
}

// encodeBitString emits a DER BIT STRING with no unused bits.
func encodeBitString(b []byte) []byte {
	out := []byte{tagBitString}
	out = append(out, encodeLength(len(b)+1)...)
	out = append(out, 0x00)
	return append(out, b...)
}

// encodeSequence wraps already-encoded contents in a DER SEQUENCE.
func encodeSequence(contents []byte) []byte {
	out := []byte{tagSequence}
	out = append(out, encodeLength(len(contents))...)
	return append(out, contents...)
}

// isDERSequence reports whether b is plausibly a DER SEQUENCE: a 0x30 tag
// whose length field accounts for the entire buffer.
func isDERSequence(b []byte) bool {
	if len(b) < 2 || b[0] != tagSequence {
		return false
	}
	if b[1] < 0x80 {
		return int(b[1]) == len(b)-2
	}
	n := int(b[1] & 0x7f)
	if n == 0 || n > 4 || len(b) < 2+n {
		return false
	}
	var length int
	for _, c := range b[2 : 2+n] {
		length = length<<8 | int(c)
	}
	return length == len(b)-2-n
}

// Pre-encoded AlgorithmIdentifier values for the two supported key types.
var (
	// SEQUENCE { OID 1.2.840.10045.2.1 (ecPublicKey), OID 1.2.840.10045.3.1.7 (prime256v1) }
	algIDECP256 = []byte{
		0x30, 0x13,
		0x06, 0x07, 0x2a, 0x86, 0x48, 0xce, 0x3d, 0x02, 0x01,
		0x06, 0x08, 0x2a, 0x86, 0x48, 0xce, 0x3d, 0x03, 0x01, 0x07,
	}
	// SEQUENCE { OID 1.2.840.113549.1.1.1 (rsaEncryption), NULL }
	algIDRSA = []byte{
		0x30, 0x0d,
		0x06, 0x09, 0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x01, 0x01, 0x01,
		0x05, 0x00,
	}
)

// MarshalPKIX encodes the key as a DER SubjectPublicKeyInfo, built from
// the COSE parameters without going through a key-management layer.
func (k *PublicKey) MarshalPKIX() ([]byte, error) {
	switch k.alg {
	case ES256:
		// Uncompressed point: 0x04 || X || Y, each coordinate 32 bytes.
		point := make([]byte, 65)
		point[0] = 0x04
		k.ec.X.FillBytes(point[1:33])
		k.ec.Y.FillBytes(point[33:])

		contents := append(append([]byte{}, algIDECP256...), encodeBitString(point)...)
		return encodeSequence(contents), nil

	case RS256:
		n := encodeInteger(k.rsa.N.Bytes())
		e := encodeInteger(big64(k.rsa.E))
		pkcs1 := encodeSequence(append(n, e...))

		contents := append(append([]byte{}, algIDRSA...), encodeBitString(pkcs1)...)
		return encodeSequence(contents), nil

	default:
		return nil, ErrUnsupportedAlgorithm
	}
}

func big64(v int) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	i := 0
	for i < 7 && buf[i] == 0 {
		i++
	}
	return buf[i:]
}
