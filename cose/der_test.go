package cose

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeLength(t *testing.T) {
	tests := []struct {
		n    int
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x81, 0x80}},
		{255, []byte{0x81, 0xff}},
		{256, []byte{0x82, 0x01, 0x00}},
		{65536, []byte{0x83, 0x01, 0x00, 0x00}},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, encodeLength(tt.n), "length %d", tt.n)
	}
}

func TestEncodeInteger(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want []byte
	}{
		{"zero", []byte{0x00}, []byte{0x02, 0x01, 0x00}},
		{"small", []byte{0x2a}, []byte{0x02, 0x01, 0x2a}},
		{"strips leading zeros", []byte{0x00, 0x00, 0x01}, []byte{0x02, 0x01, 0x01}},
		{"all zeros collapse", []byte{0x00, 0x00, 0x00}, []byte{0x02, 0x01, 0x00}},
		// The high bit forces a 0x00 prefix to keep the value positive.
		{"high bit", []byte{0x80}, []byte{0x02, 0x02, 0x00, 0x80}},
		{"stripped then high bit", []byte{0x00, 0xff, 0x01}, []byte{0x02, 0x03, 0x00, 0xff, 0x01}},
		{"two bytes", []byte{0x01, 0x02}, []byte{0x02, 0x02, 0x01, 0x02}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, encodeInteger(tt.in))
		})
	}
}

func TestEncodeIntegerLarge(t *testing.T) {
	// A 256-byte modulus-sized integer with the high bit set: 0x00
	// prefix plus long-form length.
	in := bytes.Repeat([]byte{0xab}, 256)
	out := encodeInteger(in)
	require.Equal(t, byte(0x02), out[0])
	require.Equal(t, []byte{0x82, 0x01, 0x01}, out[1:4])
	require.Equal(t, byte(0x00), out[4])
	require.Equal(t, in, out[5:])
}

func TestIsDERSequence(t *testing.T) {
	require.True(t, isDERSequence([]byte{0x30, 0x02, 0x01, 0x02}))
	require.True(t, isDERSequence(append([]byte{0x30, 0x81, 0x80}, make([]byte, 128)...)))

	require.False(t, isDERSequence(nil))
	require.False(t, isDERSequence([]byte{0x30}))
	require.False(t, isDERSequence([]byte{0x31, 0x01, 0x00}))
	// Length field not matching the buffer.
	require.False(t, isDERSequence([]byte{0x30, 0x05, 0x01, 0x02}))
	require.False(t, isDERSequence(append([]byte{0x30, 0x81, 0x80}, make([]byte, 127)...)))
}
