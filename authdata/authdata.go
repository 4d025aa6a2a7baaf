// Package authdata parses and builds the WebAuthn authenticator data
// structure: a 32-byte relying-party ID hash, a flag byte, a 32-bit
// big-endian signature counter and, when flagged, attested credential
// data carrying the new credential's AAGUID, ID and COSE public key.
//
// https://www.w3.org/TR/webauthn-3/#sctn-authenticator-data
package authdata

import (
	"encoding/binary"
	"errors"

	"github.com/splitsecure/go-webauthn/cbor"
)

// Flag bits of the authenticator data flag byte.
const (
	FlagUserPresent               = byte(1)
	FlagUserVerified              = byte(1 << 2)
	FlagHasAttestedCredentialData = byte(1 << 6)
	FlagHasExtensionData          = byte(1 << 7)
)

// ErrTruncated is returned when the buffer is shorter than its declared
// contents.
var ErrTruncated = errors.New("authdata: truncated authenticator data")

// AAGUIDSize is the length of an authenticator model identifier.
const AAGUIDSize = 16

const baseSize = 32 + 1 + 4

// T is parsed authenticator data.
type T struct {
	RPIDHash  []byte
	Flags     byte
	SignCount uint32

	// Set only when FlagHasAttestedCredentialData is present.
	AttestedCredentialData AttestedCredentialData
}

// AttestedCredentialData describes the credential created during a
// registration ceremony.
type AttestedCredentialData struct {
	AAGUID       []byte
	CredentialID []byte

	// CredentialPublicKey holds the raw CBOR-encoded COSE key, trimmed to
	// exactly one CBOR item. Trailing extension data is discarded.
	CredentialPublicKey []byte
}

// UserPresent reports whether the authenticator performed a user
// presence test.
func (t *T) UserPresent() bool {
	return t.Flags&FlagUserPresent != 0
}

// UserVerified reports whether the authenticator verified the user.
func (t *T) UserVerified() bool {
	return t.Flags&FlagUserVerified != 0
}

// HasAttestedCredentialData reports whether attested credential data is
// present.
func (t *T) HasAttestedCredentialData() bool {
	return t.Flags&FlagHasAttestedCredentialData != 0
}

// Unmarshal parses authenticator data including attested credential data
// when the flag byte announces it.
func Unmarshal(src []byte, dst *T) error {
	rest, err := unmarshalBase(src, dst)
	if err != nil {
		return err
	}
	if dst.HasAttestedCredentialData() {
		if _, err := unmarshalAttestedCredentialData(rest, &dst.AttestedCredentialData); err != nil {
			return err
		}
	}
	return nil
}

// UnmarshalBase parses only the fixed 37-byte prefix. Authentication
// assertions are parsed this way; their authenticator data never carries
// attested credential data.
func UnmarshalBase(src []byte, dst *T) error {
	_, err := unmarshalBase(src, dst)
	return err
}

func unmarshalBase(src []byte, dst *T) (rest []byte, err error) {
	if len(src) < baseSize {
		return nil, ErrTruncated
	}
	dst.RPIDHash = src[0:32]
	dst.Flags = src[32]
	dst.SignCount = binary.BigEndian.Uint32(src[33:37])
	return src[37:], nil
}

func unmarshalAttestedCredentialData(src []byte, dst *AttestedCredentialData) (rest []byte, err error) {
	if len(src) < AAGUIDSize+2 {
		return nil, ErrTruncated
	}
	dst.AAGUID = src[:AAGUIDSize]

	credLen := int(binary.BigEndian.Uint16(src[AAGUIDSize : AAGUIDSize+2]))
	src = src[AAGUIDSize+2:]
	if len(src) < credLen {
		return nil, ErrTruncated
	}
	dst.CredentialID = src[:credLen]
	src = src[credLen:]

	// The COSE key is one CBOR item; anything after it is extension data.
	d := cbor.NewDecoder(src)
	if _, err := d.Decode(); err != nil {
		return nil, err
	}
	dst.CredentialPublicKey = src[:d.NumBytesRead()]
	return d.Rest(), nil
}
