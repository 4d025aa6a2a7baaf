// Package cose parses COSE-encoded public keys and verifies WebAuthn
// signatures against them.
//
// Exactly two algorithms are supported: ES256 (EC2 keys on P-256 with
// ECDSA/SHA-256) and RS256 (RSA keys with RSASSA-PKCS1-v1.5/SHA-256).
// Any other (kty, alg) combination is rejected outright; there is no
// fallback path.
//
// https://www.rfc-editor.org/rfc/rfc8152.html
package cose

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"math/big"

	"github.com/splitsecure/go-webauthn/cbor"
)

var (
	// ErrUnsupportedAlgorithm is returned for any (kty, alg) pair other
	// than EC2/ES256 and RSA/RS256.
	ErrUnsupportedAlgorithm = errors.New("cose: unsupported key type or algorithm")

	// ErrInvalidKey is returned when a key map is structurally valid CBOR
	// but its parameters are missing or malformed.
	ErrInvalidKey = errors.New("cose: invalid key parameters")

	// ErrInvalidSignature is returned when a signature is malformed or
	// does not verify against the key and message.
	ErrInvalidSignature = errors.New("cose: invalid signature")
)

// Algorithm identifies a COSE signature algorithm.
//
// https://www.iana.org/assignments/cose/cose.xhtml#algorithms
type Algorithm int64

const (
	ES256 Algorithm = -7
	RS256 Algorithm = -257
)

// COSE key map labels and key type values used by the two supported
// algorithms.
//
// https://www.iana.org/assignments/cose/cose.xhtml#key-type-parameters
const (
	labelKty = 1
	labelAlg = 3

	labelEC2Crv = -1
	labelEC2X   = -2
	labelEC2Y   = -3

	labelRSAN = -1
	labelRSAE = -2

	keyTypeEC2 = 2
	keyTypeRSA = 3

	curveP256 = 1
)

// PublicKey is a parsed COSE public key. It is a closed union over the
// two supported algorithms.
type PublicKey struct {
	alg Algorithm
	ec  *ecdsa.PublicKey
	rsa *rsa.PublicKey
}

// Algorithm returns the signature algorithm the key verifies.
func (k *PublicKey) Algorithm() Algorithm {
	return k.alg
}

// ParseKey decodes a CBOR-encoded COSE key map.
func ParseKey(coseKey []byte) (*PublicKey, error) {
	v, err := cbor.Unmarshal(coseKey)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[any]any)
	if !ok {
		return nil, cbor.ErrMalformed
	}

	kty, ok := mapInt(m, labelKty)
	if !ok {
		return nil, ErrInvalidKey
	}
	alg, ok := mapInt(m, labelAlg)
	if !ok {
		return nil, ErrInvalidKey
	}

	switch {
	case kty == keyTypeEC2 && Algorithm(alg) == ES256:
		return parseEC2Key(m)
	case kty == keyTypeRSA && Algorithm(alg) == RS256:
		return parseRSAKey(m)
	default:
		return nil, ErrUnsupportedAlgorithm
	}
}

func parseEC2Key(m map[any]any) (*PublicKey, error) {
	if crv, ok := mapInt(m, labelEC2Crv); ok && crv != curveP256 {
		return nil, ErrUnsupportedAlgorithm
	}
	x, ok := mapBytes(m, labelEC2X)
	if !ok || len(x) != 32 {
		return nil, ErrInvalidKey
	}
	y, ok := mapBytes(m, labelEC2Y)
	if !ok || len(y) != 32 {
		return nil, ErrInvalidKey
	}
	return &PublicKey{
		alg: ES256,
		ec: &ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(x),
			Y:     new(big.Int).SetBytes(y),
		},
	}, nil
}

func parseRSAKey(m map[any]any) (*PublicKey, error) {
	n, ok := mapBytes(m, labelRSAN)
	if !ok || len(n) == 0 {
		return nil, ErrInvalidKey
	}
	e, ok := mapBytes(m, labelRSAE)
	if !ok || len(e) == 0 || len(e) > 8 {
		return nil, ErrInvalidKey
	}
	exp := new(big.Int).SetBytes(e)
	if !exp.IsInt64() || exp.Int64() <= 1 || exp.Int64() > int64(1)<<31 {
		return nil, ErrInvalidKey
	}
	return &PublicKey{
		alg: RS256,
		rsa: &rsa.PublicKey{
			N: new(big.Int).SetBytes(n),
			E: int(exp.Int64()),
		},
	}, nil
}

// Verify checks sig over message. For ES256 the signature may be either a
// 64-byte raw r||s pair or DER-encoded; raw signatures are converted to
// DER before verification. RS256 signatures are always the PKCS#1 v1.5
// block, used as-is.
func (k *PublicKey) Verify(message, sig []byte) error {
	digest := sha256.Sum256(message)

	switch k.alg {
	case ES256:
		der, err := normalizeECDSASignature(sig)
		if err != nil {
			return err
		}
		if !ecdsa.VerifyASN1(k.ec, digest[:], der) {
			return ErrInvalidSignature
		}
		return nil

	case RS256:
		if err := rsa.VerifyPKCS1v15(k.rsa, crypto.SHA256, digest[:], sig); err != nil {
			return ErrInvalidSignature
		}
		return nil

	default:
		return ErrUnsupportedAlgorithm
	}
}

// normalizeECDSASignature accepts the two signature shapes WebAuthn
// clients produce. A DER SEQUENCE is detected by its leading 0x30 tag
// with a length field matching the buffer; anything else must be exactly
// 64 raw bytes.
func normalizeECDSASignature(sig []byte) ([]byte, error) {
	if isDERSequence(sig) {
		return sig, nil
	}
	if len(sig) != 64 {
		return nil, ErrInvalidSignature
	}
	r := encodeInteger(sig[:32])
	s := encodeInteger(sig[32:])
	return encodeSequence(append(r, s...)), nil
}

func mapInt(m map[any]any, label int64) (int64, bool) {
	v, ok := m[label].(int64)
	return v, ok
}

func mapBytes(m map[any]any, label int64) ([]byte, bool) {
	v, ok := m[label].([]byte)
	return v, ok
}
