// Package mint fabricates WebAuthn ceremony responses with real key
// material: attestation objects for registration and signed assertions
// for authentication. It exists so relying-party verification can be
// exercised end to end without a browser or hardware authenticator.
package mint

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/splitsecure/go-webauthn/authdata"
	"github.com/splitsecure/go-webauthn/cose"
)

// Authenticator is a software stand-in for a security key. It holds one
// ES256 or RS256 key pair plus the identifiers an authenticator would
// report.
type Authenticator struct {
	Algorithm cose.Algorithm

	ES256Key *ecdsa.PrivateKey
	RS256Key *rsa.PrivateKey

	AAGUID       []byte
	CredentialID []byte
}

// NewES256Authenticator generates a P-256 software authenticator.
func NewES256Authenticator() (*Authenticator, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	a := &Authenticator{Algorithm: cose.ES256, ES256Key: key}
	return a, a.fillIdentifiers()
}

// NewRS256Authenticator generates a 2048-bit RSA software authenticator.
func NewRS256Authenticator() (*Authenticator, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	a := &Authenticator{Algorithm: cose.RS256, RS256Key: key}
	return a, a.fillIdentifiers()
}

func (a *Authenticator) fillIdentifiers() error {
	a.AAGUID = make([]byte, authdata.AAGUIDSize)
	a.CredentialID = make([]byte, 16)
	_, err := io.ReadFull(rand.Reader, a.CredentialID)
	return err
}

// COSEKey encodes the authenticator's public key as a CBOR COSE key map.
func (a *Authenticator) COSEKey() ([]byte, error) {
	switch a.Algorithm {
	case cose.ES256:
		x := make([]byte, 32)
		y := make([]byte, 32)
		a.ES256Key.PublicKey.X.FillBytes(x)
		a.ES256Key.PublicKey.Y.FillBytes(y)
		return cbor.Marshal(map[int64]any{
			1:  2,  // kty: EC2
			3:  -7, // alg: ES256
			-1: 1,  // crv: P-256
			-2: x,
			-3: y,
		})
	case cose.RS256:
		return cbor.Marshal(map[int64]any{
			1:  3,    // kty: RSA
			3:  -257, // alg: RS256
			-1: a.RS256Key.PublicKey.N.Bytes(),
			-2: []byte{0x01, 0x00, 0x01},
		})
	default:
		return nil, fmt.Errorf("mint: unknown algorithm %d", a.Algorithm)
	}
}

func (a *Authenticator) sign(message []byte, raw bool) ([]byte, error) {
	digest := sha256.Sum256(message)
	switch a.Algorithm {
	case cose.ES256:
		if raw {
			r, s, err := ecdsa.Sign(rand.Reader, a.ES256Key, digest[:])
			if err != nil {
				return nil, err
			}
			sig := make([]byte, 64)
			r.FillBytes(sig[:32])
			s.FillBytes(sig[32:])
			return sig, nil
		}
		return ecdsa.SignASN1(rand.Reader, a.ES256Key, digest[:])
	case cose.RS256:
		if raw {
			return nil, fmt.Errorf("mint: raw signatures are an ES256 shape")
		}
		return rsa.SignPKCS1v15(rand.Reader, a.RS256Key, crypto.SHA256, digest[:])
	default:
		return nil, fmt.Errorf("mint: unknown algorithm %d", a.Algorithm)
	}
}

type clientData struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Origin    string `json:"origin"`
}

func marshalClientData(typ string, challenge []byte, origin string) ([]byte, error) {
	return json.Marshal(clientData{
		Type:      typ,
		Challenge: base64.RawURLEncoding.EncodeToString(challenge),
		Origin:    origin,
	})
}
