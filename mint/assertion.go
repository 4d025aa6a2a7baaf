package mint

import (
	"crypto/sha256"

	"github.com/splitsecure/go-webauthn/authdata"
)

// AssertionInput controls the shape of a minted assertion response.
type AssertionInput struct {
	Challenge []byte
	Origin    string
	RPID      string

	SignCount uint32

	// RawSignature emits the 64-byte r||s form some clients produce for
	// ES256 instead of DER.
	RawSignature bool

	// OmitUserPresence leaves the user-present flag clear.
	OmitUserPresence bool
}

// AssertionOutput is a complete authentication ceremony response minus
// the transport envelope.
type AssertionOutput struct {
	ClientDataJSON    []byte
	AuthenticatorData []byte
	Signature         []byte
}

// CreateAssertion mints the response an authenticator would return from
// navigator.credentials.get: authenticator data plus a signature over
// authenticatorData || SHA-256(clientDataJSON).
func (a *Authenticator) CreateAssertion(in *AssertionInput) (AssertionOutput, error) {
	clientDataJSON, err := marshalClientData("webauthn.get", in.Challenge, in.Origin)
	if err != nil {
		return AssertionOutput{}, err
	}

	rpIDHash := sha256.Sum256([]byte(in.RPID))
	flags := byte(0)
	if !in.OmitUserPresence {
		flags |= authdata.FlagUserPresent
	}
	authData, err := authdata.Marshal(&authdata.T{
		RPIDHash:  rpIDHash[:],
		Flags:     flags,
		SignCount: in.SignCount,
	})
	if err != nil {
		return AssertionOutput{}, err
	}

	clientDataHash := sha256.Sum256(clientDataJSON)
	message := append(append([]byte{}, authData...), clientDataHash[:]...)
	sig, err := a.sign(message, in.RawSignature)
	if err != nil {
		return AssertionOutput{}, err
	}

	return AssertionOutput{
		ClientDataJSON:    clientDataJSON,
		AuthenticatorData: authData,
		Signature:         sig,
	}, nil
}
