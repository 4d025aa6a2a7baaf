package mint

import (
	"crypto/sha256"

	"github.com/fxamacker/cbor/v2"

	"github.com/splitsecure/go-webauthn/authdata"
)

// RegistrationInput controls the shape of a minted attestation response.
// Zero values produce a well-formed "none"-format response; the knobs
// exist so tests can produce each rejectable variant.
type RegistrationInput struct {
	Challenge []byte
	Origin    string
	RPID      string

	SignCount uint32

	// OmitUserPresence leaves the user-present flag clear.
	OmitUserPresence bool

	// OmitAttestedCredentialData builds authenticator data without the
	// attested credential block, which registration must reject.
	OmitAttestedCredentialData bool

	// TrailingExtensions appends raw bytes after the COSE key, standing in
	// for WebAuthn extension data the relying party must skip.
	TrailingExtensions []byte
}

// RegistrationOutput is a complete registration ceremony response.
type RegistrationOutput struct {
	ClientDataJSON    []byte
	AttestationObject []byte
}

type attestationObject struct {
	Format   string         `cbor:"fmt"`
	AttStmt  map[string]any `cbor:"attStmt"`
	AuthData []byte         `cbor:"authData"`
}

// CreateRegistration mints the response an authenticator would return
// from navigator.credentials.create under a "none" attestation policy.
func (a *Authenticator) CreateRegistration(in *RegistrationInput) (RegistrationOutput, error) {
	clientDataJSON, err := marshalClientData("webauthn.create", in.Challenge, in.Origin)
	if err != nil {
		return RegistrationOutput{}, err
	}

	rpIDHash := sha256.Sum256([]byte(in.RPID))
	flags := byte(0)
	if !in.OmitUserPresence {
		flags |= authdata.FlagUserPresent
	}

	ad := authdata.T{
		RPIDHash:  rpIDHash[:],
		Flags:     flags,
		SignCount: in.SignCount,
	}
	if !in.OmitAttestedCredentialData {
		coseKey, err := a.COSEKey()
		if err != nil {
			return RegistrationOutput{}, err
		}
		if len(in.TrailingExtensions) > 0 {
			ad.Flags |= authdata.FlagHasExtensionData
			coseKey = append(coseKey, in.TrailingExtensions...)
		}
		ad.Flags |= authdata.FlagHasAttestedCredentialData
		ad.AttestedCredentialData = authdata.AttestedCredentialData{
			AAGUID:              a.AAGUID,
			CredentialID:        a.CredentialID,
			CredentialPublicKey: coseKey,
		}
	}

	authData, err := authdata.Marshal(&ad)
	if err != nil {
		return RegistrationOutput{}, err
	}

	attObj, err := cbor.Marshal(attestationObject{
		Format:   "none",
		AttStmt:  map[string]any{},
		AuthData: authData,
	})
	if err != nil {
		return RegistrationOutput{}, err
	}

	return RegistrationOutput{
		ClientDataJSON:    clientDataJSON,
		AttestationObject: attObj,
	}, nil
}
