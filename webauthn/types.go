package webauthn

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// URLEncodedBase64 marshals byte fields as unpadded base64url, the
// encoding WebAuthn uses for binary values in transit. Padded input is
// accepted when decoding.
type URLEncodedBase64 []byte

func (e URLEncodedBase64) MarshalJSON() ([]byte, error) {
	return json.Marshal(base64.RawURLEncoding.EncodeToString(e))
}

func (e *URLEncodedBase64) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return err
	}
	*e = b
	return nil
}

// User identifies the account a registration ceremony is run for.
type User struct {
	// ID is the stable user handle, opaque to authenticators.
	ID string
	// Name is the account name shown in authenticator UI.
	Name string
	// DisplayName is the human-friendly name shown in authenticator UI.
	DisplayName string
}

// RPInfo is the relying party block of registration options.
type RPInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserInfo is the user block of registration options.
type UserInfo struct {
	ID          URLEncodedBase64 `json:"id"`
	Name        string           `json:"name"`
	DisplayName string           `json:"displayName"`
}

// CredentialParam advertises a supported signature algorithm.
type CredentialParam struct {
	Type string `json:"type"`
	Alg  int64  `json:"alg"`
}

// CredentialDescriptor references a stored credential in exclude and
// allow lists.
type CredentialDescriptor struct {
	Type       string           `json:"type"`
	ID         URLEncodedBase64 `json:"id"`
	Transports []string         `json:"transports,omitempty"`
}

// AuthenticatorSelection narrows which authenticators may respond to a
// registration request.
type AuthenticatorSelection struct {
	ResidentKey      string `json:"residentKey"`
	UserVerification string `json:"userVerification"`
}

// RegistrationOptions is handed to the client to start a registration
// ceremony.
type RegistrationOptions struct {
	Challenge              URLEncodedBase64       `json:"challenge"`
	RP                     RPInfo                 `json:"rp"`
	User                   UserInfo               `json:"user"`
	PubKeyCredParams       []CredentialParam      `json:"pubKeyCredParams"`
	Timeout                int64                  `json:"timeout"`
	Attestation            string                 `json:"attestation"`
	AuthenticatorSelection AuthenticatorSelection `json:"authenticatorSelection"`
	ExcludeCredentials     []CredentialDescriptor `json:"excludeCredentials"`
}

// RegistrationResponse is the client's attestation proof.
type RegistrationResponse struct {
	ClientDataJSON    URLEncodedBase64 `json:"clientDataJSON"`
	AttestationObject URLEncodedBase64 `json:"attestationObject"`
	Transports        []string         `json:"transports,omitempty"`
	// Label optionally names the new credential for management UI.
	Label string `json:"label,omitempty"`
}

// AuthenticationOptions is handed to the client to start an
// authentication ceremony.
type AuthenticationOptions struct {
	Challenge        URLEncodedBase64       `json:"challenge"`
	RPID             string                 `json:"rpId"`
	Timeout          int64                  `json:"timeout"`
	UserVerification string                 `json:"userVerification"`
	SessionID        string                 `json:"sessionId"`
	AllowCredentials []CredentialDescriptor `json:"allowCredentials,omitempty"`
}

// AuthenticationResponse is the client's assertion proof.
type AuthenticationResponse struct {
	ID                URLEncodedBase64 `json:"id"`
	SessionID         string           `json:"sessionId"`
	ClientDataJSON    URLEncodedBase64 `json:"clientDataJSON"`
	AuthenticatorData URLEncodedBase64 `json:"authenticatorData"`
	Signature         URLEncodedBase64 `json:"signature"`
}

// collectedClientData is the browser-built JSON both ceremonies sign
// over.
//
// https://www.w3.org/TR/webauthn-3/#dictionary-client-data
type collectedClientData struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Origin    string `json:"origin"`
}

func parseClientData(clientDataJSON []byte) (*collectedClientData, []byte, error) {
	var cd collectedClientData
	if err := json.Unmarshal(clientDataJSON, &cd); err != nil {
		return nil, nil, fmt.Errorf("%w: parsing client data: %v", ErrInvalidResponse, err)
	}
	if cd.Type == "" || cd.Challenge == "" || cd.Origin == "" {
		return nil, nil, fmt.Errorf("%w: client data lacks required fields", ErrInvalidResponse)
	}
	challenge, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(cd.Challenge, "="))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: client data challenge is not base64url: %v", ErrInvalidResponse, err)
	}
	return &cd, challenge, nil
}
