package webauthn

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"

	"github.com/splitsecure/go-webauthn/authdata"
	"github.com/splitsecure/go-webauthn/cbor"
	"github.com/splitsecure/go-webauthn/challenge"
	"github.com/splitsecure/go-webauthn/cose"
)

const clientDataTypeCreate = "webauthn.create"

func registrationScope(userID string) string {
	return "registration:" + userID
}

// BeginRegistration issues a challenge for the user and builds the
// options the client passes to navigator.credentials.create. Credentials
// the user already owns are listed in excludeCredentials so a returning
// authenticator is not registered twice.
func (rp *RelyingParty) BeginRegistration(ctx context.Context, user User) (*RegistrationOptions, error) {
	if user.ID == "" {
		return nil, pkgerrors.New("webauthn: user ID is required")
	}

	count, err := rp.credentials.CountForUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: counting credentials: %v", ErrStorageFailure, err)
	}
	if count >= rp.cfg.MaxCredentialsPerUser {
		return nil, ErrMaxCredentialsReached
	}

	existing, err := rp.credentials.ListForUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing credentials: %v", ErrStorageFailure, err)
	}
	exclude := make([]CredentialDescriptor, 0, len(existing))
	for _, cred := range existing {
		exclude = append(exclude, CredentialDescriptor{
			Type:       "public-key",
			ID:         URLEncodedBase64(cred.ID),
			Transports: cred.Transports,
		})
	}

	ch, err := rp.challenges.Issue(ctx, registrationScope(user.ID))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "issuing registration challenge")
	}

	name := user.Name
	if name == "" {
		name = user.ID
	}
	displayName := user.DisplayName
	if displayName == "" {
		displayName = name
	}

	return &RegistrationOptions{
		Challenge: ch,
		RP:        RPInfo{ID: rp.cfg.RPID, Name: rp.cfg.RPName},
		User: UserInfo{
			ID:          URLEncodedBase64(user.ID),
			Name:        name,
			DisplayName: displayName,
		},
		// ES256 first; clients pick the first algorithm they support.
		PubKeyCredParams: []CredentialParam{
			{Type: "public-key", Alg: int64(cose.ES256)},
			{Type: "public-key", Alg: int64(cose.RS256)},
		},
		Timeout:     rp.cfg.Timeout.Milliseconds(),
		Attestation: rp.cfg.Attestation,
		AuthenticatorSelection: AuthenticatorSelection{
			ResidentKey:      DefaultResidentKey,
			UserVerification: rp.cfg.UserVerification,
		},
		ExcludeCredentials: exclude,
	}, nil
}

// FinishRegistration verifies the client's attestation response and, on
// success, persists and returns the new credential. Verification is
// fail-fast: the first failing step aborts the ceremony with its typed
// error and nothing is written.
func (rp *RelyingParty) FinishRegistration(ctx context.Context, user User, resp *RegistrationResponse) (*Credential, error) {
	if user.ID == "" {
		return nil, pkgerrors.New("webauthn: user ID is required")
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: missing response", ErrInvalidResponse)
	}

	issued, err := rp.challenges.Consume(ctx, registrationScope(user.ID))
	if err != nil {
		if errors.Is(err, challenge.ErrNotFound) || errors.Is(err, challenge.ErrExpired) {
			return nil, fmt.Errorf("%w: %v", ErrChallengeExpired, err)
		}
		return nil, fmt.Errorf("%w: consuming challenge: %v", ErrStorageFailure, err)
	}

	cd, presented, err := parseClientData(resp.ClientDataJSON)
	if err != nil {
		return nil, err
	}
	if cd.Type != clientDataTypeCreate {
		return nil, fmt.Errorf("%w: expected %q, got %q", ErrTypeMismatch, clientDataTypeCreate, cd.Type)
	}
	if subtle.ConstantTimeCompare(issued, presented) != 1 {
		return nil, ErrChallengeMismatch
	}
	if cd.Origin != rp.cfg.Origin {
		return nil, fmt.Errorf("%w: expected %q, got %q", ErrOriginMismatch, rp.cfg.Origin, cd.Origin)
	}

	authData, err := parseAttestationObject(resp.AttestationObject)
	if err != nil {
		return nil, err
	}

	var ad authdata.T
	if err := authdata.Unmarshal(authData, &ad); err != nil {
		return nil, fmt.Errorf("%w: authenticator data: %v", ErrMalformedCBOR, err)
	}
	if !ad.HasAttestedCredentialData() {
		return nil, ErrMissingCredential
	}
	if err := rp.checkAuthData(&ad); err != nil {
		return nil, err
	}

	// Registration options only advertise ES256 and RS256; reject any key
	// the verifier could not use later rather than storing it.
	if _, err := cose.ParseKey(ad.AttestedCredentialData.CredentialPublicKey); err != nil {
		return nil, mapCOSEError(err)
	}

	label := resp.Label
	if label == "" {
		label = DefaultCredentialLabel
	}
	cred := &Credential{
		UserID:     user.ID,
		ID:         ad.AttestedCredentialData.CredentialID,
		PublicKey:  ad.AttestedCredentialData.CredentialPublicKey,
		SignCount:  ad.SignCount,
		Transports: resp.Transports,
		AAGUID:     ad.AttestedCredentialData.AAGUID,
		Label:      label,
		CreatedAt:  rp.now(),
	}
	if err := rp.credentials.Insert(ctx, cred); err != nil {
		return nil, fmt.Errorf("%w: inserting credential: %v", ErrStorageFailure, err)
	}
	return cred, nil
}

// parseAttestationObject extracts the authData byte string from the
// CBOR-encoded attestation object. The attestation statement itself is
// not evaluated; the relying party runs with a "none" attestation
// policy.
func parseAttestationObject(attestationObject []byte) ([]byte, error) {
	v, err := cbor.Unmarshal(attestationObject)
	if err != nil {
		return nil, fmt.Errorf("%w: attestation object: %v", ErrMalformedCBOR, err)
	}
	m, ok := v.(map[any]any)
	if !ok {
		return nil, fmt.Errorf("%w: attestation object is not a map", ErrMalformedCBOR)
	}
	authData, ok := m["authData"].([]byte)
	if !ok || len(authData) == 0 {
		return nil, fmt.Errorf("%w: attestation object lacks authData", ErrMalformedCBOR)
	}
	return authData, nil
}

// checkAuthData verifies the rpIdHash and user-presence requirements
// shared by both ceremonies.
func (rp *RelyingParty) checkAuthData(ad *authdata.T) error {
	want := sha256.Sum256([]byte(rp.cfg.RPID))
	if !bytes.Equal(ad.RPIDHash, want[:]) {
		return ErrRPIDMismatch
	}
	if !ad.UserPresent() {
		return ErrUserPresenceMissing
	}
	return nil
}

func mapCOSEError(err error) error {
	switch {
	case errors.Is(err, cose.ErrUnsupportedAlgorithm):
		return fmt.Errorf("%w: %v", ErrUnsupportedAlgorithm, err)
	case errors.Is(err, cose.ErrInvalidSignature):
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	default:
		return fmt.Errorf("%w: cose key: %v", ErrMalformedCBOR, err)
	}
}
