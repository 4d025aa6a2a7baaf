package webauthn

import "errors"

// Ceremony failures. Every verification step either proceeds or returns
// exactly one of these, wrapped with context; none are retried. Callers
// should surface a generic failure to end users and keep the specific
// kind for logs, so a probing attacker cannot learn which step rejected
// the response.
var (
	// ErrChallengeExpired: no live challenge exists for the ceremony's
	// scope, because none was issued, it was already consumed, or its TTL
	// elapsed.
	ErrChallengeExpired = errors.New("webauthn: challenge expired or not found")

	// ErrChallengeMismatch: the challenge embedded in clientDataJSON does
	// not equal the server-issued value.
	ErrChallengeMismatch = errors.New("webauthn: challenge mismatch")

	// ErrOriginMismatch: clientDataJSON.origin differs from the configured
	// origin.
	ErrOriginMismatch = errors.New("webauthn: origin mismatch")

	// ErrTypeMismatch: clientDataJSON.type is not the expected ceremony
	// type.
	ErrTypeMismatch = errors.New("webauthn: client data type mismatch")

	// ErrRPIDMismatch: the rpIdHash in authenticator data is not the
	// SHA-256 of the configured relying party ID.
	ErrRPIDMismatch = errors.New("webauthn: relying party id mismatch")

	// ErrUserPresenceMissing: the authenticator did not assert user
	// presence.
	ErrUserPresenceMissing = errors.New("webauthn: user presence flag not set")

	// ErrMissingCredential: a registration response carried no attested
	// credential data.
	ErrMissingCredential = errors.New("webauthn: attested credential data missing")

	// ErrCredentialNotFound: the presented credential ID is unknown.
	ErrCredentialNotFound = errors.New("webauthn: credential not found")

	// ErrMalformedCBOR: a CBOR payload or authenticator data structure
	// failed to parse.
	ErrMalformedCBOR = errors.New("webauthn: malformed cbor payload")

	// ErrInvalidResponse: the ceremony response is structurally invalid,
	// e.g. clientDataJSON is not JSON or lacks required fields.
	ErrInvalidResponse = errors.New("webauthn: invalid ceremony response")

	// ErrUnsupportedAlgorithm: the credential's COSE key uses a key type
	// or algorithm other than ES256 or RS256.
	ErrUnsupportedAlgorithm = errors.New("webauthn: unsupported algorithm")

	// ErrSignatureInvalid: the assertion signature failed verification.
	ErrSignatureInvalid = errors.New("webauthn: signature verification failed")

	// ErrCounterRegressed: the assertion's signature counter did not
	// advance past the stored value. A possible cloned authenticator;
	// callers should treat this as a security event.
	ErrCounterRegressed = errors.New("webauthn: signature counter regressed")

	// ErrMaxCredentialsReached: the user already owns the configured
	// maximum number of credentials.
	ErrMaxCredentialsReached = errors.New("webauthn: maximum credentials reached")

	// ErrStorageFailure: the credential store failed.
	ErrStorageFailure = errors.New("webauthn: storage failure")
)
