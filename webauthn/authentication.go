package webauthn

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/splitsecure/go-webauthn/authdata"
	"github.com/splitsecure/go-webauthn/challenge"
	"github.com/splitsecure/go-webauthn/cose"
)

const clientDataTypeGet = "webauthn.get"

func authenticationScope(sessionID string) string {
	return "authentication:" + sessionID
}

func sessionUserScope(sessionID string) string {
	return "authentication-user:" + sessionID
}

// BeginLogin issues a challenge bound to a fresh random session ID and
// builds the options the client passes to navigator.credentials.get.
//
// userIDHint may be empty for username-less flows. When it names a user
// who owns credentials, those credential IDs are listed in
// allowCredentials and the session is bound to that user; otherwise
// allowCredentials is omitted and the authenticator discovers a resident
// key on its own.
func (rp *RelyingParty) BeginLogin(ctx context.Context, userIDHint string) (*AuthenticationOptions, error) {
	sessionID := uuid.NewString()

	var allow []CredentialDescriptor
	if userIDHint != "" {
		creds, err := rp.credentials.ListForUser(ctx, userIDHint)
		if err != nil {
			return nil, fmt.Errorf("%w: listing credentials: %v", ErrStorageFailure, err)
		}
		if len(creds) > 0 {
			for _, cred := range creds {
				allow = append(allow, CredentialDescriptor{
					Type:       "public-key",
					ID:         URLEncodedBase64(cred.ID),
					Transports: cred.Transports,
				})
			}
			expiresAt := rp.now().Add(rp.cfg.ChallengeTTL)
			if err := rp.sessions.Put(ctx, sessionUserScope(sessionID), []byte(userIDHint), expiresAt); err != nil {
				return nil, pkgerrors.Wrap(err, "recording session user binding")
			}
		}
	}

	ch, err := rp.challenges.Issue(ctx, authenticationScope(sessionID))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "issuing authentication challenge")
	}

	return &AuthenticationOptions{
		Challenge:        ch,
		RPID:             rp.cfg.RPID,
		Timeout:          rp.cfg.Timeout.Milliseconds(),
		UserVerification: rp.cfg.UserVerification,
		SessionID:        sessionID,
		AllowCredentials: allow,
	}, nil
}

// FinishLogin verifies the client's assertion response. On success it
// returns the authenticated user's ID after advancing the credential's
// signature counter and last-used time.
//
// A counter that fails to advance is reported to the security event sink
// and fails with ErrCounterRegressed without touching stored state: a
// stale counter is the signature of a cloned authenticator replaying an
// old assertion.
func (rp *RelyingParty) FinishLogin(ctx context.Context, resp *AuthenticationResponse) (string, error) {
	if resp == nil || resp.SessionID == "" || len(resp.ID) == 0 {
		return "", fmt.Errorf("%w: missing session id or credential id", ErrInvalidResponse)
	}

	issued, err := rp.challenges.Consume(ctx, authenticationScope(resp.SessionID))
	// The session-to-user binding is single-use either way.
	_, _, _ = rp.sessions.Take(ctx, sessionUserScope(resp.SessionID))
	if err != nil {
		if errors.Is(err, challenge.ErrNotFound) || errors.Is(err, challenge.ErrExpired) {
			return "", fmt.Errorf("%w: %v", ErrChallengeExpired, err)
		}
		return "", fmt.Errorf("%w: consuming challenge: %v", ErrStorageFailure, err)
	}

	cred, err := rp.credentials.GetByID(ctx, resp.ID)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return "", ErrCredentialNotFound
		}
		return "", fmt.Errorf("%w: loading credential: %v", ErrStorageFailure, err)
	}

	cd, presented, err := parseClientData(resp.ClientDataJSON)
	if err != nil {
		return "", err
	}
	if cd.Type != clientDataTypeGet {
		return "", fmt.Errorf("%w: expected %q, got %q", ErrTypeMismatch, clientDataTypeGet, cd.Type)
	}
	if subtle.ConstantTimeCompare(issued, presented) != 1 {
		return "", ErrChallengeMismatch
	}
	if cd.Origin != rp.cfg.Origin {
		return "", fmt.Errorf("%w: expected %q, got %q", ErrOriginMismatch, rp.cfg.Origin, cd.Origin)
	}

	var ad authdata.T
	if err := authdata.UnmarshalBase(resp.AuthenticatorData, &ad); err != nil {
		return "", fmt.Errorf("%w: authenticator data: %v", ErrMalformedCBOR, err)
	}
	if err := rp.checkAuthData(&ad); err != nil {
		return "", err
	}

	key, err := cose.ParseKey(cred.PublicKey)
	if err != nil {
		return "", mapCOSEError(err)
	}
	clientDataHash := sha256.Sum256(resp.ClientDataJSON)
	signed := make([]byte, 0, len(resp.AuthenticatorData)+len(clientDataHash))
	signed = append(signed, resp.AuthenticatorData...)
	signed = append(signed, clientDataHash[:]...)
	if err := key.Verify(signed, resp.Signature); err != nil {
		return "", mapCOSEError(err)
	}

	if err := rp.advanceSignCount(ctx, cred, ad.SignCount); err != nil {
		return "", err
	}
	return cred.UserID, nil
}

// advanceSignCount applies the anti-clone counter protocol. A zero
// counter on both sides means the authenticator does not implement one
// and the check is skipped for the credential's lifetime; this policy is
// deliberately not tightened, since some authenticators always report
// zero.
func (rp *RelyingParty) advanceSignCount(ctx context.Context, cred *Credential, newCount uint32) error {
	if newCount > 0 && newCount <= cred.SignCount {
		rp.notifyCounterRegressed(ctx, cred.UserID, cred.ID, cred.SignCount, newCount)
		return fmt.Errorf("%w: stored %d, presented %d", ErrCounterRegressed, cred.SignCount, newCount)
	}

	err := rp.credentials.UpdateSignCount(ctx, cred.ID, cred.SignCount, newCount, rp.now())
	if err != nil {
		if errors.Is(err, ErrCounterRegressed) {
			// Lost the compare-and-set race against a concurrent assertion.
			rp.notifyCounterRegressed(ctx, cred.UserID, cred.ID, cred.SignCount, newCount)
			return fmt.Errorf("%w: concurrent counter update", ErrCounterRegressed)
		}
		return fmt.Errorf("%w: updating counter: %v", ErrStorageFailure, err)
	}
	return nil
}
