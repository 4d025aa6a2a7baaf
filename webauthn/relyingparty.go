// Package webauthn runs passwordless registration and authentication
// ceremonies for a WebAuthn relying party.
//
// The package is transport-agnostic: callers deliver the JSON shapes to
// and from the client however they like. Credential and challenge
// persistence happen behind the CredentialStore and challenge.Store
// contracts.
package webauthn

import (
	"context"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/splitsecure/go-webauthn/challenge"
)

// Defaults applied by New for zero Config fields.
const (
	DefaultTimeout           = 60 * time.Second
	DefaultMaxCredentials    = 10
	DefaultUserVerification  = "preferred"
	DefaultResidentKey       = "preferred"
	DefaultAttestation       = "none"
	DefaultCredentialLabel   = "passkey"
	defaultChallengeLifetime = challenge.DefaultTTL
)

// Config describes the relying party.
type Config struct {
	// RPID is the relying party identifier, the authentication domain,
	// e.g. "login.example.com".
	RPID string

	// RPName is the service's display name shown by authenticators.
	// Defaults to RPID.
	RPName string

	// Origin is the exact expected clientDataJSON origin including scheme
	// and any non-default port, e.g. "https://login.example.com".
	Origin string

	// Timeout is the ceremony timeout advertised to clients.
	Timeout time.Duration

	// ChallengeTTL bounds how long issued challenges stay consumable.
	ChallengeTTL time.Duration

	// MaxCredentialsPerUser caps registrations per identity.
	MaxCredentialsPerUser int

	// UserVerification is the advertised user-verification preference.
	UserVerification string

	// Attestation is the advertised attestation conveyance preference.
	Attestation string
}

// RelyingParty coordinates registration and authentication ceremonies.
type RelyingParty struct {
	cfg         Config
	credentials CredentialStore
	sessions    challenge.Store
	challenges  *challenge.Manager
	events      SecurityEventSink
	now         func() time.Time
}

// Option configures a RelyingParty.
type Option func(*RelyingParty)

// WithSecurityEventSink registers a sink for counter-regression events.
func WithSecurityEventSink(sink SecurityEventSink) Option {
	return func(rp *RelyingParty) { rp.events = sink }
}

// WithClock substitutes the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(rp *RelyingParty) { rp.now = now }
}

// New creates a RelyingParty. The sessions store backs both challenges
// and the transient session-to-user bindings of username-full logins; it
// may be the same store the host system uses for other expiring state.
func New(cfg Config, credentials CredentialStore, sessions challenge.Store, opts ...Option) (*RelyingParty, error) {
	if cfg.RPID == "" {
		return nil, pkgerrors.New("webauthn: config RPID is required")
	}
	if cfg.Origin == "" {
		return nil, pkgerrors.New("webauthn: config Origin is required")
	}
	if credentials == nil {
		return nil, pkgerrors.New("webauthn: credential store is required")
	}
	if sessions == nil {
		return nil, pkgerrors.New("webauthn: session store is required")
	}
	if cfg.RPName == "" {
		cfg.RPName = cfg.RPID
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ChallengeTTL == 0 {
		cfg.ChallengeTTL = defaultChallengeLifetime
	}
	if cfg.MaxCredentialsPerUser == 0 {
		cfg.MaxCredentialsPerUser = DefaultMaxCredentials
	}
	if cfg.UserVerification == "" {
		cfg.UserVerification = DefaultUserVerification
	}
	if cfg.Attestation == "" {
		cfg.Attestation = DefaultAttestation
	}

	rp := &RelyingParty{
		cfg:         cfg,
		credentials: credentials,
		sessions:    sessions,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(rp)
	}
	rp.challenges = challenge.NewManager(sessions,
		challenge.WithTTL(cfg.ChallengeTTL),
		challenge.WithClock(rp.now),
	)
	return rp, nil
}

func (rp *RelyingParty) notifyCounterRegressed(ctx context.Context, userID string, credentialID []byte, stored, presented uint32) {
	if rp.events == nil {
		return
	}
	rp.events.CounterRegressed(ctx, userID, credentialID, stored, presented)
}
