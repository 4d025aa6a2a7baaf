package webauthn

import (
	"context"
	"time"
)

// Credential is a stored public-key credential. It is created by a
// successful registration ceremony; only a successful authentication
// ceremony mutates it (counter and last-used time).
type Credential struct {
	// UserID is the owning identity.
	UserID string

	// ID is the authenticator-assigned credential ID. It is globally
	// unique and is the sole lookup key during authentication, before the
	// owner is known.
	ID []byte

	// PublicKey is the raw CBOR-encoded COSE public key.
	PublicKey []byte

	// SignCount is the last accepted signature counter. Monotonically
	// non-decreasing; zero forever for counterless authenticators.
	SignCount uint32

	// Transports are hints the client supplied at registration (e.g.
	// "usb", "internal").
	Transports []string

	// AAGUID identifies the authenticator model, 16 bytes, often all
	// zeroes under "none" attestation.
	AAGUID []byte

	// Label is a human-readable name for management UI.
	Label string

	CreatedAt  time.Time
	LastUsedAt time.Time
}

// CredentialStore persists credentials. Implementations must enforce
// global uniqueness of the credential ID and must make UpdateSignCount a
// compare-and-set against the previously read counter, never a blind
// write, so concurrent replays cannot overwrite a newer counter.
type CredentialStore interface {
	// GetByID returns the credential with the given ID, or
	// ErrCredentialNotFound.
	GetByID(ctx context.Context, credentialID []byte) (*Credential, error)

	// ListForUser returns all credentials owned by the user.
	ListForUser(ctx context.Context, userID string) ([]Credential, error)

	// CountForUser returns how many credentials the user owns.
	CountForUser(ctx context.Context, userID string) (int, error)

	// Insert stores a new credential.
	Insert(ctx context.Context, cred *Credential) error

	// UpdateSignCount sets the counter and last-used time, conditional on
	// the stored counter still equaling oldCount. A conditional miss
	// returns ErrCounterRegressed.
	UpdateSignCount(ctx context.Context, credentialID []byte, oldCount, newCount uint32, lastUsedAt time.Time) error
}

// SecurityEventSink receives fire-and-forget notifications about
// suspected cloned authenticators. The core never depends on the
// outcome.
type SecurityEventSink interface {
	CounterRegressed(ctx context.Context, userID string, credentialID []byte, storedCount, presentedCount uint32)
}
