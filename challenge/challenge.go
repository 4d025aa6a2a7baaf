// Package challenge issues and consumes the single-use random challenges
// that bind a WebAuthn ceremony to one server-issued value.
//
// A challenge is keyed by a scope string ("registration:<user>",
// "authentication:<session>"), lives for a short TTL and is deleted the
// moment it is read back. Equality of the presented value is the
// coordinator's job; this package only guarantees a challenge cannot be
// consumed twice or across scopes.
package challenge

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"
)

// Size is the challenge length in bytes.
const Size = 32

// DefaultTTL bounds how long an issued challenge stays consumable.
const DefaultTTL = 120 * time.Second

var (
	// ErrNotFound indicates no challenge exists for the scope, either
	// because none was issued or because it was already consumed.
	ErrNotFound = errors.New("challenge: not found")

	// ErrExpired indicates the challenge's TTL elapsed before it was
	// consumed. The record is deleted as a side effect.
	ErrExpired = errors.New("challenge: expired")
)

// Store is an expiring key-value store. Take must remove the record
// atomically with the read so two concurrent consumers of the same scope
// cannot both succeed.
type Store interface {
	Put(ctx context.Context, scope string, value []byte, expiresAt time.Time) error
	Take(ctx context.Context, scope string) (value []byte, expiresAt time.Time, err error)
}

// Manager mints and consumes challenges against an injected store.
type Manager struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
	rand  io.Reader
}

type Option func(*Manager)

// WithTTL overrides the default challenge lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

// WithClock substitutes the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithRand substitutes the randomness source, for tests. Production use
// must keep the default crypto/rand reader.
func WithRand(r io.Reader) Option {
	return func(m *Manager) { m.rand = r }
}

// NewManager creates a Manager over the provided store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		ttl:   DefaultTTL,
		now:   time.Now,
		rand:  rand.Reader,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Issue generates Size cryptographically random bytes and stores them
// under scope, replacing any previous challenge for that scope.
func (m *Manager) Issue(ctx context.Context, scope string) ([]byte, error) {
	value := make([]byte, Size)
	if _, err := io.ReadFull(m.rand, value); err != nil {
		return nil, fmt.Errorf("challenge: reading randomness: %w", err)
	}
	if err := m.store.Put(ctx, scope, value, m.now().Add(m.ttl)); err != nil {
		return nil, fmt.Errorf("challenge: storing challenge: %w", err)
	}
	return value, nil
}

// Consume removes and returns the challenge stored for scope. After
// Consume returns the record is gone regardless of outcome: a second call
// for the same scope fails ErrNotFound, and an elapsed TTL fails
// ErrExpired. The caller compares the presented bytes against the
// returned value in constant time.
func (m *Manager) Consume(ctx context.Context, scope string) ([]byte, error) {
	value, expiresAt, err := m.store.Take(ctx, scope)
	if err != nil {
		return nil, err
	}
	if m.now().After(expiresAt) {
		return nil, ErrExpired
	}
	return value, nil
}
