package challenge_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/splitsecure/go-webauthn/challenge"
)

func TestIssueConsumeSingleUse(t *testing.T) {
	ctx := context.Background()
	m := challenge.NewManager(challenge.NewMemoryStore())

	value, err := m.Issue(ctx, "registration:u1")
	require.NoError(t, err)
	require.Len(t, value, challenge.Size)

	got, err := m.Consume(ctx, "registration:u1")
	require.NoError(t, err)
	require.Equal(t, value, got)

	// One-time use: the record is gone.
	_, err = m.Consume(ctx, "registration:u1")
	require.ErrorIs(t, err, challenge.ErrNotFound)
}

func TestConsumeIsScoped(t *testing.T) {
	ctx := context.Background()
	m := challenge.NewManager(challenge.NewMemoryStore())

	_, err := m.Issue(ctx, "registration:u1")
	require.NoError(t, err)

	_, err = m.Consume(ctx, "registration:u2")
	require.ErrorIs(t, err, challenge.ErrNotFound)

	// The original scope is still intact.
	_, err = m.Consume(ctx, "registration:u1")
	require.NoError(t, err)
}

func TestConsumeExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	m := challenge.NewManager(challenge.NewMemoryStore(),
		challenge.WithClock(func() time.Time { return now }))

	_, err := m.Issue(ctx, "authentication:s1")
	require.NoError(t, err)

	now = now.Add(challenge.DefaultTTL + time.Second)
	_, err = m.Consume(ctx, "authentication:s1")
	require.ErrorIs(t, err, challenge.ErrExpired)

	// Expiry also removed the record.
	_, err = m.Consume(ctx, "authentication:s1")
	require.ErrorIs(t, err, challenge.ErrNotFound)
}

func TestIssueValuesAreUnique(t *testing.T) {
	ctx := context.Background()
	m := challenge.NewManager(challenge.NewMemoryStore())

	a, err := m.Issue(ctx, "registration:a")
	require.NoError(t, err)
	b, err := m.Issue(ctx, "registration:b")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestIssueReplacesPrevious(t *testing.T) {
	ctx := context.Background()
	m := challenge.NewManager(challenge.NewMemoryStore())

	first, err := m.Issue(ctx, "registration:u1")
	require.NoError(t, err)
	second, err := m.Issue(ctx, "registration:u1")
	require.NoError(t, err)

	got, err := m.Consume(ctx, "registration:u1")
	require.NoError(t, err)
	require.NotEqual(t, first, got)
	require.Equal(t, second, got)
}

func TestWithTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	m := challenge.NewManager(challenge.NewMemoryStore(),
		challenge.WithTTL(5*time.Second),
		challenge.WithClock(func() time.Time { return now }))

	_, err := m.Issue(ctx, "registration:u1")
	require.NoError(t, err)

	now = now.Add(6 * time.Second)
	_, err = m.Consume(ctx, "registration:u1")
	require.ErrorIs(t, err, challenge.ErrExpired)
}
