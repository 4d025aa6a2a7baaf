package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/splitsecure/go-webauthn/challenge"
	"github.com/splitsecure/go-webauthn/sqlite"
	"github.com/splitsecure/go-webauthn/webauthn"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "webauthn.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testCredential(userID string, id []byte) *webauthn.Credential {
	return &webauthn.Credential{
		UserID:     userID,
		ID:         id,
		PublicKey:  []byte{0xa5, 0x01, 0x02},
		SignCount:  3,
		Transports: []string{"usb", "nfc"},
		AAGUID:     make([]byte, 16),
		Label:      "passkey",
		CreatedAt:  time.UnixMilli(1700000000000),
	}
}

func TestCredentialRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	in := testCredential("u1", []byte("cred-1"))
	require.NoError(t, s.Insert(ctx, in))

	got, err := s.GetByID(ctx, in.ID)
	require.NoError(t, err)
	require.Equal(t, in, got)

	_, err = s.GetByID(ctx, []byte("missing"))
	require.ErrorIs(t, err, webauthn.ErrCredentialNotFound)
}

func TestInsertDuplicateCredentialID(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	require.NoError(t, s.Insert(ctx, testCredential("u1", []byte("cred-1"))))
	require.Error(t, s.Insert(ctx, testCredential("u2", []byte("cred-1"))))
}

func TestListAndCountForUser(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	first := testCredential("u1", []byte("cred-1"))
	second := testCredential("u1", []byte("cred-2"))
	second.CreatedAt = first.CreatedAt.Add(time.Minute)
	require.NoError(t, s.Insert(ctx, first))
	require.NoError(t, s.Insert(ctx, second))
	require.NoError(t, s.Insert(ctx, testCredential("u2", []byte("cred-3"))))

	creds, err := s.ListForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, creds, 2)
	require.Equal(t, []byte("cred-1"), creds[0].ID)
	require.Equal(t, []byte("cred-2"), creds[1].ID)

	n, err := s.CountForUser(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	creds, err = s.ListForUser(ctx, "nobody")
	require.NoError(t, err)
	require.Empty(t, creds)
}

func TestUpdateSignCountCompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	cred := testCredential("u1", []byte("cred-1"))
	require.NoError(t, s.Insert(ctx, cred))

	used := time.UnixMilli(1700000060000)
	require.NoError(t, s.UpdateSignCount(ctx, cred.ID, 3, 4, used))

	got, err := s.GetByID(ctx, cred.ID)
	require.NoError(t, err)
	require.Equal(t, uint32(4), got.SignCount)
	require.Equal(t, used, got.LastUsedAt)

	// The stored counter moved on, so the stale compare-and-set misses.
	err = s.UpdateSignCount(ctx, cred.ID, 3, 5, used)
	require.ErrorIs(t, err, webauthn.ErrCounterRegressed)

	err = s.UpdateSignCount(ctx, []byte("missing"), 0, 1, used)
	require.ErrorIs(t, err, webauthn.ErrCounterRegressed)

	got, err = s.GetByID(ctx, cred.ID)
	require.NoError(t, err)
	require.Equal(t, uint32(4), got.SignCount)
}

func TestChallengeTake(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	expiresAt := time.UnixMilli(1700000120000)
	require.NoError(t, s.Put(ctx, "registration:u1", []byte("challenge-value"), expiresAt))

	value, gotExpiry, err := s.Take(ctx, "registration:u1")
	require.NoError(t, err)
	require.Equal(t, []byte("challenge-value"), value)
	require.Equal(t, expiresAt, gotExpiry)

	// Take removes the row.
	_, _, err = s.Take(ctx, "registration:u1")
	require.ErrorIs(t, err, challenge.ErrNotFound)
}

func TestChallengePutReplaces(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	expiresAt := time.UnixMilli(1700000120000)
	require.NoError(t, s.Put(ctx, "registration:u1", []byte("first"), expiresAt))
	require.NoError(t, s.Put(ctx, "registration:u1", []byte("second"), expiresAt.Add(time.Minute)))

	value, gotExpiry, err := s.Take(ctx, "registration:u1")
	require.NoError(t, err)
	require.Equal(t, []byte("second"), value)
	require.Equal(t, expiresAt.Add(time.Minute), gotExpiry)
}

func TestDeleteExpiredChallenges(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	now := time.UnixMilli(1700000000000)
	require.NoError(t, s.Put(ctx, "stale", []byte("old"), now.Add(-time.Minute)))
	require.NoError(t, s.Put(ctx, "fresh", []byte("new"), now.Add(time.Minute)))

	require.NoError(t, s.DeleteExpiredChallenges(ctx, now))

	_, _, err := s.Take(ctx, "stale")
	require.ErrorIs(t, err, challenge.ErrNotFound)
	value, _, err := s.Take(ctx, "fresh")
	require.NoError(t, err)
	require.Equal(t, []byte("new"), value)
}

func TestStoreSatisfiesContracts(t *testing.T) {
	var _ webauthn.CredentialStore = (*sqlite.Store)(nil)
	var _ challenge.Store = (*sqlite.Store)(nil)
}
