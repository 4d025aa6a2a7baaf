package authdata_test

import (
	"crypto/sha256"
	"testing"

	fxcbor "github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"

	"github.com/splitsecure/go-webauthn/authdata"
)

func coseKeyBytes(t *testing.T) []byte {
	t.Helper()
	enc, err := fxcbor.Marshal(map[int64]any{
		1: 2, 3: -7, -1: 1,
		-2: make([]byte, 32),
		-3: make([]byte, 32),
	})
	require.NoError(t, err)
	return enc
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	rpIDHash := sha256.Sum256([]byte("login.example.com"))
	in := authdata.T{
		RPIDHash:  rpIDHash[:],
		Flags:     authdata.FlagUserPresent | authdata.FlagHasAttestedCredentialData,
		SignCount: 42,
		AttestedCredentialData: authdata.AttestedCredentialData{
			AAGUID:              make([]byte, 16),
			CredentialID:        []byte("credential-id-01"),
			CredentialPublicKey: coseKeyBytes(t),
		},
	}

	raw, err := authdata.Marshal(&in)
	require.NoError(t, err)

	var out authdata.T
	require.NoError(t, authdata.Unmarshal(raw, &out))
	require.Equal(t, in.RPIDHash, out.RPIDHash)
	require.Equal(t, in.Flags, out.Flags)
	require.Equal(t, uint32(42), out.SignCount)
	require.True(t, out.UserPresent())
	require.True(t, out.HasAttestedCredentialData())
	require.Equal(t, in.AttestedCredentialData, out.AttestedCredentialData)
}

func TestUnmarshalBaseOnly(t *testing.T) {
	rpIDHash := sha256.Sum256([]byte("login.example.com"))
	raw, err := authdata.Marshal(&authdata.T{
		RPIDHash:  rpIDHash[:],
		Flags:     authdata.FlagUserPresent | authdata.FlagUserVerified,
		SignCount: 7,
	})
	require.NoError(t, err)
	require.Len(t, raw, 37)

	var out authdata.T
	require.NoError(t, authdata.UnmarshalBase(raw, &out))
	require.Equal(t, uint32(7), out.SignCount)
	require.True(t, out.UserPresent())
	require.True(t, out.UserVerified())
	require.False(t, out.HasAttestedCredentialData())
}

// Trailing extension bytes after the COSE key belong to extensions and
// must not end up in the stored key.
func TestUnmarshalDiscardsTrailingExtensions(t *testing.T) {
	rpIDHash := sha256.Sum256([]byte("login.example.com"))
	key := coseKeyBytes(t)
	raw, err := authdata.Marshal(&authdata.T{
		RPIDHash:  rpIDHash[:],
		Flags:     authdata.FlagUserPresent | authdata.FlagHasAttestedCredentialData | authdata.FlagHasExtensionData,
		SignCount: 1,
		AttestedCredentialData: authdata.AttestedCredentialData{
			AAGUID:              make([]byte, 16),
			CredentialID:        []byte{0x01, 0x02},
			CredentialPublicKey: append(append([]byte{}, key...), 0xa0),
		},
	})
	require.NoError(t, err)

	var out authdata.T
	require.NoError(t, authdata.Unmarshal(raw, &out))
	require.Equal(t, key, out.AttestedCredentialData.CredentialPublicKey)
}

func TestUnmarshalTruncated(t *testing.T) {
	rpIDHash := sha256.Sum256([]byte("login.example.com"))
	raw, err := authdata.Marshal(&authdata.T{
		RPIDHash:  rpIDHash[:],
		Flags:     authdata.FlagUserPresent | authdata.FlagHasAttestedCredentialData,
		SignCount: 3,
		AttestedCredentialData: authdata.AttestedCredentialData{
			AAGUID:              make([]byte, 16),
			CredentialID:        []byte("0123456789abcdef"),
			CredentialPublicKey: coseKeyBytes(t),
		},
	})
	require.NoError(t, err)

	var out authdata.T
	for i := 0; i < len(raw); i++ {
		require.Error(t, authdata.Unmarshal(raw[:i], &out), "prefix of %d bytes", i)
	}
}

func TestMarshalValidation(t *testing.T) {
	_, err := authdata.Marshal(&authdata.T{RPIDHash: make([]byte, 31)})
	require.Error(t, err)

	rpIDHash := sha256.Sum256([]byte("rp"))
	_, err = authdata.Marshal(&authdata.T{
		RPIDHash: rpIDHash[:],
		Flags:    authdata.FlagHasAttestedCredentialData,
		AttestedCredentialData: authdata.AttestedCredentialData{
			AAGUID: make([]byte, 15),
		},
	})
	require.Error(t, err)
}
