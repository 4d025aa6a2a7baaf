package mint_test

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/splitsecure/go-webauthn/authdata"
	"github.com/splitsecure/go-webauthn/cose"
	"github.com/splitsecure/go-webauthn/mint"
)

func TestCOSEKeyParses(t *testing.T) {
	es, err := mint.NewES256Authenticator()
	require.NoError(t, err)
	enc, err := es.COSEKey()
	require.NoError(t, err)
	pub, err := cose.ParseKey(enc)
	require.NoError(t, err)
	require.Equal(t, cose.ES256, pub.Algorithm())

	rs, err := mint.NewRS256Authenticator()
	require.NoError(t, err)
	enc, err = rs.COSEKey()
	require.NoError(t, err)
	pub, err = cose.ParseKey(enc)
	require.NoError(t, err)
	require.Equal(t, cose.RS256, pub.Algorithm())
}

func TestCreateRegistrationShape(t *testing.T) {
	a, err := mint.NewES256Authenticator()
	require.NoError(t, err)

	out, err := a.CreateRegistration(&mint.RegistrationInput{
		Challenge: []byte("0123456789abcdef0123456789abcdef"),
		Origin:    "https://login.example.com",
		RPID:      "login.example.com",
		SignCount: 9,
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.ClientDataJSON)
	require.NotEmpty(t, out.AttestationObject)
}

func TestAssertionSignatureVerifies(t *testing.T) {
	a, err := mint.NewES256Authenticator()
	require.NoError(t, err)
	enc, err := a.COSEKey()
	require.NoError(t, err)
	pub, err := cose.ParseKey(enc)
	require.NoError(t, err)

	out, err := a.CreateAssertion(&mint.AssertionInput{
		Challenge: []byte("0123456789abcdef0123456789abcdef"),
		Origin:    "https://login.example.com",
		RPID:      "login.example.com",
		SignCount: 2,
	})
	require.NoError(t, err)

	var ad authdata.T
	require.NoError(t, authdata.UnmarshalBase(out.AuthenticatorData, &ad))
	require.True(t, ad.UserPresent())
	require.Equal(t, uint32(2), ad.SignCount)

	digest := sha256.Sum256(out.ClientDataJSON)
	signed := append(append([]byte{}, out.AuthenticatorData...), digest[:]...)
	require.NoError(t, pub.Verify(signed, out.Signature))
}

func TestRawSignatureIsES256Only(t *testing.T) {
	a, err := mint.NewRS256Authenticator()
	require.NoError(t, err)
	_, err = a.CreateAssertion(&mint.AssertionInput{
		Challenge:    []byte("0123456789abcdef0123456789abcdef"),
		Origin:       "https://login.example.com",
		RPID:         "login.example.com",
		RawSignature: true,
	})
	require.Error(t, err)
}
