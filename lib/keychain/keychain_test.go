package keychain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundtrip(t *testing.T) {
	codec := NewCodec([]byte("test-secret"))

	blob, err := codec.Sign(Credentials{
		Email:    "alice@edu.devinci.fr",
		Password: "hunter2",
	})
	require.NoError(t, err)
	require.NotEmpty(t, blob)

	creds, err := codec.Verify(blob)
	require.NoError(t, err)
	require.Equal(t, "alice@edu.devinci.fr", creds.Email)
	require.Equal(t, "hunter2", creds.Password)
}

func TestVerifyEmptyBlob(t *testing.T) {
	codec := NewCodec([]byte("test-secret"))

	creds, err := codec.Verify("")
	require.NoError(t, err)
	require.True(t, creds.IsZero())
}

func TestVerifyWrongKey(t *testing.T) {
	signer := NewCodec([]byte("key-a"))
	verifier := NewCodec([]byte("key-b"))

	blob, err := signer.Sign(Credentials{Email: "a@b.c", Password: "p"})
	require.NoError(t, err)

	_, err = verifier.Verify(blob)
	require.ErrorIs(t, err, ErrInvalidBlob)
}

func TestVerifyGarbage(t *testing.T) {
	codec := NewCodec([]byte("test-secret"))

	_, err := codec.Verify("not-a-token")
	require.ErrorIs(t, err, ErrInvalidBlob)
}
