package bls

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignVerify(t *testing.T) {
	sk, err := RandKey()
	require.NoError(t, err)
	msg := []byte("gateway test message")
	sig := sk.Sign(msg)
	require.True(t, sig.Verify(sk.PublicKey(), msg))
	require.False(t, sig.Verify(sk.PublicKey(), []byte("another message")))
}

func TestVerify_WrongKey(t *testing.T) {
	sk1, err := RandKey()
	require.NoError(t, err)
	sk2, err := RandKey()
	require.NoError(t, err)
	msg := []byte("msg")
	require.False(t, sk1.Sign(msg).Verify(sk2.PublicKey(), msg))
}

func TestSecretKeyFromBytes_RoundTrip(t *testing.T) {
	sk, err := RandKey()
	require.NoError(t, err)
	back, err := SecretKeyFromBytes(sk.Marshal())
	require.NoError(t, err)
	require.Equal(t, sk.Marshal(), back.Marshal())
}

func TestSecretKeyFromBytes_Zero(t *testing.T) {
	_, err := SecretKeyFromBytes(make([]byte, 32))
	require.ErrorIs(t, err, ErrZeroKey)
}

func TestSecretKeyFromBytes_BadLength(t *testing.T) {
	_, err := SecretKeyFromBytes(make([]byte, 31))
	require.Error(t, err)
}

func TestPublicKeyFromBytes_RoundTrip(t *testing.T) {
	sk, err := RandKey()
	require.NoError(t, err)
	pk := sk.PublicKey()
	back, err := PublicKeyFromBytes(pk.Marshal())
	require.NoError(t, err)
	require.True(t, pk.Equals(back))

	// Second load hits the cache and must return an equal key.
	cached, err := PublicKeyFromBytes(pk.Marshal())
	require.NoError(t, err)
	require.True(t, pk.Equals(cached))
}

func TestPublicKeyFromBytes_Infinite(t *testing.T) {
	_, err := PublicKeyFromBytes(InfinitePublicKey[:])
	require.ErrorIs(t, err, ErrInfinitePubKey)
}

func TestPublicKeyFromBytes_Garbage(t *testing.T) {
	garbage := make([]byte, 48)
	garbage[0] = 0x01
	_, err := PublicKeyFromBytes(garbage)
	require.Error(t, err)
}

func TestSignatureFromBytes_RoundTrip(t *testing.T) {
	sk, err := RandKey()
	require.NoError(t, err)
	raw := sk.Sign([]byte("round trip")).Marshal()
	require.Len(t, raw, 96)
	sig, err := SignatureFromBytes(raw)
	require.NoError(t, err)
	require.True(t, sig.Verify(sk.PublicKey(), []byte("round trip")))
}

func TestVerifySignature(t *testing.T) {
	sk, err := RandKey()
	require.NoError(t, err)
	var msg [32]byte
	msg[0] = 42
	sig := sk.Sign(msg[:]).Marshal()
	ok, err := VerifySignature(sig, msg, sk.PublicKey())
	require.NoError(t, err)
	require.True(t, ok)

	msg[0] = 43
	ok, err = VerifySignature(sig, msg, sk.PublicKey())
	require.NoError(t, err)
	require.False(t, ok)
}
