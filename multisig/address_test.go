package multisig

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAccountAddressRoundTrip(t *testing.T) {
	pub := make([]byte, ed25519.PublicKeySize)
	for i := range pub {
		pub[i] = byte(i)
	}
	addr, err := AccountAddress(pub)
	require.NoError(t, err)
	require.Len(t, addr.String(), 56)
	require.Equal(t, byte('G'), addr.String()[0])
	require.True(t, addr.IsAccount())
	require.False(t, addr.IsContract())

	parsed, err := ParseAddress(addr.String())
	require.NoError(t, err)
	require.Equal(t, addr, parsed)

	key, err := parsed.PublicKey()
	require.NoError(t, err)
	require.Equal(t, pub, key)
}

func TestContractAddress(t *testing.T) {
	hash := make([]byte, 32)
	hash[31] = 7
	addr, err := ContractAddress(hash)
	require.NoError(t, err)
	require.Equal(t, byte('C'), addr.String()[0])
	require.True(t, addr.IsContract())
	_, err = addr.PublicKey()
	require.Error(t, err)
}

func TestParseAddressRejects(t *testing.T) {
	good, err := AccountAddress(make([]byte, 32))
	require.NoError(t, err)
	s := good.String()

	flipped := []byte(s)
	if flipped[10] == 'A' {
		flipped[10] = 'B'
	} else {
		flipped[10] = 'A'
	}

	for name, input := range map[string]string{
		"empty":     "",
		"short":     s[:55],
		"lowercase": "g" + s[1:],
		"checksum":  string(flipped),
		"notbase32": s[:55] + "1",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseAddress(input)
			require.Error(t, err)
		})
	}

	_, err = AccountAddress(make([]byte, 31))
	require.Error(t, err)
}

func TestMustParseAddressPanics(t *testing.T) {
	require.Panics(t, func() { MustParseAddress("nope") })
}
