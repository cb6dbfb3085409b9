package multisig

import (
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/snksoft/crc"
)

// Address is a strkey-encoded account ("G...") or contract ("C...") address.
type Address string

// Version bytes of the strkey encoding.
const (
	versionAccount  byte = 6 << 3
	versionContract byte = 2 << 3
)

const (
	// Encoded length of a 32-byte strkey payload.
	addressLen  = 56
	payloadSize = 32
)

var strkeyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// ParseAddress validates s and returns it as an Address.
func ParseAddress(s string) (Address, error) {
	if _, _, err := decodeStrkey(s); err != nil {
		return "", err
	}
	return Address(s), nil
}

// MustParseAddress is ParseAddress that panics. Intended for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AccountAddress encodes an ed25519 public key as an account address.
func AccountAddress(pub []byte) (Address, error) {
	s, err := encodeStrkey(versionAccount, pub)
	return Address(s), err
}

// ContractAddress encodes a 32-byte contract hash as a contract address.
func ContractAddress(hash []byte) (Address, error) {
	s, err := encodeStrkey(versionContract, hash)
	return Address(s), err
}

// IsAccount reports whether a is a well-formed account address.
func (a Address) IsAccount() bool {
	v, _, err := decodeStrkey(string(a))
	return err == nil && v == versionAccount
}

// IsContract reports whether a is a well-formed contract address.
func (a Address) IsContract() bool {
	v, _, err := decodeStrkey(string(a))
	return err == nil && v == versionContract
}

// PublicKey returns the ed25519 key behind an account address.
func (a Address) PublicKey() ([]byte, error) {
	v, payload, err := decodeStrkey(string(a))
	if err != nil {
		return nil, err
	}
	if v != versionAccount {
		return nil, fmt.Errorf("address %s is not an account", a)
	}
	return payload, nil
}

func (a Address) String() string {
	return string(a)
}

func checksum(data []byte) []byte {
	sum := make([]byte, 2)
	binary.LittleEndian.PutUint16(sum, uint16(crc.CalculateCRC(crc.XMODEM, data)))
	return sum
}

func encodeStrkey(version byte, payload []byte) (string, error) {
	if len(payload) != payloadSize {
		return "", fmt.Errorf("strkey payload must be %d bytes, got %d", payloadSize, len(payload))
	}
	raw := make([]byte, 0, 1+payloadSize+2)
	raw = append(raw, version)
	raw = append(raw, payload...)
	raw = append(raw, checksum(raw)...)
	return strkeyEncoding.EncodeToString(raw), nil
}

func decodeStrkey(s string) (byte, []byte, error) {
	if len(s) != addressLen {
		return 0, nil, fmt.Errorf("address %q: expected %d characters, got %d", s, addressLen, len(s))
	}
	if strings.ToUpper(s) != s {
		return 0, nil, fmt.Errorf("address %q: must be upper case", s)
	}
	raw, err := strkeyEncoding.DecodeString(s)
	if err != nil {
		return 0, nil, fmt.Errorf("address %q: %w", s, err)
	}
	if len(raw) != 1+payloadSize+2 {
		return 0, nil, fmt.Errorf("address %q: bad decoded length %d", s, len(raw))
	}
	body, sum := raw[:len(raw)-2], raw[len(raw)-2:]
	if want := checksum(body); want[0] != sum[0] || want[1] != sum[1] {
		return 0, nil, fmt.Errorf("address %q: checksum mismatch", s)
	}
	version := body[0]
	if version != versionAccount && version != versionContract {
		return 0, nil, fmt.Errorf("address %q: unsupported version byte %d", s, version)
	}
	return version, body[1:], nil
}
