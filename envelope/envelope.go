// Package envelope encodes contract invocations into transaction envelopes
// and signs and verifies them with ed25519 account keys.
package envelope

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/msigvault/msig/multisig"
)

// ErrBadSignature is returned when a signed envelope does not verify.
var ErrBadSignature = errors.New("envelope signature does not match its source account")

// Invocation is the payload of an unsigned envelope.
type Invocation struct {
	ContractID multisig.Address `json:"contractId"`
	Function   string           `json:"function"`
	Args       json.RawMessage  `json:"args,omitempty"`
	Source     multisig.Address `json:"source"`
	Nonce      uint64           `json:"nonce"`
}

type signed struct {
	Tx        string           `json:"tx"`
	Signer    multisig.Address `json:"signer"`
	Signature []byte           `json:"signature"`
}

// Encode returns the unsigned envelope of inv.
func Encode(inv *Invocation) (string, error) {
	raw, err := json.Marshal(inv)
	if err != nil {
		return "", fmt.Errorf("encoding invocation: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decode parses an unsigned envelope.
func Decode(tx string) (*Invocation, error) {
	raw, err := base64.StdEncoding.DecodeString(tx)
	if err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}
	var inv Invocation
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}
	return &inv, nil
}

// Sign signs an unsigned envelope with key and returns the signed envelope.
func Sign(tx string, key ed25519.PrivateKey) (string, multisig.Address, error) {
	addr, err := multisig.AccountAddress(key.Public().(ed25519.PublicKey))
	if err != nil {
		return "", "", err
	}
	raw, err := json.Marshal(signed{
		Tx:        tx,
		Signer:    addr,
		Signature: ed25519.Sign(key, []byte(tx)),
	})
	if err != nil {
		return "", "", err
	}
	return base64.StdEncoding.EncodeToString(raw), addr, nil
}

// Open verifies a signed envelope and returns its invocation. The signature
// must come from the invocation's source account.
func Open(signedTx string) (*Invocation, error) {
	raw, err := base64.StdEncoding.DecodeString(signedTx)
	if err != nil {
		return nil, fmt.Errorf("malformed signed envelope: %w", err)
	}
	var s signed
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("malformed signed envelope: %w", err)
	}
	inv, err := Decode(s.Tx)
	if err != nil {
		return nil, err
	}
	if s.Signer != inv.Source {
		return nil, ErrBadSignature
	}
	pub, err := inv.Source.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	if !ed25519.Verify(pub, []byte(s.Tx), s.Signature) {
		return nil, ErrBadSignature
	}
	return inv, nil
}

// Hash identifies a signed envelope.
func Hash(signedTx string) string {
	return crypto.Keccak256Hash([]byte(signedTx)).Hex()
}
