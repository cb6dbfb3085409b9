// Package signer implements the wallet capability that turns unsigned
// envelopes into signed ones.
package signer

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/msigvault/msig/envelope"
	"github.com/msigvault/msig/httpmisc"
	"github.com/msigvault/msig/multisig"
)

// KeySigner signs with a local ed25519 key.
type KeySigner struct {
	key     ed25519.PrivateKey
	address multisig.Address
}

var _ multisig.Signer = (*KeySigner)(nil)

// NewKeySigner builds a signer from a 32-byte ed25519 seed.
func NewKeySigner(seed []byte) (*KeySigner, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("key seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	key := ed25519.NewKeyFromSeed(seed)
	addr, err := multisig.AccountAddress(key.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	return &KeySigner{key: key, address: addr}, nil
}

// NewKeySignerFromFile reads a hex-encoded seed from path.
func NewKeySignerFromFile(path string) (*KeySigner, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	seed, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("key file %s: %w", path, err)
	}
	return NewKeySigner(seed)
}

// Address is the account address of the key.
func (s *KeySigner) Address() multisig.Address {
	return s.address
}

// Session returns a session that signs with s.
func (s *KeySigner) Session() *multisig.Session {
	return &multisig.Session{Address: s.address, Signer: s}
}

func (s *KeySigner) Sign(ctx context.Context, unsignedEnvelope string) (*multisig.SignedEnvelope, error) {
	signed, addr, err := envelope.Sign(unsignedEnvelope, s.key)
	if err != nil {
		return nil, err
	}
	return &multisig.SignedEnvelope{Envelope: signed, SignerAddress: addr}, nil
}

// SignRequest is posted to a wallet bridge.
type SignRequest struct {
	Envelope string `json:"envelope"`
}

// SignResponse is the wallet bridge's answer. Address may be omitted.
type SignResponse struct {
	SignedEnvelope string `json:"signedEnvelope"`
	Address        string `json:"address,omitempty"`
}

// HTTPSigner delegates signing to a wallet bridge listening on an HTTP endpoint.
// Requests are bounded only by the context passed to Sign.
type HTTPSigner struct {
	client   *http.Client
	endpoint string
}

var _ multisig.Signer = (*HTTPSigner)(nil)

func NewHTTPSigner(endpoint string) *HTTPSigner {
	return &HTTPSigner{
		client:   &http.Client{},
		endpoint: endpoint,
	}
}

func (s *HTTPSigner) Sign(ctx context.Context, unsignedEnvelope string) (*multisig.SignedEnvelope, error) {
	var resp SignResponse
	if err := httpmisc.PostJSON(ctx, s.client, s.endpoint, SignRequest{Envelope: unsignedEnvelope}, &resp); err != nil {
		return nil, fmt.Errorf("wallet bridge: %w", err)
	}
	if resp.SignedEnvelope == "" {
		return nil, fmt.Errorf("wallet bridge returned an empty envelope")
	}
	signed := &multisig.SignedEnvelope{Envelope: resp.SignedEnvelope}
	if resp.Address != "" {
		addr, err := multisig.ParseAddress(resp.Address)
		if err != nil {
			return nil, fmt.Errorf("wallet bridge: %w", err)
		}
		signed.SignerAddress = addr
	}
	return signed, nil
}
