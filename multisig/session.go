package multisig

import "context"

// SignedEnvelope is what a wallet returns for an unsigned envelope.
// SignerAddress is empty when the wallet does not report it.
type SignedEnvelope struct {
	Envelope      string  `json:"signed_envelope"`
	SignerAddress Address `json:"signer_address,omitempty"`
}

// Signer is the external wallet capability. Sign is called at most once per
// state-changing operation, after simulation succeeded.
type Signer interface {
	Sign(ctx context.Context, unsignedEnvelope string) (*SignedEnvelope, error)
}

// Session is the explicitly passed wallet state of one user: the address the
// transactions are built for and the capability that signs them.
type Session struct {
	Address Address
	Signer  Signer
}

// Validate checks that the session can sign transactions.
func (s *Session) Validate() error {
	if s == nil || s.Signer == nil {
		return &ValidationError{Field: "session", Reason: "no signer connected"}
	}
	if !s.Address.IsAccount() {
		return Invalid("session", "address %q is not an account address", s.Address)
	}
	return nil
}
