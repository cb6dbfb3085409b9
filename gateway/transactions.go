package gateway

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"

	"github.com/msigvault/msig/chain"
	"github.com/msigvault/msig/multisig"
)

// Client-side limits, mirrored from the contract.
const (
	MaxTitleLength       = 64
	MaxDescriptionLength = 256
	saltSize             = 32
)

// TransactionProposalRequest proposes a transfer of Amount units of Token.
type TransactionProposalRequest struct {
	Title       string
	Description string
	Recipient   multisig.Address
	Amount      int64
	Token       multisig.Address
	// Expiration is optional; nil means the proposal never expires.
	Expiration *time.Time
}

// UpdateProposalRequest proposes replacing the multisig's code.
type UpdateProposalRequest struct {
	Title       string
	Description string
	// NewWasmHash must be exactly 32 bytes.
	NewWasmHash []byte
	Expiration  *time.Time
}

// DeployRequest describes a new multisig.
type DeployRequest struct {
	Name        string
	Description string
	// ThresholdPercent in 1..100 becomes quorum_bps = ThresholdPercent * 100.
	ThresholdPercent uint32
	Members          []multisig.Address
}

func validateText(title, description string) error {
	if strings.TrimSpace(title) == "" {
		return multisig.Invalid("title", "must not be empty")
	}
	if n := utf8.RuneCountInString(title); n > MaxTitleLength {
		return multisig.Invalid("title", "%d characters exceed the limit of %d", n, MaxTitleLength)
	}
	if n := utf8.RuneCountInString(description); n > MaxDescriptionLength {
		return multisig.Invalid("description", "%d characters exceed the limit of %d", n, MaxDescriptionLength)
	}
	return nil
}

func validateAddress(field string, addr multisig.Address) error {
	if _, err := multisig.ParseAddress(addr.String()); err != nil {
		return multisig.Invalid(field, "%v", err)
	}
	return nil
}

// expiration converts an optional deadline to the contract's unix timestamp.
func (g *Gateway) expiration(exp *time.Time) (uint64, error) {
	if exp == nil {
		return 0, nil
	}
	if now := g.clock.Now().Unix(); exp.Unix() <= now {
		return 0, multisig.Invalid("expiration", "%s is not in the future", exp.UTC().Format(time.RFC3339))
	}
	return uint64(exp.Unix()), nil
}

// requireMember checks session against the live member list of id.
func (g *Gateway) requireMember(ctx context.Context, id multisig.Address, session *multisig.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}
	if err := validateAddress("multisig", id); err != nil {
		return err
	}
	members, err := g.QueryMembers(ctx, id)
	if err != nil {
		return err
	}
	if !multisig.IsMember(members, session.Address) {
		return multisig.Invalid("signer", "%s is not a member of %s", session.Address, id)
	}
	return nil
}

func (g *Gateway) createProposal(ctx context.Context, id multisig.Address, session *multisig.Session, fn string, args chain.CreateProposalArgs) (uint64, error) {
	if err := g.requireMember(ctx, id, session); err != nil {
		return 0, err
	}
	args.Sender = session.Address
	raw, err := g.invoke(ctx, id, session, fn, args, "")
	if err != nil {
		return 0, err
	}
	var pid uint64
	if err := json.Unmarshal(raw, &pid); err != nil {
		return 0, fmt.Errorf("%s: decoding proposal id: %w", fn, err)
	}
	g.logger.Info("proposal created", "contract", id, "proposal_id", pid, "kind", args.Kind.Name(), "sender", session.Address)
	return pid, nil
}

// CreateTransactionProposal proposes a transfer and returns the new proposal id.
func (g *Gateway) CreateTransactionProposal(ctx context.Context, id multisig.Address, session *multisig.Session, req TransactionProposalRequest) (uint64, error) {
	if err := validateText(req.Title, req.Description); err != nil {
		return 0, err
	}
	if req.Amount <= 0 {
		return 0, multisig.Invalid("amount", "must be positive, got %d", req.Amount)
	}
	if err := validateAddress("recipient", req.Recipient); err != nil {
		return 0, err
	}
	if err := validateAddress("token", req.Token); err != nil {
		return 0, err
	}
	exp, err := g.expiration(req.Expiration)
	if err != nil {
		return 0, err
	}
	return g.createProposal(ctx, id, session, chain.FnCreateTransaction, chain.CreateProposalArgs{
		Title:       req.Title,
		Description: req.Description,
		Kind: multisig.ProposalKind{Transaction: &multisig.Transaction{
			Recipient: req.Recipient,
			Amount:    req.Amount,
			Token:     req.Token,
		}},
		Expiration: exp,
	})
}

// CreateUpdateProposal proposes a code upgrade and returns the new proposal id.
func (g *Gateway) CreateUpdateProposal(ctx context.Context, id multisig.Address, session *multisig.Session, req UpdateProposalRequest) (uint64, error) {
	if err := validateText(req.Title, req.Description); err != nil {
		return 0, err
	}
	if len(req.NewWasmHash) != common.HashLength {
		return 0, multisig.Invalid("new_wasm_hash", "must be exactly %d bytes, got %d", common.HashLength, len(req.NewWasmHash))
	}
	exp, err := g.expiration(req.Expiration)
	if err != nil {
		return 0, err
	}
	return g.createProposal(ctx, id, session, chain.FnCreateUpdate, chain.CreateProposalArgs{
		Title:       req.Title,
		Description: req.Description,
		Kind: multisig.ProposalKind{UpdateContract: &multisig.UpdateContract{
			NewWasmHash: common.BytesToHash(req.NewWasmHash),
		}},
		Expiration: exp,
	})
}

// SignProposal approves proposal pid. Signing twice does not count twice, but
// every call submits a new transaction.
func (g *Gateway) SignProposal(ctx context.Context, id multisig.Address, session *multisig.Session, pid uint64) error {
	return g.actOnProposal(ctx, id, session, pid, chain.FnSignProposal)
}

// ExecuteProposal executes proposal pid, closing it.
func (g *Gateway) ExecuteProposal(ctx context.Context, id multisig.Address, session *multisig.Session, pid uint64) error {
	return g.actOnProposal(ctx, id, session, pid, chain.FnExecuteProposal)
}

func (g *Gateway) actOnProposal(ctx context.Context, id multisig.Address, session *multisig.Session, pid uint64, fn string) error {
	if pid == 0 {
		return multisig.Invalid("proposal_id", "must be positive")
	}
	if err := g.requireMember(ctx, id, session); err != nil {
		return err
	}
	_, err := g.invoke(ctx, id, session, fn, chain.SignerArgs{Signer: session.Address, ProposalID: pid}, proposalRef(id, pid))
	if err != nil {
		return err
	}
	g.logger.Info("proposal updated", "contract", id, "proposal_id", pid, "function", fn, "signer", session.Address)
	return nil
}

// DeployNewMultisig deploys a multisig through the deployer contract and
// returns its address. Every call uses a fresh random salt.
func (g *Gateway) DeployNewMultisig(ctx context.Context, deployer multisig.Address, session *multisig.Session, req DeployRequest) (multisig.Address, error) {
	if err := session.Validate(); err != nil {
		return "", err
	}
	if err := validateAddress("deployer", deployer); err != nil {
		return "", err
	}
	if strings.TrimSpace(req.Name) == "" {
		return "", multisig.Invalid("name", "must not be empty")
	}
	if len(req.Members) == 0 {
		return "", multisig.Invalid("members", "at least one member is required")
	}
	seen := make(map[multisig.Address]struct{}, len(req.Members))
	for _, m := range req.Members {
		if err := validateAddress("members", m); err != nil {
			return "", err
		}
		if _, dup := seen[m]; dup {
			return "", multisig.Invalid("members", "duplicate member %s", m)
		}
		seen[m] = struct{}{}
	}
	quorumBps, err := multisig.QuorumBpsFromPercent(req.ThresholdPercent)
	if err != nil {
		return "", err
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	raw, err := g.invoke(ctx, deployer, session, chain.FnDeployNewMultisig, chain.DeployArgs{
		Deployer:    session.Address,
		Salt:        salt,
		Name:        req.Name,
		Description: req.Description,
		Members:     req.Members,
		QuorumBps:   quorumBps,
	}, "")
	if err != nil {
		return "", err
	}
	var id multisig.Address
	if err := json.Unmarshal(raw, &id); err != nil {
		return "", fmt.Errorf("%s: decoding contract id: %w", chain.FnDeployNewMultisig, err)
	}
	g.logger.Info("multisig deployed", "contract", id, "deployer", deployer, "members", len(req.Members), "quorum_bps", quorumBps)
	return id, nil
}
