package simulator

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/msigvault/msig/chain"
	"github.com/msigvault/msig/multisig"
)

// Contract-side limits.
const (
	MaxTitleLength       = 64
	MaxDescriptionLength = 256
)

// Transfer is the effect of an executed Transaction proposal.
type Transfer struct {
	Multisig  multisig.Address
	Recipient multisig.Address
	Token     multisig.Address
	Amount    int64
}

type contract struct {
	info       multisig.MultisigInfo
	wasmHash   common.Hash
	proposals  []*multisig.Proposal // index id-1
	signatures map[uint64]map[multisig.Address]bool
}

func newContract(info multisig.MultisigInfo) *contract {
	return &contract{
		info:       info,
		signatures: make(map[uint64]map[multisig.Address]bool),
	}
}

func (c *contract) proposal(id uint64) (*multisig.Proposal, *chain.Fault) {
	if id == 0 || id > uint64(len(c.proposals)) {
		return nil, chain.ContractFault(multisig.CodeProposalNotFound, "proposal %d does not exist", id)
	}
	return c.proposals[id-1], nil
}

func (c *contract) signatureSet(id uint64) multisig.SignatureSet {
	set := make(multisig.SignatureSet, 0, len(c.info.Members))
	for _, m := range c.info.Members {
		set = append(set, multisig.Signature{Address: m, Approved: c.signatures[id][m]})
	}
	return set
}

func (c *contract) requiredApprovals() uint32 {
	n := uint64(len(c.info.Members))
	return uint32((n*uint64(c.info.QuorumBps) + multisig.MaxQuorumBps - 1) / multisig.MaxQuorumBps)
}

func (c *contract) isExpired(p *multisig.Proposal, now uint64) bool {
	return p.ExpirationTimestamp != 0 && now >= p.ExpirationTimestamp
}

func (c *contract) isReady(p *multisig.Proposal, now uint64) bool {
	return p.Status == multisig.StatusOpen &&
		!c.isExpired(p, now) &&
		c.signatureSet(p.ID).Approvals() >= c.requiredApprovals()
}

func (c *contract) requireMember(addr multisig.Address) *chain.Fault {
	if !multisig.IsMember(c.info.Members, addr) {
		return chain.ContractFault(multisig.CodeUnauthorized, "%s is not a member", addr)
	}
	return nil
}

// requireActionable checks that proposal id can still be signed or executed.
func (c *contract) requireActionable(id uint64, now uint64) (*multisig.Proposal, *chain.Fault) {
	p, fault := c.proposal(id)
	if fault != nil {
		return nil, fault
	}
	if p.Status == multisig.StatusClosed {
		return nil, chain.ContractFault(multisig.CodeProposalClosed, "proposal %d is closed", id)
	}
	if c.isExpired(p, now) {
		return nil, chain.ContractFault(multisig.CodeProposalExpired, "proposal %d expired at %d", id, p.ExpirationTimestamp)
	}
	return p, nil
}
