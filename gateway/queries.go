package gateway

import (
	"context"
	"sort"

	"github.com/msigvault/msig/cache/kvstore"
	"github.com/msigvault/msig/chain"
	"github.com/msigvault/msig/multisig"
)

func proposalKey(id multisig.Address, pid uint64) kvstore.CacheKey {
	return kvstore.GenerateCacheKey("proposal", id.String(), pid)
}

func signaturesKey(id multisig.Address, pid uint64) kvstore.CacheKey {
	return kvstore.GenerateCacheKey("signatures", id.String(), pid)
}

// QueryInfo returns the configuration of multisig id.
func (g *Gateway) QueryInfo(ctx context.Context, id multisig.Address) (*multisig.MultisigInfo, error) {
	var info multisig.MultisigInfo
	if err := g.read(ctx, id, chain.FnGetInfo, nil, "", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// QueryMembers returns the current member list of multisig id.
func (g *Gateway) QueryMembers(ctx context.Context, id multisig.Address) ([]multisig.Address, error) {
	var members []multisig.Address
	if err := g.read(ctx, id, chain.FnGetMembers, nil, "", &members); err != nil {
		return nil, err
	}
	return members, nil
}

// QueryProposal returns proposal pid. Unknown ids fail with multisig.ErrNotFound.
func (g *Gateway) QueryProposal(ctx context.Context, id multisig.Address, pid uint64) (*multisig.Proposal, error) {
	return kvstore.GetFromCacheOrCall(g.cache, proposalKey(id, pid),
		func() (*multisig.Proposal, error) {
			var p multisig.Proposal
			if err := g.read(ctx, id, chain.FnGetProposal, chain.ProposalArgs{ProposalID: pid}, proposalRef(id, pid), &p); err != nil {
				return nil, err
			}
			return &p, nil
		},
		func(p *multisig.Proposal) bool { return p.Status == multisig.StatusClosed },
	)
}

// QueryAllProposals returns every proposal of multisig id, ascending by id.
func (g *Gateway) QueryAllProposals(ctx context.Context, id multisig.Address) ([]multisig.Proposal, error) {
	var proposals []multisig.Proposal
	if err := g.read(ctx, id, chain.FnGetAllProposals, nil, "", &proposals); err != nil {
		return nil, err
	}
	sort.Slice(proposals, func(i, j int) bool { return proposals[i].ID < proposals[j].ID })
	return proposals, nil
}

// QuerySignatures returns the signature set of proposal pid.
func (g *Gateway) QuerySignatures(ctx context.Context, id multisig.Address, pid uint64) (multisig.SignatureSet, error) {
	// Only a read that started after the proposal was seen closed is final.
	var closedBeforeRead bool
	set, err := kvstore.GetFromCacheOrCall(g.cache, signaturesKey(id, pid),
		func() (*multisig.SignatureSet, error) {
			closedBeforeRead = kvstore.Contains(g.cache, proposalKey(id, pid))
			var set multisig.SignatureSet
			if err := g.read(ctx, id, chain.FnGetSignatures, chain.ProposalArgs{ProposalID: pid}, proposalRef(id, pid), &set); err != nil {
				return nil, err
			}
			return &set, nil
		},
		func(*multisig.SignatureSet) bool { return closedBeforeRead },
	)
	if err != nil {
		return nil, err
	}
	return *set, nil
}

// QueryLastProposalID returns the highest proposal id; 0 means none exist.
func (g *Gateway) QueryLastProposalID(ctx context.Context, id multisig.Address) (uint64, error) {
	var last uint64
	if err := g.read(ctx, id, chain.FnGetLastProposalID, nil, "", &last); err != nil {
		return 0, err
	}
	return last, nil
}

// IsProposalReady reports whether proposal pid is open, unexpired and has
// reached quorum, as judged by the contract.
func (g *Gateway) IsProposalReady(ctx context.Context, id multisig.Address, pid uint64) (bool, error) {
	var ready bool
	if err := g.read(ctx, id, chain.FnIsProposalReady, chain.ProposalArgs{ProposalID: pid}, proposalRef(id, pid), &ready); err != nil {
		return false, err
	}
	return ready, nil
}
