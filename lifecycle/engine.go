package lifecycle

import (
	"context"
	"fmt"

	"github.com/raulk/clock"
	"golang.org/x/sync/errgroup"

	"github.com/msigvault/msig/log"
	"github.com/msigvault/msig/multisig"
)

// Gateway is the contract access the engine needs. *gateway.Gateway implements it.
type Gateway interface {
	QueryInfo(ctx context.Context, id multisig.Address) (*multisig.MultisigInfo, error)
	QueryMembers(ctx context.Context, id multisig.Address) ([]multisig.Address, error)
	QueryProposal(ctx context.Context, id multisig.Address, pid uint64) (*multisig.Proposal, error)
	QueryAllProposals(ctx context.Context, id multisig.Address) ([]multisig.Proposal, error)
	QuerySignatures(ctx context.Context, id multisig.Address, pid uint64) (multisig.SignatureSet, error)
	SignProposal(ctx context.Context, id multisig.Address, session *multisig.Session, pid uint64) error
	ExecuteProposal(ctx context.Context, id multisig.Address, session *multisig.Session, pid uint64) error
}

// DefaultConcurrency bounds the signature reads of ListProposals.
const DefaultConcurrency = 8

// Engine computes proposal views and guards sign and execute calls.
type Engine struct {
	gw          Gateway
	clock       clock.Clock
	logger      *log.Logger
	concurrency int
}

func NewEngine(gw Gateway, clk clock.Clock, logger *log.Logger) *Engine {
	return &Engine{
		gw:          gw,
		clock:       clk,
		logger:      logger.WithModule("lifecycle"),
		concurrency: DefaultConcurrency,
	}
}

// GetProposalView reads the multisig configuration, its members, the proposal
// and its signatures in parallel and derives the view for viewer.
func (e *Engine) GetProposalView(ctx context.Context, id multisig.Address, pid uint64, viewer multisig.Address) (*ProposalView, error) {
	var (
		info     *multisig.MultisigInfo
		members  []multisig.Address
		proposal *multisig.Proposal
		sigs     multisig.SignatureSet
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() (err error) {
		info, err = e.gw.QueryInfo(groupCtx, id)
		return err
	})
	group.Go(func() (err error) {
		members, err = e.gw.QueryMembers(groupCtx, id)
		return err
	})
	group.Go(func() (err error) {
		proposal, err = e.gw.QueryProposal(groupCtx, id, pid)
		return err
	})
	group.Go(func() (err error) {
		sigs, err = e.gw.QuerySignatures(groupCtx, id, pid)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return newView(id, viewer, info, members, proposal, sigs, IsExpired(proposal, e.clock.Now())), nil
}

// ListProposals returns the views of every proposal of id, ascending by id.
func (e *Engine) ListProposals(ctx context.Context, id multisig.Address, viewer multisig.Address) ([]*ProposalView, error) {
	var (
		info      *multisig.MultisigInfo
		members   []multisig.Address
		proposals []multisig.Proposal
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() (err error) {
		info, err = e.gw.QueryInfo(groupCtx, id)
		return err
	})
	group.Go(func() (err error) {
		members, err = e.gw.QueryMembers(groupCtx, id)
		return err
	})
	group.Go(func() (err error) {
		proposals, err = e.gw.QueryAllProposals(groupCtx, id)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	sigs := make([]multisig.SignatureSet, len(proposals))
	group, groupCtx = errgroup.WithContext(ctx)
	group.SetLimit(e.concurrency)
	for i := range proposals {
		i := i
		group.Go(func() (err error) {
			sigs[i], err = e.gw.QuerySignatures(groupCtx, id, proposals[i].ID)
			return err
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	now := e.clock.Now()
	views := make([]*ProposalView, 0, len(proposals))
	for i := range proposals {
		p := &proposals[i]
		views = append(views, newView(id, viewer, info, members, p, sigs[i], IsExpired(p, now)))
	}
	return views, nil
}

// Sign refreshes the view of pid for the session, checks that it can be
// signed and submits the signature.
func (e *Engine) Sign(ctx context.Context, session *multisig.Session, id multisig.Address, pid uint64) error {
	return e.act(ctx, session, id, pid, "sign", (*ProposalView).CheckSignable, e.gw.SignProposal)
}

// Execute refreshes the view of pid for the session, checks that it is
// executable and submits the execution. Another member may have executed the
// proposal in the meantime; the contract's refusal is returned as a
// *multisig.RejectedError.
func (e *Engine) Execute(ctx context.Context, session *multisig.Session, id multisig.Address, pid uint64) error {
	return e.act(ctx, session, id, pid, "execute", (*ProposalView).CheckExecutable, e.gw.ExecuteProposal)
}

func (e *Engine) act(
	ctx context.Context,
	session *multisig.Session,
	id multisig.Address,
	pid uint64,
	action string,
	check func(*ProposalView) error,
	call func(context.Context, multisig.Address, *multisig.Session, uint64) error,
) error {
	if err := session.Validate(); err != nil {
		return err
	}
	view, err := e.GetProposalView(ctx, id, pid, session.Address)
	if err != nil {
		return fmt.Errorf("refreshing proposal %d: %w", pid, err)
	}
	if err := check(view); err != nil {
		return err
	}

	logger := e.logger.With("contract", id, "proposal_id", pid, "action", action)
	switch err := call(ctx, id, session, pid); multisig.KindOf(err) {
	case multisig.KindNone:
		logger.Info("proposal action confirmed")
		return nil
	case multisig.KindTimeout:
		logger.Warn("proposal action timed out; refresh the proposal before retrying", "err", err)
		return err
	case multisig.KindRejected:
		logger.Info("proposal action rejected by contract", "err", err)
		return err
	default:
		return err
	}
}
