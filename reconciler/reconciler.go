// Package reconciler builds a wallet's multisig dashboard: candidates come
// from the directory, everything else is read from chain.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/msigvault/msig/directory"
	"github.com/msigvault/msig/log"
	"github.com/msigvault/msig/metrics"
	"github.com/msigvault/msig/multisig"
)

const (
	DefaultConcurrency = 8

	resultComplete             = "complete"
	resultPartial              = "partial"
	resultDirectoryUnavailable = "directory_unavailable"
)

// Directory is the discovery side. *directory.Client implements it.
type Directory interface {
	Lookup(ctx context.Context, wallet multisig.Address) ([]directory.Record, error)
	Register(ctx context.Context, id multisig.Address, members []multisig.Address) error
}

// Chain is the contract read side. *gateway.Gateway implements it.
type Chain interface {
	QueryInfo(ctx context.Context, id multisig.Address) (*multisig.MultisigInfo, error)
	QueryMembers(ctx context.Context, id multisig.Address) ([]multisig.Address, error)
	QueryAllProposals(ctx context.Context, id multisig.Address) ([]multisig.Proposal, error)
	QuerySignatures(ctx context.Context, id multisig.Address, pid uint64) (multisig.SignatureSet, error)
}

// ProposalWithSignatures is a proposal and its signature set.
type ProposalWithSignatures struct {
	multisig.Proposal
	Signatures multisig.SignatureSet `json:"signatures"`
}

// Aggregate is one multisig as read from chain.
type Aggregate struct {
	Address   multisig.Address          `json:"address"`
	Info      multisig.MultisigInfo     `json:"info"`
	Members   []multisig.Address        `json:"members"`
	Proposals []ProposalWithSignatures `json:"proposals"`
}

// Dropped is a candidate that could not be resolved.
type Dropped struct {
	ID  string `json:"id"`
	Err error  `json:"-"`
}

// Dashboard is the result of a reconciliation. It is usable even when
// DirectoryErr is set or Dropped is not empty.
type Dashboard struct {
	Wallet       multisig.Address `json:"wallet"`
	Multisigs    []Aggregate      `json:"multisigs"`
	Dropped      []Dropped        `json:"dropped,omitempty"`
	DirectoryErr error            `json:"-"`
}

// Err summarizes the degradations of the dashboard, or returns nil.
func (d *Dashboard) Err() error {
	if d.DirectoryErr != nil {
		return d.DirectoryErr
	}
	if len(d.Dropped) == 0 {
		return nil
	}
	errs := make([]error, 0, len(d.Dropped))
	for _, dr := range d.Dropped {
		errs = append(errs, fmt.Errorf("%s: %w", dr.ID, dr.Err))
	}
	return fmt.Errorf("%w: %d multisig(s) dropped: %w", multisig.ErrPartialAggregate, len(d.Dropped), errors.Join(errs...))
}

// DashboardProposal is a proposal together with the multisig it belongs to.
type DashboardProposal struct {
	Multisig multisig.Address `json:"multisig"`
	Name     string           `json:"multisig_name"`
	ProposalWithSignatures
}

// Proposals flattens the proposals of every multisig, newest first.
func (d *Dashboard) Proposals() []DashboardProposal {
	var out []DashboardProposal
	for _, agg := range d.Multisigs {
		for _, p := range agg.Proposals {
			out = append(out, DashboardProposal{Multisig: agg.Address, Name: agg.Info.Name, ProposalWithSignatures: p})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreationTimestamp != out[j].CreationTimestamp {
			return out[i].CreationTimestamp > out[j].CreationTimestamp
		}
		return out[i].ID > out[j].ID
	})
	return out
}

type Reconciler struct {
	dir         Directory
	chain       Chain
	logger      *log.Logger
	metrics     *metrics.ReconcilerMetrics
	concurrency int
}

// New creates a Reconciler. A concurrency below 1 means DefaultConcurrency.
func New(dir Directory, chain Chain, logger *log.Logger, concurrency int) *Reconciler {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Reconciler{
		dir:         dir,
		chain:       chain,
		logger:      logger.WithModule("reconciler"),
		metrics:     metrics.NewDefaultReconcilerMetrics(),
		concurrency: concurrency,
	}
}

// UserMultisigs returns the dashboard of wallet. The only error is an invalid
// wallet address; directory and per-multisig failures degrade the dashboard.
func (r *Reconciler) UserMultisigs(ctx context.Context, wallet string) (*Dashboard, error) {
	addr, err := multisig.ParseAddress(wallet)
	if err != nil {
		return nil, &multisig.ValidationError{Field: "wallet", Reason: err.Error()}
	}
	dash := &Dashboard{Wallet: addr, Multisigs: []Aggregate{}}
	logger := r.logger.With("wallet", addr)

	records, err := r.dir.Lookup(ctx, addr)
	if err != nil {
		logger.Warn("directory lookup failed", "err", err)
		r.metrics.Run(resultDirectoryUnavailable).Inc()
		dash.DirectoryErr = err
		return dash, nil
	}
	candidates := dedupe(records)
	r.metrics.Candidates().Observe(float64(len(candidates)))

	results := make([]*Aggregate, len(candidates))
	failures := make([]error, len(candidates))
	var group errgroup.Group
	group.SetLimit(r.concurrency)
	for i, id := range candidates {
		i, id := i, id
		group.Go(func() error {
			results[i], failures[i] = r.aggregate(ctx, id)
			return nil
		})
	}
	_ = group.Wait()

	for i, id := range candidates {
		if failures[i] != nil {
			logger.Warn("dropping multisig from dashboard", "multisig", id, "err", failures[i])
			r.metrics.Dropped().Inc()
			dash.Dropped = append(dash.Dropped, Dropped{ID: id, Err: failures[i]})
			continue
		}
		dash.Multisigs = append(dash.Multisigs, *results[i])
	}
	if len(dash.Dropped) > 0 {
		r.metrics.Run(resultPartial).Inc()
	} else {
		r.metrics.Run(resultComplete).Inc()
	}
	return dash, nil
}

func dedupe(records []directory.Record) []string {
	seen := make(map[string]struct{}, len(records))
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		if _, ok := seen[rec.ID]; ok {
			continue
		}
		seen[rec.ID] = struct{}{}
		ids = append(ids, rec.ID)
	}
	return ids
}

func (r *Reconciler) aggregate(ctx context.Context, rawID string) (*Aggregate, error) {
	id, err := multisig.ParseAddress(rawID)
	if err != nil {
		return nil, &multisig.ValidationError{Field: "multisig", Reason: err.Error()}
	}
	if !id.IsContract() {
		return nil, multisig.Invalid("multisig", "%s is not a contract address", id)
	}

	agg := &Aggregate{Address: id}
	var proposals []multisig.Proposal
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		info, err := r.chain.QueryInfo(groupCtx, id)
		if err != nil {
			return err
		}
		agg.Info = *info
		return nil
	})
	group.Go(func() (err error) {
		agg.Members, err = r.chain.QueryMembers(groupCtx, id)
		return err
	})
	group.Go(func() (err error) {
		proposals, err = r.chain.QueryAllProposals(groupCtx, id)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	agg.Proposals = make([]ProposalWithSignatures, len(proposals))
	group, groupCtx = errgroup.WithContext(ctx)
	group.SetLimit(r.concurrency)
	for i := range proposals {
		i := i
		group.Go(func() error {
			sigs, err := r.chain.QuerySignatures(groupCtx, id, proposals[i].ID)
			if err != nil {
				return fmt.Errorf("signatures of proposal %d: %w", proposals[i].ID, err)
			}
			agg.Proposals[i] = ProposalWithSignatures{Proposal: proposals[i], Signatures: sigs}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return agg, nil
}

// Register records a freshly deployed multisig with the directory.
func (r *Reconciler) Register(ctx context.Context, id multisig.Address, members []multisig.Address) error {
	if !id.IsContract() {
		return multisig.Invalid("multisig", "%s is not a contract address", id)
	}
	if len(members) == 0 {
		return multisig.Invalid("members", "at least one member is required")
	}
	if err := r.dir.Register(ctx, id, members); err != nil {
		r.logger.Warn("directory registration failed", "multisig", id, "err", err)
		return err
	}
	return nil
}
