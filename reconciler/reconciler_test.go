package reconciler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/raulk/clock"
	"github.com/stretchr/testify/require"

	"github.com/msigvault/msig/chain/simulator"
	"github.com/msigvault/msig/directory"
	"github.com/msigvault/msig/gateway"
	"github.com/msigvault/msig/log"
	"github.com/msigvault/msig/multisig"
	"github.com/msigvault/msig/signer"
)

var testStart = time.Unix(1_700_000_000, 0)

type fakeDirectory struct {
	mu       sync.Mutex
	records  map[multisig.Address][]directory.Record
	err      error
	register map[multisig.Address][]multisig.Address
}

func (d *fakeDirectory) Lookup(ctx context.Context, wallet multisig.Address) ([]directory.Record, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.records[wallet], nil
}

func (d *fakeDirectory) Register(ctx context.Context, id multisig.Address, members []multisig.Address) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	if d.register == nil {
		d.register = map[multisig.Address][]multisig.Address{}
	}
	d.register[id] = members
	return nil
}

type testEnv struct {
	sim     *simulator.Simulator
	clock   *clock.Mock
	gw      *gateway.Gateway
	keys    []*signer.KeySigner
	members []multisig.Address
	dir     *fakeDirectory
	r       *Reconciler
}

func newTestEnv(t *testing.T) *testEnv {
	clk := clock.NewMock()
	clk.Set(testStart)
	logger := log.NewDefaultLogger("test")
	sim := simulator.New(clk, logger)
	client, err := simulator.DialInProc(sim)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	cfg := gateway.DefaultConfig()
	cfg.PollInitial = time.Millisecond
	cfg.PollMax = 5 * time.Millisecond
	cfg.ReadAttempts = 1
	env := &testEnv{
		sim:   sim,
		clock: clk,
		gw:    gateway.New(client, cfg, logger, gateway.WithClock(clk)),
		dir:   &fakeDirectory{records: map[multisig.Address][]directory.Record{}},
	}
	for i := 1; i <= 3; i++ {
		seed := make([]byte, 32)
		seed[0] = byte(i)
		k, err := signer.NewKeySigner(seed)
		require.NoError(t, err)
		env.keys = append(env.keys, k)
		env.members = append(env.members, k.Address())
	}
	env.r = New(env.dir, env.gw, logger, 2)
	return env
}

func (e *testEnv) addMultisig(name string, proposals int) multisig.Address {
	id := e.sim.AddMultisig(multisig.MultisigInfo{Name: name, Members: e.members, QuorumBps: 5000})
	for i := 0; i < proposals; i++ {
		pid := e.sim.AddProposal(id, multisig.Proposal{
			Sender:            e.members[0],
			Title:             name,
			CreationTimestamp: uint64(testStart.Unix()) + uint64(i),
			Kind:              multisig.ProposalKind{Transaction: &multisig.Transaction{Recipient: e.members[1], Amount: 1, Token: id}},
		})
		e.sim.Approve(id, pid, e.members[0])
	}
	for _, m := range e.members {
		e.dir.records[m] = append(e.dir.records[m], directory.Record{ID: id.String()})
	}
	return id
}

func TestUserMultisigs(t *testing.T) {
	env := newTestEnv(t)
	a := env.addMultisig("alpha", 3)
	b := env.addMultisig("beta", 1)

	dash, err := env.r.UserMultisigs(context.Background(), env.members[1].String())
	require.NoError(t, err)
	require.NoError(t, dash.Err())
	require.Empty(t, dash.Dropped)
	require.Len(t, dash.Multisigs, 2)

	byID := map[multisig.Address]Aggregate{}
	for _, agg := range dash.Multisigs {
		byID[agg.Address] = agg
	}
	require.Equal(t, "alpha", byID[a].Info.Name)
	require.Equal(t, env.members, byID[a].Members)
	require.Len(t, byID[a].Proposals, 3)
	for _, p := range byID[a].Proposals {
		require.EqualValues(t, 1, p.Signatures.Approvals())
		require.True(t, p.Signatures.HasApproved(env.members[0]))
	}
	require.Len(t, byID[b].Proposals, 1)

	flat := dash.Proposals()
	require.Len(t, flat, 4)
	for i := 1; i < len(flat); i++ {
		require.GreaterOrEqual(t, flat[i-1].CreationTimestamp, flat[i].CreationTimestamp)
	}
}

func TestUnresolvableCandidateIsDropped(t *testing.T) {
	env := newTestEnv(t)
	kept := env.addMultisig("kept", 1)
	gone := env.addMultisig("gone", 2)
	env.sim.Remove(gone)

	dash, err := env.r.UserMultisigs(context.Background(), env.members[0].String())
	require.NoError(t, err)
	require.Len(t, dash.Multisigs, 1)
	require.Equal(t, kept, dash.Multisigs[0].Address)
	require.Len(t, dash.Dropped, 1)
	require.Equal(t, gone.String(), dash.Dropped[0].ID)
	require.ErrorIs(t, dash.Dropped[0].Err, multisig.ErrNotFound)
	require.ErrorIs(t, dash.Err(), multisig.ErrPartialAggregate)
	require.Equal(t, multisig.KindPartialAggregate, multisig.KindOf(dash.Err()))
}

func TestBogusDirectoryRows(t *testing.T) {
	env := newTestEnv(t)
	id := env.addMultisig("real", 0)
	w := env.members[0]
	env.dir.records[w] = append(env.dir.records[w],
		directory.Record{ID: id.String()},
		directory.Record{ID: "not-an-address"},
		directory.Record{ID: w.String()},
	)

	dash, err := env.r.UserMultisigs(context.Background(), w.String())
	require.NoError(t, err)
	require.Len(t, dash.Multisigs, 1)
	require.Empty(t, dash.Multisigs[0].Proposals)
	require.Len(t, dash.Dropped, 2)
	for _, d := range dash.Dropped {
		require.ErrorIs(t, d.Err, multisig.ErrValidation)
	}
}

func TestDirectoryUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.addMultisig("alpha", 1)
	env.dir.err = multisig.NewDirectoryError(errors.New("connection refused"))

	dash, err := env.r.UserMultisigs(context.Background(), env.members[0].String())
	require.NoError(t, err)
	require.Empty(t, dash.Multisigs)
	require.ErrorIs(t, dash.DirectoryErr, multisig.ErrDirectoryUnavailable)
	require.ErrorIs(t, dash.Err(), multisig.ErrDirectoryUnavailable)
}

func TestUnknownWallet(t *testing.T) {
	env := newTestEnv(t)
	dash, err := env.r.UserMultisigs(context.Background(), env.members[0].String())
	require.NoError(t, err)
	require.NotNil(t, dash.Multisigs)
	require.Empty(t, dash.Multisigs)
	require.NoError(t, dash.Err())
}

func TestInvalidWallet(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.r.UserMultisigs(context.Background(), "GNOPE")
	require.ErrorIs(t, err, multisig.ErrValidation)
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	deployer := env.sim.AddDeployer()
	id, err := env.gw.DeployNewMultisig(ctx, deployer, env.keys[0].Session(), gateway.DeployRequest{
		Name:             "fresh",
		ThresholdPercent: 60,
		Members:          env.members,
	})
	require.NoError(t, err)

	require.NoError(t, env.r.Register(ctx, id, env.members))
	require.Equal(t, env.members, env.dir.register[id])

	require.ErrorIs(t, env.r.Register(ctx, env.members[0], env.members), multisig.ErrValidation)
	require.ErrorIs(t, env.r.Register(ctx, id, nil), multisig.ErrValidation)

	env.dir.err = multisig.NewDirectoryError(errors.New("down"))
	require.ErrorIs(t, env.r.Register(ctx, id, env.members), multisig.ErrDirectoryUnavailable)
}
