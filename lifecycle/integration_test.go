package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/raulk/clock"
	"github.com/stretchr/testify/require"

	"github.com/msigvault/msig/chain/simulator"
	"github.com/msigvault/msig/gateway"
	"github.com/msigvault/msig/log"
	"github.com/msigvault/msig/multisig"
	"github.com/msigvault/msig/signer"
)

func TestEngineAgainstSimulator(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(testNow)
	logger := log.NewDefaultLogger("test")
	sim := simulator.New(clk, logger)

	var keys []*signer.KeySigner
	var addrs []multisig.Address
	for i := 1; i <= 4; i++ {
		seed := make([]byte, 32)
		seed[0] = byte(i)
		k, err := signer.NewKeySigner(seed)
		require.NoError(t, err)
		keys = append(keys, k)
		addrs = append(addrs, k.Address())
	}
	id := sim.AddMultisig(multisig.MultisigInfo{Name: "ops", Members: addrs, QuorumBps: 5000})

	client, err := simulator.DialInProc(sim)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	cfg := gateway.DefaultConfig()
	cfg.PollInitial = time.Millisecond
	cfg.PollMax = 5 * time.Millisecond
	gw := gateway.New(client, cfg, logger, gateway.WithClock(clk))
	e := NewEngine(gw, clk, logger)
	ctx := context.Background()

	exp := testNow.Add(time.Hour)
	pid, err := gw.CreateTransactionProposal(ctx, id, keys[0].Session(), gateway.TransactionProposalRequest{
		Title:      "pay",
		Recipient:  addrs[3],
		Amount:     10_000_000,
		Token:      id,
		Expiration: &exp,
	})
	require.NoError(t, err)

	require.NoError(t, e.Sign(ctx, keys[0].Session(), id, pid))
	view, err := e.GetProposalView(ctx, id, pid, addrs[0])
	require.NoError(t, err)
	require.True(t, view.ViewerHasSigned)
	require.Equal(t, StatusOpen, view.Status())
	require.ErrorIs(t, e.Execute(ctx, keys[0].Session(), id, pid), multisig.ErrValidation)

	require.NoError(t, e.Sign(ctx, keys[1].Session(), id, pid))
	view, err = e.GetProposalView(ctx, id, pid, addrs[2])
	require.NoError(t, err)
	require.Equal(t, StatusReady, view.Status())

	require.NoError(t, e.Execute(ctx, keys[2].Session(), id, pid))
	view, err = e.GetProposalView(ctx, id, pid, addrs[2])
	require.NoError(t, err)
	require.Equal(t, StatusClosed, view.Status())
	require.Len(t, sim.Transfers(), 1)
	require.ErrorIs(t, e.Execute(ctx, keys[2].Session(), id, pid), multisig.ErrValidation)

	// A second proposal that expires before quorum.
	pid2, err := gw.CreateTransactionProposal(ctx, id, keys[0].Session(), gateway.TransactionProposalRequest{
		Title: "late", Recipient: addrs[3], Amount: 1, Token: id, Expiration: &exp,
	})
	require.NoError(t, err)
	clk.Add(2 * time.Hour)
	views, err := e.ListProposals(ctx, id, addrs[0])
	require.NoError(t, err)
	require.Len(t, views, 2)
	require.Equal(t, StatusClosed, views[0].Status())
	require.Equal(t, pid2, views[1].Proposal.ID)
	require.Equal(t, StatusExpired, views[1].Status())
}
