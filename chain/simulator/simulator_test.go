package simulator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/raulk/clock"
	"github.com/stretchr/testify/require"

	"github.com/msigvault/msig/chain"
	"github.com/msigvault/msig/log"
	"github.com/msigvault/msig/multisig"
	"github.com/msigvault/msig/signer"
)

type fixture struct {
	sim     *Simulator
	clock   *clock.Mock
	members []*signer.KeySigner
	id      multisig.Address
}

func newFixture(t *testing.T, n int, quorumBps uint32) *fixture {
	clk := clock.NewMock()
	clk.Set(time.Unix(1_700_000_000, 0))
	f := &fixture{sim: New(clk, log.NewDefaultLogger("test")), clock: clk}
	addrs := make([]multisig.Address, 0, n)
	for i := 0; i < n; i++ {
		seed := make([]byte, 32)
		seed[0] = byte(i + 1)
		s, err := signer.NewKeySigner(seed)
		require.NoError(t, err)
		f.members = append(f.members, s)
		addrs = append(addrs, s.Address())
	}
	f.id = f.sim.AddMultisig(multisig.MultisigInfo{Name: "vault", Members: addrs, QuorumBps: quorumBps})
	return f
}

func (f *fixture) args(t *testing.T, v interface{}) json.RawMessage {
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

// submit simulates, signs and sends a write as member i.
func (f *fixture) submit(t *testing.T, i int, fn string, args interface{}) *chain.TransactionResponse {
	s := f.members[i]
	sim := f.sim.Simulate(chain.SimulateRequest{ContractID: f.id, Function: fn, Args: f.args(t, args), Source: s.Address()})
	require.Nil(t, sim.Fault)
	require.NotEmpty(t, sim.Transaction)

	signed, err := s.Sign(context.Background(), sim.Transaction)
	require.NoError(t, err)
	sent := f.sim.Send(signed.Envelope)
	require.Equal(t, chain.SendPending, sent.Status)
	return f.sim.Transaction(sent.Hash)
}

func (f *fixture) createTx(t *testing.T, i int, expiration uint64) uint64 {
	resp := f.submit(t, i, chain.FnCreateTransaction, chain.CreateProposalArgs{
		Sender: f.members[i].Address(),
		Title:  "pay",
		Kind: multisig.ProposalKind{Transaction: &multisig.Transaction{
			Recipient: f.members[0].Address(),
			Token:     f.id,
			Amount:    10,
		}},
		Expiration: expiration,
	})
	require.Equal(t, chain.TxSuccess, resp.Status)
	var pid uint64
	require.NoError(t, json.Unmarshal(resp.Result, &pid))
	return pid
}

func TestReads(t *testing.T) {
	f := newFixture(t, 3, 5000)

	resp := f.sim.Simulate(chain.SimulateRequest{ContractID: f.id, Function: chain.FnGetInfo})
	require.Nil(t, resp.Fault)
	var info multisig.MultisigInfo
	require.NoError(t, json.Unmarshal(resp.Result, &info))
	require.Equal(t, "vault", info.Name)
	require.Len(t, info.Members, 3)

	resp = f.sim.Simulate(chain.SimulateRequest{ContractID: f.id, Function: chain.FnGetLastProposalID})
	require.JSONEq(t, "0", string(resp.Result))

	resp = f.sim.Simulate(chain.SimulateRequest{ContractID: f.id, Function: chain.FnGetProposal, Args: f.args(t, chain.ProposalArgs{ProposalID: 1})})
	require.NotNil(t, resp.Fault)
	require.EqualValues(t, multisig.CodeProposalNotFound, resp.Fault.Code)

	resp = f.sim.Simulate(chain.SimulateRequest{ContractID: f.members[0].Address(), Function: chain.FnGetInfo})
	require.Equal(t, chain.FaultMissing, resp.Fault.Type)

	resp = f.sim.Simulate(chain.SimulateRequest{ContractID: f.id, Function: "nope"})
	require.Equal(t, chain.FaultMissing, resp.Fault.Type)
}

func TestProposalFlow(t *testing.T) {
	f := newFixture(t, 3, 6666)
	pid := f.createTx(t, 0, 0)
	require.EqualValues(t, 1, pid)

	require.Equal(t, chain.TxSuccess, f.submit(t, 0, chain.FnSignProposal, chain.SignerArgs{Signer: f.members[0].Address(), ProposalID: pid}).Status)

	// One of two required approvals.
	exec := f.sim.Simulate(chain.SimulateRequest{
		ContractID: f.id,
		Function:   chain.FnExecuteProposal,
		Args:       f.args(t, chain.SignerArgs{Signer: f.members[0].Address(), ProposalID: pid}),
		Source:     f.members[0].Address(),
	})
	require.NotNil(t, exec.Fault)
	require.EqualValues(t, multisig.CodeQuorumNotReached, exec.Fault.Code)

	require.Equal(t, chain.TxSuccess, f.submit(t, 1, chain.FnSignProposal, chain.SignerArgs{Signer: f.members[1].Address(), ProposalID: pid}).Status)
	require.Equal(t, chain.TxSuccess, f.submit(t, 2, chain.FnExecuteProposal, chain.SignerArgs{Signer: f.members[2].Address(), ProposalID: pid}).Status)

	require.Equal(t, []Transfer{{Multisig: f.id, Recipient: f.members[0].Address(), Token: f.id, Amount: 10}}, f.sim.Transfers())

	resp := f.sim.Simulate(chain.SimulateRequest{ContractID: f.id, Function: chain.FnSignProposal, Args: f.args(t, chain.SignerArgs{Signer: f.members[2].Address(), ProposalID: pid}), Source: f.members[2].Address()})
	require.EqualValues(t, multisig.CodeProposalClosed, resp.Fault.Code)
}

func TestStaleEnvelopeFailsOnSend(t *testing.T) {
	f := newFixture(t, 2, 5000)
	pid := f.createTx(t, 0, 0)
	f.sim.Approve(f.id, pid, f.members[0].Address())

	// Both members simulate execute while the proposal is open.
	var envelopes []string
	for i := 0; i < 2; i++ {
		sim := f.sim.Simulate(chain.SimulateRequest{
			ContractID: f.id,
			Function:   chain.FnExecuteProposal,
			Args:       f.args(t, chain.SignerArgs{Signer: f.members[i].Address(), ProposalID: pid}),
			Source:     f.members[i].Address(),
		})
		require.Nil(t, sim.Fault)
		signed, err := f.members[i].Sign(context.Background(), sim.Transaction)
		require.NoError(t, err)
		envelopes = append(envelopes, signed.Envelope)
	}

	first := f.sim.Send(envelopes[0])
	require.Equal(t, chain.TxSuccess, f.sim.Transaction(first.Hash).Status)
	second := f.sim.Send(envelopes[1])
	got := f.sim.Transaction(second.Hash)
	require.Equal(t, chain.TxFailed, got.Status)
	require.EqualValues(t, multisig.CodeProposalClosed, got.Fault.Code)

	require.Equal(t, chain.SendDuplicate, f.sim.Send(envelopes[0]).Status)
}

func TestExpiry(t *testing.T) {
	f := newFixture(t, 1, 10000)
	now := uint64(f.clock.Now().Unix())

	resp := f.sim.Simulate(chain.SimulateRequest{
		ContractID: f.id,
		Function:   chain.FnCreateTransaction,
		Args: f.args(t, chain.CreateProposalArgs{
			Sender:     f.members[0].Address(),
			Title:      "late",
			Kind:       multisig.ProposalKind{Transaction: &multisig.Transaction{Amount: 1}},
			Expiration: now,
		}),
		Source: f.members[0].Address(),
	})
	require.EqualValues(t, multisig.CodeInvalidExpiration, resp.Fault.Code)

	pid := f.createTx(t, 0, now+60)
	f.clock.Add(time.Minute)
	resp = f.sim.Simulate(chain.SimulateRequest{
		ContractID: f.id,
		Function:   chain.FnSignProposal,
		Args:       f.args(t, chain.SignerArgs{Signer: f.members[0].Address(), ProposalID: pid}),
		Source:     f.members[0].Address(),
	})
	require.EqualValues(t, multisig.CodeProposalExpired, resp.Fault.Code)
}

func TestUnauthorized(t *testing.T) {
	f := newFixture(t, 2, 5000)
	outsider, err := signer.NewKeySigner(make([]byte, 32))
	require.NoError(t, err)

	resp := f.sim.Simulate(chain.SimulateRequest{
		ContractID: f.id,
		Function:   chain.FnCreateTransaction,
		Args: f.args(t, chain.CreateProposalArgs{
			Sender: outsider.Address(),
			Title:  "x",
			Kind:   multisig.ProposalKind{Transaction: &multisig.Transaction{Amount: 1}},
		}),
		Source: outsider.Address(),
	})
	require.EqualValues(t, multisig.CodeUnauthorized, resp.Fault.Code)

	// Envelope signed by someone other than its source.
	sim := f.sim.Simulate(chain.SimulateRequest{
		ContractID: f.id,
		Function:   chain.FnSignProposal,
		Args:       f.args(t, chain.SignerArgs{Signer: f.members[0].Address(), ProposalID: f.createTx(t, 0, 0)}),
		Source:     f.members[0].Address(),
	})
	require.Nil(t, sim.Fault)
	signed, err := outsider.Sign(context.Background(), sim.Transaction)
	require.NoError(t, err)
	sent := f.sim.Send(signed.Envelope)
	require.Equal(t, chain.SendError, sent.Status)
	require.Equal(t, chain.FaultAuth, sent.Fault.Type)
}

func TestDeploy(t *testing.T) {
	f := newFixture(t, 2, 5000)
	deployer := f.sim.AddDeployer()
	owner := f.members[0]

	args := chain.DeployArgs{
		Deployer:  owner.Address(),
		Salt:      make([]byte, 32),
		Name:      "new",
		Members:   []multisig.Address{f.members[0].Address(), f.members[1].Address()},
		QuorumBps: 5000,
	}
	deploy := func(args chain.DeployArgs) *chain.SimulateResponse {
		return f.sim.Simulate(chain.SimulateRequest{ContractID: deployer, Function: chain.FnDeployNewMultisig, Args: f.args(t, args), Source: owner.Address()})
	}

	sim := deploy(args)
	require.Nil(t, sim.Fault)
	signed, err := owner.Sign(context.Background(), sim.Transaction)
	require.NoError(t, err)
	tx := f.sim.Transaction(f.sim.Send(signed.Envelope).Hash)
	require.Equal(t, chain.TxSuccess, tx.Status)
	var id multisig.Address
	require.NoError(t, json.Unmarshal(tx.Result, &id))
	require.True(t, id.IsContract())
	hash, ok := f.sim.WasmHash(id)
	require.True(t, ok)
	require.Equal(t, DefaultWasmHash, hash)

	// Same salt again.
	require.EqualValues(t, multisig.CodeAlreadyInitialized, deploy(args).Fault.Code)

	bad := args
	bad.Salt = []byte{1}
	bad.Members = nil
	require.EqualValues(t, multisig.CodeMembersEmpty, deploy(bad).Fault.Code)
	bad.Members = []multisig.Address{owner.Address(), owner.Address()}
	require.EqualValues(t, multisig.CodeDuplicateMember, deploy(bad).Fault.Code)
	bad.Members = []multisig.Address{owner.Address()}
	bad.QuorumBps = 10001
	require.EqualValues(t, multisig.CodeInvalidQuorum, deploy(bad).Fault.Code)
}

func TestConfirmAfter(t *testing.T) {
	f := newFixture(t, 1, 10000)
	f.sim.SetConfirmAfter(2)
	sim := f.sim.Simulate(chain.SimulateRequest{
		ContractID: f.id,
		Function:   chain.FnCreateTransaction,
		Args: f.args(t, chain.CreateProposalArgs{
			Sender: f.members[0].Address(),
			Title:  "x",
			Kind:   multisig.ProposalKind{Transaction: &multisig.Transaction{Amount: 1}},
		}),
		Source: f.members[0].Address(),
	})
	signed, err := f.members[0].Sign(context.Background(), sim.Transaction)
	require.NoError(t, err)
	hash := f.sim.Send(signed.Envelope).Hash

	require.Equal(t, chain.TxNotFound, f.sim.Transaction(hash).Status)
	require.Equal(t, chain.TxNotFound, f.sim.Transaction(hash).Status)
	require.Equal(t, chain.TxSuccess, f.sim.Transaction(hash).Status)
}

func TestRPC(t *testing.T) {
	f := newFixture(t, 1, 10000)
	client, err := DialInProc(f.sim)
	require.NoError(t, err)
	defer client.Close()

	var resp chain.SimulateResponse
	require.NoError(t, client.CallContext(context.Background(), &resp, "contract_simulate", chain.SimulateRequest{ContractID: f.id, Function: chain.FnGetMembers}))
	require.Nil(t, resp.Fault)
	var members []multisig.Address
	require.NoError(t, json.Unmarshal(resp.Result, &members))
	require.Equal(t, []multisig.Address{f.members[0].Address()}, members)

	var tx chain.TransactionResponse
	require.NoError(t, client.CallContext(context.Background(), &tx, "contract_getTransaction", "0xabc"))
	require.Equal(t, chain.TxNotFound, tx.Status)
}
