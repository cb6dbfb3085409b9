// Package simulator hosts multisig contracts in memory and serves them over
// the contract JSON-RPC protocol. Transactions are applied when submitted and
// become visible to contract_getTransaction after a configurable number of polls.
package simulator

import (
	"encoding/json"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/raulk/clock"

	"github.com/msigvault/msig/chain"
	"github.com/msigvault/msig/envelope"
	"github.com/msigvault/msig/log"
	"github.com/msigvault/msig/multisig"
)

// DefaultWasmHash is the code hash of freshly deployed multisigs.
var DefaultWasmHash = crypto.Keccak256Hash([]byte("multisig-v1"))

type txRecord struct {
	polls int
	resp  chain.TransactionResponse
}

// Simulator is an in-memory contract host. It is safe for concurrent use.
type Simulator struct {
	mu sync.Mutex

	clock  clock.Clock
	logger *log.Logger

	deployers    map[multisig.Address]bool
	contracts    map[multisig.Address]*contract
	txs          map[string]*txRecord
	nonce        uint64
	seq          uint64
	transfers    []Transfer
	confirmAfter int
}

func New(clk clock.Clock, logger *log.Logger) *Simulator {
	return &Simulator{
		clock:     clk,
		logger:    logger.WithModule("simulator"),
		deployers: make(map[multisig.Address]bool),
		contracts: make(map[multisig.Address]*contract),
		txs:       make(map[string]*txRecord),
	}
}

// SetConfirmAfter makes submitted transactions report NOT_FOUND for the first
// n polls. A negative n means they are never reported.
func (s *Simulator) SetConfirmAfter(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmAfter = n
}

func (s *Simulator) now() uint64 {
	return uint64(s.clock.Now().Unix())
}

// AddDeployer registers a deployer contract and returns its address.
func (s *Simulator) AddDeployer() multisig.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextContractID("deployer")
	s.deployers[id] = true
	return id
}

// AddMultisig installs a multisig directly, bypassing deployment checks.
func (s *Simulator) AddMultisig(info multisig.MultisigInfo) multisig.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextContractID("multisig")
	c := newContract(info)
	c.wasmHash = DefaultWasmHash
	s.contracts[id] = c
	return id
}

// AddProposal appends p to multisig id, assigning its id and creation time.
func (s *Simulator) AddProposal(id multisig.Address, p multisig.Proposal) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.contracts[id]
	p.ID = uint64(len(c.proposals)) + 1
	if p.CreationTimestamp == 0 {
		p.CreationTimestamp = s.now()
	}
	if p.Status == "" {
		p.Status = multisig.StatusOpen
	}
	c.proposals = append(c.proposals, &p)
	return p.ID
}

// Approve records member's approval of proposal pid.
func (s *Simulator) Approve(id multisig.Address, pid uint64, member multisig.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contracts[id].approve(pid, member)
}

// Remove deletes a multisig, as if its contract were gone.
func (s *Simulator) Remove(id multisig.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contracts, id)
}

// Transfers returns the transfers made by executed proposals.
func (s *Simulator) Transfers() []Transfer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Transfer(nil), s.transfers...)
}

// WasmHash returns the code hash of multisig id.
func (s *Simulator) WasmHash(id multisig.Address) (common.Hash, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contracts[id]
	if !ok {
		return common.Hash{}, false
	}
	return c.wasmHash, true
}

func (s *Simulator) nextContractID(kind string) multisig.Address {
	s.seq++
	h := crypto.Keccak256([]byte(fmt.Sprintf("%s/%d", kind, s.seq)))
	id, err := multisig.ContractAddress(h)
	if err != nil {
		panic(err)
	}
	return id
}

// Simulate runs req without side effects. For state-changing functions the
// response carries the unsigned envelope to sign.
func (s *Simulator) Simulate(req chain.SimulateRequest) *chain.SimulateResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, apply, fault := s.dispatch(req.ContractID, req.Function, req.Args, req.Source)
	if fault != nil {
		return &chain.SimulateResponse{Fault: fault}
	}
	if apply == nil {
		return &chain.SimulateResponse{Result: result}
	}
	if !req.Source.IsAccount() {
		return &chain.SimulateResponse{Fault: &chain.Fault{Type: chain.FaultInvalid, Message: "source account required"}}
	}
	s.nonce++
	tx, err := envelope.Encode(&envelope.Invocation{
		ContractID: req.ContractID,
		Function:   req.Function,
		Args:       req.Args,
		Source:     req.Source,
		Nonce:      s.nonce,
	})
	if err != nil {
		return &chain.SimulateResponse{Fault: &chain.Fault{Type: chain.FaultInvalid, Message: err.Error()}}
	}
	return &chain.SimulateResponse{Transaction: tx}
}

// Send verifies and applies a signed envelope. Contract refusals are reported
// through the transaction status, not here.
func (s *Simulator) Send(signedTx string) *chain.SendResponse {
	inv, err := envelope.Open(signedTx)
	if err != nil {
		return &chain.SendResponse{Status: chain.SendError, Fault: &chain.Fault{Type: chain.FaultAuth, Message: err.Error()}}
	}
	hash := envelope.Hash(signedTx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[hash]; ok {
		return &chain.SendResponse{Hash: hash, Status: chain.SendDuplicate}
	}

	rec := &txRecord{}
	s.txs[hash] = rec
	_, apply, fault := s.dispatch(inv.ContractID, inv.Function, inv.Args, inv.Source)
	switch {
	case fault != nil:
		rec.resp = chain.TransactionResponse{Status: chain.TxFailed, Fault: fault}
	case apply == nil:
		rec.resp = chain.TransactionResponse{Status: chain.TxFailed, Fault: &chain.Fault{Type: chain.FaultInvalid, Message: inv.Function + " is read-only"}}
	default:
		result, err := json.Marshal(apply())
		if err != nil {
			panic(err)
		}
		rec.resp = chain.TransactionResponse{Status: chain.TxSuccess, Result: result}
	}
	s.logger.Debug("transaction applied",
		"hash", hash,
		"contract", inv.ContractID,
		"function", inv.Function,
		"status", rec.resp.Status,
	)
	return &chain.SendResponse{Hash: hash, Status: chain.SendPending}
}

// Transaction reports the state of a submitted transaction.
func (s *Simulator) Transaction(hash string) *chain.TransactionResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.txs[hash]
	if !ok || s.confirmAfter < 0 {
		return &chain.TransactionResponse{Status: chain.TxNotFound}
	}
	if rec.polls < s.confirmAfter {
		rec.polls++
		return &chain.TransactionResponse{Status: chain.TxNotFound}
	}
	resp := rec.resp
	return &resp
}

// dispatch checks a call against current state. Reads return their result;
// writes return an apply function to run under the same lock.
func (s *Simulator) dispatch(id multisig.Address, fn string, rawArgs json.RawMessage, source multisig.Address) (json.RawMessage, func() interface{}, *chain.Fault) {
	if fn == chain.FnDeployNewMultisig {
		if !s.deployers[id] {
			return nil, nil, &chain.Fault{Type: chain.FaultMissing, Message: fmt.Sprintf("deployer %s not found", id)}
		}
		var args chain.DeployArgs
		if fault := decodeArgs(rawArgs, &args); fault != nil {
			return nil, nil, fault
		}
		apply, fault := s.deploy(id, source, &args)
		return nil, apply, fault
	}

	c, ok := s.contracts[id]
	if !ok {
		return nil, nil, &chain.Fault{Type: chain.FaultMissing, Message: fmt.Sprintf("contract %s not found", id)}
	}
	now := s.now()

	switch fn {
	case chain.FnGetInfo:
		return marshal(c.info)
	case chain.FnGetMembers:
		return marshal(c.info.Members)
	case chain.FnGetAllProposals:
		all := make([]multisig.Proposal, 0, len(c.proposals))
		for _, p := range c.proposals {
			all = append(all, *p)
		}
		return marshal(all)
	case chain.FnGetLastProposalID:
		return marshal(uint64(len(c.proposals)))
	case chain.FnGetProposal, chain.FnGetSignatures, chain.FnIsProposalReady:
		var args chain.ProposalArgs
		if fault := decodeArgs(rawArgs, &args); fault != nil {
			return nil, nil, fault
		}
		p, fault := c.proposal(args.ProposalID)
		if fault != nil {
			return nil, nil, fault
		}
		switch fn {
		case chain.FnGetProposal:
			return marshal(p)
		case chain.FnGetSignatures:
			return marshal(c.signatureSet(p.ID))
		default:
			return marshal(c.isReady(p, now))
		}
	case chain.FnCreateTransaction, chain.FnCreateUpdate:
		var args chain.CreateProposalArgs
		if fault := decodeArgs(rawArgs, &args); fault != nil {
			return nil, nil, fault
		}
		apply, fault := c.create(fn, source, &args, now)
		return nil, apply, fault
	case chain.FnSignProposal, chain.FnExecuteProposal:
		var args chain.SignerArgs
		if fault := decodeArgs(rawArgs, &args); fault != nil {
			return nil, nil, fault
		}
		if args.Signer != source {
			return nil, nil, chain.ContractFault(multisig.CodeUnauthorized, "%s cannot act for %s", source, args.Signer)
		}
		if fault := c.requireMember(args.Signer); fault != nil {
			return nil, nil, fault
		}
		p, fault := c.requireActionable(args.ProposalID, now)
		if fault != nil {
			return nil, nil, fault
		}
		if fn == chain.FnSignProposal {
			return nil, func() interface{} {
				c.approve(p.ID, args.Signer)
				return nil
			}, nil
		}
		if got, want := c.signatureSet(p.ID).Approvals(), c.requiredApprovals(); got < want {
			return nil, nil, chain.ContractFault(multisig.CodeQuorumNotReached, "%d of %d approvals", got, want)
		}
		return nil, func() interface{} {
			s.execute(id, c, p)
			return nil
		}, nil
	default:
		return nil, nil, &chain.Fault{Type: chain.FaultMissing, Message: fmt.Sprintf("function %s not found", fn)}
	}
}

func (c *contract) approve(pid uint64, member multisig.Address) {
	if c.signatures[pid] == nil {
		c.signatures[pid] = make(map[multisig.Address]bool)
	}
	c.signatures[pid][member] = true
}

func (c *contract) create(fn string, source multisig.Address, args *chain.CreateProposalArgs, now uint64) (func() interface{}, *chain.Fault) {
	if args.Sender != source {
		return nil, chain.ContractFault(multisig.CodeUnauthorized, "%s cannot act for %s", source, args.Sender)
	}
	if fault := c.requireMember(args.Sender); fault != nil {
		return nil, fault
	}
	if utf8.RuneCountInString(args.Title) > MaxTitleLength {
		return nil, chain.ContractFault(multisig.CodeTitleTooLong, "title exceeds %d characters", MaxTitleLength)
	}
	if utf8.RuneCountInString(args.Description) > MaxDescriptionLength {
		return nil, chain.ContractFault(multisig.CodeDescriptionTooLong, "description exceeds %d characters", MaxDescriptionLength)
	}
	if args.Expiration != 0 && args.Expiration <= now {
		return nil, chain.ContractFault(multisig.CodeInvalidExpiration, "expiration %d is not after %d", args.Expiration, now)
	}
	switch {
	case fn == chain.FnCreateTransaction && args.Kind.Transaction == nil,
		fn == chain.FnCreateUpdate && args.Kind.UpdateContract == nil:
		return nil, &chain.Fault{Type: chain.FaultInvalid, Message: "proposal kind does not match " + fn}
	}
	return func() interface{} {
		p := &multisig.Proposal{
			ID:                  uint64(len(c.proposals)) + 1,
			Sender:              args.Sender,
			CreationTimestamp:   now,
			ExpirationTimestamp: args.Expiration,
			Status:              multisig.StatusOpen,
			Kind:                args.Kind,
			Title:               args.Title,
			Description:         args.Description,
		}
		c.proposals = append(c.proposals, p)
		return p.ID
	}, nil
}

func (s *Simulator) execute(id multisig.Address, c *contract, p *multisig.Proposal) {
	p.Status = multisig.StatusClosed
	switch {
	case p.Kind.Transaction != nil:
		tx := p.Kind.Transaction
		s.transfers = append(s.transfers, Transfer{Multisig: id, Recipient: tx.Recipient, Token: tx.Token, Amount: tx.Amount})
	case p.Kind.UpdateContract != nil:
		c.wasmHash = p.Kind.UpdateContract.NewWasmHash
	}
}

func (s *Simulator) deploy(deployer multisig.Address, source multisig.Address, args *chain.DeployArgs) (func() interface{}, *chain.Fault) {
	if args.Deployer != source {
		return nil, chain.ContractFault(multisig.CodeUnauthorized, "%s cannot deploy for %s", source, args.Deployer)
	}
	if len(args.Members) == 0 {
		return nil, chain.ContractFault(multisig.CodeMembersEmpty, "no members")
	}
	seen := make(map[multisig.Address]bool, len(args.Members))
	for _, m := range args.Members {
		if seen[m] {
			return nil, chain.ContractFault(multisig.CodeDuplicateMember, "duplicate member %s", m)
		}
		seen[m] = true
	}
	if args.QuorumBps > multisig.MaxQuorumBps {
		return nil, chain.ContractFault(multisig.CodeInvalidQuorum, "quorum %d exceeds %d", args.QuorumBps, multisig.MaxQuorumBps)
	}
	id, err := multisig.ContractAddress(crypto.Keccak256([]byte(deployer), []byte(args.Deployer), args.Salt))
	if err != nil {
		return nil, &chain.Fault{Type: chain.FaultInvalid, Message: err.Error()}
	}
	if _, exists := s.contracts[id]; exists {
		return nil, chain.ContractFault(multisig.CodeAlreadyInitialized, "%s already initialized", id)
	}
	return func() interface{} {
		c := newContract(multisig.MultisigInfo{
			Name:        args.Name,
			Description: args.Description,
			Members:     append([]multisig.Address(nil), args.Members...),
			QuorumBps:   args.QuorumBps,
		})
		c.wasmHash = DefaultWasmHash
		s.contracts[id] = c
		return id
	}, nil
}

func decodeArgs(raw json.RawMessage, v interface{}) *chain.Fault {
	if err := json.Unmarshal(raw, v); err != nil {
		return &chain.Fault{Type: chain.FaultInvalid, Message: fmt.Sprintf("malformed arguments: %v", err)}
	}
	return nil
}

func marshal(v interface{}) (json.RawMessage, func() interface{}, *chain.Fault) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, nil, &chain.Fault{Type: chain.FaultInvalid, Message: err.Error()}
	}
	return raw, nil, nil
}
