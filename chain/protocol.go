// Package chain defines the JSON-RPC protocol spoken between the contract
// gateway and a contract host node. Methods live in the "contract" namespace:
//
//	contract_simulate(SimulateRequest) -> SimulateResponse
//	contract_sendTransaction(signedEnvelope) -> SendResponse
//	contract_getTransaction(hash) -> TransactionResponse
package chain

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/msigvault/msig/multisig"
)

// Namespace is the JSON-RPC namespace of the contract methods.
const Namespace = "contract"

// Contract function names.
const (
	FnGetInfo           = "get_info"
	FnGetMembers        = "get_members"
	FnGetProposal       = "get_proposal"
	FnGetAllProposals   = "get_all_proposals"
	FnGetSignatures     = "get_signatures"
	FnGetLastProposalID = "get_last_proposal_id"
	FnIsProposalReady   = "is_proposal_ready"
	FnCreateTransaction = "create_transaction_proposal"
	FnCreateUpdate      = "create_update_proposal"
	FnSignProposal      = "sign_proposal"
	FnExecuteProposal   = "execute_proposal"
	FnDeployNewMultisig = "deploy_new_multisig"
)

// SimulateRequest invokes Function on ContractID as Source without side effects.
// For state-changing functions the response carries the unsigned envelope.
type SimulateRequest struct {
	ContractID multisig.Address `json:"contractId"`
	Function   string           `json:"function"`
	Args       json.RawMessage  `json:"args,omitempty"`
	Source     multisig.Address `json:"source,omitempty"`
}

// SimulateResponse is the outcome of a simulation. Exactly one of Result and
// Fault is meaningful.
type SimulateResponse struct {
	Result      json.RawMessage `json:"result,omitempty"`
	Transaction string          `json:"transaction,omitempty"`
	Fault       *Fault          `json:"fault,omitempty"`
}

// SendStatus is the immediate answer to a submitted envelope.
type SendStatus string

const (
	SendPending   SendStatus = "PENDING"
	SendError     SendStatus = "ERROR"
	SendDuplicate SendStatus = "DUPLICATE"
)

// SendResponse acknowledges a submitted envelope.
type SendResponse struct {
	Hash   string     `json:"hash"`
	Status SendStatus `json:"status"`
	Fault  *Fault     `json:"fault,omitempty"`
}

// TxStatus is the status of a submitted transaction.
type TxStatus string

const (
	TxNotFound TxStatus = "NOT_FOUND"
	TxSuccess  TxStatus = "SUCCESS"
	TxFailed   TxStatus = "FAILED"
)

// TransactionResponse is the state of a submitted transaction.
type TransactionResponse struct {
	Status TxStatus        `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Fault  *Fault          `json:"fault,omitempty"`
}

// FaultType says which party refused a call.
type FaultType string

const (
	// FaultContract is the contract's own refusal; Code is a ContractErrorCode.
	FaultContract FaultType = "contract"
	// FaultMissing reports an unknown contract or function.
	FaultMissing FaultType = "missing"
	// FaultAuth reports an envelope whose signature does not match its source.
	FaultAuth FaultType = "auth"
	// FaultInvalid reports arguments the host could not decode.
	FaultInvalid FaultType = "invalid"
)

// Fault is a refusal reported by the host.
type Fault struct {
	Type    FaultType `json:"type"`
	Code    uint32    `json:"code,omitempty"`
	Message string    `json:"message,omitempty"`
}

func (f *Fault) Error() string {
	if f.Type == FaultContract {
		return fmt.Sprintf("contract fault %s (%d): %s", multisig.ContractErrorCode(f.Code), f.Code, f.Message)
	}
	return fmt.Sprintf("%s fault: %s", f.Type, f.Message)
}

// ContractFault builds a contract refusal.
func ContractFault(code multisig.ContractErrorCode, format string, args ...interface{}) *Fault {
	return &Fault{Type: FaultContract, Code: uint32(code), Message: fmt.Sprintf(format, args...)}
}

// ProposalArgs addresses one proposal.
type ProposalArgs struct {
	ProposalID uint64 `json:"proposal_id"`
}

// SignerArgs addresses one proposal on behalf of a member.
type SignerArgs struct {
	Signer     multisig.Address `json:"signer"`
	ProposalID uint64           `json:"proposal_id"`
}

// CreateProposalArgs creates a proposal of either kind.
type CreateProposalArgs struct {
	Sender      multisig.Address      `json:"sender"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Kind        multisig.ProposalKind `json:"kind"`
	Expiration  uint64                `json:"expiration_date,omitempty"`
}

// DeployArgs deploys and initializes a new multisig from a deployer contract.
type DeployArgs struct {
	Deployer    multisig.Address   `json:"deployer"`
	Salt        hexutil.Bytes      `json:"salt"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Members     []multisig.Address `json:"members"`
	QuorumBps   uint32             `json:"quorum_bps"`
}
