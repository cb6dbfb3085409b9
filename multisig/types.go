// Package multisig defines the data model shared by the multisig client
// library: multisig configuration, proposals, signatures, directory entries
// and the error taxonomy used across the gateway, lifecycle and reconciler.
package multisig

import (
	"github.com/ethereum/go-ethereum/common"
)

// MaxQuorumBps is the quorum expressed in basis points that requires every member.
const MaxQuorumBps = 10_000

// MultisigInfo is the configuration of a deployed multisig.
type MultisigInfo struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Members     []Address `json:"members"`
	QuorumBps   uint32    `json:"quorum_bps"`
}

// ProposalStatus is the on-chain status of a proposal. The only transition is
// Open -> Closed.
type ProposalStatus string

const (
	StatusOpen   ProposalStatus = "Open"
	StatusClosed ProposalStatus = "Closed"
)

// Transaction is a transfer of Amount units of Token to Recipient.
type Transaction struct {
	Recipient Address `json:"recipient"`
	Amount    int64   `json:"amount"`
	Token     Address `json:"token"`
}

// UpdateContract replaces the multisig's executable code.
type UpdateContract struct {
	NewWasmHash common.Hash `json:"new_wasm_hash"`
}

// ProposalKind is a tagged union: exactly one field is set.
type ProposalKind struct {
	Transaction    *Transaction    `json:"transaction,omitempty"`
	UpdateContract *UpdateContract `json:"update_contract,omitempty"`
}

// Name returns the variant name of the kind.
func (k ProposalKind) Name() string {
	switch {
	case k.Transaction != nil:
		return "Transaction"
	case k.UpdateContract != nil:
		return "UpdateContract"
	default:
		return "Unknown"
	}
}

// Proposal is a pending or finished action of a multisig.
type Proposal struct {
	ID                  uint64         `json:"id"`
	Sender              Address        `json:"sender"`
	CreationTimestamp   uint64         `json:"creation_timestamp"`
	ExpirationTimestamp uint64         `json:"expiration_timestamp"` // 0 means no expiration
	Status              ProposalStatus `json:"status"`
	Kind                ProposalKind   `json:"kind"`
	Title               string         `json:"title"`
	Description         string         `json:"description"`
}

// Signature is one member's entry in a proposal's signature set.
type Signature struct {
	Address  Address `json:"address"`
	Approved bool    `json:"approved"`
}

// SignatureSet holds one entry per current member, in member order.
type SignatureSet []Signature

// Approvals counts the approving entries.
func (s SignatureSet) Approvals() uint32 {
	var n uint32
	for _, sig := range s {
		if sig.Approved {
			n++
		}
	}
	return n
}

// HasApproved reports whether addr has an approving entry.
func (s SignatureSet) HasApproved(addr Address) bool {
	for _, sig := range s {
		if sig.Address == addr && sig.Approved {
			return true
		}
	}
	return false
}

// DirectoryEntry maps a wallet to a multisig it was registered with.
type DirectoryEntry struct {
	WalletAddress Address `json:"wallet_address"`
	MultisigID    Address `json:"multisig_id"`
}

// IsMember reports whether addr is in members.
func IsMember(members []Address, addr Address) bool {
	for _, m := range members {
		if m == addr {
			return true
		}
	}
	return false
}
