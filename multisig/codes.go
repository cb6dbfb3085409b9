package multisig

import "fmt"

// ContractErrorCode is the numeric reason a multisig contract refuses a call.
type ContractErrorCode uint32

const (
	CodeAlreadyInitialized ContractErrorCode = 1
	CodeUnauthorized       ContractErrorCode = 2
	CodeMembersEmpty       ContractErrorCode = 3
	CodeInvalidQuorum      ContractErrorCode = 4
	CodeProposalNotFound   ContractErrorCode = 5
	CodeProposalClosed     ContractErrorCode = 6
	CodeProposalExpired    ContractErrorCode = 7
	CodeQuorumNotReached   ContractErrorCode = 8
	CodeInvalidExpiration  ContractErrorCode = 9
	CodeTitleTooLong       ContractErrorCode = 10
	CodeDescriptionTooLong ContractErrorCode = 11
	CodeDuplicateMember    ContractErrorCode = 12
	CodeUpgradeFailed      ContractErrorCode = 13
)

var codeNames = map[ContractErrorCode]string{
	CodeAlreadyInitialized: "AlreadyInitialized",
	CodeUnauthorized:       "Unauthorized",
	CodeMembersEmpty:       "MembersEmpty",
	CodeInvalidQuorum:      "InvalidQuorum",
	CodeProposalNotFound:   "ProposalNotFound",
	CodeProposalClosed:     "ProposalClosed",
	CodeProposalExpired:    "ProposalExpired",
	CodeQuorumNotReached:   "QuorumNotReached",
	CodeInvalidExpiration:  "InvalidExpiration",
	CodeTitleTooLong:       "TitleTooLong",
	CodeDescriptionTooLong: "DescriptionTooLong",
	CodeDuplicateMember:    "DuplicateMember",
	CodeUpgradeFailed:      "UpgradeFailed",
}

func (c ContractErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ContractError(%d)", uint32(c))
}
