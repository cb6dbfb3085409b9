package lifecycle

import (
	"github.com/msigvault/msig/multisig"
)

// ProposalView is a proposal as seen by one viewer at one point in time.
type ProposalView struct {
	MultisigID        multisig.Address      `json:"multisig_id"`
	Viewer            multisig.Address      `json:"viewer,omitempty"`
	Proposal          multisig.Proposal     `json:"proposal"`
	Signatures        multisig.SignatureSet `json:"signatures"`
	ApprovalCount     uint32                `json:"approval_count"`
	RequiredApprovals uint32                `json:"required_approvals"`
	IsExpired         bool                  `json:"is_expired"`
	IsExecutable      bool                  `json:"is_executable"`
	ViewerHasSigned   bool                  `json:"viewer_has_signed"`
	ViewerIsMember    bool                  `json:"viewer_is_member"`
}

func newView(id multisig.Address, viewer multisig.Address, info *multisig.MultisigInfo, members []multisig.Address, p *multisig.Proposal, sigs multisig.SignatureSet, expired bool) *ProposalView {
	v := &ProposalView{
		MultisigID:        id,
		Viewer:            viewer,
		Proposal:          *p,
		Signatures:        sigs,
		ApprovalCount:     sigs.Approvals(),
		RequiredApprovals: RequiredApprovals(len(members), info.QuorumBps),
		IsExpired:         expired,
		ViewerHasSigned:   sigs.HasApproved(viewer),
		ViewerIsMember:    multisig.IsMember(members, viewer),
	}
	v.IsExecutable = p.Status == multisig.StatusOpen && !v.IsExpired && v.ApprovalCount >= v.RequiredApprovals
	return v
}

// Status returns the effective status. Closed takes precedence over Expired.
func (v *ProposalView) Status() Status {
	switch {
	case v.Proposal.Status == multisig.StatusClosed:
		return StatusClosed
	case v.IsExpired:
		return StatusExpired
	case v.IsExecutable:
		return StatusReady
	default:
		return StatusOpen
	}
}

func (v *ProposalView) checkActionable() error {
	switch {
	case v.Proposal.Status == multisig.StatusClosed:
		return multisig.Invalid("proposal", "proposal %d is closed", v.Proposal.ID)
	case v.IsExpired:
		return multisig.Invalid("proposal", "proposal %d expired at %d", v.Proposal.ID, v.Proposal.ExpirationTimestamp)
	case !v.ViewerIsMember:
		return multisig.Invalid("signer", "%s is not a member of %s", v.Viewer, v.MultisigID)
	}
	return nil
}

// CheckSignable returns a validation error if the viewer cannot sign the proposal.
func (v *ProposalView) CheckSignable() error {
	return v.checkActionable()
}

// CheckExecutable returns a validation error if the viewer cannot execute the proposal.
func (v *ProposalView) CheckExecutable() error {
	if err := v.checkActionable(); err != nil {
		return err
	}
	if v.ApprovalCount < v.RequiredApprovals {
		return multisig.Invalid("proposal", "quorum not reached: %d of %d approvals", v.ApprovalCount, v.RequiredApprovals)
	}
	return nil
}
