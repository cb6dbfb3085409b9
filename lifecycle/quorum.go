// Package lifecycle derives the effective state of multisig proposals from
// contract data and wall-clock time, and guards state-changing calls with it.
package lifecycle

import (
	"time"

	"github.com/msigvault/msig/multisig"
)

// RequiredApprovals is ceil(memberCount * quorumBps / 10000). Fractions round
// up, so a quorum is never met with fewer approvals than the threshold.
func RequiredApprovals(memberCount int, quorumBps uint32) uint32 {
	if memberCount <= 0 {
		return 0
	}
	n := uint64(memberCount)
	return uint32((n*uint64(quorumBps) + multisig.MaxQuorumBps - 1) / multisig.MaxQuorumBps)
}

// IsExpired reports whether p has an expiration and now has reached it.
func IsExpired(p *multisig.Proposal, now time.Time) bool {
	if p.ExpirationTimestamp == 0 {
		return false
	}
	sec := now.Unix()
	return sec >= 0 && uint64(sec) >= p.ExpirationTimestamp
}

// Status is the effective status of a proposal.
type Status string

const (
	StatusOpen    Status = "Open"
	StatusReady   Status = "ReadyToExecute"
	StatusExpired Status = "Expired"
	StatusClosed  Status = "Closed"
)
