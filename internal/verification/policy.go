package verification

import (
	"context"

	"heirloom/internal/estate"
	"heirloom/internal/quest"
)

// AutoApprovalPolicy decides whether a submission skips trustee review and
// completes directly. Injected so deployments can swap the rule without
// touching the state machine.
type AutoApprovalPolicy interface {
	ShouldAutoApprove(ctx context.Context, b *estate.Beneficiary, m *quest.Milestone) bool
}

// TierPolicy auto-approves automatic-mode milestones always, and any
// milestone when the beneficiary sits in the configured trust tier.
type TierPolicy struct {
	Tier string
}

func (p TierPolicy) ShouldAutoApprove(_ context.Context, b *estate.Beneficiary, m *quest.Milestone) bool {
	if m.Mode == quest.VerificationModeAutomatic {
		return true
	}
	return p.Tier != "" && b.TrustTier == p.Tier
}

// NeverAutoApprove forces every submission through trustee review.
type NeverAutoApprove struct{}

func (NeverAutoApprove) ShouldAutoApprove(context.Context, *estate.Beneficiary, *quest.Milestone) bool {
	return false
}
