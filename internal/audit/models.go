// Package audit is the append-only record of every state transition with
// irreversible monetary consequences. The state machine writes it and never
// reads it back; the query surface exists for dispute resolution only.
package audit

import (
	"time"

	id "heirloom/pkg/domain"
)

// Action tags what happened. One audit entry is written per state
// transition; the tag names the transition, not the HTTP operation.
type Action string

const (
	ActionEstateCreated       Action = "estate_created"
	ActionEstateStatusChanged Action = "estate_status_changed"

	ActionBeneficiaryInvited  Action = "beneficiary_invited"
	ActionBeneficiaryAccepted Action = "beneficiary_accepted"
	ActionBeneficiaryDeclined Action = "beneficiary_declined"
	ActionTrusteeInvited      Action = "trustee_invited"
	ActionTrusteeAccepted     Action = "trustee_accepted"
	ActionTrusteeDeclined     Action = "trustee_declined"
	ActionTrusteeUpdated      Action = "trustee_permissions_updated"

	ActionQuestCreated       Action = "quest_created"
	ActionMilestonesReplaced Action = "milestones_replaced"
	ActionQuestPublished     Action = "quest_published"
	ActionQuestPaused        Action = "quest_paused"
	ActionQuestResumed       Action = "quest_resumed"
	ActionQuestCompleted     Action = "quest_completed"
	ActionQuestArchived      Action = "quest_archived"

	ActionMilestoneStarted   Action = "milestone_started"
	ActionMilestoneSubmitted Action = "milestone_submitted"
	ActionMilestoneApproved  Action = "milestone_approved"
	ActionMilestoneRejected  Action = "milestone_rejected"
	ActionMilestoneAutoDone  Action = "milestone_auto_approved"

	ActionMediaRegistered Action = "media_registered"
	ActionMediaUnlocked   Action = "media_unlocked"
	ActionMediaDeleted    Action = "media_deleted"
)

// Actor captures who performed the transition and from where. The device
// summary and request ID come from middleware; the principal from the token.
type Actor struct {
	PrincipalID id.PrincipalID
	Role        id.Role
	Device      string
	ClientIP    string
	RequestID   string
}

// EntityRefs pins the entry to the entities involved. Estate is always set;
// quest, milestone, and media only when the transition touched them.
type EntityRefs struct {
	EstateID    id.EstateID
	QuestID     *id.QuestID
	MilestoneID *id.MilestoneID
	MediaID     *id.MediaID
}

// Entry is one immutable audit record with before/after snapshots of the
// mutated fields. Snapshots are shallow field maps, not full entities.
type Entry struct {
	ID        id.AuditEntryID
	Timestamp time.Time
	Action    Action
	Refs      EntityRefs
	Actor     Actor
	Before    map[string]any
	After     map[string]any
}
