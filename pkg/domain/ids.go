package domain

import (
	"github.com/google/uuid"

	dErrors "heirloom/pkg/domain-errors"
)

// Typed identifiers for the core entities. Wrapping uuid.UUID keeps IDs from
// crossing entity boundaries by accident; construct with the New* helpers and
// parse external input with the Parse* helpers at trust boundaries.

type (
	PrincipalID   uuid.UUID
	EstateID      uuid.UUID
	BeneficiaryID uuid.UUID
	TrusteeID     uuid.UUID
	QuestID       uuid.UUID
	MilestoneID   uuid.UUID
	EvidenceID    uuid.UUID
	MediaID       uuid.UUID
	AuditEntryID  uuid.UUID
)

func NewPrincipalID() PrincipalID     { return PrincipalID(uuid.New()) }
func NewEstateID() EstateID           { return EstateID(uuid.New()) }
func NewBeneficiaryID() BeneficiaryID { return BeneficiaryID(uuid.New()) }
func NewTrusteeID() TrusteeID         { return TrusteeID(uuid.New()) }
func NewQuestID() QuestID             { return QuestID(uuid.New()) }
func NewMilestoneID() MilestoneID     { return MilestoneID(uuid.New()) }
func NewEvidenceID() EvidenceID       { return EvidenceID(uuid.New()) }
func NewMediaID() MediaID             { return MediaID(uuid.New()) }
func NewAuditEntryID() AuditEntryID   { return AuditEntryID(uuid.New()) }

func (id PrincipalID) String() string   { return uuid.UUID(id).String() }
func (id EstateID) String() string      { return uuid.UUID(id).String() }
func (id BeneficiaryID) String() string { return uuid.UUID(id).String() }
func (id TrusteeID) String() string     { return uuid.UUID(id).String() }
func (id QuestID) String() string       { return uuid.UUID(id).String() }
func (id MilestoneID) String() string   { return uuid.UUID(id).String() }
func (id EvidenceID) String() string    { return uuid.UUID(id).String() }
func (id MediaID) String() string       { return uuid.UUID(id).String() }
func (id AuditEntryID) String() string  { return uuid.UUID(id).String() }

func (id PrincipalID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id EstateID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id BeneficiaryID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id TrusteeID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id QuestID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id MilestoneID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id EvidenceID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id MediaID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id AuditEntryID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }

func parseUUID(kind, s string) (uuid.UUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeBadRequest, "invalid %s id %q", kind, s)
	}
	return u, nil
}

// ParsePrincipalID constructs a PrincipalID from external input.
func ParsePrincipalID(s string) (PrincipalID, error) {
	u, err := parseUUID("principal", s)
	return PrincipalID(u), err
}

// ParseEstateID constructs an EstateID from external input.
func ParseEstateID(s string) (EstateID, error) {
	u, err := parseUUID("estate", s)
	return EstateID(u), err
}

// ParseBeneficiaryID constructs a BeneficiaryID from external input.
func ParseBeneficiaryID(s string) (BeneficiaryID, error) {
	u, err := parseUUID("beneficiary", s)
	return BeneficiaryID(u), err
}

// ParseTrusteeID constructs a TrusteeID from external input.
func ParseTrusteeID(s string) (TrusteeID, error) {
	u, err := parseUUID("trustee", s)
	return TrusteeID(u), err
}

// ParseQuestID constructs a QuestID from external input.
func ParseQuestID(s string) (QuestID, error) {
	u, err := parseUUID("quest", s)
	return QuestID(u), err
}

// ParseMilestoneID constructs a MilestoneID from external input.
func ParseMilestoneID(s string) (MilestoneID, error) {
	u, err := parseUUID("milestone", s)
	return MilestoneID(u), err
}

// ParseMediaID constructs a MediaID from external input.
func ParseMediaID(s string) (MediaID, error) {
	u, err := parseUUID("media", s)
	return MediaID(u), err
}
