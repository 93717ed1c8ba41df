package audit

import (
	"context"

	id "heirloom/pkg/domain"
	"heirloom/pkg/requestcontext"
)

// Store persists audit entries. The postgres implementation writes to the
// transactional outbox; tests swap in the memory sink.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByEstate(ctx context.Context, estateID id.EstateID) ([]Entry, error)
}

// Publisher captures structured audit entries. It is append-only and
// fail-closed: if the entry cannot be persisted the calling operation must
// not proceed, because the audit trail is the source of truth for disputes
// over irreversible unlocks.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

// Record appends one entry. Timestamp and actor enrichment (device, IP,
// request ID) are filled from context when the caller left them empty.
func (p *Publisher) Record(ctx context.Context, entry Entry) error {
	if entry.ID.IsNil() {
		entry.ID = id.NewAuditEntryID()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = requestcontext.Now(ctx)
	}
	if entry.Actor.PrincipalID.IsNil() {
		entry.Actor.PrincipalID = requestcontext.PrincipalID(ctx)
		entry.Actor.Role = requestcontext.Role(ctx)
	}
	if entry.Actor.Device == "" {
		entry.Actor.Device = requestcontext.Device(ctx)
	}
	if entry.Actor.ClientIP == "" {
		entry.Actor.ClientIP = requestcontext.ClientIP(ctx)
	}
	if entry.Actor.RequestID == "" {
		entry.Actor.RequestID = requestcontext.RequestID(ctx)
	}
	return p.store.Append(ctx, entry)
}

// ListByEstate returns the estate's audit history, oldest first.
func (p *Publisher) ListByEstate(ctx context.Context, estateID id.EstateID) ([]Entry, error) {
	return p.store.ListByEstate(ctx, estateID)
}
