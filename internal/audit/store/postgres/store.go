// Package postgres implements the audit store using the transactional outbox
// pattern. Entries are written to the outbox table inside the caller's
// transaction and relayed to Kafka by the outbox relay; the relay's consumer
// side materializes them into audit_entries for the query surface.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"heirloom/internal/audit"
	id "heirloom/pkg/domain"
	txcontext "heirloom/pkg/platform/tx"
)

// Store implements audit.Store over PostgreSQL.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// outboxPayload is the JSON structure relayed to Kafka. Field names match
// audit.Entry so the consumer can materialize entries without a mapping
// layer.
type outboxPayload struct {
	ID          string         `json:"ID"`
	Timestamp   string         `json:"Timestamp"`
	Action      string         `json:"Action"`
	EstateID    string         `json:"EstateID"`
	QuestID     string         `json:"QuestID,omitempty"`
	MilestoneID string         `json:"MilestoneID,omitempty"`
	MediaID     string         `json:"MediaID,omitempty"`
	PrincipalID string         `json:"PrincipalID,omitempty"`
	Role        string         `json:"Role,omitempty"`
	Device      string         `json:"Device,omitempty"`
	ClientIP    string         `json:"ClientIP,omitempty"`
	RequestID   string         `json:"RequestID,omitempty"`
	Before      map[string]any `json:"Before,omitempty"`
	After       map[string]any `json:"After,omitempty"`
}

func toPayload(entry audit.Entry) outboxPayload {
	p := outboxPayload{
		ID:        entry.ID.String(),
		Timestamp: entry.Timestamp.Format(time.RFC3339Nano),
		Action:    string(entry.Action),
		EstateID:  entry.Refs.EstateID.String(),
		Role:      entry.Actor.Role.String(),
		Device:    entry.Actor.Device,
		ClientIP:  entry.Actor.ClientIP,
		RequestID: entry.Actor.RequestID,
		Before:    entry.Before,
		After:     entry.After,
	}
	if entry.Refs.QuestID != nil {
		p.QuestID = entry.Refs.QuestID.String()
	}
	if entry.Refs.MilestoneID != nil {
		p.MilestoneID = entry.Refs.MilestoneID.String()
	}
	if entry.Refs.MediaID != nil {
		p.MediaID = entry.Refs.MediaID.String()
	}
	if !entry.Actor.PrincipalID.IsNil() {
		p.PrincipalID = entry.Actor.PrincipalID.String()
	}
	return p
}

// Append writes an audit entry to the outbox for Kafka relay. It joins the
// ambient transaction when one is carried in the context, so the entry
// commits or rolls back with the mutation it records.
func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	payloadBytes, err := json.Marshal(toPayload(entry))
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.New(),
		"estate",
		entry.Refs.EstateID.String(),
		string(entry.Action),
		payloadBytes,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// AppendWithID materializes a relayed entry into the audit_entries table.
// Used by the Kafka consumer side; idempotent via ON CONFLICT DO NOTHING so
// redelivery cannot duplicate history.
func (s *Store) AppendWithID(ctx context.Context, entryID uuid.UUID, entry audit.Entry) error {
	before, err := json.Marshal(entry.Before)
	if err != nil {
		return fmt.Errorf("marshal before snapshot: %w", err)
	}
	after, err := json.Marshal(entry.After)
	if err != nil {
		return fmt.Errorf("marshal after snapshot: %w", err)
	}

	query := `
		INSERT INTO audit_entries (
			id, occurred_at, action, estate_id, quest_id, milestone_id, media_id,
			principal_id, role, device, client_ip, request_id, before_snapshot, after_snapshot
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`
	var questID, milestoneID, mediaID, principalID any
	if entry.Refs.QuestID != nil {
		questID = entry.Refs.QuestID.String()
	}
	if entry.Refs.MilestoneID != nil {
		milestoneID = entry.Refs.MilestoneID.String()
	}
	if entry.Refs.MediaID != nil {
		mediaID = entry.Refs.MediaID.String()
	}
	if !entry.Actor.PrincipalID.IsNil() {
		principalID = entry.Actor.PrincipalID.String()
	}

	_, err = s.execer(ctx).ExecContext(ctx, query,
		entryID,
		entry.Timestamp,
		string(entry.Action),
		entry.Refs.EstateID.String(),
		questID,
		milestoneID,
		mediaID,
		principalID,
		entry.Actor.Role.String(),
		entry.Actor.Device,
		entry.Actor.ClientIP,
		entry.Actor.RequestID,
		before,
		after,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListByEstate returns materialized audit entries for an estate, oldest
// first.
func (s *Store) ListByEstate(ctx context.Context, estateID id.EstateID) ([]audit.Entry, error) {
	query := `
		SELECT id, occurred_at, action, estate_id, quest_id, milestone_id, media_id,
		       principal_id, role, device, client_ip, request_id, before_snapshot, after_snapshot
		FROM audit_entries
		WHERE estate_id = $1
		ORDER BY occurred_at ASC
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, estateID.String())
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var (
			entry                           audit.Entry
			entryID, estateRaw              string
			questRaw, msRaw, mediaRaw       sql.NullString
			principalRaw, role              sql.NullString
			device, clientIP, requestID     sql.NullString
			beforeRaw, afterRaw             []byte
		)
		if err := rows.Scan(&entryID, &entry.Timestamp, (*string)(&entry.Action), &estateRaw,
			&questRaw, &msRaw, &mediaRaw, &principalRaw, &role,
			&device, &clientIP, &requestID, &beforeRaw, &afterRaw); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}

		parsedID, err := uuid.Parse(entryID)
		if err != nil {
			return nil, fmt.Errorf("parse audit entry id: %w", err)
		}
		entry.ID = id.AuditEntryID(parsedID)

		estateID, err := id.ParseEstateID(estateRaw)
		if err != nil {
			return nil, fmt.Errorf("parse estate id: %w", err)
		}
		entry.Refs.EstateID = estateID

		if questRaw.Valid {
			qid, err := id.ParseQuestID(questRaw.String)
			if err != nil {
				return nil, fmt.Errorf("parse quest id: %w", err)
			}
			entry.Refs.QuestID = &qid
		}
		if msRaw.Valid {
			mid, err := id.ParseMilestoneID(msRaw.String)
			if err != nil {
				return nil, fmt.Errorf("parse milestone id: %w", err)
			}
			entry.Refs.MilestoneID = &mid
		}
		if mediaRaw.Valid {
			mid, err := id.ParseMediaID(mediaRaw.String)
			if err != nil {
				return nil, fmt.Errorf("parse media id: %w", err)
			}
			entry.Refs.MediaID = &mid
		}
		if principalRaw.Valid {
			pid, err := id.ParsePrincipalID(principalRaw.String)
			if err != nil {
				return nil, fmt.Errorf("parse principal id: %w", err)
			}
			entry.Actor.PrincipalID = pid
		}
		if role.Valid {
			entry.Actor.Role = id.Role(role.String)
		}
		entry.Actor.Device = device.String
		entry.Actor.ClientIP = clientIP.String
		entry.Actor.RequestID = requestID.String

		if len(beforeRaw) > 0 {
			if err := json.Unmarshal(beforeRaw, &entry.Before); err != nil {
				return nil, fmt.Errorf("unmarshal before snapshot: %w", err)
			}
		}
		if len(afterRaw) > 0 {
			if err := json.Unmarshal(afterRaw, &entry.After); err != nil {
				return nil, fmt.Errorf("unmarshal after snapshot: %w", err)
			}
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
