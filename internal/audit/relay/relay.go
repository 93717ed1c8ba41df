// Package relay moves audit entries from the transactional outbox to Kafka
// and materializes them back into the queryable audit_entries table. Kafka
// is the durable source of truth for the audit trail; the relational table
// is a read model.
package relay

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"heirloom/internal/audit"
	auditpg "heirloom/internal/audit/store/postgres"
	id "heirloom/pkg/domain"
)

const (
	pollInterval = time.Second
	batchSize    = 100
)

// EnsureTopic creates the audit topic when it does not exist yet.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	topics, err := adm.ListTopics(ctx)
	if err != nil {
		return fmt.Errorf("list topics: %w", err)
	}
	if topics.Has(topic) {
		return nil
	}
	if _, err := adm.CreateTopic(ctx, 1, 1, nil, topic); err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	return nil
}

// Relay polls the outbox and publishes unsent rows to Kafka. Rows are marked
// published only after the produce is acknowledged, so a crash replays
// rather than drops; the consumer side is idempotent.
type Relay struct {
	db     *sql.DB
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

func NewRelay(db *sql.DB, client *kgo.Client, topic string, logger *slog.Logger) *Relay {
	return &Relay{db: db, client: client, topic: topic, logger: logger}
}

// Run polls until the context is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.drainOnce(ctx); err != nil {
				r.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
			}
		}
	}
}

type outboxRow struct {
	id          uuid.UUID
	aggregateID string
	payload     []byte
}

func (r *Relay) drainOnce(ctx context.Context) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, aggregate_id, payload
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`, batchSize)
	if err != nil {
		return fmt.Errorf("select outbox: %w", err)
	}
	defer rows.Close()

	var pending []outboxRow
	for rows.Next() {
		var row outboxRow
		if err := rows.Scan(&row.id, &row.aggregateID, &row.payload); err != nil {
			return fmt.Errorf("scan outbox row: %w", err)
		}
		pending = append(pending, row)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, row := range pending {
		record := &kgo.Record{
			Topic: r.topic,
			// Key by estate so one estate's trail stays ordered.
			Key:   []byte(row.aggregateID),
			Value: row.payload,
		}
		if err := r.client.ProduceSync(ctx, record).FirstErr(); err != nil {
			return fmt.Errorf("produce outbox row %s: %w", row.id, err)
		}
		if _, err := r.db.ExecContext(ctx,
			`UPDATE outbox SET published_at = $1 WHERE id = $2`,
			time.Now(), row.id,
		); err != nil {
			return fmt.Errorf("mark outbox row published: %w", err)
		}
	}
	return nil
}

// Materializer consumes the audit topic and writes entries into the
// audit_entries read model.
type Materializer struct {
	client *kgo.Client
	store  *auditpg.Store
	logger *slog.Logger
}

func NewMaterializer(client *kgo.Client, store *auditpg.Store, logger *slog.Logger) *Materializer {
	return &Materializer{client: client, store: store, logger: logger}
}

// Run consumes until the context is cancelled.
func (m *Materializer) Run(ctx context.Context) error {
	for {
		fetches := m.client.PollFetches(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, fe := range errs {
				m.logger.ErrorContext(ctx, "audit fetch error", "topic", fe.Topic, "error", fe.Err)
			}
			continue
		}
		fetches.EachRecord(func(record *kgo.Record) {
			if err := m.materialize(ctx, record.Value); err != nil {
				m.logger.ErrorContext(ctx, "materialize audit entry failed", "error", err)
			}
		})
	}
}

// wirePayload mirrors the outbox JSON written by the postgres audit store.
type wirePayload struct {
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

func (m *Materializer) materialize(ctx context.Context, raw []byte) error {
	var p wirePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("unmarshal audit payload: %w", err)
	}

	entryID, err := uuid.Parse(p.ID)
	if err != nil {
		return fmt.Errorf("parse entry id: %w", err)
	}
	estateID, err := id.ParseEstateID(p.EstateID)
	if err != nil {
		return fmt.Errorf("parse estate id: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, p.Timestamp)
	if err != nil {
		return fmt.Errorf("parse timestamp: %w", err)
	}

	entry := audit.Entry{
		ID:        id.AuditEntryID(entryID),
		Timestamp: ts,
		Action:    audit.Action(p.Action),
		Refs:      audit.EntityRefs{EstateID: estateID},
		Actor: audit.Actor{
			Role:      id.Role(p.Role),
			Device:    p.Device,
			ClientIP:  p.ClientIP,
			RequestID: p.RequestID,
		},
		Before: p.Before,
		After:  p.After,
	}
	if p.QuestID != "" {
		qid, err := id.ParseQuestID(p.QuestID)
		if err != nil {
			return fmt.Errorf("parse quest id: %w", err)
		}
		entry.Refs.QuestID = &qid
	}
	if p.MilestoneID != "" {
		mid, err := id.ParseMilestoneID(p.MilestoneID)
		if err != nil {
			return fmt.Errorf("parse milestone id: %w", err)
		}
		entry.Refs.MilestoneID = &mid
	}
	if p.MediaID != "" {
		mid, err := id.ParseMediaID(p.MediaID)
		if err != nil {
			return fmt.Errorf("parse media id: %w", err)
		}
		entry.Refs.MediaID = &mid
	}
	if p.PrincipalID != "" {
		pid, err := id.ParsePrincipalID(p.PrincipalID)
		if err != nil {
			return fmt.Errorf("parse principal id: %w", err)
		}
		entry.Actor.PrincipalID = pid
	}

	return m.store.AppendWithID(ctx, entryID, entry)
}
