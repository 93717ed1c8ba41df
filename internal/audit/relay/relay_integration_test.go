//go:build integration

package relay_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"heirloom/internal/audit"
	"heirloom/internal/audit/relay"
	auditpg "heirloom/internal/audit/store/postgres"
	id "heirloom/pkg/domain"
	"heirloom/pkg/testutil/containers"
)

const testTopic = "heirloom.audit.test"

type RelaySuite struct {
	suite.Suite
	postgres  *containers.PostgresContainer
	store     *auditpg.Store
	publisher *audit.Publisher
	producer  *kgo.Client
	consumer  *kgo.Client
}

func TestRelaySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupSuite() {
	ctx := context.Background()
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = auditpg.New(s.postgres.DB)
	s.publisher = audit.NewPublisher(s.store)

	redpanda := mgr.GetRedpanda(s.T())
	s.producer = redpanda.NewClient(s.T())
	s.Require().NoError(relay.EnsureTopic(ctx, s.producer, testTopic))
	s.consumer = redpanda.NewClient(s.T(),
		kgo.ConsumeTopics(testTopic),
		kgo.ConsumerGroup("relay-suite"),
	)
}

func (s *RelaySuite) TearDownSuite() {
	s.producer.Close()
	s.consumer.Close()
}

func (s *RelaySuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateAll(ctx)
	s.Require().NoError(err)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestOutboxToReadModel verifies the full pipeline: an entry recorded into
// the outbox is relayed through Kafka and materialized into audit_entries.
func (s *RelaySuite) TestOutboxToReadModel() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := relay.NewRelay(s.postgres.DB, s.producer, testTopic, discardLogger())
	m := relay.NewMaterializer(s.consumer, s.store, discardLogger())
	go func() { _ = r.Run(ctx) }()
	go func() { _ = m.Run(ctx) }()

	estateID := id.NewEstateID()
	questID := id.NewQuestID()
	entry := audit.Entry{
		Action: audit.ActionQuestPublished,
		Refs:   audit.EntityRefs{EstateID: estateID, QuestID: &questID},
		Actor: audit.Actor{
			PrincipalID: id.NewPrincipalID(),
			Role:        id.RoleBenefactor,
			RequestID:   "req-relay-1",
		},
		After: map[string]any{"status": "active"},
	}
	s.Require().NoError(s.publisher.Record(ctx, entry))

	entries := s.waitForEntries(ctx, estateID, 1)
	s.Require().Len(entries, 1)
	s.Equal(audit.ActionQuestPublished, entries[0].Action)
	s.Require().NotNil(entries[0].Refs.QuestID)
	s.Equal(questID, *entries[0].Refs.QuestID)
	s.Equal("req-relay-1", entries[0].Actor.RequestID)
	s.Equal("active", entries[0].After["status"])
}

// TestMaterializeIsIdempotent verifies a replayed record does not duplicate
// the read-model row.
func (s *RelaySuite) TestMaterializeIsIdempotent() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := relay.NewRelay(s.postgres.DB, s.producer, testTopic, discardLogger())
	m := relay.NewMaterializer(s.consumer, s.store, discardLogger())
	go func() { _ = r.Run(ctx) }()
	go func() { _ = m.Run(ctx) }()

	estateID := id.NewEstateID()
	entry := audit.Entry{
		ID:     id.NewAuditEntryID(),
		Action: audit.ActionEstateCreated,
		Refs:   audit.EntityRefs{EstateID: estateID},
		Actor:  audit.Actor{PrincipalID: id.NewPrincipalID(), Role: id.RoleBenefactor},
	}
	s.Require().NoError(s.publisher.Record(ctx, entry))

	entries := s.waitForEntries(ctx, estateID, 1)
	s.Require().Len(entries, 1)

	// Simulate a relay crash-replay: produce the same entry again by
	// clearing the published marker.
	_, err := s.postgres.DB.ExecContext(ctx, `UPDATE outbox SET published_at = NULL`)
	s.Require().NoError(err)

	// Give the replay time to flow through; the row count must hold.
	time.Sleep(3 * time.Second)
	entries, err = s.store.ListByEstate(ctx, estateID)
	s.Require().NoError(err)
	s.Len(entries, 1)
}

func (s *RelaySuite) waitForEntries(ctx context.Context, estateID id.EstateID, want int) []audit.Entry {
	s.T().Helper()
	deadline := time.After(15 * time.Second)
	for {
		select {
		case <-deadline:
			s.FailNow("timed out waiting for materialized audit entries")
			return nil
		case <-time.After(200 * time.Millisecond):
			entries, err := s.store.ListByEstate(ctx, estateID)
			s.Require().NoError(err)
			if len(entries) >= want {
				return entries
			}
		}
	}
}
