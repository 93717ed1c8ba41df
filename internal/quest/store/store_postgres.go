package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"heirloom/internal/quest"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/sentinel"
	txcontext "heirloom/pkg/platform/tx"
	"heirloom/pkg/requestcontext"
)

// Postgres persists quests, milestones, and evidence. Mutating methods join
// the ambient transaction from context so batch replaces, totals, and audit
// outbox entries commit together.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Postgres) CreateQuest(ctx context.Context, q *quest.Quest) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO quests (id, estate_id, beneficiary_id, title, description, total_value_cents, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, q.ID.String(), q.EstateID.String(), q.BeneficiaryID.String(),
		q.Title, q.Description, q.TotalValue, string(q.Status), q.CreatedAt, q.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert quest: %w", err)
	}
	return nil
}

func scanQuest(row interface{ Scan(dest ...any) error }) (*quest.Quest, error) {
	var (
		q                          quest.Quest
		rawID, rawEstate, rawBenef string
		status                     string
		publishedAt                sql.NullTime
	)
	err := row.Scan(&rawID, &rawEstate, &rawBenef, &q.Title, &q.Description,
		&q.TotalValue, &status, &q.CreatedAt, &q.UpdatedAt, &publishedAt)
	if err != nil {
		return nil, err
	}
	parsed, err := id.ParseQuestID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse quest id: %w", err)
	}
	q.ID = parsed
	estateID, err := id.ParseEstateID(rawEstate)
	if err != nil {
		return nil, fmt.Errorf("parse estate id: %w", err)
	}
	q.EstateID = estateID
	benefID, err := id.ParseBeneficiaryID(rawBenef)
	if err != nil {
		return nil, fmt.Errorf("parse beneficiary id: %w", err)
	}
	q.BeneficiaryID = benefID
	q.Status = quest.QuestStatus(status)
	if publishedAt.Valid {
		t := publishedAt.Time
		q.PublishedAt = &t
	}
	return &q, nil
}

const questColumns = `id, estate_id, beneficiary_id, title, description, total_value_cents, status, created_at, updated_at, published_at`

func (s *Postgres) FindQuest(ctx context.Context, questID id.QuestID) (*quest.Quest, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+questColumns+` FROM quests WHERE id = $1`, questID.String())
	q, err := scanQuest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find quest: %w", err)
	}
	return q, nil
}

func (s *Postgres) ListQuestsByEstate(ctx context.Context, estateID id.EstateID) ([]quest.Quest, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+questColumns+` FROM quests WHERE estate_id = $1 ORDER BY created_at ASC`, estateID.String())
	if err != nil {
		return nil, fmt.Errorf("list quests: %w", err)
	}
	defer rows.Close()

	var out []quest.Quest
	for rows.Next() {
		q, err := scanQuest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quest: %w", err)
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

// UpdateQuestStatus performs a compare-and-swap on the quest lifecycle.
func (s *Postgres) UpdateQuestStatus(ctx context.Context, questID id.QuestID, from, to quest.QuestStatus) error {
	now := requestcontext.Now(ctx)
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE quests
		SET status = $1,
		    updated_at = $2,
		    published_at = CASE WHEN $1 = 'active' AND published_at IS NULL THEN $2 ELSE published_at END
		WHERE id = $3 AND status = $4
	`, string(to), now, questID.String(), string(from))
	if err != nil {
		return fmt.Errorf("update quest status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update quest status: %w", err)
	}
	if affected == 0 {
		// Distinguish a lost race from a missing quest.
		if _, ferr := s.FindQuest(ctx, questID); ferr != nil {
			return ferr
		}
		return sentinel.ErrConflict
	}
	return nil
}

// ReplaceMilestones swaps the quest's milestone set atomically and persists
// the recomputed total. Must run inside an ambient transaction; the
// delete-then-insert matches the authoring flow's save-draft semantics.
// Evidence survives via ON DELETE restricted to milestones actually dropped:
// carried-over rows keep their IDs, so their evidence rows keep their FK.
func (s *Postgres) ReplaceMilestones(ctx context.Context, questID id.QuestID, ms []quest.Milestone, total int64) error {
	ex := s.execer(ctx)
	if _, ok := txcontext.From(ctx); !ok {
		return fmt.Errorf("replace milestones requires a transaction")
	}

	keep := make(map[string]bool, len(ms))
	for i := range ms {
		keep[ms[i].ID.String()] = true
	}

	// Evidence of dropped milestones goes with them; carried-over IDs keep
	// their history.
	existing, err := ex.QueryContext(ctx,
		`SELECT id FROM milestones WHERE quest_id = $1`, questID.String())
	if err != nil {
		return fmt.Errorf("list existing milestones: %w", err)
	}
	var dropped []string
	for existing.Next() {
		var raw string
		if err := existing.Scan(&raw); err != nil {
			existing.Close()
			return fmt.Errorf("scan milestone id: %w", err)
		}
		if !keep[raw] {
			dropped = append(dropped, raw)
		}
	}
	existing.Close()
	if err := existing.Err(); err != nil {
		return fmt.Errorf("list existing milestones: %w", err)
	}
	for _, msID := range dropped {
		if _, err := ex.ExecContext(ctx,
			`DELETE FROM evidence WHERE milestone_id = $1`, msID); err != nil {
			return fmt.Errorf("prune evidence: %w", err)
		}
	}
	if _, err := ex.ExecContext(ctx,
		`DELETE FROM milestones WHERE quest_id = $1`, questID.String()); err != nil {
		return fmt.Errorf("delete milestones: %w", err)
	}

	for i := range ms {
		m := &ms[i]
		prereqs, err := marshalPrereqs(m.Prerequisites)
		if err != nil {
			return err
		}
		var verifiedBy any
		if m.VerifiedBy != nil {
			verifiedBy = m.VerifiedBy.String()
		}
		if _, err := ex.ExecContext(ctx, `
			INSERT INTO milestones (
				id, quest_id, order_index, title, description, type_tag, value_cents,
				verification_mode, instructions, status, prerequisites, rejection_reason,
				started_at, submitted_at, verified_at, verified_by
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		`, m.ID.String(), questID.String(), m.OrderIndex, m.Title, m.Description, m.Type,
			m.Value, string(m.Mode), m.Instructions, string(m.Status), prereqs,
			m.RejectionReason, m.StartedAt, m.SubmittedAt, m.VerifiedAt, verifiedBy); err != nil {
			return fmt.Errorf("insert milestone %d: %w", m.OrderIndex, err)
		}
	}

	if _, err := ex.ExecContext(ctx, `
		UPDATE quests SET total_value_cents = $1, updated_at = $2 WHERE id = $3
	`, total, requestcontext.Now(ctx), questID.String()); err != nil {
		return fmt.Errorf("update quest total: %w", err)
	}
	return nil
}

const milestoneColumns = `id, quest_id, order_index, title, description, type_tag, value_cents,
	verification_mode, instructions, status, prerequisites, rejection_reason,
	started_at, submitted_at, verified_at, verified_by`

func marshalPrereqs(ids []id.MilestoneID) ([]byte, error) {
	raw := make([]string, 0, len(ids))
	for _, p := range ids {
		raw = append(raw, p.String())
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshal prerequisites: %w", err)
	}
	return b, nil
}

func unmarshalPrereqs(b []byte) ([]id.MilestoneID, error) {
	var raw []string
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal prerequisites: %w", err)
	}
	out := make([]id.MilestoneID, 0, len(raw))
	for _, p := range raw {
		pid, err := id.ParseMilestoneID(p)
		if err != nil {
			return nil, fmt.Errorf("parse prerequisite id: %w", err)
		}
		out = append(out, pid)
	}
	return out, nil
}

func scanMilestone(row interface{ Scan(dest ...any) error }) (*quest.Milestone, error) {
	var (
		m               quest.Milestone
		rawID, rawQuest string
		mode, status    string
		prereqs         []byte
		startedAt       sql.NullTime
		submittedAt     sql.NullTime
		verifiedAt      sql.NullTime
		verifiedBy      sql.NullString
	)
	err := row.Scan(&rawID, &rawQuest, &m.OrderIndex, &m.Title, &m.Description, &m.Type,
		&m.Value, &mode, &m.Instructions, &status, &prereqs, &m.RejectionReason,
		&startedAt, &submittedAt, &verifiedAt, &verifiedBy)
	if err != nil {
		return nil, err
	}
	parsed, err := id.ParseMilestoneID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse milestone id: %w", err)
	}
	m.ID = parsed
	questID, err := id.ParseQuestID(rawQuest)
	if err != nil {
		return nil, fmt.Errorf("parse quest id: %w", err)
	}
	m.QuestID = questID
	m.Mode = quest.VerificationMode(mode)
	m.Status = quest.MilestoneStatus(status)
	if len(prereqs) > 0 {
		m.Prerequisites, err = unmarshalPrereqs(prereqs)
		if err != nil {
			return nil, err
		}
	}
	if startedAt.Valid {
		t := startedAt.Time
		m.StartedAt = &t
	}
	if submittedAt.Valid {
		t := submittedAt.Time
		m.SubmittedAt = &t
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		m.VerifiedAt = &t
	}
	if verifiedBy.Valid {
		tid, err := id.ParseTrusteeID(verifiedBy.String)
		if err != nil {
			return nil, fmt.Errorf("parse verifier id: %w", err)
		}
		m.VerifiedBy = &tid
	}
	return &m, nil
}

func (s *Postgres) ListMilestones(ctx context.Context, questID id.QuestID) ([]quest.Milestone, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+milestoneColumns+` FROM milestones WHERE quest_id = $1 ORDER BY order_index ASC`,
		questID.String())
	if err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}
	defer rows.Close()

	var out []quest.Milestone
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, fmt.Errorf("scan milestone: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (s *Postgres) FindMilestone(ctx context.Context, milestoneID id.MilestoneID) (*quest.Milestone, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+milestoneColumns+` FROM milestones WHERE id = $1`, milestoneID.String())
	m, err := scanMilestone(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find milestone: %w", err)
	}
	return m, nil
}

// TransitionMilestone conditions the write on the stored status still being
// from; zero rows affected means a concurrent call won the race.
func (s *Postgres) TransitionMilestone(ctx context.Context, milestoneID id.MilestoneID, from, to quest.MilestoneStatus, stamp quest.TransitionStamp) (*quest.Milestone, error) {
	var verifiedBy any
	if stamp.VerifiedBy != nil {
		verifiedBy = stamp.VerifiedBy.String()
	}
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE milestones
		SET status = $1,
		    started_at = COALESCE($2, started_at),
		    submitted_at = COALESCE($3, submitted_at),
		    verified_at = COALESCE($4, verified_at),
		    verified_by = COALESCE($5, verified_by),
		    rejection_reason = CASE
		        WHEN $6 <> '' THEN $6
		        WHEN $7 THEN ''
		        ELSE rejection_reason
		    END
		WHERE id = $8 AND status = $9
	`, string(to), stamp.StartedAt, stamp.SubmittedAt, stamp.VerifiedAt, verifiedBy,
		stamp.RejectionReason, stamp.ClearRejectionReason, milestoneID.String(), string(from))
	if err != nil {
		return nil, fmt.Errorf("transition milestone: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("transition milestone: %w", err)
	}
	if affected == 0 {
		if _, ferr := s.FindMilestone(ctx, milestoneID); ferr != nil {
			return nil, ferr
		}
		return nil, sentinel.ErrConflict
	}
	return s.FindMilestone(ctx, milestoneID)
}

func (s *Postgres) AppendEvidence(ctx context.Context, ev quest.Evidence) error {
	if ev.ID.IsNil() {
		ev.ID = id.NewEvidenceID()
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO evidence (id, milestone_id, submitted_by, kind, ref, inline_text, submitted_at, cycle_boundary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, ev.ID.String(), ev.MilestoneID.String(), ev.SubmittedBy.String(),
		string(ev.Kind), ev.Ref, ev.Text, ev.SubmittedAt, ev.CycleBoundary)
	if err != nil {
		return fmt.Errorf("insert evidence: %w", err)
	}
	return nil
}

func (s *Postgres) ListEvidence(ctx context.Context, milestoneID id.MilestoneID) ([]quest.Evidence, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, milestone_id, submitted_by, kind, ref, inline_text, submitted_at, cycle_boundary
		FROM evidence
		WHERE milestone_id = $1
		ORDER BY submitted_at ASC
	`, milestoneID.String())
	if err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	defer rows.Close()
	return scanEvidenceRows(rows)
}

func scanEvidenceRows(rows *sql.Rows) ([]quest.Evidence, error) {
	var out []quest.Evidence
	for rows.Next() {
		var (
			ev                      quest.Evidence
			rawID, rawMs, rawSubmit string
			kind                    string
		)
		if err := rows.Scan(&rawID, &rawMs, &rawSubmit, &kind, &ev.Ref, &ev.Text,
			&ev.SubmittedAt, &ev.CycleBoundary); err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		parsed, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("parse evidence id: %w", err)
		}
		ev.ID = id.EvidenceID(parsed)
		msID, err := id.ParseMilestoneID(rawMs)
		if err != nil {
			return nil, fmt.Errorf("parse milestone id: %w", err)
		}
		ev.MilestoneID = msID
		submitter, err := id.ParsePrincipalID(rawSubmit)
		if err != nil {
			return nil, fmt.Errorf("parse submitter id: %w", err)
		}
		ev.SubmittedBy = submitter
		ev.Kind = quest.EvidenceKind(kind)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// ListPendingByEstate returns every pending-verification milestone across
// the estate's quests with full evidence history, ordered for review.
func (s *Postgres) ListPendingByEstate(ctx context.Context, estateID id.EstateID) ([]quest.PendingReview, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT `+prefixedColumns("q", questColumnList)+`, `+prefixedColumns("m", milestoneColumnList)+`
		FROM milestones m
		JOIN quests q ON q.id = m.quest_id
		WHERE q.estate_id = $1 AND m.status = $2
		ORDER BY q.created_at ASC, m.order_index ASC
	`, estateID.String(), string(quest.MilestoneStatusPendingVerification))
	if err != nil {
		return nil, fmt.Errorf("list pending reviews: %w", err)
	}
	defer rows.Close()

	var out []quest.PendingReview
	for rows.Next() {
		var (
			q                         quest.Quest
			m                         quest.Milestone
			rawQID, rawEstate, rawBen string
			qStatus                   string
			publishedAt               sql.NullTime
			rawMID, rawQuestRef       string
			mode, mStatus             string
			prereqs                   []byte
			startedAt, submittedAt    sql.NullTime
			verifiedAt                sql.NullTime
			verifiedBy                sql.NullString
		)
		if err := rows.Scan(
			&rawQID, &rawEstate, &rawBen, &q.Title, &q.Description, &q.TotalValue,
			&qStatus, &q.CreatedAt, &q.UpdatedAt, &publishedAt,
			&rawMID, &rawQuestRef, &m.OrderIndex, &m.Title, &m.Description, &m.Type,
			&m.Value, &mode, &m.Instructions, &mStatus, &prereqs, &m.RejectionReason,
			&startedAt, &submittedAt, &verifiedAt, &verifiedBy,
		); err != nil {
			return nil, fmt.Errorf("scan pending review: %w", err)
		}

		qid, err := id.ParseQuestID(rawQID)
		if err != nil {
			return nil, fmt.Errorf("parse quest id: %w", err)
		}
		q.ID = qid
		eid, err := id.ParseEstateID(rawEstate)
		if err != nil {
			return nil, fmt.Errorf("parse estate id: %w", err)
		}
		q.EstateID = eid
		bid, err := id.ParseBeneficiaryID(rawBen)
		if err != nil {
			return nil, fmt.Errorf("parse beneficiary id: %w", err)
		}
		q.BeneficiaryID = bid
		q.Status = quest.QuestStatus(qStatus)
		if publishedAt.Valid {
			t := publishedAt.Time
			q.PublishedAt = &t
		}

		mid, err := id.ParseMilestoneID(rawMID)
		if err != nil {
			return nil, fmt.Errorf("parse milestone id: %w", err)
		}
		m.ID = mid
		m.QuestID = qid
		m.Mode = quest.VerificationMode(mode)
		m.Status = quest.MilestoneStatus(mStatus)
		if len(prereqs) > 0 {
			m.Prerequisites, err = unmarshalPrereqs(prereqs)
			if err != nil {
				return nil, err
			}
		}
		if startedAt.Valid {
			t := startedAt.Time
			m.StartedAt = &t
		}
		if submittedAt.Valid {
			t := submittedAt.Time
			m.SubmittedAt = &t
		}
		if verifiedAt.Valid {
			t := verifiedAt.Time
			m.VerifiedAt = &t
		}
		if verifiedBy.Valid {
			tid, err := id.ParseTrusteeID(verifiedBy.String)
			if err != nil {
				return nil, fmt.Errorf("parse verifier id: %w", err)
			}
			m.VerifiedBy = &tid
		}

		out = append(out, quest.PendingReview{Quest: q, Milestone: m})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		evidence, err := s.ListEvidence(ctx, out[i].Milestone.ID)
		if err != nil {
			return nil, err
		}
		out[i].Evidence = evidence
	}
	return out, nil
}

var questColumnList = []string{
	"id", "estate_id", "beneficiary_id", "title", "description",
	"total_value_cents", "status", "created_at", "updated_at", "published_at",
}

var milestoneColumnList = []string{
	"id", "quest_id", "order_index", "title", "description", "type_tag", "value_cents",
	"verification_mode", "instructions", "status", "prerequisites", "rejection_reason",
	"started_at", "submitted_at", "verified_at", "verified_by",
}

func prefixedColumns(prefix string, cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += prefix + "." + c
	}
	return out
}
