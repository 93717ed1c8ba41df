package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"heirloom/internal/media"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/sentinel"
	txcontext "heirloom/pkg/platform/tx"
)

// Postgres persists media records. Unlock flips join the ambient
// transaction so they commit with the milestone approval that caused them.
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

func (s *Postgres) Create(ctx context.Context, m *media.Media) error {
	var questID, milestoneID any
	if m.QuestID != nil {
		questID = m.QuestID.String()
	}
	if m.MilestoneID != nil {
		milestoneID = m.MilestoneID.String()
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO media (id, estate_id, quest_id, milestone_id, title, kind, storage_ref, thumbnail_ref, unlock_condition, unlocked, unlocked_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, m.ID.String(), m.EstateID.String(), questID, milestoneID, m.Title, string(m.Kind),
		m.StorageRef, m.ThumbnailRef, string(m.Condition), m.Unlocked, m.UnlockedAt, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert media: %w", err)
	}
	return nil
}

const mediaColumns = `id, estate_id, quest_id, milestone_id, title, kind, storage_ref, thumbnail_ref, unlock_condition, unlocked, unlocked_at, created_at`

func scanMedia(row interface{ Scan(dest ...any) error }) (*media.Media, error) {
	var (
		m                media.Media
		rawID, rawEstate string
		questID          sql.NullString
		milestoneID      sql.NullString
		kind, condition  string
		unlockedAt       sql.NullTime
	)
	err := row.Scan(&rawID, &rawEstate, &questID, &milestoneID, &m.Title, &kind,
		&m.StorageRef, &m.ThumbnailRef, &condition, &m.Unlocked, &unlockedAt, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	parsed, err := id.ParseMediaID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse media id: %w", err)
	}
	m.ID = parsed
	estateID, err := id.ParseEstateID(rawEstate)
	if err != nil {
		return nil, fmt.Errorf("parse estate id: %w", err)
	}
	m.EstateID = estateID
	if questID.Valid {
		qid, err := id.ParseQuestID(questID.String)
		if err != nil {
			return nil, fmt.Errorf("parse quest id: %w", err)
		}
		m.QuestID = &qid
	}
	if milestoneID.Valid {
		mid, err := id.ParseMilestoneID(milestoneID.String)
		if err != nil {
			return nil, fmt.Errorf("parse milestone id: %w", err)
		}
		m.MilestoneID = &mid
	}
	m.Kind = media.Kind(kind)
	m.Condition = media.UnlockCondition(condition)
	if unlockedAt.Valid {
		t := unlockedAt.Time
		m.UnlockedAt = &t
	}
	return &m, nil
}

func (s *Postgres) Find(ctx context.Context, mediaID id.MediaID) (*media.Media, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+mediaColumns+` FROM media WHERE id = $1`, mediaID.String())
	m, err := scanMedia(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find media: %w", err)
	}
	return m, nil
}

func (s *Postgres) list(ctx context.Context, where string, arg any) ([]media.Media, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+mediaColumns+` FROM media WHERE `+where+` ORDER BY created_at ASC`, arg)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()

	var out []media.Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (s *Postgres) ListByEstate(ctx context.Context, estateID id.EstateID) ([]media.Media, error) {
	return s.list(ctx, "estate_id = $1", estateID.String())
}

func (s *Postgres) ListByMilestone(ctx context.Context, milestoneID id.MilestoneID) ([]media.Media, error) {
	return s.list(ctx, "milestone_id = $1", milestoneID.String())
}

func (s *Postgres) ListByQuest(ctx context.Context, questID id.QuestID) ([]media.Media, error) {
	return s.list(ctx, "quest_id = $1", questID.String())
}

// MarkUnlocked flips the monotonic unlock flag. The conditional update
// keeps the first unlock timestamp when two transitions race.
func (s *Postgres) MarkUnlocked(ctx context.Context, mediaID id.MediaID, at time.Time) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE media SET unlocked = TRUE, unlocked_at = $1
		WHERE id = $2 AND unlocked = FALSE
	`, at, mediaID.String())
	if err != nil {
		return fmt.Errorf("mark media unlocked: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark media unlocked: %w", err)
	}
	if affected == 0 {
		// Either already unlocked (fine) or missing.
		if _, ferr := s.Find(ctx, mediaID); ferr != nil {
			return ferr
		}
	}
	return nil
}

func (s *Postgres) Delete(ctx context.Context, mediaID id.MediaID) error {
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM media WHERE id = $1`, mediaID.String())
	if err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
