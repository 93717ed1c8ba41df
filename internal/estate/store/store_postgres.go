package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"heirloom/internal/estate"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/sentinel"
	txcontext "heirloom/pkg/platform/tx"
)

// Postgres persists estates and their memberships.
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

func (s *Postgres) CreateEstate(ctx context.Context, e *estate.Estate) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO estates (id, owner_id, name, declared_value_cents, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID.String(), e.OwnerID.String(), e.Name, e.DeclaredValue, string(e.Status), e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert estate: %w", err)
	}
	return nil
}

const estateColumns = `id, owner_id, name, declared_value_cents, status, created_at, updated_at`

func scanEstate(row interface{ Scan(dest ...any) error }) (*estate.Estate, error) {
	var (
		e               estate.Estate
		rawID, rawOwner string
		declared        sql.NullInt64
		status          string
	)
	err := row.Scan(&rawID, &rawOwner, &e.Name, &declared, &status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	parsed, err := id.ParseEstateID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse estate id: %w", err)
	}
	e.ID = parsed
	owner, err := id.ParsePrincipalID(rawOwner)
	if err != nil {
		return nil, fmt.Errorf("parse owner id: %w", err)
	}
	e.OwnerID = owner
	if declared.Valid {
		v := declared.Int64
		e.DeclaredValue = &v
	}
	e.Status = estate.Status(status)
	return &e, nil
}

func (s *Postgres) FindEstate(ctx context.Context, estateID id.EstateID) (*estate.Estate, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+estateColumns+` FROM estates WHERE id = $1`, estateID.String())
	e, err := scanEstate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find estate: %w", err)
	}
	return e, nil
}

func (s *Postgres) FindEstateByOwner(ctx context.Context, owner id.PrincipalID) (*estate.Estate, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+estateColumns+` FROM estates WHERE owner_id = $1`, owner.String())
	e, err := scanEstate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find estate by owner: %w", err)
	}
	return e, nil
}

func (s *Postgres) UpdateEstate(ctx context.Context, e *estate.Estate) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE estates
		SET name = $1, declared_value_cents = $2, status = $3, updated_at = $4
		WHERE id = $5
	`, e.Name, e.DeclaredValue, string(e.Status), e.UpdatedAt, e.ID.String())
	if err != nil {
		return fmt.Errorf("update estate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update estate: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) CreateBeneficiary(ctx context.Context, b *estate.Beneficiary) error {
	var principal any
	if b.PrincipalID != nil {
		principal = b.PrincipalID.String()
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO beneficiaries (id, estate_id, display_name, email, invitation_status, principal_id, trust_tier, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, b.ID.String(), b.EstateID.String(), b.DisplayName, b.Email, string(b.Invitation), principal, b.TrustTier, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert beneficiary: %w", err)
	}
	return nil
}

const beneficiaryColumns = `id, estate_id, display_name, email, invitation_status, principal_id, trust_tier, created_at`

func scanBeneficiary(row interface{ Scan(dest ...any) error }) (*estate.Beneficiary, error) {
	var (
		b                estate.Beneficiary
		rawID, rawEstate string
		invitation       string
		principal        sql.NullString
	)
	err := row.Scan(&rawID, &rawEstate, &b.DisplayName, &b.Email, &invitation, &principal, &b.TrustTier, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	parsed, err := id.ParseBeneficiaryID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse beneficiary id: %w", err)
	}
	b.ID = parsed
	estateID, err := id.ParseEstateID(rawEstate)
	if err != nil {
		return nil, fmt.Errorf("parse estate id: %w", err)
	}
	b.EstateID = estateID
	b.Invitation = estate.InvitationStatus(invitation)
	if principal.Valid {
		pid, err := id.ParsePrincipalID(principal.String)
		if err != nil {
			return nil, fmt.Errorf("parse principal id: %w", err)
		}
		b.PrincipalID = &pid
	}
	return &b, nil
}

func (s *Postgres) FindBeneficiary(ctx context.Context, beneficiaryID id.BeneficiaryID) (*estate.Beneficiary, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+beneficiaryColumns+` FROM beneficiaries WHERE id = $1`, beneficiaryID.String())
	b, err := scanBeneficiary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find beneficiary: %w", err)
	}
	return b, nil
}

func (s *Postgres) FindBeneficiaryByPrincipal(ctx context.Context, estateID id.EstateID, principal id.PrincipalID) (*estate.Beneficiary, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+beneficiaryColumns+`
		FROM beneficiaries
		WHERE estate_id = $1 AND principal_id = $2 AND invitation_status = $3
	`, estateID.String(), principal.String(), string(estate.InvitationAccepted))
	b, err := scanBeneficiary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find beneficiary by principal: %w", err)
	}
	return b, nil
}

func (s *Postgres) ListBeneficiaries(ctx context.Context, estateID id.EstateID) ([]estate.Beneficiary, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+beneficiaryColumns+` FROM beneficiaries WHERE estate_id = $1 ORDER BY created_at ASC`,
		estateID.String())
	if err != nil {
		return nil, fmt.Errorf("list beneficiaries: %w", err)
	}
	defer rows.Close()

	var out []estate.Beneficiary
	for rows.Next() {
		b, err := scanBeneficiary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan beneficiary: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (s *Postgres) UpdateBeneficiary(ctx context.Context, b *estate.Beneficiary) error {
	var principal any
	if b.PrincipalID != nil {
		principal = b.PrincipalID.String()
	}
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE beneficiaries
		SET display_name = $1, email = $2, invitation_status = $3, principal_id = $4, trust_tier = $5
		WHERE id = $6
	`, b.DisplayName, b.Email, string(b.Invitation), principal, b.TrustTier, b.ID.String())
	if err != nil {
		return fmt.Errorf("update beneficiary: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update beneficiary: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) CreateTrustee(ctx context.Context, t *estate.Trustee) error {
	var principal any
	if t.PrincipalID != nil {
		principal = t.PrincipalID.String()
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO trustees (id, estate_id, display_name, email, can_verify, can_edit, can_view_all, invitation_status, principal_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, t.ID.String(), t.EstateID.String(), t.DisplayName, t.Email,
		t.Permissions.CanVerify, t.Permissions.CanEdit, t.Permissions.CanViewAll,
		string(t.Invitation), principal, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert trustee: %w", err)
	}
	return nil
}

const trusteeColumns = `id, estate_id, display_name, email, can_verify, can_edit, can_view_all, invitation_status, principal_id, created_at`

func scanTrustee(row interface{ Scan(dest ...any) error }) (*estate.Trustee, error) {
	var (
		t                estate.Trustee
		rawID, rawEstate string
		invitation       string
		principal        sql.NullString
	)
	err := row.Scan(&rawID, &rawEstate, &t.DisplayName, &t.Email,
		&t.Permissions.CanVerify, &t.Permissions.CanEdit, &t.Permissions.CanViewAll,
		&invitation, &principal, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	parsed, err := id.ParseTrusteeID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse trustee id: %w", err)
	}
	t.ID = parsed
	estateID, err := id.ParseEstateID(rawEstate)
	if err != nil {
		return nil, fmt.Errorf("parse estate id: %w", err)
	}
	t.EstateID = estateID
	t.Invitation = estate.InvitationStatus(invitation)
	if principal.Valid {
		pid, err := id.ParsePrincipalID(principal.String)
		if err != nil {
			return nil, fmt.Errorf("parse principal id: %w", err)
		}
		t.PrincipalID = &pid
	}
	return &t, nil
}

func (s *Postgres) FindTrustee(ctx context.Context, trusteeID id.TrusteeID) (*estate.Trustee, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+trusteeColumns+` FROM trustees WHERE id = $1`, trusteeID.String())
	t, err := scanTrustee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find trustee: %w", err)
	}
	return t, nil
}

func (s *Postgres) FindTrusteeByPrincipal(ctx context.Context, estateID id.EstateID, principal id.PrincipalID) (*estate.Trustee, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+trusteeColumns+`
		FROM trustees
		WHERE estate_id = $1 AND principal_id = $2 AND invitation_status = $3
	`, estateID.String(), principal.String(), string(estate.InvitationAccepted))
	t, err := scanTrustee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find trustee by principal: %w", err)
	}
	return t, nil
}

func (s *Postgres) ListTrustees(ctx context.Context, estateID id.EstateID) ([]estate.Trustee, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+trusteeColumns+` FROM trustees WHERE estate_id = $1 ORDER BY created_at ASC`,
		estateID.String())
	if err != nil {
		return nil, fmt.Errorf("list trustees: %w", err)
	}
	defer rows.Close()

	var out []estate.Trustee
	for rows.Next() {
		t, err := scanTrustee(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trustee: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *Postgres) UpdateTrustee(ctx context.Context, t *estate.Trustee) error {
	var principal any
	if t.PrincipalID != nil {
		principal = t.PrincipalID.String()
	}
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE trustees
		SET display_name = $1, email = $2, can_verify = $3, can_edit = $4, can_view_all = $5,
		    invitation_status = $6, principal_id = $7
		WHERE id = $8
	`, t.DisplayName, t.Email, t.Permissions.CanVerify, t.Permissions.CanEdit, t.Permissions.CanViewAll,
		string(t.Invitation), principal, t.ID.String())
	if err != nil {
		return fmt.Errorf("update trustee: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update trustee: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
