// Package invite issues and redeems single-use invitation codes for estate
// memberships. Codes are shaped "<inviteID>.<secret>": the ID locates the
// stored record and only a bcrypt hash of the secret is ever persisted.
package invite

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/sentinel"
)

// MemberKind distinguishes which membership a code grants.
type MemberKind string

const (
	MemberBeneficiary MemberKind = "beneficiary"
	MemberTrustee     MemberKind = "trustee"
)

// Record is what redemption yields: the membership the code was minted for.
type Record struct {
	Kind     MemberKind  `json:"kind"`
	EstateID id.EstateID `json:"estate_id"`

	// Exactly one of the two is set, matching Kind.
	BeneficiaryID id.BeneficiaryID `json:"beneficiary_id,omitempty"`
	TrusteeID     id.TrusteeID     `json:"trustee_id,omitempty"`
}

// CodeStore persists pending codes with a TTL and consumes them exactly once.
type CodeStore interface {
	Put(ctx context.Context, inviteID string, stored StoredCode, ttl time.Duration) error
	// Take removes and returns the code record. sentinel.ErrExpired when the
	// ID is unknown, which covers both expiry and a code never issued.
	Take(ctx context.Context, inviteID string) (*StoredCode, error)
}

// StoredCode is the persisted shape: bcrypt hash plus the membership record.
type StoredCode struct {
	SecretHash []byte `json:"secret_hash"`
	Record     Record `json:"record"`
}

// Issuer mints codes and redeems them against a CodeStore.
type Issuer struct {
	store CodeStore
	ttl   time.Duration
}

func NewIssuer(store CodeStore, ttl time.Duration) *Issuer {
	return &Issuer{store: store, ttl: ttl}
}

// Issue mints a code for the given membership and returns the plaintext.
// The plaintext never touches storage; losing it means issuing a new code.
func (i *Issuer) Issue(ctx context.Context, rec Record) (string, error) {
	inviteID := uuid.NewString()
	secret, err := randomSecret()
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash invite secret: %w", err)
	}
	if err := i.store.Put(ctx, inviteID, StoredCode{SecretHash: hash, Record: rec}, i.ttl); err != nil {
		return "", fmt.Errorf("store invite code: %w", err)
	}
	return inviteID + "." + secret, nil
}

// Redeem consumes a code. A wrong secret burns the code anyway; guessing
// against a known invite ID is not allowed a second attempt.
func (i *Issuer) Redeem(ctx context.Context, code string) (*Record, error) {
	inviteID, secret, ok := strings.Cut(code, ".")
	if !ok || inviteID == "" || secret == "" {
		return nil, sentinel.ErrExpired
	}
	stored, err := i.store.Take(ctx, inviteID)
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword(stored.SecretHash, []byte(secret)) != nil {
		return nil, sentinel.ErrExpired
	}
	rec := stored.Record
	return &rec, nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate invite secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// MarshalJSON/UnmarshalJSON keep the typed IDs readable in storage.
func (r Record) MarshalJSON() ([]byte, error) {
	type wire struct {
		Kind          string `json:"kind"`
		EstateID      string `json:"estate_id"`
		BeneficiaryID string `json:"beneficiary_id,omitempty"`
		TrusteeID     string `json:"trustee_id,omitempty"`
	}
	w := wire{Kind: string(r.Kind), EstateID: r.EstateID.String()}
	if r.Kind == MemberBeneficiary {
		w.BeneficiaryID = r.BeneficiaryID.String()
	} else {
		w.TrusteeID = r.TrusteeID.String()
	}
	return json.Marshal(w)
}

func (r *Record) UnmarshalJSON(b []byte) error {
	var w struct {
		Kind          string `json:"kind"`
		EstateID      string `json:"estate_id"`
		BeneficiaryID string `json:"beneficiary_id"`
		TrusteeID     string `json:"trustee_id"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	estateID, err := id.ParseEstateID(w.EstateID)
	if err != nil {
		return err
	}
	r.Kind = MemberKind(w.Kind)
	r.EstateID = estateID
	switch r.Kind {
	case MemberBeneficiary:
		bid, err := id.ParseBeneficiaryID(w.BeneficiaryID)
		if err != nil {
			return err
		}
		r.BeneficiaryID = bid
	case MemberTrustee:
		tid, err := id.ParseTrusteeID(w.TrusteeID)
		if err != nil {
			return err
		}
		r.TrusteeID = tid
	default:
		return fmt.Errorf("unknown invite member kind %q", w.Kind)
	}
	return nil
}
