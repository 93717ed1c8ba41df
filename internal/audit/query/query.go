// Package query is the read surface over the audit trail. The trail itself
// is append-only; this service only decides who may read it.
package query

import (
	"context"
	"errors"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"heirloom/internal/audit"
	"heirloom/internal/estate"
	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
	"heirloom/pkg/platform/sentinel"
	"heirloom/pkg/requestcontext"
)

// EstateDirectory answers ownership and membership questions.
type EstateDirectory interface {
	FindEstate(ctx context.Context, estateID id.EstateID) (*estate.Estate, error)
	FindTrusteeByPrincipal(ctx context.Context, estateID id.EstateID, principal id.PrincipalID) (*estate.Trustee, error)
}

// Service gates audit reads to the estate owner and full-view trustees.
type Service struct {
	audit   *audit.Publisher
	estates EstateDirectory
	tracer  trace.Tracer
}

func New(auditor *audit.Publisher, estates EstateDirectory) *Service {
	return &Service{
		audit:   auditor,
		estates: estates,
		tracer:  otel.Tracer("audit"),
	}
}

var errNotPermitted = dErrors.New(dErrors.CodePermissionDenied, "not permitted")

// ListByEstate returns the estate's audit trail, newest first. Visible to
// the owner and to trustees holding the full-view permission.
func (s *Service) ListByEstate(ctx context.Context, estateID id.EstateID) ([]audit.Entry, error) {
	ctx, span := s.tracer.Start(ctx, "audit.ListByEstate")
	defer span.End()

	e, err := s.estates.FindEstate(ctx, estateID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, errNotPermitted
	}
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "load estate", err)
	}

	principal := requestcontext.PrincipalID(ctx)
	if e.OwnerID != principal {
		t, err := s.estates.FindTrusteeByPrincipal(ctx, estateID, principal)
		if err != nil || !t.Permissions.CanViewAll {
			return nil, errNotPermitted
		}
	}

	entries, err := s.audit.ListByEstate(ctx, estateID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list audit entries", err)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries, nil
}
