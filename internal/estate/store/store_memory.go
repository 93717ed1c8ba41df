package store

import (
	"context"
	"sort"
	"sync"

	"heirloom/internal/estate"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/sentinel"
)

// Memory is an in-process estate store for unit tests and local runs.
type Memory struct {
	mu            sync.RWMutex
	estates       map[id.EstateID]*estate.Estate
	beneficiaries map[id.BeneficiaryID]*estate.Beneficiary
	trustees      map[id.TrusteeID]*estate.Trustee
}

func NewMemory() *Memory {
	return &Memory{
		estates:       make(map[id.EstateID]*estate.Estate),
		beneficiaries: make(map[id.BeneficiaryID]*estate.Beneficiary),
		trustees:      make(map[id.TrusteeID]*estate.Trustee),
	}
}

func cloneEstate(e *estate.Estate) *estate.Estate {
	cp := *e
	if e.DeclaredValue != nil {
		v := *e.DeclaredValue
		cp.DeclaredValue = &v
	}
	return &cp
}

func cloneBeneficiary(b *estate.Beneficiary) *estate.Beneficiary {
	cp := *b
	if b.PrincipalID != nil {
		p := *b.PrincipalID
		cp.PrincipalID = &p
	}
	return &cp
}

func cloneTrustee(t *estate.Trustee) *estate.Trustee {
	cp := *t
	if t.PrincipalID != nil {
		p := *t.PrincipalID
		cp.PrincipalID = &p
	}
	return &cp
}

func (m *Memory) CreateEstate(_ context.Context, e *estate.Estate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.estates[e.ID]; ok {
		return sentinel.ErrConflict
	}
	m.estates[e.ID] = cloneEstate(e)
	return nil
}

func (m *Memory) FindEstate(_ context.Context, estateID id.EstateID) (*estate.Estate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.estates[estateID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneEstate(e), nil
}

func (m *Memory) FindEstateByOwner(_ context.Context, owner id.PrincipalID) (*estate.Estate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.estates {
		if e.OwnerID == owner {
			return cloneEstate(e), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (m *Memory) UpdateEstate(_ context.Context, e *estate.Estate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.estates[e.ID]; !ok {
		return sentinel.ErrNotFound
	}
	m.estates[e.ID] = cloneEstate(e)
	return nil
}

func (m *Memory) CreateBeneficiary(_ context.Context, b *estate.Beneficiary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.beneficiaries[b.ID]; ok {
		return sentinel.ErrConflict
	}
	m.beneficiaries[b.ID] = cloneBeneficiary(b)
	return nil
}

func (m *Memory) FindBeneficiary(_ context.Context, beneficiaryID id.BeneficiaryID) (*estate.Beneficiary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.beneficiaries[beneficiaryID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneBeneficiary(b), nil
}

func (m *Memory) FindBeneficiaryByPrincipal(_ context.Context, estateID id.EstateID, principal id.PrincipalID) (*estate.Beneficiary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.beneficiaries {
		if b.EstateID == estateID && b.Linked(principal) {
			return cloneBeneficiary(b), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (m *Memory) ListBeneficiaries(_ context.Context, estateID id.EstateID) ([]estate.Beneficiary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []estate.Beneficiary
	for _, b := range m.beneficiaries {
		if b.EstateID == estateID {
			out = append(out, *cloneBeneficiary(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) UpdateBeneficiary(_ context.Context, b *estate.Beneficiary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.beneficiaries[b.ID]; !ok {
		return sentinel.ErrNotFound
	}
	m.beneficiaries[b.ID] = cloneBeneficiary(b)
	return nil
}

func (m *Memory) CreateTrustee(_ context.Context, t *estate.Trustee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.trustees[t.ID]; ok {
		return sentinel.ErrConflict
	}
	m.trustees[t.ID] = cloneTrustee(t)
	return nil
}

func (m *Memory) FindTrustee(_ context.Context, trusteeID id.TrusteeID) (*estate.Trustee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.trustees[trusteeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneTrustee(t), nil
}

func (m *Memory) FindTrusteeByPrincipal(_ context.Context, estateID id.EstateID, principal id.PrincipalID) (*estate.Trustee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.trustees {
		if t.EstateID == estateID && t.Linked(principal) {
			return cloneTrustee(t), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (m *Memory) ListTrustees(_ context.Context, estateID id.EstateID) ([]estate.Trustee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []estate.Trustee
	for _, t := range m.trustees {
		if t.EstateID == estateID {
			out = append(out, *cloneTrustee(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) UpdateTrustee(_ context.Context, t *estate.Trustee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.trustees[t.ID]; !ok {
		return sentinel.ErrNotFound
	}
	m.trustees[t.ID] = cloneTrustee(t)
	return nil
}
