package cache

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/dairykeeper/internal/entitlements"
)

// errEmptyResponse marks a source call that succeeded without a value.
var errEmptyResponse = errors.New("entitlement source returned no data")

type statusSlot struct{}

func (statusSlot) get(s *entitlements.Snapshot) (*entitlements.AggregateStatus, time.Time, bool) {
	return s.Status, s.StatusFetchedAt, s.Status != nil
}

func (statusSlot) set(s *entitlements.Snapshot, v *entitlements.AggregateStatus, at time.Time) {
	s.Status = v
	s.StatusFetchedAt = at
}

func (statusSlot) prepare(v *entitlements.AggregateStatus, _ time.Time) (*entitlements.AggregateStatus, error) {
	if v == nil {
		return nil, errEmptyResponse
	}
	return v.Clone(), nil
}

func (statusSlot) clone(v *entitlements.AggregateStatus) *entitlements.AggregateStatus {
	return v.Clone()
}

type tabSlot struct {
	tab entitlements.TabID
}

func (t tabSlot) get(s *entitlements.Snapshot) (*entitlements.TabEntitlement, time.Time, bool) {
	e, ok := s.PerTab[t.tab]
	if !ok || e == nil {
		return nil, time.Time{}, false
	}
	return e, e.LastFetched, true
}

func (t tabSlot) set(s *entitlements.Snapshot, v *entitlements.TabEntitlement, at time.Time) {
	if s.PerTab == nil {
		s.PerTab = make(map[entitlements.TabID]*entitlements.TabEntitlement)
	}
	v.LastFetched = at
	s.PerTab[t.tab] = v
}

// prepare stamps the entry and drops a grant that already ended.
func (t tabSlot) prepare(v *entitlements.TabEntitlement, now time.Time) (*entitlements.TabEntitlement, error) {
	if v == nil {
		return nil, errEmptyResponse
	}
	e := v.Clone()
	e.Tab = t.tab
	e.LastFetched = now
	e.Normalize(now)
	return e, nil
}

func (tabSlot) clone(v *entitlements.TabEntitlement) *entitlements.TabEntitlement {
	return v.Clone()
}
