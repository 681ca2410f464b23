package entitlements

import "time"

// Snapshot is the unit the entitlement cache persists and restores.
//
// LastFetched is the snapshot-level marker consulted only when deciding whether
// a stored copy is worth restoring; every entry also carries its own stamp
// (StatusFetchedAt for the aggregate status, TabEntitlement.LastFetched per tab).
type Snapshot struct {
	Status          *AggregateStatus          `json:"status,omitempty"`
	StatusFetchedAt time.Time                 `json:"statusFetchedAt"`
	PerTab          map[TabID]*TabEntitlement `json:"perTab,omitempty"`
	LastFetched     time.Time                 `json:"lastFetched"`
}

// IsEmpty reports whether nothing was ever fetched into s.
func (s Snapshot) IsEmpty() bool {
	return s.Status == nil && len(s.PerTab) == 0
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Status:          s.Status.Clone(),
		StatusFetchedAt: s.StatusFetchedAt,
		LastFetched:     s.LastFetched,
	}
	if s.PerTab != nil {
		out.PerTab = make(map[TabID]*TabEntitlement, len(s.PerTab))
		for tab, e := range s.PerTab {
			out.PerTab[tab] = e.Clone()
		}
	}
	return out
}
