package cache

import (
	"strings"

	"github.com/dmitrijs2005/dairykeeper/internal/entitlements"
)

// Key names one independently refreshed entry of the cache.
type Key string

// KeyStatus is the key of the aggregate status.
const KeyStatus Key = "status"

const tabKeyPrefix = "tab:"

// TabKey is the key of the per-tab entitlement of tab.
func TabKey(tab entitlements.TabID) Key {
	return Key(tabKeyPrefix + tab.String())
}

// Keys lists the status key followed by every tab key.
func Keys() []Key {
	out := []Key{KeyStatus}
	for _, tab := range entitlements.Tabs() {
		out = append(out, TabKey(tab))
	}
	return out
}

// Tab returns the tab of a per-tab key.
func (k Key) Tab() (entitlements.TabID, bool) {
	s, ok := strings.CutPrefix(string(k), tabKeyPrefix)
	if !ok {
		return "", false
	}
	tab := entitlements.TabID(s)
	return tab, tab.Valid()
}

func (k Key) String() string {
	return string(k)
}

// State is the position of a key in its refresh cycle.
type State int

const (
	StateEmpty State = iota
	StateFetching
	StateFresh
	StateStale
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "EMPTY"
	case StateFetching:
		return "FETCHING"
	case StateFresh:
		return "FRESH"
	case StateStale:
		return "STALE"
	}
	return "UNKNOWN"
}
