// Package entitlements defines the subscription model shared by the DairyKeeper
// client and the entitlement server: gated tabs, grants, offers, the aggregate
// status of a user and the per-tab entitlement, and the persisted cache snapshot.
package entitlements

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownTab is returned when a tab identifier is not one of the gated tabs.
	ErrUnknownTab = errors.New("unknown tab")

	// ErrInvalidPurchase is returned when a purchase request fails validation.
	ErrInvalidPurchase = errors.New("invalid purchase")
)

// TabID identifies a gated feature area of the app.
type TabID string

const (
	TabPurchase TabID = "purchase"
	TabSelling  TabID = "selling"
	TabRegister TabID = "register"
)

var allTabs = []TabID{TabPurchase, TabSelling, TabRegister}

// Tabs returns every gated tab in display order.
func Tabs() []TabID {
	out := make([]TabID, len(allTabs))
	copy(out, allTabs)
	return out
}

// Valid reports whether t is one of the gated tabs.
func (t TabID) Valid() bool {
	for _, tab := range allTabs {
		if t == tab {
			return true
		}
	}
	return false
}

func (t TabID) String() string {
	return string(t)
}

// ParseTab converts user input such as "Selling" into a TabID.
func ParseTab(s string) (TabID, error) {
	t := TabID(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownTab, s)
	}
	return t, nil
}

// tabSet is the normalized form used wherever a list of tabs arrives from the
// wire: unknown values are dropped, duplicates collapsed.
func tabSet(tabs []TabID) map[TabID]bool {
	set := make(map[TabID]bool, len(allTabs))
	for _, t := range tabs {
		if t.Valid() {
			set[t] = true
		}
	}
	return set
}

// orderedTabs returns the members of set in display order.
func orderedTabs(set map[TabID]bool) []TabID {
	out := make([]TabID, 0, len(set))
	for _, t := range allTabs {
		if set[t] {
			out = append(out, t)
		}
	}
	return out
}

// FormatTabList renders tabs as a comma-separated list in display order,
// the form stored in the server's tabs columns.
func FormatTabList(tabs []TabID) string {
	ordered := orderedTabs(tabSet(tabs))
	s := make([]string, len(ordered))
	for i, t := range ordered {
		s[i] = string(t)
	}
	return strings.Join(s, ",")
}

// ParseTabList is the inverse of FormatTabList. Empty items are skipped;
// an unknown tab is an error.
func ParseTabList(s string) ([]TabID, error) {
	var out []TabID
	for _, item := range strings.Split(s, ",") {
		if strings.TrimSpace(item) == "" {
			continue
		}
		t, err := ParseTab(item)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return orderedTabs(tabSet(out)), nil
}
