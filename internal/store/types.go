// CLAUDE:SUMMARY Store data types: LinkStatus state machine, Link, Sources, counters.
package store

import (
	"encoding/json"
	"fmt"
	"slices"
)

// LinkStatus is the closed set of link_metadata states.
//
// pending is the only non-terminal state. A row enters pending when the
// extractor discovers its URL and leaves it exactly once, when the
// enrichment run processes it. Returning a terminal row to pending is an
// explicit operator action (ResetLinks), never automatic.
type LinkStatus string

const (
	StatusPending LinkStatus = "pending" // discovered, not yet attempted
	StatusImage   LinkStatus = "image"   // direct image URL, metadata fetch skipped
	StatusSuccess LinkStatus = "success" // OG tags retrieved
	StatusNoOG    LinkStatus = "no_og"   // page loaded but carried no OG tags
	StatusFailed  LinkStatus = "failed"  // fetch raised a non-timeout error
	StatusTimeout LinkStatus = "timeout" // fetch exceeded the deadline
)

// AllStatuses lists every valid status, pending first.
var AllStatuses = []LinkStatus{
	StatusPending, StatusImage, StatusSuccess, StatusNoOG, StatusFailed, StatusTimeout,
}

// Terminal reports whether the status ends the enrichment lifecycle.
func (s LinkStatus) Terminal() bool { return s != StatusPending && s.Valid() }

// Valid reports whether s is one of the defined statuses.
func (s LinkStatus) Valid() bool { return slices.Contains(AllStatuses, s) }

// ParseLinkStatus validates an operator-supplied status string.
func ParseLinkStatus(raw string) (LinkStatus, error) {
	s := LinkStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("store: unknown link status %q", raw)
	}
	return s, nil
}

// Sources records which records referenced a URL. Grown on re-extraction,
// never replaced; both lists are kept sorted and deduplicated.
type Sources struct {
	PlurkIDs    []int64 `json:"plurk_ids,omitempty"`
	ResponseIDs []int64 `json:"response_ids,omitempty"`
}

// Merge unions other into s.
func (s *Sources) Merge(other Sources) {
	s.PlurkIDs = mergeIDs(s.PlurkIDs, other.PlurkIDs)
	s.ResponseIDs = mergeIDs(s.ResponseIDs, other.ResponseIDs)
}

func mergeIDs(a, b []int64) []int64 {
	merged := append(slices.Clone(a), b...)
	slices.Sort(merged)
	return slices.Compact(merged)
}

func (s Sources) marshal() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("store: marshal sources: %w", err)
	}
	return string(b), nil
}

func unmarshalSources(raw string) (Sources, error) {
	var s Sources
	if raw == "" {
		return s, nil
	}
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return s, fmt.Errorf("store: unmarshal sources: %w", err)
	}
	return s, nil
}

// Link is one link_metadata row.
type Link struct {
	URL           string     `json:"url"`
	OGTitle       *string    `json:"og_title,omitempty"`
	OGDescription *string    `json:"og_description,omitempty"`
	OGSiteName    *string    `json:"og_site_name,omitempty"`
	Sources       Sources    `json:"sources"`
	Status        LinkStatus `json:"status"`
	FetchedAt     *int64     `json:"fetched_at,omitempty"` // unix ms
}

// LinkResult is the outcome of one enrichment attempt, persisted by
// SetLinkResult.
type LinkResult struct {
	Status        LinkStatus
	OGTitle       *string
	OGDescription *string
	OGSiteName    *string
}

// MergeCounts is the operator-visible outcome of one merge batch.
type MergeCounts struct {
	AddedPlurks    int `json:"added_plurks"`
	AddedResponses int `json:"added_responses"`
}

// Stats holds aggregate counters for the archive.
type Stats struct {
	Plurks    int            `json:"plurks"`
	Responses int            `json:"responses"`
	Links     int            `json:"links"`
	ByStatus  map[string]int `json:"links_by_status"`
}
