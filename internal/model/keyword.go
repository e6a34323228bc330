package model

import "time"

// TrackedKeyword is a search keyword whose ranking is collected for a store.
type TrackedKeyword struct {
	ID       string `json:"id"`
	StoreID  string `json:"store_id"`
	Keyword  string `json:"keyword"`
	IsActive bool   `json:"is_active"`
	// CollectionTime is a preferred HH:MM collection slot. Informational for
	// now: the scheduler collects all active keywords on one interval.
	CollectionTime string    `json:"collection_time,omitempty"`
	AlertEnabled   bool      `json:"alert_enabled"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// KeywordUpdate is a partial update; nil fields are left unchanged.
type KeywordUpdate struct {
	IsActive       *bool   `json:"is_active,omitempty"`
	CollectionTime *string `json:"collection_time,omitempty"`
	AlertEnabled   *bool   `json:"alert_enabled,omitempty"`
}
