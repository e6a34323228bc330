package model

import "time"

// DashboardKeyword is a tracked keyword annotated with its two most recent
// snapshots for rank-trend display.
type DashboardKeyword struct {
	TrackedKeyword
	LatestRank *int `json:"latest_rank"`
	PrevRank   *int `json:"prev_rank"`
	// RankChange is prev minus latest, so a positive value means the store
	// moved up the results.
	RankChange            *int       `json:"rank_change"`
	LatestVisitorCount    *int       `json:"latest_visitor_count"`
	LatestBlogReviewCount *int       `json:"latest_blog_review_count"`
	LatestCollectedAt     *time.Time `json:"latest_collected_at"`
}

// DashboardStore is a store with the dashboard view of all its keywords.
type DashboardStore struct {
	Store
	Keywords []DashboardKeyword `json:"keywords"`
}
