package model

import "time"

// RankingSnapshot is one timestamped collection result for a tracked
// keyword. All rank fields are nullable: a snapshot with a null
// RankPosition records that the store was not found in the results, which
// is valid data rather than a failed collection.
type RankingSnapshot struct {
	ID               string    `json:"id"`
	TrackedKeywordID string    `json:"tracked_keyword_id"`
	RankPosition     *int      `json:"rank_position"`
	TotalResults     *int      `json:"total_results"`
	VisitorCount     *int      `json:"visitor_count"`
	BlogReviewCount  *int      `json:"blog_review_count"`
	CollectedAt      time.Time `json:"collected_at"`
}
