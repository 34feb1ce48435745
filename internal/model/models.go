package model

import (
	"time"
)

// PublishStatus tracks where an article is in its publishing lifecycle.
type PublishStatus string

const (
	StatusDraft     PublishStatus = "draft"
	StatusScheduled PublishStatus = "scheduled"
	StatusPublished PublishStatus = "published"
	StatusFailed    PublishStatus = "failed"
)

// Article is the canonical per-row record, built fresh from a sheet row each
// pass and persisted for dedupe and the scheduled-publish sweep.
type Article struct {
	ID              int64   `db:"id" json:"id"`
	Title           string  `db:"title" json:"title"`
	Category        *string `db:"category" json:"category,omitempty"`
	Status          string  `db:"status" json:"status"`
	ScheduledAt     *string `db:"scheduled_at" json:"scheduled_at,omitempty"`
	DocLink         *string `db:"doc_link" json:"doc_link,omitempty"`
	ImageLink       *string `db:"image_link" json:"image_link,omitempty"`
	WPPostID        *int64  `db:"wp_post_id" json:"wp_post_id,omitempty"`
	WPPostLink      *string `db:"wp_post_link" json:"wp_post_link,omitempty"`
	FeaturedMediaID *int64  `db:"featured_media_id" json:"featured_media_id,omitempty"`
	ContentMD       *string `db:"content_md" json:"content_md,omitempty"`
	FailedCount     int     `db:"failed_count" json:"failed_count"`
	PublishFailedAt *string `db:"publish_failed_at" json:"publish_failed_at,omitempty"`
	CreatedAt       string  `db:"created_at" json:"created_at"`
	UpdatedAt       string  `db:"updated_at" json:"updated_at"`
}

// ScheduledTime parses the stored RFC3339 scheduled timestamp, when present.
func (a *Article) ScheduledTime() *time.Time {
	if a.ScheduledAt == nil {
		return nil
	}
	t, err := time.Parse(time.RFC3339, *a.ScheduledAt)
	if err != nil {
		return nil
	}
	return &t
}

// OutcomeStatus labels a run-log entry.
type OutcomeStatus string

const (
	OutcomeSuccess   OutcomeStatus = "Success"
	OutcomeError     OutcomeStatus = "Error"
	OutcomeSkipped   OutcomeStatus = "Skipped"
	OutcomeException OutcomeStatus = "Exception"
)

// RunOutcome is one run-log entry: what happened to one row (or to the run
// itself, for setup-level entries) during a pass.
type RunOutcome struct {
	Timestamp time.Time     `json:"timestamp"`
	Action    string        `json:"action"`
	Status    OutcomeStatus `json:"status"`
	Detail    string        `json:"detail"`
}

// RowRange is an inclusive [Start, End] 1-based row-index filter.
type RowRange struct {
	Start int
	End   int
}

// Contains reports whether the 1-based row index falls inside the range.
func (r RowRange) Contains(rowIdx int) bool {
	return rowIdx >= r.Start && rowIdx <= r.End
}
