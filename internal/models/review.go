package models

import (
	"time"

	"github.com/google/uuid"
)

// Review - отзыв ревьюера по итогам миссии.
type Review struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	MissionID      uuid.UUID  `db:"mission_id" json:"mission_id"`
	BusinessID     uuid.UUID  `db:"business_id" json:"business_id"`
	ReviewerID     uuid.UUID  `db:"reviewer_id" json:"reviewer_id"`
	Status         string     `db:"status" json:"status"`
	SubmittedAt    *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
	IsDisputed     bool       `db:"is_disputed" json:"is_disputed"`
	DisputeReason  *string    `db:"dispute_reason" json:"dispute_reason,omitempty"`
	DisputeFiledAt *time.Time `db:"dispute_filed_at" json:"dispute_filed_at,omitempty"`
	PublishedAt    *time.Time `db:"published_at" json:"published_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// CanBeDisputed - оспорить можно только до публикации.
func (r *Review) CanBeDisputed() bool {
	if r.IsDisputed {
		return false
	}
	return r.Status == ReviewStatusSubmitted || r.Status == ReviewStatusPreview
}
