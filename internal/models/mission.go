package models

import (
	"time"

	"github.com/google/uuid"
)

// Business - заведение, от имени которого создаются миссии.
type Business struct {
	ID        uuid.UUID `db:"id" json:"id"`
	OwnerID   uuid.UUID `db:"owner_id" json:"owner_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Mission описывает заказ бизнеса на «тайного покупателя».
type Mission struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	BusinessID          uuid.UUID  `db:"business_id" json:"business_id"`
	BusinessOwnerID     uuid.UUID  `db:"business_owner_id" json:"business_owner_id"`
	Title               string     `db:"title" json:"title"`
	MissionType         string     `db:"mission_type" json:"mission_type"`
	ProductCost         int64      `db:"product_cost" json:"product_cost"`
	ReviewerFee         int64      `db:"reviewer_fee" json:"reviewer_fee"`
	PlatformFee         int64      `db:"platform_fee" json:"platform_fee"`
	TotalAmount         int64      `db:"total_amount" json:"total_amount"`
	Status              string     `db:"status" json:"status"`
	PaymentStatus       string     `db:"payment_status" json:"payment_status"`
	RecruitmentDeadline *time.Time `db:"recruitment_deadline" json:"recruitment_deadline,omitempty"`
	AssignedReviewerID  *uuid.UUID `db:"assigned_reviewer_id" json:"assigned_reviewer_id,omitempty"`
	TransactionID       *string    `db:"transaction_id" json:"transaction_id,omitempty"`
	PaidAt              *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	PublishedAt         *time.Time `db:"published_at" json:"published_at,omitempty"`
	CancelledAt         *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// IsPaid сообщает, списаны ли деньги за миссию.
func (m *Mission) IsPaid() bool {
	return m.PaymentStatus == PaymentStatusPaid
}

// PlatformFeeFor считает комиссию платформы, округляя до вона.
func PlatformFeeFor(productCost, reviewerFee int64) int64 {
	base := productCost + reviewerFee
	return (base*PlatformFeePercent + 50) / 100
}

// MissionPayment - изменения миссии после успешного списания.
type MissionPayment struct {
	TransactionID       string
	PaidAt              time.Time
	RecruitmentDeadline time.Time
}
