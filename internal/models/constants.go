package models

import "time"

// MissionStatus константы статусов миссий
const (
	MissionStatusPendingPayment  = "pending_payment"
	MissionStatusRecruiting      = "recruiting"
	MissionStatusAssigned        = "assigned"
	MissionStatusInProgress      = "in_progress"
	MissionStatusReviewSubmitted = "review_submitted"
	MissionStatusPreviewPeriod   = "preview_period"
	MissionStatusPublished       = "published"
	MissionStatusDisputed        = "disputed"
	MissionStatusCompleted       = "completed"
	MissionStatusCancelled       = "cancelled"
)

// PaymentStatus статусы оплаты миссии
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
)

// EscrowStatus константы статусов escrow
const (
	EscrowStatusPending   = "pending"
	EscrowStatusPaid      = "paid"
	EscrowStatusHold      = "hold"
	EscrowStatusReleasing = "releasing"
	EscrowStatusReleased  = "released"
	EscrowStatusRefunded  = "refunded"
)

// Причины удержания escrow
const (
	HoldReasonBankAccountMissing       = "bank_account_missing"
	HoldReasonBankVerificationRequired = "bank_verification_required"
	HoldReasonDispute                  = "dispute"
	// HoldReasonPayoutUnconfirmed - исход перевода неизвестен, нужна сверка с банком.
	HoldReasonPayoutUnconfirmed = "payout_unconfirmed"
)

// ReviewStatus константы статусов отзывов
const (
	ReviewStatusDraft     = "draft"
	ReviewStatusSubmitted = "submitted"
	ReviewStatusPreview   = "preview"
	ReviewStatusPublished = "published"
	ReviewStatusDisputed  = "disputed"
)

// BankVerificationStatus статусы проверки счёта ревьюера
const (
	BankVerificationUnverified = "unverified"
	BankVerificationPending    = "pending"
	BankVerificationVerified   = "verified"
	BankVerificationFailed     = "failed"
	BankVerificationRequired   = "verification_required"
)

// Роли пользователей
const (
	RoleBusiness = "business"
	RoleReviewer = "reviewer"
	RoleAdmin    = "admin"
)

// Бизнес-константы платформы.
const (
	// MaxPayoutRetryCount - после стольких неудачных переводов escrow уходит в hold.
	MaxPayoutRetryCount = 3
	AutoReleaseDelay    = 7 * 24 * time.Hour
	// PreviewPeriod - сколько отзыв висит в предпросмотре до автопубликации.
	PreviewPeriod      = 72 * time.Hour
	RecruitmentPeriod  = 3 * 24 * time.Hour
	PlatformFeePercent = 10
)

// ValidMissionStatuses список валидных статусов миссий
var ValidMissionStatuses = map[string]struct{}{
	MissionStatusPendingPayment:  {},
	MissionStatusRecruiting:      {},
	MissionStatusAssigned:        {},
	MissionStatusInProgress:      {},
	MissionStatusReviewSubmitted: {},
	MissionStatusPreviewPeriod:   {},
	MissionStatusPublished:       {},
	MissionStatusDisputed:        {},
	MissionStatusCompleted:       {},
	MissionStatusCancelled:       {},
}

// CancellableMissionStatuses - из каких статусов бизнес может отменить миссию.
var CancellableMissionStatuses = []string{
	MissionStatusPendingPayment,
	MissionStatusRecruiting,
}

// PayoutHoldReasons - удержания, которые снимаются повторной проверкой счёта.
var PayoutHoldReasons = []string{
	HoldReasonBankAccountMissing,
	HoldReasonBankVerificationRequired,
}
