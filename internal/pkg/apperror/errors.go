package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden     ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest    ErrorCode = "BAD_REQUEST"
	ErrCodeConflict      ErrorCode = "CONFLICT"
	ErrCodeInternal      ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation    ErrorCode = "VALIDATION_ERROR"
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"
	ErrCodeRateLimited   ErrorCode = "RATE_LIMITED"

	// Миссии и оплата
	ErrCodeMissionNotFound         ErrorCode = "MISSION_NOT_FOUND"
	ErrCodePaymentAlreadyProcessed ErrorCode = "PAYMENT_ALREADY_PROCESSED"
	ErrCodePaymentFailed           ErrorCode = "PAYMENT_FAILED"
	ErrCodePaymentCancelled        ErrorCode = "PAYMENT_CANCELLED"
	ErrCodeRollbackFailed          ErrorCode = "ROLLBACK_FAILED"
	ErrCodeRefundFailed            ErrorCode = "REFUND_FAILED"
	ErrCodeMissionCannotCancel     ErrorCode = "MISSION_CANNOT_CANCEL"
	ErrCodeMissionCannotAssign     ErrorCode = "MISSION_CANNOT_ASSIGN"

	// Escrow и выплаты
	ErrCodeEscrowNotFound           ErrorCode = "ESCROW_NOT_FOUND"
	ErrCodeSettlementNotFound       ErrorCode = "SETTLEMENT_NOT_FOUND"
	ErrCodeAlreadySettled           ErrorCode = "ALREADY_SETTLED"
	ErrCodeSettlementInProgress     ErrorCode = "SETTLEMENT_IN_PROGRESS"
	ErrCodeSettlementFailed         ErrorCode = "SETTLEMENT_FAILED"
	ErrCodeBankVerificationRequired ErrorCode = "BANK_VERIFICATION_REQUIRED"
	ErrCodeBankVerificationFailed   ErrorCode = "BANK_VERIFICATION_FAILED"
	ErrCodeInvalidBankInfo          ErrorCode = "INVALID_BANK_INFO"

	// Отзывы
	ErrCodeReviewNotFound      ErrorCode = "REVIEW_NOT_FOUND"
	ErrCodeReviewCannotDispute ErrorCode = "REVIEW_CANNOT_DISPUTE"
)

// Action подсказывает клиенту, что делать дальше.
const (
	ActionRetry          = "retry"
	ActionContactSupport = "contact_support"
	ActionVerifyBank     = "verify_bank_account"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	Guidance   []string
	Action     string
	Details    map[string]any
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по коду, чтобы errors.Is работал с шаблонами из var-блока.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// WithCause возвращает копию ошибки с причиной.
func (e *AppError) WithCause(err error) *AppError {
	cp := e.clone()
	cp.Cause = err
	return cp
}

// WithDetails возвращает копию ошибки с дополнительными полями ответа.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	cp := e.clone()
	if cp.Details == nil {
		cp.Details = make(map[string]any, len(details))
	}
	for k, v := range details {
		cp.Details[k] = v
	}
	return cp
}

// WithGuidance возвращает копию ошибки с подсказками пользователю.
func (e *AppError) WithGuidance(action string, guidance ...string) *AppError {
	cp := e.clone()
	cp.Action = action
	cp.Guidance = append([]string(nil), guidance...)
	return cp
}

func (e *AppError) clone() *AppError {
	cp := *e
	if e.Details != nil {
		cp.Details = make(map[string]any, len(e.Details))
		for k, v := range e.Details {
			cp.Details[k] = v
		}
	}
	return &cp
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound, ErrCodeMissionNotFound, ErrCodeEscrowNotFound,
		ErrCodeSettlementNotFound, ErrCodeReviewNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation, ErrCodePaymentAlreadyProcessed,
		ErrCodePaymentFailed, ErrCodeMissionCannotCancel, ErrCodeMissionCannotAssign,
		ErrCodeAlreadySettled, ErrCodeSettlementFailed, ErrCodeBankVerificationRequired, ErrCodeBankVerificationFailed,
		ErrCodeInvalidBankInfo, ErrCodeReviewCannotDispute:
		return http.StatusBadRequest
	case ErrCodeConflict, ErrCodeSettlementInProgress:
		return http.StatusConflict
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// As достаёт AppError из цепочки.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode проверяет код ошибки в цепочке.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

func IsNotFound(err error) bool {
	appErr, ok := As(err)
	return ok && appErr.HTTPStatus == http.StatusNotFound
}

func IsForbidden(err error) bool {
	return HasCode(err, ErrCodeForbidden)
}

func IsValidation(err error) bool {
	return HasCode(err, ErrCodeValidation)
}

// Сообщения пользователю на корейском.
var (
	ErrMissionNotFound         = New(ErrCodeMissionNotFound, "미션을 찾을 수 없습니다.")
	ErrPaymentAlreadyProcessed = New(ErrCodePaymentAlreadyProcessed, "이미 결제가 완료된 미션입니다.")
	ErrPaymentKeyRequired      = New(ErrCodePaymentFailed, "결제 키가 필요합니다.")
	ErrPaymentFailed           = New(ErrCodePaymentFailed, "결제 승인에 실패했습니다.")
	ErrPaymentCancelled        = New(ErrCodePaymentCancelled, "결제 처리 중 오류가 발생하여 결제가 자동 취소되었습니다.")
	ErrRollbackFailed          = New(ErrCodeRollbackFailed, "결제 처리 중 오류가 발생했으며 자동 취소에 실패했습니다.")
	ErrRefundFailed            = New(ErrCodeRefundFailed, "환불 처리에 실패했습니다.")
	ErrMissionCannotCancel     = New(ErrCodeMissionCannotCancel, "현재 상태에서는 미션을 취소할 수 없습니다.")
	ErrMissionCannotAssign     = New(ErrCodeMissionCannotAssign, "모집 중인 미션에만 리뷰어를 배정할 수 있습니다.")

	ErrEscrowNotFound           = New(ErrCodeEscrowNotFound, "에스크로 정보를 찾을 수 없습니다.")
	ErrSettlementNotFound       = New(ErrCodeSettlementNotFound, "정산 정보를 찾을 수 없습니다.")
	ErrAlreadySettled           = New(ErrCodeAlreadySettled, "이미 정산이 완료되었습니다.")
	ErrSettlementInProgress     = New(ErrCodeSettlementInProgress, "정산이 이미 진행 중입니다.")
	ErrSettlementFailed         = New(ErrCodeSettlementFailed, "정산 처리에 실패했습니다.")
	ErrBankVerificationRequired = New(ErrCodeBankVerificationRequired, "계좌 재인증이 필요합니다.")
	ErrBankVerificationFailed   = New(ErrCodeBankVerificationFailed, "계좌 인증에 실패했습니다.")
	ErrInvalidBankInfo          = New(ErrCodeInvalidBankInfo, "은행명, 계좌번호, 예금주를 모두 입력해주세요.")

	ErrReviewNotFound      = New(ErrCodeReviewNotFound, "리뷰를 찾을 수 없습니다.")
	ErrReviewCannotDispute = New(ErrCodeReviewCannotDispute, "게시 전 리뷰만 이의를 제기할 수 있습니다.")

	ErrUnauthorized = New(ErrCodeUnauthorized, "로그인이 필요합니다.")
	ErrInvalidToken = New(ErrCodeUnauthorized, "유효하지 않은 인증 토큰입니다.")
	ErrForbidden    = New(ErrCodeForbidden, "접근 권한이 없습니다.")
	ErrRateLimited  = New(ErrCodeRateLimited, "요청이 너무 많습니다. 잠시 후 다시 시도해주세요.")
)
