package payment

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Статусы платежа на стороне шлюза
const (
	StatusReady             = "READY"
	StatusInProgress        = "IN_PROGRESS"
	StatusWaitingForDeposit = "WAITING_FOR_DEPOSIT"
	StatusDone              = "DONE"
	StatusCanceled          = "CANCELED"
	StatusPartialCanceled   = "PARTIAL_CANCELED"
	StatusAborted           = "ABORTED"
	StatusExpired           = "EXPIRED"
)

// Коды ошибок шлюза, на которые завязана логика отмены
const (
	CodeAlreadyCanceled   = "ALREADY_CANCELED_PAYMENT"
	CodeInvalidPaymentKey = "INVALID_PAYMENT_KEY"
	CodeNotFoundPayment   = "NOT_FOUND_PAYMENT"
	// CodeNotDone - шлюз ответил 200, но платёж не в статусе DONE.
	CodeNotDone = "NOT_DONE"
)

// ErrNotRefundable - платёж в статусе, из которого отмена невозможна.
var ErrNotRefundable = errors.New("payment: платёж нельзя отменить в текущем статусе")

// Payment - ответ шлюза по платежу.
type Payment struct {
	PaymentKey    string       `json:"paymentKey"`
	OrderID       string       `json:"orderId"`
	OrderName     string       `json:"orderName,omitempty"`
	Status        string       `json:"status"`
	Method        string       `json:"method,omitempty"`
	TotalAmount   int64        `json:"totalAmount"`
	BalanceAmount int64        `json:"balanceAmount"`
	RequestedAt   string       `json:"requestedAt,omitempty"`
	ApprovedAt    string       `json:"approvedAt,omitempty"`
	Cancels       []CancelInfo `json:"cancels,omitempty"`
}

// CancelInfo - одна запись об отмене внутри платежа.
type CancelInfo struct {
	CancelAmount int64  `json:"cancelAmount"`
	CancelReason string `json:"cancelReason"`
	CanceledAt   string `json:"canceledAt"`
}

// Refundable - можно ли ещё вернуть деньги по платежу.
func (p *Payment) Refundable() bool {
	return p.Status == StatusDone || p.Status == StatusPartialCanceled
}

// CancelOptions - параметры отмены.
type CancelOptions struct {
	// Amount > 0 означает частичную отмену.
	Amount int64
	// SkipStatusCheck отключает предварительный запрос статуса.
	SkipStatusCheck bool
}

// CancelResult - итог отмены.
type CancelResult struct {
	Payment         *Payment
	AlreadyCanceled bool
}

// StatusCheck - сводка по статусу платежа для сверки.
type StatusCheck struct {
	Status     string
	IsDone     bool
	IsCanceled bool
	CanRefund  bool
	Err        error
}

// GatewayError - ошибка, которую вернул шлюз в теле ответа.
type GatewayError struct {
	HTTPStatus int
	Code       string
	Message    string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway: %s (%d): %s", e.Code, e.HTTPStatus, e.Message)
}

// TransportError - запрос не дошёл или ответ не прочитан, исход операции неизвестен.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("payment gateway: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport сообщает, что исход операции на стороне шлюза неизвестен.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// ErrorCode достаёт код шлюза из цепочки ошибок.
func ErrorCode(err error) string {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Code
	}
	return ""
}

// Config - параметры клиента шлюза.
type Config struct {
	SecretKey  string
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	// CancelMaxAttempts - потолок попыток отмены.
	CancelMaxAttempts int
	// CancelBaseDelay - задержка перед второй попыткой, дальше удваивается.
	CancelBaseDelay time.Duration
}
