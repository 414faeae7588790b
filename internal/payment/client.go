// Package payment - клиент платёжного шлюза Toss Payments и откат платежей.
package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/amhang-backend/internal/logger"
	"github.com/ignatzorin/amhang-backend/internal/metrics"
	"github.com/ignatzorin/amhang-backend/internal/retry"
)

const (
	DefaultBaseURL           = "https://api.tosspayments.com/v1"
	defaultTimeout           = 30 * time.Second
	defaultCancelMaxAttempts = 3
	defaultCancelBaseDelay   = 100 * time.Millisecond
)

// Client реализует вызовы REST API шлюза.
// Секрет хранится в экземпляре, заголовок авторизации собирается на каждый запрос.
type Client struct {
	baseURL           string
	authHeader        string
	httpClient        *http.Client
	cancelMaxAttempts int
	cancelBaseDelay   time.Duration
	log               *logrus.Entry
}

// NewClient создаёт клиента шлюза.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	attempts := cfg.CancelMaxAttempts
	if attempts <= 0 {
		attempts = defaultCancelMaxAttempts
	}
	delay := cfg.CancelBaseDelay
	if delay <= 0 {
		delay = defaultCancelBaseDelay
	}

	return &Client{
		baseURL:           baseURL,
		authHeader:        "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.SecretKey+":")),
		httpClient:        httpClient,
		cancelMaxAttempts: attempts,
		cancelBaseDelay:   delay,
		log:               logger.Component("payment"),
	}
}

// Capture подтверждает платёж. Успех только при статусе DONE; не повторяется.
func (c *Client) Capture(ctx context.Context, paymentKey, orderID string, amount int64) (*Payment, error) {
	body := map[string]any{
		"paymentKey": paymentKey,
		"orderId":    orderID,
		"amount":     amount,
	}

	var p Payment
	if err := c.do(ctx, "capture", http.MethodPost, "/payments/confirm", body, &p); err != nil {
		return nil, err
	}

	if p.Status != StatusDone {
		return &p, &GatewayError{
			HTTPStatus: http.StatusOK,
			Code:       CodeNotDone,
			Message:    "결제 상태: " + p.Status,
		}
	}

	return &p, nil
}

// Cancel отменяет платёж полностью или частично.
// Повторяет запрос до cancelMaxAttempts раз; уже отменённый платёж считается успехом.
func (c *Client) Cancel(ctx context.Context, paymentKey, reason string, opts CancelOptions) (*CancelResult, error) {
	log := c.log.WithFields(logrus.Fields{
		"payment_key": paymentKey,
		"reason":      reason,
	})

	if !opts.SkipStatusCheck {
		current, err := c.Query(ctx, paymentKey)
		if err != nil {
			// Статус не узнали - всё равно пробуем отменить
			log.WithError(err).Warn("payment: не удалось получить статус перед отменой")
		} else {
			if current.Status == StatusCanceled {
				log.Info("payment: платёж уже отменён")
				return &CancelResult{Payment: current, AlreadyCanceled: true}, nil
			}
			if !current.Refundable() {
				return nil, fmt.Errorf("%w: %s", ErrNotRefundable, current.Status)
			}
		}
	}

	body := map[string]any{"cancelReason": reason}
	if opts.Amount > 0 {
		body["cancelAmount"] = opts.Amount
	}
	path := "/payments/" + url.PathEscape(paymentKey) + "/cancel"

	var result *CancelResult
	err := retry.Do(ctx, c.cancelMaxAttempts, c.cancelBaseDelay, func(attempt int) error {
		var p Payment
		err := c.do(ctx, "cancel", http.MethodPost, path, body, &p)
		if err == nil {
			result = &CancelResult{Payment: &p}
			return nil
		}

		switch ErrorCode(err) {
		case CodeAlreadyCanceled:
			result = &CancelResult{AlreadyCanceled: true}
			return nil
		case CodeInvalidPaymentKey, CodeNotFoundPayment:
			return retry.Permanent(err)
		}

		log.WithError(err).WithField("attempt", attempt+1).Warn("payment: попытка отмены не удалась")
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("payment: отмена %s: %w", paymentKey, err)
	}

	if result.AlreadyCanceled {
		log.Info("payment: шлюз сообщил, что платёж уже отменён")
	}
	return result, nil
}

// Query возвращает платёж по ключу.
func (c *Client) Query(ctx context.Context, paymentKey string) (*Payment, error) {
	var p Payment
	if err := c.do(ctx, "query", http.MethodGet, "/payments/"+url.PathEscape(paymentKey), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// QueryByOrderID возвращает платёж по нашему orderId.
func (c *Client) QueryByOrderID(ctx context.Context, orderID string) (*Payment, error) {
	var p Payment
	if err := c.do(ctx, "query_by_order", http.MethodGet, "/payments/orders/"+url.PathEscape(orderID), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// VerifyStatus - сводка по статусу платежа, ошибка кладётся внутрь результата.
func (c *Client) VerifyStatus(ctx context.Context, paymentKey string) StatusCheck {
	p, err := c.Query(ctx, paymentKey)
	if err != nil {
		return StatusCheck{Err: err}
	}
	return StatusCheck{
		Status:     p.Status,
		IsDone:     p.Status == StatusDone,
		IsCanceled: p.Status == StatusCanceled,
		CanRefund:  p.Refundable(),
	}
}

// do выполняет запрос к шлюзу и декодирует ответ в out.
func (c *Client) do(ctx context.Context, op, method, path string, payload, out any) (err error) {
	defer func() {
		result := "success"
		switch {
		case err == nil:
		case IsTransport(err):
			result = "transport_error"
		default:
			result = "gateway_error"
		}
		metrics.GatewayRequestsTotal.WithLabelValues(op, result).Inc()
	}()

	var reader io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("payment: не удалось сериализовать запрос %s: %w", op, err)
		}
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("payment: не удалось собрать запрос %s: %w", op, err)
	}
	req.Header.Set("Authorization", c.authHeader)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	if resp.StatusCode >= 400 {
		gwErr := &GatewayError{HTTPStatus: resp.StatusCode}
		var body struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if jsonErr := json.Unmarshal(raw, &body); jsonErr == nil {
			gwErr.Code = body.Code
			gwErr.Message = body.Message
		}
		if gwErr.Code == "" {
			gwErr.Code = http.StatusText(resp.StatusCode)
		}
		return gwErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		// 2xx с нечитаемым телом: что сделал шлюз - неизвестно
		return &TransportError{Op: op, Err: errors.Join(errors.New("некорректный ответ"), err)}
	}
	return nil
}
