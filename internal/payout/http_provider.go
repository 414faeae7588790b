package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/amhang-backend/internal/logger"
	"github.com/ignatzorin/amhang-backend/internal/models"
)

const (
	transferStatusCompleted = "completed"
	transferStatusFailed    = "failed"
)

// HTTPProvider ходит в REST API банка (open banking) за переводами и проверкой счёта.
type HTTPProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *logrus.Entry
}

// NewHTTPProvider создаёт клиента банковского API.
func NewHTTPProvider(baseURL, apiKey string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		log:        logger.Component("payout"),
	}
}

type transferResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	ErrorMessage  string `json:"error_message"`
}

// Transfer отправляет перевод. При обрыве связи спрашивает банк по ключу идемпотентности,
// чтобы не принять прошедший перевод за неудачу.
func (p *HTTPProvider) Transfer(ctx context.Context, req TransferRequest) TransferResult {
	body := map[string]any{
		"bank_name":      req.Account.BankName,
		"account_number": req.Account.AccountNumber,
		"account_holder": req.Account.AccountHolder,
		"amount":         req.Amount,
		"memo":           req.Memo,
	}
	headers := map[string]string{"Idempotency-Key": req.IdempotencyKey()}

	var resp transferResponse
	status, err := p.do(ctx, http.MethodPost, "/transfers", body, headers, &resp)
	if err != nil {
		log := p.log.WithError(err).WithField("escrow_id", req.EscrowID)
		log.Warn("payout: перевод не подтверждён, проверяем статус по ключу")

		var lookup transferResponse
		lookupStatus, lookupErr := p.do(ctx, http.MethodGet, "/transfers/"+url.PathEscape(req.IdempotencyKey()), nil, nil, &lookup)
		switch {
		case lookupErr == nil && lookupStatus == http.StatusOK && lookup.Status == transferStatusCompleted:
			return TransferResult{Success: true, TransactionID: lookup.TransactionID}
		case lookupErr == nil && lookupStatus == http.StatusNotFound:
			// Банк перевод не получил
			return TransferResult{ErrorMessage: MsgBankUnavailable}
		case lookupErr == nil && lookupStatus == http.StatusOK && lookup.Status == transferStatusFailed:
			msg := lookup.ErrorMessage
			if msg == "" {
				msg = MsgBankUnavailable
			}
			return TransferResult{ErrorMessage: msg}
		}
		log.WithFields(logrus.Fields{
			"lookup_error":  lookupErr,
			"lookup_status": lookupStatus,
		}).Error("payout: статус перевода неизвестен")
		return TransferResult{Unknown: true, ErrorMessage: MsgBankUnavailable}
	}

	if status >= 400 || resp.Status != transferStatusCompleted {
		msg := resp.ErrorMessage
		if msg == "" {
			msg = MsgBankUnavailable
		}
		return TransferResult{ErrorMessage: msg}
	}

	return TransferResult{Success: true, TransactionID: resp.TransactionID}
}

// VerifyAccount проверяет, что счёт существует и принадлежит владельцу.
func (p *HTTPProvider) VerifyAccount(ctx context.Context, account models.BankAccount) VerifyResult {
	body := map[string]any{
		"bank_name":      account.BankName,
		"account_number": account.AccountNumber,
		"account_holder": account.AccountHolder,
	}

	var resp struct {
		Verified     bool   `json:"verified"`
		ErrorMessage string `json:"error_message"`
	}
	status, err := p.do(ctx, http.MethodPost, "/accounts/verify", body, nil, &resp)
	if err != nil {
		p.log.WithError(err).Warn("payout: проверка счёта не удалась")
		return VerifyResult{ErrorMessage: MsgBankUnavailable}
	}
	if status >= 400 || !resp.Verified {
		msg := resp.ErrorMessage
		if msg == "" {
			msg = MsgHolderMismatch
		}
		return VerifyResult{ErrorMessage: msg}
	}
	return VerifyResult{Verified: true}
}

// do возвращает ошибку только при сбое транспорта; статус ответа разбирает вызывающий.
func (p *HTTPProvider) do(ctx context.Context, method, path string, payload any, headers map[string]string, out any) (int, error) {
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("payout: не удалось сериализовать запрос: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("payout: не удалось собрать запрос: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("payout: запрос %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	// Тело ошибки тоже декодируем: в нём error_message для пользователя
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		if resp.StatusCode < 400 {
			return resp.StatusCode, fmt.Errorf("payout: некорректный ответ банка: %w", err)
		}
	}
	return resp.StatusCode, nil
}
