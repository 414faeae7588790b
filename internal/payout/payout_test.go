package payout

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/amhang-backend/internal/models"
)

func TestMaskAccountNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1234567890", "******7890"},
		{"1234", "1234"},
		{"123", "****"},
		{"", "****"},
		{"110-123-456789", "**********6789"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskAccountNumber(tt.in), "input %q", tt.in)
	}
}

func TestSimulatedProvider_AlwaysSucceeds(t *testing.T) {
	p := NewSimulatedProvider(rand.New(rand.NewPCG(1, 2)), 1, 1)

	res := p.Transfer(context.Background(), TransferRequest{EscrowID: uuid.New(), Amount: 10000})
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.TransactionID)

	assert.True(t, p.VerifyAccount(context.Background(), models.BankAccount{}).Verified)
}

func TestSimulatedProvider_AlwaysFails(t *testing.T) {
	p := NewSimulatedProvider(rand.New(rand.NewPCG(1, 2)), 0, 0)

	res := p.Transfer(context.Background(), TransferRequest{EscrowID: uuid.New(), Amount: 10000})
	assert.False(t, res.Success)
	assert.Contains(t, transferFailureMessages, res.ErrorMessage)

	verify := p.VerifyAccount(context.Background(), models.BankAccount{})
	assert.False(t, verify.Verified)
	assert.Equal(t, MsgHolderMismatch, verify.ErrorMessage)
}

func TestSimulatedProvider_SeedIsReproducible(t *testing.T) {
	outcomes := func() []bool {
		p := NewSimulatedProvider(rand.New(rand.NewPCG(42, 7)), 0.5, 0.5)
		var out []bool
		for i := 0; i < 20; i++ {
			out = append(out, p.Transfer(context.Background(), TransferRequest{}).Success)
		}
		return out
	}

	assert.Equal(t, outcomes(), outcomes())
}

func TestHTTPProvider_TransferSuccess(t *testing.T) {
	var gotKey, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]string{"transaction_id": "BANK_1", "status": "completed"})
	}))
	defer srv.Close()

	escrowID := uuid.New()
	p := NewHTTPProvider(srv.URL, "bank_key", time.Second)
	res := p.Transfer(context.Background(), TransferRequest{EscrowID: escrowID, Attempt: 1, Amount: 20000})

	assert.True(t, res.Success)
	assert.Equal(t, "BANK_1", res.TransactionID)
	assert.Equal(t, escrowID.String()+":1", gotKey)
	assert.Equal(t, "Bearer bank_key", gotAuth)
}

func TestHTTPProvider_TransferRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "failed", "error_message": MsgAccountClosed})
	}))
	defer srv.Close()

	res := NewHTTPProvider(srv.URL, "k", time.Second).Transfer(context.Background(), TransferRequest{EscrowID: uuid.New()})

	assert.False(t, res.Success)
	assert.Equal(t, MsgAccountClosed, res.ErrorMessage)
}

func TestHTTPProvider_TransferResolvedByLookup(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts.Add(1)
			// Обрываем соединение: клиент не узнает, прошёл ли перевод
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					_ = conn.Close()
				}
			}
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"transaction_id": "BANK_LATE", "status": "completed"})
	}))
	defer srv.Close()

	res := NewHTTPProvider(srv.URL, "k", time.Second).Transfer(context.Background(), TransferRequest{EscrowID: uuid.New()})

	assert.True(t, res.Success)
	assert.Equal(t, "BANK_LATE", res.TransactionID)
	assert.Equal(t, int32(1), posts.Load())
}

func TestHTTPProvider_TransferUnknownWhenLookupFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					_ = conn.Close()
				}
			}
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	res := NewHTTPProvider(srv.URL, "k", time.Second).Transfer(context.Background(), TransferRequest{EscrowID: uuid.New()})

	assert.False(t, res.Success)
	assert.True(t, res.Unknown)
	assert.Equal(t, MsgBankUnavailable, res.ErrorMessage)
}

func TestHTTPProvider_TransferNotFoundByLookupIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					_ = conn.Close()
				}
			}
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	res := NewHTTPProvider(srv.URL, "k", time.Second).Transfer(context.Background(), TransferRequest{EscrowID: uuid.New()})

	assert.False(t, res.Success)
	assert.False(t, res.Unknown)
}

func TestHTTPProvider_VerifyAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		verified := body["account_holder"] == "홍길동"
		_ = json.NewEncoder(w).Encode(map[string]any{"verified": verified})
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "k", time.Second)

	ok := p.VerifyAccount(context.Background(), models.BankAccount{BankName: "국민", AccountNumber: "123456789", AccountHolder: "홍길동"})
	assert.True(t, ok.Verified)

	bad := p.VerifyAccount(context.Background(), models.BankAccount{BankName: "국민", AccountNumber: "123456789", AccountHolder: "김철수"})
	assert.False(t, bad.Verified)
	assert.Equal(t, MsgHolderMismatch, bad.ErrorMessage)
}
