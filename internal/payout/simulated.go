package payout

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ignatzorin/amhang-backend/internal/models"
)

// SimulatedProvider - имитация банка для разработки.
// Исход определяется генератором, который можно подменить для воспроизводимости.
type SimulatedProvider struct {
	mu              sync.Mutex
	rng             *rand.Rand
	transferSuccess float64
	verifySuccess   float64
	now             func() time.Time
}

// NewSimulatedProvider создаёт имитацию банка. rng == nil - случайный генератор.
func NewSimulatedProvider(rng *rand.Rand, transferSuccess, verifySuccess float64) *SimulatedProvider {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &SimulatedProvider{
		rng:             rng,
		transferSuccess: transferSuccess,
		verifySuccess:   verifySuccess,
		now:             time.Now,
	}
}

// Transfer «переводит» деньги с вероятностью transferSuccess.
func (p *SimulatedProvider) Transfer(_ context.Context, req TransferRequest) TransferResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rng.Float64() < p.transferSuccess {
		return TransferResult{
			Success:       true,
			TransactionID: fmt.Sprintf("TXN_%d_%08x", p.now().UnixMilli(), p.rng.Uint32()),
		}
	}
	return TransferResult{
		ErrorMessage: transferFailureMessages[p.rng.IntN(len(transferFailureMessages))],
	}
}

// VerifyAccount «проверяет» счёт с вероятностью verifySuccess.
func (p *SimulatedProvider) VerifyAccount(_ context.Context, _ models.BankAccount) VerifyResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rng.Float64() < p.verifySuccess {
		return VerifyResult{Verified: true}
	}
	return VerifyResult{ErrorMessage: MsgHolderMismatch}
}
