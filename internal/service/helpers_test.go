package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/amhang-backend/internal/models"
	"github.com/ignatzorin/amhang-backend/internal/payment"
	"github.com/ignatzorin/amhang-backend/internal/payout"
	"github.com/ignatzorin/amhang-backend/internal/repository/memory"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Capture(ctx context.Context, paymentKey, orderID string, amount int64) (*payment.Payment, error) {
	args := m.Called(ctx, paymentKey, orderID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *mockGateway) Cancel(ctx context.Context, paymentKey, reason string, opts payment.CancelOptions) (*payment.CancelResult, error) {
	args := m.Called(ctx, paymentKey, reason, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.CancelResult), args.Error(1)
}

func (m *mockGateway) Query(ctx context.Context, paymentKey string) (*payment.Payment, error) {
	args := m.Called(ctx, paymentKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

type sentNotification struct {
	UserID uuid.UUID
	Kind   string
	Title  string
	Body   string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Notify(_ context.Context, userID uuid.UUID, kind, title, body string, _ map[string]any) NotifyResult {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{UserID: userID, Kind: kind, Title: title, Body: body})
	return NotifyResult{Success: true}
}

func (n *recordingNotifier) to(userID uuid.UUID) []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentNotification
	for _, s := range n.sent {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out
}

// failingEscrowRepo ломает отдельные операции поверх памяти.
type failingEscrowRepo struct {
	*memory.EscrowStore
	createErr error
	deleteErr error
	panicOn   string
	// byMissionFailures - сколько ближайших TransitionByMission упадут.
	byMissionFailures int
}

func (r *failingEscrowRepo) Create(ctx context.Context, escrow *models.Escrow) error {
	if r.panicOn == "create" {
		panic("escrow storage exploded")
	}
	if r.createErr != nil {
		return r.createErr
	}
	return r.EscrowStore.Create(ctx, escrow)
}

func (r *failingEscrowRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	return r.EscrowStore.Delete(ctx, id)
}

func (r *failingEscrowRepo) TransitionByMission(ctx context.Context, missionID uuid.UUID, from []string, to string, upd models.EscrowUpdate) (int64, error) {
	if r.byMissionFailures > 0 {
		r.byMissionFailures--
		return 0, errStorage
	}
	return r.EscrowStore.TransitionByMission(ctx, missionID, from, to, upd)
}

// racingMissionRepo проигрывает гонку за оплату миссии.
type racingMissionRepo struct {
	*memory.MissionStore
	markPaidErr error
}

func (r *racingMissionRepo) MarkPaid(_ context.Context, _ uuid.UUID, _ models.MissionPayment) (bool, error) {
	return false, r.markPaidErr
}

// stubPayouts - банк с заранее заданным исходом.
type stubPayouts struct {
	transfer  payout.TransferResult
	verify    payout.VerifyResult
	transfers atomic.Int32
	delay     time.Duration
	lastReq   atomic.Value
}

func (p *stubPayouts) Transfer(_ context.Context, req payout.TransferRequest) payout.TransferResult {
	p.transfers.Add(1)
	p.lastReq.Store(req)
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	return p.transfer
}

func (p *stubPayouts) VerifyAccount(_ context.Context, _ models.BankAccount) payout.VerifyResult {
	return p.verify
}

var errStorage = errors.New("storage unavailable")

// fixture - сервисы поверх одного хранилища в памяти.
type fixture struct {
	store    *memory.Store
	ledger   *EscrowLedger
	gateway  *mockGateway
	notifier *recordingNotifier
	payouts  *stubPayouts

	ownerID    uuid.UUID
	businessID uuid.UUID
	reviewerID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:      memory.NewStore(),
		gateway:    new(mockGateway),
		notifier:   &recordingNotifier{},
		payouts:    &stubPayouts{},
		ownerID:    uuid.New(),
		businessID: uuid.New(),
		reviewerID: uuid.New(),
	}
	f.ledger = NewEscrowLedger(f.store.Escrows())
	f.store.AddBusiness(models.Business{ID: f.businessID, OwnerID: f.ownerID, Name: "강남 파스타"})
	return f
}

func (f *fixture) paymentService(missions MissionRepository, ledger *EscrowLedger) *MissionPaymentService {
	if missions == nil {
		missions = f.store.Missions()
	}
	if ledger == nil {
		ledger = f.ledger
	}
	return NewMissionPaymentService(missions, ledger, f.gateway, payment.NewRollbackCoordinator(f.gateway), f.notifier)
}

func (f *fixture) settlementService() *SettlementService {
	return NewSettlementService(f.ledger, f.store.Users(), f.payouts, f.notifier)
}

// pendingMission - миссия 30000 + 20000 + 5000 комиссии, ждёт оплаты.
func (f *fixture) pendingMission(t *testing.T) *models.Mission {
	t.Helper()
	m := &models.Mission{
		BusinessID:    f.businessID,
		Title:         "파스타 맛집 방문",
		ProductCost:   30000,
		ReviewerFee:   20000,
		PlatformFee:   5000,
		TotalAmount:   55000,
		Status:        models.MissionStatusPendingPayment,
		PaymentStatus: models.PaymentStatusPending,
	}
	require.NoError(t, f.store.Missions().Create(context.Background(), m))
	return m
}

// recruitingMission - оплаченная миссия с escrow в статусе paid.
func (f *fixture) recruitingMission(t *testing.T, deadline time.Time) (*models.Mission, *models.Escrow) {
	t.Helper()
	paidAt := deadline.Add(-models.RecruitmentPeriod)
	key := "pay_" + uuid.NewString()
	m := models.Mission{
		ID:                  uuid.New(),
		BusinessID:          f.businessID,
		ProductCost:         30000,
		ReviewerFee:         20000,
		PlatformFee:         5000,
		TotalAmount:         55000,
		Status:              models.MissionStatusRecruiting,
		PaymentStatus:       models.PaymentStatusPaid,
		RecruitmentDeadline: &deadline,
		TransactionID:       &key,
		PaidAt:              &paidAt,
	}
	f.store.PutMission(m)

	e := &models.Escrow{
		MissionID:     m.ID,
		BusinessID:    f.businessID,
		ProductCost:   m.ProductCost,
		ReviewerFee:   m.ReviewerFee,
		PlatformFee:   m.PlatformFee,
		TotalAmount:   m.TotalAmount,
		Status:        models.EscrowStatusPaid,
		TransactionID: key,
		PGProvider:    pgProviderToss,
		PaidAt:        &paidAt,
	}
	require.NoError(t, f.store.Escrows().Create(context.Background(), e))
	return &m, e
}

// dueEscrow - escrow ревьюера, у которого наступил срок авто-выплаты.
func (f *fixture) dueEscrow(t *testing.T, retry int) *models.Escrow {
	t.Helper()
	releaseAt := time.Now().Add(-time.Hour)
	reviewerID := f.reviewerID
	e := models.Escrow{
		ID:               uuid.New(),
		MissionID:        uuid.New(),
		BusinessID:       f.businessID,
		ReviewerID:       &reviewerID,
		ReviewerFee:      20000,
		TotalAmount:      55000,
		Status:           models.EscrowStatusPaid,
		TransactionID:    "pay_" + uuid.NewString(),
		AutoReleaseAt:    &releaseAt,
		PayoutRetryCount: retry,
	}
	f.store.PutEscrow(e)
	return &e
}

func (f *fixture) withBankAccount(failedCount int) {
	bank, number, holder := "국민은행", "123456789012", "홍길동"
	f.store.AddProfile(models.PayoutProfile{
		UserID:                      f.reviewerID,
		BankName:                    &bank,
		BankAccountNumber:           &number,
		BankAccountHolder:           &holder,
		BankVerificationStatus:      models.BankVerificationVerified,
		BankVerificationFailedCount: failedCount,
	})
}

func (f *fixture) escrow(t *testing.T, id uuid.UUID) *models.Escrow {
	t.Helper()
	e, err := f.store.Escrows().GetByID(context.Background(), id)
	require.NoError(t, err)
	return e
}

func (f *fixture) mission(t *testing.T, id uuid.UUID) *models.Mission {
	t.Helper()
	m, err := f.store.Missions().GetByID(context.Background(), id)
	require.NoError(t, err)
	return m
}

func (f *fixture) profile(t *testing.T) *models.PayoutProfile {
	t.Helper()
	p, err := f.store.Users().GetPayoutProfile(context.Background(), f.reviewerID)
	require.NoError(t, err)
	return p
}

func donePayment(key, orderID string, amount int64) *payment.Payment {
	return &payment.Payment{
		PaymentKey:  key,
		OrderID:     orderID,
		Status:      payment.StatusDone,
		Method:      "카드",
		TotalAmount: amount,
	}
}
