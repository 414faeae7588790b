package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/amhang-backend/internal/http/middleware"
	"github.com/ignatzorin/amhang-backend/internal/models"
	"github.com/ignatzorin/amhang-backend/internal/service"
)

// newTestRouter собирает gin в TestMode; userID != uuid.Nil имитирует AuthMiddleware.
func newTestRouter(userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	if userID != uuid.Nil {
		r.Use(func(c *gin.Context) {
			c.Set(middleware.ContextUserIDKey, userID)
			c.Next()
		})
	}
	return r
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
	Error   map[string]any `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

type mockMissions struct{ mock.Mock }

func (m *mockMissions) CreateMission(ctx context.Context, ownerID uuid.UUID, input service.CreateMissionInput) (*models.Mission, error) {
	args := m.Called(ctx, ownerID, input)
	mission, _ := args.Get(0).(*models.Mission)
	return mission, args.Error(1)
}

func (m *mockMissions) AssignReviewer(ctx context.Context, missionID, reviewerID uuid.UUID) (*models.Mission, error) {
	args := m.Called(ctx, missionID, reviewerID)
	mission, _ := args.Get(0).(*models.Mission)
	return mission, args.Error(1)
}

type mockPayments struct{ mock.Mock }

func (m *mockPayments) PayMission(ctx context.Context, missionID, userID uuid.UUID, paymentKey string) (*service.PaymentReceipt, error) {
	args := m.Called(ctx, missionID, userID, paymentKey)
	receipt, _ := args.Get(0).(*service.PaymentReceipt)
	return receipt, args.Error(1)
}

func (m *mockPayments) CancelMission(ctx context.Context, missionID, userID uuid.UUID) error {
	return m.Called(ctx, missionID, userID).Error(0)
}

type mockSettlements struct{ mock.Mock }

func (m *mockSettlements) ListSettlements(ctx context.Context, reviewerID uuid.UUID, status string) (*service.SettlementList, error) {
	args := m.Called(ctx, reviewerID, status)
	list, _ := args.Get(0).(*service.SettlementList)
	return list, args.Error(1)
}

func (m *mockSettlements) GetSettlement(ctx context.Context, escrowID, reviewerID uuid.UUID) (*service.SettlementDetail, error) {
	args := m.Called(ctx, escrowID, reviewerID)
	detail, _ := args.Get(0).(*service.SettlementDetail)
	return detail, args.Error(1)
}

func (m *mockSettlements) RetrySettlement(ctx context.Context, escrowID, reviewerID uuid.UUID) (*models.Escrow, error) {
	args := m.Called(ctx, escrowID, reviewerID)
	escrow, _ := args.Get(0).(*models.Escrow)
	return escrow, args.Error(1)
}

func (m *mockSettlements) VerifyBankAccount(ctx context.Context, reviewerID uuid.UUID, account models.BankAccount) (*service.BankVerification, error) {
	args := m.Called(ctx, reviewerID, account)
	verification, _ := args.Get(0).(*service.BankVerification)
	return verification, args.Error(1)
}

func (m *mockSettlements) SettleEscrow(ctx context.Context, escrowID uuid.UUID) (*service.SettlementReceipt, error) {
	args := m.Called(ctx, escrowID)
	receipt, _ := args.Get(0).(*service.SettlementReceipt)
	return receipt, args.Error(1)
}

type mockReviews struct{ mock.Mock }

func (m *mockReviews) DisputeReview(ctx context.Context, reviewID, userID uuid.UUID, reason string) (*models.Review, error) {
	args := m.Called(ctx, reviewID, userID, reason)
	review, _ := args.Get(0).(*models.Review)
	return review, args.Error(1)
}

type mockJobs struct{ mock.Mock }

func (m *mockJobs) RunNow(ctx context.Context, name string) (any, error) {
	args := m.Called(ctx, name)
	return args.Get(0), args.Error(1)
}

func (m *mockJobs) Jobs() []string {
	return m.Called().Get(0).([]string)
}
