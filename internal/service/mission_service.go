package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/amhang-backend/internal/logger"
	"github.com/ignatzorin/amhang-backend/internal/models"
	"github.com/ignatzorin/amhang-backend/internal/pkg/apperror"
	"github.com/ignatzorin/amhang-backend/internal/repository"
	"github.com/ignatzorin/amhang-backend/internal/validation"
)

// BusinessRepository - чтение бизнесов.
type BusinessRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Business, error)
}

// CreateMissionInput - данные новой миссии.
type CreateMissionInput struct {
	BusinessID  uuid.UUID
	Title       string
	MissionType string
	ProductCost int64
	ReviewerFee int64
}

// MissionService создаёт миссии и закрепляет за ними ревьюеров.
type MissionService struct {
	missions   MissionRepository
	businesses BusinessRepository
	ledger     *EscrowLedger
	notifier   Notifier
	now        func() time.Time
	log        *logrus.Entry
}

// NewMissionService создаёт сервис миссий.
func NewMissionService(missions MissionRepository, businesses BusinessRepository, ledger *EscrowLedger, notifier Notifier) *MissionService {
	return &MissionService{
		missions:   missions,
		businesses: businesses,
		ledger:     ledger,
		notifier:   notifier,
		now:        time.Now,
		log:        logger.Component("mission"),
	}
}

// CreateMission создаёт миссию в статусе pending_payment и считает комиссию платформы.
func (s *MissionService) CreateMission(ctx context.Context, ownerID uuid.UUID, input CreateMissionInput) (*models.Mission, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "미션 제목을 입력해주세요.")
	}
	if input.ProductCost < 0 || input.ReviewerFee < 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "금액은 0 이상이어야 합니다.")
	}
	if err := validation.ValidateMissionTitle(title); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateMissionAmount("상품 금액", input.ProductCost); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateMissionAmount("리뷰어 보수", input.ReviewerFee); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if input.ProductCost+input.ReviewerFee == 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "결제 금액이 0원일 수 없습니다.")
	}

	business, err := s.businesses.GetByID(ctx, input.BusinessID)
	if err != nil {
		if errors.Is(err, repository.ErrBusinessNotFound) {
			return nil, apperror.ErrMissionNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "업체 조회에 실패했습니다.")
	}
	if business.OwnerID != ownerID {
		return nil, apperror.ErrMissionNotFound
	}

	platformFee := models.PlatformFeeFor(input.ProductCost, input.ReviewerFee)
	mission := &models.Mission{
		BusinessID:      business.ID,
		BusinessOwnerID: business.OwnerID,
		Title:           title,
		MissionType:     input.MissionType,
		ProductCost:     input.ProductCost,
		ReviewerFee:     input.ReviewerFee,
		PlatformFee:     platformFee,
		TotalAmount:     input.ProductCost + input.ReviewerFee + platformFee,
		Status:          models.MissionStatusPendingPayment,
		PaymentStatus:   models.PaymentStatusPending,
	}
	if err := s.missions.Create(ctx, mission); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "미션 생성에 실패했습니다.")
	}

	s.log.WithFields(logrus.Fields{
		"mission_id":   mission.ID,
		"business_id":  business.ID,
		"total_amount": mission.TotalAmount,
	}).Info("mission: создана")
	return mission, nil
}

// AssignReviewer закрепляет ревьюера за оплаченной миссией. Подбор кандидата происходит снаружи.
func (s *MissionService) AssignReviewer(ctx context.Context, missionID, reviewerID uuid.UUID) (*models.Mission, error) {
	mission, err := s.missions.GetByID(ctx, missionID)
	if err != nil {
		if errors.Is(err, repository.ErrMissionNotFound) {
			return nil, apperror.ErrMissionNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "미션 조회에 실패했습니다.")
	}
	if mission.Status != models.MissionStatusRecruiting {
		return nil, apperror.ErrMissionCannotAssign
	}

	ok, err := s.missions.AssignReviewer(ctx, missionID, reviewerID, s.now())
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "리뷰어 배정에 실패했습니다.")
	}
	if !ok {
		return nil, apperror.ErrMissionCannotAssign
	}

	if _, err := s.ledger.AssignReviewer(ctx, missionID, reviewerID); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "에스크로 갱신에 실패했습니다.")
	}

	log := s.log.WithFields(logrus.Fields{"mission_id": missionID, "reviewer_id": reviewerID})
	if res := s.notifier.Notify(ctx, reviewerID, models.NotificationMissionAssigned,
		"미션에 선정되었습니다",
		"축하합니다! 미션에 선정되었습니다. 미션 상세를 확인해주세요.",
		map[string]any{"missionId": missionID},
	); !res.Success {
		log.WithError(res.Error).Warn("mission: уведомление о назначении не отправлено")
	}
	log.Info("mission: ревьюер назначен")

	return s.missions.GetByID(ctx, missionID)
}
