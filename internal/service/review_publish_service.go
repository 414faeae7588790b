package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/amhang-backend/internal/logger"
	"github.com/ignatzorin/amhang-backend/internal/metrics"
	"github.com/ignatzorin/amhang-backend/internal/models"
	"github.com/ignatzorin/amhang-backend/internal/pkg/apperror"
	"github.com/ignatzorin/amhang-backend/internal/repository"
	"github.com/ignatzorin/amhang-backend/internal/traces"
	"github.com/ignatzorin/amhang-backend/internal/validation"
)

const publishBatchSize = 500

// ReviewRepository - переходы отзыва, которые нужны таймеру публикации и спорам.
type ReviewRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Review, error)
	ListDueForPublish(ctx context.Context, submittedBefore time.Time, limit int) ([]models.Review, error)
	Publish(ctx context.Context, id uuid.UUID, from string, at, releaseAt time.Time) (ok bool, armed int64, err error)
	MarkDisputed(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error)
}

// PublishResult - итог прогона автопубликации.
type PublishResult struct {
	Processed int `json:"processed"`
	Published int `json:"published"`
	Failed    int `json:"failed"`
}

// ReviewPublishService публикует отзывы по окончании предпросмотра и принимает споры.
type ReviewPublishService struct {
	reviews  ReviewRepository
	missions MissionRepository
	ledger   *EscrowLedger
	notifier Notifier
	now      func() time.Time
	log      *logrus.Entry
}

// NewReviewPublishService создаёт сервис.
func NewReviewPublishService(reviews ReviewRepository, missions MissionRepository, ledger *EscrowLedger, notifier Notifier) *ReviewPublishService {
	return &ReviewPublishService{
		reviews:  reviews,
		missions: missions,
		ledger:   ledger,
		notifier: notifier,
		now:      time.Now,
		log:      logger.Component("review_publish"),
	}
}

// ProcessAutoPublish публикует отзывы, у которых прошёл период предпросмотра,
// и назначает escrow их миссий дату авто-выплаты.
func (s *ReviewPublishService) ProcessAutoPublish(ctx context.Context) (PublishResult, error) {
	ctx, span := traces.StartSpan(ctx, "review.auto_publish", traces.Job("review_publish"))
	defer span.End()

	var result PublishResult
	now := s.now()
	due, err := s.reviews.ListDueForPublish(ctx, now.Add(-models.PreviewPeriod), publishBatchSize)
	if err != nil {
		traces.RecordError(span, err)
		return result, fmt.Errorf("review publish: выборка отзывов %w", err)
	}

	for i := range due {
		result.Processed++
		published, err := s.publish(ctx, &due[i], now)
		switch {
		case err != nil:
			s.log.WithError(err).WithField("review_id", due[i].ID).Error("review publish: не удалось опубликовать отзыв")
			metrics.PublishedReviewsTotal.WithLabelValues("error").Inc()
			result.Failed++
		case !published:
			metrics.PublishedReviewsTotal.WithLabelValues("skipped").Inc()
		default:
			metrics.PublishedReviewsTotal.WithLabelValues("published").Inc()
			result.Published++
		}
	}

	s.log.WithFields(logrus.Fields{
		"processed": result.Processed,
		"published": result.Published,
		"failed":    result.Failed,
	}).Info("review publish: прогон завершён")
	return result, nil
}

func (s *ReviewPublishService) publish(ctx context.Context, review *models.Review, now time.Time) (bool, error) {
	log := s.log.WithFields(logrus.Fields{"review_id": review.ID, "mission_id": review.MissionID})

	releaseAt := now.Add(models.AutoReleaseDelay)
	ok, armed, err := s.reviews.Publish(ctx, review.ID, review.Status, now, releaseAt)
	if err != nil {
		return false, err
	}
	if !ok {
		// Оспорили или опубликовали между выборкой и переходом
		log.Debug("review publish: отзыв уже не в наборе")
		return false, nil
	}
	if armed == 0 {
		log.Warn("review publish: у миссии нет escrow для авто-выплаты")
	}

	s.notify(ctx, review.ReviewerID, "리뷰가 공개되었습니다", "작성하신 리뷰가 자동 공개되었습니다.", review, log)
	if mission, err := s.missions.GetByID(ctx, review.MissionID); err == nil {
		s.notify(ctx, mission.BusinessOwnerID, "새 리뷰가 공개되었습니다", "미션 리뷰가 공개되었습니다. 확인해보세요.", review, log)
	} else {
		log.WithError(err).Warn("review publish: владелец миссии не найден")
	}

	log.WithField("auto_release_at", releaseAt).Info("review publish: отзыв опубликован")
	return true, nil
}

// DisputeReview - бизнес оспаривает отзыв до публикации.
// Отзыв выпадает из автопубликации, а escrow миссии удерживается до решения спора.
func (s *ReviewPublishService) DisputeReview(ctx context.Context, reviewID, userID uuid.UUID, reason string) (*models.Review, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "이의 제기 사유를 입력해주세요.")
	}
	if err := validation.ValidateDisputeReason(reason); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, repository.ErrReviewNotFound) {
			return nil, apperror.ErrReviewNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "리뷰 조회에 실패했습니다.")
	}

	mission, err := s.missions.GetByID(ctx, review.MissionID)
	if err != nil {
		if errors.Is(err, repository.ErrMissionNotFound) {
			return nil, apperror.ErrReviewNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "미션 조회에 실패했습니다.")
	}
	if mission.BusinessOwnerID != userID {
		return nil, apperror.ErrReviewNotFound
	}
	if !review.CanBeDisputed() {
		return nil, apperror.ErrReviewCannotDispute
	}

	now := s.now()
	ok, err := s.reviews.MarkDisputed(ctx, reviewID, reason, now)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "이의 제기 처리에 실패했습니다.")
	}
	if !ok {
		return nil, apperror.ErrReviewCannotDispute
	}

	log := s.log.WithFields(logrus.Fields{"review_id": reviewID, "mission_id": review.MissionID})
	held, err := s.ledger.HoldByMission(ctx, review.MissionID, models.HoldReasonDispute)
	if err != nil {
		// Отзыв уже оспорен и в автопубликацию не попадёт, escrow без даты выплаты не уйдёт
		log.WithError(err).Error("review dispute: escrow не удержан")
	}

	log.WithField("escrow_held", held).Info("review dispute: отзыв оспорен")
	return s.reviews.GetByID(ctx, reviewID)
}

func (s *ReviewPublishService) notify(ctx context.Context, userID uuid.UUID, title, body string, review *models.Review, log *logrus.Entry) {
	if res := s.notifier.Notify(ctx, userID, models.NotificationReviewPublished, title, body,
		map[string]any{"reviewId": review.ID, "missionId": review.MissionID},
	); !res.Success {
		log.WithError(res.Error).Warn("review publish: уведомление не отправлено")
	}
}
