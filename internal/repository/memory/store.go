// Package memory - хранилище в памяти для режима STORAGE_DRIVER=memory и тестов.
// Семантика условных переходов та же, что у Postgres-репозиториев.
package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/amhang-backend/internal/models"
)

// Store держит все таблицы под одним мьютексом.
type Store struct {
	mu            sync.RWMutex
	missions      map[uuid.UUID]*models.Mission
	businesses    map[uuid.UUID]*models.Business
	escrows       map[uuid.UUID]*models.Escrow
	reviews       map[uuid.UUID]*models.Review
	profiles      map[uuid.UUID]*models.PayoutProfile
	notifications []models.Notification
	now           func() time.Time
}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{
		missions:   make(map[uuid.UUID]*models.Mission),
		businesses: make(map[uuid.UUID]*models.Business),
		escrows:    make(map[uuid.UUID]*models.Escrow),
		reviews:    make(map[uuid.UUID]*models.Review),
		profiles:   make(map[uuid.UUID]*models.PayoutProfile),
		now:        time.Now,
	}
}

// Missions возвращает репозиторий миссий поверх хранилища.
func (s *Store) Missions() *MissionStore { return &MissionStore{s: s} }

// Businesses возвращает репозиторий бизнесов.
func (s *Store) Businesses() *BusinessStore { return &BusinessStore{s: s} }

// Escrows возвращает репозиторий escrow.
func (s *Store) Escrows() *EscrowStore { return &EscrowStore{s: s} }

// Reviews возвращает репозиторий отзывов.
func (s *Store) Reviews() *ReviewStore { return &ReviewStore{s: s} }

// Users возвращает репозиторий банковских профилей.
func (s *Store) Users() *UserStore { return &UserStore{s: s} }

// Notifications возвращает репозиторий уведомлений.
func (s *Store) Notifications() *NotificationStore { return &NotificationStore{s: s} }

// AddBusiness кладёт бизнес как есть. Бизнесы создаются вне сервиса.
func (s *Store) AddBusiness(b models.Business) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now()
	}
	s.businesses[b.ID] = &b
}

// AddReview кладёт отзыв как есть.
func (s *Store) AddReview(r models.Review) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews[r.ID] = &r
}

// AddProfile кладёт банковский профиль пользователя.
func (s *Store) AddProfile(p models.PayoutProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.BankVerificationStatus == "" {
		p.BankVerificationStatus = models.BankVerificationUnverified
	}
	s.profiles[p.UserID] = &p
}

// PutMission сохраняет миссию целиком (фикстуры и демо-данные).
func (s *Store) PutMission(m models.Mission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.missions[m.ID] = &m
}

// PutEscrow сохраняет escrow целиком, минуя проверку уникальности.
func (s *Store) PutEscrow(e models.Escrow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.escrows[e.ID] = &e
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
