package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/amhang-backend/internal/models"
	"github.com/ignatzorin/amhang-backend/internal/repository"
)

// UserStore - банковские профили в памяти.
type UserStore struct {
	s *Store
}

func (u *UserStore) GetPayoutProfile(_ context.Context, userID uuid.UUID) (*models.PayoutProfile, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	profile, ok := u.s.profiles[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *profile
	return &cp, nil
}

func (u *UserStore) MarkPayoutSucceeded(_ context.Context, userID uuid.UUID, at time.Time) error {
	return u.update(userID, func(p *models.PayoutProfile) {
		p.BankVerificationStatus = models.BankVerificationVerified
		p.BankVerificationFailedCount = 0
		if p.BankVerifiedAt == nil {
			p.BankVerifiedAt = &at
		}
		p.UpdatedAt = at
	})
}

func (u *UserStore) MarkPayoutFailed(_ context.Context, userID uuid.UUID, failedCount int, status string) error {
	return u.update(userID, func(p *models.PayoutProfile) {
		p.BankVerificationStatus = status
		p.BankVerificationFailedCount = max(p.BankVerificationFailedCount, failedCount)
		p.UpdatedAt = u.s.now()
	})
}

func (u *UserStore) UpdateBankAccount(_ context.Context, userID uuid.UUID, account models.BankAccount, at time.Time) error {
	return u.update(userID, func(p *models.PayoutProfile) {
		bank, number, holder := account.BankName, account.AccountNumber, account.AccountHolder
		p.BankName = &bank
		p.BankAccountNumber = &number
		p.BankAccountHolder = &holder
		p.BankVerificationStatus = models.BankVerificationVerified
		p.BankVerificationFailedCount = 0
		p.BankVerifiedAt = &at
		p.UpdatedAt = at
	})
}

func (u *UserStore) MarkVerificationFailed(_ context.Context, userID uuid.UUID) error {
	return u.update(userID, func(p *models.PayoutProfile) {
		p.BankVerificationStatus = models.BankVerificationFailed
		p.BankVerificationFailedCount++
		p.UpdatedAt = u.s.now()
	})
}

func (u *UserStore) update(userID uuid.UUID, fn func(*models.PayoutProfile)) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	profile, ok := u.s.profiles[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	fn(profile)
	return nil
}

// NotificationStore - уведомления в памяти.
type NotificationStore struct {
	s *Store
}

func (n *NotificationStore) Create(_ context.Context, notification *models.Notification) error {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()

	notification.ID = uuid.New()
	notification.CreatedAt = n.s.now()
	n.s.notifications = append(n.s.notifications, *notification)
	return nil
}

func (n *NotificationStore) ListByUser(_ context.Context, userID uuid.UUID, limit int) ([]models.Notification, error) {
	n.s.mu.RLock()
	defer n.s.mu.RUnlock()

	result := []models.Notification{}
	for i := len(n.s.notifications) - 1; i >= 0 && len(result) < limit; i-- {
		if n.s.notifications[i].UserID == userID {
			result = append(result, n.s.notifications[i])
		}
	}
	return result, nil
}
