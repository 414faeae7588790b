package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TransactionStep - один шаг оплаты миссии.
type TransactionStep struct {
	Step    string         `json:"step"`
	Success bool           `json:"success"`
	At      time.Time      `json:"at"`
	Details map[string]any `json:"details,omitempty"`
}

// TransactionLog - журнал оплаты, пишется в лог целиком по завершении.
type TransactionLog struct {
	MissionID uuid.UUID
	UserID    uuid.UUID
	OrderID   string
	StartedAt time.Time
	Steps     []TransactionStep
	now       func() time.Time
}

func newTransactionLog(missionID, userID uuid.UUID, now func() time.Time) *TransactionLog {
	return &TransactionLog{
		MissionID: missionID,
		UserID:    userID,
		StartedAt: now(),
		now:       now,
	}
}

// Add добавляет шаг в журнал.
func (l *TransactionLog) Add(step string, success bool, details map[string]any) {
	l.Steps = append(l.Steps, TransactionStep{
		Step:    step,
		Success: success,
		At:      l.now(),
		Details: details,
	})
}

// Failed возвращает первый неудачный шаг, если он был.
func (l *TransactionLog) Failed() (TransactionStep, bool) {
	for _, s := range l.Steps {
		if !s.Success {
			return s, true
		}
	}
	return TransactionStep{}, false
}

// Fields - журнал в виде полей logrus.
func (l *TransactionLog) Fields() logrus.Fields {
	fields := logrus.Fields{
		"mission_id":  l.MissionID,
		"user_id":     l.UserID,
		"started_at":  l.StartedAt,
		"duration_ms": l.now().Sub(l.StartedAt).Milliseconds(),
		"steps":       l.Steps,
	}
	if l.OrderID != "" {
		fields["order_id"] = l.OrderID
	}
	if step, ok := l.Failed(); ok {
		fields["failed_step"] = step.Step
	}
	return fields
}
