package goroutine

import (
	"context"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/amhang-backend/internal/logger"
)

// RecoveryHandler обрабатывает panic в горутинах
type RecoveryHandler struct {
	log logrus.FieldLogger
}

// NewRecoveryHandler создает новый обработчик
func NewRecoveryHandler(log logrus.FieldLogger) *RecoveryHandler {
	return &RecoveryHandler{log: log}
}

// SafeGo запускает горутину с обработкой panic
func (rh *RecoveryHandler) SafeGo(name string, fn func()) {
	go func() {
		defer rh.handlePanic(name)
		fn()
	}()
}

// SafeGoWithContext запускает горутину с контекстом и обработкой panic
func (rh *RecoveryHandler) SafeGoWithContext(ctx context.Context, name string, fn func(context.Context)) {
	go func() {
		defer rh.handlePanic(name)
		fn(ctx)
	}()
}

func (rh *RecoveryHandler) handlePanic(name string) {
	if r := recover(); r != nil {
		rh.log.WithFields(logrus.Fields{
			"goroutine": name,
			"panic":     r,
			"stack":     string(debug.Stack()),
		}).Error("goroutine: panic перехвачен")
	}
}

// SafeGo запускает безопасную горутину с логгером компонента goroutine
func SafeGo(name string, fn func()) {
	NewRecoveryHandler(logger.Component("goroutine")).SafeGo(name, fn)
}

// SafeGoWithContext запускает безопасную горутину с контекстом
func SafeGoWithContext(ctx context.Context, name string, fn func(context.Context)) {
	NewRecoveryHandler(logger.Component("goroutine")).SafeGoWithContext(ctx, name, fn)
}
