package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/amhang-backend/internal/config"
	"github.com/ignatzorin/amhang-backend/internal/db"
	"github.com/ignatzorin/amhang-backend/internal/goroutine"
	httpHandlers "github.com/ignatzorin/amhang-backend/internal/http/handlers"
	httpRouter "github.com/ignatzorin/amhang-backend/internal/http/router"
	"github.com/ignatzorin/amhang-backend/internal/logger"
	"github.com/ignatzorin/amhang-backend/internal/metrics"
	"github.com/ignatzorin/amhang-backend/internal/payment"
	"github.com/ignatzorin/amhang-backend/internal/payout"
	"github.com/ignatzorin/amhang-backend/internal/repository"
	"github.com/ignatzorin/amhang-backend/internal/repository/memory"
	"github.com/ignatzorin/amhang-backend/internal/scheduler"
	"github.com/ignatzorin/amhang-backend/internal/service"
	"github.com/ignatzorin/amhang-backend/internal/traces"
	"github.com/ignatzorin/amhang-backend/internal/ws"
)

// Расписание фоновых задач, Asia/Seoul.
const (
	settlementSpec    = "0 2 * * *"
	reviewPublishSpec = "0 * * * *"
	missionExpirySpec = "0 3 * * *"
)

// repositories - хранилища, общие для всех сервисов.
type repositories struct {
	missions      service.MissionRepository
	businesses    service.BusinessRepository
	escrows       service.EscrowRepository
	reviews       service.ReviewRepository
	users         service.PayoutProfileRepository
	notifications service.NotificationRepository
}

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	if cfg.Env == "development" {
		logger.Init("debug")
		logger.SetTextFormatter()
	} else {
		logger.Init("info")
	}
	log := logger.Component("main")

	shutdownTraces, err := traces.Init(ctx, cfg.OTLPEndpoint, "amhang-backend", log)
	if err != nil {
		log.WithError(err).Fatal("main: не удалось поднять трассировку")
	}

	repos, dbConn := openStorage(ctx, cfg, log)
	if dbConn != nil {
		defer safeClose(dbConn, log)
		goroutine.SafeGoWithContext(ctx, "db-stats", func(ctx context.Context) {
			metrics.StartDBStatsCollector(ctx, dbConn.DB, 15*time.Second)
		})
	}

	// Внешние системы.
	gateway := payment.NewClient(payment.Config{
		SecretKey:         cfg.TossSecretKey,
		BaseURL:           cfg.TossAPIURL,
		Timeout:           cfg.GatewayTimeout,
		CancelMaxAttempts: cfg.CancelMaxAttempts,
		CancelBaseDelay:   cfg.CancelBaseDelay,
	})
	rollback := payment.NewRollbackCoordinator(gateway)

	var payouts payout.Provider
	if cfg.PayoutDriver == config.PayoutDriverHTTP {
		payouts = payout.NewHTTPProvider(cfg.PayoutAPIURL, cfg.PayoutAPIKey, cfg.GatewayTimeout)
	} else {
		payouts = payout.NewSimulatedProvider(nil, cfg.PayoutSuccessRate, cfg.PayoutVerifySuccessRate)
	}

	// Вебсокеты.
	hub := ws.NewHub()
	goroutine.SafeGoWithContext(ctx, "ws-hub", hub.Run)

	// Сервисы.
	tokenManager := service.NewTokenManager(cfg.JWTSecret)
	notifications := service.NewNotificationService(repos.notifications, hub, cfg.NotifyTimeout)
	ledger := service.NewEscrowLedger(repos.escrows)
	missionService := service.NewMissionService(repos.missions, repos.businesses, ledger, notifications)
	paymentService := service.NewMissionPaymentService(repos.missions, ledger, gateway, rollback, notifications)
	settlementService := service.NewSettlementService(ledger, repos.users, payouts, notifications)
	expiryService := service.NewMissionExpiryService(repos.missions, ledger, gateway, notifications)
	publishService := service.NewReviewPublishService(repos.reviews, repos.missions, ledger, notifications)

	// Фоновые задачи. Ручной запуск из админки работает и при выключенном расписании.
	sched, err := scheduler.New(cfg.SchedulerTimezone, cfg.JobTimeout,
		scheduler.Job{Name: scheduler.JobSettlement, Spec: settlementSpec, Run: func(ctx context.Context) (any, error) {
			return settlementService.ProcessAutoSettlement(ctx)
		}},
		scheduler.Job{Name: scheduler.JobReviewPublish, Spec: reviewPublishSpec, Run: func(ctx context.Context) (any, error) {
			return publishService.ProcessAutoPublish(ctx)
		}},
		scheduler.Job{Name: scheduler.JobMissionExpiry, Spec: missionExpirySpec, Run: func(ctx context.Context) (any, error) {
			return expiryService.ProcessMissionExpiry(ctx)
		}},
	)
	if err != nil {
		log.WithError(err).Fatal("main: не удалось настроить планировщик")
	}
	if cfg.SchedulerEnabled {
		sched.Start()
	} else {
		log.Warn("main: расписание фоновых задач выключено (SCHEDULER_ENABLED=false)")
	}

	// HTTP.
	var pinger httpHandlers.Pinger
	if dbConn != nil {
		pinger = dbConn
	}
	engine := httpRouter.SetupRouter(cfg, httpRouter.Handlers{
		Mission:      httpHandlers.NewMissionHandler(missionService, paymentService),
		Review:       httpHandlers.NewReviewHandler(publishService),
		Settlement:   httpHandlers.NewSettlementHandler(settlementService),
		Admin:        httpHandlers.NewAdminHandler(sched, settlementService, missionService),
		Notification: httpHandlers.NewNotificationHandler(notifications),
		Health:       httpHandlers.NewHealthHandler(pinger, cfg.StorageDriver),
		WS:           httpHandlers.NewWSHandler(hub, tokenManager, cfg.AllowedOrigins),
	}, tokenManager)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("main: ошибка остановки http сервера")
		}
		// Дожидаемся текущих выплат, чтобы не оставить escrow в releasing
		sched.Stop(shutdownCtx)
		if err := shutdownTraces(shutdownCtx); err != nil {
			log.WithError(err).Warn("main: ошибка остановки трассировки")
		}
	}()

	log.WithFields(logrus.Fields{
		"port":    cfg.HTTPPort,
		"storage": cfg.StorageDriver,
		"payout":  cfg.PayoutDriver,
	}).Info("main: HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("main: сервер завершился с ошибкой")
	}
	<-shutdownDone
	log.Info("main: сервер остановлен")
}

// openStorage выбирает хранилище по STORAGE_DRIVER. Для memory соединения с базой нет.
func openStorage(ctx context.Context, cfg *config.Config, log *logrus.Entry) (repositories, *sqlx.DB) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		log.Warn("main: данные хранятся в памяти и пропадут при перезапуске")
		store := memory.NewStore()
		return repositories{
			missions:      store.Missions(),
			businesses:    store.Businesses(),
			escrows:       store.Escrows(),
			reviews:       store.Reviews(),
			users:         store.Users(),
			notifications: store.Notifications(),
		}, nil
	}

	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("main: ошибка подключения к базе")
	}
	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.WithError(err).Fatal("main: ошибка миграций")
	}

	return repositories{
		missions:      repository.NewMissionRepository(dbConn),
		businesses:    repository.NewBusinessRepository(dbConn),
		escrows:       repository.NewEscrowRepository(dbConn),
		reviews:       repository.NewReviewRepository(dbConn),
		users:         repository.NewUserRepository(dbConn),
		notifications: repository.NewNotificationRepository(dbConn),
	}, dbConn
}

// safeClose закрывает соединение с базой.
func safeClose(conn *sqlx.DB, log *logrus.Entry) {
	if err := conn.Close(); err != nil {
		log.WithError(err).Error("main: ошибка закрытия базы")
	}
}
