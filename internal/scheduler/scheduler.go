// Package scheduler запускает фоновые задачи по расписанию (cron) и по запросу.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync/atomic"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/amhang-backend/internal/logger"
	"github.com/ignatzorin/amhang-backend/internal/metrics"
)

// Имена задач, по ним же задачи запускаются вручную.
const (
	JobSettlement    = "settlement"
	JobReviewPublish = "review_publish"
	JobMissionExpiry = "mission_expiry"
)

// DefaultTimezone - расписание считается по корейскому времени.
const DefaultTimezone = "Asia/Seoul"

var (
	ErrUnknownJob = errors.New("scheduler: неизвестная задача")
	ErrJobRunning = errors.New("scheduler: задача уже выполняется")
)

// Job - фоновая задача. Run возвращает итог прогона для логов и ответа админке.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) (any, error)
}

type registeredJob struct {
	Job
	running atomic.Bool
}

// Scheduler держит cron и реестр задач.
type Scheduler struct {
	cron    *cron.Cron
	jobs    map[string]*registeredJob
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	log     *logrus.Entry
}

// New регистрирует задачи в cron с часовым поясом tz.
func New(tz string, timeout time.Duration, jobs ...Job) (*Scheduler, error) {
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("scheduler: часовой пояс %q: %w", tz, err)
	}

	log := logger.Component("scheduler")
	cl := cronLogger{log: log}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		jobs:    make(map[string]*registeredJob, len(jobs)),
		ctx:     ctx,
		cancel:  cancel,
		timeout: timeout,
		log:     log,
	}

	for _, job := range jobs {
		if _, dup := s.jobs[job.Name]; dup {
			cancel()
			return nil, fmt.Errorf("scheduler: задача %q зарегистрирована дважды", job.Name)
		}
		rj := &registeredJob{Job: job}
		s.jobs[job.Name] = rj
		if job.Spec == "" {
			continue
		}
		if _, err := s.cron.AddFunc(job.Spec, func() { _, _ = s.run(s.ctx, rj) }); err != nil {
			cancel()
			return nil, fmt.Errorf("scheduler: расписание %q для %s: %w", job.Spec, job.Name, err)
		}
	}
	return s, nil
}

// Start запускает cron в фоне.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.WithField("jobs", s.Jobs()).Info("scheduler: запущен")
}

// Stop останавливает cron и ждёт завершения текущих прогонов, но не дольше ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("scheduler: остановлен")
	case <-ctx.Done():
		s.log.Warn("scheduler: не дождались завершения задач")
	}
	s.cancel()
}

// RunNow выполняет задачу сразу. Если она уже идёт, возвращает ErrJobRunning.
func (s *Scheduler) RunNow(ctx context.Context, name string) (any, error) {
	job, ok := s.jobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(ctx, job)
}

// Jobs возвращает имена зарегистрированных задач.
func (s *Scheduler) Jobs() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Scheduler) run(ctx context.Context, job *registeredJob) (result any, err error) {
	if !job.running.CompareAndSwap(false, true) {
		metrics.JobRunsTotal.WithLabelValues(job.Name, "skipped").Inc()
		return nil, ErrJobRunning
	}
	defer job.running.Store(false)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	log := s.log.WithField("job", job.Name)
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.WithField("stack", string(debug.Stack())).Errorf("scheduler: паника в задаче: %v", r)
			err = fmt.Errorf("scheduler: паника в задаче %s: %v", job.Name, r)
		}

		metrics.JobDuration.WithLabelValues(job.Name).Observe(time.Since(started).Seconds())
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.JobRunsTotal.WithLabelValues(job.Name, status).Inc()

		entry := log.WithFields(logrus.Fields{"duration": time.Since(started).String(), "result": result})
		if err != nil {
			entry.WithError(err).Error("scheduler: задача завершилась с ошибкой")
			return
		}
		entry.Info("scheduler: задача выполнена")
	}()

	log.Info("scheduler: задача запущена")
	return job.Run(ctx)
}

// cronLogger пропускает сообщения cron через logrus.
type cronLogger struct {
	log *logrus.Entry
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(kvFields(keysAndValues)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithError(err).WithFields(kvFields(keysAndValues)).Error("cron: " + msg)
}

func kvFields(kv []interface{}) logrus.Fields {
	fields := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
