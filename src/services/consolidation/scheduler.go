package consolidation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"lineageconsolidator/src/domain"
)

const DefaultSchedule = "@every 1m"

// Sweeper é o que o agendador dispara a cada tick.
type Sweeper interface {
	RunSweep(ctx context.Context) (domain.SweepReport, error)
}

// Scheduler dispara RunSweep periodicamente. Um tick que chega com o sweep anterior ainda em
// execução é descartado.
type Scheduler struct {
	logger   *slog.Logger
	sweeper  Sweeper
	schedule string
	cron     *cron.Cron
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewScheduler(logger *slog.Logger, sweeper Sweeper, schedule string) *Scheduler {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	cronLogger := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		logger:   logger,
		sweeper:  sweeper,
		schedule: schedule,
		cron:     cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger))),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.tick); err != nil {
		return fmt.Errorf("Scheduler.Start - invalid schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.logger.Info("Consolidation scheduler started", "schedule", s.schedule)
	return nil
}

// Stop cancela o sweep em andamento e espera ele terminar ou ctx expirar.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()

	select {
	case <-done.Done():
		s.logger.Info("Consolidation scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) tick() {
	_, err := s.sweeper.RunSweep(s.ctx)
	if errors.Is(err, domain.ErrSweepInProgress) {
		s.logger.Warn("Skipping consolidation tick, sweep already running")
		return
	}
	if err != nil {
		s.logger.Error("Consolidation sweep failed", "error", err)
	}
}

// cronLogger adapta o slog para a interface de log do cron.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
