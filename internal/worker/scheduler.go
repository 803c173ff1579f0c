package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/cosmiccode/portal/internal/observability"
)

// InvoiceSweeper marks overdue invoices.
type InvoiceSweeper interface {
	SweepOverdue(ctx context.Context) (int64, error)
}

// Scheduler runs background maintenance jobs.
type Scheduler struct {
	cron    gocron.Scheduler
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(logger *zap.Logger, metrics *observability.Metrics) (*Scheduler, error) {
	cron, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(gocronLogger{logger.Sugar()}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Scheduler{cron: cron, logger: logger, metrics: metrics}, nil
}

// ScheduleInvoiceSweep runs the sweep every interval, starting immediately.
// Runs never overlap.
func (s *Scheduler) ScheduleInvoiceSweep(sweeper InvoiceSweeper, interval time.Duration) error {
	_, err := s.cron.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			n, err := sweeper.SweepOverdue(ctx)
			if err != nil {
				s.logger.Error("invoice sweep failed", zap.Error(err))
				return
			}
			s.metrics.RecordOverdue(n)
		}),
		gocron.WithName("invoice-overdue-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule invoice sweep: %w", err)
	}
	s.logger.Info("job scheduled", zap.String("name", "invoice-overdue-sweep"), zap.Duration("interval", interval))
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Shutdown stops the scheduler and waits for running jobs.
func (s *Scheduler) Shutdown() error {
	if err := s.cron.Shutdown(); err != nil {
		return fmt.Errorf("failed to shutdown scheduler: %w", err)
	}
	return nil
}

type gocronLogger struct {
	s *zap.SugaredLogger
}

func (l gocronLogger) Debug(msg string, args ...any) { l.s.Debugw(msg, args...) }
func (l gocronLogger) Info(msg string, args ...any)  { l.s.Infow(msg, args...) }
func (l gocronLogger) Warn(msg string, args ...any)  { l.s.Warnw(msg, args...) }
func (l gocronLogger) Error(msg string, args ...any) { l.s.Errorw(msg, args...) }
