package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cosmiccode/portal/internal/repository"
)

// InvoiceService maintains invoice state.
type InvoiceService struct {
	invoices repository.InvoiceRepository
	logger   *zap.Logger
	now      func() time.Time
}

// NewInvoiceService builds the service.
func NewInvoiceService(invoices repository.InvoiceRepository, logger *zap.Logger) *InvoiceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceService{invoices: invoices, logger: logger, now: time.Now}
}

// SweepOverdue marks pending invoices past their due date as overdue.
func (s *InvoiceService) SweepOverdue(ctx context.Context) (int64, error) {
	n, err := s.invoices.MarkOverdue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("invoices marked overdue", zap.Int64("count", n))
	}
	return n, nil
}
