package services

import (
	"time"

	"BSA-TMPL/internal/logger"
	"BSA-TMPL/internal/models"

	"gorm.io/gorm"
)

// ReceiptRetentionService prunes download receipts older than maxAge on a timer.
// Receipts are a pure audit trail, so pruning them never affects instance state.
type ReceiptRetentionService struct {
	db       *gorm.DB
	log      *logger.Logger
	maxAge   time.Duration
	interval time.Duration
	ticker   *time.Ticker
	done     chan bool
}

func NewReceiptRetentionService(db *gorm.DB, baseLog *logger.Logger, maxAge, interval time.Duration) *ReceiptRetentionService {
	return &ReceiptRetentionService{
		db:       db,
		log:      baseLog.With("service", "ReceiptRetentionService"),
		maxAge:   maxAge,
		interval: interval,
		done:     make(chan bool),
	}
}

func (s *ReceiptRetentionService) Start() {
	s.ticker = time.NewTicker(s.interval)
	go func() {
		for {
			select {
			case <-s.done:
				return
			case <-s.ticker.C:
				s.PruneOnce()
			}
		}
	}()
	s.log.Info("receipt retention service started", "max_age", s.maxAge)
}

func (s *ReceiptRetentionService) Stop() {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	s.done <- true
	s.log.Info("receipt retention service stopped")
}

// PruneOnce deletes receipts past the retention window.
func (s *ReceiptRetentionService) PruneOnce() {
	cutoff := time.Now().Add(-s.maxAge)
	result := s.db.Where("downloaded_at < ?", cutoff).Delete(&models.DownloadReceipt{})
	if result.Error != nil {
		s.log.Error("failed to prune download receipts", "error", result.Error)
		return
	}
	if result.RowsAffected > 0 {
		s.log.Info("pruned download receipts", "deleted", result.RowsAffected, "cutoff", cutoff)
	}
}
