package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// AuditMetrics is satisfied by the prometheus collector.
type AuditMetrics interface {
	AuditWritten()
	AuditDropped()
}

type noopAuditMetrics struct{}

func (noopAuditMetrics) AuditWritten() {}
func (noopAuditMetrics) AuditDropped() {}

type AuditService struct {
	repo     AuditRepository
	metrics  AuditMetrics
	log      *zap.Logger
	entries  chan *domain.AuditLog
	done     chan struct{}
	closeOne sync.Once
}

const auditBufferSize = 10_000

func NewAuditService(repo AuditRepository, m AuditMetrics, log *zap.Logger) *AuditService {
	return newAuditService(repo, m, log, auditBufferSize)
}

func newAuditService(repo AuditRepository, m AuditMetrics, log *zap.Logger, size int) *AuditService {
	if m == nil {
		m = noopAuditMetrics{}
	}
	svc := &AuditService{
		repo:    repo,
		metrics: m,
		log:     log,
		entries: make(chan *domain.AuditLog, size),
		done:    make(chan struct{}),
	}
	go svc.worker()
	return svc
}

// LogAsync enqueues an audit entry for async persistence.
// If the buffer is full, the entry is dropped and a warning is emitted.
// A nil service discards entries.
func (s *AuditService) LogAsync(_ context.Context, entry AuditEntry) {
	if s == nil {
		return
	}
	al := &domain.AuditLog{
		UserID:       entry.Identity.UserID,
		UserRole:     entry.Identity.Role,
		IPAddress:    entry.Identity.IP,
		RequestID:    entry.Identity.RequestID,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
	}
	if len(entry.Changes) > 0 {
		if raw, err := json.Marshal(entry.Changes); err == nil {
			al.Changes = datatypes.JSON(raw)
		}
	}

	select {
	case s.entries <- al:
	default:
		s.metrics.AuditDropped()
		s.log.Warn("audit log buffer full, dropping entry",
			zap.String("action", string(entry.Action)),
			zap.String("resource", entry.ResourceType),
		)
	}
}

func (s *AuditService) Shutdown() {
	s.closeOne.Do(func() { close(s.entries) })
	select {
	case <-s.done:
	case <-time.After(10 * time.Second):
		s.log.Warn("audit service shutdown timed out; some entries may be lost")
	}
}

func (s *AuditService) worker() {
	defer close(s.done)
	for entry := range s.entries {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.repo.Create(ctx, entry); err != nil {
			s.log.Error("failed to persist audit log", zap.Error(err))
		} else {
			s.metrics.AuditWritten()
		}
		cancel()
	}
}
