package services

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tbarroso/cerbero/internal/models"
)

// AuditService dual-writes security events: slog immediately, Postgres
// through a buffered channel drained by a background worker. Submitting an
// event never blocks and never fails the caller; if the buffer is full the
// event is dropped and counted.
type AuditService struct {
	repo    EventRepository
	logger  *slog.Logger
	ch      chan auditEntry
	done    chan struct{}
	wg      sync.WaitGroup
	dropped atomic.Uint64
	closed  atomic.Bool
	once    sync.Once
}

type auditEntry struct {
	identifier string
	eventType  string
	level      string
	ipAddress  string
	userAgent  string
	detail     map[string]string
	occurredAt time.Time
}

func (e auditEntry) toModel() *models.AuditEvent {
	return &models.AuditEvent{
		Identifier: e.identifier,
		EventType:  e.eventType,
		Level:      e.level,
		IPAddress:  e.ipAddress,
		UserAgent:  e.userAgent,
		Detail:     e.detail,
		OccurredAt: e.occurredAt,
	}
}

const auditBufferSize = 256

// NewAuditService creates the service and starts its worker goroutine.
func NewAuditService(repo EventRepository, logger *slog.Logger) *AuditService {
	s := &AuditService{
		repo:   repo,
		logger: logger,
		ch:     make(chan auditEntry, auditBufferSize),
		done:   make(chan struct{}),
	}

	s.wg.Add(1)
	go s.run()

	return s
}

func (s *AuditService) run() {
	defer s.wg.Done()

	for {
		select {
		case entry := <-s.ch:
			s.persist(entry)
		case <-s.done:
			// drain whatever is already buffered, then stop
			for {
				select {
				case entry := <-s.ch:
					s.persist(entry)
				default:
					return
				}
			}
		}
	}
}

func (s *AuditService) persist(entry auditEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	event := entry.toModel()
	if err := s.repo.Insert(ctx, event); err != nil {
		s.logger.Error("failed to persist security event",
			slog.String("event_type", entry.eventType),
			slog.Any("error", err))
	}
}

// Emit records a security event. It logs synchronously and queues the
// database write; a full queue drops the event rather than blocking
// authentication.
func (s *AuditService) Emit(identifier, eventType, level, ipAddress, userAgent string, detail map[string]string) {
	logLevel := slog.LevelInfo
	switch level {
	case "WARN":
		logLevel = slog.LevelWarn
	case "ERROR":
		logLevel = slog.LevelError
	}

	attrs := []slog.Attr{
		slog.String("audit_type", "security"),
		slog.String("event_type", eventType),
		slog.String("identifier", identifier),
	}
	if ipAddress != "" {
		attrs = append(attrs, slog.String("ip_address", ipAddress))
	}
	for key, val := range detail {
		attrs = append(attrs, slog.String(key, val))
	}
	s.logger.LogAttrs(context.Background(), logLevel, "security event", attrs...)

	if s.closed.Load() {
		return
	}

	entry := auditEntry{
		identifier: identifier,
		eventType:  eventType,
		level:      level,
		ipAddress:  ipAddress,
		userAgent:  userAgent,
		detail:     detail,
		occurredAt: time.Now(),
	}

	select {
	case s.ch <- entry:
	case <-s.done:
	default:
		s.dropped.Add(1)
	}
}

// Dropped reports how many events were discarded because the buffer was full.
func (s *AuditService) Dropped() uint64 {
	return s.dropped.Load()
}

// Close drains the buffer and stops the worker.
func (s *AuditService) Close() {
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.done)
		s.wg.Wait()
	})
}
