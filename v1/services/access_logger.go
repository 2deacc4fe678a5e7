package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sawanruparel/web-presence/access-api/internal/monitoring"
	"github.com/sawanruparel/web-presence/access-api/v1/database"
	"github.com/sawanruparel/web-presence/access-api/v1/models"
)

// AccessLogPublisher mirrors access log entries to a secondary sink
type AccessLogPublisher interface {
	PublishAccessLog(ctx context.Context, entry *models.AccessLog) error
}

// AccessRecorder records verification attempts
type AccessRecorder interface {
	Record(ctx context.Context, entry *models.AccessLog)
}

// AccessLogger writes verification attempts without blocking the caller.
// Writes are detached from the request context so a client disconnect does not
// drop an audit row.
type AccessLogger struct {
	repo      database.AccessLogRepository
	publisher AccessLogPublisher
	errs      chan error
	wg        sync.WaitGroup
}

// NewAccessLogger creates a logger. publisher may be nil.
func NewAccessLogger(repo database.AccessLogRepository, publisher AccessLogPublisher) *AccessLogger {
	return &AccessLogger{
		repo:      repo,
		publisher: publisher,
		errs:      make(chan error, 64),
	}
}

// Errors reports failed writes. When nobody drains the channel, overflowing
// errors are logged instead.
func (l *AccessLogger) Errors() <-chan error {
	return l.errs
}

// Record persists entry in the background. Any password value is stripped first.
func (l *AccessLogger) Record(ctx context.Context, entry *models.AccessLog) {
	entry.Redact()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	ctx = context.WithoutCancel(ctx)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.write(ctx, entry)
	}()
}

func (l *AccessLogger) write(ctx context.Context, entry *models.AccessLog) {
	start := time.Now()
	err := l.repo.CreateAccessLog(ctx, entry)
	monitoring.RecordExternalCall("database", "insert_access_log", time.Since(start), err)
	if err != nil {
		monitoring.RecordBusinessEvent("access_log_write", "failure")
		l.report(fmt.Errorf("failed to write access log for %s/%s (granted=%t): %w",
			entry.ContentType, entry.Slug, entry.Granted, err))
		return
	}

	if l.publisher == nil {
		return
	}
	start = time.Now()
	err = l.publisher.PublishAccessLog(ctx, entry)
	monitoring.RecordExternalCall("redis", "xadd_access_log", time.Since(start), err)
	if err != nil {
		slog.Warn("Failed to publish access log to stream", "error", err, "id", entry.ID)
	}
}

// report hands err to the Errors channel, logging it only when the channel is full
func (l *AccessLogger) report(err error) {
	select {
	case l.errs <- err:
	default:
		slog.Error("Access log error channel full", "error", err)
	}
}

// Close waits for in-flight writes or until ctx is done
func (l *AccessLogger) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
