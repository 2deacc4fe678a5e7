package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sawanruparel/web-presence/access-api/v1/database"
	"github.com/sawanruparel/web-presence/access-api/v1/models"
)

// MockAccessLogRepository is an in-memory database.AccessLogRepository.
// It is safe for concurrent use by the background access logger.
type MockAccessLogRepository struct {
	mu   sync.Mutex
	logs []models.AccessLog
	// Err, when set, is returned by CreateAccessLog
	Err error
	// Delay is applied before each write; the write is abandoned if ctx ends first
	Delay time.Duration
}

// NewMockAccessLogRepository creates a new MockAccessLogRepository instance
func NewMockAccessLogRepository() *MockAccessLogRepository {
	return &MockAccessLogRepository{}
}

// CreateAccessLog stores a copy of log, simulating the BeforeCreate hook
func (m *MockAccessLogRepository) CreateAccessLog(ctx context.Context, log *models.AccessLog) error {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.Err != nil {
		return m.Err
	}
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	log.Redact()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, *log)
	return nil
}

// GetAccessLogs returns every stored log
func (m *MockAccessLogRepository) GetAccessLogs(ctx context.Context, filters *database.AccessLogFilters) ([]models.AccessLog, int64, error) {
	logs := m.GetLogs()
	return logs, int64(len(logs)), nil
}

// GetAccessStats returns totals over every stored log
func (m *MockAccessLogRepository) GetAccessStats(ctx context.Context, start, end *time.Time, topN int) (*models.AccessStats, error) {
	stats := &models.AccessStats{ByCredentialType: map[models.CredentialType]int64{}}
	for _, l := range m.GetLogs() {
		stats.TotalAttempts++
		if l.Granted {
			stats.Granted++
		} else {
			stats.Denied++
		}
		stats.ByCredentialType[l.CredentialType]++
	}
	return stats, nil
}

// GetLogs returns a snapshot of the stored logs (useful for test assertions)
func (m *MockAccessLogRepository) GetLogs() []models.AccessLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AccessLog(nil), m.logs...)
}

// ClearLogs clears all stored logs
func (m *MockAccessLogRepository) ClearLogs() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = nil
}

// RecordingAccessLogger captures access log entries synchronously
type RecordingAccessLogger struct {
	mu      sync.Mutex
	entries []models.AccessLog
}

// Record stores a copy of entry
func (r *RecordingAccessLogger) Record(ctx context.Context, entry *models.AccessLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
}

// Entries returns a snapshot of the recorded entries
func (r *RecordingAccessLogger) Entries() []models.AccessLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.AccessLog(nil), r.entries...)
}

// FailingRuleRepository returns Err from every call, simulating an unreachable store
type FailingRuleRepository struct {
	Err error
}

func (f *FailingRuleRepository) GetRule(ctx context.Context, contentType, slug string) (*models.AccessRule, error) {
	return nil, f.Err
}

func (f *FailingRuleRepository) GetRuleWithEmails(ctx context.Context, contentType, slug string) (*models.AccessRule, error) {
	return nil, f.Err
}

func (f *FailingRuleRepository) GetEmailAllowlist(ctx context.Context, ruleID uuid.UUID) (map[string]struct{}, error) {
	return nil, f.Err
}

func (f *FailingRuleRepository) ListRules(ctx context.Context, filters *database.RuleFilters) ([]models.AccessRule, error) {
	return nil, f.Err
}

func (f *FailingRuleRepository) CreateRule(ctx context.Context, rule *models.AccessRule, emails []string) error {
	return f.Err
}

func (f *FailingRuleRepository) UpdateRule(ctx context.Context, rule *models.AccessRule, emails *[]string) error {
	return f.Err
}

func (f *FailingRuleRepository) DeleteRule(ctx context.Context, contentType, slug string) error {
	return f.Err
}

func (f *FailingRuleRepository) AddAllowlistEmail(ctx context.Context, ruleID uuid.UUID, email string) error {
	return f.Err
}

func (f *FailingRuleRepository) RemoveAllowlistEmail(ctx context.Context, ruleID uuid.UUID, email string) error {
	return f.Err
}
