package database

import (
	"context"
	"fmt"
	"time"

	"github.com/sawanruparel/web-presence/access-api/v1/models"
	"gorm.io/gorm"
)

// GormAccessLogRepository implements AccessLogRepository using GORM
type GormAccessLogRepository struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewGormAccessLogRepository creates an access log repository. Every call is bounded by timeout.
func NewGormAccessLogRepository(db *gorm.DB, timeout time.Duration) *GormAccessLogRepository {
	return &GormAccessLogRepository{db: db, timeout: timeout}
}

func (r *GormAccessLogRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

// CreateAccessLog appends a verification attempt
func (r *GormAccessLogRepository) CreateAccessLog(ctx context.Context, log *models.AccessLog) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("failed to create access log: %w", err)
	}
	return nil
}

func (r *GormAccessLogRepository) applyFilters(query *gorm.DB, filters *AccessLogFilters) *gorm.DB {
	if filters == nil {
		return query
	}
	if filters.ContentType != nil && *filters.ContentType != "" {
		query = query.Where("content_type = ?", *filters.ContentType)
	}
	if filters.Slug != nil && *filters.Slug != "" {
		query = query.Where("slug = ?", *filters.Slug)
	}
	if filters.Granted != nil {
		query = query.Where("granted = ?", *filters.Granted)
	}
	return applyTimeRange(query, filters.StartTime, filters.EndTime)
}

func applyTimeRange(query *gorm.DB, start, end *time.Time) *gorm.DB {
	if start != nil {
		query = query.Where("timestamp >= ?", start.UTC())
	}
	if end != nil {
		query = query.Where("timestamp <= ?", end.UTC())
	}
	return query
}

// GetAccessLogs returns a page of access logs, newest first, and the total matching count
func (r *GormAccessLogRepository) GetAccessLogs(ctx context.Context, filters *AccessLogFilters) ([]models.AccessLog, int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if filters == nil {
		filters = &AccessLogFilters{}
	}

	var logs []models.AccessLog
	var total int64

	query := r.applyFilters(r.db.WithContext(ctx).Model(&models.AccessLog{}), filters)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count access logs: %w", err)
	}

	limit := NormalizeLimit(filters.Limit)
	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}

	if err := query.Order("timestamp DESC").Limit(limit).Offset(offset).Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to retrieve access logs: %w", err)
	}
	if logs == nil {
		logs = []models.AccessLog{}
	}
	return logs, total, nil
}

type credentialTypeCount struct {
	CredentialType models.CredentialType
	Count          int64
}

type contentCount struct {
	ContentType string
	Slug        string
	Attempts    int64
	Granted     int64
}

// GetAccessStats aggregates attempts in the optional [start, end] range
func (r *GormAccessLogRepository) GetAccessStats(ctx context.Context, start, end *time.Time, topN int) (*models.AccessStats, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	base := func() *gorm.DB {
		return applyTimeRange(r.db.WithContext(ctx).Model(&models.AccessLog{}), start, end)
	}

	stats := &models.AccessStats{
		Start:            start,
		End:              end,
		ByCredentialType: map[models.CredentialType]int64{},
		TopContent:       []models.ContentAccessCount{},
	}

	if err := base().Count(&stats.TotalAttempts).Error; err != nil {
		return nil, fmt.Errorf("failed to count access logs: %w", err)
	}
	if err := base().Where("granted = ?", true).Count(&stats.Granted).Error; err != nil {
		return nil, fmt.Errorf("failed to count granted access logs: %w", err)
	}
	stats.Denied = stats.TotalAttempts - stats.Granted

	var byType []credentialTypeCount
	if err := base().
		Select("credential_type, COUNT(*) AS count").
		Group("credential_type").
		Scan(&byType).Error; err != nil {
		return nil, fmt.Errorf("failed to group access logs by credential type: %w", err)
	}
	for _, row := range byType {
		stats.ByCredentialType[row.CredentialType] = row.Count
	}

	if topN <= 0 {
		topN = 10
	}
	var top []contentCount
	if err := base().
		Select("content_type, slug, COUNT(*) AS attempts, SUM(CASE WHEN granted THEN 1 ELSE 0 END) AS granted").
		Group("content_type, slug").
		Order("attempts DESC, content_type ASC, slug ASC").
		Limit(topN).
		Scan(&top).Error; err != nil {
		return nil, fmt.Errorf("failed to group access logs by content: %w", err)
	}
	for _, row := range top {
		stats.TopContent = append(stats.TopContent, models.ContentAccessCount{
			Type:     row.ContentType,
			Slug:     row.Slug,
			Attempts: row.Attempts,
			Granted:  row.Granted,
		})
	}

	return stats, nil
}
