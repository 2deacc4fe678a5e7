package services

import (
	"context"
	"math"
	"time"

	"github.com/sawanruparel/web-presence/access-api/v1/database"
	"github.com/sawanruparel/web-presence/access-api/v1/models"
)

// LogQuery selects a page of access logs
type LogQuery struct {
	ContentType string
	Slug        string
	// Granted filters by outcome when set
	Granted *bool
	Start   *time.Time
	End     *time.Time
	Page    int
	Limit   int
}

// LogService reads the access log for operators
type LogService struct {
	repo database.AccessLogRepository
}

// NewLogService creates a new log service
func NewLogService(repo database.AccessLogRepository) *LogService {
	return &LogService{repo: repo}
}

// ListLogs returns a page of access logs, newest first
func (s *LogService) ListLogs(ctx context.Context, q LogQuery) (*models.AccessLogsResponse, error) {
	if q.Start != nil && q.End != nil && q.End.Before(*q.Start) {
		return nil, validationError("end must not be before start")
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := database.NormalizeLimit(q.Limit)
	if page-1 > math.MaxInt/limit {
		return nil, validationError("page %d is out of range", page)
	}

	filters := &database.AccessLogFilters{
		Granted:   q.Granted,
		StartTime: q.Start,
		EndTime:   q.End,
		Limit:     limit,
		Offset:    (page - 1) * limit,
	}
	if q.ContentType != "" {
		filters.ContentType = &q.ContentType
	}
	if q.Slug != "" {
		filters.Slug = &q.Slug
	}

	logs, total, err := s.repo.GetAccessLogs(ctx, filters)
	if err != nil {
		return nil, storeError(err)
	}

	return &models.AccessLogsResponse{
		Logs:       logs,
		Pagination: models.NewPagination(page, limit, total),
	}, nil
}

// Stats summarizes attempts in the optional [start, end] range
func (s *LogService) Stats(ctx context.Context, start, end *time.Time) (*models.AccessStats, error) {
	if start != nil && end != nil && end.Before(*start) {
		return nil, validationError("end must not be before start")
	}
	stats, err := s.repo.GetAccessStats(ctx, start, end, 10)
	if err != nil {
		return nil, storeError(err)
	}
	return stats, nil
}
