package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sawanruparel/web-presence/access-api/v1/models"
)

var (
	// ErrRuleNotFound is returned when no rule exists for a (content type, slug) pair
	ErrRuleNotFound = errors.New("access rule not found")
	// ErrRuleExists is returned when creating a rule for a pair that already has one
	ErrRuleExists = errors.New("access rule already exists")
	// ErrEmailNotFound is returned when removing an email that is not on the allowlist
	ErrEmailNotFound = errors.New("email not found in allowlist")
	// ErrLastAllowlistEmail is returned when a removal would leave an email-list rule with no addresses
	ErrLastAllowlistEmail = errors.New("cannot remove the last allowlist email")
)

// RuleRepository is the rule store. Lookup by (content type, slug) is the only read path
// used by verification; the rest serves administration.
type RuleRepository interface {
	GetRule(ctx context.Context, contentType, slug string) (*models.AccessRule, error)
	GetRuleWithEmails(ctx context.Context, contentType, slug string) (*models.AccessRule, error)
	GetEmailAllowlist(ctx context.Context, ruleID uuid.UUID) (map[string]struct{}, error)
	ListRules(ctx context.Context, filters *RuleFilters) ([]models.AccessRule, error)
	CreateRule(ctx context.Context, rule *models.AccessRule, emails []string) error
	UpdateRule(ctx context.Context, rule *models.AccessRule, emails *[]string) error
	DeleteRule(ctx context.Context, contentType, slug string) error
	AddAllowlistEmail(ctx context.Context, ruleID uuid.UUID, email string) error
	RemoveAllowlistEmail(ctx context.Context, ruleID uuid.UUID, email string) error
}

// RuleFilters narrows ListRules
type RuleFilters struct {
	ContentType *string
	AccessMode  *models.AccessMode
}

// AccessLogRepository stores verification attempts
type AccessLogRepository interface {
	CreateAccessLog(ctx context.Context, log *models.AccessLog) error
	GetAccessLogs(ctx context.Context, filters *AccessLogFilters) ([]models.AccessLog, int64, error)
	GetAccessStats(ctx context.Context, start, end *time.Time, topN int) (*models.AccessStats, error)
}

// AccessLogFilters narrows GetAccessLogs
type AccessLogFilters struct {
	ContentType *string
	Slug        *string
	Granted     *bool
	StartTime   *time.Time
	EndTime     *time.Time
	Limit       int
	Offset      int
}

const (
	DefaultLogLimit = 100
	MaxLogLimit     = 1000
)

// NormalizeLimit applies the default and maximum page size
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLogLimit
	}
	if limit > MaxLogLimit {
		return MaxLogLimit
	}
	return limit
}
