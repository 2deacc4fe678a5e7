package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sawanruparel/web-presence/access-api/v1/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRuleRepository implements RuleRepository using GORM (PostgreSQL or SQLite)
type GormRuleRepository struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewGormRuleRepository creates a rule repository. Every call is bounded by timeout.
func NewGormRuleRepository(db *gorm.DB, timeout time.Duration) *GormRuleRepository {
	return &GormRuleRepository{db: db, timeout: timeout}
}

func (r *GormRuleRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

// GetRule returns the rule for (contentType, slug) or ErrRuleNotFound
func (r *GormRuleRepository) GetRule(ctx context.Context, contentType, slug string) (*models.AccessRule, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var rule models.AccessRule
	err := r.db.WithContext(ctx).
		Where("content_type = ? AND slug = ?", contentType, slug).
		First(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("failed to get access rule: %w", err)
	}
	return &rule, nil
}

// GetRuleWithEmails returns the rule with its allowlist loaded
func (r *GormRuleRepository) GetRuleWithEmails(ctx context.Context, contentType, slug string) (*models.AccessRule, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var rule models.AccessRule
	err := r.db.WithContext(ctx).
		Preload("AllowedEmails", func(db *gorm.DB) *gorm.DB {
			return db.Order("email ASC")
		}).
		Where("content_type = ? AND slug = ?", contentType, slug).
		First(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("failed to get access rule: %w", err)
	}
	return &rule, nil
}

// GetEmailAllowlist returns the normalized emails allowed by a rule
func (r *GormRuleRepository) GetEmailAllowlist(ctx context.Context, ruleID uuid.UUID) (map[string]struct{}, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var emails []string
	err := r.db.WithContext(ctx).
		Model(&models.EmailAllowlistEntry{}).
		Where("rule_id = ?", ruleID).
		Pluck("email", &emails).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get email allowlist: %w", err)
	}

	set := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		set[e] = struct{}{}
	}
	return set, nil
}

// ListRules returns rules ordered by content type and slug, with allowlists loaded
func (r *GormRuleRepository) ListRules(ctx context.Context, filters *RuleFilters) ([]models.AccessRule, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := r.db.WithContext(ctx).Preload("AllowedEmails", func(db *gorm.DB) *gorm.DB {
		return db.Order("email ASC")
	})
	if filters != nil {
		if filters.ContentType != nil && *filters.ContentType != "" {
			query = query.Where("content_type = ?", *filters.ContentType)
		}
		if filters.AccessMode != nil && *filters.AccessMode != "" {
			query = query.Where("access_mode = ?", *filters.AccessMode)
		}
	}

	var rules []models.AccessRule
	if err := query.Order("content_type ASC, slug ASC").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to list access rules: %w", err)
	}
	if rules == nil {
		rules = []models.AccessRule{}
	}
	return rules, nil
}

// CreateRule inserts a rule and its allowlist in one transaction
func (r *GormRuleRepository) CreateRule(ctx context.Context, rule *models.AccessRule, emails []string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.AccessRule{}).
			Where("content_type = ? AND slug = ?", rule.ContentType, rule.Slug).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrRuleExists
		}

		if err := tx.Omit("AllowedEmails").Create(rule).Error; err != nil {
			return err
		}
		entries, err := insertEmails(tx, rule.ID, emails)
		if err != nil {
			return err
		}
		rule.AllowedEmails = entries
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrRuleExists) || errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrRuleExists
		}
		return fmt.Errorf("failed to create access rule: %w", err)
	}
	return nil
}

// UpdateRule saves the rule's mutable fields. When emails is non-nil the allowlist is replaced.
func (r *GormRuleRepository) UpdateRule(ctx context.Context, rule *models.AccessRule, emails *[]string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.AccessRule{}).
			Where("id = ?", rule.ID).
			Updates(map[string]interface{}{
				"access_mode":   rule.AccessMode,
				"description":   rule.Description,
				"password_hash": rule.PasswordHash,
				"updated_at":    time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRuleNotFound
		}

		if emails == nil {
			return nil
		}
		if err := tx.Where("rule_id = ?", rule.ID).Delete(&models.EmailAllowlistEntry{}).Error; err != nil {
			return err
		}
		entries, err := insertEmails(tx, rule.ID, *emails)
		if err != nil {
			return err
		}
		rule.AllowedEmails = entries
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrRuleNotFound) {
			return ErrRuleNotFound
		}
		return fmt.Errorf("failed to update access rule: %w", err)
	}
	return nil
}

// DeleteRule removes a rule and its allowlist. Access log rows are kept.
func (r *GormRuleRepository) DeleteRule(ctx context.Context, contentType, slug string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rule models.AccessRule
		if err := tx.Where("content_type = ? AND slug = ?", contentType, slug).First(&rule).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRuleNotFound
			}
			return err
		}
		if err := tx.Where("rule_id = ?", rule.ID).Delete(&models.EmailAllowlistEntry{}).Error; err != nil {
			return err
		}
		return tx.Delete(&rule).Error
	})
	if err != nil {
		if errors.Is(err, ErrRuleNotFound) {
			return ErrRuleNotFound
		}
		return fmt.Errorf("failed to delete access rule: %w", err)
	}
	slog.Info("Deleted access rule", "type", contentType, "slug", slug)
	return nil
}

// AddAllowlistEmail adds a normalized email to a rule's allowlist. Adding an existing email is a no-op.
func (r *GormRuleRepository) AddAllowlistEmail(ctx context.Context, ruleID uuid.UUID, email string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	entry := models.EmailAllowlistEntry{RuleID: ruleID, Email: email}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "rule_id"}, {Name: "email"}},
			DoNothing: true,
		}).
		Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to add allowlist email: %w", err)
	}
	return nil
}

// RemoveAllowlistEmail removes an email from a rule's allowlist. The rule row is
// locked for the duration so an email-list rule never ends up with an empty allowlist.
func (r *GormRuleRepository) RemoveAllowlistEmail(ctx context.Context, ruleID uuid.UUID, email string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rule models.AccessRule
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", ruleID).
			First(&rule).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRuleNotFound
			}
			return err
		}

		res := tx.Where("rule_id = ? AND email = ?", ruleID, models.NormalizeEmail(email)).
			Delete(&models.EmailAllowlistEntry{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrEmailNotFound
		}

		if rule.AccessMode != models.AccessModeEmailList {
			return nil
		}
		var remaining int64
		if err := tx.Model(&models.EmailAllowlistEntry{}).Where("rule_id = ?", ruleID).Count(&remaining).Error; err != nil {
			return err
		}
		if remaining == 0 {
			return ErrLastAllowlistEmail
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrRuleNotFound) || errors.Is(err, ErrEmailNotFound) || errors.Is(err, ErrLastAllowlistEmail) {
			return err
		}
		return fmt.Errorf("failed to remove allowlist email: %w", err)
	}
	return nil
}

func insertEmails(tx *gorm.DB, ruleID uuid.UUID, emails []string) ([]models.EmailAllowlistEntry, error) {
	normalized := models.NormalizeEmails(emails)
	if len(normalized) == 0 {
		return []models.EmailAllowlistEntry{}, nil
	}
	entries := make([]models.EmailAllowlistEntry, 0, len(normalized))
	for _, e := range normalized {
		entries = append(entries, models.EmailAllowlistEntry{RuleID: ruleID, Email: e})
	}
	if err := tx.Create(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
