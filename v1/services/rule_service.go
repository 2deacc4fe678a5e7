package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/sawanruparel/web-presence/access-api/internal/config"
	"github.com/sawanruparel/web-presence/access-api/v1/auth"
	"github.com/sawanruparel/web-presence/access-api/v1/database"
	"github.com/sawanruparel/web-presence/access-api/v1/models"
)

// RuleService handles administrative changes to access rules
type RuleService struct {
	repo         database.RuleRepository
	contentTypes *config.ContentTypes
	bcryptCost   int
}

// NewRuleService creates a new rule service
func NewRuleService(repo database.RuleRepository, contentTypes *config.ContentTypes, bcryptCost int) *RuleService {
	return &RuleService{repo: repo, contentTypes: contentTypes, bcryptCost: bcryptCost}
}

func (s *RuleService) validateKey(contentType, slug string) error {
	if strings.TrimSpace(contentType) == "" || strings.TrimSpace(slug) == "" {
		return validationError("missing required fields: type and slug are required")
	}
	if !s.contentTypes.IsValid(contentType) {
		return validationError("unknown content type %q", contentType)
	}
	return nil
}

func validateEmails(emails []string) ([]string, error) {
	for _, e := range emails {
		if !models.IsValidEmail(e) {
			return nil, validationError("invalid email in email list: %q", strings.TrimSpace(e))
		}
	}
	normalized := models.NormalizeEmails(emails)
	if len(normalized) == 0 {
		return nil, validationError("email list must not be empty for email-list mode")
	}
	return normalized, nil
}

func (s *RuleService) hash(password string) (*string, error) {
	if password == "" {
		return nil, validationError("password is required for password mode")
	}
	h, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, validationError("%v", err)
	}
	return &h, nil
}

// CreateRule validates and stores a new rule
func (s *RuleService) CreateRule(ctx context.Context, req models.CreateAccessRuleRequest) (*models.AccessRuleResponse, error) {
	if req.Type == "" || req.Slug == "" || req.AccessMode == "" {
		return nil, validationError("missing required fields: type, slug and accessMode are required")
	}
	if err := s.validateKey(req.Type, req.Slug); err != nil {
		return nil, err
	}
	if !req.AccessMode.IsValid() {
		return nil, validationError("invalid access mode %q (must be open, password or email-list)", req.AccessMode)
	}

	rule := &models.AccessRule{
		ContentType: req.Type,
		Slug:        req.Slug,
		AccessMode:  req.AccessMode,
		Description: req.Description,
	}
	var emails []string

	switch req.AccessMode {
	case models.AccessModeOpen:
		if req.Password != nil || len(req.AllowedEmails) > 0 {
			return nil, validationError("open rules take no password or email list")
		}
	case models.AccessModePassword:
		if len(req.AllowedEmails) > 0 {
			return nil, validationError("password rules take no email list")
		}
		hash, err := s.hash(valueOrEmpty(req.Password))
		if err != nil {
			return nil, err
		}
		rule.PasswordHash = hash
	case models.AccessModeEmailList:
		if req.Password != nil {
			return nil, validationError("email-list rules take no password")
		}
		normalized, err := validateEmails(req.AllowedEmails)
		if err != nil {
			return nil, err
		}
		emails = normalized
	}

	if err := rule.Validate(len(emails)); err != nil {
		return nil, validationError("%v", err)
	}
	if err := s.repo.CreateRule(ctx, rule, emails); err != nil {
		return nil, storeError(err)
	}

	slog.Info("Created access rule", "type", rule.ContentType, "slug", rule.Slug, "mode", rule.AccessMode)
	resp := models.ToAccessRuleResponse(*rule)
	return &resp, nil
}

// GetRule returns a rule with its allowlist
func (s *RuleService) GetRule(ctx context.Context, contentType, slug string) (*models.AccessRuleResponse, error) {
	rule, err := s.repo.GetRuleWithEmails(ctx, contentType, slug)
	if err != nil {
		return nil, storeError(err)
	}
	resp := models.ToAccessRuleResponse(*rule)
	return &resp, nil
}

// ListRules returns rules filtered by optional content type and access mode
func (s *RuleService) ListRules(ctx context.Context, contentType, mode string) (*models.ListAccessRulesResponse, error) {
	filters := &database.RuleFilters{}
	if contentType != "" {
		filters.ContentType = &contentType
	}
	if mode != "" {
		m := models.AccessMode(mode)
		if !m.IsValid() {
			return nil, validationError("invalid access mode %q", mode)
		}
		filters.AccessMode = &m
	}

	rules, err := s.repo.ListRules(ctx, filters)
	if err != nil {
		return nil, storeError(err)
	}

	resp := &models.ListAccessRulesResponse{Rules: make([]models.AccessRuleResponse, 0, len(rules))}
	for _, r := range rules {
		resp.Rules = append(resp.Rules, models.ToAccessRuleResponse(r))
	}
	resp.Count = len(resp.Rules)
	return resp, nil
}

// UpdateRule applies a partial update. Fields that stop being meaningful for the
// resulting mode are cleared.
func (s *RuleService) UpdateRule(ctx context.Context, contentType, slug string, req models.UpdateAccessRuleRequest) (*models.AccessRuleResponse, error) {
	rule, err := s.repo.GetRuleWithEmails(ctx, contentType, slug)
	if err != nil {
		return nil, storeError(err)
	}

	previousMode := rule.AccessMode
	if req.AccessMode != nil {
		if !req.AccessMode.IsValid() {
			return nil, validationError("invalid access mode %q (must be open, password or email-list)", *req.AccessMode)
		}
		rule.AccessMode = *req.AccessMode
	}
	if req.Description != nil {
		rule.Description = *req.Description
	}

	var emails *[]string
	emailCount := len(rule.AllowedEmails)

	switch rule.AccessMode {
	case models.AccessModeOpen, models.AccessModePassword:
		if req.AllowedEmails != nil && len(*req.AllowedEmails) > 0 {
			return nil, validationError("%s rules take no email list", rule.AccessMode)
		}
		if emailCount > 0 {
			emails = &[]string{}
			emailCount = 0
		}
	case models.AccessModeEmailList:
		if req.AllowedEmails != nil {
			normalized, err := validateEmails(*req.AllowedEmails)
			if err != nil {
				return nil, err
			}
			emails = &normalized
			emailCount = len(normalized)
		} else if previousMode != models.AccessModeEmailList {
			return nil, validationError("email list must not be empty for email-list mode")
		}
	}

	switch rule.AccessMode {
	case models.AccessModePassword:
		if req.Password != nil {
			hash, err := s.hash(*req.Password)
			if err != nil {
				return nil, err
			}
			rule.PasswordHash = hash
		} else if previousMode != models.AccessModePassword {
			return nil, validationError("password is required for password mode")
		}
	default:
		if req.Password != nil {
			return nil, validationError("%s rules take no password", rule.AccessMode)
		}
		rule.PasswordHash = nil
	}

	if err := rule.Validate(emailCount); err != nil {
		return nil, validationError("%v", err)
	}
	if err := s.repo.UpdateRule(ctx, rule, emails); err != nil {
		return nil, storeError(err)
	}

	slog.Info("Updated access rule", "type", contentType, "slug", slug, "mode", rule.AccessMode)
	return s.GetRule(ctx, contentType, slug)
}

// DeleteRule removes a rule and its allowlist
func (s *RuleService) DeleteRule(ctx context.Context, contentType, slug string) error {
	return storeError(s.repo.DeleteRule(ctx, contentType, slug))
}

// AddEmail adds an address to an email-list rule
func (s *RuleService) AddEmail(ctx context.Context, contentType, slug, email string) (*models.AccessRuleResponse, error) {
	if !models.IsValidEmail(email) {
		return nil, validationError("invalid email address")
	}
	rule, err := s.repo.GetRule(ctx, contentType, slug)
	if err != nil {
		return nil, storeError(err)
	}
	if rule.AccessMode != models.AccessModeEmailList {
		return nil, validationError("emails can only be added to email-list rules")
	}
	if err := s.repo.AddAllowlistEmail(ctx, rule.ID, models.NormalizeEmail(email)); err != nil {
		return nil, storeError(err)
	}
	return s.GetRule(ctx, contentType, slug)
}

// RemoveEmail removes an address from an email-list rule. The last address cannot be removed.
func (s *RuleService) RemoveEmail(ctx context.Context, contentType, slug, email string) (*models.AccessRuleResponse, error) {
	rule, err := s.repo.GetRule(ctx, contentType, slug)
	if err != nil {
		return nil, storeError(err)
	}

	err = s.repo.RemoveAllowlistEmail(ctx, rule.ID, models.NormalizeEmail(email))
	if errors.Is(err, database.ErrLastAllowlistEmail) {
		return nil, validationError("email list must not be empty: cannot remove the last email")
	}
	if err != nil {
		return nil, storeError(err)
	}
	return s.GetRule(ctx, contentType, slug)
}

func valueOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
