package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sawanruparel/web-presence/access-api/internal/monitoring"
	"github.com/sawanruparel/web-presence/access-api/v1/auth"
	"github.com/sawanruparel/web-presence/access-api/v1/models"
)

// RuleReader is the read path of the rule store used by verification
type RuleReader interface {
	GetRule(ctx context.Context, contentType, slug string) (*models.AccessRule, error)
	AllowlistSource
}

// RequestMeta is optional requester information attached to access logs
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// VerifyResult is the outcome of VerifyAndIssue. Exactly one of Token or Reason is set.
type VerifyResult struct {
	Granted    bool
	AccessMode models.AccessMode
	Token      string
	Claims     *auth.ContentClaims
	ExpiresAt  time.Time
	Reason     models.DenialReason
	// Message is safe to show to the requester; it never says why an email was refused
	Message string
}

// AccessService is the entry point for access discovery, verification and token validation
type AccessService struct {
	rules     RuleReader
	verifier  *CredentialVerifier
	issuer    *auth.TokenIssuer
	validator *auth.TokenValidator
	recorder  AccessRecorder
}

// NewAccessService composes the rule store, verifier, token issuer/validator and access logger
func NewAccessService(rules RuleReader, issuer *auth.TokenIssuer, validator *auth.TokenValidator, recorder AccessRecorder) *AccessService {
	return &AccessService{
		rules:     rules,
		verifier:  NewCredentialVerifier(rules),
		issuer:    issuer,
		validator: validator,
		recorder:  recorder,
	}
}

// CheckAccess reports what a content item requires. It has no side effects.
func (s *AccessService) CheckAccess(ctx context.Context, contentType, slug string) (*models.AccessRequirementsResponse, error) {
	rule, err := s.rules.GetRule(ctx, contentType, slug)
	if err != nil {
		return nil, storeError(err)
	}
	return &models.AccessRequirementsResponse{
		AccessMode:       rule.AccessMode,
		RequiresPassword: rule.AccessMode == models.AccessModePassword,
		RequiresEmail:    rule.AccessMode == models.AccessModeEmailList,
	}, nil
}

// VerifyAndIssue checks cred against the rule for (contentType, slug), logs the
// attempt and issues a token when it is accepted. A missing rule returns
// ErrPolicyNotFound without logging; store failures return ErrStoreUnavailable.
func (s *AccessService) VerifyAndIssue(ctx context.Context, contentType, slug string, cred models.Credential, meta RequestMeta) (*VerifyResult, error) {
	rule, err := s.rules.GetRule(ctx, contentType, slug)
	if err != nil {
		return nil, storeError(err)
	}

	verdict, err := s.verifier.Verify(ctx, rule, cred)
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, newAccessLog(rule, verdict, meta))

	if !verdict.Accepted {
		monitoring.RecordBusinessEvent("access_verification", "denied_"+string(verdict.Reason))
		slog.Info("Access denied",
			"type", contentType,
			"slug", slug,
			"mode", rule.AccessMode,
			"reason", verdict.Reason)
		return &VerifyResult{
			AccessMode: rule.AccessMode,
			Reason:     verdict.Reason,
			Message:    denialMessage(rule.AccessMode, verdict.Reason),
		}, nil
	}

	token, claims, err := s.issuer.Issue(rule.ContentType, rule.Slug, verdict.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	monitoring.RecordBusinessEvent("access_verification", "granted")

	return &VerifyResult{
		Granted:    true,
		AccessMode: rule.AccessMode,
		Token:      token,
		Claims:     claims,
		ExpiresAt:  claims.ExpiresAt.Time,
	}, nil
}

// ValidateContentToken checks a bearer token presented for (contentType, slug)
func (s *AccessService) ValidateContentToken(token, contentType, slug string) (*auth.ContentClaims, error) {
	claims, err := s.validator.Validate(token, contentType, slug)
	if err != nil {
		monitoring.RecordBusinessEvent("token_validation", "rejected")
		return nil, err
	}
	return claims, nil
}

func newAccessLog(rule *models.AccessRule, verdict Verdict, meta RequestMeta) *models.AccessLog {
	ruleID := rule.ID
	entry := &models.AccessLog{
		RuleID:         &ruleID,
		ContentType:    rule.ContentType,
		Slug:           rule.Slug,
		Granted:        verdict.Accepted,
		CredentialType: verdict.CredentialType,
		Timestamp:      time.Now().UTC(),
	}
	if verdict.CredentialType == models.CredentialTypeEmail && verdict.Email != "" {
		email := verdict.Email
		entry.CredentialValue = &email
	}
	if !verdict.Accepted {
		reason := verdict.Reason
		entry.DenialReason = &reason
	}
	if meta.IPAddress != "" {
		ip := meta.IPAddress
		entry.IPAddress = &ip
	}
	if meta.UserAgent != "" {
		ua := meta.UserAgent
		entry.UserAgent = &ua
	}
	return entry
}

func denialMessage(mode models.AccessMode, reason models.DenialReason) string {
	switch mode {
	case models.AccessModePassword:
		if reason == models.DenialInvalidCredentialFormat {
			return "password required"
		}
		return "incorrect password"
	case models.AccessModeEmailList:
		if reason == models.DenialInvalidCredentialFormat {
			return "valid email address required"
		}
		return "not authorized"
	default:
		return "access denied"
	}
}
