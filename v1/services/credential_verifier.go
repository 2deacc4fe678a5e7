package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/sawanruparel/web-presence/access-api/v1/auth"
	"github.com/sawanruparel/web-presence/access-api/v1/models"
)

// AllowlistSource provides the normalized allowlist of an email-list rule
type AllowlistSource interface {
	GetEmailAllowlist(ctx context.Context, ruleID uuid.UUID) (map[string]struct{}, error)
}

// Verdict is the outcome of checking a credential against a rule
type Verdict struct {
	Accepted bool
	Reason   models.DenialReason
	// CredentialType is what gets logged for the attempt
	CredentialType models.CredentialType
	// Email is the normalized submitted email, set only when it was well formed
	Email string
}

func accepted(ct models.CredentialType, email string) Verdict {
	return Verdict{Accepted: true, CredentialType: ct, Email: email}
}

func rejected(ct models.CredentialType, reason models.DenialReason, email string) Verdict {
	return Verdict{Reason: reason, CredentialType: ct, Email: email}
}

// CredentialVerifier decides whether a credential satisfies a rule. It has no side effects.
type CredentialVerifier struct {
	allowlists AllowlistSource
}

// NewCredentialVerifier creates a verifier reading allowlists from source
func NewCredentialVerifier(source AllowlistSource) *CredentialVerifier {
	return &CredentialVerifier{allowlists: source}
}

// Verify checks cred against rule. Rejections are reported in the Verdict. An
// allowlist read failure returns ErrStoreUnavailable; an unknown mode or
// credential variant returns a plain error.
func (v *CredentialVerifier) Verify(ctx context.Context, rule *models.AccessRule, cred models.Credential) (Verdict, error) {
	if cred == nil {
		cred = models.NoCredential{}
	}

	switch rule.AccessMode {
	case models.AccessModeOpen:
		return accepted(models.CredentialTypeNone, ""), nil
	case models.AccessModePassword:
		return v.verifyPassword(rule, cred)
	case models.AccessModeEmailList:
		return v.verifyEmail(ctx, rule, cred)
	default:
		return Verdict{}, fmt.Errorf("unsupported access mode %q", rule.AccessMode)
	}
}

func (v *CredentialVerifier) verifyPassword(rule *models.AccessRule, cred models.Credential) (Verdict, error) {
	switch c := cred.(type) {
	case models.PasswordCredential:
		if c.Value == "" {
			return rejected(models.CredentialTypePassword, models.DenialInvalidCredentialFormat, ""), nil
		}
		if rule.PasswordHash == nil || *rule.PasswordHash == "" {
			slog.Warn("Password rule has no password hash", "type", rule.ContentType, "slug", rule.Slug)
			return rejected(models.CredentialTypePassword, models.DenialCredentialRejected, ""), nil
		}
		if !auth.CheckPassword(*rule.PasswordHash, c.Value) {
			return rejected(models.CredentialTypePassword, models.DenialCredentialRejected, ""), nil
		}
		return accepted(models.CredentialTypePassword, ""), nil
	case models.EmailCredential, models.NoCredential:
		return rejected(models.TypeOf(c), models.DenialInvalidCredentialFormat, ""), nil
	default:
		return Verdict{}, fmt.Errorf("unsupported credential %T", cred)
	}
}

func (v *CredentialVerifier) verifyEmail(ctx context.Context, rule *models.AccessRule, cred models.Credential) (Verdict, error) {
	switch c := cred.(type) {
	case models.EmailCredential:
		if !models.IsValidEmail(c.Value) {
			return rejected(models.CredentialTypeEmail, models.DenialInvalidCredentialFormat, ""), nil
		}
		email := models.NormalizeEmail(c.Value)

		allowlist, err := v.allowlists.GetEmailAllowlist(ctx, rule.ID)
		if err != nil {
			return Verdict{}, storeError(err)
		}
		if _, ok := allowlist[email]; !ok {
			return rejected(models.CredentialTypeEmail, models.DenialCredentialRejected, email), nil
		}
		return accepted(models.CredentialTypeEmail, email), nil
	case models.PasswordCredential, models.NoCredential:
		return rejected(models.TypeOf(c), models.DenialInvalidCredentialFormat, ""), nil
	default:
		return Verdict{}, fmt.Errorf("unsupported credential %T", cred)
	}
}
