package models

import "errors"

// ErrConflictingCredentials is returned when a verify request carries both a password and an email
var ErrConflictingCredentials = errors.New("password and email are mutually exclusive")

// VerifyRequest is the payload of POST /auth/verify
type VerifyRequest struct {
	Type     string  `json:"type"`
	Slug     string  `json:"slug"`
	Password *string `json:"password,omitempty"`
	Email    *string `json:"email,omitempty"`
}

// Credential converts the optional password/email fields into a Credential.
// An empty string is still a submitted credential so that it can be rejected as malformed.
func (r VerifyRequest) Credential() (Credential, error) {
	switch {
	case r.Password != nil && r.Email != nil:
		return nil, ErrConflictingCredentials
	case r.Password != nil:
		return PasswordCredential{Value: *r.Password}, nil
	case r.Email != nil:
		return EmailCredential{Value: *r.Email}, nil
	default:
		return NoCredential{}, nil
	}
}

// CreateAccessRuleRequest is the payload of POST /api/internal/access-rules
type CreateAccessRuleRequest struct {
	Type          string     `json:"type"`
	Slug          string     `json:"slug"`
	AccessMode    AccessMode `json:"accessMode"`
	Description   string     `json:"description,omitempty"`
	Password      *string    `json:"password,omitempty"`
	AllowedEmails []string   `json:"allowedEmails,omitempty"`
}

// UpdateAccessRuleRequest is the payload of PUT /api/internal/access-rules/{type}/{slug}.
// Nil fields are left unchanged.
type UpdateAccessRuleRequest struct {
	AccessMode    *AccessMode `json:"accessMode,omitempty"`
	Description   *string     `json:"description,omitempty"`
	Password      *string     `json:"password,omitempty"`
	AllowedEmails *[]string   `json:"allowedEmails,omitempty"`
}

// AddEmailRequest is the payload of POST /api/internal/access-rules/{type}/{slug}/emails
type AddEmailRequest struct {
	Email string `json:"email"`
}

// NormalizeEmails normalizes and de-duplicates a list of addresses, preserving order
func NormalizeEmails(emails []string) []string {
	seen := make(map[string]struct{}, len(emails))
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		n := NormalizeEmail(e)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
