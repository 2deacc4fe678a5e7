package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AccessMode is the policy governing a content item
type AccessMode string

const (
	AccessModeOpen      AccessMode = "open"
	AccessModePassword  AccessMode = "password"
	AccessModeEmailList AccessMode = "email-list"
)

// IsValid reports whether m is one of the supported access modes
func (m AccessMode) IsValid() bool {
	switch m {
	case AccessModeOpen, AccessModePassword, AccessModeEmailList:
		return true
	}
	return false
}

// ErrInvalidRule is returned by AccessRule.Validate
var ErrInvalidRule = errors.New("invalid access rule")

// AccessRule is the persisted access configuration for one (content type, slug) pair
type AccessRule struct {
	ID           uuid.UUID  `gorm:"primaryKey" json:"id"`
	ContentType  string     `gorm:"column:content_type;type:varchar(50);not null;uniqueIndex:idx_access_rules_type_slug,priority:1;index:idx_access_rules_content_type" json:"type"`
	Slug         string     `gorm:"column:slug;type:varchar(255);not null;uniqueIndex:idx_access_rules_type_slug,priority:2" json:"slug"`
	AccessMode   AccessMode `gorm:"column:access_mode;type:varchar(20);not null;index:idx_access_rules_access_mode" json:"accessMode"`
	Description  string     `gorm:"column:description;type:text" json:"description,omitempty"`
	PasswordHash *string    `gorm:"column:password_hash;type:varchar(255)" json:"-"`

	AllowedEmails []EmailAllowlistEntry `gorm:"foreignKey:RuleID;constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

// TableName sets the table name for AccessRule model
func (AccessRule) TableName() string {
	return "access_rules"
}

// BeforeCreate assigns the primary key
func (r *AccessRule) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Validate checks that the fields meaningful for the rule's mode are present and
// the others are absent. emailCount is the size of the rule's allowlist.
func (r *AccessRule) Validate(emailCount int) error {
	if r.ContentType == "" || r.Slug == "" {
		return fmt.Errorf("%w: content type and slug are required", ErrInvalidRule)
	}
	if !r.AccessMode.IsValid() {
		return fmt.Errorf("%w: unknown access mode %q", ErrInvalidRule, r.AccessMode)
	}

	hasHash := r.PasswordHash != nil && *r.PasswordHash != ""
	switch r.AccessMode {
	case AccessModeOpen:
		if hasHash || emailCount > 0 {
			return fmt.Errorf("%w: open rule must not carry a password or email list", ErrInvalidRule)
		}
	case AccessModePassword:
		if !hasHash {
			return fmt.Errorf("%w: password rule requires a password hash", ErrInvalidRule)
		}
		if emailCount > 0 {
			return fmt.Errorf("%w: password rule must not carry an email list", ErrInvalidRule)
		}
	case AccessModeEmailList:
		if emailCount == 0 {
			return fmt.Errorf("%w: email-list rule requires a non-empty email list", ErrInvalidRule)
		}
		if hasHash {
			return fmt.Errorf("%w: email-list rule must not carry a password", ErrInvalidRule)
		}
	}
	return nil
}

// EmailAllowlistEntry is one permitted email for an email-list rule.
// Email is stored normalized.
type EmailAllowlistEntry struct {
	ID        uuid.UUID `gorm:"primaryKey" json:"id"`
	RuleID    uuid.UUID `gorm:"column:rule_id;not null;uniqueIndex:idx_email_allowlist_rule_email,priority:1" json:"ruleId"`
	Email     string    `gorm:"column:email;type:varchar(320);not null;uniqueIndex:idx_email_allowlist_rule_email,priority:2" json:"email"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
}

// TableName sets the table name for EmailAllowlistEntry model
func (EmailAllowlistEntry) TableName() string {
	return "email_allowlist"
}

// BeforeCreate assigns the primary key and normalizes the email
func (e *EmailAllowlistEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.Email = NormalizeEmail(e.Email)
	return nil
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsValidEmail reports whether the trimmed address has exactly one '@' with
// non-empty local and domain parts and no whitespace.
func IsValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if strings.IndexFunc(email, unicode.IsSpace) >= 0 {
		return false
	}
	if strings.Count(email, "@") != 1 {
		return false
	}
	local, domain, _ := strings.Cut(email, "@")
	return local != "" && domain != ""
}
