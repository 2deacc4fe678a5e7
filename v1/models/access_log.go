package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CredentialType classifies the credential presented in a verification attempt
type CredentialType string

const (
	CredentialTypePassword CredentialType = "password"
	CredentialTypeEmail    CredentialType = "email"
	CredentialTypeNone     CredentialType = "none"
)

// DenialReason explains a rejected verification attempt
type DenialReason string

const (
	DenialInvalidCredentialFormat DenialReason = "invalid_credential_format"
	DenialCredentialRejected      DenialReason = "credential_rejected"
)

// AccessLog is one verification attempt. Rows are append-only.
type AccessLog struct {
	ID uuid.UUID `gorm:"primaryKey" json:"id"`

	// RuleID is a weak reference; the rule may be deleted later
	RuleID      *uuid.UUID `gorm:"column:rule_id;index:idx_access_logs_rule_id" json:"ruleId,omitempty"`
	ContentType string     `gorm:"column:content_type;type:varchar(50);not null;index:idx_access_logs_content,priority:1" json:"type"`
	Slug        string     `gorm:"column:slug;type:varchar(255);not null;index:idx_access_logs_content,priority:2" json:"slug"`

	Granted         bool           `gorm:"column:granted;not null;index:idx_access_logs_granted" json:"granted"`
	CredentialType  CredentialType `gorm:"column:credential_type;type:varchar(20);not null" json:"credentialType"`
	CredentialValue *string        `gorm:"column:credential_value;type:varchar(320)" json:"credentialValue,omitempty"`
	DenialReason    *DenialReason  `gorm:"column:denial_reason;type:varchar(50)" json:"denialReason,omitempty"`

	IPAddress *string `gorm:"column:ip_address;type:varchar(64)" json:"ipAddress,omitempty"`
	UserAgent *string `gorm:"column:user_agent;type:text" json:"userAgent,omitempty"`

	Timestamp time.Time `gorm:"not null;index:idx_access_logs_timestamp" json:"timestamp"`
}

// TableName sets the table name for AccessLog model
func (AccessLog) TableName() string {
	return "access_logs"
}

// BeforeCreate assigns the primary key and timestamp, and drops any value
// attached to a password attempt.
func (l *AccessLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.Timestamp.IsZero() {
		l.Timestamp = time.Now().UTC()
	}
	l.Redact()
	return nil
}

// Redact clears the credential value unless it is an email attempt
func (l *AccessLog) Redact() {
	if l.CredentialType != CredentialTypeEmail {
		l.CredentialValue = nil
	}
}
