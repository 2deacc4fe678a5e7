package models

import (
	"time"

	"github.com/google/uuid"
)

// AccessRequirementsResponse is returned by access discovery
type AccessRequirementsResponse struct {
	AccessMode       AccessMode `json:"accessMode"`
	RequiresPassword bool       `json:"requiresPassword"`
	RequiresEmail    bool       `json:"requiresEmail"`
}

// VerifyResponse is returned by POST /auth/verify
type VerifyResponse struct {
	Success    bool       `json:"success"`
	Token      string     `json:"token,omitempty"`
	AccessMode AccessMode `json:"accessMode,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	Message    string     `json:"message,omitempty"`
}

// ContentResponse is returned by GET /auth/content/{type}/{slug}
type ContentResponse struct {
	Type  string `json:"type"`
	Slug  string `json:"slug"`
	HTML  string `json:"html"`
	Email string `json:"email,omitempty"`
}

// AccessRuleResponse is the admin view of a rule. The password hash is never exposed.
type AccessRuleResponse struct {
	ID            uuid.UUID  `json:"id"`
	Type          string     `json:"type"`
	Slug          string     `json:"slug"`
	AccessMode    AccessMode `json:"accessMode"`
	Description   string     `json:"description,omitempty"`
	HasPassword   bool       `json:"hasPassword"`
	AllowedEmails []string   `json:"allowedEmails,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// ToAccessRuleResponse converts an AccessRule with its loaded allowlist
func ToAccessRuleResponse(rule AccessRule) AccessRuleResponse {
	emails := make([]string, 0, len(rule.AllowedEmails))
	for _, e := range rule.AllowedEmails {
		emails = append(emails, e.Email)
	}
	return AccessRuleResponse{
		ID:            rule.ID,
		Type:          rule.ContentType,
		Slug:          rule.Slug,
		AccessMode:    rule.AccessMode,
		Description:   rule.Description,
		HasPassword:   rule.PasswordHash != nil && *rule.PasswordHash != "",
		AllowedEmails: emails,
		CreatedAt:     rule.CreatedAt,
		UpdatedAt:     rule.UpdatedAt,
	}
}

// ListAccessRulesResponse is returned by GET /api/internal/access-rules
type ListAccessRulesResponse struct {
	Rules []AccessRuleResponse `json:"rules"`
	Count int                  `json:"count"`
}

// Pagination describes a page of results
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

// NewPagination computes page counts for total items at the given page and limit
func NewPagination(page, limit int, total int64) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// AccessLogsResponse is returned by GET /api/internal/logs
type AccessLogsResponse struct {
	Logs       []AccessLog `json:"logs"`
	Pagination Pagination  `json:"pagination"`
}

// ContentAccessCount is the number of attempts against one content item
type ContentAccessCount struct {
	Type     string `json:"type"`
	Slug     string `json:"slug"`
	Attempts int64  `json:"attempts"`
	Granted  int64  `json:"granted"`
}

// AccessStats summarizes verification attempts in a time range
type AccessStats struct {
	Start            *time.Time               `json:"start,omitempty"`
	End              *time.Time               `json:"end,omitempty"`
	TotalAttempts    int64                    `json:"totalAttempts"`
	Granted          int64                    `json:"granted"`
	Denied           int64                    `json:"denied"`
	ByCredentialType map[CredentialType]int64 `json:"byCredentialType"`
	TopContent       []ContentAccessCount     `json:"topContent"`
}

// CatalogItem is one content item known to the service
type CatalogItem struct {
	Type        string `json:"type"`
	Slug        string `json:"slug"`
	AccessMode  string `json:"accessMode"`
	Description string `json:"description,omitempty"`
	HasContent  bool   `json:"hasContent"`
}

// CatalogResponse is returned by GET /api/content-catalog
type CatalogResponse struct {
	Items []CatalogItem `json:"items"`
	Count int           `json:"count"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}
