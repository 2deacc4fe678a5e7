package services

import (
	"context"
	"sort"

	"github.com/sawanruparel/web-presence/access-api/internal/config"
	"github.com/sawanruparel/web-presence/access-api/v1/database"
	"github.com/sawanruparel/web-presence/access-api/v1/models"
)

// ModeUnconfigured marks catalog items that have content but no access rule
const ModeUnconfigured = "unconfigured"

// ContentLister enumerates rendered content on disk
type ContentLister interface {
	List(contentType string) ([]string, error)
}

// CatalogService joins rendered content with access rules
type CatalogService struct {
	rules        database.RuleRepository
	content      ContentLister
	contentTypes *config.ContentTypes
}

// NewCatalogService creates a new catalog service
func NewCatalogService(rules database.RuleRepository, content ContentLister, contentTypes *config.ContentTypes) *CatalogService {
	return &CatalogService{rules: rules, content: content, contentTypes: contentTypes}
}

// Catalog lists every known content item, optionally for a single content type.
// Items with a rule but no rendered file are included with HasContent false.
func (s *CatalogService) Catalog(ctx context.Context, contentType string) (*models.CatalogResponse, error) {
	types := s.contentTypes.Types
	if contentType != "" {
		if !s.contentTypes.IsValid(contentType) {
			return nil, validationError("unknown content type %q", contentType)
		}
		types = []string{contentType}
	}

	items := make([]models.CatalogItem, 0)
	for _, t := range types {
		t := t
		rules, err := s.rules.ListRules(ctx, &database.RuleFilters{ContentType: &t})
		if err != nil {
			return nil, storeError(err)
		}
		slugs, err := s.content.List(t)
		if err != nil {
			return nil, err
		}

		bySlug := make(map[string]*models.CatalogItem, len(rules)+len(slugs))
		for _, r := range rules {
			bySlug[r.Slug] = &models.CatalogItem{
				Type:        t,
				Slug:        r.Slug,
				AccessMode:  string(r.AccessMode),
				Description: r.Description,
			}
		}
		for _, slug := range slugs {
			if item, ok := bySlug[slug]; ok {
				item.HasContent = true
				continue
			}
			bySlug[slug] = &models.CatalogItem{Type: t, Slug: slug, AccessMode: ModeUnconfigured, HasContent: true}
		}

		keys := make([]string, 0, len(bySlug))
		for k := range bySlug {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			items = append(items, *bySlug[k])
		}
	}

	return &models.CatalogResponse{Items: items, Count: len(items)}, nil
}
