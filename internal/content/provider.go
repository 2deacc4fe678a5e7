// Package content serves pre-rendered protected content from disk
package content

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sawanruparel/web-presence/access-api/internal/config"
)

const extension = ".html"

var (
	// ErrContentNotFound is returned when no rendered file exists for a content item
	ErrContentNotFound = errors.New("content not found")
	// ErrInvalidContentPath is returned for unknown content types or unsafe slugs
	ErrInvalidContentPath = errors.New("invalid content path")
)

// Provider reads {root}/{type}/{slug}.html
type Provider struct {
	root  string
	types *config.ContentTypes
}

// NewProvider creates a provider rooted at dir
func NewProvider(dir string, types *config.ContentTypes) *Provider {
	return &Provider{root: dir, types: types}
}

func (p *Provider) path(contentType, slug string) (string, error) {
	if !p.types.IsValid(contentType) {
		return "", fmt.Errorf("%w: unknown content type %q", ErrInvalidContentPath, contentType)
	}
	if slug == "" || slug == "." || slug == ".." || strings.ContainsAny(slug, `/\`) || strings.Contains(slug, "\x00") {
		return "", fmt.Errorf("%w: unsafe slug %q", ErrInvalidContentPath, slug)
	}
	return filepath.Join(p.root, contentType, slug+extension), nil
}

// Get returns the rendered HTML of a content item
func (p *Provider) Get(contentType, slug string) (string, error) {
	path, err := p.path(contentType, slug)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrContentNotFound
		}
		return "", fmt.Errorf("failed to read content %s/%s: %w", contentType, slug, err)
	}
	return string(data), nil
}

// List returns the slugs available for a content type, sorted
func (p *Provider) List(contentType string) ([]string, error) {
	if !p.types.IsValid(contentType) {
		return nil, fmt.Errorf("%w: unknown content type %q", ErrInvalidContentPath, contentType)
	}
	entries, err := os.ReadDir(filepath.Join(p.root, contentType))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list content %s: %w", contentType, err)
	}

	slugs := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), extension) {
			continue
		}
		slugs = append(slugs, strings.TrimSuffix(e.Name(), extension))
	}
	sort.Strings(slugs)
	return slugs, nil
}
