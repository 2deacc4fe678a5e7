package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultContentTypes is used when no content types file is present
var DefaultContentTypes = []string{"notes", "publications", "ideas", "pages"}

// ContentTypes is the closed set of content types known to this deployment
type ContentTypes struct {
	Types []string `yaml:"contentTypes"`

	index map[string]struct{}
}

// LoadContentTypes reads the content type registry from a YAML file.
// A missing file yields the defaults; a malformed file is an error.
func LoadContentTypes(path string) (*ContentTypes, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("Content types file not found, using defaults", "path", path)
			return NewContentTypes(DefaultContentTypes), nil
		}
		return nil, fmt.Errorf("failed to read content types file %s: %w", path, err)
	}

	var ct ContentTypes
	if err := yaml.Unmarshal(data, &ct); err != nil {
		return nil, fmt.Errorf("failed to parse content types file %s: %w", path, err)
	}
	if len(ct.Types) == 0 {
		return NewContentTypes(DefaultContentTypes), nil
	}
	return NewContentTypes(ct.Types), nil
}

// NewContentTypes builds a registry from the given names
func NewContentTypes(types []string) *ContentTypes {
	ct := &ContentTypes{
		Types: append([]string(nil), types...),
		index: make(map[string]struct{}, len(types)),
	}
	for _, t := range types {
		ct.index[t] = struct{}{}
	}
	return ct
}

// IsValid reports whether t is a known content type
func (c *ContentTypes) IsValid(t string) bool {
	_, ok := c.index[t]
	return ok
}
