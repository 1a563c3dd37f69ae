// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

func LoadRegistry(path string) (*CategoryRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg CategoryRegistry
	err = json.Unmarshal(data, &reg)
	return &reg, err
}

// SaveRegistry writes reg as indented JSON, creating the directory if needed.
func SaveRegistry(reg *CategoryRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

// Lookup returns the entry for id. Unknown ids fall back to the default
// channel with no template.
func (r *CategoryRegistry) Lookup(id string) CategoryInfo {
	if r != nil {
		for _, c := range r.Categories {
			if c.ID == id {
				return c
			}
		}
	}
	return CategoryInfo{ID: id, DisplayName: id, Channel: ChannelDefault, Importance: ImportanceNormal}
}

// Validate checks the registry against the set of category ids the engine
// knows. Every known id needs exactly one entry.
func (r *CategoryRegistry) Validate(known []string) error {
	if len(r.Categories) == 0 {
		return fmt.Errorf("registry contains no categories")
	}

	ids := make(map[string]bool, len(r.Categories))
	for _, c := range r.Categories {
		if c.ID == "" {
			return fmt.Errorf("category missing required field: ID")
		}
		if ids[c.ID] {
			return fmt.Errorf("duplicate category ID: %s", c.ID)
		}
		ids[c.ID] = true

		if c.DisplayName == "" {
			return fmt.Errorf("category %s missing required field: DisplayName", c.ID)
		}
		if _, ok := channelImportance[c.Channel]; !ok {
			return fmt.Errorf("category %s has unknown channel %q", c.ID, c.Channel)
		}
		if c.Importance != ImportanceNormal && c.Importance != ImportanceHigh {
			return fmt.Errorf("category %s has unknown importance %q", c.ID, c.Importance)
		}
	}

	for _, id := range known {
		if !ids[id] {
			return fmt.Errorf("category %s missing from registry", id)
		}
	}
	return nil
}
