package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/c360/simkernel/registry"
)

// CatalogDocument is the combined catalog of registered component types.
// Front ends load it to populate type pickers without dialing a live
// kernel; the full option schema for each type sits in its own file.
type CatalogDocument struct {
	Catalog     string         `yaml:"catalog"`
	Title       string         `yaml:"title"`
	Description string         `yaml:"description"`
	Types       []CatalogEntry `yaml:"types"`
}

// CatalogEntry summarizes one type and references its schema file.
type CatalogEntry struct {
	Qualified   string   `yaml:"qualified"`
	Description string   `yaml:"description,omitempty"`
	Schema      string   `yaml:"schema"`
	Options     []string `yaml:"options,omitempty"`
	Signals     []string `yaml:"signals,omitempty"`
}

// generateCatalog builds the catalog document from registry descriptions.
func generateCatalog(infos []registry.TypeInfo, schemaDir string) CatalogDocument {
	entries := make([]CatalogEntry, 0, len(infos))
	for _, info := range infos {
		entry := CatalogEntry{
			Qualified:   info.Qualified,
			Description: info.Description,
			// The catalog lives in specs/ and the schemas in a sibling
			// directory, so references are relative.
			Schema: fmt.Sprintf("../%s/%s.v1.json", filepath.Base(schemaDir), info.Qualified),
		}
		for _, opt := range info.Options {
			entry.Options = append(entry.Options, opt.Name)
		}
		for _, sig := range info.Signals {
			entry.Signals = append(entry.Signals, sig.Name)
		}
		entries = append(entries, entry)
	}

	return CatalogDocument{
		Catalog:     "1",
		Title:       "simkernel component types",
		Description: "Option schemas and signal surfaces for every registered type",
		Types:       entries,
	}
}

// writeYAMLFile writes a struct to a YAML file with a generated-file header.
func writeYAMLFile(filename string, data interface{}) error {
	yamlData, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	header := []byte(strings.TrimSpace(`
# simkernel component type catalog
# Generated by skschema
# DO NOT EDIT MANUALLY - regenerate after changing type registrations
`) + "\n\n")

	content := append(header, yamlData...)

	if err := os.WriteFile(filename, content, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}
