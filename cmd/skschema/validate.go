package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xeipuuv/gojsonschema"
)

// validateSchema checks an exported type schema against the meta-schema.
func validateSchema(schema TypeSchema, metaSchemaPath string) error {
	if metaSchemaPath == "" {
		return nil
	}

	metaSchemaLoader := gojsonschema.NewReferenceLoader("file://" + metaSchemaPath)

	schemaBytes, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("failed to marshal schema for validation: %w", err)
	}

	documentLoader := gojsonschema.NewBytesLoader(schemaBytes)

	result, err := gojsonschema.Validate(metaSchemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		errMsg := fmt.Sprintf("schema %s does not match the meta-schema:\n", schema.ID)
		for _, desc := range result.Errors() {
			errMsg += fmt.Sprintf("  - %s: %s\n", desc.Field(), desc.Description())
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

// findMetaSchema locates the meta-schema file relative to the working
// directory, so the tool runs from the repo root and from cmd/skschema.
func findMetaSchema() (string, error) {
	possiblePaths := []string{
		"./specs/type-schema-meta.json",
		"../specs/type-schema-meta.json",
		"../../specs/type-schema-meta.json",
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err != nil {
				return "", fmt.Errorf("failed to get absolute path: %w", err)
			}
			return absPath, nil
		}
	}

	return "", fmt.Errorf("meta-schema not found in any of: %v", possiblePaths)
}
