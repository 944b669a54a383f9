package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/c360/simkernel/engine"
	"github.com/c360/simkernel/option"
	"github.com/c360/simkernel/registry"
	"github.com/c360/simkernel/signal"
)

const draft07 = "http://json-schema.org/draft-07/schema#"

func main() {
	outDir := flag.String("out", "./schemas", "Output directory for per-type JSON Schemas")
	catalogOut := flag.String("catalog", "./specs/catalog.v1.yaml", "Output path for the combined type catalog")
	metaFlag := flag.String("meta", "", "Meta-schema path (default: search for specs/type-schema-meta.json)")
	flag.Parse()

	log.Printf("Type schema exporter")
	log.Printf("  Output dir: %s", *outDir)
	log.Printf("  Catalog: %s", *catalogOut)

	reg := registry.New()
	if err := engine.RegisterBuiltins(reg); err != nil {
		log.Fatalf("Failed to register builtin types: %v", err)
	}

	infos, err := reg.Describe()
	if err != nil {
		log.Fatalf("Failed to describe registered types: %v", err)
	}
	log.Printf("Found %d component types", len(infos))

	metaSchemaPath := *metaFlag
	if metaSchemaPath == "" {
		found, err := findMetaSchema()
		if err != nil {
			log.Printf("⚠️  Meta-schema not found, skipping validation: %v", err)
		}
		metaSchemaPath = found
	} else {
		if abs, err := filepath.Abs(metaSchemaPath); err == nil {
			metaSchemaPath = abs
		}
		if _, err := os.Stat(metaSchemaPath); err != nil {
			log.Fatalf("Meta-schema not readable: %v", err)
		}
	}
	if metaSchemaPath != "" {
		log.Printf("Using meta-schema: %s", metaSchemaPath)
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	for _, info := range infos {
		schema := extractSchema(info)

		if metaSchemaPath != "" {
			if err := validateSchema(schema, metaSchemaPath); err != nil {
				log.Fatalf("Schema validation failed for %s: %v", info.Qualified, err)
			}
		}

		outFile := filepath.Join(*outDir, schema.ID)
		if err := writeJSONSchema(outFile, schema); err != nil {
			log.Fatalf("Failed to write schema for %s: %v", info.Qualified, err)
		}

		log.Printf("  ✓ Generated: %s", outFile)
	}

	if *catalogOut != "" {
		if err := os.MkdirAll(filepath.Dir(*catalogOut), 0755); err != nil {
			log.Fatalf("Failed to create catalog directory: %v", err)
		}

		catalog := generateCatalog(infos, *outDir)
		if err := writeYAMLFile(*catalogOut, catalog); err != nil {
			log.Fatalf("Failed to write catalog: %v", err)
		}

		log.Printf("  ✓ Generated catalog: %s", *catalogOut)
	}

	log.Printf("✅ Schema export complete!")
}

// TypeSchema is the exported JSON Schema for one component type. It
// describes the option document a tree snapshot or a configure call may
// carry for instances of the type.
type TypeSchema struct {
	Schema      string                  `json:"$schema"`
	ID          string                  `json:"$id"`
	Type        string                  `json:"type"`
	Title       string                  `json:"title"`
	Description string                  `json:"description"`
	Properties  map[string]PropertySpec `json:"properties"`
	Required    []string                `json:"required"`
	Metadata    TypeMetadata            `json:"x-kernel-type"`
}

// TypeMetadata carries the registry identity and signal surface of a type.
type TypeMetadata struct {
	Library    string       `json:"library"`
	Type       string       `json:"type"`
	Qualified  string       `json:"qualified"`
	Properties []string     `json:"properties,omitempty"`
	Signals    []SignalSpec `json:"signals,omitempty"`
}

// SignalSpec summarizes one signal. Args and returns use name:kind
// notation, with a trailing "?" on optional arguments.
type SignalSpec struct {
	Name     string   `json:"name"`
	ReadOnly bool     `json:"read_only,omitempty"`
	Open     bool     `json:"open,omitempty"`
	Args     []string `json:"args,omitempty"`
	Returns  []string `json:"returns,omitempty"`
}

// PropertySpec is a JSON Schema property definition.
type PropertySpec struct {
	Type        string        `json:"type"`
	Format      string        `json:"format,omitempty"`
	Description string        `json:"description,omitempty"`
	Default     any           `json:"default,omitempty"`
	Enum        []any         `json:"enum,omitempty"`
	Minimum     *float64      `json:"minimum,omitempty"`
	Maximum     *float64      `json:"maximum,omitempty"`
	Items       *PropertySpec `json:"items,omitempty"`
}

// extractSchema converts a registry type description to a JSON Schema.
func extractSchema(info registry.TypeInfo) TypeSchema {
	properties := make(map[string]PropertySpec)
	for _, opt := range info.Options {
		properties[opt.Name] = propertySpec(opt)
	}

	return TypeSchema{
		Schema:      draft07,
		ID:          fmt.Sprintf("%s.v1.json", info.Qualified),
		Type:        "object",
		Title:       fmt.Sprintf("%s options", info.Qualified),
		Description: info.Description,
		Properties:  properties,
		// Every option carries a default, so an option document may set any
		// subset. Required stays an empty array instead of nil.
		Required: []string{},
		Metadata: typeMetadata(info),
	}
}

// propertySpec maps one option description onto a JSON Schema property.
// Range bounds on a list option constrain each element, so they land on
// items; the allowed set matches whole values and stays on the property.
func propertySpec(opt option.Info) PropertySpec {
	kind, err := option.ParseKind(opt.Kind)
	if err != nil {
		kind = option.KindString
	}

	spec := PropertySpec{
		Type:        mapKindToJSONSchema(kind),
		Description: opt.Description,
		Default:     nativeValue(kind, opt.Default),
	}
	if kind == option.KindURI {
		spec.Format = "uri"
	}

	if kind.IsList() {
		items := PropertySpec{
			Type:    mapKindToJSONSchema(kind.Elem()),
			Minimum: parseBound(opt.Min),
			Maximum: parseBound(opt.Max),
		}
		if kind.Elem() == option.KindURI {
			items.Format = "uri"
		}
		spec.Items = &items
	} else {
		spec.Minimum = parseBound(opt.Min)
		spec.Maximum = parseBound(opt.Max)
	}

	for _, allowed := range opt.Allowed {
		spec.Enum = append(spec.Enum, nativeValue(kind, allowed))
	}

	return spec
}

// typeMetadata builds the x-kernel-type block from the registry description.
func typeMetadata(info registry.TypeInfo) TypeMetadata {
	meta := TypeMetadata{
		Library:   info.Library,
		Type:      info.Type,
		Qualified: info.Qualified,
	}
	for _, prop := range info.Properties {
		meta.Properties = append(meta.Properties, prop.Name+":"+prop.Kind)
	}
	for _, sig := range info.Signals {
		meta.Signals = append(meta.Signals, signalSpec(sig))
	}
	return meta
}

// signalSpec summarizes one signal description.
func signalSpec(sig signal.Info) SignalSpec {
	spec := SignalSpec{
		Name:     sig.Name,
		ReadOnly: sig.ReadOnly,
		Open:     sig.Open,
	}
	for _, arg := range sig.Args {
		notation := arg.Name + ":" + arg.Kind
		if !arg.Required {
			notation += "?"
		}
		spec.Args = append(spec.Args, notation)
	}
	for _, ret := range sig.Returns {
		spec.Returns = append(spec.Returns, ret.Name+":"+ret.Kind)
	}
	return spec
}

// mapKindToJSONSchema maps option kinds to JSON Schema types.
func mapKindToJSONSchema(kind option.Kind) string {
	if kind.IsList() {
		return "array"
	}
	switch kind {
	case option.KindBool:
		return "boolean"
	case option.KindInt, option.KindUInt:
		return "integer"
	case option.KindReal:
		return "number"
	default:
		return "string"
	}
}

// nativeValue converts a formatted value into the native JSON type for its
// kind so defaults and enum entries type-check against the schema. Text
// that does not parse passes through as a string.
func nativeValue(kind option.Kind, text string) any {
	if kind.IsList() {
		if text == "" {
			return []any{}
		}
		parts := strings.Split(text, ",")
		out := make([]any, 0, len(parts))
		for _, part := range parts {
			out = append(out, nativeValue(kind.Elem(), part))
		}
		return out
	}
	switch kind {
	case option.KindBool:
		if b, err := strconv.ParseBool(text); err == nil {
			return b
		}
	case option.KindInt:
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return n
		}
	case option.KindUInt:
		if n, err := strconv.ParseUint(text, 10, 64); err == nil {
			return n
		}
	case option.KindReal:
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return f
		}
	}
	return text
}

// parseBound parses a numeric restriction; empty text means no bound.
func parseBound(text string) *float64 {
	if text == "" {
		return nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil
	}
	return &f
}

// writeJSONSchema writes one type schema to a JSON file.
func writeJSONSchema(filename string, schema TypeSchema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}
