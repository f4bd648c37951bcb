package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	_ "embed"
)

//go:embed config_schema.json
var configSchemaJSON []byte

// Validator checks configuration documents against the embedded JSON
// schema before any part of them is applied.
type Validator struct {
	schema *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config_schema.json", bytes.NewReader(configSchemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	schema, err := compiler.Compile("config_schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile config schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate parses raw bytes and checks the document shape. The returned
// error carries the schema path of the first violation.
func (v *Validator) Validate(raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
