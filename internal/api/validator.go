package api

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas
var schemaFiles embed.FS

const schemaBaseURL = "https://notakto.dev/schemas/"

// Schema names, one per response shape.
const (
	schemaCreateGame      = "create_game"
	schemaRegisterSession = "register_session"
	schemaGameState       = "game_state"
	schemaSignIn          = "sign_in"
	schemaCreatePayment   = "create_payment"
	schemaOrderStatus     = "order_status"
)

// Validator checks response bodies against the embedded JSON schemas
// before they are decoded into typed payloads.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// NewValidator compiles every embedded schema.
func NewValidator() (*Validator, error) {
	entries, err := schemaFiles.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema directory: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	// Register everything first so cross-file $refs resolve during compile.
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		data, err := schemaFiles.ReadFile("schemas/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read schema %s: %w", entry.Name(), err)
		}
		if err := compiler.AddResource(schemaBaseURL+entry.Name(), bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("failed to add schema %s: %w", entry.Name(), err)
		}
		names = append(names, entry.Name())
	}

	schemas := make(map[string]*jsonschema.Schema, len(names))
	for _, filename := range names {
		schema, err := compiler.Compile(schemaBaseURL + filename)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", filename, err)
		}
		schemas[strings.TrimSuffix(filename, ".json")] = schema
	}

	return &Validator{schemas: schemas}, nil
}

// Validate checks raw JSON against the named schema.
func (v *Validator) Validate(schemaName string, data []byte) error {
	schema, ok := v.schemas[schemaName]
	if !ok {
		return fmt.Errorf("schema not found: %s", schemaName)
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
