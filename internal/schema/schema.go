// Package schema validates inbound JSON payloads against the bundled JSON schemas.
package schema

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"path"

	"github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Bundled schema names.
const (
	ActivityEvent       = "activity_event"
	MotionSamples       = "motion_samples"
	AuthorizationReport = "authorization_report"
)

//go:embed schemas/*.schema.json
var files embed.FS

// ErrInvalidPayload wraps every validation failure.
var ErrInvalidPayload = errors.New("invalid payload")

// Validator holds the compiled schemas.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// NewValidator compiles every bundled schema.
func NewValidator() (*Validator, error) {
	entries, err := files.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		file := path.Join("schemas", entry.Name())
		data, err := files.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", file, err)
		}
		if err := compiler.AddResource(file, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", file, err)
		}
		names = append(names, file)
	}

	v := &Validator{schemas: make(map[string]*jsonschema.Schema, len(names))}
	for _, file := range names {
		compiled, err := compiler.Compile(file)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", file, err)
		}
		v.schemas[schemaName(file)] = compiled
	}
	return v, nil
}

// Validate checks raw against the named schema.
func (v *Validator) Validate(name string, raw []byte) error {
	compiled, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}

	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := compiled.Validate(instance); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// Source returns the raw JSON text of a bundled schema.
func Source(name string) ([]byte, error) {
	data, err := files.ReadFile(path.Join("schemas", name+".schema.json"))
	if err != nil {
		return nil, fmt.Errorf("unknown schema %q: %w", name, err)
	}
	return data, nil
}

func schemaName(file string) string {
	base := path.Base(file)
	const suffix = ".schema.json"
	return base[:len(base)-len(suffix)]
}
