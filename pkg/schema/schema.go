// Package schema validates the opaque design and context documents against
// registered JSON schemas. The engine never interprets document contents;
// schemas exist so obviously malformed payloads are rejected at the boundary
// before they enter the audit trail.
package schema

import (
	"fmt"
	"strings"

	"github.com/camforge/camforge/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// DocumentRole names the two document slots a schema can govern.
type DocumentRole string

const (
	RoleDesign  DocumentRole = "design"
	RoleContext DocumentRole = "context"
)

// Registry maps (mode, role) to a JSON schema. Modes without a registered
// schema accept any non-empty document.
type Registry struct {
	schemas map[models.WorkflowMode]map[DocumentRole]map[string]any
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		schemas: make(map[models.WorkflowMode]map[DocumentRole]map[string]any),
	}
}

// Register installs or replaces the schema for a mode and role.
func (r *Registry) Register(mode models.WorkflowMode, role DocumentRole, schema map[string]any) {
	if r.schemas[mode] == nil {
		r.schemas[mode] = make(map[DocumentRole]map[string]any)
	}

	r.schemas[mode][role] = schema
}

// Validate checks the document against the registered schema, if any.
func (r *Registry) Validate(mode models.WorkflowMode, role DocumentRole, doc models.Document) error {
	schema, ok := r.schemas[mode][role]
	if !ok {
		return nil
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(map[string]any(doc))

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("schema validation failed for %s document: %w", role, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return fmt.Errorf("%s document rejected by schema: %s", role, strings.Join(details, "; "))
	}

	return nil
}
