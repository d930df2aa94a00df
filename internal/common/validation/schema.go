// Package validation checks Zeebe job variables against JSON schemas.
package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a compiled JSON schema for one worker's input variables.
type Schema struct {
	compiled *gojsonschema.Schema
}

func Compile(schemaJSON string) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{compiled: s}, nil
}

// MustCompile is Compile for package-level schemas.
func MustCompile(schemaJSON string) *Schema {
	s, err := Compile(schemaJSON)
	if err != nil {
		panic(err)
	}
	return s
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Validate checks input. Errors are sorted by field for stable messages.
func (s *Schema) Validate(input map[string]interface{}) *ValidationResult {
	res, err := s.compiled.Validate(gojsonschema.NewGoLoader(input))
	if err != nil {
		return &ValidationResult{Errors: []ValidationError{{
			Field:   "(root)",
			Message: err.Error(),
			Code:    "invalid_document",
		}}}
	}
	if res.Valid() {
		return &ValidationResult{Valid: true}
	}

	out := make([]ValidationError, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		field := e.Field()
		if e.Type() == "required" {
			if prop, ok := e.Details()["property"].(string); ok {
				field = prop
			}
		}
		out = append(out, ValidationError{
			Field:   field,
			Message: e.Description(),
			Code:    e.Type(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return &ValidationResult{Errors: out}
}

// GetErrorMessages returns "field: message" lines.
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

func (vr *ValidationResult) String() string {
	return strings.Join(vr.GetErrorMessages(), "; ")
}

// HasErrors reports whether field, or a field nested under it, failed.
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") {
			return true
		}
	}
	return false
}
