// Package formfields describes the field descriptors the vision relay asks
// the model to produce for a scanned form.
package formfields

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

type FieldType string

const (
	TypeText    FieldType = "text"
	TypeEmail   FieldType = "email"
	TypePhone   FieldType = "phone"
	TypeDate    FieldType = "date"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeSelect  FieldType = "select"
)

// Types is the closed set of field types, in prompt order
var Types = []FieldType{TypeText, TypeEmail, TypePhone, TypeDate, TypeNumber, TypeBoolean, TypeSelect}

type Field struct {
	FieldName string    `json:"fieldName"`
	Label     string    `json:"label"`
	Type      FieldType `json:"type"`
}

func (t FieldType) Valid() bool {
	return slices.Contains(Types, t)
}

// WrapperKey names the object key the array is requested under. JSON mode
// only lets the model answer with an object.
const WrapperKey = "fields"

// ExtractionPrompt is sent as the text part of every vision request
func ExtractionPrompt() string {
	names := make([]string, len(Types))
	for i, t := range Types {
		names[i] = string(t)
	}
	return fmt.Sprintf(`You are reading a photo of a medical form. Identify every field a patient is expected to fill in, in the order they appear on the form.

Respond with a JSON object with a single key "%s" holding an array of objects, one per field, each with exactly these keys:
- "fieldName": a camelCase programmatic key for the field, unique within the form
- "label": the human readable label as printed on the form
- "type": one of %s

Example: {"%s":[{"fieldName":"firstName","label":"First Name","type":"text"},{"fieldName":"dateOfBirth","label":"Date of Birth","type":"date"}]}

Do not include any text outside the JSON.`, WrapperKey, strings.Join(names, ", "), WrapperKey)
}

// Unwrap returns the array held under WrapperKey, byte for byte as the
// model wrote it. Anything that is not exactly that one-key object comes
// back unchanged.
func Unwrap(raw string) string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &obj); err != nil || len(obj) != 1 {
		return raw
	}
	inner, ok := obj[WrapperKey]
	if !ok {
		return raw
	}
	trimmed := bytes.TrimSpace(inner)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return raw
	}
	return string(trimmed)
}

// Validate parses raw model output and checks it against the descriptor
// schema. It is only used when strict checking is switched on; by default
// the relay hands the model output back untouched.
func Validate(raw string) ([]Field, error) {
	var fields []Field
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("output is not a json array of fields: %w", err)
	}

	seen := make(map[string]struct{}, len(fields))
	for i, f := range fields {
		if f.FieldName == "" {
			return nil, fmt.Errorf("field %d: missing fieldName", i)
		}
		if f.Label == "" {
			return nil, fmt.Errorf("field %d (%s): missing label", i, f.FieldName)
		}
		if !f.Type.Valid() {
			return nil, fmt.Errorf("field %d (%s): unknown type %q", i, f.FieldName, f.Type)
		}
		if _, dup := seen[f.FieldName]; dup {
			return nil, fmt.Errorf("field %d: duplicate fieldName %q", i, f.FieldName)
		}
		seen[f.FieldName] = struct{}{}
	}
	return fields, nil
}
