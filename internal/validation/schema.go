// Package validation checks generated AI responses before they are used.
//
// Schema validation is a hard gate: a response whose shape does not match the
// expected fields is an error. Quality validation is advisory: it reports
// warnings for responses that are structurally fine but suspiciously short,
// long or templated, and the caller decides what to do with them.
package validation

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// Kind is the expected JSON kind of a response field.
type Kind string

// Supported field kinds.
const (
	KindString Kind = "string"
	KindNumber Kind = "number"
	KindArray  Kind = "array"
	KindObject Kind = "object"
)

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindString, KindNumber, KindArray, KindObject:
		return true
	}
	return false
}

// Schema maps a required field name to its expected kind.
type Schema map[string]Kind

// SchemaResult is the outcome of ValidateSchema.
type SchemaResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// ValidateSchema checks that response is an object carrying every schema field
// with the expected kind. Each missing field and each kind mismatch yields one
// error, reported in field name order. A response that is not an object
// yields a single error and no field checks. A nil or empty schema accepts any
// object.
func ValidateSchema(response any, schema Schema) SchemaResult {
	obj, ok := asObject(response)
	if !ok {
		return SchemaResult{
			Errors: []string{fmt.Sprintf("response must be an object, got %s", kindOf(response))},
		}
	}

	fields := make([]string, 0, len(schema))
	for field := range schema {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var errs []string
	for _, field := range fields {
		want := schema[field]
		value, present := obj[field]
		if !present || value == nil {
			errs = append(errs, fmt.Sprintf("missing required field: %s", field))
			continue
		}
		if got := kindOf(value); got != string(want) {
			errs = append(errs, fmt.Sprintf("field %s: expected %s, got %s", field, want, got))
		}
	}

	return SchemaResult{Valid: len(errs) == 0, Errors: errs}
}

// asObject returns response as a string keyed map. Structs and typed maps are
// converted through their JSON form so that json tags name the fields.
func asObject(response any) (map[string]any, bool) {
	switch v := response.(type) {
	case nil:
		return nil, false
	case map[string]any:
		return v, true
	}

	rv := reflect.ValueOf(response)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct && rv.Kind() != reflect.Map {
		return nil, false
	}

	data, err := json.Marshal(response)
	if err != nil {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// kindOf names the JSON kind of v. Values with no JSON counterpart are
// reported by their Go kind.
func kindOf(v any) string {
	if v == nil {
		return "null"
	}
	switch v.(type) {
	case string:
		return string(KindString)
	case bool:
		return "boolean"
	case json.Number:
		return string(KindNumber)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return string(KindNumber)
	case reflect.String:
		return string(KindString)
	case reflect.Slice, reflect.Array:
		return string(KindArray)
	case reflect.Map, reflect.Struct:
		return string(KindObject)
	case reflect.Pointer:
		if rv.IsNil() {
			return "null"
		}
		return kindOf(rv.Elem().Interface())
	}
	return rv.Kind().String()
}
