package browser

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Schema is a plain description of the fields an extraction should return:
// field name mapped to a type descriptor ("string", "number", "boolean",
// "string[]", "any"). It is what callers put in the extract tool's input
// payload; Compile turns it into a runtime Validator.
type Schema map[string]string

// FieldKind is the resolved type of one schema field.
type FieldKind int

const (
	KindString FieldKind = iota
	KindNumber
	KindBool
	KindStringList
	KindAny
)

func (k FieldKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindStringList:
		return "string[]"
	default:
		return "any"
	}
}

// Validator checks and coerces extraction output against a compiled Schema.
// One Validator is built per extraction call; they are not cached.
type Validator struct {
	fields map[string]FieldKind
	source Schema
}

// Compile resolves every type descriptor in the schema. Descriptors are
// matched case-insensitively and accept the common aliases an LLM tends to
// produce (int, float, text, bool, list, ...). An unknown descriptor is an
// error so that a typo fails before the engine is ever invoked.
func (s Schema) Compile() (*Validator, error) {
	if len(s) == 0 {
		return nil, fmt.Errorf("schema has no fields")
	}

	fields := make(map[string]FieldKind, len(s))
	for name, descriptor := range s {
		if name == "" {
			return nil, fmt.Errorf("schema contains an empty field name")
		}
		kind, err := parseDescriptor(descriptor)
		if err != nil {
			return nil, fmt.Errorf("field %q: %v", name, err)
		}
		fields[name] = kind
	}

	return &Validator{fields: fields, source: s}, nil
}

func parseDescriptor(descriptor string) (FieldKind, error) {
	switch strings.ToLower(strings.TrimSpace(descriptor)) {
	case "string", "str", "text", "url":
		return KindString, nil
	case "number", "int", "integer", "float", "double":
		return KindNumber, nil
	case "boolean", "bool":
		return KindBool, nil
	case "string[]", "[]string", "array", "list", "strings", "array of strings", "list of strings":
		return KindStringList, nil
	case "any", "object", "map", "json":
		return KindAny, nil
	default:
		return KindAny, fmt.Errorf("unknown type descriptor %q", descriptor)
	}
}

// Schema returns the plain description this validator was compiled from.
func (v *Validator) Schema() Schema {
	return v.source
}

// Validate checks data against the schema and returns a copy containing only
// the schema's fields, with values coerced to their declared kinds. A missing
// field or an uncoercible value is an error.
func (v *Validator) Validate(data map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(v.fields))

	for name, kind := range v.fields {
		raw, ok := data[name]
		if !ok || raw == nil {
			return nil, fmt.Errorf("missing field %q", name)
		}

		value, err := coerce(raw, kind)
		if err != nil {
			return nil, fmt.Errorf("field %q: %v", name, err)
		}
		out[name] = value
	}

	return out, nil
}

func coerce(raw any, kind FieldKind) (any, error) {
	switch kind {
	case KindString:
		if s, ok := raw.(string); ok {
			return s, nil
		}
		// Numbers and bools read off a page stringify cleanly.
		switch t := raw.(type) {
		case float64, bool:
			return fmt.Sprintf("%v", t), nil
		}
		return nil, fmt.Errorf("expected string, got %T", raw)

	case KindNumber:
		switch t := raw.(type) {
		case float64:
			return t, nil
		case int:
			return float64(t), nil
		}
		return nil, fmt.Errorf("expected number, got %T", raw)

	case KindBool:
		if b, ok := raw.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("expected boolean, got %T", raw)

	case KindStringList:
		items, ok := raw.([]any)
		if !ok {
			if strs, ok := raw.([]string); ok {
				return strs, nil
			}
			return nil, fmt.Errorf("expected array of strings, got %T", raw)
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected array of strings, got element %T", item)
			}
			out = append(out, s)
		}
		return out, nil

	default: // KindAny
		return raw, nil
	}
}

// Fingerprint returns a stable digest of the schema, used as part of the
// extraction cache key. Field order does not affect it.
func (v *Validator) Fingerprint() string {
	names := make([]string, 0, len(v.fields))
	for name := range v.fields {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		fmt.Fprintf(h, "%s=%s;", name, v.fields[name])
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
