package browser

import (
	"testing"
)

func TestSchema_Compile(t *testing.T) {
	s := Schema{
		"title":    "string",
		"price":    "number",
		"in_stock": "boolean",
		"tags":     "string[]",
		"extra":    "any",
	}

	v, err := s.Compile()
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if got := v.Schema()["title"]; got != "string" {
		t.Errorf("Schema() lost the source description, got %q", got)
	}
}

func TestSchema_CompileAliases(t *testing.T) {
	v, err := Schema{"count": "int", "name": "TEXT", "ok": "bool", "items": "list"}.Compile()
	if err != nil {
		t.Fatalf("Compile failed on aliases: %v", err)
	}
	if v == nil {
		t.Fatal("expected validator")
	}
}

func TestSchema_CompileRejectsUnknownDescriptor(t *testing.T) {
	_, err := Schema{"when": "datetime"}.Compile()
	if err == nil {
		t.Fatal("expected error for unknown descriptor")
	}
}

func TestSchema_CompileRejectsEmpty(t *testing.T) {
	_, err := Schema{}.Compile()
	if err == nil {
		t.Fatal("expected error for empty schema")
	}
}

func TestValidator_Validate(t *testing.T) {
	v, err := Schema{"title": "string", "price": "number", "tags": "string[]"}.Compile()
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	out, err := v.Validate(map[string]any{
		"title":   "Home",
		"price":   float64(12),
		"tags":    []any{"a", "b"},
		"ignored": "dropped",
	})
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if out["title"] != "Home" {
		t.Errorf("title = %v", out["title"])
	}
	if out["price"] != float64(12) {
		t.Errorf("price = %v", out["price"])
	}
	if _, ok := out["ignored"]; ok {
		t.Error("fields outside the schema should be dropped")
	}
	tags, ok := out["tags"].([]string)
	if !ok || len(tags) != 2 {
		t.Errorf("tags = %v", out["tags"])
	}
}

func TestValidator_ValidateMissingField(t *testing.T) {
	v, _ := Schema{"title": "string"}.Compile()
	if _, err := v.Validate(map[string]any{}); err == nil {
		t.Fatal("expected error for missing field")
	}
}

func TestValidator_ValidateWrongType(t *testing.T) {
	v, _ := Schema{"price": "number"}.Compile()
	if _, err := v.Validate(map[string]any{"price": "twelve"}); err == nil {
		t.Fatal("expected error for wrong type")
	}
}

func TestValidator_CoercesScalarsToString(t *testing.T) {
	v, _ := Schema{"price": "string"}.Compile()
	out, err := v.Validate(map[string]any{"price": float64(9.99)})
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if out["price"] != "9.99" {
		t.Errorf("price = %v", out["price"])
	}
}

func TestValidator_FingerprintStable(t *testing.T) {
	a, _ := Schema{"x": "string", "y": "number"}.Compile()
	b, _ := Schema{"y": "number", "x": "string"}.Compile()
	c, _ := Schema{"x": "string", "y": "string"}.Compile()

	if a.Fingerprint() != b.Fingerprint() {
		t.Error("fingerprint should not depend on field order")
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("fingerprint should change with field types")
	}
}
