package prompt

import (
	"strings"
	"testing"

	"easel/internal/config"
)

func testBrand() config.Brand {
	return config.Brand{
		Name:          "SiliconSentiments",
		BaseStyle:     "futuristic digital art with neon circuit patterns",
		Themes:        []string{"cybernetic dreamscape", "holographic memory", "synthetic emotion"},
		NegativeTerms: []string{"text", "watermark", "low quality"},
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	tmpl, err := New(testBrand())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	description := "a portrait of a woman surrounded by flowers"
	first := tmpl.Build(description)
	second := tmpl.Build(description)
	if first != second {
		t.Fatalf("prompt changed between calls:\n%s\n%s", first, second)
	}
	if !strings.Contains(first, description) {
		t.Errorf("prompt %q does not carry the description", first)
	}
	if !strings.Contains(first, "neon circuit patterns") {
		t.Errorf("prompt %q does not carry the base style", first)
	}
}

func TestBuildIncludesExactlyOneTheme(t *testing.T) {
	brand := testBrand()
	tmpl, err := New(brand)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := tmpl.Build("a mountain landscape at dusk")
	count := 0
	for _, theme := range brand.Themes {
		if strings.Contains(got, theme) {
			count++
		}
	}
	if count != 1 {
		t.Errorf("prompt %q contains %d themes, want 1", got, count)
	}
}

func TestBuildFallsBackOnEmptyDescription(t *testing.T) {
	tmpl, err := New(testBrand())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := tmpl.Build("   ")
	if !strings.Contains(got, fallbackDescription) {
		t.Errorf("prompt %q does not use the fallback description", got)
	}
}

func TestNewRejectsEmptyBaseStyle(t *testing.T) {
	brand := testBrand()
	brand.BaseStyle = "  "
	if _, err := New(brand); err == nil {
		t.Fatal("expected error for empty base style")
	}
}

func TestNegativeJoinsConfiguredTerms(t *testing.T) {
	tmpl, err := New(testBrand())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := tmpl.Negative(); got != "text, watermark, low quality" {
		t.Errorf("Negative() = %q", got)
	}

	brand := testBrand()
	brand.NegativeTerms = nil
	tmpl, err = New(brand)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := tmpl.Negative(); got != "" {
		t.Errorf("Negative() = %q, want empty", got)
	}
}
