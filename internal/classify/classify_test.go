package classify

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeCategorySynonyms(t *testing.T) {
	cases := map[string]string{
		"Road Damage":  "pothole",
		"hole":         "pothole",
		"Street Light": "streetlight",
		"LAMP":         "streetlight",
		"waterlogging": "drainage",
		"flood":        "drainage",
		"  trash  ":    "garbage",
		"Rubbish":      "garbage",
		"signal":       "traffic",
		"debris":       "construction",
	}
	for input, want := range cases {
		if got := NormalizeCategory(input); got != want {
			t.Errorf("NormalizeCategory(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNormalizeCategoryUnknownPassesThrough(t *testing.T) {
	if got := NormalizeCategory("  Graffiti  "); got != "graffiti" {
		t.Fatalf("expected unknown category lowercased/trimmed, got %q", got)
	}
}

func TestNormalizeCategoryIdempotent(t *testing.T) {
	inputs := []string{"Road Damage", "street light", "flood", "trash", "signage", "work", "unknown-xyz"}
	for _, input := range inputs {
		once := NormalizeCategory(input)
		if twice := NormalizeCategory(once); twice != once {
			t.Errorf("NormalizeCategory not idempotent for %q: %q -> %q", input, once, twice)
		}
	}
}

func TestParseStructuredResponseValid(t *testing.T) {
	text := `{"issues":[
		{"category":"Pothole","confidence":0.85,"description":"Large pothole in the road"},
		{"category":"Street Light","confidence":1.4,"description":" Lamp post bent "}
	]}`

	issues, err := ParseStructuredResponse(text)
	if err != nil {
		t.Fatalf("ParseStructuredResponse failed: %v", err)
	}
	if len(issues) != 2 {
		t.Fatalf("expected 2 issues, got %d", len(issues))
	}
	if issues[0].Category != "pothole" || issues[0].Confidence != 0.85 {
		t.Errorf("unexpected first issue: %+v", issues[0])
	}
	if issues[1].Category != "streetlight" {
		t.Errorf("expected normalized streetlight, got %q", issues[1].Category)
	}
	if issues[1].Confidence != 1.0 {
		t.Errorf("expected confidence clamped to 1.0, got %f", issues[1].Confidence)
	}
	if issues[1].Description != "Lamp post bent" {
		t.Errorf("expected trimmed description, got %q", issues[1].Description)
	}
}

func TestParseStructuredResponseDiscardsLowConfidence(t *testing.T) {
	text := `{"issues":[{"category":"Pothole","confidence":0.2,"description":"minor"}]}`
	issues, err := ParseStructuredResponse(text)
	if err != nil {
		t.Fatalf("ParseStructuredResponse failed: %v", err)
	}
	if len(issues) != 0 {
		t.Fatalf("expected issue below 0.30 floor to be discarded, got %+v", issues)
	}
}

func TestParseStructuredResponseConfidenceBounds(t *testing.T) {
	text := `{"issues":[
		{"category":"garbage","confidence":0.30,"description":"bin overflowing"},
		{"category":"drainage","confidence":0.29,"description":"puddle"}
	]}`
	issues, err := ParseStructuredResponse(text)
	if err != nil {
		t.Fatalf("ParseStructuredResponse failed: %v", err)
	}
	if len(issues) != 1 {
		t.Fatalf("expected exactly the 0.30 issue to survive, got %+v", issues)
	}
	for _, issue := range issues {
		if issue.Confidence < 0.30 || issue.Confidence > 1.0 {
			t.Errorf("confidence %f outside [0.30, 1.0]", issue.Confidence)
		}
	}
}

func TestParseStructuredResponseEmptyIssuesIsSuccess(t *testing.T) {
	issues, err := ParseStructuredResponse(`{"issues":[]}`)
	if err != nil {
		t.Fatalf("empty issues array must be a valid outcome, got error: %v", err)
	}
	if issues == nil || len(issues) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", issues)
	}
}

func TestParseStructuredResponseFenceAndProse(t *testing.T) {
	text := "Here is what I found:\n```json\n{\"issues\":[{\"category\":\"garbage\",\"confidence\":0.9,\"description\":\"overflowing dustbin\"}]}\n```\nLet me know if you need more."
	issues, err := ParseStructuredResponse(text)
	if err != nil {
		t.Fatalf("ParseStructuredResponse failed: %v", err)
	}
	if len(issues) != 1 || issues[0].Category != "garbage" {
		t.Fatalf("unexpected issues: %+v", issues)
	}
}

func TestParseStructuredResponseFormatErrors(t *testing.T) {
	cases := []string{
		"no json here at all",
		`{"result":"fine"}`,
		`{"issues":"not an array"}`,
		`{"issues":null}`,
	}
	for _, text := range cases {
		if _, err := ParseStructuredResponse(text); !errors.Is(err, ErrBadFormat) {
			t.Errorf("ParseStructuredResponse(%q) error = %v, want ErrBadFormat", text, err)
		}
	}
}

func TestParseStructuredResponseDropsMalformedCandidates(t *testing.T) {
	text := `{"issues":[
		{"category":"pothole","confidence":"high","description":"bad confidence type"},
		{"category":"","confidence":0.9,"description":"empty category"},
		{"category":"garbage","confidence":0.9,"description":""},
		{"category":"drainage","confidence":0.75,"description":"blocked drain"}
	]}`
	issues, err := ParseStructuredResponse(text)
	if err != nil {
		t.Fatalf("ParseStructuredResponse failed: %v", err)
	}
	if len(issues) != 1 || issues[0].Category != "drainage" {
		t.Fatalf("expected only the well-formed candidate, got %+v", issues)
	}
}

func TestExtractFromTextSingleTermUsesPrior(t *testing.T) {
	issues := ExtractFromText("a big crack across the surface")
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue, got %+v", issues)
	}
	if issues[0].Category != "pothole" || issues[0].Confidence != 0.7 {
		t.Fatalf("unexpected issue: %+v", issues[0])
	}
	if !strings.Contains(issues[0].Description, "crack") {
		t.Errorf("description should record matched terms, got %q", issues[0].Description)
	}
}

func TestExtractFromTextExtraTermsRaiseConfidence(t *testing.T) {
	issues := ExtractFromText("gutter blocked and drain overflowing")
	if len(issues) != 1 || issues[0].Category != "drainage" {
		t.Fatalf("expected drainage issue, got %+v", issues)
	}
	// prior 0.6 + one extra term * 0.1
	if diff := issues[0].Confidence - 0.7; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected confidence ~0.7, got %f", issues[0].Confidence)
	}
}

func TestExtractFromTextConfidenceCap(t *testing.T) {
	issues := ExtractFromText("garbage trash waste litter bin dustbin everywhere")
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue, got %+v", issues)
	}
	if issues[0].Confidence != 0.95 {
		t.Fatalf("expected confidence capped at 0.95, got %f", issues[0].Confidence)
	}
}

func TestExtractFromTextNoDuplicateCategories(t *testing.T) {
	issues := ExtractFromText("pothole near the drain with garbage and a broken street light and traffic sign under construction")
	seen := make(map[string]bool)
	for _, issue := range issues {
		if seen[issue.Category] {
			t.Fatalf("duplicate category %q in %+v", issue.Category, issues)
		}
		seen[issue.Category] = true
	}
	if len(issues) == 0 {
		t.Fatal("expected some issues")
	}
}

func TestExtractFromTextEmptyInput(t *testing.T) {
	if issues := ExtractFromText(""); len(issues) != 0 {
		t.Fatalf("expected no issues for empty text, got %+v", issues)
	}
	if issues := ExtractFromText("a perfectly clean and well maintained square"); len(issues) != 0 {
		t.Fatalf("expected no issues for irrelevant text, got %+v", issues)
	}
}

func TestClassifyResponseFallsBackOnBadFormat(t *testing.T) {
	issues := ClassifyResponse("I can see a flooded street with a blocked drain near the market")
	if len(issues) != 1 || issues[0].Category != "drainage" {
		t.Fatalf("expected text fallback to find drainage, got %+v", issues)
	}
}

func TestClassifyResponsePrefersStructured(t *testing.T) {
	// The prose mentions garbage, but the structured payload wins.
	text := `garbage everywhere {"issues":[{"category":"traffic","confidence":0.8,"description":"bent sign"}]}`
	issues := ClassifyResponse(text)
	if len(issues) != 1 || issues[0].Category != "traffic" {
		t.Fatalf("expected structured result, got %+v", issues)
	}
}
