package vision

import (
	"context"
	"errors"
	"strings"
	"testing"

	"civicreport/internal/config"
)

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), config.Config{VisionProvider: "palm"})
	if err == nil || !strings.Contains(err.Error(), "unknown vision provider") {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestNewAnthropicDefaultsModel(t *testing.T) {
	analyzer := NewAnthropic("key", "")
	if analyzer.model != defaultAnthropicModel {
		t.Fatalf("expected default model, got %q", analyzer.model)
	}
}

func TestFakeAnalyzer(t *testing.T) {
	fake := NewFake(`{"issues":[]}`)
	text, err := fake.Analyze(context.Background(), nil, "")
	if err != nil || text != `{"issues":[]}` {
		t.Fatalf("unexpected fake result: %q, %v", text, err)
	}

	fake.Err = errors.New("quota exceeded")
	if _, err := fake.Analyze(context.Background(), nil, ""); err == nil {
		t.Fatal("expected error from fake")
	}
}

func TestAnalysisPromptNamesAllCategories(t *testing.T) {
	for _, category := range []string{"pothole", "streetlight", "drainage", "garbage", "traffic", "construction"} {
		if !strings.Contains(AnalysisPrompt, category) {
			t.Errorf("prompt missing category %q", category)
		}
	}
}
