// Package vision wraps the external image-analysis models. It returns raw
// model text only; parsing and validation belong to the classify package.
package vision

import (
	"context"
	"fmt"

	"civicreport/internal/config"
)

// AnalysisPrompt instructs the model to report civic issues as JSON. The
// classifier tolerates deviations from this format.
const AnalysisPrompt = `
Analyze this image for civic infrastructure issues. Look for:
- Potholes or road damage
- Broken or non-functioning streetlights
- Drainage problems or waterlogging
- Garbage overflow or waste issues
- Missing or damaged traffic signs
- Construction hazards or debris

For each issue found, provide:
1. Category (one of: pothole, streetlight, drainage, garbage, traffic, construction)
2. Confidence level (0.0 to 1.0)
3. Brief description of the specific issue

Return response in JSON format:
{
  "issues": [
    {
      "category": "category_name",
      "confidence": 0.85,
      "description": "Brief description of the issue"
    }
  ]
}

If no issues are found, return: {"issues": []}
`

// Analyzer is the injected vision-model handle. Callers own timeout and
// cancellation via ctx; implementations do no retrying of their own.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte, mimeType string) (string, error)
	Ping(ctx context.Context) error
}

// New builds the configured provider.
func New(ctx context.Context, cfg config.Config) (Analyzer, error) {
	switch cfg.VisionProvider {
	case "gemini":
		return NewGemini(ctx, cfg.GeminiAPIKey, cfg.VisionModel)
	case "anthropic":
		return NewAnthropic(cfg.AnthropicAPIKey, cfg.VisionModel), nil
	default:
		return nil, fmt.Errorf("unknown vision provider %q", cfg.VisionProvider)
	}
}
