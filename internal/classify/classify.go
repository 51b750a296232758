// Package classify turns raw vision-model output into validated, normalized
// civic issues. It handles malformed content only; transport failures of the
// model call are the caller's problem and happen before this package runs.
package classify

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"civicreport/internal/domain"
)

type DetectedIssue = domain.DetectedIssue

// ErrBadFormat reports a model response whose structured issues array is
// missing or unusable. Callers fall back to ExtractFromText, never to
// discarding the analysis.
var ErrBadFormat = errors.New("no usable issues array in vision response")

// Issues below this confidence are noise and never surfaced.
const minConfidence = 0.30

// categorySynonyms maps model vocabulary onto the fixed taxonomy. Unknown
// categories pass through lowercased rather than being rejected; the taxonomy
// is advisory at this layer.
var categorySynonyms = map[string]string{
	"pothole":       "pothole",
	"potholes":      "pothole",
	"road damage":   "pothole",
	"road":          "pothole",
	"hole":          "pothole",
	"crack":         "pothole",
	"street light":  "streetlight",
	"streetlight":   "streetlight",
	"street lights": "streetlight",
	"streetlights":  "streetlight",
	"light":         "streetlight",
	"lighting":      "streetlight",
	"lamp":          "streetlight",
	"broken light":  "streetlight",
	"drainage":      "drainage",
	"drain":         "drainage",
	"water":         "drainage",
	"waterlog":      "drainage",
	"waterlogging":  "drainage",
	"flood":         "drainage",
	"flooding":      "drainage",
	"sewer":         "drainage",
	"garbage":       "garbage",
	"trash":         "garbage",
	"waste":         "garbage",
	"litter":        "garbage",
	"bin":           "garbage",
	"dustbin":       "garbage",
	"rubbish":       "garbage",
	"traffic":       "traffic",
	"traffic sign":  "traffic",
	"sign":          "traffic",
	"signal":        "traffic",
	"signage":       "traffic",
	"construction":  "construction",
	"debris":        "construction",
	"barrier":       "construction",
	"work":          "construction",
	"repair":        "construction",
}

// NormalizeCategory maps a free-text category label onto the fixed taxonomy.
// Case-insensitive and idempotent.
func NormalizeCategory(raw string) string {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := categorySynonyms[normalized]; ok {
		return canonical
	}
	return normalized
}

// ParseStructuredResponse extracts and validates the issues array from raw
// model output. The JSON object may be wrapped in markdown fences or
// surrounding prose. An empty issues array is a valid success outcome and
// returns an empty, non-nil slice; a missing or non-array issues field
// returns ErrBadFormat.
func ParseStructuredResponse(text string) ([]DetectedIssue, error) {
	payload := extractJSONObject(text)
	if payload == "" {
		return nil, fmt.Errorf("%w: no JSON object found", ErrBadFormat)
	}

	var resp struct {
		Issues []json.RawMessage `json:"issues"`
	}
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	if resp.Issues == nil {
		return nil, fmt.Errorf("%w: missing issues array", ErrBadFormat)
	}

	issues := []DetectedIssue{}
	for _, raw := range resp.Issues {
		var c DetectedIssue
		if err := json.Unmarshal(raw, &c); err != nil {
			// Candidate with the wrong shape (e.g. non-numeric confidence):
			// drop it, keep the rest.
			continue
		}
		if strings.TrimSpace(c.Category) == "" || strings.TrimSpace(c.Description) == "" {
			continue
		}
		if c.Confidence < minConfidence {
			continue
		}
		if c.Confidence > 1.0 {
			c.Confidence = 1.0
		}
		issues = append(issues, DetectedIssue{
			Category:    NormalizeCategory(c.Category),
			Confidence:  c.Confidence,
			Description: strings.TrimSpace(c.Description),
		})
	}
	return issues, nil
}

func extractJSONObject(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return ""
	}
	return text[start : end+1]
}

type keywordBucket struct {
	category string
	terms    []string
	prior    float64
}

var keywordBuckets = []keywordBucket{
	{"pothole", []string{"pothole", "road damage", "crack", "hole", "asphalt", "pavement"}, 0.7},
	{"streetlight", []string{"street light", "lamp", "lighting", "broken light", "light post"}, 0.7},
	{"drainage", []string{"drain", "water", "flood", "waterlog", "sewer", "gutter"}, 0.6},
	{"garbage", []string{"garbage", "trash", "waste", "litter", "bin", "dustbin"}, 0.8},
	{"traffic", []string{"traffic sign", "sign", "signal", "signage", "board"}, 0.6},
	{"construction", []string{"construction", "debris", "barrier", "work", "repair"}, 0.5},
}

// ExtractFromText is the fallback path when structured parsing fails: scan
// the response text for known keywords per category bucket. Each additional
// matching term raises the bucket's prior by 0.1, capped at 0.95. Categories
// are deduplicated; worst case is an empty result, never an error.
func ExtractFromText(text string) []DetectedIssue {
	lower := strings.ToLower(text)
	seen := make(map[string]bool)
	var issues []DetectedIssue
	for _, bucket := range keywordBuckets {
		if seen[bucket.category] {
			continue
		}
		var found []string
		for _, term := range bucket.terms {
			if strings.Contains(lower, term) {
				found = append(found, term)
			}
		}
		if len(found) == 0 {
			continue
		}
		seen[bucket.category] = true
		confidence := bucket.prior + 0.1*float64(len(found)-1)
		if confidence > 0.95 {
			confidence = 0.95
		}
		issues = append(issues, DetectedIssue{
			Category:    bucket.category,
			Confidence:  confidence,
			Description: fmt.Sprintf("Detected %s issue based on AI analysis (found: %s)", bucket.category, strings.Join(found, ", ")),
		})
	}
	return issues
}

// ClassifyResponse runs structured parsing with text-extraction fallback.
// Total: malformed content degrades to a partial or empty result.
func ClassifyResponse(text string) []DetectedIssue {
	issues, err := ParseStructuredResponse(text)
	if err != nil {
		log.Printf("classify structured parse failed, falling back to text extraction: %v", err)
		return ExtractFromText(text)
	}
	return issues
}
