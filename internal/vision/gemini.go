package vision

import (
	"context"
	"fmt"
	"log"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

type GeminiAnalyzer struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, apiKey, model string) (*GeminiAnalyzer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiAnalyzer{client: client, model: model}, nil
}

func (g *GeminiAnalyzer) Analyze(ctx context.Context, image []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	log.Printf("vision analyze provider=gemini model=%s image_kb=%d", g.model, len(image)/1024)

	content := genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromText(AnalysisPrompt),
		genai.NewPartFromBytes(image, mimeType),
	}, genai.RoleUser)

	resp, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{content}, nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no response candidates from gemini")
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			out.WriteString(part.Text)
		}
	}
	text := out.String()
	log.Printf("vision gemini response size=%d", len(text))
	return text, nil
}

func (g *GeminiAnalyzer) Ping(ctx context.Context) error {
	content := genai.NewContentFromText(`Respond with "OK" if you can see this message.`, genai.RoleUser)
	resp, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{content}, nil)
	if err != nil {
		return fmt.Errorf("gemini ping: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return fmt.Errorf("gemini ping: empty response")
	}
	return nil
}
