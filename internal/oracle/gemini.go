package oracle

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const geminiModel = "gemini-2.5-flash"

// GeminiProvider verifies faces with the Gemini vision API.
type GeminiProvider struct {
	client      *genai.Client
	usage       Usage
	inputPrice  float64 // per 1M tokens
	outputPrice float64 // per 1M tokens
}

// NewGeminiProvider creates a Gemini-backed verification provider.
func NewGeminiProvider(ctx context.Context, apiKey string, pricing RequestPricing) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{
		client:      client,
		inputPrice:  pricing.Input,
		outputPrice: pricing.Output,
	}, nil
}

func (p *GeminiProvider) Name() string {
	return geminiModel
}

func (p *GeminiProvider) GetUsage() *Usage {
	return &p.usage
}

func (p *GeminiProvider) ResetUsage() {
	p.usage = Usage{}
}

func (p *GeminiProvider) trackUsage(inputTokens, outputTokens int32) {
	p.usage.InputTokens += int(inputTokens)
	p.usage.OutputTokens += int(outputTokens)
	p.usage.TotalCost += float64(inputTokens) / 1_000_000 * p.inputPrice
	p.usage.TotalCost += float64(outputTokens) / 1_000_000 * p.outputPrice
}

// Compare sends both images to Gemini and parses the JSON verdict. A
// partial or malformed verdict is returned as a non-match, not an error;
// only transport-level failures error out.
func (p *GeminiProvider) Compare(ctx context.Context, captured, reference []byte) (*Comparison, error) {
	capturedJPEG, err := ResizeImage(captured, maxImageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to resize captured image: %w", err)
	}
	referenceJPEG, err := ResizeImage(reference, maxImageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to resize reference image: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: "Captured Image:"},
				{InlineData: &genai.Blob{Data: capturedJPEG, MIMEType: "image/jpeg"}},
				{Text: "Enrolled Image:"},
				{InlineData: &genai.Blob{Data: referenceJPEG, MIMEType: "image/jpeg"}},
				{Text: buildVerifyPrompt()},
			},
		},
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	result, err := p.client.Models.GenerateContent(ctx, geminiModel, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini API error: %w", err)
	}

	if result.UsageMetadata != nil {
		p.trackUsage(result.UsageMetadata.PromptTokenCount, result.UsageMetadata.CandidatesTokenCount)
	}

	content := result.Text()
	if content == "" {
		return nil, errors.New("no response from Gemini")
	}

	return parseComparison(content), nil
}
