package oracle

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const chatModel = openai.ChatModelGPT4_1Mini

// OpenAIProvider verifies faces with an OpenAI vision-capable chat model.
type OpenAIProvider struct {
	client      *openai.Client
	usage       Usage
	inputPrice  float64 // per 1M tokens
	outputPrice float64 // per 1M tokens
}

// NewOpenAIProvider creates an OpenAI-backed verification provider.
func NewOpenAIProvider(apiKey string, pricing RequestPricing) *OpenAIProvider {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIProvider{
		client:      &client,
		inputPrice:  pricing.Input,
		outputPrice: pricing.Output,
	}
}

func (p *OpenAIProvider) Name() string {
	return chatModel
}

func (p *OpenAIProvider) GetUsage() *Usage {
	return &p.usage
}

func (p *OpenAIProvider) ResetUsage() {
	p.usage = Usage{}
}

func (p *OpenAIProvider) trackUsage(inputTokens, outputTokens int64) {
	p.usage.InputTokens += int(inputTokens)
	p.usage.OutputTokens += int(outputTokens)
	p.usage.TotalCost += float64(inputTokens) / 1_000_000 * p.inputPrice
	p.usage.TotalCost += float64(outputTokens) / 1_000_000 * p.outputPrice
}

// dataURL wraps a JPEG payload for the chat image content part.
func dataURL(jpegData []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegData)
}

// Compare sends both images to the chat completion API and parses the JSON
// verdict. Like the Gemini provider, a malformed verdict is a non-match.
func (p *OpenAIProvider) Compare(ctx context.Context, captured, reference []byte) (*Comparison, error) {
	capturedJPEG, err := ResizeImage(captured, maxImageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to resize captured image: %w", err)
	}
	referenceJPEG, err := ResizeImage(reference, maxImageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to resize reference image: %w", err)
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: openai.String(buildVerifyPrompt()),
				},
			},
		},
		{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfArrayOfContentParts: []openai.ChatCompletionContentPartUnionParam{
						openai.TextContentPart("Captured Image:"),
						openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
							URL:    dataURL(capturedJPEG),
							Detail: "low",
						}),
						openai.TextContentPart("Enrolled Image:"),
						openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
							URL:    dataURL(referenceJPEG),
							Detail: "low",
						}),
					},
				},
			},
		},
	}

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    chatModel,
		Messages: messages,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		MaxTokens: openai.Int(300),
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("no response from OpenAI")
	}

	if resp.Usage.PromptTokens > 0 || resp.Usage.CompletionTokens > 0 {
		p.trackUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}

	return parseComparison(resp.Choices[0].Message.Content), nil
}
