// Package oracle implements clients for the remote face verification
// service. A provider receives two encoded images and answers whether they
// depict the same person, with a confidence score and free-text
// observations. The engine treats providers as opaque and unreliable; all
// fallback behavior lives with the caller.
package oracle

import "context"

// Comparison is the oracle's judgment of two images. Fields missing from
// the raw payload decode to zero values, which read as a non-match with
// zero confidence.
type Comparison struct {
	Match        bool    `json:"match"`
	Confidence   float64 `json:"confidence"`
	Observations string  `json:"observations"`
}

// Provider defines the interface for verification backends.
type Provider interface {
	Name() string

	// Compare judges whether the captured image and the enrolled
	// reference image show the same person.
	Compare(ctx context.Context, captured, reference []byte) (*Comparison, error)

	// Usage tracking.
	GetUsage() *Usage
	ResetUsage()
}

// Usage tracks token usage and calculates cost.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalCost    float64 // in USD
}

// RequestPricing holds input/output prices per 1M tokens.
type RequestPricing struct {
	Input  float64
	Output float64
}

// maxImageSize is the maximum dimension images are scaled to before upload.
// Faces survive the downscale fine and tokens are billed per pixel.
const maxImageSize = 800
