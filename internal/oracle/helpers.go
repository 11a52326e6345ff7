package oracle

import (
	_ "embed"
	"encoding/json"
)

//go:embed prompts/face_verify.txt
var faceVerifyPrompt string

// buildVerifyPrompt returns the embedded face verification prompt. Shared
// across all providers so they answer in the same JSON shape.
func buildVerifyPrompt() string {
	return faceVerifyPrompt
}

// parseComparison decodes an oracle response body. Malformed or partial
// payloads are not errors: they decode to a non-match with zero confidence
// so the engine treats them as an ordinary failed comparison. Confidence is
// clamped to [0, 1] since the models occasionally wander outside it.
func parseComparison(raw string) *Comparison {
	var cmp Comparison
	if err := json.Unmarshal([]byte(raw), &cmp); err != nil {
		return &Comparison{}
	}
	if cmp.Confidence < 0 {
		cmp.Confidence = 0
	}
	if cmp.Confidence > 1 {
		cmp.Confidence = 1
	}
	return &cmp
}
