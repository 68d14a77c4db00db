package engine

import "github.com/kaphack/realtime-crisis-triage-engine/internal/core"

const fallbackText = "I'm here to listen and support you. How are you feeling right now? " +
	"If you're in crisis, please call 988 for immediate help."

// FallbackResponse is returned whenever classification or composition faults.
// It deliberately carries one hotline even though its level is low.
func FallbackResponse() core.ComposedResponse {
	return core.ComposedResponse{
		Text: fallbackText,
		Classification: core.ClassificationResult{
			Level:      core.LevelLow,
			Confidence: 0.5,
			Keywords:   []string{},
		},
		Suggestions: []string{
			"Take deep breaths",
			"Talk to someone you trust",
			"Consider professional help",
		},
		FollowUps:         []string{},
		EmergencyContacts: []string{"988 - National Suicide Prevention Lifeline"},
	}
}
