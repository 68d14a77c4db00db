package core

import (
	"errors"
	"fmt"
)

// Tier maps a fixed set of trigger phrases to an escalation level.
type Tier struct {
	Level      Level
	Confidence float64
	// Keywords are reported on every match of the tier.
	Keywords []string
	Phrases  []string
}

// Lexicon is an ordered list of tiers, most severe first.
type Lexicon []Tier

var (
	errEmptyLexicon = errors.New("lexicon has no tiers")
	errTierOrder    = errors.New("lexicon tiers must be ordered most severe first")
)

// DefaultLexicon returns the built-in trigger phrases.
func DefaultLexicon() Lexicon {
	return Lexicon{
		{
			Level:      LevelCritical,
			Confidence: 0.95,
			Keywords:   []string{"suicide", "self-harm", "death"},
			Phrases: []string{
				"suicide", "suicidal", "kill myself", "want to die", "end it all",
				"end my life", "no reason to live", "better off dead",
			},
		},
		{
			Level:      LevelHigh,
			Confidence: 0.85,
			Keywords:   []string{"depression", "hopelessness", "self-harm"},
			Phrases: []string{
				"depressed", "hopeless", "self-harm", "cut myself", "hurt myself", "no hope",
			},
		},
		{
			Level:      LevelMedium,
			Confidence: 0.75,
			Keywords:   []string{"anxiety", "stress", "overwhelmed"},
			Phrases: []string{
				"anxiety", "panic", "overwhelmed", "can't cope", "stressed", "worried",
				"demotivated", "tired",
			},
		},
		{
			Level:      LevelLow,
			Confidence: 0.65,
			Keywords:   []string{"sadness", "distress", "loneliness"},
			Phrases: []string{
				"sad", "down", "not feeling good", "struggling", "lonely", "alone",
			},
		},
	}
}

// Validate checks that tiers are well formed and strictly ordered by severity.
func (lx Lexicon) Validate() error {
	if len(lx) == 0 {
		return errEmptyLexicon
	}
	for i, t := range lx {
		if !t.Level.Valid() {
			return fmt.Errorf("tier %d: unknown level %q", i, t.Level)
		}
		if t.Confidence < 0 || t.Confidence > 1 {
			return fmt.Errorf("tier %s: confidence %.2f out of range", t.Level, t.Confidence)
		}
		if len(t.Phrases) == 0 {
			return fmt.Errorf("tier %s: no phrases", t.Level)
		}
		if i > 0 && lx[i-1].Level.Severity() <= t.Level.Severity() {
			return fmt.Errorf("tier %s: %w", t.Level, errTierOrder)
		}
	}
	return nil
}
