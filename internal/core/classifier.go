package core

import "strings"

const (
	defaultLevel      = LevelLow
	defaultConfidence = 0.5
)

type compiledTier struct {
	tier    Tier
	phrases []string // normalized, aligned with tier.Phrases
}

// Classifier assigns an escalation level to a message by scanning the lexicon
// tiers in priority order. The first tier with a matching phrase wins.
type Classifier struct {
	tiers []compiledTier
}

// NewClassifier builds a classifier over lx. The lexicon must be valid.
func NewClassifier(lx Lexicon) (*Classifier, error) {
	if err := lx.Validate(); err != nil {
		return nil, err
	}

	c := &Classifier{tiers: make([]compiledTier, 0, len(lx))}
	for _, t := range lx {
		ct := compiledTier{tier: t, phrases: make([]string, len(t.Phrases))}
		for i, p := range t.Phrases {
			ct.phrases[i] = Normalize(p)
		}
		c.tiers = append(c.tiers, ct)
	}
	return c, nil
}

// NewDefaultClassifier uses DefaultLexicon.
func NewDefaultClassifier() *Classifier {
	c, err := NewClassifier(DefaultLexicon())
	if err != nil {
		panic("core: default lexicon is invalid: " + err.Error())
	}
	return c
}

// Classify never fails: a message with no match is low with confidence 0.5.
func (c *Classifier) Classify(message string) ClassificationResult {
	text := Normalize(message)

	if text != "" {
		for _, ct := range c.tiers {
			var matched []string
			for i, p := range ct.phrases {
				if p != "" && strings.Contains(text, p) {
					matched = append(matched, ct.tier.Phrases[i])
				}
			}
			if len(matched) > 0 {
				return ClassificationResult{
					Level:      ct.tier.Level,
					Confidence: ct.tier.Confidence,
					Keywords:   append([]string(nil), ct.tier.Keywords...),
					Phrases:    matched,
				}
			}
		}
	}

	return ClassificationResult{
		Level:      defaultLevel,
		Confidence: defaultConfidence,
		Keywords:   []string{},
	}
}
