package core

import (
	"strings"
	"time"
	"unicode"
)

// Level is an escalation tier. Levels are totally ordered by severity.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Levels lists every tier from least to most severe.
var Levels = []Level{LevelLow, LevelMedium, LevelHigh, LevelCritical}

// Severity returns the rank of the level (low=1 .. critical=4), or 0 if unknown.
func (l Level) Severity() int {
	switch l {
	case LevelLow:
		return 1
	case LevelMedium:
		return 2
	case LevelHigh:
		return 3
	case LevelCritical:
		return 4
	}
	return 0
}

func (l Level) Valid() bool { return l.Severity() > 0 }

// AtLeast reports whether l is as severe as other.
func (l Level) AtLeast(other Level) bool {
	return l.Severity() >= other.Severity()
}

// NeedsEmergencyContacts is true for the tiers that ship hotline listings.
func (l Level) NeedsEmergencyContacts() bool {
	return l == LevelHigh || l == LevelCritical
}

// Trend summarizes the recent trajectory of a conversation.
type Trend string

const (
	TrendStable     Trend = "stable"
	TrendModerate   Trend = "moderate"
	TrendConcerning Trend = "concerning"
	TrendEscalating Trend = "escalating"
)

// Role attributes a turn to the participant or to the engine.
type Role string

const (
	RoleUser   Role = "user"
	RoleSystem Role = "system"
)

// Turn is one message in a conversation. Turns are never modified once appended.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ClassificationResult is the outcome of classifying a single message.
type ClassificationResult struct {
	Level      Level    `json:"level"`
	Confidence float64  `json:"confidence"`
	Keywords   []string `json:"keywords"`
	// Phrases holds the trigger phrases that actually matched.
	Phrases []string `json:"phrases,omitempty"`
}

// EscalationRecord is one classified level folded into a session.
type EscalationRecord struct {
	Level     Level     `json:"level"`
	Timestamp time.Time `json:"timestamp"`
}

// ComposedResponse is the engine's reply to one inbound message.
type ComposedResponse struct {
	Text              string               `json:"text"`
	Classification    ClassificationResult `json:"crisisLevel"`
	Themes            []Theme              `json:"themes,omitempty"`
	Suggestions       []string             `json:"suggestions"`
	FollowUps         []string             `json:"followUpQuestions"`
	EmergencyContacts []string             `json:"emergencyContacts,omitempty"`
}

// Level returns the classified level the reply was composed for.
func (r ComposedResponse) Level() Level {
	return r.Classification.Level
}

// Normalize lower-cases text and collapses every run of characters that are
// not letters or digits into a single space.
func Normalize(content string) string {
	return strings.Join(Tokenize(strings.ToLower(content)), " ")
}

// Tokenize splits content into letter/digit words.
func Tokenize(content string) []string {
	return strings.FieldsFunc(content, func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsNumber(c)
	})
}
