package core_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaphack/realtime-crisis-triage-engine/internal/core"
)

func composeFor(t *testing.T, message string, session core.Session) core.ComposedResponse {
	t.Helper()
	cls := core.NewDefaultClassifier().Classify(message)
	resp, err := core.NewComposer(nil).Compose(message, cls, session)
	require.NoError(t, err)
	return resp
}

func sessionWithExchanges(n int) core.Session {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := core.NewSession("c", now)
	for i := 0; i < n; i++ {
		s = s.WithTurns(
			core.Turn{Role: core.RoleUser, Content: "hi", Timestamp: now},
			core.Turn{Role: core.RoleSystem, Content: "hello", Timestamp: now},
		)
	}
	return s
}

func TestCompose_FirstAndFollowUpTemplates(t *testing.T) {
	bank := core.DefaultTemplateBank()

	for _, level := range core.Levels {
		first, ok := bank.Reply(level, true)
		require.True(t, ok)
		later, ok := bank.Reply(level, false)
		require.True(t, ok)
		assert.NotEqual(t, first, later, "level %s", level)
	}

	first := composeFor(t, "hello", sessionWithExchanges(0))
	second := composeFor(t, "hello", sessionWithExchanges(1))

	lowFirst, _ := bank.Reply(core.LevelLow, true)
	lowLater, _ := bank.Reply(core.LevelLow, false)
	assert.Equal(t, lowFirst, first.Text)
	assert.Equal(t, lowLater, second.Text)
}

func TestCompose_CriticalMentions988(t *testing.T) {
	for _, n := range []int{0, 3} {
		resp := composeFor(t, "I want to kill myself", sessionWithExchanges(n))
		assert.Equal(t, core.LevelCritical, resp.Level())
		assert.Contains(t, resp.Text, "988")
		assert.NotEmpty(t, resp.EmergencyContacts)
	}
}

func TestCompose_SingleElaborationByPriority(t *testing.T) {
	resp := composeFor(t, "I'm stressed about work and my family and I can't sleep", sessionWithExchanges(0))

	assert.Equal(t, core.LevelMedium, resp.Level())
	assert.Contains(t, resp.Themes, core.ThemeWork)
	assert.True(t, strings.HasSuffix(resp.Text, "Work stress can be overwhelming. What specific aspect is most challenging?"))
	assert.NotContains(t, resp.Text, "Relationship issues")
	assert.NotContains(t, resp.Text, "Sleep issues")
}

func TestCompose_NoElaborationForUnprioritizedThemes(t *testing.T) {
	resp := composeFor(t, "worried about money", sessionWithExchanges(0))
	bank := core.DefaultTemplateBank()
	want, _ := bank.Reply(core.LevelMedium, true)

	assert.Equal(t, []core.Theme{core.ThemeFinancial}, resp.Themes)
	assert.Equal(t, want, resp.Text)
}

func TestCompose_FollowUps(t *testing.T) {
	resp := composeFor(t, "I want to die, my boss and my partner hate me", sessionWithExchanges(0))
	assert.Equal(t, []string{
		"Do you have someone you can call right now?",
		"Are you currently in a safe place?",
		"What's the most stressful part of your work situation?",
	}, resp.FollowUps)

	resp = composeFor(t, "nothing much", sessionWithExchanges(0))
	assert.Equal(t, []string{
		"How can I best support you right now?",
		"What's been on your mind lately?",
	}, resp.FollowUps)
}

func TestCompose_FollowUpsDeduplicated(t *testing.T) {
	bank := core.DefaultTemplateBank()
	bank.ThemeFollowUps[core.ThemeWork] = []string{
		"Have you tried any coping strategies?",
		"Have you tried any coping strategies?",
		"Is work the main thing?",
	}
	composer := core.NewComposer(bank)
	cls := core.NewDefaultClassifier().Classify("stressed about my job")

	resp, err := composer.Compose("stressed about my job", cls, sessionWithExchanges(0))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Have you tried any coping strategies?",
		"What's been causing you to feel this way?",
		"Is work the main thing?",
	}, resp.FollowUps)
}

func TestCompose_SuggestionsAndContacts(t *testing.T) {
	bank := core.DefaultTemplateBank()
	messages := map[core.Level]string{
		core.LevelLow:      "feeling down",
		core.LevelMedium:   "so much anxiety",
		core.LevelHigh:     "I feel hopeless",
		core.LevelCritical: "suicide",
	}

	for level, msg := range messages {
		resp := composeFor(t, msg, sessionWithExchanges(0))
		require.Equal(t, level, resp.Level())
		assert.Len(t, resp.Suggestions, 7)
		assert.Equal(t, bank.Suggestions[level], resp.Suggestions)

		if level.NeedsEmergencyContacts() {
			assert.Equal(t, bank.EmergencyContacts, resp.EmergencyContacts)
		} else {
			assert.Nil(t, resp.EmergencyContacts)
		}
	}
}

func TestCompose_UnknownLevel(t *testing.T) {
	_, err := core.NewComposer(nil).Compose("x", core.ClassificationResult{Level: "severe"}, sessionWithExchanges(0))

	var fault *core.CompositionFault
	require.True(t, errors.As(err, &fault))
	assert.Equal(t, core.Level("severe"), fault.Level)
}

func TestCompose_ResultsDoNotAliasBank(t *testing.T) {
	bank := core.DefaultTemplateBank()
	composer := core.NewComposer(bank)
	cls := core.NewDefaultClassifier().Classify("suicide")

	resp, err := composer.Compose("suicide", cls, sessionWithExchanges(0))
	require.NoError(t, err)
	resp.Suggestions[0] = "changed"
	resp.EmergencyContacts[0] = "changed"

	assert.NotEqual(t, "changed", bank.Suggestions[core.LevelCritical][0])
	assert.NotEqual(t, "changed", bank.EmergencyContacts[0])
}
