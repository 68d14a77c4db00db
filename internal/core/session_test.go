package core_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kaphack/realtime-crisis-triage-engine/internal/core"
)

func TestSession_WithTurnsKeepsNewestTen(t *testing.T) {
	now := time.Now()
	s := core.NewSession("c1", now)

	for i := 0; i < 8; i++ {
		s = s.WithTurns(
			core.Turn{Role: core.RoleUser, Content: string(rune('a' + i)), Timestamp: now},
			core.Turn{Role: core.RoleSystem, Content: "reply", Timestamp: now},
		)
		assert.LessOrEqual(t, len(s.History), core.MaxHistory)
	}

	assert.Len(t, s.History, core.MaxHistory)
	assert.Equal(t, 5, s.CompletedExchanges())
	// Oldest retained user turn is the 4th exchange ("d").
	assert.Equal(t, "d", s.History[0].Content)
	assert.Equal(t, core.RoleSystem, s.History[len(s.History)-1].Role)
}

func TestSession_WithClassificationKeepsNewestFive(t *testing.T) {
	now := time.Now()
	s := core.NewSession("c1", now)

	s = s.WithClassification(core.LevelCritical, now)
	for i := 0; i < 5; i++ {
		s = s.WithClassification(core.LevelLow, now.Add(time.Duration(i+1)*time.Second))
	}

	assert.Len(t, s.EscalationHistory, core.MaxEscalationHistory)
	// The critical entry has been evicted, so the trend settles.
	assert.Equal(t, core.TrendStable, s.Trend)
}

func TestSession_IsCopyOnWrite(t *testing.T) {
	now := time.Now()
	before := core.NewSession("c1", now).WithTurns(core.Turn{Role: core.RoleUser, Content: "one", Timestamp: now})
	after := before.WithTurns(core.Turn{Role: core.RoleSystem, Content: "two", Timestamp: now})

	assert.Len(t, before.History, 1)
	assert.Len(t, after.History, 2)

	clone := after.Clone()
	clone.History[0].Content = "mutated"
	assert.Equal(t, "one", after.History[0].Content)
}

func TestComputeTrend(t *testing.T) {
	rec := func(levels ...core.Level) []core.EscalationRecord {
		out := make([]core.EscalationRecord, 0, len(levels))
		for _, l := range levels {
			out = append(out, core.EscalationRecord{Level: l})
		}
		return out
	}

	tests := []struct {
		name    string
		records []core.EscalationRecord
		want    core.Trend
	}{
		{"empty", nil, core.TrendStable},
		{"all low", rec(core.LevelLow, core.LevelLow), core.TrendStable},
		{"medium", rec(core.LevelLow, core.LevelMedium), core.TrendModerate},
		{"high", rec(core.LevelMedium, core.LevelHigh, core.LevelLow), core.TrendConcerning},
		{"critical anywhere", rec(core.LevelCritical, core.LevelLow, core.LevelLow), core.TrendEscalating},
		{"critical and high", rec(core.LevelHigh, core.LevelCritical), core.TrendEscalating},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, core.ComputeTrend(tt.records))
		})
	}
}

func TestLevelOrdering(t *testing.T) {
	assert.True(t, core.LevelCritical.AtLeast(core.LevelHigh))
	assert.True(t, core.LevelHigh.AtLeast(core.LevelHigh))
	assert.False(t, core.LevelMedium.AtLeast(core.LevelHigh))
	assert.False(t, core.Level("unknown").Valid())
}
