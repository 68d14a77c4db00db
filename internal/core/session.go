package core

import "time"

const (
	// MaxHistory bounds the turn history (5 exchanges).
	MaxHistory = 10
	// MaxEscalationHistory bounds the retained classified levels.
	MaxEscalationHistory = 5
)

// Session is the bounded memory of one conversation. A Session value is never
// mutated in place: the With* methods return a new value with fresh slices, so a
// snapshot handed to a caller stays valid after the store moves on.
type Session struct {
	ConversationID    string             `json:"conversationId"`
	LastSenderID      string             `json:"lastSenderId,omitempty"`
	History           []Turn             `json:"history"`
	EscalationHistory []EscalationRecord `json:"escalationHistory"`
	Trend             Trend              `json:"trend"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

// NewSession returns an empty session for conversationID.
func NewSession(conversationID string, now time.Time) Session {
	return Session{
		ConversationID: conversationID,
		Trend:          TrendStable,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// CompletedExchanges is the number of user/system pairs retained in history.
func (s Session) CompletedExchanges() int {
	return len(s.History) / 2
}

// WithTurns appends the turns in order and keeps only the newest MaxHistory.
func (s Session) WithTurns(turns ...Turn) Session {
	history := make([]Turn, 0, len(s.History)+len(turns))
	history = append(history, s.History...)
	history = append(history, turns...)
	if len(history) > MaxHistory {
		history = history[len(history)-MaxHistory:]
	}

	next := s
	next.History = history
	if n := len(turns); n > 0 {
		next.UpdatedAt = turns[n-1].Timestamp
	}
	return next
}

// WithClassification folds level into the escalation history, keeps the newest
// MaxEscalationHistory entries and recomputes the trend.
func (s Session) WithClassification(level Level, at time.Time) Session {
	records := make([]EscalationRecord, 0, len(s.EscalationHistory)+1)
	records = append(records, s.EscalationHistory...)
	records = append(records, EscalationRecord{Level: level, Timestamp: at})
	if len(records) > MaxEscalationHistory {
		records = records[len(records)-MaxEscalationHistory:]
	}

	next := s
	next.EscalationHistory = records
	next.Trend = ComputeTrend(records)
	if at.After(next.UpdatedAt) {
		next.UpdatedAt = at
	}
	return next
}

// Clone returns a deep copy of s.
func (s Session) Clone() Session {
	c := s
	c.History = append([]Turn(nil), s.History...)
	c.EscalationHistory = append([]EscalationRecord(nil), s.EscalationHistory...)
	return c
}

// ComputeTrend derives the trend from the most severe retained level.
func ComputeTrend(records []EscalationRecord) Trend {
	worst := 0
	for _, r := range records {
		if sv := r.Level.Severity(); sv > worst {
			worst = sv
		}
	}

	switch worst {
	case LevelCritical.Severity():
		return TrendEscalating
	case LevelHigh.Severity():
		return TrendConcerning
	case LevelMedium.Severity():
		return TrendModerate
	default:
		return TrendStable
	}
}
