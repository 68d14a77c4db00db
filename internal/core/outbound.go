package core

import (
	"time"

	"github.com/google/uuid"
)

// SenderBot marks replies produced by the engine.
const SenderBot = "BOT"

// OutboundMessage is what transports relay to the participant for each reply.
type OutboundMessage struct {
	ID                string               `json:"id"`
	ConversationID    string               `json:"conversationId"`
	Content           string               `json:"content"`
	SenderType        string               `json:"senderType"`
	Timestamp         time.Time            `json:"timestamp"`
	CrisisLevel       ClassificationResult `json:"crisisLevel"`
	Suggestions       []string             `json:"suggestions"`
	EmergencyContacts []string             `json:"emergencyContacts,omitempty"`
	FollowUpQuestions []string             `json:"followUpQuestions"`
	Trend             Trend                `json:"trend,omitempty"`
}

// NewOutboundMessage wraps resp with a fresh message id.
func NewOutboundMessage(conversationID string, resp ComposedResponse, trend Trend, now time.Time) OutboundMessage {
	return OutboundMessage{
		ID:                uuid.NewString(),
		ConversationID:    conversationID,
		Content:           resp.Text,
		SenderType:        SenderBot,
		Timestamp:         now,
		CrisisLevel:       resp.Classification,
		Suggestions:       resp.Suggestions,
		EmergencyContacts: resp.EmergencyContacts,
		FollowUpQuestions: resp.FollowUps,
		Trend:             trend,
	}
}
