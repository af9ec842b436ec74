package classifyintent

import "hajj-assistant/internal/models"

type Input struct {
	Text     string                    `json:"text"`
	AudioTag string                    `json:"audioTag,omitempty"`
	State    *models.ConversationState `json:"conversationState,omitempty"`
}

type Output struct {
	Language models.Language `json:"language"`
	Intent   models.Intent   `json:"intent"`
	Slots    models.Slots    `json:"slots"`
	Source   string          `json:"source"`
	Vague    bool            `json:"vague,omitempty"`
	Miss     bool            `json:"classificationMiss,omitempty"`
}
