package resolveutterance

import "hajj-assistant/internal/models"

type Input struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
	AudioTag  string `json:"audioTag,omitempty"`
}

type Output struct {
	Response models.ResponsePayload  `json:"response"`
	Intent   models.Intent            `json:"intent,omitempty"`
	Outcome  string                   `json:"outcome"`
	State    models.ConversationState `json:"conversationState"`
}
