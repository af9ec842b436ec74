package oracle

import (
	"context"
	"strings"

	"hajj-assistant/internal/common/config"
	httpclient "hajj-assistant/internal/common/http"
)

// HTTP calls an in-house GenAI service exposing POST /api/ai/complete.
type HTTP struct {
	client  *httpclient.Client
	baseURL string
	apiKey  string
}

type httpRequest struct {
	System    string `json:"system"`
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

type httpResponse struct {
	Text string `json:"text"`
}

func NewHTTP(cfg config.OracleConfig) *HTTP {
	return &HTTP{
		client:  httpclient.NewClient(config.GetDuration(cfg.Timeout), cfg.MaxRetries),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
	}
}

func (h *HTTP) Complete(ctx context.Context, req Request) (string, error) {
	headers := map[string]string{}
	if h.apiKey != "" {
		headers["X-API-Key"] = h.apiKey
	}

	var out httpResponse
	err := h.client.PostJSON(ctx, h.baseURL+"/api/ai/complete", headers, httpRequest{
		System:    req.System,
		Prompt:    req.Prompt,
		MaxTokens: req.MaxTokens,
	}, &out)
	if err != nil {
		return "", classify(ctx, err)
	}
	if strings.TrimSpace(out.Text) == "" {
		return "", ErrEmptyReply
	}
	return out.Text, nil
}
