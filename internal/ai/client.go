// Package ai implements the summarizer and transcriber collaborators on the OpenAI API.
package ai

import (
	"github.com/sashabaranov/go-openai"
	"log/slog"
)

// MaxTokens bounds the completion length of a briefing.
const MaxTokens = 2048

// Client holds the OpenAI client shared by the summarizer and the transcriber.
type Client struct {
	client *openai.Client
	logger *slog.Logger
}

// NewClient creates a client for apiKey. A non-empty baseURL points it at an OpenAI compatible endpoint, e.g.,
// a local proxy or a test server.
func NewClient(logger *slog.Logger, apiKey, baseURL string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		client: openai.NewClientWithConfig(config),
		logger: logger,
	}
}
