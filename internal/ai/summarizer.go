package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/myrjola/casebot/internal/errors"
	"github.com/myrjola/casebot/internal/models"
	"github.com/myrjola/casebot/internal/workflow"
	"github.com/sashabaranov/go-openai"
	"log/slog"
	"strings"
)

const briefingInstructions = `You assist forensic experts of the scientific police. You receive the fields of an ` +
	`occurrence report as JSON. Answer with a JSON object with two string properties:
"summary": a concise factual summary of the occurrence (at most 300 words, third person, past tense, no speculation);
"checklist": 5 to 10 numbered, specific follow-up tasks for the forensic examination of the scene.
Write both in the language of the report.`

// Summarizer produces the occurrence briefing with a chat completion.
type Summarizer struct {
	client *Client
	model  string
	logger *slog.Logger
}

func NewSummarizer(client *Client, model string) *Summarizer {
	return &Summarizer{
		client: client,
		model:  model,
		logger: client.logger.With(slog.String("source", "Summarizer")),
	}
}

// Summarize asks the model for a summary and checklist of the occurrence.
func (s *Summarizer) Summarize(ctx context.Context, fields models.ExtractedFields) (workflow.Briefing, error) {
	prompt, err := briefingPrompt(fields)
	if err != nil {
		return workflow.Briefing{}, err
	}
	completion, err := s.client.client.CreateChatCompletion(ctx,
		openai.ChatCompletionRequest{ //nolint:exhaustruct // this is better for readability
			Model:     s.model,
			MaxTokens: MaxTokens,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: briefingInstructions},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		},
	)
	if err != nil {
		return workflow.Briefing{}, errors.Join(errors.ErrService, errors.Wrap(err, "create chat completion"))
	}
	if len(completion.Choices) == 0 {
		return workflow.Briefing{}, errors.Wrap(errors.ErrService, "completion without choices")
	}
	s.logger.LogAttrs(ctx, slog.LevelDebug, "briefing generated",
		slog.Int("prompt_tokens", completion.Usage.PromptTokens),
		slog.Int("completion_tokens", completion.Usage.CompletionTokens))
	return parseBriefing(completion.Choices[0].Message.Content)
}

func briefingPrompt(fields models.ExtractedFields) (string, error) {
	b, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "marshal fields")
	}
	return fmt.Sprintf("Occurrence report fields:\n%s", b), nil
}

type briefingResponse struct {
	Summary   string          `json:"summary"`
	Checklist json.RawMessage `json:"checklist"`
}

// parseBriefing accepts the checklist either as a string or as a list of strings.
func parseBriefing(content string) (workflow.Briefing, error) {
	var resp briefingResponse
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		return workflow.Briefing{}, errors.Join(errors.ErrService,
			errors.Wrap(err, "decode briefing", slog.String("content", content)))
	}
	briefing := workflow.Briefing{Summary: strings.TrimSpace(resp.Summary), Checklist: ""}
	if len(resp.Checklist) > 0 {
		var text string
		var items []string
		switch {
		case json.Unmarshal(resp.Checklist, &text) == nil:
			briefing.Checklist = strings.TrimSpace(text)
		case json.Unmarshal(resp.Checklist, &items) == nil:
			for i, item := range items {
				items[i] = fmt.Sprintf("%d. %s", i+1, strings.TrimSpace(item))
			}
			briefing.Checklist = strings.Join(items, "\n")
		}
	}
	if briefing.Summary == "" && briefing.Checklist == "" {
		return workflow.Briefing{}, errors.Wrap(errors.ErrService, "empty briefing")
	}
	return briefing, nil
}
