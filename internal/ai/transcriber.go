package ai

import (
	"bytes"
	"context"
	"github.com/myrjola/casebot/internal/errors"
	"github.com/sashabaranov/go-openai"
	"log/slog"
	"strings"
)

// Transcriber turns voice notes into text with Whisper.
type Transcriber struct {
	client   *Client
	language string
	logger   *slog.Logger
}

// NewTranscriber creates a Transcriber. language is an ISO-639-1 hint such as "pt"; empty lets Whisper detect it.
func NewTranscriber(client *Client, language string) *Transcriber {
	return &Transcriber{
		client:   client,
		language: language,
		logger:   client.logger.With(slog.String("source", "Transcriber")),
	}
}

func (t *Transcriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	resp, err := t.client.client.CreateTranscription(ctx,
		openai.AudioRequest{ //nolint:exhaustruct // this is better for readability
			Model: openai.Whisper1,
			// Only the extension matters, it tells the API the container format of Telegram voice notes.
			FilePath: "voice.ogg",
			Reader:   bytes.NewReader(audio),
			Language: t.language,
		},
	)
	if err != nil {
		return "", errors.Join(errors.ErrService, errors.Wrap(err, "create transcription"))
	}
	text := strings.TrimSpace(resp.Text)
	t.logger.LogAttrs(ctx, slog.LevelDebug, "voice note transcribed",
		slog.Int("audio_bytes", len(audio)), slog.Int("transcript_chars", len(text)))
	return text, nil
}
