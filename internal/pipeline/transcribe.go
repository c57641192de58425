package pipeline

import (
	"context"
	"fmt"
	"strings"

	"resty.dev/v3"

	"sluice/internal/config"
	"sluice/internal/services"
)

// Transcriber turns an audio file into WebVTT captions via a speech-to-text
// API with an OpenAI-compatible surface.
type Transcriber struct {
	client   *resty.Client
	model    string
	language string
}

func NewTranscriber(cfg config.Speech) *Transcriber {
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	client.SetAuthToken(cfg.APIKey)
	return &Transcriber{
		client:   client,
		model:    cfg.Model,
		language: cfg.Language,
	}
}

func (t *Transcriber) Close() error {
	return t.client.Close()
}

// Transcribe uploads audioPath and returns the transcript as WebVTT text.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	resp, err := t.client.R().
		SetContext(ctx).
		SetFile("file", audioPath).
		SetFormData(map[string]string{
			"model":           t.model,
			"language":        t.language,
			"response_format": "vtt",
		}).
		Post("/audio/transcriptions")
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "speech", "transcribe", "request transcription", err)
	}
	if resp.StatusCode() != 200 {
		return "", services.Wrap(services.ErrExternalAPI, "speech", "transcribe", fmt.Sprintf("status %d: %s", resp.StatusCode(), resp.String()), nil)
	}
	transcript := resp.String()
	if strings.TrimSpace(transcript) == "" {
		return "", services.Wrap(services.ErrExternalAPI, "speech", "transcribe", "empty transcript returned", nil)
	}
	return transcript, nil
}
