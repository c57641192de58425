package pipeline

import (
	"context"
	"fmt"
	"strings"

	"resty.dev/v3"

	"sluice/internal/config"
	"sluice/internal/services"
)

// TextProcessor performs grammar correction and translation of caption text
// through a chat-completions API.
type TextProcessor struct {
	client           *resty.Client
	grammarModel     string
	translationModel string
}

func NewTextProcessor(speech config.Speech, translation config.Translation) *TextProcessor {
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(speech.BaseURL, "/"))
	client.SetAuthToken(speech.APIKey)
	return &TextProcessor{
		client:           client,
		grammarModel:     translation.GrammarModel,
		translationModel: translation.TranslationModel,
	}
}

func (p *TextProcessor) Close() error {
	return p.client.Close()
}

// CorrectGrammar fixes transcription artifacts in the captions without
// changing cue timing.
func (p *TextProcessor) CorrectGrammar(ctx context.Context, vtt string) (string, error) {
	prompt := "Correct grammar, spelling, and transcription mistakes in the following WebVTT captions. " +
		"Keep every timestamp and cue identifier exactly as is. Return only the corrected WebVTT."
	return p.complete(ctx, "grammar", p.grammarModel, prompt, vtt)
}

// Translate renders the captions into the target language, preserving cue
// structure. lang is a BCP 47 tag like "ru" or "ar".
func (p *TextProcessor) Translate(ctx context.Context, vtt, lang string) (string, error) {
	prompt := fmt.Sprintf("Translate the text of the following WebVTT captions into %s. "+
		"Keep every timestamp and cue identifier exactly as is. Return only the translated WebVTT.", lang)
	return p.complete(ctx, "translate", p.translationModel, prompt, vtt)
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (p *TextProcessor) complete(ctx context.Context, operation, model, system, input string) (string, error) {
	var result chatResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model: model,
			Messages: []chatMessage{
				{Role: "system", Content: system},
				{Role: "user", Content: input},
			},
		}).
		SetResult(&result).
		Post("/chat/completions")
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "text", operation, "request completion", err)
	}
	if resp.StatusCode() != 200 {
		return "", services.Wrap(services.ErrExternalAPI, "text", operation, fmt.Sprintf("status %d: %s", resp.StatusCode(), resp.String()), nil)
	}
	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return "", services.Wrap(services.ErrExternalAPI, "text", operation, "empty completion returned", nil)
	}
	return result.Choices[0].Message.Content, nil
}
