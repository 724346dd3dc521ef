// Package llm wraps the vision-capable completion service. All upstream
// failures are converted to errs.Upstream before they escape; callers never
// see a raw SDK error.
package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/study-gate/studygate/internal/errs"
	"github.com/study-gate/studygate/internal/metrics"
)

type Blob struct {
	Data     []byte
	MIMEType string
}

type Gemini struct {
	client  *genai.Client
	model   string
	limiter *rate.Limiter
}

func NewGemini(ctx context.Context, apiKey, model string, ratePerSec float64, burst int) (*Gemini, error) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	if burst < 1 {
		burst = 1
	}
	return &Gemini{
		client:  c,
		model:   model,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst),
	}, nil
}

// TranscribePage sends one page bitmap and returns the verbatim transcript.
// Non-text visual elements come back as bracketed descriptions (see prompts).
func (g *Gemini) TranscribePage(ctx context.Context, page Blob) (string, error) {
	parts := []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: page.MIMEType, Data: page.Data}},
		{Text: transcribeUserPrompt},
	}
	return g.generate(ctx, "transcribe", parts, &genai.GenerateContentConfig{
		SystemInstruction: systemContent(transcribeSystemPrompt),
	})
}

// SynthesizeCurriculum asks for the section/quiz structure as one JSON
// document. The caller is responsible for validating the result.
func (g *Gemini) SynthesizeCurriculum(ctx context.Context, transcript string, questionsPerSection int) (string, error) {
	parts := []*genai.Part{
		{Text: fmt.Sprintf(synthesizeUserPrompt, questionsPerSection, transcript)},
	}
	return g.generate(ctx, "synthesize", parts, &genai.GenerateContentConfig{
		SystemInstruction: systemContent(synthesizeSystemPrompt),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr[float32](0),
	})
}

// ExtractAnswerKey reads a set of answer-key page images and returns the
// extracted question-number to choice-letters mapping as raw JSON.
func (g *Gemini) ExtractAnswerKey(ctx context.Context, pages []Blob) (string, error) {
	parts := make([]*genai.Part, 0, len(pages)+1)
	for _, p := range pages {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: p.MIMEType, Data: p.Data}})
	}
	parts = append(parts, &genai.Part{Text: answerKeyUserPrompt})
	return g.generate(ctx, "answer_key", parts, &genai.GenerateContentConfig{
		SystemInstruction: systemContent(answerKeySystemPrompt),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr[float32](0),
	})
}

// ExtractQuestions digitizes a quiz transcript into raw question JSON.
func (g *Gemini) ExtractQuestions(ctx context.Context, transcript string) (string, error) {
	parts := []*genai.Part{
		{Text: fmt.Sprintf(extractUserPrompt, transcript)},
	}
	return g.generate(ctx, "extract_questions", parts, &genai.GenerateContentConfig{
		SystemInstruction: systemContent(extractSystemPrompt),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr[float32](0),
	})
}

func (g *Gemini) generate(ctx context.Context, call string, parts []*genai.Part, cfg *genai.GenerateContentConfig) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", errs.Upstream(err, "completion rate limiter")
	}
	start := time.Now()
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	metrics.ObserveCompletion(call, time.Since(start))
	if err != nil {
		return "", errs.Upstream(err, "completion call %s", call)
	}
	text := resp.Text()
	if text == "" {
		return "", errs.Upstream(nil, "completion call %s returned empty response", call)
	}
	return text, nil
}

func systemContent(text string) *genai.Content {
	return &genai.Content{Parts: []*genai.Part{{Text: text}}}
}
