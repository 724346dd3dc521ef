// Package pipeline drives the document-to-curriculum transformation: fan-out
// page transcription, curriculum synthesis, quiz extraction and answer-key
// reconciliation.
package pipeline

import (
	"context"

	"github.com/study-gate/studygate/internal/lesson"
	"github.com/study-gate/studygate/internal/llm"
	"github.com/study-gate/studygate/internal/storage"
	syncx "github.com/study-gate/studygate/internal/sync"
)

// Completion is the vision completion service as the pipeline sees it.
// *llm.Gemini satisfies it; tests use fakes.
type Completion interface {
	TranscribePage(ctx context.Context, page llm.Blob) (string, error)
	SynthesizeCurriculum(ctx context.Context, transcript string, questionsPerSection int) (string, error)
	ExtractAnswerKey(ctx context.Context, pages []llm.Blob) (string, error)
	ExtractQuestions(ctx context.Context, transcript string) (string, error)
}

// Renderer turns a source document into per-page blobs on disk.
type Renderer interface {
	PageCount(path string) (int, error)
	SplitPages(src, outDir string) ([]string, error)
}

// EventLog records pipeline milestones. May be nil.
type EventLog interface {
	Append(ctx context.Context, e syncx.Event) error
}

type Config struct {
	Workers             int // per-document fan-out bound
	QuestionsPerSection int
	DefaultThreshold    int
	MaxSynthesisInput   int // bytes of transcript sent to the model
}

func (c *Config) defaults() {
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.QuestionsPerSection <= 0 {
		c.QuestionsPerSection = 10
	}
	if c.DefaultThreshold <= 0 {
		c.DefaultThreshold = 70
	}
	if c.MaxSynthesisInput <= 0 {
		c.MaxSynthesisInput = 400_000
	}
}

type Orchestrator struct {
	store    lesson.Store
	blobs    storage.BlobStore
	llm      Completion
	renderer Renderer
	events   EventLog
	cfg      Config
}

func New(store lesson.Store, blobs storage.BlobStore, completion Completion, renderer Renderer, events EventLog, cfg Config) *Orchestrator {
	cfg.defaults()
	return &Orchestrator{
		store:    store,
		blobs:    blobs,
		llm:      completion,
		renderer: renderer,
		events:   events,
		cfg:      cfg,
	}
}
