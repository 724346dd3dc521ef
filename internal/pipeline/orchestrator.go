package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/study-gate/studygate/internal/errs"
	"github.com/study-gate/studygate/internal/lesson"
	"github.com/study-gate/studygate/internal/metrics"
	syncx "github.com/study-gate/studygate/internal/sync"
)

// Run processes one lesson end to end: fan out transcription over every page
// of every content document, aggregate the transcripts, synthesize the
// curriculum and persist it. A single page's failure is logged and skipped;
// a document-level failure aborts the run and moves the lesson to error.
// Re-invoking restarts from scratch (error -> processing is allowed).
func (o *Orchestrator) Run(ctx context.Context, lessonID string) (int, error) {
	start := time.Now()
	metrics.PipelineStarted()

	totalPages, err := o.run(ctx, lessonID)
	if err != nil {
		metrics.PipelineFinished("error", time.Since(start))
		if errs.KindOf(err) != errs.KindNoContent {
			if serr := o.store.SetLessonError(ctx, lessonID, err.Error()); serr != nil {
				log.Printf("pipeline: lesson %s: record error state: %v", lessonID, serr)
			}
		}
		return 0, err
	}
	metrics.PipelineFinished("ready", time.Since(start))
	return totalPages, nil
}

func (o *Orchestrator) run(ctx context.Context, lessonID string) (int, error) {
	if _, err := o.store.GetLesson(ctx, lessonID); err != nil {
		return 0, err
	}

	docs, err := o.store.ListLessonDocuments(ctx, lessonID)
	if err != nil {
		return 0, err
	}
	var content []lesson.Document
	totalPages := 0
	for _, d := range docs {
		if d.Category == lesson.DocContent && d.PageCount > 0 {
			content = append(content, d)
			totalPages += d.PageCount
		}
	}
	if len(content) == 0 {
		return 0, errs.NoContent("lesson has no content documents with pages")
	}

	o.milestone(ctx, lessonID, 10, "Preparing documents")
	if err := o.store.SetLessonTotalPages(ctx, lessonID, totalPages); err != nil {
		return 0, err
	}

	// Documents are processed sequentially; fan-out is per document and
	// bounded, so peak upstream concurrency is cfg.Workers.
	var transcripts []lesson.Transcript
	pageOffset := 0
	for _, doc := range content {
		ts, pages, err := o.processDocument(ctx, lessonID, doc, func(done, total int) {
			o.advisory(ctx, lessonID, 30, fmt.Sprintf("Transcribed page %d of %d", pageOffset+done, totalPages))
		})
		if err != nil {
			return 0, fmt.Errorf("document %s: %w", doc.ID, err)
		}
		// Shift page numbers so the aggregate is numbered 1..totalPages
		// across documents. The derived count keeps the numbering contiguous
		// when a document declared more pages than it renders.
		for i := range ts {
			ts[i].PageNumber += pageOffset
		}
		transcripts = append(transcripts, ts...)
		pageOffset += pages
	}
	if pageOffset != totalPages {
		totalPages = pageOffset
		if err := o.store.SetLessonTotalPages(ctx, lessonID, totalPages); err != nil {
			return 0, err
		}
	}
	o.milestone(ctx, lessonID, 50, fmt.Sprintf("Transcription complete (%d of %d pages)", len(transcripts), totalPages))

	o.milestone(ctx, lessonID, 80, "Generating curriculum")
	secs, qs := o.synthesize(ctx, lessonID, transcripts, totalPages)
	if err := o.store.ReplaceSections(ctx, lessonID, secs, qs); err != nil {
		return 0, err
	}

	msg := fmt.Sprintf("Ready: %d sections", len(secs))
	if len(secs) == 0 {
		msg = "Ready (no curriculum could be generated)"
	}
	o.milestone(ctx, lessonID, 100, msg)
	if err := o.store.SetLessonState(ctx, lessonID, lesson.StatusReady, 100, msg); err != nil {
		return 0, err
	}
	return totalPages, nil
}

// milestone writes the authoritative coarse progress update and logs it
// durably. Used between stages, never from concurrent workers.
func (o *Orchestrator) milestone(ctx context.Context, lessonID string, pct int, msg string) {
	if err := o.store.SetLessonState(ctx, lessonID, lesson.StatusProcessing, pct, msg); err != nil {
		log.Printf("pipeline: lesson %s: progress update: %v", lessonID, err)
	}
	if o.events != nil {
		if err := o.events.Append(ctx, syncx.Event{LessonID: lessonID, Type: "PipelineMilestone", Message: msg, Pct: pct}); err != nil {
			log.Printf("pipeline: lesson %s: event append: %v", lessonID, err)
		}
	}
}

// advisory writes the racy per-page progress message. Concurrent workers
// overwrite each other and the last writer wins; the message is informative
// only, the gate is "all workers settled".
func (o *Orchestrator) advisory(ctx context.Context, lessonID string, pct int, msg string) {
	if err := o.store.SetLessonState(ctx, lessonID, lesson.StatusProcessing, pct, msg); err != nil {
		log.Printf("pipeline: lesson %s: progress update: %v", lessonID, err)
	}
}

// aggregateTranscripts concatenates transcripts in page order, each prefixed
// with its page number. Pages that failed transcription are simply absent.
func aggregateTranscripts(ts []lesson.Transcript) string {
	var b strings.Builder
	for _, t := range ts {
		fmt.Fprintf(&b, "\n--- Page %d ---\n%s\n", t.PageNumber, t.Content)
	}
	return b.String()
}
