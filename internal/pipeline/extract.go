package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/study-gate/studygate/internal/errs"
	"github.com/study-gate/studygate/internal/lesson"
	"github.com/study-gate/studygate/internal/metrics"
)

type extractedQuestions struct {
	Questions []extractedQuestion `json:"questions"`
}

type extractedQuestion struct {
	Prompt       string   `json:"question"`
	Choices      []string `json:"choices"`
	CorrectIndex *int     `json:"correctIndex"` // absent or -1 when the document does not mark the answer
	Explanation  string   `json:"explanation,omitempty"`
}

// RunSetExtraction digitizes a quiz set: transcribe the set's documents and
// extract their questions. Mirrors the lesson pipeline's failure semantics:
// a page failure is skipped, a document failure is fatal, and an extraction
// parse failure degrades to zero questions with the set still ready.
func (o *Orchestrator) RunSetExtraction(ctx context.Context, setID string) error {
	start := time.Now()
	metrics.PipelineStarted()
	err := o.runSetExtraction(ctx, setID)
	if err != nil {
		metrics.PipelineFinished("error", time.Since(start))
		if serr := o.store.SetQuizSetState(ctx, setID, lesson.StatusError, err.Error()); serr != nil {
			log.Printf("pipeline: set %s: record error state: %v", setID, serr)
		}
		return err
	}
	metrics.PipelineFinished("ready", time.Since(start))
	return nil
}

func (o *Orchestrator) runSetExtraction(ctx context.Context, setID string) error {
	if _, err := o.store.GetQuizSet(ctx, setID); err != nil {
		return err
	}
	docs, err := o.store.ListSetDocuments(ctx, setID)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return errs.NoContent("quiz set has no documents")
	}
	if err := o.store.SetQuizSetState(ctx, setID, lesson.StatusProcessing, ""); err != nil {
		return err
	}

	var transcripts []lesson.Transcript
	pageOffset := 0
	for _, doc := range docs {
		ts, pages, err := o.processDocument(ctx, "", doc, nil)
		if err != nil {
			return fmt.Errorf("document %s: %w", doc.ID, err)
		}
		for i := range ts {
			ts[i].PageNumber += pageOffset
		}
		transcripts = append(transcripts, ts...)
		pageOffset += pages
	}

	qs := o.extractQuestions(ctx, setID, transcripts)
	if err := o.store.ReplaceSetQuestions(ctx, setID, qs); err != nil {
		return err
	}
	return o.store.SetQuizSetState(ctx, setID, lesson.StatusReady, "")
}

func (o *Orchestrator) extractQuestions(ctx context.Context, setID string, transcripts []lesson.Transcript) []lesson.Question {
	if len(transcripts) == 0 {
		log.Printf("pipeline: set %s: no transcripts, skipping extraction", setID)
		return nil
	}
	input := truncateTranscript(aggregateTranscripts(transcripts), o.cfg.MaxSynthesisInput)
	raw, err := o.llm.ExtractQuestions(ctx, input)
	if err != nil {
		log.Printf("pipeline: WARN: set %s: extraction call failed, no questions: %v", setID, err)
		return nil
	}

	var ext extractedQuestions
	if err := json.Unmarshal([]byte(stripFences(raw)), &ext); err != nil {
		log.Printf("pipeline: WARN: set %s: %v", setID, errs.SynthesisParse(raw, err))
		return nil
	}

	var qs []lesson.Question
	for i, eq := range ext.Questions {
		if eq.Prompt == "" || len(eq.Choices) < 2 {
			log.Printf("pipeline: WARN: set %s: dropping malformed question %d", setID, i)
			continue
		}
		var correct []int
		if idx := eq.CorrectIndex; idx != nil && *idx >= 0 && *idx < len(eq.Choices) {
			correct = []int{*idx}
		}
		qs = append(qs, lesson.Question{
			ID:          uuid.NewString(),
			SetID:       setID,
			Position:    i,
			Prompt:      eq.Prompt,
			Choices:     eq.Choices,
			Correct:     correct,
			Explanation: eq.Explanation,
		})
	}
	return qs
}
