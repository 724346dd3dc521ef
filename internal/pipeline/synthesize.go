package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/study-gate/studygate/internal/errs"
	"github.com/study-gate/studygate/internal/lesson"
)

// Curriculum is the strict schema the synthesis call must conform to.
type Curriculum struct {
	Sections []CurriculumSection `json:"sections"`
}

type CurriculumSection struct {
	Title     string               `json:"title"`
	StartPage int                  `json:"startPage"`
	EndPage   int                  `json:"endPage"`
	Summary   string               `json:"summary"`
	Questions []CurriculumQuestion `json:"questions"`
}

type CurriculumQuestion struct {
	Prompt         string   `json:"question"`
	Choices        []string `json:"choices"`
	CorrectIndex   *int     `json:"correctIndex,omitempty"`
	CorrectIndices []int    `json:"correctIndices,omitempty"`
	Explanation    string   `json:"explanation,omitempty"`
}

// synthesize turns the aggregated transcript into persisted sections and
// questions. Any failure here (upstream call, decode, schema violation)
// degrades to zero sections with a warning; the lesson still reaches ready.
func (o *Orchestrator) synthesize(ctx context.Context, lessonID string, transcripts []lesson.Transcript, totalPages int) ([]lesson.Section, []lesson.Question) {
	if len(transcripts) == 0 {
		log.Printf("pipeline: lesson %s: no transcripts, skipping synthesis", lessonID)
		return nil, nil
	}

	input := truncateTranscript(aggregateTranscripts(transcripts), o.cfg.MaxSynthesisInput)
	raw, err := o.llm.SynthesizeCurriculum(ctx, input, o.cfg.QuestionsPerSection)
	if err != nil {
		log.Printf("pipeline: WARN: lesson %s: synthesis call failed, no curriculum: %v", lessonID, err)
		return nil, nil
	}

	cur, err := parseCurriculum(raw, totalPages)
	if err != nil {
		log.Printf("pipeline: WARN: lesson %s: %v", lessonID, err)
		return nil, nil
	}

	return buildSections(lessonID, cur, o.cfg.DefaultThreshold)
}

// truncateTranscript deterministically bounds the synthesis input: inputs at
// or under max pass through byte-identical; longer inputs are cut at the last
// page delimiter before max so the model never sees a half page.
func truncateTranscript(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	if i := strings.LastIndex(cut, "\n--- Page "); i > 0 {
		return cut[:i]
	}
	return cut
}

// parseCurriculum is the strict decode of the model's output into the
// Curriculum schema. The returned error carries the raw output and the
// reason; callers treat it as the documented non-fatal degradation.
func parseCurriculum(raw string, totalPages int) (*Curriculum, error) {
	var cur Curriculum
	if err := json.Unmarshal([]byte(stripFences(raw)), &cur); err != nil {
		return nil, errs.SynthesisParse(raw, err)
	}
	if err := validateCurriculum(&cur, totalPages); err != nil {
		return nil, errs.SynthesisParse(raw, err)
	}
	return &cur, nil
}

// validateCurriculum enforces the structural invariants: at least one
// section, ordered contiguous inclusive page ranges covering [1, totalPages]
// exactly, and well-formed questions. Violations are a synthesis defect and
// are not silently corrected.
func validateCurriculum(cur *Curriculum, totalPages int) error {
	if len(cur.Sections) == 0 {
		return fmt.Errorf("no sections")
	}
	for i, sec := range cur.Sections {
		if strings.TrimSpace(sec.Title) == "" {
			return fmt.Errorf("section %d: empty title", i)
		}
		if sec.StartPage < 1 || sec.EndPage < sec.StartPage {
			return fmt.Errorf("section %d: bad page range [%d,%d]", i, sec.StartPage, sec.EndPage)
		}
		if i == 0 && sec.StartPage != 1 {
			return fmt.Errorf("coverage: first section starts at page %d", sec.StartPage)
		}
		if i > 0 && sec.StartPage != cur.Sections[i-1].EndPage+1 {
			return fmt.Errorf("coverage: gap or overlap between sections %d and %d", i-1, i)
		}
		if len(sec.Questions) == 0 {
			return fmt.Errorf("section %d: no questions", i)
		}
		for j, q := range sec.Questions {
			if err := validateQuestion(q); err != nil {
				return fmt.Errorf("section %d question %d: %w", i, j, err)
			}
		}
	}
	if last := cur.Sections[len(cur.Sections)-1]; totalPages > 0 && last.EndPage != totalPages {
		return fmt.Errorf("coverage: last section ends at page %d of %d", last.EndPage, totalPages)
	}
	return nil
}

func validateQuestion(q CurriculumQuestion) error {
	if strings.TrimSpace(q.Prompt) == "" {
		return fmt.Errorf("empty prompt")
	}
	if len(q.Choices) < 2 {
		return fmt.Errorf("%d choices", len(q.Choices))
	}
	idxs := q.correct()
	if len(idxs) == 0 {
		return fmt.Errorf("no correct answer")
	}
	for _, idx := range idxs {
		if idx < 0 || idx >= len(q.Choices) {
			return fmt.Errorf("correct index %d out of range", idx)
		}
	}
	return nil
}

// correct normalizes the single/multi answer representations.
func (q CurriculumQuestion) correct() []int {
	if len(q.CorrectIndices) > 0 {
		return q.CorrectIndices
	}
	if q.CorrectIndex != nil {
		return []int{*q.CorrectIndex}
	}
	return nil
}

func buildSections(lessonID string, cur *Curriculum, threshold int) ([]lesson.Section, []lesson.Question) {
	secs := make([]lesson.Section, 0, len(cur.Sections))
	var qs []lesson.Question
	for i, cs := range cur.Sections {
		sec := lesson.Section{
			ID:         uuid.NewString(),
			LessonID:   lessonID,
			OrderIndex: i,
			Title:      cs.Title,
			StartPage:  cs.StartPage,
			EndPage:    cs.EndPage,
			Summary:    cs.Summary,
			Threshold:  threshold,
		}
		secs = append(secs, sec)
		for j, cq := range cs.Questions {
			correct := cq.correct()
			qs = append(qs, lesson.Question{
				ID:          uuid.NewString(),
				SectionID:   sec.ID,
				Position:    j,
				Prompt:      cq.Prompt,
				Choices:     cq.Choices,
				Correct:     correct,
				Explanation: cq.Explanation,
				Multi:       len(correct) > 1,
			})
		}
	}
	return secs, qs
}

// stripFences tolerates models that wrap JSON output in a markdown code
// fence despite the JSON response MIME type.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
