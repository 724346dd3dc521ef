package pipeline

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/study-gate/studygate/internal/errs"
	"github.com/study-gate/studygate/internal/llm"
)

// KeyPage is one answer-key page image supplied by the caller.
type KeyPage struct {
	PageNumber int
	Data       []byte
	MIMEType   string
}

type ReconcileSummary struct {
	TotalQuestions   int `json:"totalQuestions"`
	ExtractedAnswers int `json:"extractedAnswers"`
	Updated          int `json:"updated"`
	SkippedMissing   int `json:"skippedMissing"`
	SkippedInvalid   int `json:"skippedInvalid"`
}

type keyExtraction struct {
	Answers []keyAnswer `json:"answers"`
}

type keyAnswer struct {
	Number  int      `json:"number"`
	Options []string `json:"options"`
}

// ReconcileAnswerKey overrides a set's correct answers from OCR'd answer-key
// pages. For each existing question, ordered by position, the extracted
// entry (keyed by 1-based question number) is applied only when all of its
// labels are valid choice labels for that question; otherwise the question
// is left untouched and counted as skipped. Questions are never deleted or
// reordered, so reconciling the same pages twice yields the same result.
func (o *Orchestrator) ReconcileAnswerKey(ctx context.Context, setID string, pages []KeyPage) (ReconcileSummary, error) {
	questions, err := o.store.ListSetQuestions(ctx, setID)
	if err != nil {
		return ReconcileSummary{}, err
	}
	summary := ReconcileSummary{TotalQuestions: len(questions)}
	if len(questions) == 0 {
		return summary, nil
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].PageNumber < pages[j].PageNumber })
	blobs := make([]llm.Blob, 0, len(pages))
	for _, p := range pages {
		blobs = append(blobs, llm.Blob{Data: p.Data, MIMEType: p.MIMEType})
	}

	raw, err := o.llm.ExtractAnswerKey(ctx, blobs)
	if err != nil {
		return ReconcileSummary{}, err
	}
	var ext keyExtraction
	if err := json.Unmarshal([]byte(stripFences(raw)), &ext); err != nil {
		return ReconcileSummary{}, errs.SynthesisParse(raw, err)
	}

	extracted := make(map[int][]string, len(ext.Answers))
	for _, a := range ext.Answers {
		if a.Number < 1 || len(a.Options) == 0 {
			continue
		}
		extracted[a.Number] = normalizeLabels(a.Options)
	}
	summary.ExtractedAnswers = len(extracted)

	for i, q := range questions {
		labels, ok := extracted[i+1]
		if !ok {
			summary.SkippedMissing++
			continue
		}
		correct, valid := labelsToIndices(labels, len(q.Choices))
		if !valid {
			summary.SkippedInvalid++
			continue
		}
		if err := o.store.UpdateQuestionAnswers(ctx, q.ID, correct, len(correct) > 1); err != nil {
			return ReconcileSummary{}, err
		}
		summary.Updated++
	}
	return summary, nil
}

// normalizeLabels uppercases, trims and de-duplicates labels, preserving the
// order of first occurrence.
func normalizeLabels(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		u := strings.ToUpper(strings.TrimSpace(l))
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// labelsToIndices maps choice letters to 0-based indices. All labels must be
// single letters naming a choice the question actually has; otherwise the
// extraction is invalid for this question.
func labelsToIndices(labels []string, choiceCount int) ([]int, bool) {
	if len(labels) == 0 {
		return nil, false
	}
	out := make([]int, 0, len(labels))
	for _, l := range labels {
		if len(l) != 1 || l[0] < 'A' || l[0] > 'Z' {
			return nil, false
		}
		idx := int(l[0] - 'A')
		if idx >= choiceCount {
			return nil, false
		}
		out = append(out, idx)
	}
	sort.Ints(out)
	return out, true
}
