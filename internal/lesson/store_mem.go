package lesson

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/study-gate/studygate/internal/errs"
)

// memoryStore backs tests and dev runs without a database file.
type memoryStore struct {
	mu          sync.RWMutex
	lessons     map[string]Lesson
	documents   map[string]Document
	transcripts map[string]map[int]Transcript // documentID -> page -> transcript
	sections    map[string][]Section          // lessonID -> ordered sections
	questions   map[string][]Question         // owner (section or set) id -> ordered questions
	sets        map[string]QuizSet
}

func NewInMemoryStore() Store {
	return &memoryStore{
		lessons:     map[string]Lesson{},
		documents:   map[string]Document{},
		transcripts: map[string]map[int]Transcript{},
		sections:    map[string][]Section{},
		questions:   map[string][]Question{},
		sets:        map[string]QuizSet{},
	}
}

func (m *memoryStore) CreateLesson(_ context.Context, l Lesson) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.CreatedAt == 0 {
		l.CreatedAt = time.Now().Unix()
	}
	m.lessons[l.ID] = l
	return nil
}

func (m *memoryStore) GetLesson(_ context.Context, id string) (Lesson, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.lessons[id]
	if !ok {
		return Lesson{}, errs.NotFound("lesson not found")
	}
	return l, nil
}

func (m *memoryStore) ListLessons(_ context.Context, ownerID string) ([]Lesson, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Lesson
	for _, l := range m.lessons {
		if l.OwnerID == ownerID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, nil
}

func (m *memoryStore) SetLessonState(_ context.Context, id string, status Status, pct int, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lessons[id]
	if !ok {
		return errs.NotFound("lesson not found")
	}
	l.Status = status
	l.ProgressPct = pct
	l.ProgressMsg = msg
	m.lessons[id] = l
	return nil
}

func (m *memoryStore) SetLessonError(_ context.Context, id, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lessons[id]
	if !ok {
		return errs.NotFound("lesson not found")
	}
	l.Status = StatusError
	l.ErrorMsg = msg
	m.lessons[id] = l
	return nil
}

func (m *memoryStore) SetLessonTotalPages(_ context.Context, id string, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lessons[id]
	if !ok {
		return errs.NotFound("lesson not found")
	}
	l.TotalPages = n
	m.lessons[id] = l
	return nil
}

func (m *memoryStore) CreateDocument(_ context.Context, d Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.CreatedAt == 0 {
		d.CreatedAt = time.Now().Unix()
	}
	m.documents[d.ID] = d
	return nil
}

func (m *memoryStore) GetDocument(_ context.Context, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.documents[id]
	if !ok {
		return Document{}, errs.NotFound("document not found")
	}
	return d, nil
}

func (m *memoryStore) ListLessonDocuments(_ context.Context, lessonID string) ([]Document, error) {
	return m.listDocuments(func(d Document) bool { return d.LessonID == lessonID }), nil
}

func (m *memoryStore) ListSetDocuments(_ context.Context, setID string) ([]Document, error) {
	return m.listDocuments(func(d Document) bool { return d.SetID == setID }), nil
}

func (m *memoryStore) listDocuments(match func(Document) bool) []Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Document
	for _, d := range m.documents {
		if match(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out
}

func (m *memoryStore) SetDocumentPageCount(_ context.Context, id string, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[id]
	if !ok {
		return errs.NotFound("document not found")
	}
	d.PageCount = n
	m.documents[id] = d
	return nil
}

func (m *memoryStore) UpsertTranscript(_ context.Context, t Transcript) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pages, ok := m.transcripts[t.DocumentID]
	if !ok {
		pages = map[int]Transcript{}
		m.transcripts[t.DocumentID] = pages
	}
	pages[t.PageNumber] = t
	return nil
}

func (m *memoryStore) ListTranscripts(_ context.Context, documentID string) ([]Transcript, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pages := m.transcripts[documentID]
	out := make([]Transcript, 0, len(pages))
	for _, t := range pages {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PageNumber < out[j].PageNumber })
	return out, nil
}

func (m *memoryStore) ReplaceSections(_ context.Context, lessonID string, secs []Section, qs []Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, old := range m.sections[lessonID] {
		delete(m.questions, old.ID)
	}
	m.sections[lessonID] = append([]Section(nil), secs...)
	for _, q := range qs {
		m.questions[q.SectionID] = append(m.questions[q.SectionID], q)
	}
	return nil
}

func (m *memoryStore) ListSections(_ context.Context, lessonID string) ([]Section, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Section(nil), m.sections[lessonID]...), nil
}

func (m *memoryStore) GetSection(_ context.Context, id string) (Section, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, secs := range m.sections {
		for _, sec := range secs {
			if sec.ID == id {
				return sec, nil
			}
		}
	}
	return Section{}, errs.NotFound("section not found")
}

func (m *memoryStore) ListSectionQuestions(_ context.Context, sectionID string) ([]Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Question(nil), m.questions[sectionID]...), nil
}

func (m *memoryStore) CreateQuizSet(_ context.Context, q QuizSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q.CreatedAt == 0 {
		q.CreatedAt = time.Now().Unix()
	}
	m.sets[q.ID] = q
	return nil
}

func (m *memoryStore) GetQuizSet(_ context.Context, id string) (QuizSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.sets[id]
	if !ok {
		return QuizSet{}, errs.NotFound("quiz set not found")
	}
	return q, nil
}

func (m *memoryStore) SetQuizSetState(_ context.Context, id string, status Status, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.sets[id]
	if !ok {
		return errs.NotFound("quiz set not found")
	}
	q.Status = status
	q.ErrorMsg = errMsg
	m.sets[id] = q
	return nil
}

func (m *memoryStore) ReplaceSetQuestions(_ context.Context, setID string, qs []Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions[setID] = append([]Question(nil), qs...)
	return nil
}

func (m *memoryStore) ListSetQuestions(_ context.Context, setID string) ([]Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Question(nil), m.questions[setID]...), nil
}

func (m *memoryStore) UpdateQuestionAnswers(_ context.Context, questionID string, correct []int, multi bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for owner, qs := range m.questions {
		for i, q := range qs {
			if q.ID == questionID {
				q.Correct = append([]int(nil), correct...)
				q.Multi = multi
				m.questions[owner][i] = q
				return nil
			}
		}
	}
	return errs.NotFound("question not found")
}
