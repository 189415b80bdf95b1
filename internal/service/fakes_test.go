package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// fakeChain serves one exam with numbered sets, three questions each.
type fakeChain struct {
	exam      model.Exam
	sets      []model.QuestionSet
	questions map[uuid.UUID][]model.Question
	def       *model.ChainDefinition

	mu    sync.Mutex
	loads int
}

func newFakeChain(examID uuid.UUID, n, minutes int) *fakeChain {
	f := &fakeChain{
		exam:      model.Exam{ID: examID, Title: "Tryout", Kind: model.ExamKindChain},
		questions: make(map[uuid.UUID][]model.Question),
	}
	for i := 1; i <= n; i++ {
		set := model.QuestionSet{
			ID:               uuid.New(),
			ParentExamID:     examID,
			Title:            "Set",
			SetNumber:        i,
			TimeLimitMinutes: minutes,
			TotalQuestions:   3,
		}
		f.sets = append(f.sets, set)
		for j := 0; j < 3; j++ {
			f.questions[set.ID] = append(f.questions[set.ID], model.Question{
				ID:                 uuid.New(),
				SetID:              set.ID,
				Text:               "Question",
				Options:            []string{"A", "B", "C"},
				CorrectOptionIndex: j % 3,
				OrderNum:           j + 1,
			})
		}
	}
	return f
}

func (f *fakeChain) GetByID(_ context.Context, id uuid.UUID) (*model.QuestionSet, error) {
	f.mu.Lock()
	f.loads++
	f.mu.Unlock()
	for _, s := range f.sets {
		if s.ID == id {
			set := s
			return &set, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeChain) ListByExam(_ context.Context, examID uuid.UUID) ([]model.QuestionSet, error) {
	if examID != f.exam.ID {
		return nil, nil
	}
	return append([]model.QuestionSet(nil), f.sets...), nil
}

func (f *fakeChain) ChainDefinition(_ context.Context, examID uuid.UUID) (*model.ChainDefinition, error) {
	if f.def != nil {
		return f.def, nil
	}
	if examID != f.exam.ID {
		return nil, pgx.ErrNoRows
	}
	def := &model.ChainDefinition{ExamID: examID, ChainLength: len(f.sets)}
	for _, s := range f.sets {
		def.Sets = append(def.Sets, model.ChainSet{SetNumber: s.SetNumber, SetID: s.ID})
	}
	return def, nil
}

func (f *fakeChain) ListBySet(_ context.Context, setID uuid.UUID) ([]model.Question, error) {
	return append([]model.Question(nil), f.questions[setID]...), nil
}

func (f *fakeChain) dbLoads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

type fakeExams struct {
	exams map[uuid.UUID]model.Exam
}

func (f *fakeExams) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	e, ok := f.exams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &e, nil
}

func (f *fakeExams) ListIDs(context.Context) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(f.exams))
	for id := range f.exams {
		ids = append(ids, id)
	}
	return ids, nil
}

type fakeSubmissions struct {
	mu      sync.Mutex
	records []model.SubmissionRecord
	err     error
}

func (f *fakeSubmissions) insert(rec *model.SubmissionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, r := range f.records {
		if r.StudentID == rec.StudentID && r.SetID == rec.SetID {
			return repository.ErrDuplicateSubmission
		}
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	f.records = append(f.records, *rec)
	return nil
}

func (f *fakeSubmissions) SubmitResult(_ context.Context, setID uuid.UUID, rec *model.SubmissionRecord) error {
	rec.SetID = setID
	return f.insert(rec)
}

func (f *fakeSubmissions) SubmitChainSetResult(_ context.Context, examID uuid.UUID, setNumber int, rec *model.SubmissionRecord) error {
	rec.ExamID = examID
	rec.SetNumber = setNumber
	return f.insert(rec)
}

func (f *fakeSubmissions) Exists(_ context.Context, setID uuid.UUID, studentID int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.SetID == setID && r.StudentID == studentID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeSubmissions) GetBySetAndStudent(_ context.Context, setID uuid.UUID, studentID int) (*model.SubmissionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.SetID == setID && r.StudentID == studentID {
			rec := r
			return &rec, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeSubmissions) ListByExamAndStudent(_ context.Context, examID uuid.UUID, studentID int) ([]model.SubmissionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.SubmissionRecord
	for _, r := range f.records {
		if r.ExamID == examID && r.StudentID == studentID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeSubmissions) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type fakeEntitlements struct {
	mu      sync.Mutex
	granted map[uuid.UUID]bool
	calls   int
}

func (f *fakeEntitlements) HasAccess(_ context.Context, _ int, examID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.granted[examID], nil
}

type fakeAttempts struct {
	mu       sync.Mutex
	attempts map[uuid.UUID]*model.Attempt
	now      time.Time
	creates  int
}

func newFakeAttempts(now time.Time) *fakeAttempts {
	return &fakeAttempts{attempts: make(map[uuid.UUID]*model.Attempt), now: now}
}

func (f *fakeAttempts) GetBySetAndStudent(_ context.Context, setID uuid.UUID, _ int) (*model.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[setID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAttempts) Create(_ context.Context, a *model.Attempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if _, ok := f.attempts[a.SetID]; ok {
		return pgx.ErrNoRows
	}
	a.ID = uuid.New()
	a.StartedAt = f.now
	a.Status = model.AttemptStatusInProgress
	cp := *a
	f.attempts[a.SetID] = &cp
	return nil
}

type fakeAnswers struct {
	saved map[uuid.UUID]int
}

func (f *fakeAnswers) ListBySetAndStudent(context.Context, uuid.UUID, int) (map[uuid.UUID]int, error) {
	return f.saved, nil
}
