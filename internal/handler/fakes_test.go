package handler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
)

type fakeExams struct {
	exam model.Exam
}

func (f *fakeExams) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	if id != f.exam.ID {
		return nil, pgx.ErrNoRows
	}
	e := f.exam
	return &e, nil
}

func (f *fakeExams) ListIDs(context.Context) ([]uuid.UUID, error) {
	return []uuid.UUID{f.exam.ID}, nil
}

// fakeSets serves a chain of sets with three questions each; question j's
// correct option is j.
type fakeSets struct {
	examID    uuid.UUID
	sets      []model.QuestionSet
	questions map[uuid.UUID][]model.Question
	getErr    error
}

func newFakeSets(examID uuid.UUID, n int) *fakeSets {
	f := &fakeSets{examID: examID, questions: make(map[uuid.UUID][]model.Question)}
	for i := 1; i <= n; i++ {
		set := model.QuestionSet{
			ID:               uuid.New(),
			ParentExamID:     examID,
			Title:            "Set",
			SetNumber:        i,
			TimeLimitMinutes: 30,
			TotalQuestions:   3,
		}
		f.sets = append(f.sets, set)
		for j := 0; j < 3; j++ {
			f.questions[set.ID] = append(f.questions[set.ID], model.Question{
				ID:                 uuid.New(),
				SetID:              set.ID,
				Text:               "Question",
				Options:            []string{"A", "B", "C"},
				CorrectOptionIndex: j,
				OrderNum:           j + 1,
			})
		}
	}
	return f
}

func (f *fakeSets) GetByID(_ context.Context, id uuid.UUID) (*model.QuestionSet, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, s := range f.sets {
		if s.ID == id {
			set := s
			return &set, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeSets) ListByExam(_ context.Context, examID uuid.UUID) ([]model.QuestionSet, error) {
	if examID != f.examID {
		return nil, nil
	}
	return append([]model.QuestionSet(nil), f.sets...), nil
}

func (f *fakeSets) ChainDefinition(_ context.Context, examID uuid.UUID) (*model.ChainDefinition, error) {
	if examID != f.examID {
		return nil, pgx.ErrNoRows
	}
	def := &model.ChainDefinition{ExamID: examID, ChainLength: len(f.sets)}
	for _, s := range f.sets {
		def.Sets = append(def.Sets, model.ChainSet{SetNumber: s.SetNumber, SetID: s.ID})
	}
	return def, nil
}

func (f *fakeSets) ListBySet(_ context.Context, setID uuid.UUID) ([]model.Question, error) {
	return append([]model.Question(nil), f.questions[setID]...), nil
}

type fakeEntitlements struct {
	granted bool
}

func (f fakeEntitlements) HasAccess(context.Context, int, uuid.UUID) (bool, error) {
	return f.granted, nil
}

type fakeAttempts struct {
	mu       sync.Mutex
	attempts map[uuid.UUID]*model.Attempt
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
	if f.attempts == nil {
		f.attempts = make(map[uuid.UUID]*model.Attempt)
	}
	if _, ok := f.attempts[a.SetID]; ok {
		return pgx.ErrNoRows
	}
	a.ID = uuid.New()
	a.StartedAt = time.Now()
	a.Status = model.AttemptStatusInProgress
	cp := *a
	f.attempts[a.SetID] = &cp
	return nil
}

type fakeSubmissions struct {
	mu      sync.Mutex
	records []model.SubmissionRecord
}

func (f *fakeSubmissions) insert(rec *model.SubmissionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
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

func (f *fakeSubmissions) Exists(ctx context.Context, setID uuid.UUID, studentID int) (bool, error) {
	rec, _ := f.GetBySetAndStudent(ctx, setID, studentID)
	return rec != nil, nil
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

type fakeAnswers struct{}

func (fakeAnswers) ListBySetAndStudent(context.Context, uuid.UUID, int) (map[uuid.UUID]int, error) {
	return nil, nil
}
