package service

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-adaptive/internal/adaptive"
	"github.com/stemsi/exstem-adaptive/internal/model"
	"github.com/stemsi/exstem-adaptive/internal/repository"
)

// fixedRand always returns the same offset, clamped to the requested range.
type fixedRand int

func (f fixedRand) IntN(n int) int {
	if int(f) >= n {
		return n - 1
	}
	return int(f)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeQuestions struct {
	pool    []model.Question
	log     *fakeAssessments
	targets []int
	// findErr fails the next FindClosest call once.
	findErr error
}

func (f *fakeQuestions) GetByID(_ context.Context, id uuid.UUID) (*model.Question, error) {
	for i := range f.pool {
		if f.pool[i].ID == id {
			q := f.pool[i]
			return &q, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeQuestions) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Question, error) {
	var out []model.Question
	for _, id := range ids {
		if q, err := f.GetByID(ctx, id); err == nil {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (f *fakeQuestions) FindClosest(_ context.Context, query adaptive.SelectionQuery) (*model.Question, error) {
	f.targets = append(f.targets, query.Target)
	if err := f.findErr; err != nil {
		f.findErr = nil
		return nil, err
	}
	return adaptive.SelectClosest(f.pool, query, f.log.respondedIDs(query.AssessmentID), fixedRand(0)), nil
}

type fakeAssessments struct {
	mu          sync.Mutex
	assessments map[uuid.UUID]*model.Assessment
	responses   map[uuid.UUID][]model.AssessmentResponse
	latest      map[[2]int]int
	// finalizeErr fails the next Finalize call once.
	finalizeErr error
}

func newFakeAssessments() *fakeAssessments {
	return &fakeAssessments{
		assessments: make(map[uuid.UUID]*model.Assessment),
		responses:   make(map[uuid.UUID][]model.AssessmentResponse),
		latest:      make(map[[2]int]int),
	}
}

func (f *fakeAssessments) Create(_ context.Context, a *model.Assessment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.ID = uuid.New()
	a.Status = model.AssessmentStatusInProgress
	c := *a
	f.assessments[a.ID] = &c
	return nil
}

func (f *fakeAssessments) GetByID(_ context.Context, id uuid.UUID) (*model.Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assessments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *a
	return &c, nil
}

func (f *fakeAssessments) LatestScore(_ context.Context, studentID, subjectID, _ int) (*int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.latest[[2]int{studentID, subjectID}]; ok {
		return &s, nil
	}
	return nil, nil
}

func (f *fakeAssessments) InsertResponse(_ context.Context, resp *model.AssessmentResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.responses[resp.AssessmentID] {
		if r.QuestionOrder == resp.QuestionOrder {
			return repository.ErrDuplicate
		}
	}
	resp.ID = int64(len(f.responses[resp.AssessmentID]) + 1)
	f.responses[resp.AssessmentID] = append(f.responses[resp.AssessmentID], *resp)
	return nil
}

func (f *fakeAssessments) ListResponses(_ context.Context, id uuid.UUID) ([]model.AssessmentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.responses[id]), nil
}

func (f *fakeAssessments) Finalize(_ context.Context, id uuid.UUID, score, correct, duration int, completedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.finalizeErr; err != nil {
		f.finalizeErr = nil
		return err
	}
	a, ok := f.assessments[id]
	if !ok || a.Status != model.AssessmentStatusInProgress {
		return repository.ErrNotFound
	}
	a.Status = model.AssessmentStatusCompleted
	a.RITScore = &score
	a.CorrectAnswers = &correct
	a.DurationMinutes = &duration
	a.CompletedAt = &completedAt
	return nil
}

func (f *fakeAssessments) respondedIDs(id uuid.UUID) []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for _, r := range f.responses[id] {
		ids = append(ids, r.QuestionID)
	}
	return ids
}

type fakeConfigs map[[2]int]model.AssessmentConfiguration

func (f fakeConfigs) Get(_ context.Context, gradeID, subjectID int) (*model.AssessmentConfiguration, error) {
	c, ok := f[[2]int{gradeID, subjectID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

type fakeAssignments map[uuid.UUID]*model.Assignment

func (f fakeAssignments) GetByID(_ context.Context, id uuid.UUID) (*model.Assignment, error) {
	a, ok := f[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return a, nil
}

type completionCall struct {
	AssignmentID uuid.UUID
	StudentID    int
}

type fakeCompletions struct {
	mu    sync.Mutex
	calls []completionCall
	err   error
}

func (f *fakeCompletions) Enqueue(_ context.Context, assignmentID uuid.UUID, studentID int, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, completionCall{assignmentID, studentID})
	return nil
}
