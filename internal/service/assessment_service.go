package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-adaptive/internal/adaptive"
	"github.com/stemsi/exstem-adaptive/internal/model"
	"github.com/stemsi/exstem-adaptive/internal/repository"
	"github.com/stemsi/exstem-adaptive/internal/session"
)

// Domain Errors
var (
	ErrConfigurationNotFound = errors.New("no assessment configuration for grade and subject")
	ErrNoQuestionsAvailable  = errors.New("no questions available")
	ErrSessionNotFound       = errors.New("assessment session not found")
	ErrAssessmentNotFound    = errors.New("assessment not found")
	ErrAssignmentNotFound    = errors.New("assignment not found")
	ErrUnauthorized          = errors.New("assessment belongs to another student")
	ErrQuestionNotFound      = errors.New("question not found")
	ErrAssessmentCompleted   = errors.New("assessment is already completed")
	ErrDuplicateSubmission   = errors.New("answer already submitted")
	ErrStorageFailure        = errors.New("storage failure")
)

// Termination reasons, in evaluation order.
const (
	ReasonTimeExceeded  = "TIME_EXCEEDED"
	ReasonQuestionLimit = "QUESTION_LIMIT_REACHED"
	ReasonPoolExhausted = "NO_QUESTIONS_LEFT"
)

// QuestionSource is the question repository adapter.
type QuestionSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Question, error)
	FindClosest(ctx context.Context, query adaptive.SelectionQuery) (*model.Question, error)
}

// AssessmentStore persists assessments and their response log.
type AssessmentStore interface {
	Create(ctx context.Context, a *model.Assessment) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Assessment, error)
	LatestScore(ctx context.Context, studentID, subjectID, year int) (*int, error)
	InsertResponse(ctx context.Context, resp *model.AssessmentResponse) error
	ListResponses(ctx context.Context, assessmentID uuid.UUID) ([]model.AssessmentResponse, error)
	Finalize(ctx context.Context, id uuid.UUID, score, correct, durationMinutes int, completedAt time.Time) error
}

// ConfigurationSource supplies per-(grade, subject) limits.
type ConfigurationSource interface {
	Get(ctx context.Context, gradeID, subjectID int) (*model.AssessmentConfiguration, error)
}

// AssignmentSource supplies assignments and their manifests.
type AssignmentSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Assignment, error)
}

// CompletionRecorder records that a student finished an assignment.
type CompletionRecorder interface {
	Enqueue(ctx context.Context, assignmentID uuid.UUID, studentID int, completedAt time.Time) error
}

// Option customizes an AssessmentService.
type Option func(*AssessmentService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *AssessmentService) { s.now = now } }

// WithRand sets the random source used for difficulty steps.
func WithRand(rnd adaptive.Rand) Option {
	return func(s *AssessmentService) { s.stepper = adaptive.NewStepper(rnd) }
}

// WithDefaultStartDifficulty overrides the starting difficulty used for
// students without a prior score.
func WithDefaultStartDifficulty(d int) Option {
	return func(s *AssessmentService) { s.defaultStart = adaptive.Clamp(d) }
}

// AssessmentService drives assessment sessions from start to final score.
type AssessmentService struct {
	questions   QuestionSource
	assessments AssessmentStore
	configs     ConfigurationSource
	assignments AssignmentSource
	completions CompletionRecorder
	store       session.Store

	evaluator    *adaptive.Evaluator
	stepper      *adaptive.Stepper
	defaultStart int
	now          func() time.Time
	log          zerolog.Logger
}

// NewAssessmentService creates a new AssessmentService.
func NewAssessmentService(
	questions QuestionSource,
	assessments AssessmentStore,
	configs ConfigurationSource,
	assignments AssignmentSource,
	completions CompletionRecorder,
	store session.Store,
	log zerolog.Logger,
	opts ...Option,
) *AssessmentService {
	s := &AssessmentService{
		questions:    questions,
		assessments:  assessments,
		configs:      configs,
		assignments:  assignments,
		completions:  completions,
		store:        store,
		evaluator:    adaptive.NewEvaluator(),
		stepper:      adaptive.NewStepper(nil),
		defaultStart: adaptive.DefaultStartDifficulty,
		now:          time.Now,
		log:          log.With().Str("component", "assessment_service").Logger(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// StartInput identifies who starts what.
type StartInput struct {
	StudentID    int
	GradeID      *int
	SubjectID    int
	Period       string
	AssignmentID *uuid.UUID
}

// StartResult is returned to the student when an assessment begins.
type StartResult struct {
	AssessmentID     uuid.UUID                  `json:"assessment_id"`
	Mode             model.AssessmentMode       `json:"mode"`
	TimeLimitMinutes int                        `json:"time_limit_minutes"`
	MaxQuestions     int                        `json:"max_questions"`
	QuestionNumber   int                        `json:"question_number"`
	FirstQuestion    model.QuestionForStudent   `json:"first_question"`
	Questions        []model.QuestionForStudent `json:"questions,omitempty"`
}

// SubmitInput is one answer submission.
type SubmitInput struct {
	StudentID    int
	AssessmentID uuid.UUID
	QuestionID   uuid.UUID
	Answer       []byte
}

// SubmitResult reports the outcome of a submission.
type SubmitResult struct {
	Completed         bool                      `json:"completed"`
	IsCorrect         *bool                     `json:"is_correct"`
	NextQuestion      *model.QuestionForStudent `json:"next_question,omitempty"`
	QuestionNumber    int                       `json:"question_number,omitempty"`
	FinalScore        *int                      `json:"final_score,omitempty"`
	CorrectAnswers    *int                      `json:"correct_answers,omitempty"`
	TerminationReason string                    `json:"termination_reason,omitempty"`
}

// ProgressState is a read-only view of an attempt.
type ProgressState struct {
	AssessmentID     uuid.UUID              `json:"assessment_id"`
	Mode             model.AssessmentMode   `json:"mode"`
	Status           model.AssessmentStatus `json:"status"`
	QuestionCount    int                    `json:"question_count"`
	MaxQuestions     int                    `json:"max_questions"`
	RemainingSeconds float64                `json:"remaining_seconds"`
	RITScore         *int                   `json:"rit_score,omitempty"`
	CorrectAnswers   *int                   `json:"correct_answers,omitempty"`
}

// StartSession creates the assessment record and returns the first question.
// Adaptive attempts also get an entry in the session store.
func (s *AssessmentService) StartSession(ctx context.Context, in StartInput) (*StartResult, error) {
	var assignment *model.Assignment
	if in.AssignmentID != nil {
		a, err := s.assignments.GetByID(ctx, *in.AssignmentID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAssignmentNotFound
		}
		if err != nil {
			return nil, storageErr("get assignment", err)
		}
		if a.SubjectID != in.SubjectID {
			return nil, ErrAssignmentNotFound
		}
		assignment = a
	}

	if in.GradeID == nil {
		return nil, ErrConfigurationNotFound
	}
	cfg, err := s.configs.Get(ctx, *in.GradeID, in.SubjectID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrConfigurationNotFound
	}
	if err != nil {
		return nil, storageErr("get configuration", err)
	}

	mode := model.AssessmentModeAdaptive
	timeLimit, maxQuestions := cfg.TimeLimitMinutes, cfg.MaxQuestions
	if assignment != nil {
		mode = assignment.Mode
		if assignment.TimeLimitMinutes != nil {
			timeLimit = *assignment.TimeLimitMinutes
		}
		if assignment.MaxQuestions != nil {
			maxQuestions = *assignment.MaxQuestions
		}
	}

	now := s.now()
	start, err := s.startingDifficulty(ctx, in.StudentID, in.SubjectID, now.Year())
	if err != nil {
		return nil, err
	}

	var first *model.Question
	var manifest []model.QuestionForStudent
	switch mode {
	case model.AssessmentModeStandard:
		questions, err := s.questions.ListByIDs(ctx, assignment.QuestionIDs)
		if err != nil {
			return nil, storageErr("list manifest questions", err)
		}
		if len(questions) == 0 {
			return nil, ErrNoQuestionsAvailable
		}
		maxQuestions = min(maxQuestions, len(questions))
		first = &questions[0]
		manifest = make([]model.QuestionForStudent, len(questions))
		for i := range questions {
			manifest[i] = questions[i].ForStudent()
		}
	default:
		first, err = s.questions.FindClosest(ctx, adaptive.SelectionQuery{
			SubjectID: in.SubjectID,
			GradeID:   in.GradeID,
			Target:    s.stepper.Next(start, nil),
		})
		if err != nil {
			return nil, storageErr("find first question", err)
		}
		if first == nil {
			return nil, ErrNoQuestionsAvailable
		}
	}

	assessment := &model.Assessment{
		StudentID:          in.StudentID,
		SubjectID:          in.SubjectID,
		GradeID:            in.GradeID,
		Period:             in.Period,
		Mode:               mode,
		AssignmentID:       in.AssignmentID,
		StartingDifficulty: start,
		TimeLimitMinutes:   timeLimit,
		MaxQuestions:       maxQuestions,
		StartedAt:          now,
	}
	if err := s.assessments.Create(ctx, assessment); err != nil {
		return nil, storageErr("create assessment", err)
	}

	if mode == model.AssessmentModeAdaptive {
		sess := &model.AdaptiveSession{
			AssessmentID:       assessment.ID,
			StudentID:          in.StudentID,
			SubjectID:          in.SubjectID,
			GradeID:            in.GradeID,
			CurrentDifficulty:  start,
			StartingDifficulty: start,
			MaxQuestions:       maxQuestions,
			TimeLimitMinutes:   timeLimit,
			PendingQuestionID:  first.ID,
			StartTime:          now,
		}
		if err := s.store.Create(ctx, sess); err != nil {
			return nil, storageErr("create session", err)
		}
	}

	s.log.Info().
		Str("assessment_id", assessment.ID.String()).
		Int("student_id", in.StudentID).
		Int("subject_id", in.SubjectID).
		Str("mode", string(mode)).
		Int("starting_difficulty", start).
		Msg("Assessment started")

	return &StartResult{
		AssessmentID:     assessment.ID,
		Mode:             mode,
		TimeLimitMinutes: timeLimit,
		MaxQuestions:     maxQuestions,
		QuestionNumber:   1,
		FirstQuestion:    first.ForStudent(),
		Questions:        manifest,
	}, nil
}

// startingDifficulty is the student's latest score for the subject this
// year, or the configured default.
func (s *AssessmentService) startingDifficulty(ctx context.Context, studentID, subjectID, year int) (int, error) {
	last, err := s.assessments.LatestScore(ctx, studentID, subjectID, year)
	if err != nil {
		return 0, storageErr("get latest score", err)
	}
	if last == nil {
		return s.defaultStart, nil
	}
	return adaptive.Clamp(*last), nil
}

// SubmitAnswer grades one answer, records it and either returns the next
// question or finalizes the assessment. Submissions for one assessment are
// serialized on the session key, and the response log is the source of
// truth for progress. A request that failed after its answer was logged can
// be retried with the same question.
func (s *AssessmentService) SubmitAnswer(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	assessment, err := s.ownedAssessment(ctx, in.StudentID, in.AssessmentID)
	if err != nil {
		return nil, err
	}
	if assessment.Status == model.AssessmentStatusCompleted {
		return nil, ErrAssessmentCompleted
	}

	unlock, err := s.lockSession(ctx, assessment)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Another request may have finalized while this one waited for the lock.
	assessment, err = s.ownedAssessment(ctx, in.StudentID, in.AssessmentID)
	if err != nil {
		return nil, err
	}
	if assessment.Status == model.AssessmentStatusCompleted {
		return nil, ErrAssessmentCompleted
	}

	sess, responses, err := s.loadSession(ctx, assessment)
	if err != nil {
		return nil, err
	}

	q, err := s.questions.GetByID(ctx, in.QuestionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrQuestionNotFound
	}
	if err != nil {
		return nil, storageErr("get question", err)
	}
	if q.SubjectID != assessment.SubjectID {
		return nil, ErrQuestionNotFound
	}

	switch sv := sess.(type) {
	case *model.AdaptiveSession:
		return s.submitAdaptive(ctx, assessment, sv, responses, q, in.Answer)
	case *model.StandardProgress:
		return s.submitStandard(ctx, assessment, sv, responses, q, in.Answer)
	}
	return nil, fmt.Errorf("unknown session type %T", sess)
}

func (s *AssessmentService) submitAdaptive(ctx context.Context, a *model.Assessment, sess *model.AdaptiveSession, responses []model.AssessmentResponse, q *model.Question, answer []byte) (*SubmitResult, error) {
	prev := findResponse(responses, q.ID)
	switch {
	case prev != nil && q.ID == sess.PendingQuestionID:
		// Logged by an earlier request that failed before the session advanced.
		return s.advanceAdaptive(ctx, a, sess, q, prev.IsCorrect, s.now())
	case sess.HasUsed(q.ID):
		return nil, ErrDuplicateSubmission
	case q.ID != sess.PendingQuestionID:
		return nil, ErrQuestionNotFound
	}

	resp, err := s.record(ctx, a, q, answer, len(responses)+1)
	if err != nil {
		return nil, err
	}
	adaptive.ReplayLog(sess, append(responses, *resp))
	return s.advanceAdaptive(ctx, a, sess, q, resp.IsCorrect, s.now())
}

func (s *AssessmentService) submitStandard(ctx context.Context, a *model.Assessment, progress *model.StandardProgress, responses []model.AssessmentResponse, q *model.Question, answer []byte) (*SubmitResult, error) {
	order, ok := progress.ManifestOrder(q.ID)
	if !ok {
		return nil, ErrQuestionNotFound
	}
	if prev := findResponse(responses, q.ID); prev != nil {
		// A logged answer whose finalization failed completes on retry.
		now := s.now()
		if reason := limitReached(progress.StartTime, progress.TimeLimitMinutes, progress.QuestionCount, progress.MaxQuestions, now); reason != "" {
			return s.finalize(ctx, a, prev.IsCorrect, reason, now)
		}
		return nil, ErrDuplicateSubmission
	}

	resp, err := s.record(ctx, a, q, answer, order)
	if err != nil {
		return nil, err
	}
	progress.QuestionCount++

	now := s.now()
	if reason := limitReached(progress.StartTime, progress.TimeLimitMinutes, progress.QuestionCount, progress.MaxQuestions, now); reason != "" {
		return s.finalize(ctx, a, resp.IsCorrect, reason, now)
	}
	// The caller holds the fixed question list and advances on its own.
	return &SubmitResult{Completed: false, IsCorrect: resp.IsCorrect}, nil
}

// record grades the answer and appends it to the response log. Nothing is
// written when the answer is malformed.
func (s *AssessmentService) record(ctx context.Context, a *model.Assessment, q *model.Question, answer []byte, order int) (*model.AssessmentResponse, error) {
	eval, err := s.evaluator.Evaluate(q, answer)
	if err != nil {
		return nil, err
	}
	resp := &model.AssessmentResponse{
		AssessmentID:       a.ID,
		QuestionID:         q.ID,
		QuestionOrder:      order,
		Answer:             eval.StoredAnswer,
		IsCorrect:          eval.IsCorrect,
		QuestionDifficulty: q.DifficultyLevel,
	}
	if err := s.assessments.InsertResponse(ctx, resp); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateSubmission
		}
		return nil, storageErr("insert response", err)
	}
	return resp, nil
}

// advanceAdaptive finalizes or serves the next question. sess already
// reflects the answer to q.
func (s *AssessmentService) advanceAdaptive(ctx context.Context, a *model.Assessment, sess *model.AdaptiveSession, q *model.Question, isCorrect *bool, now time.Time) (*SubmitResult, error) {
	if reason := limitReached(sess.StartTime, sess.TimeLimitMinutes, sess.QuestionCount, sess.MaxQuestions, now); reason != "" {
		return s.finalize(ctx, a, isCorrect, reason, now)
	}

	next, err := s.questions.FindClosest(ctx, adaptive.SelectionQuery{
		SubjectID:      sess.SubjectID,
		GradeID:        sess.GradeID,
		Target:         s.stepper.Next(q.DifficultyLevel, isCorrect),
		SessionExclude: sess.UsedQuestionIDs,
		AssessmentID:   sess.AssessmentID,
	})
	if err != nil {
		return nil, storageErr("find next question", err)
	}
	if next == nil {
		return s.finalize(ctx, a, isCorrect, ReasonPoolExhausted, now)
	}

	sess.PendingQuestionID = next.ID
	if err := s.store.Save(ctx, sess); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, storageErr("save session", err)
	}

	view := next.ForStudent()
	return &SubmitResult{
		Completed:      false,
		IsCorrect:      isCorrect,
		NextQuestion:   &view,
		QuestionNumber: sess.QuestionCount + 1,
	}, nil
}

func findResponse(responses []model.AssessmentResponse, questionID uuid.UUID) *model.AssessmentResponse {
	for i := range responses {
		if responses[i].QuestionID == questionID {
			return &responses[i]
		}
	}
	return nil
}

// limitReached checks the time limit first, then the question count.
func limitReached(start time.Time, limitMinutes, count, maxQuestions int, now time.Time) string {
	if now.Sub(start) >= time.Duration(limitMinutes)*time.Minute {
		return ReasonTimeExceeded
	}
	if count >= maxQuestions {
		return ReasonQuestionLimit
	}
	return ""
}

// finalize scores the assessment from its persisted response log. The
// assignment completion is recorded best-effort after the score is stored.
func (s *AssessmentService) finalize(ctx context.Context, a *model.Assessment, isCorrect *bool, reason string, now time.Time) (*SubmitResult, error) {
	responses, err := s.assessments.ListResponses(ctx, a.ID)
	if err != nil {
		return nil, storageErr("list responses", err)
	}
	score, correct := adaptive.FinalScore(responses)
	duration := int(now.Sub(a.StartedAt).Minutes())

	if err := s.assessments.Finalize(ctx, a.ID, score, correct, duration, now); err != nil {
		return nil, storageErr("finalize assessment", err)
	}

	if a.AssignmentID != nil {
		if err := s.completions.Enqueue(ctx, *a.AssignmentID, a.StudentID, now); err != nil {
			s.log.Error().Err(err).
				Str("assessment_id", a.ID.String()).
				Str("assignment_id", a.AssignmentID.String()).
				Msg("Failed to record assignment completion")
		}
	}

	if a.Mode == model.AssessmentModeAdaptive {
		if err := s.store.Close(ctx, sessionKey(a)); err != nil {
			s.log.Warn().Err(err).Str("assessment_id", a.ID.String()).Msg("Failed to close session")
		}
	}

	s.log.Info().
		Str("assessment_id", a.ID.String()).
		Str("reason", reason).
		Int("score", score).
		Int("correct_answers", correct).
		Int("answered", len(responses)).
		Msg("Assessment completed")

	return &SubmitResult{
		Completed:         true,
		IsCorrect:         isCorrect,
		FinalScore:        &score,
		CorrectAnswers:    &correct,
		TerminationReason: reason,
	}, nil
}

// GetState returns the progress of an attempt without changing it.
func (s *AssessmentService) GetState(ctx context.Context, studentID int, assessmentID uuid.UUID) (*ProgressState, error) {
	a, err := s.ownedAssessment(ctx, studentID, assessmentID)
	if err != nil {
		return nil, err
	}

	state := &ProgressState{
		AssessmentID:   a.ID,
		Mode:           a.Mode,
		Status:         a.Status,
		MaxQuestions:   a.MaxQuestions,
		RITScore:       a.RITScore,
		CorrectAnswers: a.CorrectAnswers,
	}

	if a.Status == model.AssessmentStatusCompleted {
		responses, err := s.assessments.ListResponses(ctx, a.ID)
		if err != nil {
			return nil, storageErr("list responses", err)
		}
		state.QuestionCount = len(responses)
		return state, nil
	}

	unlock, err := s.lockSession(ctx, a)
	if err != nil {
		return nil, err
	}
	defer unlock()

	sess, _, err := s.loadSession(ctx, a)
	if err != nil {
		return nil, err
	}

	var start time.Time
	switch sv := sess.(type) {
	case *model.AdaptiveSession:
		state.QuestionCount = sv.QuestionCount
		start = sv.StartTime
	case *model.StandardProgress:
		state.QuestionCount = sv.QuestionCount
		start = sv.StartTime
	}

	remaining := start.Add(time.Duration(a.TimeLimitMinutes) * time.Minute).Sub(s.now())
	if remaining < 0 {
		remaining = 0
	}
	state.RemainingSeconds = remaining.Seconds()
	return state, nil
}

func (s *AssessmentService) ownedAssessment(ctx context.Context, studentID int, id uuid.UUID) (*model.Assessment, error) {
	a, err := s.assessments.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrAssessmentNotFound
	}
	if err != nil {
		return nil, storageErr("get assessment", err)
	}
	if a.StudentID != studentID {
		return nil, ErrUnauthorized
	}
	return a, nil
}

func sessionKey(a *model.Assessment) model.SessionKey {
	return model.SessionKey{StudentID: a.StudentID, SubjectID: a.SubjectID, AssessmentID: a.ID}
}

// lockSession serializes requests for one assessment. Standard attempts
// have no store entry but share the same key lock.
func (s *AssessmentService) lockSession(ctx context.Context, a *model.Assessment) (func(), error) {
	unlock, err := s.store.Lock(ctx, sessionKey(a))
	if err != nil {
		return nil, storageErr("lock session", err)
	}
	return unlock, nil
}

// loadSession returns the attempt's progress together with its response
// log. Adaptive sessions come from the store and are brought in line with
// the log; standard progress is derived from the log alone. The caller must
// hold the session lock.
func (s *AssessmentService) loadSession(ctx context.Context, a *model.Assessment) (model.Session, []model.AssessmentResponse, error) {
	responses, err := s.assessments.ListResponses(ctx, a.ID)
	if err != nil {
		return nil, nil, storageErr("list responses", err)
	}

	if a.Mode == model.AssessmentModeStandard {
		var manifest []uuid.UUID
		if a.AssignmentID != nil {
			assignment, err := s.assignments.GetByID(ctx, *a.AssignmentID)
			switch {
			case err == nil:
				manifest = assignment.QuestionIDs
			case !errors.Is(err, repository.ErrNotFound):
				return nil, nil, storageErr("get assignment", err)
			}
		}
		progress := adaptive.DeriveProgress(a, responses, manifest)
		return &progress, responses, nil
	}

	sess, err := s.store.Get(ctx, sessionKey(a))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, nil, ErrSessionNotFound
		}
		return nil, nil, storageErr("get session", err)
	}
	adaptive.ReplayLog(sess, responses)
	return sess, responses, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageFailure, err)
}
