package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Session is the in-progress state of one attempt. It is either an
// *AdaptiveSession held by the session store or a *StandardProgress derived
// from the persisted response log.
type Session interface {
	SessionMode() AssessmentMode
}

// SessionKey identifies an adaptive session in the store.
type SessionKey struct {
	StudentID    int
	SubjectID    int
	AssessmentID uuid.UUID
}

// AdaptiveSession is the mutable state of an adaptive attempt.
type AdaptiveSession struct {
	AssessmentID             uuid.UUID   `json:"assessment_id"`
	StudentID                int         `json:"student_id"`
	SubjectID                int         `json:"subject_id"`
	GradeID                  *int        `json:"grade_id,omitempty"`
	CurrentDifficulty        int         `json:"current_difficulty"`
	StartingDifficulty       int         `json:"starting_difficulty"`
	HighestCorrectDifficulty int         `json:"highest_correct_difficulty"`
	QuestionCount            int         `json:"question_count"`
	MaxQuestions             int         `json:"max_questions"`
	TimeLimitMinutes         int         `json:"time_limit_minutes"`
	UsedQuestionIDs          []uuid.UUID `json:"used_question_ids"`
	PendingQuestionID        uuid.UUID   `json:"pending_question_id"`
	StartTime                time.Time   `json:"start_time"`
	LastActivity             time.Time   `json:"last_activity"`
}

func (s *AdaptiveSession) SessionMode() AssessmentMode { return AssessmentModeAdaptive }

// Key returns the store key for this session.
func (s *AdaptiveSession) Key() SessionKey {
	return SessionKey{StudentID: s.StudentID, SubjectID: s.SubjectID, AssessmentID: s.AssessmentID}
}

// HasUsed reports whether the question was already answered in this session.
func (s *AdaptiveSession) HasUsed(id uuid.UUID) bool {
	return slices.Contains(s.UsedQuestionIDs, id)
}

// Clone returns a deep copy.
func (s *AdaptiveSession) Clone() *AdaptiveSession {
	c := *s
	c.UsedQuestionIDs = slices.Clone(s.UsedQuestionIDs)
	if s.GradeID != nil {
		g := *s.GradeID
		c.GradeID = &g
	}
	return &c
}

// StandardProgress is the position of a standard attempt, rebuilt from the
// persisted assessment and its responses on every request.
type StandardProgress struct {
	AssessmentID     uuid.UUID   `json:"assessment_id"`
	StudentID        int         `json:"student_id"`
	SubjectID        int         `json:"subject_id"`
	QuestionCount    int         `json:"question_count"`
	MaxQuestions     int         `json:"max_questions"`
	TimeLimitMinutes int         `json:"time_limit_minutes"`
	StartTime        time.Time   `json:"start_time"`
	Manifest         []uuid.UUID `json:"manifest,omitempty"`
}

func (p StandardProgress) SessionMode() AssessmentMode { return AssessmentModeStandard }

// ManifestOrder returns the question_order for an answer to questionID,
// which is its 1-based manifest position. ok is false for questions outside
// the manifest.
func (p StandardProgress) ManifestOrder(questionID uuid.UUID) (order int, ok bool) {
	i := slices.Index(p.Manifest, questionID)
	if i < 0 {
		return 0, false
	}
	return i + 1, true
}
