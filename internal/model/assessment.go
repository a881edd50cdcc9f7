package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AssessmentMode selects how questions are chosen for an assessment.
type AssessmentMode string

const (
	AssessmentModeAdaptive AssessmentMode = "ADAPTIVE"
	AssessmentModeStandard AssessmentMode = "STANDARD"
)

// AssessmentStatus enumerates assessment states. There is no abandoned state;
// an expired session is completed on its next submission.
type AssessmentStatus string

const (
	AssessmentStatusInProgress AssessmentStatus = "IN_PROGRESS"
	AssessmentStatusCompleted  AssessmentStatus = "COMPLETED"
)

// Assessment is the persistent record backing one testing session.
type Assessment struct {
	ID                 uuid.UUID        `json:"id"`
	StudentID          int              `json:"student_id"`
	SubjectID          int              `json:"subject_id"`
	GradeID            *int             `json:"grade_id,omitempty"`
	Period             string           `json:"period"`
	Mode               AssessmentMode   `json:"mode"`
	AssignmentID       *uuid.UUID       `json:"assignment_id,omitempty"`
	Status             AssessmentStatus `json:"status"`
	StartingDifficulty int              `json:"starting_difficulty"`
	TimeLimitMinutes   int              `json:"time_limit_minutes"`
	MaxQuestions       int              `json:"max_questions"`
	RITScore           *int             `json:"rit_score,omitempty"`
	CorrectAnswers     *int             `json:"correct_answers,omitempty"`
	DurationMinutes    *int             `json:"duration_minutes,omitempty"`
	StartedAt          time.Time        `json:"started_at"`
	CompletedAt        *time.Time       `json:"completed_at,omitempty"`
}

// AssessmentResponse is one append-only row of the response log.
type AssessmentResponse struct {
	ID                 int64     `json:"id"`
	AssessmentID       uuid.UUID `json:"assessment_id"`
	QuestionID         uuid.UUID `json:"question_id"`
	QuestionOrder      int       `json:"question_order"`
	Answer             string    `json:"answer"`
	IsCorrect          *bool     `json:"is_correct"`
	QuestionDifficulty int       `json:"question_difficulty"`
	AnsweredAt         time.Time `json:"answered_at"`
}

// AssessmentConfiguration holds the limits configured for a (grade, subject) pair.
type AssessmentConfiguration struct {
	GradeID          int `json:"grade_id"`
	SubjectID        int `json:"subject_id"`
	TimeLimitMinutes int `json:"time_limit_minutes"`
	MaxQuestions     int `json:"max_questions"`
}

// Assignment is an assessment issued to students. Standard assignments carry a
// fixed question manifest; adaptive ones may only override the question count.
type Assignment struct {
	ID               uuid.UUID      `json:"id"`
	SubjectID        int            `json:"subject_id"`
	Mode             AssessmentMode `json:"mode"`
	MaxQuestions     *int           `json:"max_questions,omitempty"`
	TimeLimitMinutes *int           `json:"time_limit_minutes,omitempty"`
	QuestionIDs      []uuid.UUID    `json:"question_ids"`
}

// StartAssessmentRequest is the payload for starting an assessment.
type StartAssessmentRequest struct {
	SubjectID    int        `json:"subject_id" binding:"required,min=1"`
	Period       string     `json:"period" binding:"required,min=1,max=50"`
	AssignmentID *uuid.UUID `json:"assignment_id" binding:"omitempty"`
}

// SubmitAnswerRequest is the payload for answering the current question.
type SubmitAnswerRequest struct {
	QuestionID uuid.UUID       `json:"question_id" binding:"required"`
	Answer     json.RawMessage `json:"answer" binding:"required"`
}

// AssessmentURI binds the :assessment_id path parameter.
type AssessmentURI struct {
	AssessmentID string `uri:"assessment_id" binding:"required,uuid"`
}
