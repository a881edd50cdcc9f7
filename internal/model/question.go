package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Question represents a single item in the question pool.
type Question struct {
	ID              uuid.UUID       `json:"id"`
	SubjectID       int             `json:"subject_id"`
	GradeID         *int            `json:"grade_id,omitempty"`
	QuestionText    string          `json:"question_text"`
	QuestionType    QuestionType    `json:"question_type"`
	Options         json.RawMessage `json:"options"`
	CorrectAnswer   string          `json:"correct_answer"`
	DifficultyLevel int             `json:"difficulty_level"`
}

type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeTrueFalse      QuestionType = "TRUE_FALSE"
	QuestionTypeMultiSelect    QuestionType = "MULTI_SELECT"
	QuestionTypeFillInBlank    QuestionType = "FILL_IN_BLANK"
	QuestionTypeMatching       QuestionType = "MATCHING"
	QuestionTypeShortAnswer    QuestionType = "SHORT_ANSWER"
	QuestionTypeEssay          QuestionType = "ESSAY"
)

// QuestionForStudent is a question without the correct answer, sent to students.
type QuestionForStudent struct {
	ID           uuid.UUID       `json:"id"`
	QuestionText string          `json:"question_text"`
	QuestionType QuestionType    `json:"question_type"`
	Options      json.RawMessage `json:"options"`
}

// ForStudent strips the answer key.
func (q *Question) ForStudent() QuestionForStudent {
	return QuestionForStudent{
		ID:           q.ID,
		QuestionText: q.QuestionText,
		QuestionType: q.QuestionType,
		Options:      q.Options,
	}
}
