package adaptive

import (
	"github.com/google/uuid"
	"github.com/stemsi/exstem-adaptive/internal/model"
)

// DeriveProgress rebuilds a standard attempt's position from its persisted
// record and response log. manifest may be nil when the assignment is gone.
func DeriveProgress(a *model.Assessment, responses []model.AssessmentResponse, manifest []uuid.UUID) model.StandardProgress {
	return model.StandardProgress{
		AssessmentID:     a.ID,
		StudentID:        a.StudentID,
		SubjectID:        a.SubjectID,
		QuestionCount:    len(responses),
		MaxQuestions:     a.MaxQuestions,
		TimeLimitMinutes: a.TimeLimitMinutes,
		StartTime:        a.StartedAt,
		Manifest:         manifest,
	}
}

// ReplayLog rebuilds the counters of an adaptive session from its response
// log. The log wins whenever the stored session has fallen behind it.
func ReplayLog(sess *model.AdaptiveSession, responses []model.AssessmentResponse) {
	sess.QuestionCount = len(responses)
	sess.UsedQuestionIDs = make([]uuid.UUID, 0, len(responses))
	sess.CurrentDifficulty = sess.StartingDifficulty
	sess.HighestCorrectDifficulty = 0
	for _, r := range responses {
		sess.UsedQuestionIDs = append(sess.UsedQuestionIDs, r.QuestionID)
		if r.IsCorrect != nil && *r.IsCorrect {
			sess.CurrentDifficulty = Clamp(r.QuestionDifficulty)
			sess.HighestCorrectDifficulty = max(sess.HighestCorrectDifficulty, r.QuestionDifficulty)
		}
	}
}
