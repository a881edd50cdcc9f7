package adaptive

import (
	"math"

	"github.com/stemsi/exstem-adaptive/internal/model"
)

// FinalScore derives the score from the response log: the rounded mean of
// question_difficulty over every row, plus the number of correct rows.
// An empty log scores zero.
func FinalScore(responses []model.AssessmentResponse) (score, correct int) {
	if len(responses) == 0 {
		return 0, 0
	}
	sum := 0
	for _, r := range responses {
		sum += r.QuestionDifficulty
		if r.IsCorrect != nil && *r.IsCorrect {
			correct++
		}
	}
	score = int(math.Round(float64(sum) / float64(len(responses))))
	return score, correct
}
