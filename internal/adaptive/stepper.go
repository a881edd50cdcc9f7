package adaptive

// Difficulty scale bounds. Question difficulty and student proficiency share it.
const (
	MinDifficulty          = 100
	MaxDifficulty          = 350
	DefaultStartDifficulty = 225

	MinStep = 3
	MaxStep = 5
)

// Stepper computes the next target difficulty from the last answer.
//
// It is a greedy hill-climb: each answer moves the target a random 3..5 points
// up or down. It does not estimate ability, so the target oscillates around
// the student's level instead of converging on it.
type Stepper struct {
	rnd Rand
}

// NewStepper creates a Stepper. A nil source falls back to DefaultRand.
func NewStepper(rnd Rand) *Stepper {
	if rnd == nil {
		rnd = DefaultRand()
	}
	return &Stepper{rnd: rnd}
}

// Next returns the search target for the next question. A nil wasCorrect
// means there is no prior answer and current is used as-is.
func (s *Stepper) Next(current int, wasCorrect *bool) int {
	if wasCorrect == nil {
		return Clamp(current)
	}
	step := MinStep + s.rnd.IntN(MaxStep-MinStep+1)
	if *wasCorrect {
		return min(MaxDifficulty, current+step)
	}
	return max(MinDifficulty, current-step)
}

// Clamp pins a difficulty into [MinDifficulty, MaxDifficulty].
func Clamp(d int) int {
	return max(MinDifficulty, min(MaxDifficulty, d))
}
