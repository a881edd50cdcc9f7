package adaptive

import (
	"slices"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-adaptive/internal/model"
)

// SelectionQuery describes the next-question search.
type SelectionQuery struct {
	SubjectID int
	GradeID   *int
	Target    int
	// SessionExclude holds ids already presented in this session.
	SessionExclude []uuid.UUID
	// AssessmentID scopes the response-log exclusion. Rows already in the
	// log are never served again, at any tier.
	AssessmentID uuid.UUID
}

// SearchTier is one step of the escalating search. Each tier keeps the
// subject filter and closeness ordering.
type SearchTier struct {
	Name           string
	ByGrade        bool
	SessionExclude bool
}

// SearchTiers is the order in which filters are relaxed: first the grade
// filter, then the in-session exclusion.
var SearchTiers = []SearchTier{
	{Name: "grade", ByGrade: true, SessionExclude: true},
	{Name: "subject", ByGrade: false, SessionExclude: true},
	{Name: "subject_only", ByGrade: false, SessionExclude: false},
}

// Admits reports whether q passes the tier's filters. responded is the set of
// ids in the assessment's response log.
func (t SearchTier) Admits(q *model.Question, query SelectionQuery, responded []uuid.UUID) bool {
	if q.SubjectID != query.SubjectID {
		return false
	}
	if slices.Contains(responded, q.ID) {
		return false
	}
	if t.ByGrade && query.GradeID != nil && q.GradeID != nil && *q.GradeID != *query.GradeID {
		return false
	}
	if t.SessionExclude && slices.Contains(query.SessionExclude, q.ID) {
		return false
	}
	return true
}

// Distance is the closeness measure between a question and the target.
func Distance(difficulty, target int) int {
	if d := difficulty - target; d >= 0 {
		return d
	}
	return target - difficulty
}

// PickClosest returns the candidate closest to target, choosing uniformly
// among equally close ones. Returns nil for an empty slice.
func PickClosest(candidates []model.Question, target int, rnd Rand) *model.Question {
	if len(candidates) == 0 {
		return nil
	}
	if rnd == nil {
		rnd = DefaultRand()
	}

	best := -1
	var ties []int
	for i := range candidates {
		d := Distance(candidates[i].DifficultyLevel, target)
		switch {
		case best < 0 || d < best:
			best = d
			ties = append(ties[:0], i)
		case d == best:
			ties = append(ties, i)
		}
	}

	chosen := candidates[ties[rnd.IntN(len(ties))]]
	return &chosen
}

// SelectClosest runs the tiered search over an in-memory pool.
func SelectClosest(pool []model.Question, query SelectionQuery, responded []uuid.UUID, rnd Rand) *model.Question {
	for _, tier := range SearchTiers {
		var admitted []model.Question
		for i := range pool {
			if tier.Admits(&pool[i], query, responded) {
				admitted = append(admitted, pool[i])
			}
		}
		if q := PickClosest(admitted, query.Target, rnd); q != nil {
			return q
		}
	}
	return nil
}
