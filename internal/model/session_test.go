package model

import (
	"testing"

	"github.com/google/uuid"
)

func TestAdaptiveSession_CloneIsIndependent(t *testing.T) {
	grade := 5
	orig := &AdaptiveSession{
		AssessmentID:    uuid.New(),
		GradeID:         &grade,
		UsedQuestionIDs: []uuid.UUID{uuid.New()},
	}

	c := orig.Clone()
	c.UsedQuestionIDs = append(c.UsedQuestionIDs, uuid.New())
	*c.GradeID = 6
	c.QuestionCount = 3

	if len(orig.UsedQuestionIDs) != 1 {
		t.Errorf("original UsedQuestionIDs len = %d, want 1", len(orig.UsedQuestionIDs))
	}
	if *orig.GradeID != 5 {
		t.Errorf("original GradeID = %d, want 5", *orig.GradeID)
	}
	if orig.QuestionCount != 0 {
		t.Errorf("original QuestionCount = %d, want 0", orig.QuestionCount)
	}
}

func TestStandardProgress_ManifestOrder(t *testing.T) {
	q1, q2, q3 := uuid.New(), uuid.New(), uuid.New()
	p := StandardProgress{QuestionCount: 1, Manifest: []uuid.UUID{q1, q2, q3}}

	if got, ok := p.ManifestOrder(q3); !ok || got != 3 {
		t.Errorf("ManifestOrder(manifest[2]) = %d, %v, want 3, true", got, ok)
	}
	if _, ok := p.ManifestOrder(uuid.New()); ok {
		t.Error("ManifestOrder(unknown) should report false")
	}
	if _, ok := (StandardProgress{}).ManifestOrder(q1); ok {
		t.Error("empty manifest should admit nothing")
	}
}
