package adaptive

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/stemsi/exstem-adaptive/internal/model"
)

var (
	// ErrInvalidAnswerFormat wraps every structural problem with a submission.
	ErrInvalidAnswerFormat = errors.New("invalid answer format")
	// ErrMalformedAnswerKey means the stored correct answer cannot be parsed.
	ErrMalformedAnswerKey      = errors.New("malformed answer key")
	ErrUnsupportedQuestionType = errors.New("unsupported question type")
)

// Evaluation is the outcome of grading one submission.
type Evaluation struct {
	// IsCorrect is nil for free-text answers awaiting manual grading.
	IsCorrect *bool
	// StoredAnswer is the exact form written to the response log.
	StoredAnswer string
}

// Strategy grades one question type.
type Strategy interface {
	Evaluate(q *model.Question, submitted json.RawMessage) (Evaluation, error)
}

// Evaluator routes by question type to the matching Strategy.
type Evaluator struct {
	strategies map[model.QuestionType]Strategy
}

// NewEvaluator installs the built-in strategies.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		strategies: map[model.QuestionType]Strategy{
			model.QuestionTypeMultipleChoice: singleChoiceStrategy{},
			model.QuestionTypeTrueFalse:      trueFalseStrategy{},
			model.QuestionTypeMultiSelect:    multiSelectStrategy{},
			model.QuestionTypeFillInBlank:    fillInBlankStrategy{},
			model.QuestionTypeMatching:       matchingStrategy{},
			model.QuestionTypeShortAnswer:    freeTextStrategy{},
			model.QuestionTypeEssay:          freeTextStrategy{},
		},
	}
}

// Evaluate grades submitted against q. It never has side effects, so a
// returned error leaves nothing to undo.
func (e *Evaluator) Evaluate(q *model.Question, submitted json.RawMessage) (Evaluation, error) {
	s, ok := e.strategies[q.QuestionType]
	if !ok {
		return Evaluation{}, fmt.Errorf("%w: %s", ErrUnsupportedQuestionType, q.QuestionType)
	}
	trimmed := bytes.TrimSpace(submitted)
	if len(trimmed) == 0 {
		return Evaluation{}, fmt.Errorf("%w: empty answer", ErrInvalidAnswerFormat)
	}
	if bytes.Equal(trimmed, []byte("null")) {
		return Evaluation{}, fmt.Errorf("%w: null answer", ErrInvalidAnswerFormat)
	}
	return s.Evaluate(q, submitted)
}

// --- Strategies ---

type singleChoiceStrategy struct{}

func (singleChoiceStrategy) Evaluate(q *model.Question, submitted json.RawMessage) (Evaluation, error) {
	idx, err := parseIndex(submitted)
	if err != nil {
		return Evaluation{}, err
	}
	if n := optionCount(q.Options); n > 0 && idx >= n {
		return Evaluation{}, fmt.Errorf("%w: option %d out of range", ErrInvalidAnswerFormat, idx)
	}
	key, err := parseKeyIndex(q.CorrectAnswer)
	if err != nil {
		return Evaluation{}, err
	}
	return Evaluation{IsCorrect: boolPtr(idx == key), StoredAnswer: strconv.Itoa(idx)}, nil
}

// True/False has the fixed option set ["true", "false"]; index 0 is true.
type trueFalseStrategy struct{}

func (trueFalseStrategy) Evaluate(q *model.Question, submitted json.RawMessage) (Evaluation, error) {
	var idx int
	var b bool
	if err := json.Unmarshal(submitted, &b); err == nil {
		idx = boolIndex(b)
	} else {
		idx, err = parseIndex(submitted)
		if err != nil {
			return Evaluation{}, err
		}
	}
	if idx > 1 {
		return Evaluation{}, fmt.Errorf("%w: true/false index %d", ErrInvalidAnswerFormat, idx)
	}

	key := strings.ToLower(strings.TrimSpace(q.CorrectAnswer))
	var keyIdx int
	switch key {
	case "true":
		keyIdx = 0
	case "false":
		keyIdx = 1
	default:
		var err error
		if keyIdx, err = parseKeyIndex(key); err != nil {
			return Evaluation{}, err
		}
	}
	return Evaluation{IsCorrect: boolPtr(idx == keyIdx), StoredAnswer: strconv.Itoa(idx)}, nil
}

// Multi-select is all-or-nothing: the submitted set must equal the key set.
type multiSelectStrategy struct{}

func (multiSelectStrategy) Evaluate(q *model.Question, submitted json.RawMessage) (Evaluation, error) {
	picked, err := parseIndexList(submitted)
	if err != nil {
		return Evaluation{}, err
	}
	if n := optionCount(q.Options); n > 0 {
		for _, p := range picked {
			if p >= n {
				return Evaluation{}, fmt.Errorf("%w: option %d out of range", ErrInvalidAnswerFormat, p)
			}
		}
	}
	key, err := parseKeyList(q.CorrectAnswer)
	if err != nil {
		return Evaluation{}, err
	}

	sortedPicked := slices.Sorted(slices.Values(picked))
	sortedKey := slices.Sorted(slices.Values(key))

	stored, err := json.Marshal(picked)
	if err != nil {
		return Evaluation{}, fmt.Errorf("encode answer: %w", err)
	}
	return Evaluation{IsCorrect: boolPtr(slices.Equal(sortedPicked, sortedKey)), StoredAnswer: string(stored)}, nil
}

// Fill-in-the-blank compares one index per blank, positionally. A length
// mismatch grades as incorrect rather than failing validation.
type fillInBlankStrategy struct{}

func (fillInBlankStrategy) Evaluate(q *model.Question, submitted json.RawMessage) (Evaluation, error) {
	blanks, err := parseIndexList(submitted)
	if err != nil {
		return Evaluation{}, err
	}
	key, err := parseKeyList(q.CorrectAnswer)
	if err != nil {
		return Evaluation{}, err
	}
	stored, err := json.Marshal(blanks)
	if err != nil {
		return Evaluation{}, fmt.Errorf("encode answer: %w", err)
	}
	return Evaluation{IsCorrect: boolPtr(slices.Equal(blanks, key)), StoredAnswer: string(stored)}, nil
}

// MatchPair links a left-side item to a right-side item.
type MatchPair struct {
	Left  int `json:"left"`
	Right int `json:"right"`
}

// Matching submissions list, per left item by position, the chosen right index.
type matchingStrategy struct{}

func (matchingStrategy) Evaluate(q *model.Question, submitted json.RawMessage) (Evaluation, error) {
	chosen, err := parseIndexList(submitted)
	if err != nil {
		return Evaluation{}, err
	}
	var pairs []MatchPair
	if err := json.Unmarshal([]byte(q.CorrectAnswer), &pairs); err != nil || len(pairs) == 0 {
		return Evaluation{}, fmt.Errorf("%w: matching pairs", ErrMalformedAnswerKey)
	}
	if len(chosen) != len(pairs) {
		return Evaluation{}, fmt.Errorf("%w: expected %d matches, got %d", ErrInvalidAnswerFormat, len(pairs), len(chosen))
	}

	want := make(map[int]int, len(pairs))
	for _, p := range pairs {
		want[p.Left] = p.Right
	}
	correct := true
	for left, right := range chosen {
		r, ok := want[left]
		if !ok || r != right {
			correct = false
			break
		}
	}

	stored, err := json.Marshal(chosen)
	if err != nil {
		return Evaluation{}, fmt.Errorf("encode answer: %w", err)
	}
	return Evaluation{IsCorrect: boolPtr(correct), StoredAnswer: string(stored)}, nil
}

// Free text is stored verbatim and left ungraded.
type freeTextStrategy struct{}

func (freeTextStrategy) Evaluate(_ *model.Question, submitted json.RawMessage) (Evaluation, error) {
	var text string
	if err := json.Unmarshal(submitted, &text); err != nil {
		return Evaluation{}, fmt.Errorf("%w: expected text", ErrInvalidAnswerFormat)
	}
	return Evaluation{IsCorrect: nil, StoredAnswer: text}, nil
}

// helpers

// parseIndex accepts a JSON integer or a numeric JSON string.
func parseIndex(raw json.RawMessage) (int, error) {
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAnswerFormat, err)
	}
	switch t := v.(type) {
	case json.Number:
		n = t
	case string:
		n = json.Number(strings.TrimSpace(t))
	default:
		return 0, fmt.Errorf("%w: expected an option index", ErrInvalidAnswerFormat)
	}
	i, err := strconv.Atoi(n.String())
	if err != nil || i < 0 {
		return 0, fmt.Errorf("%w: %q is not an option index", ErrInvalidAnswerFormat, n.String())
	}
	return i, nil
}

// parseIndexList accepts a JSON array of indices.
func parseIndexList(raw json.RawMessage) ([]int, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: expected an array of option indices", ErrInvalidAnswerFormat)
	}
	out := make([]int, 0, len(items))
	for _, it := range items {
		i, err := parseIndex(it)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, nil
}

func parseKeyIndex(key string) (int, error) {
	key = strings.TrimSpace(key)
	if i, err := strconv.Atoi(key); err == nil {
		return i, nil
	}
	list, err := parseKeyList(key)
	if err != nil || len(list) != 1 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedAnswerKey, key)
	}
	return list[0], nil
}

// parseKeyList reads a JSON array ("[1,2]") or a comma list ("1,2").
func parseKeyList(key string) ([]int, error) {
	key = strings.TrimSpace(key)
	var list []int
	if err := json.Unmarshal([]byte(key), &list); err == nil {
		return list, nil
	}
	for _, part := range strings.Split(key, ",") {
		i, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrMalformedAnswerKey, key)
		}
		list = append(list, i)
	}
	return list, nil
}

// optionCount returns the length of a JSON array of options, or 0 when the
// options are absent or shaped differently.
func optionCount(options json.RawMessage) int {
	var items []json.RawMessage
	if err := json.Unmarshal(options, &items); err != nil {
		return 0
	}
	return len(items)
}

func boolIndex(b bool) int {
	if b {
		return 0
	}
	return 1
}

func boolPtr(b bool) *bool { return &b }
