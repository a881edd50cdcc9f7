//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/stemsi/exstem-adaptive/internal/config"
	"github.com/stemsi/exstem-adaptive/internal/model"
	"github.com/stemsi/exstem-adaptive/internal/service"
)

const (
	defaultBaseURL = "http://localhost:8080/api/v1"
	e2eStudentID   = 990001
	e2eGradeID     = 10
	e2eSubjectID   = 990
	e2eMaxQuestion = 4
)

var (
	baseURL      string
	studentToken string
	otherToken   string
)

func TestMain(m *testing.M) {
	// Load .env if present (ignore error)
	_ = godotenv.Load("../../.env")

	baseURL = os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	cfg := config.Load()
	if err := seed(cfg.DatabaseURL); err != nil {
		fmt.Printf("Setup failed: %v\n", err)
		os.Exit(1)
	}

	auth := service.NewAuthService(cfg)
	grade := e2eGradeID
	var err error
	if studentToken, err = auth.GenerateStudentToken(e2eStudentID, &grade); err != nil {
		fmt.Printf("Token failed: %v\n", err)
		os.Exit(1)
	}
	if otherToken, err = auth.GenerateStudentToken(e2eStudentID+1, &grade); err != nil {
		fmt.Printf("Token failed: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

// seed resets the e2e subject and loads a small ladder of questions.
func seed(dbURL string) error {
	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer conn.Close(ctx)

	stmts := []string{
		`DELETE FROM assessments WHERE subject_id = $1`,
		`DELETE FROM questions WHERE subject_id = $1`,
		`DELETE FROM assessment_configurations WHERE subject_id = $1`,
	}
	for _, s := range stmts {
		if _, err := conn.Exec(ctx, s, e2eSubjectID); err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}
	}

	if _, err := conn.Exec(ctx,
		`INSERT INTO assessment_configurations (grade_id, subject_id, time_limit_minutes, max_questions)
		 VALUES ($1, $2, 30, $3)`, e2eGradeID, e2eSubjectID, e2eMaxQuestion); err != nil {
		return fmt.Errorf("insert configuration: %w", err)
	}

	for d := 200; d <= 260; d += 3 {
		if _, err := conn.Exec(ctx,
			`INSERT INTO questions (subject_id, grade_id, question_text, question_type, options, correct_answer, difficulty_level)
			 VALUES ($1, $2, $3, 'MULTIPLE_CHOICE', '["A","B","C","D"]', '0', $4)`,
			e2eSubjectID, e2eGradeID, fmt.Sprintf("E2E question %d", d), d); err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
	}
	return nil
}

type envelope[T any] struct {
	Data  T `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func TestE2EAdaptiveFlow(t *testing.T) {
	var start service.StartResult

	t.Run("Start", func(t *testing.T) {
		resp, err := post("/student/assessments", model.StartAssessmentRequest{SubjectID: e2eSubjectID, Period: "E2E"}, studentToken)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}

		var body envelope[service.StartResult]
		decodeJSON(t, resp, &body)
		start = body.Data
		if start.Mode != model.AssessmentModeAdaptive || start.MaxQuestions != e2eMaxQuestion {
			t.Fatalf("unexpected start payload: %+v", start)
		}
	})

	t.Run("ForeignStudentRejected", func(t *testing.T) {
		resp, err := get(fmt.Sprintf("/student/assessments/%s/state", start.AssessmentID), otherToken)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("status %d: %s", resp.StatusCode, readBody(resp))
		}
	})

	t.Run("AnswerUntilComplete", func(t *testing.T) {
		questionID := start.FirstQuestion.ID
		for i := 1; i <= e2eMaxQuestion; i++ {
			resp, err := post(fmt.Sprintf("/student/assessments/%s/answers", start.AssessmentID),
				map[string]any{"question_id": questionID, "answer": 0}, studentToken)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}

			var body envelope[service.SubmitResult]
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("answer %d: status %d: %s", i, resp.StatusCode, readBody(resp))
			}
			decodeJSON(t, resp, &body)
			resp.Body.Close()

			if i < e2eMaxQuestion {
				if body.Data.Completed || body.Data.NextQuestion == nil {
					t.Fatalf("answer %d: unexpected completion %+v", i, body.Data)
				}
				questionID = body.Data.NextQuestion.ID
				continue
			}
			if !body.Data.Completed || body.Data.FinalScore == nil || *body.Data.CorrectAnswers != e2eMaxQuestion {
				t.Fatalf("final answer: %+v", body.Data)
			}
			t.Logf("Final score: %d", *body.Data.FinalScore)
		}
	})

	t.Run("StateAfterCompletion", func(t *testing.T) {
		resp, err := get(fmt.Sprintf("/student/assessments/%s/state", start.AssessmentID), studentToken)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		var body envelope[service.ProgressState]
		decodeJSON(t, resp, &body)
		if body.Data.Status != model.AssessmentStatusCompleted || body.Data.QuestionCount != e2eMaxQuestion {
			t.Errorf("state = %+v", body.Data)
		}
	})

	t.Run("SubmitAfterCompletionRejected", func(t *testing.T) {
		resp, err := post(fmt.Sprintf("/student/assessments/%s/answers", start.AssessmentID),
			map[string]any{"question_id": start.FirstQuestion.ID, "answer": 0}, studentToken)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("status %d: %s", resp.StatusCode, readBody(resp))
		}
	})
}

func post(path string, body interface{}, token string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest("POST", baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	return client.Do(req)
}

func get(path string, token string) (*http.Response, error) {
	req, err := http.NewRequest("GET", baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	return client.Do(req)
}

func readBody(resp *http.Response) string {
	b, _ := io.ReadAll(resp.Body)
	return string(b)
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("json decode: %v", err)
	}
}
