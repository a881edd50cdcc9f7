package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-adaptive/internal/adaptive"
	"github.com/stemsi/exstem-adaptive/internal/middleware"
	"github.com/stemsi/exstem-adaptive/internal/response"
	"github.com/stemsi/exstem-adaptive/internal/service"
	"github.com/stemsi/exstem-adaptive/internal/validator"
)

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   response.ErrCode
	}{
		{service.ErrConfigurationNotFound, http.StatusNotFound, response.ErrConfigurationNotFound},
		{service.ErrNoQuestionsAvailable, http.StatusUnprocessableEntity, response.ErrNoQuestionsAvailable},
		{service.ErrSessionNotFound, http.StatusNotFound, response.ErrSessionNotFound},
		{service.ErrAssessmentNotFound, http.StatusNotFound, response.ErrAssessmentNotFound},
		{service.ErrUnauthorized, http.StatusForbidden, response.ErrUnauthorized},
		{service.ErrQuestionNotFound, http.StatusNotFound, response.ErrQuestionNotFound},
		{fmt.Errorf("%w: bad index", adaptive.ErrInvalidAnswerFormat), http.StatusBadRequest, response.ErrInvalidAnswerFormat},
		{service.ErrDuplicateSubmission, http.StatusConflict, response.ErrDuplicateSubmission},
		{service.ErrAssessmentCompleted, http.StatusConflict, response.ErrAssessmentCompleted},
		{fmt.Errorf("insert response: %w: %w", service.ErrStorageFailure, errors.New("conn reset")), http.StatusServiceUnavailable, response.ErrStorageFailure},
		{adaptive.ErrMalformedAnswerKey, http.StatusInternalServerError, response.ErrInternal},
	}
	for _, tc := range tests {
		t.Run(string(tc.code), func(t *testing.T) {
			status, code := errorStatus(tc.err)
			if status != tc.status || code != tc.code {
				t.Errorf("errorStatus(%v) = %d %s, want %d %s", tc.err, status, code, tc.status, tc.code)
			}
		})
	}
}

func TestAssessmentHandler_Validation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	validator.Setup()

	h := NewAssessmentHandler(nil, zerolog.Nop())
	r := gin.New()
	r.Use(response.RequestIDMiddleware(), func(c *gin.Context) {
		c.Set(middleware.ContextKeyClaims, &service.Claims{UserID: 1, TokenType: service.TokenTypeStudent})
	})
	r.POST("/assessments", h.StartAssessment)
	r.POST("/assessments/:assessment_id/answers", h.SubmitAnswer)

	tests := []struct {
		name string
		path string
		body string
		code response.ErrCode
	}{
		{"start without subject", "/assessments", `{"period":"2026-S1"}`, response.ErrValidation},
		{"start with bad json", "/assessments", `{`, response.ErrValidation},
		{"submit with bad id", "/assessments/not-a-uuid/answers", `{"question_id":"00000000-0000-0000-0000-000000000001","answer":0}`, response.ErrInvalidID},
		{"submit without answer", "/assessments/7f1d3a0e-7a4f-4b8e-9c55-1c0a8f3b2d11/answers", `{"question_id":"00000000-0000-0000-0000-000000000001"}`, response.ErrValidation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tc.path, bytes.NewBufferString(tc.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			var body response.Response
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error == nil || body.Error.Code != tc.code {
				t.Errorf("error = %+v, want %s", body.Error, tc.code)
			}
		})
	}
}
