package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestFail_EnvelopeCarriesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/x", func(c *gin.Context) {
		Fail(c, http.StatusConflict, ErrDuplicateSubmission)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d", w.Code)
	}
	var body Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error == nil || body.Error.Code != ErrDuplicateSubmission {
		t.Errorf("error = %+v", body.Error)
	}
	if body.Error.Message != GetMessage(ErrDuplicateSubmission) {
		t.Errorf("message = %q", body.Error.Message)
	}
	if body.Metadata.RequestID != "req-123" || w.Header().Get("X-Request-ID") != "req-123" {
		t.Errorf("request id = %q", body.Metadata.RequestID)
	}
}

func TestGetMessage_KnownCodesHaveMessages(t *testing.T) {
	fallback := GetMessage("SOMETHING_ELSE")
	codes := []ErrCode{
		ErrConfigurationNotFound, ErrNoQuestionsAvailable, ErrSessionNotFound,
		ErrAssessmentNotFound, ErrUnauthorized, ErrQuestionNotFound,
		ErrInvalidAnswerFormat, ErrStorageFailure, ErrDuplicateSubmission,
	}
	for _, c := range codes {
		if GetMessage(c) == fallback {
			t.Errorf("%s has no message", c)
		}
	}
}
