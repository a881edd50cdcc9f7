package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-adaptive/internal/adaptive"
	"github.com/stemsi/exstem-adaptive/internal/middleware"
	"github.com/stemsi/exstem-adaptive/internal/model"
	"github.com/stemsi/exstem-adaptive/internal/response"
	"github.com/stemsi/exstem-adaptive/internal/service"
	"github.com/stemsi/exstem-adaptive/internal/validator"
)

// AssessmentHandler handles the student-facing assessment endpoints.
type AssessmentHandler struct {
	assessmentService *service.AssessmentService
	log               zerolog.Logger
}

// NewAssessmentHandler creates a new AssessmentHandler.
func NewAssessmentHandler(assessmentService *service.AssessmentService, log zerolog.Logger) *AssessmentHandler {
	return &AssessmentHandler{
		assessmentService: assessmentService,
		log:               log.With().Str("component", "assessment_handler").Logger(),
	}
}

// StartAssessment godoc
// POST /api/v1/student/assessments
// Starts an adaptive or assignment-bound assessment and returns the first question.
func (h *AssessmentHandler) StartAssessment(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.StartAssessmentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.assessmentService.StartSession(c.Request.Context(), service.StartInput{
		StudentID:    claims.UserID,
		GradeID:      claims.GradeID,
		SubjectID:    req.SubjectID,
		Period:       req.Period,
		AssignmentID: req.AssignmentID,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusCreated, result)
}

// SubmitAnswer godoc
// POST /api/v1/student/assessments/:assessment_id/answers
// Grades the answer and returns the next question or the final score.
func (h *AssessmentHandler) SubmitAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assessmentID, ok := bindAssessmentID(c)
	if !ok {
		return
	}

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.assessmentService.SubmitAnswer(c.Request.Context(), service.SubmitInput{
		StudentID:    claims.UserID,
		AssessmentID: assessmentID,
		QuestionID:   req.QuestionID,
		Answer:       req.Answer,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// GetState godoc
// GET /api/v1/student/assessments/:assessment_id/state
// Returns the progress of an attempt.
func (h *AssessmentHandler) GetState(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assessmentID, ok := bindAssessmentID(c)
	if !ok {
		return
	}

	state, err := h.assessmentService.GetState(c.Request.Context(), claims.UserID, assessmentID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, state)
}

func bindAssessmentID(c *gin.Context) (uuid.UUID, bool) {
	var uri model.AssessmentURI
	if fields := validator.BindURI(c, &uri); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidID, fields)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(uri.AssessmentID)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

// errorStatus maps domain errors to HTTP status and error code.
func errorStatus(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrConfigurationNotFound):
		return http.StatusNotFound, response.ErrConfigurationNotFound
	case errors.Is(err, service.ErrNoQuestionsAvailable):
		return http.StatusUnprocessableEntity, response.ErrNoQuestionsAvailable
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, response.ErrSessionNotFound
	case errors.Is(err, service.ErrAssessmentNotFound):
		return http.StatusNotFound, response.ErrAssessmentNotFound
	case errors.Is(err, service.ErrAssignmentNotFound):
		return http.StatusNotFound, response.ErrAssignmentNotFound
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusForbidden, response.ErrUnauthorized
	case errors.Is(err, service.ErrQuestionNotFound):
		return http.StatusNotFound, response.ErrQuestionNotFound
	case errors.Is(err, adaptive.ErrInvalidAnswerFormat):
		return http.StatusBadRequest, response.ErrInvalidAnswerFormat
	case errors.Is(err, service.ErrAssessmentCompleted):
		return http.StatusConflict, response.ErrAssessmentCompleted
	case errors.Is(err, service.ErrDuplicateSubmission):
		return http.StatusConflict, response.ErrDuplicateSubmission
	case errors.Is(err, service.ErrStorageFailure):
		return http.StatusServiceUnavailable, response.ErrStorageFailure
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}

func (h *AssessmentHandler) fail(c *gin.Context, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("code", string(code)).Str("path", c.FullPath()).Msg("Assessment request failed")
	}
	response.Fail(c, status, code)
}
