package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/interview-evaluator/internal/domain/evaluation"
	"github.com/yanqian/interview-evaluator/internal/domain/knowledge"
	apperrors "github.com/yanqian/interview-evaluator/pkg/errors"
)

// Handler wires the HTTP transport to domain services.
type Handler struct {
	evaluation *evaluation.Service
	bank       *knowledge.Service
	logger     *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(evaluationSvc *evaluation.Service, bankSvc *knowledge.Service, logger *slog.Logger) *Handler {
	return &Handler{
		evaluation: evaluationSvc,
		bank:       bankSvc,
		logger:     logger.With("component", "http.handler"),
	}
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CreateInterview opens a new interview.
func (h *Handler) CreateInterview(c *gin.Context) {
	var req evaluation.CreateInterviewInput
	if !bindJSON(c, &req) {
		return
	}
	iv, err := h.evaluation.CreateInterview(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusCreated, iv)
}

// GetInterview returns an interview.
func (h *Handler) GetInterview(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	iv, err := h.evaluation.GetInterview(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, iv)
}

// DeleteInterview removes an interview with its questions and answers.
func (h *Handler) DeleteInterview(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.evaluation.DeleteInterview(c.Request.Context(), actorFrom(c), id); err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.Status(http.StatusNoContent)
}

type scheduleRequest struct {
	ScheduledAt time.Time `json:"scheduledAt"`
}

// ScheduleInterview schedules or reschedules an interview.
func (h *Handler) ScheduleInterview(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req scheduleRequest
	if !bindJSON(c, &req) {
		return
	}
	iv, err := h.evaluation.Schedule(c.Request.Context(), actorFrom(c), id, req.ScheduledAt)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, iv)
}

type addQuestionsRequest struct {
	Questions []evaluation.QuestionInput `json:"questions"`
}

// AddQuestions attaches authored questions to an interview.
func (h *Handler) AddQuestions(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req addQuestionsRequest
	if !bindJSON(c, &req) {
		return
	}
	questions, err := h.evaluation.AddQuestions(c.Request.Context(), actorFrom(c), id, req.Questions)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"questions": questions})
}

type fromBankRequest struct {
	Count      int  `json:"count"`
	AllowShort bool `json:"allowShort"`
}

// AddQuestionsFromBank attaches resolved bank questions to an interview.
func (h *Handler) AddQuestionsFromBank(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req fromBankRequest
	if !bindJSON(c, &req) {
		return
	}
	questions, err := h.evaluation.AddQuestionsFromBank(c.Request.Context(), actorFrom(c), id, req.Count, req.AllowShort)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"questions": questions})
}

// ListQuestions lists the questions visible to the caller.
func (h *Handler) ListQuestions(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	questions, err := h.evaluation.ListQuestions(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": questions})
}

// ApproveQuestion makes a question visible to the candidate.
func (h *Handler) ApproveQuestion(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	q, err := h.evaluation.ApproveQuestion(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, q)
}

// EditQuestion changes an unapproved question.
func (h *Handler) EditQuestion(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req evaluation.QuestionEdit
	if !bindJSON(c, &req) {
		return
	}
	q, err := h.evaluation.EditQuestion(c.Request.Context(), actorFrom(c), id, req)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, q)
}

// RemoveQuestion deletes an unapproved question.
func (h *Handler) RemoveQuestion(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.evaluation.RemoveQuestion(c.Request.Context(), actorFrom(c), id); err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// ReembedQuestion refreshes a question's reference embedding.
func (h *Handler) ReembedQuestion(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	q, err := h.evaluation.ReembedQuestion(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, q)
}

type submitAnswerRequest struct {
	QuestionID int64  `json:"questionId"`
	Text       string `json:"text"`
}

// SubmitAnswer stores a candidate answer. Scoring happens in the background.
func (h *Handler) SubmitAnswer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req submitAnswerRequest
	if !bindJSON(c, &req) {
		return
	}
	ans, err := h.evaluation.SubmitAnswer(c.Request.Context(), actorFrom(c), evaluation.SubmitAnswerInput{
		InterviewID: id,
		QuestionID:  req.QuestionID,
		Text:        req.Text,
	})
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusAccepted, ans)
}

// RescoreAnswer forces a new scoring pass.
func (h *Handler) RescoreAnswer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ans, err := h.evaluation.Rescore(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, ans)
}

// ScoreInterview scores all outstanding answers of an interview.
func (h *Handler) ScoreInterview(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	run, err := h.evaluation.ScoreInterview(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, run)
}

// AggregateInterview recomputes the evaluation status.
func (h *Handler) AggregateInterview(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	out, err := h.evaluation.Aggregate(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, out)
}

// Report returns the per-question evaluation report.
func (h *Handler) Report(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	report, err := h.evaluation.Report(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, report)
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, apperrors.CodeInvalidInput, errMessage(err), err))
		return false
	}
	return true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, apperrors.CodeInvalidInput, "id must be a positive integer", err))
		return 0, false
	}
	return id, true
}
