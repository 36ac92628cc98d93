package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/interview-evaluator/internal/domain/knowledge"
	apperrors "github.com/yanqian/interview-evaluator/pkg/errors"
)

// CreateBankQuestion adds a bank entry.
func (h *Handler) CreateBankQuestion(c *gin.Context) {
	var req knowledge.Draft
	if !bindJSON(c, &req) {
		return
	}
	q, err := h.bank.Create(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusCreated, q)
}

// GetBankQuestion returns a bank entry.
func (h *Handler) GetBankQuestion(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	q, err := h.bank.Get(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, q)
}

// ReviseBankQuestion stores an edited copy of a bank entry.
func (h *Handler) ReviseBankQuestion(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req knowledge.Draft
	if !bindJSON(c, &req) {
		return
	}
	q, err := h.bank.Revise(c.Request.Context(), actorFrom(c), id, req)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusCreated, q)
}

// DeleteBankQuestion removes a bank entry.
func (h *Handler) DeleteBankQuestion(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.bank.Delete(c.Request.Context(), actorFrom(c), id); err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.Status(http.StatusNoContent)
}

type feedbackRequest struct {
	IsGood  bool   `json:"isGood"`
	Comment string `json:"comment"`
}

// BankFeedback records a manager verdict on a bank entry.
func (h *Handler) BankFeedback(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req feedbackRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.bank.Feedback(c.Request.Context(), actorFrom(c), id, req.IsGood, req.Comment); err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.Status(http.StatusNoContent)
}

type generateRequest struct {
	Technology string `json:"technology"`
	Count      int    `json:"count"`
}

// GenerateBank asks the LLM for new bank entries.
func (h *Handler) GenerateBank(c *gin.Context) {
	var req generateRequest
	if !bindJSON(c, &req) {
		return
	}
	questions, err := h.bank.Generate(c.Request.Context(), actorFrom(c), req.Technology, req.Count)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"questions": questions})
}

// ResolveBank previews the bank questions an interview would receive.
func (h *Handler) ResolveBank(c *gin.Context) {
	count, err := strconv.Atoi(c.DefaultQuery("count", "5"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, apperrors.CodeInvalidInput, "count must be an integer", err))
		return
	}
	var candidateID int64
	if raw := c.Query("candidateId"); raw != "" {
		candidateID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			abortWithError(c, NewHTTPError(http.StatusBadRequest, apperrors.CodeInvalidInput, "candidateId must be an integer", err))
			return
		}
	}
	questions, err := h.bank.Resolve(c.Request.Context(), knowledge.ResolveRequest{
		Technology:  c.Query("technology"),
		Count:       count,
		CandidateID: candidateID,
	})
	if err != nil {
		// A short bank still returns what it found.
		if apperrors.IsCode(err, apperrors.CodeNotFound) && len(questions) > 0 {
			c.JSON(http.StatusOK, gin.H{"questions": questions, "short": true})
			return
		}
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": questions, "short": false})
}
