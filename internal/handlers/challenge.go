package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kubeasy-dev/kubeasy-backend/internal/logger"
	"github.com/kubeasy-dev/kubeasy-backend/internal/requestdata"
	"github.com/kubeasy-dev/kubeasy-backend/internal/services"
	"github.com/kubeasy-dev/kubeasy-backend/internal/types"
)

type ChallengeHandler struct {
	log         *logger.Logger
	progressSvc services.ProgressService
}

func NewChallengeHandler(log *logger.Logger, progressSvc services.ProgressService) *ChallengeHandler {
	return &ChallengeHandler{
		log:         log.With("handler", "ChallengeHandler"),
		progressSvc: progressSvc,
	}
}

func callerID(c *gin.Context) (uuid.UUID, bool) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return uuid.Nil, false
	}
	return rd.UserID, true
}

// POST /api/challenges/:slug/start
func (h *ChallengeHandler) Start(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	state, err := h.progressSvc.Start(c.Request.Context(), userID, c.Param("slug"))
	if err != nil {
		RespondServiceError(c, h.log, "challenge.start", err)
		return
	}
	RespondOK(c, state)
}

// GET /api/challenges/:slug/status
func (h *ChallengeHandler) Status(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	state, err := h.progressSvc.Status(c.Request.Context(), userID, c.Param("slug"))
	if err != nil {
		RespondServiceError(c, h.log, "challenge.status", err)
		return
	}
	RespondOK(c, state)
}

type submitRequest struct {
	Results []types.ObjectiveResult `json:"results" binding:"required,min=1,dive"`
}

// POST /api/challenges/:slug/submit
func (h *ChallengeHandler) Submit(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", errors.New("results must contain at least one objective result"))
		return
	}
	result, err := h.progressSvc.Submit(c.Request.Context(), userID, c.Param("slug"), req.Results)
	if err != nil {
		RespondServiceError(c, h.log, "challenge.submit", err)
		return
	}
	RespondOK(c, result)
}

// POST /api/challenges/:slug/reset
func (h *ChallengeHandler) Reset(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	if err := h.progressSvc.Reset(c.Request.Context(), userID, c.Param("slug")); err != nil {
		RespondServiceError(c, h.log, "challenge.reset", err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}
