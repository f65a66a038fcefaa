package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kubeasy-dev/kubeasy-backend/internal/logger"
	"github.com/kubeasy-dev/kubeasy-backend/internal/services"
)

type OnboardingHandler struct {
	log           *logger.Logger
	onboardingSvc services.OnboardingService
}

func NewOnboardingHandler(log *logger.Logger, onboardingSvc services.OnboardingService) *OnboardingHandler {
	return &OnboardingHandler{
		log:           log.With("handler", "OnboardingHandler"),
		onboardingSvc: onboardingSvc,
	}
}

// POST /api/cli/login reports CLI telemetry on `kubeasy login`.
func (h *OnboardingHandler) TrackCliLogin(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var req services.CliInfo
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	firstTime, err := h.onboardingSvc.TrackCliLogin(c.Request.Context(), userID, req)
	if err != nil {
		RespondServiceError(c, h.log, "onboarding.cli_login", err)
		return
	}
	RespondOK(c, gin.H{"success": true, "firstTime": firstTime})
}

// POST /api/cli/setup reports CLI telemetry once the local cluster is up.
func (h *OnboardingHandler) TrackClusterSetup(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	firstTime, err := h.onboardingSvc.TrackClusterSetup(c.Request.Context(), userID)
	if err != nil {
		RespondServiceError(c, h.log, "onboarding.cluster_setup", err)
		return
	}
	RespondOK(c, gin.H{"success": true, "firstTime": firstTime})
}

// GET /api/onboarding/status
func (h *OnboardingHandler) Status(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	status, err := h.onboardingSvc.GetStatus(c.Request.Context(), userID)
	if err != nil {
		RespondServiceError(c, h.log, "onboarding.status", err)
		return
	}
	RespondOK(c, status)
}

// POST /api/onboarding/complete
func (h *OnboardingHandler) Complete(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	if err := h.onboardingSvc.Complete(c.Request.Context(), userID); err != nil {
		RespondServiceError(c, h.log, "onboarding.complete", err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}

// POST /api/onboarding/skip
func (h *OnboardingHandler) Skip(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	if err := h.onboardingSvc.Skip(c.Request.Context(), userID); err != nil {
		RespondServiceError(c, h.log, "onboarding.skip", err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}
