package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kubeasy-dev/kubeasy-backend/internal/apierr"
	"github.com/kubeasy-dev/kubeasy-backend/internal/logger"
	"github.com/kubeasy-dev/kubeasy-backend/internal/services"
	"github.com/kubeasy-dev/kubeasy-backend/internal/types"
)

// demoCookie is the client-held session token; it is cleared on every link
// outcome so a failed link cannot retry forever.
const demoCookie = "kubeasy_demo"

type DemoHandler struct {
	log     *logger.Logger
	demoSvc services.DemoService
}

func NewDemoHandler(log *logger.Logger, demoSvc services.DemoService) *DemoHandler {
	return &DemoHandler{
		log:     log.With("handler", "DemoHandler"),
		demoSvc: demoSvc,
	}
}

// POST /api/demo/session is anonymous and returns a fresh trial token.
func (h *DemoHandler) CreateSession(c *gin.Context) {
	var attribution types.Attribution
	// Attribution is optional; a missing or malformed body is an empty one.
	_ = c.ShouldBindJSON(&attribution)

	session, err := h.demoSvc.CreateSession(c.Request.Context(), attribution)
	if err != nil {
		RespondServiceError(c, h.log, "demo.create_session", err)
		return
	}
	RespondOK(c, gin.H{"token": session.Token})
}

// GET /api/demo/session?token=
func (h *DemoHandler) GetSession(c *gin.Context) {
	session, err := h.demoSvc.GetSession(c.Request.Context(), c.Query("token"))
	if err != nil {
		if ae := apierr.From(err); ae != nil && ae.Status == http.StatusNotFound {
			RespondOK(c, gin.H{"valid": false})
			return
		}
		RespondServiceError(c, h.log, "demo.get_session", err)
		return
	}
	RespondOK(c, gin.H{"valid": true, "completedAt": session.CompletedAt})
}

type demoTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// POST /api/demo/start
func (h *DemoHandler) Start(c *gin.Context) {
	var req demoTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", errors.New("token is required"))
		return
	}
	if err := h.demoSvc.StartDemo(c.Request.Context(), req.Token); err != nil {
		RespondServiceError(c, h.log, "demo.start", err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}

type demoSubmitRequest struct {
	Token   string                  `json:"token" binding:"required"`
	Results []types.ObjectiveResult `json:"results" binding:"required,min=1,dive"`
}

// POST /api/demo/submit
func (h *DemoHandler) Submit(c *gin.Context) {
	var req demoSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", errors.New("token and at least one objective result are required"))
		return
	}
	result, err := h.demoSvc.SubmitDemo(c.Request.Context(), req.Token, req.Results)
	if err != nil {
		RespondServiceError(c, h.log, "demo.submit", err)
		return
	}
	RespondOK(c, result)
}

// POST /api/demo/link is the authenticated conversion of a trial session.
func (h *DemoHandler) Link(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	// Cleared no matter what happens below.
	c.SetCookie(demoCookie, "", -1, "/", "", false, true)

	var req demoTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", errors.New("token is required"))
		return
	}
	result, err := h.demoSvc.LinkConversion(c.Request.Context(), userID, req.Token)
	if err != nil {
		RespondServiceError(c, h.log, "demo.link", err)
		return
	}
	RespondOK(c, result)
}
