package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kubeasy-dev/kubeasy-backend/internal/apierr"
	"github.com/kubeasy-dev/kubeasy-backend/internal/logger"
	"github.com/kubeasy-dev/kubeasy-backend/internal/services"
)

type APIError struct {
	Message string   `json:"message"`
	Code    string   `json:"code,omitempty"`
	Missing []string `json:"missing,omitempty"`
	Unknown []string `json:"unknown,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{Error: APIError{Message: msg, Code: code}})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondServiceError maps a service-layer error onto the HTTP taxonomy:
// apierr statuses and objective mismatches pass through with their detail,
// anything else is logged and reduced to a generic internal error.
func RespondServiceError(c *gin.Context, log *logger.Logger, op string, err error) {
	var mismatch *services.ObjectiveMismatchError
	if errors.As(err, &mismatch) {
		c.JSON(http.StatusBadRequest, ErrorEnvelope{Error: APIError{
			Message: mismatch.Error(),
			Code:    "objective_mismatch",
			Missing: mismatch.Missing,
			Unknown: mismatch.Unknown,
		}})
		return
	}
	if ae := apierr.From(err); ae != nil {
		RespondError(c, ae.Status, ae.Code, ae)
		return
	}
	if log != nil {
		log.Error("unexpected error", "operation", op, "error", err)
	}
	RespondError(c, http.StatusInternalServerError, "internal_error", errors.New("internal error"))
}
