package handler

import (
	"net/http"

	"procurement/internal/workflow"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// statusFor maps a workflow error kind onto its HTTP status.
func statusFor(kind workflow.Kind) int {
	switch kind {
	case workflow.KindNotFound:
		return http.StatusNotFound
	case workflow.KindConflict:
		return http.StatusConflict
	case workflow.KindInvalidState:
		return http.StatusUnprocessableEntity
	case workflow.KindValidation:
		return http.StatusBadRequest
	case workflow.KindForbidden:
		return http.StatusForbidden
	case workflow.KindDependencyFailure:
		return http.StatusBadGateway
	case workflow.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	kind := workflow.KindOf(err)
	status := statusFor(kind)
	c.JSON(status, response.ErrorWithCode(status, kind.String(), err.Error()))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, response.ErrorWithCode(http.StatusBadRequest, workflow.KindValidation.String(), msg))
}

// requestID parses the :id path parameter, writing a 400 when it is not a uuid.
func requestID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid request id")
		return uuid.Nil, false
	}
	return id, true
}
