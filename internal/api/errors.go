package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/presale/internal/workflow"
)

type errorBody struct {
	Error     string             `json:"error"`
	Kind      workflow.ErrorKind `json:"kind"`
	Retryable bool               `json:"retryable"`
}

func statusFor(kind workflow.ErrorKind) int {
	switch kind {
	case workflow.KindNotFound:
		return http.StatusNotFound
	case workflow.KindValidation:
		return http.StatusBadRequest
	case workflow.KindInvalidState, workflow.KindDuplicate, workflow.KindDupName, workflow.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	kind := workflow.KindOf(err)
	c.AbortWithStatusJSON(statusFor(kind), errorBody{
		Error:     err.Error(),
		Kind:      kind,
		Retryable: workflow.Retryable(err),
	})
}

// badRequest reports a body that failed to bind.
func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{
		Error: err.Error(),
		Kind:  workflow.KindValidation,
	})
}
