package common

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/truckroute/pkg/logger"
	"github.com/richxcame/truckroute/pkg/validation"
	"go.uber.org/zap"
)

// HandleServiceError writes err as a response. It returns false when err is nil.
// AppErrors keep their status; anything else is logged and becomes a 500.
// Server errors are also attached to c for error reporting.
func HandleServiceError(c *gin.Context, err error, fallbackMessage string) bool {
	if err == nil {
		return false
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Code >= 500 {
			_ = c.Error(err)
		}
		AppErrorResponse(c, appErr)
		return true
	}

	_ = c.Error(err)
	logger.ErrorContext(c.Request.Context(), fallbackMessage, zap.Error(err))
	AppErrorResponse(c, NewInternalError(fallbackMessage, err))
	return true
}

// BindJSON binds and validates the request body, writing a 400 on failure.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		AppErrorResponse(c, NewBadRequestError(err.Error(), err))
		return false
	}
	if err := validation.ValidateStruct(obj); err != nil {
		AppErrorResponse(c, NewValidationError(err.Error()))
		return false
	}
	return true
}
