package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/truckroute/pkg/logger"
)

// Response is the envelope of every API reply.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo describes a failed request. RequestID is the correlation id, so a
// driver-reported failure can be found in the logs.
type ErrorInfo struct {
	Code      int    `json:"code"`
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// SuccessResponse writes a 200 envelope.
func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// CreatedResponse writes a 201 envelope.
func CreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

// ErrorResponse writes an error envelope with no machine-readable code.
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	writeError(c, &ErrorInfo{Code: statusCode, Message: message})
}

// AppErrorResponse writes err with its status and code.
func AppErrorResponse(c *gin.Context, err *AppError) {
	writeError(c, &ErrorInfo{Code: err.Code, ErrorCode: err.ErrorCode, Message: err.Message})
}

func writeError(c *gin.Context, info *ErrorInfo) {
	if c.Request != nil {
		info.RequestID = logger.CorrelationIDFromContext(c.Request.Context())
	}
	c.AbortWithStatusJSON(info.Code, Response{Success: false, Error: info})
}
