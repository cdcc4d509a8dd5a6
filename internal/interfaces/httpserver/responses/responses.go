package responses

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chatlima-server/internal/infrastructure/logger"
	"chatlima-server/internal/utils/platformerrors"
)

// ErrorResponse represents an error response with platform error details
type ErrorResponse struct {
	Code          string `json:"code"` // UUID from PlatformError
	Error         string `json:"error"`
	Message       string `json:"message,omitempty"`
	Details       string `json:"details,omitempty"`
	ErrorInstance error  `json:"-"`
	RequestID     string `json:"request_id,omitempty"`
}

// AppErrorResponse is the envelope used when an error carries an application code.
type AppErrorResponse struct {
	Success bool         `json:"success"`
	Error   AppErrorBody `json:"error"`
}

type AppErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ListResponse wraps a paginated listing.
type ListResponse[T any] struct {
	Data  []T   `json:"data"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

// HandleError handles domain errors and returns appropriate HTTP responses
func HandleError(reqCtx *gin.Context, err error, message string) {
	var domainErr *platformerrors.PlatformError
	if errors.As(err, &domainErr) {
		statusCode := platformerrors.ErrorTypeToHTTPStatus(domainErr.GetErrorType())

		errorMessage := domainErr.Message
		if errorMessage == "" {
			errorMessage = message
		}
		details := ""
		if statusCode >= http.StatusInternalServerError {
			platformerrors.LogError(logger.Component("http"), domainErr)
			if domainErr.Err != nil {
				details = domainErr.Err.Error()
			}
		}

		if domainErr.Code != "" {
			var appDetails any
			if len(domainErr.Context) > 0 {
				appDetails = domainErr.Context
			} else if details != "" {
				appDetails = details
			}
			HandleAppError(reqCtx, statusCode, domainErr.Code, errorMessage, appDetails)
			return
		}

		errResp := ErrorResponse{
			Code:          domainErr.GetUUID(),
			Error:         errorMessage,
			Message:       errorMessage,
			Details:       details,
			ErrorInstance: domainErr,
			RequestID:     domainErr.GetRequestID(),
		}

		_ = reqCtx.Error(domainErr)
		reqCtx.AbortWithStatusJSON(statusCode, errResp)
		return
	}
	// Non-platform errors
	errResp := ErrorResponse{
		Error:         message,
		Message:       message,
		ErrorInstance: err,
	}
	if err != nil {
		errResp.Details = err.Error()
		_ = reqCtx.Error(err)
	}
	reqCtx.AbortWithStatusJSON(http.StatusInternalServerError, errResp)
}

// HandleNewError creates a new typed error at the route layer and handles it
func HandleNewError(reqCtx *gin.Context, errorType platformerrors.ErrorType, message string, uuid string) {
	ctx := reqCtx.Request.Context()
	err := platformerrors.NewError(ctx, platformerrors.LayerRoute, errorType, message, nil, uuid)

	statusCode := platformerrors.ErrorTypeToHTTPStatus(err.GetErrorType())

	errResp := ErrorResponse{
		Code:          err.GetUUID(),
		Error:         message,
		Message:       message,
		ErrorInstance: err,
		RequestID:     err.GetRequestID(),
	}

	reqCtx.AbortWithStatusJSON(statusCode, errResp)
}

// HandleAppError writes the {success:false, error:{code, message}} envelope.
func HandleAppError(reqCtx *gin.Context, statusCode int, code, message string, details any) {
	reqCtx.AbortWithStatusJSON(statusCode, AppErrorResponse{
		Error: AppErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}
