package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/creator-coin-ledger/internal/api_gateway/middleware"
	"github.com/creator-coin-ledger/internal/domain/shared"
)

// Response represents a standard API response
type Response struct {
	Data          interface{} `json:"data,omitempty"`
	Error         *ErrorInfo  `json:"error,omitempty"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	Meta          *MetaInfo   `json:"meta,omitempty"`
}

// ErrorInfo represents error information in a response
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RiskScore int    `json:"risk_score,omitempty"`
	Action    string `json:"action,omitempty"`
}

// MetaInfo represents metadata in a response
type MetaInfo struct {
	Page       int `json:"page,omitempty"`
	PerPage    int `json:"per_page,omitempty"`
	TotalPages int `json:"total_pages,omitempty"`
	TotalItems int `json:"total_items,omitempty"`
}

// NewResponse creates a new response with data
func NewResponse(data interface{}) *Response {
	return &Response{
		Data: data,
	}
}

// NewErrorResponse creates a new error response
func NewErrorResponse(code, message string) *Response {
	return &Response{
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	}
}

// NewPaginatedResponse creates a new paginated response
func NewPaginatedResponse(data interface{}, page, perPage, totalItems int) *Response {
	totalPages := totalItems / perPage
	if totalItems%perPage > 0 {
		totalPages++
	}

	return &Response{
		Data: data,
		Meta: &MetaInfo{
			Page:       page,
			PerPage:    perPage,
			TotalPages: totalPages,
			TotalItems: totalItems,
		},
	}
}

// RespondWithData sends a JSON response with data
func RespondWithData(c *gin.Context, statusCode int, data interface{}) {
	response := NewResponse(data)
	response.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(statusCode, response)
}

// RespondWithError sends a JSON response with an error
func RespondWithError(c *gin.Context, statusCode int, code, message string) {
	response := NewErrorResponse(code, message)
	response.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(statusCode, response)
}

// RespondWithPaginatedData sends a JSON response with paginated data
func RespondWithPaginatedData(c *gin.Context, statusCode int, data interface{}, page, perPage, totalItems int) {
	response := NewPaginatedResponse(data, page, perPage, totalItems)
	response.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(statusCode, response)
}

// RespondOK sends a 200 OK response with data
func RespondOK(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusOK, data)
}

// RespondCreated sends a 201 Created response with data
func RespondCreated(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusCreated, data)
}

// RespondAccepted sends a 202 Accepted response with data.
func RespondAccepted(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusAccepted, data)
}

// RespondBadRequest sends a 400 Bad Request response with an error
func RespondBadRequest(c *gin.Context, message string) {
	RespondWithError(c, http.StatusBadRequest, string(shared.CodeInvalidInput), message)
}

// RespondInternalError sends a 500 Internal Server Error response with an error
func RespondInternalError(c *gin.Context) {
	RespondWithError(c, http.StatusInternalServerError, string(shared.CodeInternal), "An internal server error occurred")
}

// statusFor maps a monetization error code to its HTTP status
func statusFor(code shared.ErrorCode) int {
	switch code {
	case shared.CodeInvalidInput:
		return http.StatusBadRequest
	case shared.CodeUnauthorized, shared.CodeFraudBlocked:
		return http.StatusForbidden
	case shared.CodeNotFound:
		return http.StatusNotFound
	case shared.CodeAlreadyUnlocked, shared.CodeAlreadySubscribed, shared.CodeOperationInProgress:
		return http.StatusConflict
	case shared.CodeInsufficientBalance:
		return http.StatusPaymentRequired
	case shared.CodeContentNotAvailable:
		return http.StatusGone
	case shared.CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case shared.CodeTransactionAborted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondError translates an error from the monetization core into a response.
// Untagged errors never leak their message.
func RespondError(c *gin.Context, err error) {
	e, ok := shared.AsError(err)
	if !ok || e.Code == shared.CodeInternal {
		RespondInternalError(c)
		return
	}
	response := NewErrorResponse(string(e.Code), e.Message)
	response.Error.RiskScore = e.RiskScore
	response.Error.Action = e.Action
	response.CorrelationID = middleware.GetCorrelationID(c)
	if e.Retryable() {
		c.Header("Retry-After", "1")
	}
	c.JSON(statusFor(e.Code), response)
}
