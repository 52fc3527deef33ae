package dto

// Webhook envelope statuses
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Messages returned in webhook error envelopes
const (
	MsgForbidden      = "Forbidden"
	MsgInvalidPayload = "Invalid payload"
	MsgTooLarge       = "Request body too large"
	MsgInternal       = "internal error"
)

// WebhookResponse is the envelope every webhook call answers with
type WebhookResponse struct {
	Status    string             `json:"status"`
	Summary   string             `json:"summary,omitempty"`
	Count     *int               `json:"count,omitempty"`
	Counts    map[string]int     `json:"counts,omitempty"`
	DryRun    *bool              `json:"dryrun,omitempty"`
	Message   string             `json:"message,omitempty"`
	RequestID string             `json:"requestId,omitempty"`
	Details   []ValidationDetail `json:"details,omitempty"`
}

// ValidationDetail names one rejected field
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// NewWebhookError creates an error envelope
func NewWebhookError(message, requestID string) WebhookResponse {
	return WebhookResponse{Status: StatusError, Message: message, RequestID: requestID}
}

// Response is the envelope of the read-only audit API
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
	Meta    *Meta      `json:"meta,omitempty"`
}

// ErrorInfo represents error details
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Meta represents pagination metadata
type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data any) Response {
	return Response{Success: true, Data: data}
}

// NewSuccessResponseWithMeta creates a success response with pagination meta
func NewSuccessResponseWithMeta(data any, total int64, page, pageSize int) Response {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int(total) / pageSize
		if int(total)%pageSize > 0 {
			totalPages++
		}
	}
	return Response{
		Success: true,
		Data:    data,
		Meta: &Meta{
			Total:      total,
			Page:       page,
			PageSize:   pageSize,
			TotalPages: totalPages,
		},
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(code, message, requestID string) Response {
	return Response{
		Success: false,
		Error:   &ErrorInfo{Code: code, Message: message, RequestID: requestID},
	}
}

// Error codes of the audit API
const (
	ErrCodeBadRequest  = "BAD_REQUEST"
	ErrCodeInternal    = "INTERNAL_ERROR"
	ErrCodeUnavailable = "SERVICE_UNAVAILABLE"
)
