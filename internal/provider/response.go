package provider

import (
	"time"
)

type Status string

const (
	StatusOK                Status = "OK"
	StatusError             Status = "ERROR"
	StatusUnauthorized      Status = "UNAUTHORIZED"
	StatusExceededRateLimit Status = "EXCEEDED_RATE_LIMIT"
)

// Response is the uniform envelope every provider operation terminates in.
// Adapters never let transport or validation errors escape as raw errors;
// they classify them into one of the four statuses.
type Response struct {
	status      Status
	context     any
	rateLimited bool
	retryAfter  time.Duration
	appLevel    bool
	errMessage  string
}

func NewResponse(status Status, context any) Response {
	if context == nil {
		context = map[string]any{}
	}
	return Response{status: status, context: context}
}

func OKResponse(context any) Response {
	return NewResponse(StatusOK, context)
}

func ErrorResponse(context any, message string) Response {
	r := NewResponse(StatusError, context)
	r.errMessage = message
	return r
}

func UnauthorizedResponse() Response {
	return NewResponse(StatusUnauthorized, []string{"access_token_expired"})
}

func RateLimitResponse(retryAfter time.Duration, appLevel bool) Response {
	r := NewResponse(StatusExceededRateLimit, map[string]any{
		"retry_after": int64(retryAfter / time.Second),
	})
	r.rateLimited = true
	r.retryAfter = retryAfter
	r.appLevel = appLevel
	return r
}

func (r Response) Status() Status { return r.status }

// HasError is true for every status except OK.
func (r Response) HasError() bool { return r.status != StatusOK }

func (r Response) IsUnauthorized() bool { return r.status == StatusUnauthorized }

func (r Response) IsRateLimited() bool { return r.rateLimited }

func (r Response) RetryAfter() time.Duration { return r.retryAfter }

// IsAppLevel distinguishes platform-wide throttling from per-account limits.
func (r Response) IsAppLevel() bool { return r.appLevel }

// Context is always a defined value, never nil.
func (r Response) Context() any {
	if r.context == nil {
		return map[string]any{}
	}
	return r.context
}

func (r Response) ErrorMessage() string { return r.errMessage }

// ID extracts the created-object id when the context carries one.
func (r Response) ID() string {
	if m, ok := r.context.(map[string]any); ok {
		if id, ok := m["id"].(string); ok {
			return id
		}
	}
	return ""
}

// Entities returns the entity list carried by a GetEntities response.
func (r Response) Entities() []Entity {
	if list, ok := r.context.([]Entity); ok {
		return list
	}
	return nil
}
