package provider

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// buildResponse maps a raw transport response to an envelope. Any 2xx
// becomes OK with either the decoded body or a caller-supplied transform of
// it; 429 becomes EXCEEDED_RATE_LIMIT; 401 becomes UNAUTHORIZED; everything
// else is ERROR carrying the raw body as context.
func buildResponse(resp *resty.Response, okResult func() any) Response {
	switch {
	case resp.IsSuccess():
		if okResult != nil {
			return OKResponse(okResult())
		}
		return OKResponse(decodeBody(resp))
	case resp.StatusCode() == 429:
		return RateLimitResponse(retryAfter(resp), false)
	case resp.StatusCode() == 401:
		return UnauthorizedResponse()
	default:
		return ErrorResponse(decodeBody(resp), resp.Status())
	}
}

// buildQuotaResponse is the Google-flavoured classifier: quota exhaustion
// arrives as 403 with a reason code, not only as 429.
func buildQuotaResponse(resp *resty.Response, okResult func() any) Response {
	if resp.StatusCode() == 403 {
		if reason := googleErrorReason(resp.Body()); reason == "quotaExceeded" || reason == "rateLimitExceeded" {
			return RateLimitResponse(retryAfter(resp), true)
		}
	}
	return buildResponse(resp, okResult)
}

func googleErrorReason(body []byte) string {
	var payload struct {
		Error struct {
			Errors []struct {
				Reason string `json:"reason"`
			} `json:"errors"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if len(payload.Error.Errors) == 0 {
		return ""
	}
	return payload.Error.Errors[0].Reason
}

func retryAfter(resp *resty.Response) time.Duration {
	if header := resp.Header().Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultRetryAfter
}

func decodeBody(resp *resty.Response) any {
	var body map[string]any
	if err := json.Unmarshal(resp.Body(), &body); err != nil || body == nil {
		return map[string]any{"body": string(resp.Body())}
	}
	return body
}
