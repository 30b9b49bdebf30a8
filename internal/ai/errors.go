// errors.go - Boundary translation of provider errors into fixed kinds

package ai

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
)

// ErrorKind classifies a model-service failure. Provider-specific error
// text is translated into this enumeration exactly once, here at the
// boundary; call sites switch on Kind and never re-match strings.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindRateLimited
	KindContentBlocked
	KindMalformed
	KindUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindContentBlocked:
		return "content_blocked"
	case KindMalformed:
		return "malformed"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// GatewayError is a categorized model-service error.
type GatewayError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	RetryAfter time.Duration // only set for KindRateLimited
	Err        error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("[%s] %s (status: %d)", e.Kind, e.Message, e.StatusCode)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt with the same prompt can
// succeed. A content block is a decision, not a transient fault, and is
// never retryable.
func (e *GatewayError) Retryable() bool {
	return e.Kind == KindRateLimited || e.Kind == KindUnavailable
}

// retryInPattern matches the provider's wait hint, e.g.
// "Please retry in 30.552511343s".
var retryInPattern = regexp.MustCompile(`retry in (\d+(?:\.\d+)?)s`)

// retryDelayMargin is added on top of the provider's suggested wait.
const retryDelayMargin = 2 * time.Second

// categorize translates a raw provider error into a GatewayError.
func categorize(err error) *GatewayError {
	if err == nil {
		return nil
	}

	ge := &GatewayError{Kind: KindUnknown, Message: err.Error(), Err: err}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		ge.StatusCode = apiErr.Code

		switch {
		case apiErr.Code == 429:
			ge.Kind = KindRateLimited
			ge.Message = "APIの利用制限に達しました"
			ge.RetryAfter = parseRetryDelay(err.Error())
		case apiErr.Code >= 500:
			ge.Kind = KindUnavailable
			ge.Message = fmt.Sprintf("モデルサービスが一時的に利用できません (%d)", apiErr.Code)
		case apiErr.Code == 401 || apiErr.Code == 403:
			ge.Kind = KindUnknown
			ge.Message = "APIキーの認証に失敗しました"
		default:
			ge.Kind = KindUnknown
			ge.Message = apiErr.Message
		}
		return ge
	}

	if errors.Is(err, context.DeadlineExceeded) {
		ge.Kind = KindUnavailable
		ge.Message = "モデルサービスへのリクエストがタイムアウトしました"
		return ge
	}

	// gRPC-transported errors reach us as plain errors; fall back to one
	// message-pattern pass. This is the single place such matching happens.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"), strings.Contains(msg, "quota"), strings.Contains(msg, "resource exhausted"):
		ge.Kind = KindRateLimited
		ge.Message = "APIの利用制限に達しました"
		ge.RetryAfter = parseRetryDelay(err.Error())
	case strings.Contains(msg, "unavailable"), strings.Contains(msg, "connection"), strings.Contains(msg, "deadline"):
		ge.Kind = KindUnavailable
		ge.Message = "モデルサービスに接続できません"
	}
	return ge
}

// parseRetryDelay extracts the provider's suggested wait from the error
// text, adding a small margin. Zero means "no hint"; the retry loop then
// falls back to the configured default.
func parseRetryDelay(errText string) time.Duration {
	m := retryInPattern.FindStringSubmatch(errText)
	if m == nil {
		return 0
	}
	secs, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return time.Duration(secs*float64(time.Second)) + retryDelayMargin
}
