package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestCategorizeRateLimit(t *testing.T) {
	err := &googleapi.Error{
		Code: 429,
		Body: "Resource has been exhausted. Please retry in 30.552511343s.",
	}
	ge := categorize(fmt.Errorf("generate: %w", err))

	assert.Equal(t, KindRateLimited, ge.Kind)
	assert.Equal(t, 429, ge.StatusCode)
	assert.True(t, ge.Retryable())
}

func TestCategorizeServerError(t *testing.T) {
	ge := categorize(&googleapi.Error{Code: 503})

	assert.Equal(t, KindUnavailable, ge.Kind)
	assert.True(t, ge.Retryable())
}

func TestCategorizeAuthFailure(t *testing.T) {
	ge := categorize(&googleapi.Error{Code: 403})

	assert.Equal(t, KindUnknown, ge.Kind)
	assert.False(t, ge.Retryable())
	assert.Contains(t, ge.Message, "APIキー")
}

func TestCategorizeDeadline(t *testing.T) {
	ge := categorize(context.DeadlineExceeded)

	assert.Equal(t, KindUnavailable, ge.Kind)
}

func TestCategorizeMessageFallback(t *testing.T) {
	ge := categorize(errors.New("rpc error: code = ResourceExhausted desc = quota exceeded, retry in 7s"))

	assert.Equal(t, KindRateLimited, ge.Kind)
	assert.Equal(t, 7*time.Second+retryDelayMargin, ge.RetryAfter)
}

func TestCategorizeUnknown(t *testing.T) {
	ge := categorize(errors.New("something odd"))

	assert.Equal(t, KindUnknown, ge.Kind)
	assert.False(t, ge.Retryable())
}

func TestCategorizeUnwrap(t *testing.T) {
	inner := &googleapi.Error{Code: 429}
	ge := categorize(inner)

	var apiErr *googleapi.Error
	require.True(t, errors.As(ge, &apiErr))
	assert.Equal(t, 429, apiErr.Code)
}

func TestParseRetryDelay(t *testing.T) {
	assert.Equal(t, 30*time.Second+retryDelayMargin,
		parseRetryDelay("Please retry in 30s."))
	assert.Equal(t, time.Duration(5.5*float64(time.Second))+retryDelayMargin,
		parseRetryDelay("retry in 5.5s"))
	assert.Equal(t, time.Duration(0), parseRetryDelay("no hint here"))
}
