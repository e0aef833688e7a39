package llm

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrAllModelsUnavailable is returned when every key and model combination failed.
	ErrAllModelsUnavailable = errors.New("todos os modelos de IA estao indisponiveis no momento, tente novamente mais tarde")
	// ErrEmptyResponse is returned by providers that answered with no text.
	ErrEmptyResponse = errors.New("resposta vazia do modelo")
	// ErrNoKeys means no API key is configured for the provider.
	ErrNoKeys = errors.New("nenhuma chave de API configurada")
)

// APIError is the provider-neutral form of an HTTP error from an LLM API.
type APIError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

// HTTPStatusCode exposes the status the way other HTTP clients do.
func (e *APIError) HTTPStatusCode() int {
	return e.StatusCode
}

// AllModelsError reports that the executor ran out of combinations. It matches
// ErrAllModelsUnavailable with errors.Is and unwraps to the last failure seen.
type AllModelsError struct {
	Provider string
	Last     error
}

func (e *AllModelsError) Error() string {
	return ErrAllModelsUnavailable.Error()
}

func (e *AllModelsError) Is(target error) bool {
	return target == ErrAllModelsUnavailable
}

func (e *AllModelsError) Unwrap() error {
	return e.Last
}

type failure int

const (
	failOther failure = iota
	failNotFound
	failOverloaded
	failQuota
	failThrottle
)

func (f failure) String() string {
	switch f {
	case failNotFound:
		return "not_found"
	case failOverloaded:
		return "overloaded"
	case failQuota:
		return "quota"
	case failThrottle:
		return "throttle"
	default:
		return "other"
	}
}

// maxSuggestedWait is the longest server-suggested wait still treated as a throttle.
// Anything longer means the quota window will not reopen soon.
const maxSuggestedWait = 30 * time.Second

var (
	retryInPattern    = regexp.MustCompile(`(?i)retry in\s+(\d+(?:\.\d+)?)\s*s`)
	retryDelayPattern = regexp.MustCompile(`(?i)retryDelay"?\s*[:=]\s*"?(\d+(?:\.\d+)?)s`)
)

// classify maps a provider error onto the executor's decision table. wait is the
// server-suggested delay, zero when there was none.
func classify(err error) (failure, time.Duration) {
	status := 0
	var wait time.Duration
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		status = apiErr.StatusCode
		wait = apiErr.RetryAfter
	}
	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case status == 404 || strings.Contains(lower, "not found") || strings.Contains(msg, "NOT_FOUND") ||
		strings.Contains(lower, "model_not_found") || strings.Contains(lower, "does not exist"):
		return failNotFound, 0
	case status == 503 || strings.Contains(lower, "overloaded") || strings.Contains(msg, "UNAVAILABLE"):
		return failOverloaded, 0
	}

	rateLimited := status == 429 || strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many requests") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED") || strings.Contains(lower, "quota")
	if !rateLimited {
		return failOther, 0
	}

	if isQuotaMessage(lower) {
		return failQuota, 0
	}
	if suggested, ok := suggestedWait(msg); ok {
		wait = suggested
	}
	if wait > maxSuggestedWait {
		return failQuota, wait
	}
	return failThrottle, wait
}

func isQuotaMessage(lower string) bool {
	for _, s := range []string{"insufficient_quota", "exceeded your current quota", "quota exceeded", "perday", "per day", "daily"} {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

func suggestedWait(msg string) (time.Duration, bool) {
	for _, re := range []*regexp.Regexp{retryInPattern, retryDelayPattern} {
		if m := re.FindStringSubmatch(msg); m != nil {
			secs, err := strconv.ParseFloat(m[1], 64)
			if err == nil {
				return time.Duration(secs * float64(time.Second)), true
			}
		}
	}
	return 0, false
}
