package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/flipscout/internal/core/domain"
)

// ErrorClassification tells the executor whether to retry an error, whether
// it counts against the breaker, and how long the server asked us to wait.
type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
	RetryAfter    time.Duration
}

type ErrorClassifier func(err error) ErrorClassification

func permanent(error) ErrorClassification {
	return ErrorClassification{RecordFailure: true}
}

const maxErrorBody = 2048

// HTTPStatusError is returned by the HTTP adapters for non-2xx responses.
type HTTPStatusError struct {
	Service    string
	Operation  string
	StatusCode int
	Status     string
	Body       string
	RetryAfter time.Duration
}

// StatusError reads a bounded prefix of resp's body into an HTTPStatusError.
// The caller still owns and closes the body.
func StatusError(service, operation string, resp *http.Response) *HTTPStatusError {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &HTTPStatusError{
		Service:    service,
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(msg)),
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
	}
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "http status error"
	}
	if e.Body == "" {
		return fmt.Sprintf("%s %s: %s", e.Service, e.Operation, e.Status)
	}
	return fmt.Sprintf("%s %s: %s: %s", e.Service, e.Operation, e.Status, e.Body)
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

// ClassifyHTTP retries transport failures and 408/429/5xx responses.
// Cancellation is neither retried nor counted against the breaker, and
// 4xx client errors are the caller's fault rather than the service's.
func ClassifyHTTP(err error) ErrorClassification {
	switch {
	case err == nil:
		return ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorClassification{}
	case IsCircuitOpen(err):
		return ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if !IsRetryableHTTPStatus(statusErr.StatusCode) {
			return ErrorClassification{}
		}
		return ErrorClassification{Retryable: true, RecordFailure: true, RetryAfter: statusErr.RetryAfter}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return permanent(err)
}

// WrapTemporary marks err as domain.ErrTemporary when classifier says a retry could succeed.
func WrapTemporary(operation string, err error, classifier ErrorClassifier) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifier == nil {
		classifier = ClassifyHTTP
	}
	if classifier(err).Retryable || IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func IsRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
