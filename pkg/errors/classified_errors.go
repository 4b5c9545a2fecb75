// Package errors classifies arbitrary failures into a closed set of error
// kinds and wraps them into a stable payload host processes can surface
// across an API boundary.
package errors

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// ErrorKind is the closed set of error classifications the resilience engine
// reasons about. Every component downstream of the classifier (retry,
// circuit breaker, analyzer) switches on this type rather than inspecting
// error strings itself.
type ErrorKind string

const (
	KindNetwork           ErrorKind = "network"
	KindAuthentication    ErrorKind = "authentication"
	KindRateLimit         ErrorKind = "rate_limit"
	KindServerError       ErrorKind = "server_error"
	KindClientError       ErrorKind = "client_error"
	KindResourceExhausted ErrorKind = "resource_exhausted"
	KindTimeout           ErrorKind = "timeout"
	KindUnknown           ErrorKind = "unknown"

	// Surface kinds (§7) that appear in the public error payload. Classify
	// produces only KindCancelled among them (for context.Canceled); the
	// others are set through WithKind.
	KindCircuitOpen   ErrorKind = "circuit_open"
	KindCancelled     ErrorKind = "cancelled"
	KindInvalidInput  ErrorKind = "invalid_input"
	KindInternal      ErrorKind = "internal"
)

// Retryable reports whether the kind is ever eligible for retry absent other
// context (§7's propagation policy).
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindNetwork, KindRateLimit, KindServerError, KindResourceExhausted, KindTimeout:
		return true
	default:
		return false
	}
}

// BaseWaitHint returns the floor delay a caller should use before retrying
// this kind, independent of the retry strategy's own backoff curve.
func (k ErrorKind) BaseWaitHint() time.Duration {
	if k == KindRateLimit {
		return 10 * time.Second
	}
	return 0
}

type classifyRule struct {
	pattern *regexp.Regexp
	kind    ErrorKind
}

// Ordered rule table; first match wins. Matching is case-insensitive
// substring/regex against the error's message.
var classifyRules = []classifyRule{
	{regexp.MustCompile(`(?i)timeout|connection|unreachable|dns|refused`), KindNetwork},
	{regexp.MustCompile(`(?i)401|403|unauthorized|forbidden|api key|permission denied`), KindAuthentication},
	{regexp.MustCompile(`(?i)429|rate limit|quota`), KindRateLimit},
	{regexp.MustCompile(`(?i)5\d\d|gateway|unavailable|internal server`), KindServerError},
	{regexp.MustCompile(`(?i)400|404|422|bad request|invalid input`), KindClientError},
	{regexp.MustCompile(`(?i)out of memory|disk|exhausted|resource limit`), KindResourceExhausted},
}

// Classify maps an arbitrary error to a closed ErrorKind (C1). It is a pure
// function of the error's message and its context-derived cancellation
// status; it never mutates or wraps the input.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	msg := err.Error()
	for _, rule := range classifyRules {
		if rule.pattern.MatchString(msg) {
			return rule.kind
		}
	}
	return KindUnknown
}

// RetryStrategy carries the parameters C2 uses to pace retries for a given
// classification. It is attached to a ClassifiedError so a caller across a
// process boundary still knows how the producer intended retries to work.
type RetryStrategy struct {
	ShouldRetry       bool          `json:"should_retry"`
	MaxAttempts       int           `json:"max_attempts"`
	BaseDelay         time.Duration `json:"base_delay"`
	MaxDelay          time.Duration `json:"max_delay"`
	BackoffMultiplier float64       `json:"backoff_multiplier"`
}

func defaultRetryStrategy(kind ErrorKind) RetryStrategy {
	if !kind.Retryable() {
		return RetryStrategy{ShouldRetry: false}
	}
	strategy := RetryStrategy{
		ShouldRetry:       true,
		MaxAttempts:       3,
		BaseDelay:         1 * time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
	}
	if kind == KindRateLimit {
		strategy.BaseDelay = kind.BaseWaitHint()
	}
	return strategy
}

// ClassifiedError is the ambient error wrapper: a closed ErrorKind, a
// message, the originating operation, and the retry strategy the producer
// recommends. Resilience components exchange this type instead of bare
// errors once a failure has been classified.
type ClassifiedError struct {
	Kind      ErrorKind      `json:"error_kind"`
	Message   string         `json:"message"`
	Operation string         `json:"operation,omitempty"`
	Detail    string         `json:"detail,omitempty"`
	Retry     *RetryStrategy `json:"retry,omitempty"`
	Timestamp time.Time      `json:"timestamp"`

	cause error
}

func (e *ClassifiedError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Operation, e.Message, e.Kind)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Kind)
}

func (e *ClassifiedError) Unwrap() error {
	return e.cause
}

// Recoverable mirrors the public payload's `recoverable` field (§6).
func (e *ClassifiedError) Recoverable() bool {
	return e.Retry != nil && e.Retry.ShouldRetry
}

// New classifies err and wraps it for the given operation.
func New(err error, operation string) *ClassifiedError {
	kind := Classify(err)
	strategy := defaultRetryStrategy(kind)
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return &ClassifiedError{
		Kind:      kind,
		Message:   msg,
		Operation: operation,
		Retry:     &strategy,
		Timestamp: time.Now(),
		cause:     err,
	}
}

// WithKind overrides the classification, e.g. for the surface kinds
// (circuit_open, invalid_input, internal) that Classify never produces
// itself.
func (e *ClassifiedError) WithKind(kind ErrorKind) *ClassifiedError {
	e.Kind = kind
	strategy := defaultRetryStrategy(kind)
	e.Retry = &strategy
	return e
}

// WithDetail attaches additional human-readable context.
func (e *ClassifiedError) WithDetail(detail string) *ClassifiedError {
	e.Detail = detail
	return e
}

// Payload is the stable cross-boundary shape described in §6.
type Payload struct {
	ErrorKind   ErrorKind `json:"error_kind"`
	Message     string    `json:"message"`
	Detail      string    `json:"detail,omitempty"`
	Recoverable bool      `json:"recoverable"`
}

// ToPayload renders the public error payload for host API layers.
func (e *ClassifiedError) ToPayload() Payload {
	return Payload{
		ErrorKind:   e.Kind,
		Message:     e.Message,
		Detail:      e.Detail,
		Recoverable: e.Recoverable(),
	}
}

// CircuitOpenError is the synthetic error C8 returns when a breaker refuses
// a call outright (§4.8 step 1).
func CircuitOpenError(operation string) *ClassifiedError {
	return (&ClassifiedError{
		Message:   "circuit breaker is open",
		Operation: operation,
		Timestamp: time.Now(),
	}).WithKind(KindCircuitOpen)
}
