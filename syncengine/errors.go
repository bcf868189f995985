// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/greenledger/metrcsync/metrc"
)

// ErrorClass is the failure taxonomy the orchestrator uses to decide
// retryability. UI-facing callers only ever see classified messages, never
// raw upstream error bodies.
type ErrorClass string

const (
	ClassAuthenticationFailed ErrorClass = "authentication_failed" // upstream 401, needs operator action
	ClassForbidden            ErrorClass = "forbidden"             // upstream 403, needs operator action
	ClassRateLimitExceeded    ErrorClass = "rate_limit_exceeded"   // upstream 429
	ClassUpstreamServerError  ErrorClass = "upstream_server_error" // upstream 5xx
	ClassRateLimitTimeout     ErrorClass = "rate_limit_timeout"    // timed out waiting for a governor token
	ClassTimeout              ErrorClass = "timeout"               // executor deadline exceeded
	ClassMappingError         ErrorClass = "mapping_error"         // upstream record could not be normalized
	ClassStorageError         ErrorClass = "storage_error"         // local batch write failed
	ClassInternal             ErrorClass = "internal_error"
)

// SyncError is a classified failure surfaced by executors and the governor.
type SyncError struct {
	Class   ErrorClass
	Message string
	Err     error
}

func (e *SyncError) Error() string {
	if e.Message != "" {
		return string(e.Class) + ": " + e.Message
	}
	return string(e.Class)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

func syncErrorf(class ErrorClass, format string, args ...any) *SyncError {
	return &SyncError{Class: class, Message: fmt.Sprintf(format, args...)}
}

// mappingError names the offending upstream record so the audit trail can
// point at it without carrying the payload itself.
func mappingError(kind string, upstreamID int64, reason string) *SyncError {
	return syncErrorf(ClassMappingError, "cannot normalize %s record id=%d: %s", kind, upstreamID, reason)
}

// Classify maps any error an executor can surface to its taxonomy class.
func Classify(err error) ErrorClass {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Class
	}
	switch {
	case metrc.IsAuthError(err):
		return ClassAuthenticationFailed
	case metrc.IsForbidden(err):
		return ClassForbidden
	case metrc.IsRateLimited(err):
		return ClassRateLimitExceeded
	case metrc.IsServerError(err):
		return ClassUpstreamServerError
	case errors.Is(err, context.DeadlineExceeded):
		return ClassTimeout
	default:
		return ClassInternal
	}
}

// Retryable reports whether the retry cadence should re-attempt a key that
// failed with this class. Credential problems stay failed until an operator
// fixes them.
func Retryable(class ErrorClass) bool {
	switch class {
	case ClassRateLimitExceeded, ClassUpstreamServerError, ClassRateLimitTimeout, ClassTimeout, ClassStorageError, ClassInternal:
		return true
	default:
		return false
	}
}

// classifiedMessage produces the operator-facing message stored in status
// rows and log entries. Deliberately free of upstream detail.
func classifiedMessage(class ErrorClass, err error) string {
	switch class {
	case ClassAuthenticationFailed:
		return "upstream rejected the facility credentials (HTTP 401); re-enter the vendor and user keys"
	case ClassForbidden:
		return "upstream denied access for this license (HTTP 403); verify license permissions"
	case ClassRateLimitExceeded:
		return "upstream rate limit exceeded (HTTP 429); the request ceiling has been tightened"
	case ClassUpstreamServerError:
		return "upstream server error (HTTP 5xx); will retry at the next cadence"
	case ClassRateLimitTimeout:
		return "timed out waiting for a rate limiter slot; will retry at the next cadence"
	case ClassTimeout:
		return "sync run exceeded its deadline; will retry at the next cadence"
	case ClassMappingError, ClassStorageError:
		return err.Error()
	default:
		return "internal sync error"
	}
}
