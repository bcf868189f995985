// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncengine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/greenledger/metrcsync/metrc"
)

func apiErr(status int) error {
	return &metrc.APIError{StatusCode: status, Method: http.MethodGet, Path: "/packages/v2/active"}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"upstream 401", apiErr(http.StatusUnauthorized), ClassAuthenticationFailed},
		{"upstream 403", apiErr(http.StatusForbidden), ClassForbidden},
		{"upstream 429", apiErr(http.StatusTooManyRequests), ClassRateLimitExceeded},
		{"upstream 500", apiErr(http.StatusInternalServerError), ClassUpstreamServerError},
		{"upstream 503", apiErr(http.StatusServiceUnavailable), ClassUpstreamServerError},
		{"wrapped upstream error", fmt.Errorf("page 3: %w", apiErr(http.StatusUnauthorized)), ClassAuthenticationFailed},
		{"deadline", context.DeadlineExceeded, ClassTimeout},
		{"wrapped deadline", fmt.Errorf("run: %w", context.DeadlineExceeded), ClassTimeout},
		{"mapping", mappingError("package", 7, "missing Label"), ClassMappingError},
		{"storage", &SyncError{Class: ClassStorageError, Message: "batch failed"}, ClassStorageError},
		{"governor timeout", &SyncError{Class: ClassRateLimitTimeout}, ClassRateLimitTimeout},
		{"unknown", errors.New("boom"), ClassInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestRetryable(t *testing.T) {
	retryable := []ErrorClass{
		ClassRateLimitExceeded,
		ClassUpstreamServerError,
		ClassRateLimitTimeout,
		ClassTimeout,
		ClassStorageError,
		ClassInternal,
	}
	for _, class := range retryable {
		require.True(t, Retryable(class), "class %s should be retryable", class)
	}

	// Credential and data problems need operator action first.
	for _, class := range []ErrorClass{ClassAuthenticationFailed, ClassForbidden, ClassMappingError} {
		require.False(t, Retryable(class), "class %s should not be retryable", class)
	}
}

func TestClassifiedMessageHidesUpstreamDetail(t *testing.T) {
	err := fmt.Errorf("wrapping secret token xyz: %w", apiErr(http.StatusUnauthorized))
	msg := classifiedMessage(ClassAuthenticationFailed, err)
	require.NotContains(t, msg, "secret token xyz")
	require.Contains(t, msg, "401")
}

func TestClassifiedMessageKeepsMappingDetail(t *testing.T) {
	err := mappingError("package", 101, "missing Label")
	msg := classifiedMessage(ClassMappingError, err)
	require.Contains(t, msg, "id=101")
	require.Contains(t, msg, "missing Label")
}

func TestSyncErrorUnwrap(t *testing.T) {
	inner := apiErr(http.StatusTooManyRequests)
	err := &SyncError{Class: ClassRateLimitExceeded, Message: "page fetch", Err: inner}
	require.True(t, metrc.IsRateLimited(err))
	require.Equal(t, "rate_limit_exceeded: page fetch", err.Error())
}
