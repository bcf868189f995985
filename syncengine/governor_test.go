// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncengine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGovernorAllowsBurst(t *testing.T) {
	g := NewGovernor(GovernorConfig{
		RequestsPerMinute:    60,
		Burst:                5,
		WaitTimeout:          time.Second,
		MinRequestsPerMinute: 6,
	}, nil)

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, g.Acquire(ctx, "vendor:user"))
	}
	// Burst capacity should admit all five without meaningful waiting.
	require.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestGovernorAcquireTimeout(t *testing.T) {
	g := NewGovernor(GovernorConfig{
		RequestsPerMinute:    1, // one token per minute
		Burst:                1,
		WaitTimeout:          50 * time.Millisecond,
		MinRequestsPerMinute: 1,
	}, nil)

	ctx := context.Background()
	require.NoError(t, g.Acquire(ctx, "vendor:user"))

	err := g.Acquire(ctx, "vendor:user")
	require.Error(t, err)
	require.Equal(t, ClassRateLimitTimeout, Classify(err))
}

func TestGovernorAcquireContextCancellation(t *testing.T) {
	g := NewGovernor(GovernorConfig{
		RequestsPerMinute:    1,
		Burst:                1,
		WaitTimeout:          time.Minute,
		MinRequestsPerMinute: 1,
	}, nil)

	require.NoError(t, g.Acquire(context.Background(), "vendor:user"))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := g.Acquire(ctx, "vendor:user")
	require.ErrorIs(t, err, context.Canceled)
}

func TestGovernorBucketsAreIndependent(t *testing.T) {
	g := NewGovernor(GovernorConfig{
		RequestsPerMinute:    1,
		Burst:                1,
		WaitTimeout:          50 * time.Millisecond,
		MinRequestsPerMinute: 1,
	}, nil)

	ctx := context.Background()
	require.NoError(t, g.Acquire(ctx, "facility-a"))
	// facility-a's bucket is drained but facility-b's is untouched.
	require.Error(t, g.Acquire(ctx, "facility-a"))
	require.NoError(t, g.Acquire(ctx, "facility-b"))
}

func TestGovernorTighten(t *testing.T) {
	g := NewGovernor(GovernorConfig{
		RequestsPerMinute:    50,
		Burst:                10,
		WaitTimeout:          time.Second,
		MinRequestsPerMinute: 6,
	}, nil)

	require.InDelta(t, 50.0, g.Limit("k"), 0.01)
	g.Tighten("k")
	require.InDelta(t, 40.0, g.Limit("k"), 0.01)
	g.Tighten("k")
	require.InDelta(t, 32.0, g.Limit("k"), 0.01)
}

func TestGovernorTightenFloor(t *testing.T) {
	g := NewGovernor(GovernorConfig{
		RequestsPerMinute:    10,
		Burst:                5,
		WaitTimeout:          time.Second,
		MinRequestsPerMinute: 6,
	}, nil)

	for i := 0; i < 20; i++ {
		g.Tighten("k")
	}
	require.InDelta(t, 6.0, g.Limit("k"), 0.01)
}
