/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package swis

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/orionsync/pkg/logger"
)

var errRemoteDown = errors.New("remote down")

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cfg := CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		Timeout:          time.Minute,
		ResetTimeout:     time.Minute,
	}
	cb := NewCircuitBreaker("test", cfg, logger.NewTestLogger())

	for i := 0; i < 3; i++ {
		err := cb.Execute(func() error { return errRemoteDown })
		require.ErrorIs(t, err, errRemoteDown)
	}

	assert.Equal(t, StateOpen, cb.GetState())

	// Requests are now rejected without invoking the function.
	called := false
	err := cb.Execute(func() error { called = true; return nil })
	require.Error(t, err)
	assert.False(t, called)
	assert.Contains(t, err.Error(), "circuit breaker test is open")
}

func TestCircuitBreakerRecovers(t *testing.T) {
	cfg := CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          10 * time.Millisecond,
		ResetTimeout:     time.Minute,
	}
	cb := NewCircuitBreaker("test", cfg, logger.NewTestLogger())

	require.Error(t, cb.Execute(func() error { return errRemoteDown }))
	assert.Equal(t, StateOpen, cb.GetState())

	time.Sleep(20 * time.Millisecond)

	// First success transitions through half-open.
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateHalfOpen, cb.GetState())

	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreakerReopensFromHalfOpen(t *testing.T) {
	cfg := CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          10 * time.Millisecond,
		ResetTimeout:     time.Minute,
	}
	cb := NewCircuitBreaker("test", cfg, logger.NewTestLogger())

	require.Error(t, cb.Execute(func() error { return errRemoteDown }))

	time.Sleep(20 * time.Millisecond)

	require.Error(t, cb.Execute(func() error { return errRemoteDown }))
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestCircuitBreakerStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", CircuitBreakerState(9).String())
}

func TestCircuitBreakerHTTPClientTreats5xxAsFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	httpClient := NewMockHTTPClient(ctrl)

	cfg := CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		Timeout:          time.Minute,
		ResetTimeout:     time.Minute,
	}
	wrapped := NewCircuitBreakerHTTPClient(httpClient, "test", cfg, logger.NewTestLogger())

	req, err := http.NewRequest(http.MethodGet, "https://orion.example.com", http.NoBody)
	require.NoError(t, err)

	httpClient.EXPECT().Do(req).Return(&http.Response{StatusCode: http.StatusBadGateway, Body: http.NoBody}, nil)

	_, err = wrapped.Do(req)
	require.Error(t, err)
	assert.Equal(t, StateOpen, wrapped.GetCircuitBreaker().GetState())
}
