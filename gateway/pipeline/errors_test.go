// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindHTTPStatus(t *testing.T) {
	tests := []struct {
		kind   Kind
		status int
	}{
		{KindModelTimeout, http.StatusNoContent},
		{KindEmptyResponse, http.StatusNoContent},
		{KindTokenFailure, http.StatusServiceUnavailable},
		{KindInferenceFailure, http.StatusServiceUnavailable},
		{KindCodeMatchFailure, http.StatusServiceUnavailable},
		{KindKeyNotFound, http.StatusForbidden},
		{KindModelIDNotFound, http.StatusForbidden},
		{KindNoDefaultModelID, http.StatusForbidden},
		{KindInvalidModelID, http.StatusForbidden},
		{KindBadRequest, http.StatusBadRequest},
		{KindSuggestionIDCorrelation, http.StatusInternalServerError},
		{KindSecretManager, http.StatusInternalServerError},
		{KindFeatureNotAvailable, http.StatusNotImplemented},
	}
	for _, tc := range tests {
		t.Run(string(tc.kind), func(t *testing.T) {
			assert.Equal(t, tc.status, tc.kind.HTTPStatus())
		})
	}
}

func TestErrorKindMatching(t *testing.T) {
	err := NewError(KindEmptyResponse, "model-a", "empty", nil)

	assert.True(t, IsKind(err, KindEmptyResponse))
	assert.False(t, IsKind(err, KindInvalidModelID))
	assert.True(t, errors.Is(err, &Error{Kind: KindEmptyResponse}))

	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindEmptyResponse, kind)
}

func TestKindOfUnwrapsNestedErrors(t *testing.T) {
	inner := NewError(KindModelTimeout, "model-a", "timed out", nil)
	wrapped := fmt.Errorf("call failed: %w", inner)

	kind, ok := KindOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, KindModelTimeout, kind)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestErrorMessageIncludesModelAndCause(t *testing.T) {
	err := NewError(KindInvalidModelID, "model-b", "rejected", errors.New("boom"))
	assert.Contains(t, err.Error(), "rejected")
	assert.Contains(t, err.Error(), "model-b")
	assert.Contains(t, err.Error(), "boom")
}
