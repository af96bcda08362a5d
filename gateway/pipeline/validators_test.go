// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateInferResponseMatrix(t *testing.T) {
	tests := []struct {
		status    int
		multiTask bool
		body      string
		want      Kind
		pass      bool
	}{
		{204, false, "", KindEmptyResponse, false},
		{204, true, "", KindEmptyResponse, false},
		{204, true, PreprocessFailureMarker, KindEmptyResponse, false},
		{400, false, "", KindInvalidModelID, false},
		{400, false, PreprocessFailureMarker, KindInvalidModelID, false},
		{400, true, "", KindInvalidModelID, false},
		{400, true, "some context: " + PreprocessFailureMarker, KindEmptyResponse, false},
		{403, false, "", KindInvalidModelID, false},
		{403, true, "", KindInvalidModelID, false},
		{200, false, "", "", true},
		{200, true, PreprocessFailureMarker, "", true},
		{500, false, "", "", true},
		{429, true, "", "", true},
	}
	for _, tc := range tests {
		name := fmt.Sprintf("status=%d multi=%v marker=%v", tc.status, tc.multiTask, tc.body != "")
		t.Run(name, func(t *testing.T) {
			err := ValidateInferResponse("model-a", tc.status, tc.body, tc.multiTask)
			if tc.pass {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsKind(err, tc.want), "expected %s, got %v", tc.want, err)
		})
	}
}

func TestValidateCodeMatchResponseIsNeverMultiTask(t *testing.T) {
	// The preprocess marker must not downgrade a codematch 400 to empty.
	err := ValidateCodeMatchResponse("model-a", 400, PreprocessFailureMarker)
	assert.True(t, IsKind(err, KindInvalidModelID))

	err = ValidateCodeMatchResponse("model-a", 204, "")
	assert.True(t, IsKind(err, KindEmptyResponse))

	assert.NoError(t, ValidateCodeMatchResponse("model-a", 200, ""))
}

func TestValidatorsAnnotateModelID(t *testing.T) {
	err := ValidateInferResponse("model-xyz", 403, "", false)
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "model-xyz", pe.ModelID)
}
