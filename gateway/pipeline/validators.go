// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"net/http"
	"strings"
)

// PreprocessFailureMarker is the substring WCA puts in a 400 body when the
// prompt could not be preprocessed. Multi-task prompts that trip it surface
// as an empty response rather than an invalid model id.
const PreprocessFailureMarker = "Failed to preprocess the prompt"

// validatorRule inspects a backend response before ordinary status handling
// and returns a taxonomy error, or nil to pass to the next rule.
type validatorRule func(modelID string, status int, body string, multiTask bool) *Error

// Rules are applied in order and short-circuit on the first failure.
var inferValidators = []validatorRule{
	ruleEmptyResponse,
	ruleBadRequest,
	ruleForbidden,
}

var codeMatchValidators = []validatorRule{
	ruleEmptyResponse,
	ruleBadRequest,
	ruleForbidden,
}

func ruleEmptyResponse(modelID string, status int, body string, multiTask bool) *Error {
	if status == http.StatusNoContent {
		return NewError(KindEmptyResponse, modelID, "model returned an empty response", nil)
	}
	return nil
}

func ruleBadRequest(modelID string, status int, body string, multiTask bool) *Error {
	if status != http.StatusBadRequest {
		return nil
	}
	if multiTask && strings.Contains(body, PreprocessFailureMarker) {
		return NewError(KindEmptyResponse, modelID, "prompt preprocessing failed", nil)
	}
	return NewError(KindInvalidModelID, modelID, "model id rejected by backend", nil)
}

func ruleForbidden(modelID string, status int, body string, multiTask bool) *Error {
	if status == http.StatusForbidden {
		return NewError(KindInvalidModelID, modelID, "model id rejected by backend", nil)
	}
	return nil
}

// ValidateInferResponse applies the inference rule set. A nil return means
// the response falls through to ordinary status handling.
func ValidateInferResponse(modelID string, status int, body string, multiTask bool) error {
	for _, rule := range inferValidators {
		if err := rule(modelID, status, body, multiTask); err != nil {
			return err
		}
	}
	return nil
}

// ValidateCodeMatchResponse applies the codematch rule set. Codematch
// requests are never multi-task.
func ValidateCodeMatchResponse(modelID string, status int, body string) error {
	for _, rule := range codeMatchValidators {
		if err := rule(modelID, status, body, false); err != nil {
			return err
		}
	}
	return nil
}
