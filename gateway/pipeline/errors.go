// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"fmt"
	"net/http"
)

// Kind identifies one member of the closed failure taxonomy. Every error
// surfaced by a provider client or the orchestrator carries exactly one Kind.
type Kind string

const (
	KindModelTimeout            Kind = "model_timeout"
	KindTokenFailure            Kind = "wca_token_failure"
	KindKeyNotFound             Kind = "wca_key_not_found"
	KindModelIDNotFound         Kind = "wca_model_id_not_found"
	KindNoDefaultModelID        Kind = "wca_no_default_model_id"
	KindInvalidModelID          Kind = "wca_invalid_model_id"
	KindEmptyResponse           Kind = "wca_empty_response"
	KindBadRequest              Kind = "wca_bad_request"
	KindSuggestionIDCorrelation Kind = "wca_suggestion_id_correlation_failure"
	KindInferenceFailure        Kind = "wca_inference_failure"
	KindCodeMatchFailure        Kind = "wca_codematch_failure"
	KindSecretManager           Kind = "wca_secret_manager_error"
	KindUsernameNotFound        Kind = "wca_username_not_found"
	KindFeatureNotAvailable     Kind = "feature_not_available"
)

// HTTPStatus returns the status code the API surfaces for this kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindModelTimeout, KindEmptyResponse:
		return http.StatusNoContent
	case KindTokenFailure, KindInferenceFailure, KindCodeMatchFailure:
		return http.StatusServiceUnavailable
	case KindKeyNotFound, KindModelIDNotFound, KindNoDefaultModelID, KindInvalidModelID:
		return http.StatusForbidden
	case KindBadRequest:
		return http.StatusBadRequest
	case KindFeatureNotAvailable:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// Error is the uniform failure type for backend calls. It carries the kind,
// the model id involved (when known) and the backend correlation id.
type Error struct {
	Kind       Kind
	ModelID    string
	XRequestID string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.ModelID != "" {
		msg = fmt.Sprintf("%s (model_id=%s)", msg, e.ModelID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches two pipeline errors on Kind, so tests and callers can use
// errors.Is(err, &pipeline.Error{Kind: pipeline.KindEmptyResponse}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// NewError builds a taxonomy error.
func NewError(kind Kind, modelID, message string, cause error) *Error {
	return &Error{Kind: kind, ModelID: modelID, Message: message, Err: cause}
}

// KindOf extracts the taxonomy kind from err, unwrapping as needed.
func KindOf(err error) (Kind, bool) {
	var pe *Error
	if ok := asError(err, &pe); ok {
		return pe.Kind, true
	}
	return "", false
}

// IsKind reports whether err is a taxonomy error of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// asError is errors.As specialised to *Error; kept local to avoid the
// reflection path for the hot classification code.
func asError(err error, target **Error) bool {
	for err != nil {
		if pe, ok := err.(*Error); ok {
			*target = pe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
