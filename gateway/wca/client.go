// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package wca implements the provider clients for IBM watsonx Code
// Assistant: the SaaS variant, the Cloud Pak on-prem variant and a dummy
// used in tests and rate-limit exercises.
package wca

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ansible/ansible-ai-connect-gateway/gateway/pipeline"
	"github.com/ansible/ansible-ai-connect-gateway/gateway/pipeline/sdk"
	"github.com/ansible/ansible-ai-connect-gateway/shared/logger"
)

// WCA endpoint paths, shared by the SaaS and on-prem variants.
const (
	codegenPath         = "/v1/wca/codegen/ansible"
	codematchPath       = "/v1/wca/codematch/ansible"
	playbookGenPath     = "/v1/wca/codegen/ansible/playbook"
	playbookExplainPath = "/v1/wca/explain/ansible/playbook"
)

// backendRetryable is the retry predicate for WCA calls: transport errors
// and retryable statuses only. Taxonomy errors and context expiry stop the
// loop immediately.
func backendRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pe *pipeline.Error
	if errors.As(err, &pe) {
		return false
	}
	var apiErr *sdk.APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// base carries the transport, retry and validation machinery common to the
// SaaS and on-prem clients. The variants differ only in authentication and
// credential resolution.
type base struct {
	role    pipeline.Role
	cfg     *pipeline.Config
	baseURL string
	session sdk.HTTPClient
	log     *logger.Logger
}

func newBase(role pipeline.Role, cfg *pipeline.Config, log *logger.Logger) (*base, error) {
	if cfg.InferenceURL == "" {
		return nil, fmt.Errorf("inference_url is required")
	}
	session, err := sdk.NewSession(cfg.VerifySSL, cfg.CACertFile)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.New("wca")
	}
	return &base{
		role:    role,
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.InferenceURL, "/"),
		session: session,
		log:     log,
	}, nil
}

// PipelineConfig returns the immutable pipeline configuration.
func (b *base) PipelineConfig() *pipeline.Config {
	return b.cfg
}

// callSpec describes one backend POST.
type callSpec struct {
	path         string
	payload      interface{}
	auth         sdk.AuthProvider
	modelID      string
	suggestionID string
	multiTask    bool
	taskCount    int
	// validate runs over the response before ordinary status handling.
	validate func(modelID string, status int, body string, multiTask bool) error
	// failKind classifies non-OK statuses left over after validation.
	failKind pipeline.Kind
}

// post runs one backend call with bounded retries. Each attempt gets its
// own deadline of per-call timeout times task count.
func (b *base) post(ctx context.Context, spec callSpec) ([]byte, error) {
	payload, err := json.Marshal(spec.payload)
	if err != nil {
		return nil, pipeline.NewError(spec.failKind, spec.modelID, "failed to encode request", err)
	}

	config := sdk.DefaultRetryConfig(b.cfg.RetryCount)
	config.RetryIf = backendRetryable
	config.Observe = func(attempt int, err error) {
		b.log.Warn(spec.suggestionID, "backend attempt failed", map[string]interface{}{
			"path":    spec.path,
			"attempt": attempt,
			"error":   err.Error(),
		})
	}

	body, err := sdk.RetryWithBackoff(ctx, config, func(ctx context.Context) ([]byte, error) {
		return b.attempt(ctx, spec, payload)
	})
	if err == nil {
		return body, nil
	}

	var pe *pipeline.Error
	if errors.As(err, &pe) {
		return nil, err
	}
	var apiErr *sdk.APIError
	if errors.As(err, &apiErr) {
		return nil, &pipeline.Error{
			Kind:       spec.failKind,
			ModelID:    spec.modelID,
			XRequestID: apiErr.XRequestID,
			Message:    fmt.Sprintf("backend returned status %d", apiErr.StatusCode),
			Err:        err,
		}
	}
	return nil, pipeline.NewError(spec.failKind, spec.modelID, "backend unreachable", err)
}

func (b *base) attempt(ctx context.Context, spec callSpec, payload []byte) ([]byte, error) {
	if timeout := b.cfg.Timeout(spec.taskCount); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+spec.path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if spec.suggestionID != "" {
		req.Header.Set("X-Request-ID", spec.suggestionID)
	}
	if err := spec.auth.Apply(req); err != nil {
		return nil, err
	}

	resp, err := b.session.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, pipeline.NewError(pipeline.KindModelTimeout, spec.modelID, "backend call timed out", err)
		}
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	// Correlation check comes before anything is returned. An absent header
	// is permitted; a mismatching one is not.
	xRequestID := resp.Header.Get("X-Request-ID")
	if spec.suggestionID != "" && xRequestID != "" && xRequestID != spec.suggestionID {
		return nil, &pipeline.Error{
			Kind:       pipeline.KindSuggestionIDCorrelation,
			ModelID:    spec.modelID,
			XRequestID: xRequestID,
			Message:    "response X-Request-ID does not match the request suggestion id",
		}
	}

	if spec.validate != nil {
		if err := spec.validate(spec.modelID, resp.StatusCode, string(body), spec.multiTask); err != nil {
			return nil, err
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &sdk.APIError{StatusCode: resp.StatusCode, Body: string(body), XRequestID: xRequestID}
	}
	return body, nil
}

// Wire shapes shared by the SaaS and on-prem variants.

type inferPayload struct {
	ModelID string `json:"model_id"`
	Prompt  string `json:"prompt"`
}

type inferResult struct {
	Predictions []string `json:"predictions"`
	ModelID     string   `json:"model_id"`
}

type codeMatchPayload struct {
	ModelID string   `json:"model_id"`
	Input   []string `json:"input"`
}

type codeMatchResult struct {
	CodeMatches []struct {
		Repo       string  `json:"repo_name"`
		RepoURL    string  `json:"repo_url"`
		Path       string  `json:"path"`
		License    string  `json:"license"`
		DataSource string  `json:"data_source_description"`
		Score      float64 `json:"score"`
	} `json:"code_matches"`
}

type playbookGenPayload struct {
	ModelID       string `json:"model_id"`
	Text          string `json:"text"`
	CreateOutline bool   `json:"create_outline"`
	Outline       string `json:"outline,omitempty"`
}

type playbookGenResult struct {
	Playbook string   `json:"playbook"`
	Outline  string   `json:"outline"`
	Warnings []string `json:"warnings"`
}

type playbookExplainPayload struct {
	ModelID string `json:"model_id"`
	Content string `json:"content"`
}

type playbookExplainResult struct {
	Content string `json:"content"`
}

func decodeCodeMatches(body []byte, modelID string) (*pipeline.CodeMatchResponse, error) {
	var parsed codeMatchResult
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, pipeline.NewError(pipeline.KindCodeMatchFailure, modelID, "malformed codematch response", err)
	}
	out := &pipeline.CodeMatchResponse{ModelID: modelID}
	for _, m := range parsed.CodeMatches {
		out.ContentMatches = append(out.ContentMatches, pipeline.ContentMatch{
			Repo:       m.Repo,
			RepoURL:    m.RepoURL,
			Path:       m.Path,
			License:    m.License,
			DataSource: m.DataSource,
			Score:      m.Score,
		})
	}
	return out, nil
}
