// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package ollama implements the provider client for a local Ollama server.
// It only supports the completions role.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ansible/ansible-ai-connect-gateway/gateway/format"
	"github.com/ansible/ansible-ai-connect-gateway/gateway/pipeline"
	"github.com/ansible/ansible-ai-connect-gateway/gateway/pipeline/sdk"
	"github.com/ansible/ansible-ai-connect-gateway/shared/logger"
)

const promptTemplate = "You are an Ansible expert. Return a single task that best completes the partial playbook. Return only the task as YAML. Do not explain your response.\n%s%s\n"

type generatePayload struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResult struct {
	Response string `json:"response"`
}

// Provider calls the Ollama HTTP API: POST /api/generate with stream
// disabled so the whole completion arrives in one body.
type Provider struct {
	role    pipeline.Role
	cfg     *pipeline.Config
	baseURL string
	session sdk.HTTPClient
	log     *logger.Logger
}

// New builds the Ollama client for one pipeline role.
func New(role pipeline.Role, entry pipeline.Entry, log *logger.Logger) (*Provider, error) {
	cfg := entry.Config
	if cfg.InferenceURL == "" {
		return nil, fmt.Errorf("inference_url is required")
	}
	session, err := sdk.NewSession(cfg.VerifySSL, cfg.CACertFile)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.New("ollama-provider")
	}
	return &Provider{
		role:    role,
		cfg:     &cfg,
		baseURL: strings.TrimRight(cfg.InferenceURL, "/"),
		session: session,
		log:     log,
	}, nil
}

// Provider implements pipeline.Client.
func (p *Provider) Provider() pipeline.ProviderTag {
	return pipeline.ProviderOllama
}

// PipelineConfig implements pipeline.Client.
func (p *Provider) PipelineConfig() *pipeline.Config {
	return p.cfg
}

// Infer implements pipeline.CompletionsClient.
func (p *Provider) Infer(ctx context.Context, req *pipeline.InferenceRequest) (*pipeline.InferenceResponse, error) {
	modelID := req.ModelIDOverride
	if modelID == "" {
		modelID = p.cfg.ModelID
	}
	if modelID == "" {
		return nil, pipeline.NewError(pipeline.KindModelIDNotFound, "", "no model id configured", nil)
	}

	taskCount := req.TaskCount
	if taskCount < 1 {
		taskCount = format.TaskCount(req.Prompt)
	}
	if timeout := p.cfg.Timeout(taskCount); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	payload := generatePayload{
		Model:   modelID,
		Prompt:  fmt.Sprintf(promptTemplate, req.Context, req.Prompt),
		Stream:  false,
		Options: map[string]any{"temperature": 0.1},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, pipeline.NewError(pipeline.KindInferenceFailure, modelID, "failed to encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.session.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, pipeline.NewError(pipeline.KindModelTimeout, modelID, "backend call timed out", err)
		}
		return nil, pipeline.NewError(pipeline.KindInferenceFailure, modelID, "backend unreachable", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pipeline.NewError(pipeline.KindInferenceFailure, modelID, "failed to read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, pipeline.NewError(pipeline.KindInferenceFailure, modelID,
			fmt.Sprintf("backend returned status %d", resp.StatusCode),
			&sdk.APIError{StatusCode: resp.StatusCode, Body: string(data)})
	}

	var parsed generateResult
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, pipeline.NewError(pipeline.KindInferenceFailure, modelID, "malformed inference response", err)
	}
	return &pipeline.InferenceResponse{
		Predictions: []string{format.ExtractTasks(parsed.Response)},
		ModelID:     modelID,
	}, nil
}

// HealthCheck implements pipeline.Client. Ollama answers GET / with 200
// when the server is up.
func (p *Provider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := p.session.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

var _ pipeline.CompletionsClient = (*Provider)(nil)
