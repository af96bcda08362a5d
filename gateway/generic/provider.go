// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package generic implements the passthrough HTTP inference provider and
// the chat-bot endpoints served by the same backend shape.
package generic

import (
	"bufio"
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

// Provider is a thin passthrough to a generic HTTP inference service:
// POST /predictions/<model_id> for completions, GET /ping for health,
// /v1/query and /v1/streaming_query for the chat roles. No authentication.
type Provider struct {
	role    pipeline.Role
	cfg     *pipeline.Config
	baseURL string
	session sdk.HTTPClient
	log     *logger.Logger
}

// New builds the generic HTTP client for one pipeline role.
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
		log = logger.New("http-provider")
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
	return pipeline.ProviderHTTP
}

// PipelineConfig implements pipeline.Client.
func (p *Provider) PipelineConfig() *pipeline.Config {
	return p.cfg
}

func (p *Provider) modelID(override string) string {
	if override != "" {
		return override
	}
	return p.cfg.ModelID
}

func retryable(err error) bool {
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

// post runs one JSON POST with bounded retries and per-attempt deadlines.
func (p *Provider) post(ctx context.Context, path string, payload interface{}, modelID string, taskCount int, failKind pipeline.Kind) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, pipeline.NewError(failKind, modelID, "failed to encode request", err)
	}

	config := sdk.DefaultRetryConfig(p.cfg.RetryCount)
	config.RetryIf = retryable

	out, err := sdk.RetryWithBackoff(ctx, config, func(ctx context.Context) ([]byte, error) {
		if timeout := p.cfg.Timeout(taskCount); timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.session.Do(req)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, pipeline.NewError(pipeline.KindModelTimeout, modelID, "backend call timed out", err)
			}
			return nil, err
		}
		defer func() {
			_ = resp.Body.Close()
		}()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &sdk.APIError{StatusCode: resp.StatusCode, Body: string(data)}
		}
		return data, nil
	})
	if err == nil {
		return out, nil
	}

	var pe *pipeline.Error
	if errors.As(err, &pe) {
		return nil, err
	}
	var apiErr *sdk.APIError
	if errors.As(err, &apiErr) {
		return nil, pipeline.NewError(failKind, modelID, fmt.Sprintf("backend returned status %d", apiErr.StatusCode), err)
	}
	return nil, pipeline.NewError(failKind, modelID, "backend unreachable", err)
}

type predictionsPayload struct {
	Instances []predictionInstance `json:"instances"`
}

type predictionInstance struct {
	Prompt       string `json:"prompt"`
	Context      string `json:"context"`
	UserID       string `json:"userId,omitempty"`
	SuggestionID string `json:"suggestionId,omitempty"`
}

type predictionsResult struct {
	Predictions []string `json:"predictions"`
}

// Infer implements pipeline.CompletionsClient.
func (p *Provider) Infer(ctx context.Context, req *pipeline.InferenceRequest) (*pipeline.InferenceResponse, error) {
	modelID := p.modelID(req.ModelIDOverride)
	if modelID == "" {
		return nil, pipeline.NewError(pipeline.KindModelIDNotFound, "", "no model id configured", nil)
	}
	taskCount := req.TaskCount
	if taskCount < 1 {
		taskCount = format.TaskCount(req.Prompt)
	}

	payload := predictionsPayload{
		Instances: []predictionInstance{{
			Prompt:       req.Prompt,
			Context:      req.Context,
			UserID:       req.UserID,
			SuggestionID: req.SuggestionID,
		}},
	}
	body, err := p.post(ctx, "/predictions/"+modelID, payload, modelID, taskCount, pipeline.KindInferenceFailure)
	if err != nil {
		return nil, err
	}

	var parsed predictionsResult
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, pipeline.NewError(pipeline.KindInferenceFailure, modelID, "malformed inference response", err)
	}
	return &pipeline.InferenceResponse{Predictions: parsed.Predictions, ModelID: modelID}, nil
}

type chatPayload struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id,omitempty"`
	SystemPrompt   string `json:"system_prompt,omitempty"`
	Model          string `json:"model,omitempty"`
	MediaType      string `json:"media_type,omitempty"`
}

// Chat implements pipeline.ChatClient.
func (p *Provider) Chat(ctx context.Context, req *pipeline.ChatRequest) (*pipeline.ChatResponse, error) {
	modelID := p.modelID(req.ModelIDOverride)
	payload := chatPayload{
		Query:          req.Query,
		ConversationID: req.ConversationID,
		SystemPrompt:   req.SystemPrompt,
		Model:          modelID,
	}
	body, err := p.post(ctx, "/v1/query", payload, modelID, 1, pipeline.KindInferenceFailure)
	if err != nil {
		return nil, err
	}

	var parsed pipeline.ChatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, pipeline.NewError(pipeline.KindInferenceFailure, modelID, "malformed chat response", err)
	}
	if parsed.ModelID == "" {
		parsed.ModelID = modelID
	}
	return &parsed, nil
}

// ChatStream implements pipeline.StreamingChatClient. Chunks are relayed in
// order; closing the context closes the upstream stream.
func (p *Provider) ChatStream(ctx context.Context, req *pipeline.ChatRequest, handler pipeline.StreamHandler) error {
	modelID := p.modelID(req.ModelIDOverride)
	payload := chatPayload{
		Query:          req.Query,
		ConversationID: req.ConversationID,
		SystemPrompt:   req.SystemPrompt,
		Model:          modelID,
		MediaType:      "application/json",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return pipeline.NewError(pipeline.KindInferenceFailure, modelID, "failed to encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/streaming_query", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.session.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return pipeline.NewError(pipeline.KindModelTimeout, modelID, "backend call timed out", err)
		}
		return pipeline.NewError(pipeline.KindInferenceFailure, modelID, "backend unreachable", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(resp.Body)
		return pipeline.NewError(pipeline.KindInferenceFailure, modelID,
			fmt.Sprintf("backend returned status %d", resp.StatusCode),
			&sdk.APIError{StatusCode: resp.StatusCode, Body: string(data)})
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	event := "message"
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			event = "message"
			continue
		}
		if strings.HasPrefix(line, "event: ") {
			event = strings.TrimPrefix(line, "event: ")
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if err := handler(pipeline.StreamChunk{Event: event, Data: []byte(data)}); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return pipeline.NewError(pipeline.KindInferenceFailure, modelID, "stream read failed", err)
	}
	return nil
}

// HealthCheck implements pipeline.Client via GET /ping.
func (p *Provider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/ping", nil)
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

var (
	_ pipeline.CompletionsClient   = (*Provider)(nil)
	_ pipeline.ChatClient          = (*Provider)(nil)
	_ pipeline.StreamingChatClient = (*Provider)(nil)
)
