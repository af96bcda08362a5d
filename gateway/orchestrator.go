// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package gateway wires the HTTP surface to the model pipelines: request
// shaping, anonymization, dispatch, failure classification and telemetry.
package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/ansible/ansible-ai-connect-gateway/gateway/format"
	"github.com/ansible/ansible-ai-connect-gateway/gateway/pipeline"
	"github.com/ansible/ansible-ai-connect-gateway/shared/logger"
)

// AnonymizeFunc scrubs user-identifying content from a payload field before
// it leaves the process. The identity transform is a valid implementation.
type AnonymizeFunc func(string) string

// PostprocessFunc runs the completion post-processing chain (linting and
// formatting rules) over generated YAML. It returns the cleaned YAML plus
// any warnings worth surfacing to the caller.
type PostprocessFunc func(yamlText, prompt, context string) (string, []string, error)

// Orchestrator drives one inbound request end to end: anonymize, select the
// provider client, invoke under its deadline, classify errors and emit
// exactly one telemetry event per backend call.
type Orchestrator struct {
	registry    *pipeline.Registry
	telemetry   *Telemetry
	anonymize   AnonymizeFunc
	postprocess PostprocessFunc
	log         *logger.Logger
}

// OrchestratorOptions configures the orchestrator. Nil functions default to
// pass-through behavior.
type OrchestratorOptions struct {
	Anonymize   AnonymizeFunc
	Postprocess PostprocessFunc
	Telemetry   *Telemetry
	Logger      *logger.Logger
}

// NewOrchestrator builds the orchestrator over a registry.
func NewOrchestrator(registry *pipeline.Registry, opts OrchestratorOptions) *Orchestrator {
	anonymize := opts.Anonymize
	if anonymize == nil {
		anonymize = func(s string) string { return s }
	}
	log := opts.Logger
	if log == nil {
		log = logger.New("orchestrator")
	}
	telemetry := opts.Telemetry
	if telemetry == nil {
		telemetry = NewTelemetry(log)
	}
	return &Orchestrator{
		registry:    registry,
		telemetry:   telemetry,
		anonymize:   anonymize,
		postprocess: opts.Postprocess,
		log:         log,
	}
}

// classify maps any backend error onto the closed taxonomy. Taxonomy members
// pass through untouched; anything else is wrapped with the fallback kind.
func classify(err error, fallback pipeline.Kind, modelID string) *pipeline.Error {
	var pe *pipeline.Error
	if errors.As(err, &pe) {
		return pe
	}
	return pipeline.NewError(fallback, modelID, "backend call failed", err)
}

// observe emits the single telemetry event for one backend call.
func (o *Orchestrator) observe(role pipeline.Role, provider pipeline.ProviderTag, call CallEvent, start time.Time, perr *pipeline.Error) {
	elapsed := time.Since(start)
	if call.TaskCount < 1 {
		call.TaskCount = 1
	}
	if perr == nil {
		o.telemetry.RecordSuccess(role, provider, call, elapsed)
		return
	}
	if perr.ModelID != "" {
		call.ModelID = perr.ModelID
	}
	o.telemetry.RecordFailure(role, provider, FailureEvent{
		CallEvent:  call,
		Kind:       perr.Kind,
		XRequestID: perr.XRequestID,
	}, elapsed)
}

// Complete serves one completions request.
func (o *Orchestrator) Complete(ctx context.Context, req *pipeline.InferenceRequest) (*pipeline.InferenceResponse, error) {
	client := o.registry.Completions()

	req.Prompt = o.anonymize(req.Prompt)
	req.Context = o.anonymize(req.Context)
	if req.TaskCount < 1 {
		req.TaskCount = format.TaskCount(req.Prompt)
	}

	call := CallEvent{ModelID: req.ModelIDOverride, TaskCount: req.TaskCount, SuggestionID: req.SuggestionID}
	start := time.Now()
	resp, err := client.Infer(ctx, req)
	if err != nil {
		perr := classify(err, pipeline.KindInferenceFailure, req.ModelIDOverride)
		o.observe(pipeline.RoleCompletions, client.Provider(), call, start, perr)
		return nil, perr
	}
	call.ModelID = resp.ModelID
	o.observe(pipeline.RoleCompletions, client.Provider(), call, start, nil)

	if o.postprocess != nil {
		for i, prediction := range resp.Predictions {
			cleaned, _, err := o.postprocess(prediction, req.Prompt, req.Context)
			if err != nil {
				o.log.Warn(req.SuggestionID, "post-processing failed, returning raw prediction", map[string]interface{}{
					"error": err.Error(),
				})
				continue
			}
			resp.Predictions[i] = cleaned
		}
	}
	return resp, nil
}

// ContentMatches serves one attribution request.
func (o *Orchestrator) ContentMatches(ctx context.Context, req *pipeline.CodeMatchRequest) (*pipeline.CodeMatchResponse, error) {
	client := o.registry.ContentMatch()

	for i, suggestion := range req.Suggestions {
		req.Suggestions[i] = o.anonymize(suggestion)
	}

	call := CallEvent{ModelID: req.ModelIDOverride}
	start := time.Now()
	resp, err := client.CodeMatch(ctx, req)
	if err != nil {
		perr := classify(err, pipeline.KindCodeMatchFailure, req.ModelIDOverride)
		o.observe(pipeline.RoleContentMatch, client.Provider(), call, start, perr)
		return nil, perr
	}
	call.ModelID = resp.ModelID
	o.observe(pipeline.RoleContentMatch, client.Provider(), call, start, nil)
	return resp, nil
}

// GeneratePlaybook serves one playbook-generation request.
func (o *Orchestrator) GeneratePlaybook(ctx context.Context, req *pipeline.PlaybookGenerationRequest) (*pipeline.PlaybookGenerationResponse, error) {
	client := o.registry.PlaybookGeneration()

	req.Text = o.anonymize(req.Text)
	req.Outline = o.anonymize(req.Outline)

	call := CallEvent{ModelID: req.ModelIDOverride}
	start := time.Now()
	resp, err := client.GeneratePlaybook(ctx, req)
	if err != nil {
		perr := classify(err, pipeline.KindInferenceFailure, req.ModelIDOverride)
		o.observe(pipeline.RolePlaybookGeneration, client.Provider(), call, start, perr)
		return nil, perr
	}
	call.ModelID = resp.ModelID
	o.observe(pipeline.RolePlaybookGeneration, client.Provider(), call, start, nil)

	if o.postprocess != nil {
		cleaned, warnings, err := o.postprocess(resp.Playbook, req.Text, "")
		if err == nil {
			resp.Playbook = cleaned
			resp.Warnings = append(resp.Warnings, warnings...)
		}
	}
	return resp, nil
}

// ExplainPlaybook serves one playbook-explanation request.
func (o *Orchestrator) ExplainPlaybook(ctx context.Context, req *pipeline.PlaybookExplanationRequest) (string, error) {
	client := o.registry.PlaybookExplanation()

	req.Content = o.anonymize(req.Content)

	call := CallEvent{ModelID: req.ModelIDOverride}
	start := time.Now()
	explanation, err := client.ExplainPlaybook(ctx, req)
	if err != nil {
		perr := classify(err, pipeline.KindInferenceFailure, req.ModelIDOverride)
		o.observe(pipeline.RolePlaybookExplanation, client.Provider(), call, start, perr)
		return "", perr
	}
	o.observe(pipeline.RolePlaybookExplanation, client.Provider(), call, start, nil)
	return explanation, nil
}

// Chat serves one chat-bot query.
func (o *Orchestrator) Chat(ctx context.Context, req *pipeline.ChatRequest) (*pipeline.ChatResponse, error) {
	client := o.registry.ChatBot()

	req.Query = o.anonymize(req.Query)

	call := CallEvent{ModelID: req.ModelIDOverride}
	start := time.Now()
	resp, err := client.Chat(ctx, req)
	if err != nil {
		perr := classify(err, pipeline.KindInferenceFailure, req.ModelIDOverride)
		o.observe(pipeline.RoleChatBot, client.Provider(), call, start, perr)
		return nil, perr
	}
	call.ModelID = resp.ModelID
	o.observe(pipeline.RoleChatBot, client.Provider(), call, start, nil)
	return resp, nil
}

// ChatStream serves one streaming chat query. The handler receives chunks in
// order; client disconnects cancel ctx and close the upstream stream.
func (o *Orchestrator) ChatStream(ctx context.Context, req *pipeline.ChatRequest, handler pipeline.StreamHandler) error {
	client := o.registry.StreamingChatBot()

	req.Query = o.anonymize(req.Query)

	call := CallEvent{ModelID: req.ModelIDOverride}
	start := time.Now()
	err := client.ChatStream(ctx, req, handler)
	if err != nil {
		perr := classify(err, pipeline.KindInferenceFailure, req.ModelIDOverride)
		o.observe(pipeline.RoleStreamingChatBot, client.Provider(), call, start, perr)
		return perr
	}
	o.observe(pipeline.RoleStreamingChatBot, client.Provider(), call, start, nil)
	return nil
}

// HealthSummary reports the outcome of the per-pipeline health checks.
type HealthSummary struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Pipelines map[string]string `json:"pipelines"`
}

// Health runs every enabled pipeline health check.
func (o *Orchestrator) Health(ctx context.Context) HealthSummary {
	summary := HealthSummary{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Pipelines: make(map[string]string),
	}
	for role, err := range o.registry.HealthCheckAll(ctx) {
		if err != nil {
			summary.Status = "degraded"
			summary.Pipelines[string(role)] = err.Error()
			continue
		}
		summary.Pipelines[string(role)] = "ok"
	}
	return summary
}
