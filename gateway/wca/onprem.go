// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

package wca

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ansible/ansible-ai-connect-gateway/gateway/format"
	"github.com/ansible/ansible-ai-connect-gateway/gateway/pipeline"
	"github.com/ansible/ansible-ai-connect-gateway/gateway/pipeline/sdk"
	"github.com/ansible/ansible-ai-connect-gateway/shared/logger"
)

// OnPrem is the provider client for watsonx Code Assistant on Cloud Pak.
// It authenticates with the ZenApiKey scheme from process-wide settings;
// there is no per-organisation secret store and no token exchange.
type OnPrem struct {
	*base
	auth sdk.AuthProvider
}

// NewOnPrem builds the on-prem client for one pipeline role. A missing
// username or API key is a startup error.
func NewOnPrem(role pipeline.Role, entry pipeline.Entry, log *logger.Logger) (*OnPrem, error) {
	cfg := entry.Config
	if cfg.Username == "" {
		return nil, pipeline.NewError(pipeline.KindUsernameNotFound, "", "username is required for the wca-onprem provider", nil)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api_key is required for the wca-onprem provider")
	}
	b, err := newBase(role, &cfg, log)
	if err != nil {
		return nil, err
	}
	return &OnPrem{
		base: b,
		auth: sdk.NewZenAPIKeyAuth(cfg.Username, cfg.APIKey),
	}, nil
}

// Provider implements pipeline.Client.
func (c *OnPrem) Provider() pipeline.ProviderTag {
	return pipeline.ProviderWCAOnPrem
}

// resolveModelID applies the on-prem precedence: request override, then the
// process-wide default. There is no org-scoped fallback.
func (c *OnPrem) resolveModelID(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if c.cfg.ModelID != "" {
		return c.cfg.ModelID, nil
	}
	return "", pipeline.NewError(pipeline.KindModelIDNotFound, "", "no model id configured", nil)
}

// Infer implements pipeline.CompletionsClient.
func (c *OnPrem) Infer(ctx context.Context, req *pipeline.InferenceRequest) (*pipeline.InferenceResponse, error) {
	modelID, err := c.resolveModelID(req.ModelIDOverride)
	if err != nil {
		return nil, err
	}

	multiTask := format.IsMultiTaskPrompt(req.Prompt)
	prompt := format.UnifyPromptEnding(format.StripTaskPreamble(req.Prompt))
	taskCount := req.TaskCount
	if taskCount < 1 {
		taskCount = format.TaskCount(req.Prompt)
	}

	body, err := c.post(ctx, callSpec{
		path:         codegenPath,
		payload:      inferPayload{ModelID: modelID, Prompt: req.Context + prompt},
		auth:         c.auth,
		modelID:      modelID,
		suggestionID: req.SuggestionID,
		multiTask:    multiTask,
		taskCount:    taskCount,
		validate:     validateInfer,
		failKind:     pipeline.KindInferenceFailure,
	})
	if err != nil {
		return nil, err
	}

	var parsed inferResult
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, pipeline.NewError(pipeline.KindInferenceFailure, modelID, "malformed inference response", err)
	}
	return &pipeline.InferenceResponse{
		Predictions: parsed.Predictions,
		ModelID:     modelID,
	}, nil
}

// CodeMatch implements pipeline.ContentMatchClient.
func (c *OnPrem) CodeMatch(ctx context.Context, req *pipeline.CodeMatchRequest) (*pipeline.CodeMatchResponse, error) {
	modelID, err := c.resolveModelID(req.ModelIDOverride)
	if err != nil {
		return nil, err
	}

	body, err := c.post(ctx, callSpec{
		path:      codematchPath,
		payload:   codeMatchPayload{ModelID: modelID, Input: req.Suggestions},
		auth:      c.auth,
		modelID:   modelID,
		taskCount: 1,
		validate:  validateCodeMatch,
		failKind:  pipeline.KindCodeMatchFailure,
	})
	if err != nil {
		return nil, err
	}
	return decodeCodeMatches(body, modelID)
}

// GeneratePlaybook is not offered by Cloud Pak deployments.
func (c *OnPrem) GeneratePlaybook(ctx context.Context, req *pipeline.PlaybookGenerationRequest) (*pipeline.PlaybookGenerationResponse, error) {
	return nil, pipeline.NewError(pipeline.KindFeatureNotAvailable, "", "playbook generation is not available on-prem", nil)
}

// ExplainPlaybook is not offered by Cloud Pak deployments.
func (c *OnPrem) ExplainPlaybook(ctx context.Context, req *pipeline.PlaybookExplanationRequest) (string, error) {
	return "", pipeline.NewError(pipeline.KindFeatureNotAvailable, "", "playbook explanation is not available on-prem", nil)
}

// HealthCheck implements pipeline.Client.
func (c *OnPrem) HealthCheck(ctx context.Context) error {
	modelID, err := c.resolveModelID("")
	if err != nil {
		return err
	}
	_, err = c.post(ctx, callSpec{
		path:      codegenPath,
		payload:   inferPayload{ModelID: modelID, Prompt: "- name: install ssh\n"},
		auth:      c.auth,
		modelID:   modelID,
		taskCount: 1,
		validate:  validateInfer,
		failKind:  pipeline.KindInferenceFailure,
	})
	return err
}

var (
	_ pipeline.CompletionsClient         = (*OnPrem)(nil)
	_ pipeline.ContentMatchClient        = (*OnPrem)(nil)
	_ pipeline.PlaybookGenerationClient  = (*OnPrem)(nil)
	_ pipeline.PlaybookExplanationClient = (*OnPrem)(nil)
)
