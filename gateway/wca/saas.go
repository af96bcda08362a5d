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
	"github.com/ansible/ansible-ai-connect-gateway/gateway/secrets"
	"github.com/ansible/ansible-ai-connect-gateway/shared/logger"
)

// SaaS is the provider client for the commercial watsonx Code Assistant.
// It is the reference implementation of the pipeline contract: per-org
// credential resolution, token fetch, retries, correlation checking and
// response validation.
type SaaS struct {
	*base
	resolver secrets.Resolver
	tokens   *TokenCache
}

// NewSaaS builds the SaaS client for one pipeline role.
func NewSaaS(role pipeline.Role, entry pipeline.Entry, resolver secrets.Resolver, log *logger.Logger) (*SaaS, error) {
	cfg := entry.Config
	if cfg.IDPURL == "" {
		return nil, fmt.Errorf("idp_url is required for the wca provider")
	}
	b, err := newBase(role, &cfg, log)
	if err != nil {
		return nil, err
	}
	return &SaaS{
		base:     b,
		resolver: resolver,
		tokens:   NewTokenCache(cfg.IDPURL, cfg.IDPLogin, cfg.IDPPassword, cfg.RetryCount, b.session, b.log),
	}, nil
}

// Provider implements pipeline.Client.
func (c *SaaS) Provider() pipeline.ProviderTag {
	return pipeline.ProviderWCA
}

// resolveAPIKey returns the API key for the organisation: the process-wide
// override wins, then the org secret, then the one-click trial default.
func (c *SaaS) resolveAPIKey(ctx context.Context, orgID string) (string, error) {
	if c.cfg.APIKey != "" {
		return c.cfg.APIKey, nil
	}
	if orgID != "" && c.resolver != nil {
		secret, err := c.resolver.Get(ctx, orgID, secrets.SuffixAPIKey)
		if err != nil {
			return "", err
		}
		if secret != nil && secret.Value != "" {
			return secret.Value, nil
		}
	}
	if c.cfg.OneClickDefaultAPIKey != "" {
		return c.cfg.OneClickDefaultAPIKey, nil
	}
	return "", pipeline.NewError(pipeline.KindKeyNotFound, "", "no API key for organisation "+orgID, nil)
}

// resolveModelID applies the SaaS precedence: request override, then the
// process-wide default, then the org secret, then the one-click default.
func (c *SaaS) resolveModelID(ctx context.Context, orgID, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if c.cfg.ModelID != "" {
		return c.cfg.ModelID, nil
	}
	if orgID == "" {
		if c.cfg.OneClickDefaultModel != "" {
			return c.cfg.OneClickDefaultModel, nil
		}
		return "", pipeline.NewError(pipeline.KindNoDefaultModelID, "", "no default model id and caller has no organisation", nil)
	}
	if c.resolver != nil {
		secret, err := c.resolver.Get(ctx, orgID, secrets.SuffixModelID)
		if err != nil {
			return "", err
		}
		if secret != nil && secret.Value != "" {
			return secret.Value, nil
		}
	}
	if c.cfg.OneClickDefaultModel != "" {
		return c.cfg.OneClickDefaultModel, nil
	}
	return "", pipeline.NewError(pipeline.KindModelIDNotFound, "", "no model id for organisation "+orgID, nil)
}

// tokenAuth exchanges an API key for a bearer token.
func (c *SaaS) tokenAuth(ctx context.Context, apiKey string) (sdk.AuthProvider, error) {
	token, err := c.tokens.Get(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, pipeline.NewError(pipeline.KindTokenFailure, "", "could not obtain an access token", nil)
	}
	return sdk.NewBearerTokenAuth(token.AccessToken), nil
}

// resolve runs the credential stages in order: API key, model id, token.
func (c *SaaS) resolve(ctx context.Context, orgID, override string) (sdk.AuthProvider, string, error) {
	apiKey, err := c.resolveAPIKey(ctx, orgID)
	if err != nil {
		return nil, "", err
	}
	modelID, err := c.resolveModelID(ctx, orgID, override)
	if err != nil {
		return nil, "", err
	}
	auth, err := c.tokenAuth(ctx, apiKey)
	if err != nil {
		return nil, "", err
	}
	return auth, modelID, nil
}

// Infer implements pipeline.CompletionsClient.
func (c *SaaS) Infer(ctx context.Context, req *pipeline.InferenceRequest) (*pipeline.InferenceResponse, error) {
	auth, modelID, err := c.resolve(ctx, req.OrgID, req.ModelIDOverride)
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
		auth:         auth,
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
func (c *SaaS) CodeMatch(ctx context.Context, req *pipeline.CodeMatchRequest) (*pipeline.CodeMatchResponse, error) {
	auth, modelID, err := c.resolve(ctx, req.OrgID, req.ModelIDOverride)
	if err != nil {
		return nil, err
	}

	body, err := c.post(ctx, callSpec{
		path:      codematchPath,
		payload:   codeMatchPayload{ModelID: modelID, Input: req.Suggestions},
		auth:      auth,
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

// GeneratePlaybook implements pipeline.PlaybookGenerationClient.
func (c *SaaS) GeneratePlaybook(ctx context.Context, req *pipeline.PlaybookGenerationRequest) (*pipeline.PlaybookGenerationResponse, error) {
	auth, modelID, err := c.resolve(ctx, req.OrgID, req.ModelIDOverride)
	if err != nil {
		return nil, err
	}

	body, err := c.post(ctx, callSpec{
		path: playbookGenPath,
		payload: playbookGenPayload{
			ModelID:       modelID,
			Text:          req.Text,
			CreateOutline: req.CreateOutline,
			Outline:       req.Outline,
		},
		auth:      auth,
		modelID:   modelID,
		taskCount: 1,
		validate:  validateInfer,
		failKind:  pipeline.KindInferenceFailure,
	})
	if err != nil {
		return nil, err
	}

	var parsed playbookGenResult
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, pipeline.NewError(pipeline.KindInferenceFailure, modelID, "malformed playbook response", err)
	}
	return &pipeline.PlaybookGenerationResponse{
		Playbook: parsed.Playbook,
		Outline:  parsed.Outline,
		Warnings: parsed.Warnings,
		ModelID:  modelID,
	}, nil
}

// ExplainPlaybook implements pipeline.PlaybookExplanationClient.
func (c *SaaS) ExplainPlaybook(ctx context.Context, req *pipeline.PlaybookExplanationRequest) (string, error) {
	auth, modelID, err := c.resolve(ctx, req.OrgID, req.ModelIDOverride)
	if err != nil {
		return "", err
	}

	body, err := c.post(ctx, callSpec{
		path:      playbookExplainPath,
		payload:   playbookExplainPayload{ModelID: modelID, Content: req.Content},
		auth:      auth,
		modelID:   modelID,
		taskCount: 1,
		validate:  validateInfer,
		failKind:  pipeline.KindInferenceFailure,
	})
	if err != nil {
		return "", err
	}

	var parsed playbookExplainResult
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", pipeline.NewError(pipeline.KindInferenceFailure, modelID, "malformed explanation response", err)
	}
	return parsed.Content, nil
}

// HealthCheck implements pipeline.Client. It runs a one-task inference with
// the dedicated health-check credentials when they are configured.
func (c *SaaS) HealthCheck(ctx context.Context) error {
	if c.cfg.HealthCheckAPIKey == "" || c.cfg.HealthCheckModelID == "" {
		return nil
	}
	token, err := c.tokens.Get(ctx, c.cfg.HealthCheckAPIKey)
	if err != nil {
		return err
	}
	if token == nil {
		return pipeline.NewError(pipeline.KindTokenFailure, "", "could not obtain an access token", nil)
	}
	_, err = c.post(ctx, callSpec{
		path:      codegenPath,
		payload:   inferPayload{ModelID: c.cfg.HealthCheckModelID, Prompt: "- name: install ssh\n"},
		auth:      sdk.NewBearerTokenAuth(token.AccessToken),
		modelID:   c.cfg.HealthCheckModelID,
		taskCount: 1,
		validate:  validateInfer,
		failKind:  pipeline.KindInferenceFailure,
	})
	return err
}

// validateInfer and validateCodeMatch adapt the pipeline validators to the
// callSpec signature.
func validateInfer(modelID string, status int, body string, multiTask bool) error {
	return pipeline.ValidateInferResponse(modelID, status, body, multiTask)
}

func validateCodeMatch(modelID string, status int, body string, _ bool) error {
	return pipeline.ValidateCodeMatchResponse(modelID, status, body)
}

var (
	_ pipeline.CompletionsClient        = (*SaaS)(nil)
	_ pipeline.ContentMatchClient       = (*SaaS)(nil)
	_ pipeline.PlaybookGenerationClient = (*SaaS)(nil)
	_ pipeline.PlaybookExplanationClient = (*SaaS)(nil)
)
