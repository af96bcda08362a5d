// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

package wca

import (
	"context"

	"github.com/ansible/ansible-ai-connect-gateway/gateway/pipeline"
)

// Dummy is the wca-dummy provider: it honors the WCA pipeline contract
// without any network calls. Used in tests and rate-limit exercises where a
// deterministic WCA-shaped backend is needed.
type Dummy struct {
	cfg *pipeline.Config
}

// NewDummy builds the wca-dummy client.
func NewDummy(role pipeline.Role, entry pipeline.Entry) *Dummy {
	cfg := entry.Config
	return &Dummy{cfg: &cfg}
}

// Provider implements pipeline.Client.
func (c *Dummy) Provider() pipeline.ProviderTag {
	return pipeline.ProviderWCADummy
}

// PipelineConfig implements pipeline.Client.
func (c *Dummy) PipelineConfig() *pipeline.Config {
	return c.cfg
}

func (c *Dummy) modelID(override string) string {
	if override != "" {
		return override
	}
	if c.cfg.ModelID != "" {
		return c.cfg.ModelID
	}
	return "wca-dummy"
}

// Infer implements pipeline.CompletionsClient.
func (c *Dummy) Infer(ctx context.Context, req *pipeline.InferenceRequest) (*pipeline.InferenceResponse, error) {
	return &pipeline.InferenceResponse{
		Predictions: []string{"      ansible.builtin.debug:\n        msg: Hello from wca-dummy"},
		ModelID:     c.modelID(req.ModelIDOverride),
	}, nil
}

// CodeMatch implements pipeline.ContentMatchClient.
func (c *Dummy) CodeMatch(ctx context.Context, req *pipeline.CodeMatchRequest) (*pipeline.CodeMatchResponse, error) {
	return &pipeline.CodeMatchResponse{
		ModelID: c.modelID(req.ModelIDOverride),
		ContentMatches: []pipeline.ContentMatch{
			{
				Repo:       "ansible/ansible-examples",
				RepoURL:    "https://github.com/ansible/ansible-examples",
				Path:       "lamp_simple/site.yml",
				License:    "mit",
				DataSource: "Ansible Galaxy roles",
				Score:      0.94,
			},
		},
	}, nil
}

// GeneratePlaybook implements pipeline.PlaybookGenerationClient.
func (c *Dummy) GeneratePlaybook(ctx context.Context, req *pipeline.PlaybookGenerationRequest) (*pipeline.PlaybookGenerationResponse, error) {
	outline := req.Outline
	if req.CreateOutline && outline == "" {
		outline = "1. Install the service\n2. Start the service"
	}
	return &pipeline.PlaybookGenerationResponse{
		Playbook: "- name: Generated playbook\n  hosts: all\n  tasks: []\n",
		Outline:  outline,
		ModelID:  c.modelID(req.ModelIDOverride),
	}, nil
}

// ExplainPlaybook implements pipeline.PlaybookExplanationClient.
func (c *Dummy) ExplainPlaybook(ctx context.Context, req *pipeline.PlaybookExplanationRequest) (string, error) {
	return "This playbook does nothing in particular.", nil
}

// HealthCheck implements pipeline.Client.
func (c *Dummy) HealthCheck(ctx context.Context) error {
	return nil
}

var (
	_ pipeline.CompletionsClient         = (*Dummy)(nil)
	_ pipeline.ContentMatchClient        = (*Dummy)(nil)
	_ pipeline.PlaybookGenerationClient  = (*Dummy)(nil)
	_ pipeline.PlaybookExplanationClient = (*Dummy)(nil)
)
