// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package dummybackend implements the scripted dummy provider. It is the
// default for any pipeline role without configuration, so it supports every
// role: canned responses after an optional jittered latency sleep.
package dummybackend

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/ansible/ansible-ai-connect-gateway/gateway/pipeline"
)

const defaultPrediction = "      ansible.builtin.debug:\n        msg: Hello from the dummy backend"

// Provider returns configured canned bodies. latency_max_msec bounds a sleep
// before each response; with latency_use_jitter the sleep is uniform in
// [0, latency_max_msec), otherwise it is the full value.
type Provider struct {
	cfg  *pipeline.Config
	rand *rand.Rand
}

// New builds the dummy client.
func New(role pipeline.Role, entry pipeline.Entry) *Provider {
	cfg := entry.Config
	return &Provider{
		cfg:  &cfg,
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Provider implements pipeline.Client.
func (p *Provider) Provider() pipeline.ProviderTag {
	return pipeline.ProviderDummy
}

// PipelineConfig implements pipeline.Client.
func (p *Provider) PipelineConfig() *pipeline.Config {
	return p.cfg
}

// sleep applies the configured latency, honoring context cancellation.
func (p *Provider) sleep(ctx context.Context) error {
	if p.cfg.LatencyMaxMS <= 0 {
		return nil
	}
	delay := time.Duration(p.cfg.LatencyMaxMS) * time.Millisecond
	if p.cfg.LatencyUseJitter {
		delay = time.Duration(p.rand.Int63n(int64(delay) + 1))
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return pipeline.NewError(pipeline.KindModelTimeout, p.modelID(""), "backend call timed out", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func (p *Provider) modelID(override string) string {
	if override != "" {
		return override
	}
	if p.cfg.ModelID != "" {
		return p.cfg.ModelID
	}
	return "dummy"
}

// cannedPredictions decodes the configured body. The body is expected to be
// the full predictions document; a non-JSON body is served as one prediction.
func (p *Provider) cannedPredictions() []string {
	if p.cfg.Body == "" {
		return []string{defaultPrediction}
	}
	var parsed struct {
		Predictions []string `json:"predictions"`
	}
	if err := json.Unmarshal([]byte(p.cfg.Body), &parsed); err == nil && len(parsed.Predictions) > 0 {
		return parsed.Predictions
	}
	return []string{p.cfg.Body}
}

// Infer implements pipeline.CompletionsClient.
func (p *Provider) Infer(ctx context.Context, req *pipeline.InferenceRequest) (*pipeline.InferenceResponse, error) {
	if err := p.sleep(ctx); err != nil {
		return nil, err
	}
	return &pipeline.InferenceResponse{
		Predictions: p.cannedPredictions(),
		ModelID:     p.modelID(req.ModelIDOverride),
	}, nil
}

// CodeMatch implements pipeline.ContentMatchClient.
func (p *Provider) CodeMatch(ctx context.Context, req *pipeline.CodeMatchRequest) (*pipeline.CodeMatchResponse, error) {
	if err := p.sleep(ctx); err != nil {
		return nil, err
	}
	return &pipeline.CodeMatchResponse{
		ModelID: p.modelID(req.ModelIDOverride),
		ContentMatches: []pipeline.ContentMatch{
			{
				Repo:       "ansible/ansible-examples",
				RepoURL:    "https://github.com/ansible/ansible-examples",
				Path:       "lamp_simple/site.yml",
				License:    "mit",
				DataSource: "Ansible Galaxy roles",
				Score:      0.92,
			},
		},
	}, nil
}

// GeneratePlaybook implements pipeline.PlaybookGenerationClient.
func (p *Provider) GeneratePlaybook(ctx context.Context, req *pipeline.PlaybookGenerationRequest) (*pipeline.PlaybookGenerationResponse, error) {
	if err := p.sleep(ctx); err != nil {
		return nil, err
	}
	outline := req.Outline
	if req.CreateOutline && outline == "" {
		outline = "1. Install the service\n2. Start the service"
	}
	return &pipeline.PlaybookGenerationResponse{
		Playbook: "- name: Generated playbook\n  hosts: all\n  tasks: []\n",
		Outline:  outline,
		ModelID:  p.modelID(req.ModelIDOverride),
	}, nil
}

// ExplainPlaybook implements pipeline.PlaybookExplanationClient.
func (p *Provider) ExplainPlaybook(ctx context.Context, req *pipeline.PlaybookExplanationRequest) (string, error) {
	if err := p.sleep(ctx); err != nil {
		return "", err
	}
	return "This playbook installs and starts a service on all hosts.", nil
}

// Chat implements pipeline.ChatClient.
func (p *Provider) Chat(ctx context.Context, req *pipeline.ChatRequest) (*pipeline.ChatResponse, error) {
	if err := p.sleep(ctx); err != nil {
		return nil, err
	}
	return &pipeline.ChatResponse{
		Content:        "Hello! How can I help you with Ansible today?",
		ConversationID: req.ConversationID,
		ModelID:        p.modelID(req.ModelIDOverride),
	}, nil
}

// ChatStream implements pipeline.StreamingChatClient by replaying the canned
// chat answer as a short event stream.
func (p *Provider) ChatStream(ctx context.Context, req *pipeline.ChatRequest, handler pipeline.StreamHandler) error {
	if err := p.sleep(ctx); err != nil {
		return err
	}
	chunks := []pipeline.StreamChunk{
		{Event: "start", Data: []byte(`{"conversation_id":"` + req.ConversationID + `"}`)},
		{Event: "token", Data: []byte(`{"token":"Hello! How can I help you with Ansible today?"}`)},
		{Event: "end", Data: []byte(`{}`)},
	}
	for _, chunk := range chunks {
		if err := handler(chunk); err != nil {
			return err
		}
	}
	return nil
}

// HealthCheck implements pipeline.Client.
func (p *Provider) HealthCheck(ctx context.Context) error {
	return nil
}

var (
	_ pipeline.CompletionsClient         = (*Provider)(nil)
	_ pipeline.ContentMatchClient        = (*Provider)(nil)
	_ pipeline.PlaybookGenerationClient  = (*Provider)(nil)
	_ pipeline.PlaybookExplanationClient = (*Provider)(nil)
	_ pipeline.ChatClient                = (*Provider)(nil)
	_ pipeline.StreamingChatClient       = (*Provider)(nil)
)
