// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

package dummybackend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ansible/ansible-ai-connect-gateway/gateway/pipeline"
)

func newTestProvider(cfg pipeline.Config) *Provider {
	return New(pipeline.RoleCompletions, pipeline.Entry{Provider: pipeline.ProviderDummy, Config: cfg})
}

func TestInferServesDefaultPrediction(t *testing.T) {
	p := newTestProvider(pipeline.Config{})
	resp, err := p.Infer(context.Background(), &pipeline.InferenceRequest{Prompt: "- name: x\n"})
	require.NoError(t, err)
	require.Len(t, resp.Predictions, 1)
	assert.Contains(t, resp.Predictions[0], "ansible.builtin.debug")
	assert.Equal(t, "dummy", resp.ModelID)
}

func TestInferParsesConfiguredPredictionsBody(t *testing.T) {
	p := newTestProvider(pipeline.Config{
		Body: `{"predictions": ["      ansible.builtin.package:\n        name: nginx"]}`,
	})
	resp, err := p.Infer(context.Background(), &pipeline.InferenceRequest{Prompt: "- name: x\n"})
	require.NoError(t, err)
	require.Len(t, resp.Predictions, 1)
	assert.Contains(t, resp.Predictions[0], "nginx")
}

func TestInferServesNonJSONBodyAsOnePrediction(t *testing.T) {
	p := newTestProvider(pipeline.Config{Body: "      ansible.builtin.ping:"})
	resp, err := p.Infer(context.Background(), &pipeline.InferenceRequest{Prompt: "- name: x\n"})
	require.NoError(t, err)
	assert.Equal(t, []string{"      ansible.builtin.ping:"}, resp.Predictions)
}

func TestModelIDResolution(t *testing.T) {
	p := newTestProvider(pipeline.Config{ModelID: "configured"})

	resp, err := p.Infer(context.Background(), &pipeline.InferenceRequest{Prompt: "- name: x\n"})
	require.NoError(t, err)
	assert.Equal(t, "configured", resp.ModelID)

	resp, err = p.Infer(context.Background(), &pipeline.InferenceRequest{Prompt: "- name: x\n", ModelIDOverride: "override"})
	require.NoError(t, err)
	assert.Equal(t, "override", resp.ModelID)
}

func TestCancelledContextIsModelTimeout(t *testing.T) {
	p := newTestProvider(pipeline.Config{LatencyMaxMS: 10_000})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Infer(ctx, &pipeline.InferenceRequest{Prompt: "- name: x\n"})
	assert.True(t, pipeline.IsKind(err, pipeline.KindModelTimeout))
}

func TestLatencyJitterStaysWithinBound(t *testing.T) {
	p := newTestProvider(pipeline.Config{LatencyMaxMS: 20, LatencyUseJitter: true})

	start := time.Now()
	_, err := p.Infer(context.Background(), &pipeline.InferenceRequest{Prompt: "- name: x\n"})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestCodeMatch(t *testing.T) {
	p := newTestProvider(pipeline.Config{})
	resp, err := p.CodeMatch(context.Background(), &pipeline.CodeMatchRequest{Suggestions: []string{"- name: x\n"}})
	require.NoError(t, err)
	require.Len(t, resp.ContentMatches, 1)
	assert.NotEmpty(t, resp.ContentMatches[0].Repo)
	assert.Greater(t, resp.ContentMatches[0].Score, 0.0)
}

func TestGeneratePlaybook(t *testing.T) {
	p := newTestProvider(pipeline.Config{})

	resp, err := p.GeneratePlaybook(context.Background(), &pipeline.PlaybookGenerationRequest{
		Text:          "install nginx",
		CreateOutline: true,
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Playbook, "hosts: all")
	assert.NotEmpty(t, resp.Outline)

	// A caller-provided outline is echoed back.
	resp, err = p.GeneratePlaybook(context.Background(), &pipeline.PlaybookGenerationRequest{
		Text:    "install nginx",
		Outline: "1. already outlined",
	})
	require.NoError(t, err)
	assert.Equal(t, "1. already outlined", resp.Outline)
}

func TestExplainPlaybook(t *testing.T) {
	p := newTestProvider(pipeline.Config{})
	explanation, err := p.ExplainPlaybook(context.Background(), &pipeline.PlaybookExplanationRequest{Content: "---"})
	require.NoError(t, err)
	assert.NotEmpty(t, explanation)
}

func TestChat(t *testing.T) {
	p := newTestProvider(pipeline.Config{})
	resp, err := p.Chat(context.Background(), &pipeline.ChatRequest{Query: "hi", ConversationID: "conv-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Content)
	assert.Equal(t, "conv-1", resp.ConversationID)
}

func TestChatStreamEventOrder(t *testing.T) {
	p := newTestProvider(pipeline.Config{})
	var events []string
	err := p.ChatStream(context.Background(), &pipeline.ChatRequest{Query: "hi"}, func(chunk pipeline.StreamChunk) error {
		events = append(events, chunk.Event)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "token", "end"}, events)
}

func TestHealthCheckAlwaysPasses(t *testing.T) {
	p := newTestProvider(pipeline.Config{})
	assert.NoError(t, p.HealthCheck(context.Background()))
}
