// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient supports every role so registry tests can focus on wiring.
type fakeClient struct {
	tag       ProviderTag
	cfg       Config
	healthErr error
	healthRan bool
}

func (c *fakeClient) Provider() ProviderTag      { return c.tag }
func (c *fakeClient) PipelineConfig() *Config    { return &c.cfg }
func (c *fakeClient) HealthCheck(ctx context.Context) error {
	c.healthRan = true
	return c.healthErr
}
func (c *fakeClient) Infer(ctx context.Context, req *InferenceRequest) (*InferenceResponse, error) {
	return &InferenceResponse{}, nil
}
func (c *fakeClient) CodeMatch(ctx context.Context, req *CodeMatchRequest) (*CodeMatchResponse, error) {
	return &CodeMatchResponse{}, nil
}
func (c *fakeClient) GeneratePlaybook(ctx context.Context, req *PlaybookGenerationRequest) (*PlaybookGenerationResponse, error) {
	return &PlaybookGenerationResponse{}, nil
}
func (c *fakeClient) ExplainPlaybook(ctx context.Context, req *PlaybookExplanationRequest) (string, error) {
	return "", nil
}
func (c *fakeClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	return &ChatResponse{}, nil
}
func (c *fakeClient) ChatStream(ctx context.Context, req *ChatRequest, handler StreamHandler) error {
	return nil
}

// inferOnlyClient supports only the completions role.
type inferOnlyClient struct {
	cfg Config
}

func (c *inferOnlyClient) Provider() ProviderTag             { return ProviderHTTP }
func (c *inferOnlyClient) PipelineConfig() *Config           { return &c.cfg }
func (c *inferOnlyClient) HealthCheck(ctx context.Context) error { return nil }
func (c *inferOnlyClient) Infer(ctx context.Context, req *InferenceRequest) (*InferenceResponse, error) {
	return &InferenceResponse{}, nil
}

func allDummyDoc() Document {
	doc := make(Document)
	for _, role := range Roles() {
		doc[role] = Entry{Provider: ProviderDummy}
	}
	return doc
}

func dummyBuilders(client Client) map[ProviderTag]Builder {
	return map[ProviderTag]Builder{
		ProviderDummy: func(role Role, entry Entry) (Client, error) {
			return client, nil
		},
	}
}

func TestNewRegistryBuildsOneClientPerRole(t *testing.T) {
	client := &fakeClient{tag: ProviderDummy}
	registry, err := NewRegistry(allDummyDoc(), dummyBuilders(client), nil)
	require.NoError(t, err)

	for _, role := range Roles() {
		assert.NotNil(t, registry.Get(role), "role %s", role)
	}
	assert.NotNil(t, registry.Completions())
	assert.NotNil(t, registry.ContentMatch())
	assert.NotNil(t, registry.PlaybookGeneration())
	assert.NotNil(t, registry.PlaybookExplanation())
	assert.NotNil(t, registry.ChatBot())
	assert.NotNil(t, registry.StreamingChatBot())
}

func TestNewRegistryRejectsUnknownProvider(t *testing.T) {
	doc := allDummyDoc()
	doc[RoleCompletions] = Entry{Provider: ProviderTag("mystery")}

	_, err := NewRegistry(doc, dummyBuilders(&fakeClient{tag: ProviderDummy}), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mystery")
}

func TestNewRegistryRejectsUnsupportedRole(t *testing.T) {
	doc := allDummyDoc()
	builders := map[ProviderTag]Builder{
		ProviderDummy: func(role Role, entry Entry) (Client, error) {
			return &inferOnlyClient{}, nil
		},
	}

	// An infer-only client cannot serve ContentMatch.
	_, err := NewRegistry(doc, builders, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not support")
}

func TestNewRegistryPropagatesBuilderErrors(t *testing.T) {
	doc := allDummyDoc()
	builders := map[ProviderTag]Builder{
		ProviderDummy: func(role Role, entry Entry) (Client, error) {
			return nil, errors.New("bad config")
		},
	}

	_, err := NewRegistry(doc, builders, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad config")
}

func TestHealthCheckAllSkipsDisabledPipelines(t *testing.T) {
	enabled := &fakeClient{tag: ProviderDummy, cfg: Config{EnableHealthCheck: true}}
	disabled := &fakeClient{tag: ProviderDummy}

	doc := allDummyDoc()
	builders := map[ProviderTag]Builder{
		ProviderDummy: func(role Role, entry Entry) (Client, error) {
			if role == RoleCompletions {
				return enabled, nil
			}
			return disabled, nil
		},
	}
	registry, err := NewRegistry(doc, builders, nil)
	require.NoError(t, err)

	results := registry.HealthCheckAll(context.Background())
	assert.Len(t, results, 1)
	assert.NoError(t, results[RoleCompletions])
	assert.True(t, enabled.healthRan)
	assert.False(t, disabled.healthRan)
}

func TestHealthCheckAllReportsFailures(t *testing.T) {
	failing := &fakeClient{
		tag:       ProviderDummy,
		cfg:       Config{EnableHealthCheck: true},
		healthErr: errors.New("backend down"),
	}
	registry, err := NewRegistry(allDummyDoc(), dummyBuilders(failing), nil)
	require.NoError(t, err)

	results := registry.HealthCheckAll(context.Background())
	require.Len(t, results, len(Roles()))
	for role, err := range results {
		assert.EqualError(t, err, "backend down", "role %s", role)
	}
}
