// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

package wca

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ansible/ansible-ai-connect-gateway/gateway/pipeline"
)

func newTestOnPrem(t *testing.T, backendURL string, mutate func(*pipeline.Config)) *OnPrem {
	t.Helper()
	cfg := pipeline.Config{
		InferenceURL: backendURL,
		Username:     "cpuser",
		APIKey:       "zen-key",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	client, err := NewOnPrem(pipeline.RoleCompletions, pipeline.Entry{Provider: pipeline.ProviderWCAOnPrem, Config: cfg}, nil)
	require.NoError(t, err)
	return client
}

func TestNewOnPremRequiresUsername(t *testing.T) {
	_, err := NewOnPrem(pipeline.RoleCompletions, pipeline.Entry{
		Provider: pipeline.ProviderWCAOnPrem,
		Config:   pipeline.Config{InferenceURL: "https://cpd.example.com", APIKey: "zen-key"},
	}, nil)
	assert.True(t, pipeline.IsKind(err, pipeline.KindUsernameNotFound))
}

func TestNewOnPremRequiresAPIKey(t *testing.T) {
	_, err := NewOnPrem(pipeline.RoleCompletions, pipeline.Entry{
		Provider: pipeline.ProviderWCAOnPrem,
		Config:   pipeline.Config{InferenceURL: "https://cpd.example.com", Username: "cpuser"},
	}, nil)
	assert.Error(t, err)
}

func TestOnPremInferSendsZenAPIKeyHeader(t *testing.T) {
	var gotAuth string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"predictions": ["ok"], "model_id": "model-a"}`)
	}))
	defer backend.Close()

	c := newTestOnPrem(t, backend.URL, func(cfg *pipeline.Config) {
		cfg.ModelID = "model-a"
	})

	_, err := c.Infer(context.Background(), &pipeline.InferenceRequest{Prompt: "- name: x\n"})
	require.NoError(t, err)

	require.True(t, len(gotAuth) > 10)
	assert.Equal(t, "ZenApiKey ", gotAuth[:10])
	decoded, err := base64.StdEncoding.DecodeString(gotAuth[10:])
	require.NoError(t, err)
	assert.Equal(t, "cpuser:zen-key", string(decoded))
}

func TestOnPremModelIDPrecedence(t *testing.T) {
	var gotPayload inferPayload
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		fmt.Fprint(w, `{"predictions": ["ok"], "model_id": "ignored"}`)
	}))
	defer backend.Close()

	c := newTestOnPrem(t, backend.URL, func(cfg *pipeline.Config) {
		cfg.ModelID = "default-model"
	})

	resp, err := c.Infer(context.Background(), &pipeline.InferenceRequest{
		Prompt:          "- name: x\n",
		ModelIDOverride: "override-model",
	})
	require.NoError(t, err)
	assert.Equal(t, "override-model", gotPayload.ModelID)
	assert.Equal(t, "override-model", resp.ModelID)

	resp, err = c.Infer(context.Background(), &pipeline.InferenceRequest{Prompt: "- name: x\n"})
	require.NoError(t, err)
	assert.Equal(t, "default-model", gotPayload.ModelID)
	assert.Equal(t, "default-model", resp.ModelID)
}

func TestOnPremInferWithoutModelID(t *testing.T) {
	c := newTestOnPrem(t, "http://backend.invalid", nil)
	_, err := c.Infer(context.Background(), &pipeline.InferenceRequest{Prompt: "- name: x\n"})
	assert.True(t, pipeline.IsKind(err, pipeline.KindModelIDNotFound))
}

func TestOnPremPlaybookOperationsAreNotAvailable(t *testing.T) {
	c := newTestOnPrem(t, "http://backend.invalid", func(cfg *pipeline.Config) {
		cfg.ModelID = "model-a"
	})

	_, err := c.GeneratePlaybook(context.Background(), &pipeline.PlaybookGenerationRequest{Text: "install nginx"})
	assert.True(t, pipeline.IsKind(err, pipeline.KindFeatureNotAvailable))

	_, err = c.ExplainPlaybook(context.Background(), &pipeline.PlaybookExplanationRequest{Content: "---"})
	assert.True(t, pipeline.IsKind(err, pipeline.KindFeatureNotAvailable))
}

func TestOnPremCodeMatch(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, codematchPath, r.URL.Path)
		fmt.Fprint(w, `{"code_matches": [{"repo_name": "r", "score": 0.5}]}`)
	}))
	defer backend.Close()

	c := newTestOnPrem(t, backend.URL, func(cfg *pipeline.Config) {
		cfg.ModelID = "model-a"
	})

	resp, err := c.CodeMatch(context.Background(), &pipeline.CodeMatchRequest{Suggestions: []string{"- name: x\n"}})
	require.NoError(t, err)
	require.Len(t, resp.ContentMatches, 1)
	assert.Equal(t, "r", resp.ContentMatches[0].Repo)
}

func TestOnPremHealthCheckRunsAnInference(t *testing.T) {
	var gotPath string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, `{"predictions": ["ok"], "model_id": "model-a"}`)
	}))
	defer backend.Close()

	c := newTestOnPrem(t, backend.URL, func(cfg *pipeline.Config) {
		cfg.ModelID = "model-a"
	})
	require.NoError(t, c.HealthCheck(context.Background()))
	assert.Equal(t, codegenPath, gotPath)
}
