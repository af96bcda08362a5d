// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

package generic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ansible/ansible-ai-connect-gateway/gateway/pipeline"
)

func newTestProvider(t *testing.T, backendURL string, mutate func(*pipeline.Config)) *Provider {
	t.Helper()
	cfg := pipeline.Config{InferenceURL: backendURL, ModelID: "model-a"}
	if mutate != nil {
		mutate(&cfg)
	}
	p, err := New(pipeline.RoleCompletions, pipeline.Entry{Provider: pipeline.ProviderHTTP, Config: cfg}, nil)
	require.NoError(t, err)
	return p
}

func TestInferPassesPredictionsThrough(t *testing.T) {
	var gotPath string
	var gotPayload predictionsPayload
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		fmt.Fprint(w, `{"predictions": ["      ansible.builtin.package:\n        name: nginx"]}`)
	}))
	defer backend.Close()

	p := newTestProvider(t, backend.URL, nil)
	resp, err := p.Infer(context.Background(), &pipeline.InferenceRequest{
		Prompt:       "- name: install nginx\n",
		Context:      "---\n",
		SuggestionID: "sugg-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "/predictions/model-a", gotPath)
	require.Len(t, gotPayload.Instances, 1)
	assert.Equal(t, "- name: install nginx\n", gotPayload.Instances[0].Prompt)
	assert.Equal(t, "sugg-1", gotPayload.Instances[0].SuggestionID)

	assert.Equal(t, "model-a", resp.ModelID)
	require.Len(t, resp.Predictions, 1)
}

func TestInferModelIDOverride(t *testing.T) {
	var gotPath string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, `{"predictions": []}`)
	}))
	defer backend.Close()

	p := newTestProvider(t, backend.URL, nil)
	_, err := p.Infer(context.Background(), &pipeline.InferenceRequest{
		Prompt:          "- name: x\n",
		ModelIDOverride: "model-b",
	})
	require.NoError(t, err)
	assert.Equal(t, "/predictions/model-b", gotPath)
}

func TestInferWithoutModelID(t *testing.T) {
	p := newTestProvider(t, "http://backend.invalid", func(cfg *pipeline.Config) {
		cfg.ModelID = ""
	})
	_, err := p.Infer(context.Background(), &pipeline.InferenceRequest{Prompt: "- name: x\n"})
	assert.True(t, pipeline.IsKind(err, pipeline.KindModelIDNotFound))
}

func TestInferRetriesServerErrors(t *testing.T) {
	var attempts int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"predictions": ["ok"]}`)
	}))
	defer backend.Close()

	p := newTestProvider(t, backend.URL, func(cfg *pipeline.Config) {
		cfg.RetryCount = 1
	})
	resp, err := p.Infer(context.Background(), &pipeline.InferenceRequest{Prompt: "- name: x\n"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, resp.Predictions)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestInferDoesNotRetryClientErrors(t *testing.T) {
	var attempts int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer backend.Close()

	p := newTestProvider(t, backend.URL, func(cfg *pipeline.Config) {
		cfg.RetryCount = 5
	})
	_, err := p.Infer(context.Background(), &pipeline.InferenceRequest{Prompt: "- name: x\n"})
	assert.True(t, pipeline.IsKind(err, pipeline.KindInferenceFailure))
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestChat(t *testing.T) {
	var gotPayload chatPayload
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/query", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		fmt.Fprint(w, `{"response": "Use the ansible.builtin.package module.", "conversation_id": "conv-1"}`)
	}))
	defer backend.Close()

	p := newTestProvider(t, backend.URL, nil)
	resp, err := p.Chat(context.Background(), &pipeline.ChatRequest{
		Query:          "how do I install nginx?",
		ConversationID: "conv-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "how do I install nginx?", gotPayload.Query)
	assert.Equal(t, "model-a", gotPayload.Model)
	assert.Equal(t, "Use the ansible.builtin.package module.", resp.Content)
	assert.Equal(t, "conv-1", resp.ConversationID)
	assert.Equal(t, "model-a", resp.ModelID, "missing model id is filled from config")
}

func TestChatStreamRelaysEventsInOrder(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/streaming_query", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: start\ndata: {\"conversation_id\": \"conv-1\"}\n\n")
		fmt.Fprint(w, "event: token\ndata: {\"token\": \"Use\"}\n\n")
		fmt.Fprint(w, "event: end\ndata: {}\n\n")
	}))
	defer backend.Close()

	p := newTestProvider(t, backend.URL, nil)
	var events []string
	err := p.ChatStream(context.Background(), &pipeline.ChatRequest{Query: "hi"}, func(chunk pipeline.StreamChunk) error {
		events = append(events, chunk.Event)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "token", "end"}, events)
}

func TestChatStreamUpstreamFailure(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no stream for you", http.StatusServiceUnavailable)
	}))
	defer backend.Close()

	p := newTestProvider(t, backend.URL, nil)
	err := p.ChatStream(context.Background(), &pipeline.ChatRequest{Query: "hi"}, func(pipeline.StreamChunk) error {
		t.Fatal("no chunks expected")
		return nil
	})
	assert.True(t, pipeline.IsKind(err, pipeline.KindInferenceFailure))
}

func TestHealthCheck(t *testing.T) {
	var gotPath string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.URL.Path != "/ping" {
			http.NotFound(w, r)
		}
	}))
	defer backend.Close()

	p := newTestProvider(t, backend.URL, nil)
	require.NoError(t, p.HealthCheck(context.Background()))
	assert.Equal(t, "/ping", gotPath)
}

func TestHealthCheckFailure(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer backend.Close()

	p := newTestProvider(t, backend.URL, nil)
	assert.Error(t, p.HealthCheck(context.Background()))
}
