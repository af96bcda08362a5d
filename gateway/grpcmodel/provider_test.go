// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

package grpcmodel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ansible/ansible-ai-connect-gateway/gateway/pipeline"
)

func newTestProvider(t *testing.T, mutate func(*pipeline.Config)) *Provider {
	t.Helper()
	cfg := pipeline.Config{InferenceURL: "grpc://model-mesh.example.com:8033"}
	if mutate != nil {
		mutate(&cfg)
	}
	p, err := New(pipeline.RoleCompletions, pipeline.Entry{Provider: pipeline.ProviderGRPC, Config: cfg}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestNewRequiresInferenceURL(t *testing.T) {
	_, err := New(pipeline.RoleCompletions, pipeline.Entry{Provider: pipeline.ProviderGRPC}, nil)
	assert.Error(t, err)
}

func TestNewStripsSchemePrefixes(t *testing.T) {
	for _, target := range []string{
		"grpc://model-mesh.example.com:8033",
		"dns:///model-mesh.example.com:8033",
		"model-mesh.example.com:8033",
	} {
		p, err := New(pipeline.RoleCompletions, pipeline.Entry{
			Provider: pipeline.ProviderGRPC,
			Config:   pipeline.Config{InferenceURL: target},
		}, nil)
		require.NoError(t, err, target)
		_ = p.Close()
	}
}

func TestInferRequiresModelID(t *testing.T) {
	p := newTestProvider(t, nil)
	_, err := p.Infer(context.Background(), &pipeline.InferenceRequest{Prompt: "- name: x\n"})
	assert.True(t, pipeline.IsKind(err, pipeline.KindModelIDNotFound))
}

func TestHealthCheckOnIdleChannel(t *testing.T) {
	// A fresh channel is idle, which counts as healthy: connections are
	// established lazily on the first call.
	p := newTestProvider(t, nil)
	assert.NoError(t, p.HealthCheck(context.Background()))
}
