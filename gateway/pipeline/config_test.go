// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDocumentDefaultsMissingRolesToDummy(t *testing.T) {
	doc, err := LoadDocument([]byte(`{
		"ModelPipelineCompletions": {
			"provider": "wca",
			"config": {"inference_url": "https://wca.example.com", "retry_count": 4}
		}
	}`))
	require.NoError(t, err)

	assert.Equal(t, ProviderWCA, doc[RoleCompletions].Provider)
	assert.Equal(t, 4, doc[RoleCompletions].Config.RetryCount)
	for _, role := range []Role{RoleContentMatch, RolePlaybookGeneration, RolePlaybookExplanation, RoleChatBot, RoleStreamingChatBot} {
		assert.Equal(t, ProviderDummy, doc[role].Provider, "role %s should default to dummy", role)
	}
}

func TestLoadDocumentRejectsUnknownPipelines(t *testing.T) {
	_, err := LoadDocument([]byte(`{"ModelPipelineTypo": {"provider": "dummy"}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ModelPipelineTypo")
}

func TestLoadDocumentRejectsMalformedJSON(t *testing.T) {
	_, err := LoadDocument([]byte(`{`))
	assert.Error(t, err)
}

func TestTimeoutScalesWithTaskCount(t *testing.T) {
	timeout := 1000
	cfg := Config{TimeoutMS: &timeout}

	assert.Equal(t, 1*time.Second, cfg.Timeout(1))
	assert.Equal(t, 3*time.Second, cfg.Timeout(3))
	// A degenerate task count still yields one full timeout.
	assert.Equal(t, 1*time.Second, cfg.Timeout(0))
}

func TestTimeoutUnsetMeansNoDeadline(t *testing.T) {
	cfg := Config{}
	assert.Equal(t, time.Duration(0), cfg.Timeout(5))
}
