// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config is the immutable per-pipeline configuration, loaded once from the
// pipelines document at startup. Fields beyond the common set are only
// meaningful for the provider tags that declare them.
type Config struct {
	// Common fields.
	InferenceURL      string `json:"inference_url"`
	ModelID           string `json:"model_id,omitempty"`
	TimeoutMS         *int   `json:"timeout,omitempty"`
	VerifySSL         bool   `json:"verify_ssl"`
	EnableHealthCheck bool   `json:"enable_health_check"`
	CACertFile        string `json:"ca_cert_file,omitempty"`
	Stream            bool   `json:"stream,omitempty"`
	RetryCount        int    `json:"retry_count,omitempty"`

	// wca-saas and wca-onprem.
	APIKey string `json:"api_key,omitempty"`

	// wca-saas only.
	IDPURL                string `json:"idp_url,omitempty"`
	IDPLogin              string `json:"idp_login,omitempty"`
	IDPPassword           string `json:"idp_password,omitempty"`
	HealthCheckAPIKey     string `json:"health_check_api_key,omitempty"`
	HealthCheckModelID    string `json:"health_check_model_id,omitempty"`
	OneClickDefaultAPIKey string `json:"one_click_default_api_key,omitempty"`
	OneClickDefaultModel  string `json:"one_click_default_model_id,omitempty"`

	// wca-onprem only.
	Username string `json:"username,omitempty"`

	// dummy only.
	Body             string `json:"body,omitempty"`
	LatencyMaxMS     int    `json:"latency_max_msec,omitempty"`
	LatencyUseJitter bool   `json:"latency_use_jitter,omitempty"`
}

// Timeout returns the deadline for one backend attempt: the configured
// per-call timeout multiplied by the task count, or zero when no timeout is
// configured (meaning no deadline).
func (c *Config) Timeout(taskCount int) time.Duration {
	if c.TimeoutMS == nil {
		return 0
	}
	if taskCount < 1 {
		taskCount = 1
	}
	return time.Duration(*c.TimeoutMS*taskCount) * time.Millisecond
}

// Entry pairs a provider tag with its configuration for one pipeline role.
type Entry struct {
	Provider ProviderTag `json:"provider"`
	Config   Config      `json:"config"`
}

// Document is the parsed pipelines configuration: one entry per role.
type Document map[Role]Entry

// LoadDocument parses the pipelines configuration document. Roles absent
// from the document default to the dummy provider so that every role always
// resolves to exactly one client. Unknown top-level keys are a startup
// error; unknown provider tags are caught later by the registry.
func LoadDocument(data []byte) (Document, error) {
	var raw map[string]Entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse pipelines document: %w", err)
	}

	known := make(map[Role]bool, len(Roles()))
	for _, role := range Roles() {
		known[role] = true
	}

	doc := make(Document, len(Roles()))
	for key, entry := range raw {
		role := Role(key)
		if !known[role] {
			return nil, fmt.Errorf("unknown pipeline %q in pipelines document", key)
		}
		doc[role] = entry
	}

	for _, role := range Roles() {
		if _, ok := doc[role]; !ok {
			doc[role] = Entry{Provider: ProviderDummy}
		}
	}
	return doc, nil
}
