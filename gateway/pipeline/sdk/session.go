// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

package sdk

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"time"
)

// HTTPClient is the transport contract provider clients depend on. It lets
// tests substitute the session with a mock.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Environment variables consulted for a CA bundle, highest priority first.
// The configured per-pipeline ca_cert_file slots in third; the legacy
// variable is kept for older deployments.
const (
	envCombinedCABundle = "COMBINED_CA_BUNDLE_PATH"
	envRequestsCABundle = "REQUESTS_CA_BUNDLE"
	envLegacyCABundle   = "ANSIBLE_AI_MODEL_MESH_CA_PATH"
)

// CABundlePath returns the first existing CA bundle path from the
// prioritized list, or empty when none exists (system roots apply).
// It only reads the environment; it never mutates it.
func CABundlePath(configuredPath string) string {
	candidates := []string{
		os.Getenv(envCombinedCABundle),
		os.Getenv(envRequestsCABundle),
		configuredPath,
		os.Getenv(envLegacyCABundle),
	}
	for _, path := range candidates {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// NewTLSConfig builds a TLS configuration for backend sessions.
// verify=false disables certificate verification entirely.
func NewTLSConfig(verify bool, configuredCAPath string) (*tls.Config, error) {
	if !verify {
		return &tls.Config{InsecureSkipVerify: true}, nil //nolint:gosec // verify_ssl=false is an explicit operator choice
	}

	bundle := CABundlePath(configuredCAPath)
	if bundle == "" {
		return &tls.Config{}, nil
	}

	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}
	pem, err := os.ReadFile(bundle)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA bundle %s: %w", bundle, err)
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in CA bundle %s", bundle)
	}
	return &tls.Config{RootCAs: pool}, nil
}

// NewSession builds a pooled HTTP client for a provider. Deadlines are
// applied per request via context, so the client itself has no timeout.
func NewSession(verify bool, configuredCAPath string) (*http.Client, error) {
	tlsConfig, err := NewTLSConfig(verify, configuredCAPath)
	if err != nil {
		return nil, err
	}
	transport := &http.Transport{
		TLSClientConfig:     tlsConfig,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	return &http.Client{Transport: transport}, nil
}
