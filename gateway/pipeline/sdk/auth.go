// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

package sdk

import (
	"encoding/base64"
	"net/http"
)

// AuthProvider adds authentication to outbound backend requests.
type AuthProvider interface {
	Apply(req *http.Request) error
}

// BearerTokenAuth sets "Authorization: Bearer <token>".
type BearerTokenAuth struct {
	token string
}

// NewBearerTokenAuth creates a bearer token authenticator.
func NewBearerTokenAuth(token string) *BearerTokenAuth {
	return &BearerTokenAuth{token: token}
}

// Apply adds the bearer token to the request.
func (a *BearerTokenAuth) Apply(req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+a.token)
	return nil
}

// ZenAPIKeyAuth is the on-prem WCA scheme:
// "Authorization: ZenApiKey base64(username:api_key)".
type ZenAPIKeyAuth struct {
	username string
	apiKey   string
}

// NewZenAPIKeyAuth creates a ZenApiKey authenticator.
func NewZenAPIKeyAuth(username, apiKey string) *ZenAPIKeyAuth {
	return &ZenAPIKeyAuth{username: username, apiKey: apiKey}
}

// Apply adds the ZenApiKey header to the request.
func (a *ZenAPIKeyAuth) Apply(req *http.Request) error {
	token := base64.StdEncoding.EncodeToString([]byte(a.username + ":" + a.apiKey))
	req.Header.Set("Authorization", "ZenApiKey "+token)
	return nil
}

// NoAuth is a no-op for unauthenticated backends.
type NoAuth struct{}

// NewNoAuth creates a no-op authenticator.
func NewNoAuth() *NoAuth {
	return &NoAuth{}
}

// Apply does nothing.
func (a *NoAuth) Apply(req *http.Request) error {
	return nil
}

// Ensure implementations satisfy the interface.
var (
	_ AuthProvider = (*BearerTokenAuth)(nil)
	_ AuthProvider = (*ZenAPIKeyAuth)(nil)
	_ AuthProvider = (*NoAuth)(nil)
)
