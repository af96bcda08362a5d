// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

package wca

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ansible/ansible-ai-connect-gateway/gateway/pipeline"
	"github.com/ansible/ansible-ai-connect-gateway/gateway/pipeline/sdk"
	"github.com/ansible/ansible-ai-connect-gateway/shared/logger"
)

// tokenFreshnessMargin is the mandatory safety margin: a token within this
// much of expiry is treated as expired and refreshed.
const tokenFreshnessMargin = 3 * time.Second

// Token is one access token and its absolute expiry instant.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// fresh reports whether the token can still be handed out.
func (t *Token) fresh(now time.Time) bool {
	return t != nil && t.ExpiresAt.Sub(now) > tokenFreshnessMargin
}

// TokenCache holds one access token per API key against the identity
// provider, refreshing on demand with retry and backoff. Refreshes are
// single-flight per key; distinct keys never block each other. A racy
// double refresh across processes is tolerable; the result converges.
type TokenCache struct {
	idpURL       string
	clientID     string
	clientSecret string
	session      sdk.HTTPClient
	retryCount   int
	log          *logger.Logger
	now          func() time.Time

	mu      sync.Mutex // guards the entries map only
	entries map[string]*tokenEntry
}

// tokenEntry serializes refreshes for one API key.
type tokenEntry struct {
	mu    sync.Mutex
	token *Token
}

// NewTokenCache creates a token cache for the given identity provider.
// When the IdP basic-auth pair is not configured, the per-org API key is
// used as the client secret.
func NewTokenCache(idpURL, clientID, clientSecret string, retryCount int, session sdk.HTTPClient, log *logger.Logger) *TokenCache {
	if log == nil {
		log = logger.New("wca-token")
	}
	return &TokenCache{
		idpURL:       strings.TrimRight(idpURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		session:      session,
		retryCount:   retryCount,
		log:          log,
		now:          time.Now,
		entries:      make(map[string]*tokenEntry),
	}
}

// entry returns the per-key entry, creating it on first use.
func (c *TokenCache) entry(apiKey string) *tokenEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[apiKey]
	if e == nil {
		e = &tokenEntry{}
		c.entries[apiKey] = e
	}
	return e
}

// Get returns a fresh token for the API key, refreshing it when the
// remaining lifetime is inside the safety margin. A nil token with a nil
// error means the identity provider was unreachable; callers convert that
// to a token failure.
func (c *TokenCache) Get(ctx context.Context, apiKey string) (*Token, error) {
	e := c.entry(apiKey)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.token.fresh(c.now()) {
		return e.token, nil
	}

	token, err := c.refresh(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, nil
	}
	e.token = token
	return token, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// refresh performs the client-credentials exchange. Network errors exhaust
// the retry budget and come back as a nil token; HTTP errors are fatal as
// soon as the status is non-retryable.
func (c *TokenCache) refresh(ctx context.Context, apiKey string) (*Token, error) {
	secret := c.clientSecret
	if secret == "" {
		secret = apiKey
	}
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.clientID},
		"client_secret": {secret},
		"scope":         {"api.iam.access"},
	}

	config := sdk.DefaultRetryConfig(c.retryCount)
	token, err := sdk.RetryWithBackoff(ctx, config, func(ctx context.Context) (*Token, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.idpURL+"/token", strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		start := c.now()
		resp, err := c.session.Do(req)
		if err != nil {
			return nil, fmt.Errorf("token request failed: %w", err)
		}
		defer func() {
			_ = resp.Body.Close()
		}()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("token response read failed: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &sdk.APIError{StatusCode: resp.StatusCode, Body: string(body)}
		}

		var parsed tokenResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, &sdk.APIError{StatusCode: resp.StatusCode, Body: "malformed token response"}
		}
		return &Token{
			AccessToken: parsed.AccessToken,
			ExpiresAt:   start.Add(time.Duration(parsed.ExpiresIn) * time.Second),
		}, nil
	})
	if err == nil {
		return token, nil
	}

	var apiErr *sdk.APIError
	if errors.As(err, &apiErr) {
		return nil, pipeline.NewError(pipeline.KindTokenFailure, "", "identity provider rejected the token request", err)
	}

	// Connection or timeout: log and return nil, never a raw transport error.
	c.log.Warn("", "identity provider unreachable", map[string]interface{}{
		"idp_url": c.idpURL,
		"error":   err.Error(),
	})
	return nil, nil
}
