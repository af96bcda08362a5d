// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ansible/ansible-ai-connect-gateway/gateway/pipeline/sdk"
	"github.com/ansible/ansible-ai-connect-gateway/shared/logger"
)

// AMSError marks a failed account-management call. The service layer maps it
// to the documented safe defaults instead of failing the user request.
type AMSError struct {
	Op  string
	Err error
}

func (e *AMSError) Error() string {
	return fmt.Sprintf("ams %s failed: %v", e.Op, e.Err)
}

func (e *AMSError) Unwrap() error {
	return e.Err
}

const (
	organizationsPath = "/api/accounts_mgmt/v1/organizations"
	roleBindingsPath  = "/api/accounts_mgmt/v1/role_bindings"

	adminRoleID       = "OrganizationAdmin"
	wisdomQuotaPrefix = "seat|ansible.wisdom%"
)

// AMSClient queries the Red Hat account-management service. It keeps its own
// service-account token, refreshed on the same margin as the model tokens.
type AMSClient struct {
	baseURL      string
	ssoTokenURL  string
	clientID     string
	clientSecret string
	retryCount   int
	session      sdk.HTTPClient
	log          *logger.Logger

	mu    sync.Mutex
	token string
	// token is invalid once now passes expiresAt minus the freshness margin
	expiresAt time.Time
	now       func() time.Time
}

// AMSOptions configures the AMS client.
type AMSOptions struct {
	BaseURL      string
	SSOTokenURL  string
	ClientID     string
	ClientSecret string
	RetryCount   int
	VerifySSL    bool
	CACertFile   string
	Logger       *logger.Logger
}

// NewAMSClient builds the account-management client.
func NewAMSClient(opts AMSOptions) (*AMSClient, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("ams base url is required")
	}
	if opts.SSOTokenURL == "" {
		return nil, fmt.Errorf("sso token url is required")
	}
	session, err := sdk.NewSession(opts.VerifySSL, opts.CACertFile)
	if err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = logger.New("ams-client")
	}
	return &AMSClient{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		ssoTokenURL:  opts.SSOTokenURL,
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
		retryCount:   opts.RetryCount,
		session:      session,
		log:          log,
		now:          time.Now,
	}, nil
}

const tokenFreshnessMargin = 3 * time.Second

func (c *AMSClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.expiresAt.Sub(c.now()) > tokenFreshnessMargin {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("scope", "api.iam.access")

	config := sdk.DefaultRetryConfig(c.retryCount)
	config.RetryIf = sdk.DefaultRetryable

	start := c.now()
	token, err := sdk.RetryWithBackoff(ctx, config, func(ctx context.Context) (*tokenResult, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ssoTokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.session.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() {
			_ = resp.Body.Close()
		}()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &sdk.APIError{StatusCode: resp.StatusCode, Body: string(data)}
		}
		var parsed tokenResult
		if err := json.Unmarshal(data, &parsed); err != nil {
			return nil, err
		}
		return &parsed, nil
	})
	if err != nil {
		return "", &AMSError{Op: "token refresh", Err: err}
	}

	c.token = token.AccessToken
	c.expiresAt = start.Add(time.Duration(token.ExpiresIn) * time.Second)
	return c.token, nil
}

type tokenResult struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// get runs an authenticated GET and decodes the JSON body into out.
func (c *AMSClient) get(ctx context.Context, op, path string, query url.Values, out interface{}) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	config := sdk.DefaultRetryConfig(c.retryCount)
	config.RetryIf = sdk.DefaultRetryable

	data, err := sdk.RetryWithBackoff(ctx, config, func(ctx context.Context) ([]byte, error) {
		target := c.baseURL + path
		if len(query) > 0 {
			target += "?" + query.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.session.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() {
			_ = resp.Body.Close()
		}()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &sdk.APIError{StatusCode: resp.StatusCode, Body: string(body)}
		}
		return body, nil
	})
	if err != nil {
		return &AMSError{Op: op, Err: err}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &AMSError{Op: op, Err: err}
	}
	return nil
}

type organizationList struct {
	Items []struct {
		ID string `json:"id"`
	} `json:"items"`
}

// LookupOrganization maps a Red Hat org id to the AMS internal org id.
// Zero matching items returns the "undefined" sentinel rather than an error.
func (c *AMSClient) LookupOrganization(ctx context.Context, rhOrgID string) (string, error) {
	query := url.Values{}
	query.Set("search", fmt.Sprintf("external_id='%s'", rhOrgID))

	var list organizationList
	if err := c.get(ctx, "organization lookup", organizationsPath, query, &list); err != nil {
		return "", err
	}
	switch len(list.Items) {
	case 0:
		return orgUndefined, nil
	case 1:
		return list.Items[0].ID, nil
	default:
		return "", &AMSError{
			Op:  "organization lookup",
			Err: fmt.Errorf("expected one organization for external_id=%s, got %d", rhOrgID, len(list.Items)),
		}
	}
}

type roleBindingList struct {
	Items []struct {
		Role struct {
			ID string `json:"id"`
		} `json:"role"`
	} `json:"items"`
}

// IsOrgAdmin reports whether the user holds the OrganizationAdmin role
// binding in the AMS organization.
func (c *AMSClient) IsOrgAdmin(ctx context.Context, username, amsOrgID string) (bool, error) {
	query := url.Values{}
	query.Set("search", fmt.Sprintf("account.username = '%s' AND organization.id='%s'", username, amsOrgID))

	var list roleBindingList
	if err := c.get(ctx, "role binding lookup", roleBindingsPath, query, &list); err != nil {
		return false, err
	}
	for _, item := range list.Items {
		if item.Role.ID == adminRoleID {
			return true, nil
		}
	}
	return false, nil
}

type quotaCostList struct {
	Items []struct {
		Total int `json:"total"`
	} `json:"items"`
}

// HasWisdomSubscription reports whether the AMS organization has seats on
// any ansible.wisdom quota.
func (c *AMSClient) HasWisdomSubscription(ctx context.Context, amsOrgID string) (bool, error) {
	query := url.Values{}
	query.Set("search", fmt.Sprintf("quota_id LIKE '%s'", wisdomQuotaPrefix))

	path := fmt.Sprintf("%s/%s/quota_cost", organizationsPath, amsOrgID)
	var list quotaCostList
	if err := c.get(ctx, "quota cost lookup", path, query, &list); err != nil {
		return false, err
	}
	for _, item := range list.Items {
		if item.Total > 0 {
			return true, nil
		}
	}
	return false, nil
}
