// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

package authz

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newAMSFixture wires an AMSClient against a stub SSO endpoint and the given
// account-management handler.
func newAMSFixture(t *testing.T, handler http.HandlerFunc) (*AMSClient, *int32) {
	t.Helper()
	var tokenCalls int32
	sso := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		fmt.Fprint(w, `{"access_token": "sa-token", "expires_in": 900}`)
	}))
	t.Cleanup(sso.Close)

	ams := httptest.NewServer(handler)
	t.Cleanup(ams.Close)

	client, err := NewAMSClient(AMSOptions{
		BaseURL:      ams.URL,
		SSOTokenURL:  sso.URL,
		ClientID:     "svc",
		ClientSecret: "svc-secret",
	})
	require.NoError(t, err)
	return client, &tokenCalls
}

func TestLookupOrganization(t *testing.T) {
	var gotSearch, gotAuth string
	client, _ := newAMSFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, organizationsPath, r.URL.Path)
		gotSearch = r.URL.Query().Get("search")
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"items": [{"id": "ams-42"}]}`)
	})

	id, err := client.LookupOrganization(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, "ams-42", id)
	assert.Equal(t, "external_id='123'", gotSearch)
	assert.Equal(t, "Bearer sa-token", gotAuth)
}

func TestLookupOrganizationUnknownOrgIsSentinel(t *testing.T) {
	client, _ := newAMSFixture(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items": []}`)
	})

	id, err := client.LookupOrganization(context.Background(), "999")
	require.NoError(t, err)
	assert.Equal(t, orgUndefined, id)
}

func TestLookupOrganizationRejectsAmbiguousMatches(t *testing.T) {
	client, _ := newAMSFixture(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items": [{"id": "a"}, {"id": "b"}]}`)
	})

	_, err := client.LookupOrganization(context.Background(), "123")
	var amsErr *AMSError
	require.ErrorAs(t, err, &amsErr)
	assert.Equal(t, "organization lookup", amsErr.Op)
}

func TestLookupOrganizationWrapsUpstreamFailures(t *testing.T) {
	client, _ := newAMSFixture(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})

	_, err := client.LookupOrganization(context.Background(), "123")
	var amsErr *AMSError
	assert.ErrorAs(t, err, &amsErr)
}

func TestIsOrgAdmin(t *testing.T) {
	var gotSearch string
	client, _ := newAMSFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, roleBindingsPath, r.URL.Path)
		gotSearch = r.URL.Query().Get("search")
		fmt.Fprint(w, `{"items": [{"role": {"id": "OrganizationAdmin"}}]}`)
	})

	admin, err := client.IsOrgAdmin(context.Background(), "jdoe", "ams-42")
	require.NoError(t, err)
	assert.True(t, admin)
	assert.Equal(t, "account.username = 'jdoe' AND organization.id='ams-42'", gotSearch)
}

func TestIsOrgAdminIgnoresOtherRoles(t *testing.T) {
	client, _ := newAMSFixture(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items": [{"role": {"id": "OrganizationMember"}}]}`)
	})

	admin, err := client.IsOrgAdmin(context.Background(), "jdoe", "ams-42")
	require.NoError(t, err)
	assert.False(t, admin)
}

func TestHasWisdomSubscription(t *testing.T) {
	var gotPath, gotSearch string
	client, _ := newAMSFixture(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotSearch = r.URL.Query().Get("search")
		fmt.Fprint(w, `{"items": [{"total": 0}, {"total": 5}]}`)
	})

	subscribed, err := client.HasWisdomSubscription(context.Background(), "ams-42")
	require.NoError(t, err)
	assert.True(t, subscribed)
	assert.Equal(t, organizationsPath+"/ams-42/quota_cost", gotPath)
	assert.Equal(t, "quota_id LIKE 'seat|ansible.wisdom%'", gotSearch)
}

func TestHasWisdomSubscriptionZeroSeats(t *testing.T) {
	client, _ := newAMSFixture(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items": [{"total": 0}]}`)
	})

	subscribed, err := client.HasWisdomSubscription(context.Background(), "ams-42")
	require.NoError(t, err)
	assert.False(t, subscribed)
}

func TestServiceAccountTokenIsReused(t *testing.T) {
	client, tokenCalls := newAMSFixture(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items": [{"id": "ams-42"}]}`)
	})

	_, err := client.LookupOrganization(context.Background(), "123")
	require.NoError(t, err)
	_, err = client.LookupOrganization(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(tokenCalls))
}
