// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package authz answers organization-level authorization questions against
// the Red Hat account-management service, with TTL caching and safe defaults
// when the upstream is unavailable.
package authz

import (
	"context"
	"errors"
	"time"

	"github.com/ansible/ansible-ai-connect-gateway/shared/logger"
)

// orgUndefined is cached for Red Hat org ids that AMS does not know.
const orgUndefined = "undefined"

const (
	defaultOrgMappingTTL   = 24 * time.Hour
	defaultSubscriptionTTL = 15 * time.Minute
)

// accountService is the slice of AMSClient the service depends on.
type accountService interface {
	LookupOrganization(ctx context.Context, rhOrgID string) (string, error)
	IsOrgAdmin(ctx context.Context, username, amsOrgID string) (bool, error)
	HasWisdomSubscription(ctx context.Context, amsOrgID string) (bool, error)
}

// Service answers is_org_admin and org_has_subscription. Billing checks fail
// open on upstream errors so an AMS outage does not lock out paying
// customers; admin checks fail closed.
type Service struct {
	ams             accountService
	cache           Cache
	orgMappingTTL   time.Duration
	subscriptionTTL time.Duration
	log             *logger.Logger
}

// ServiceOptions configures the authorization service.
type ServiceOptions struct {
	Cache           Cache
	OrgMappingTTL   time.Duration
	SubscriptionTTL time.Duration
	Logger          *logger.Logger
}

// NewService wires the AMS client behind the caches.
func NewService(ams accountService, opts ServiceOptions) *Service {
	cache := opts.Cache
	if cache == nil {
		cache = NewMemoryCache()
	}
	orgTTL := opts.OrgMappingTTL
	if orgTTL <= 0 {
		orgTTL = defaultOrgMappingTTL
	}
	subTTL := opts.SubscriptionTTL
	if subTTL <= 0 {
		subTTL = defaultSubscriptionTTL
	}
	log := opts.Logger
	if log == nil {
		log = logger.New("authz")
	}
	return &Service{
		ams:             ams,
		cache:           cache,
		orgMappingTTL:   orgTTL,
		subscriptionTTL: subTTL,
		log:             log,
	}
}

// amsOrgID resolves the AMS org id through the 24h cache. The "undefined"
// sentinel is cached like a real id so unknown orgs do not hammer AMS.
func (s *Service) amsOrgID(ctx context.Context, rhOrgID string) (string, error) {
	key := "org:" + rhOrgID
	if cached, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		return cached, nil
	}

	amsOrgID, err := s.ams.LookupOrganization(ctx, rhOrgID)
	if err != nil {
		return "", err
	}
	if err := s.cache.Set(ctx, key, amsOrgID, s.orgMappingTTL); err != nil {
		s.log.Warn("", "failed to cache org mapping", map[string]interface{}{"error": err.Error()})
	}
	return amsOrgID, nil
}

// IsOrgAdmin reports whether the user administers the org. Admin lookups are
// not cached; any upstream failure yields false.
func (s *Service) IsOrgAdmin(ctx context.Context, username, rhOrgID string) bool {
	amsOrgID, err := s.amsOrgID(ctx, rhOrgID)
	if err != nil {
		s.logAMSFailure("is_org_admin", err)
		return false
	}
	if amsOrgID == orgUndefined {
		return false
	}

	admin, err := s.ams.IsOrgAdmin(ctx, username, amsOrgID)
	if err != nil {
		s.logAMSFailure("is_org_admin", err)
		return false
	}
	return admin
}

// OrgHasSubscription reports whether the org holds an active seat
// entitlement. Answers are cached per org for 15 minutes; upstream failures
// yield true.
func (s *Service) OrgHasSubscription(ctx context.Context, rhOrgID string) bool {
	key := "sub:" + rhOrgID
	if cached, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		return cached == "true"
	}

	amsOrgID, err := s.amsOrgID(ctx, rhOrgID)
	if err != nil {
		s.logAMSFailure("org_has_subscription", err)
		return true
	}
	if amsOrgID == orgUndefined {
		return false
	}

	subscribed, err := s.ams.HasWisdomSubscription(ctx, amsOrgID)
	if err != nil {
		s.logAMSFailure("org_has_subscription", err)
		return true
	}

	value := "false"
	if subscribed {
		value = "true"
	}
	if err := s.cache.Set(ctx, key, value, s.subscriptionTTL); err != nil {
		s.log.Warn("", "failed to cache subscription answer", map[string]interface{}{"error": err.Error()})
	}
	return subscribed
}

// InvalidateOrg drops the cached answers for one org. Called after admin
// operations that change entitlements.
func (s *Service) InvalidateOrg(ctx context.Context, rhOrgID string) {
	_ = s.cache.Delete(ctx, "org:"+rhOrgID)
	_ = s.cache.Delete(ctx, "sub:"+rhOrgID)
}

func (s *Service) logAMSFailure(op string, err error) {
	fields := map[string]interface{}{"error": err.Error()}
	var amsErr *AMSError
	if errors.As(err, &amsErr) {
		fields["ams_op"] = amsErr.Op
	}
	s.log.Error("", op+" falling back to default", fields)
}
