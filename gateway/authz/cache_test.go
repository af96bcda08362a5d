// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

package authz

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "org:1", "ams-1", time.Hour))
	value, ok, err := c.Get(ctx, "org:1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ams-1", value)

	require.NoError(t, c.Delete(ctx, "org:1"))
	_, ok, err = c.Get(ctx, "org:1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "sub:1", "true", time.Minute))

	_, ok, err := c.Get(ctx, "sub:1")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, err = c.Get(ctx, "sub:1")
	require.NoError(t, err)
	assert.False(t, ok, "entries past their TTL are gone")
}

func TestRedisCacheRoundTrip(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	c := NewRedisCache(client, "")
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "org:1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "org:1", "ams-1", time.Hour))
	value, ok, err := c.Get(ctx, "org:1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ams-1", value)

	// The default prefix namespaces the raw key.
	assert.True(t, server.Exists("authz:org:1"))

	require.NoError(t, c.Delete(ctx, "org:1"))
	_, ok, err = c.Get(ctx, "org:1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCacheHonorsTTL(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	c := NewRedisCache(client, "test")
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "sub:1", "true", time.Minute))
	server.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, "sub:1")
	require.NoError(t, err)
	assert.False(t, ok)
}
