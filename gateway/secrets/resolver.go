// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package secrets implements the organisation-scoped secret resolver: a
// read-through TTL cache over AWS Secrets Manager holding WCA API keys and
// model ids under the flat keyspace "wca/<org_id>/<suffix>".
package secrets

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/ansible/ansible-ai-connect-gateway/gateway/pipeline"
	"github.com/ansible/ansible-ai-connect-gateway/shared/logger"
)

// Suffix selects which per-organisation secret is addressed.
type Suffix string

const (
	SuffixAPIKey  Suffix = "api_key"
	SuffixModelID Suffix = "model_id"
)

// Secret is a stored value and its creation instant. The value is returned
// exactly as stored, never mutated.
type Secret struct {
	Value     string
	CreatedAt time.Time
}

// Resolver is the read/write contract the rest of the gateway depends on.
type Resolver interface {
	// Get returns the stored secret, or nil when absent. Only I/O failures
	// other than "not found" produce an error.
	Get(ctx context.Context, orgID string, suffix Suffix) (*Secret, error)

	// Save creates or updates the secret and returns the stored name.
	Save(ctx context.Context, orgID string, suffix Suffix, value string) (string, error)

	// Delete removes the secret, detaching replica regions first.
	Delete(ctx context.Context, orgID string, suffix Suffix) error

	// Exists reports whether the secret is present.
	Exists(ctx context.Context, orgID string, suffix Suffix) (bool, error)
}

// api is the slice of the Secrets Manager client the resolver uses.
// Tests substitute it with a fake.
type api interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	CreateSecret(ctx context.Context, in *secretsmanager.CreateSecretInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	PutSecretValue(ctx context.Context, in *secretsmanager.PutSecretValueInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	DeleteSecret(ctx context.Context, in *secretsmanager.DeleteSecretInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.DeleteSecretOutput, error)
	RemoveRegionsFromReplication(ctx context.Context, in *secretsmanager.RemoveRegionsFromReplicationInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.RemoveRegionsFromReplicationOutput, error)
}

type cacheEntry struct {
	secret    *Secret
	expiresAt time.Time
}

// Manager resolves secrets against AWS Secrets Manager with an in-process
// TTL cache. Save and Delete invalidate the corresponding cache key.
type Manager struct {
	client         api
	replicaRegions []string
	ttl            time.Duration
	log            *logger.Logger

	mu    sync.RWMutex
	cache map[string]*cacheEntry
}

// Options configures a Manager.
type Options struct {
	Region         string
	ReplicaRegions []string
	CacheTTL       time.Duration
	Logger         *logger.Logger
}

// NewManager creates a Manager backed by the default AWS configuration.
func NewManager(ctx context.Context, opts Options) (*Manager, error) {
	cfgOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		cfgOpts = append(cfgOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newManager(secretsmanager.NewFromConfig(cfg), opts), nil
}

func newManager(client api, opts Options) *Manager {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	log := opts.Logger
	if log == nil {
		log = logger.New("secrets")
	}
	return &Manager{
		client:         client,
		replicaRegions: opts.ReplicaRegions,
		ttl:            ttl,
		log:            log,
		cache:          make(map[string]*cacheEntry),
	}
}

// SecretName returns the flat logical key for an org secret.
func SecretName(orgID string, suffix Suffix) string {
	return fmt.Sprintf("wca/%s/%s", orgID, suffix)
}

// Get implements Resolver.
func (m *Manager) Get(ctx context.Context, orgID string, suffix Suffix) (*Secret, error) {
	name := SecretName(orgID, suffix)

	m.mu.RLock()
	entry, ok := m.cache[name]
	m.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.secret, nil
	}

	out, err := m.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, pipeline.NewError(pipeline.KindSecretManager, "", "failed to read secret "+name, err)
	}

	secret := &Secret{CreatedAt: aws.ToTime(out.CreatedDate)}
	if out.SecretString != nil {
		secret.Value = *out.SecretString
	}

	m.mu.Lock()
	m.cache[name] = &cacheEntry{secret: secret, expiresAt: time.Now().Add(m.ttl)}
	m.mu.Unlock()

	return secret, nil
}

// Save implements Resolver. On create the configured replica regions are
// enrolled; on update the value is replaced in place.
func (m *Manager) Save(ctx context.Context, orgID string, suffix Suffix, value string) (string, error) {
	name := SecretName(orgID, suffix)
	defer m.invalidate(name)

	createIn := &secretsmanager.CreateSecretInput{
		Name:         aws.String(name),
		SecretString: aws.String(value),
	}
	for _, region := range m.replicaRegions {
		createIn.AddReplicaRegions = append(createIn.AddReplicaRegions, types.ReplicaRegionType{
			Region: aws.String(region),
		})
	}

	_, err := m.client.CreateSecret(ctx, createIn)
	if err == nil {
		m.log.Info("", "secret created", map[string]interface{}{"secret_name": name})
		return name, nil
	}

	var exists *types.ResourceExistsException
	if !errors.As(err, &exists) {
		return "", pipeline.NewError(pipeline.KindSecretManager, "", "failed to create secret "+name, err)
	}

	_, err = m.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(name),
		SecretString: aws.String(value),
	})
	if err != nil {
		return "", pipeline.NewError(pipeline.KindSecretManager, "", "failed to update secret "+name, err)
	}
	m.log.Info("", "secret updated", map[string]interface{}{"secret_name": name})
	return name, nil
}

// Delete implements Resolver. Replica-region detach failures for missing
// regions or missing secrets are absorbed and logged; only the final delete
// is fatal.
func (m *Manager) Delete(ctx context.Context, orgID string, suffix Suffix) error {
	name := SecretName(orgID, suffix)
	defer m.invalidate(name)

	if len(m.replicaRegions) > 0 {
		_, err := m.client.RemoveRegionsFromReplication(ctx, &secretsmanager.RemoveRegionsFromReplicationInput{
			SecretId:             aws.String(name),
			RemoveReplicaRegions: m.replicaRegions,
		})
		if err != nil {
			var invalidParam *types.InvalidParameterException
			var notFound *types.ResourceNotFoundException
			if !errors.As(err, &invalidParam) && !errors.As(err, &notFound) {
				return pipeline.NewError(pipeline.KindSecretManager, "", "failed to detach replica regions for "+name, err)
			}
			m.log.Warn("", "replica region detach skipped", map[string]interface{}{
				"secret_name": name,
				"error":       err.Error(),
			})
		}
	}

	_, err := m.client.DeleteSecret(ctx, &secretsmanager.DeleteSecretInput{
		SecretId:                   aws.String(name),
		ForceDeleteWithoutRecovery: aws.Bool(true),
	})
	if err != nil {
		return pipeline.NewError(pipeline.KindSecretManager, "", "failed to delete secret "+name, err)
	}
	m.log.Info("", "secret deleted", map[string]interface{}{"secret_name": name})
	return nil
}

// Exists implements Resolver.
func (m *Manager) Exists(ctx context.Context, orgID string, suffix Suffix) (bool, error) {
	secret, err := m.Get(ctx, orgID, suffix)
	if err != nil {
		return false, err
	}
	return secret != nil, nil
}

func (m *Manager) invalidate(name string) {
	m.mu.Lock()
	delete(m.cache, name)
	m.mu.Unlock()
}

var _ Resolver = (*Manager)(nil)
