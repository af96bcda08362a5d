// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/ansible/ansible-ai-connect-gateway/shared/logger"
)

// Builder constructs a provider client from a pipeline entry. The registry
// selects the builder by the entry's provider tag.
type Builder func(role Role, entry Entry) (Client, error)

// Registry maps each pipeline role to the single provider client serving it.
// It is built once at startup and read-only afterwards.
type Registry struct {
	clients map[Role]Client
	log     *logger.Logger
}

// NewRegistry instantiates one client per role from the document. Unknown
// provider tags and clients that do not support their assigned role are
// startup errors.
func NewRegistry(doc Document, builders map[ProviderTag]Builder, log *logger.Logger) (*Registry, error) {
	if log == nil {
		log = logger.New("pipeline")
	}

	clients := make(map[Role]Client, len(Roles()))
	for _, role := range Roles() {
		entry, ok := doc[role]
		if !ok {
			return nil, fmt.Errorf("pipeline %s has no configuration", role)
		}
		builder, ok := builders[entry.Provider]
		if !ok {
			return nil, fmt.Errorf("pipeline %s: unknown provider %q", role, entry.Provider)
		}
		client, err := builder(role, entry)
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: %w", role, err)
		}
		if err := checkRoleSupport(role, client); err != nil {
			return nil, err
		}
		clients[role] = client
		log.Info("", "pipeline configured", map[string]interface{}{
			"pipeline": string(role),
			"provider": string(entry.Provider),
		})
	}
	return &Registry{clients: clients, log: log}, nil
}

func checkRoleSupport(role Role, client Client) error {
	var ok bool
	switch role {
	case RoleCompletions:
		_, ok = client.(CompletionsClient)
	case RoleContentMatch:
		_, ok = client.(ContentMatchClient)
	case RolePlaybookGeneration:
		_, ok = client.(PlaybookGenerationClient)
	case RolePlaybookExplanation:
		_, ok = client.(PlaybookExplanationClient)
	case RoleChatBot:
		_, ok = client.(ChatClient)
	case RoleStreamingChatBot:
		_, ok = client.(StreamingChatClient)
	}
	if !ok {
		return fmt.Errorf("pipeline %s: provider %q does not support this role", role, client.Provider())
	}
	return nil
}

// Get returns the client serving the role. Registry construction guarantees
// the client exists and supports the role.
func (r *Registry) Get(role Role) Client {
	return r.clients[role]
}

// Completions returns the client serving the Completions role.
func (r *Registry) Completions() CompletionsClient {
	return r.clients[RoleCompletions].(CompletionsClient)
}

// ContentMatch returns the client serving the ContentMatch role.
func (r *Registry) ContentMatch() ContentMatchClient {
	return r.clients[RoleContentMatch].(ContentMatchClient)
}

// PlaybookGeneration returns the client serving the PlaybookGeneration role.
func (r *Registry) PlaybookGeneration() PlaybookGenerationClient {
	return r.clients[RolePlaybookGeneration].(PlaybookGenerationClient)
}

// PlaybookExplanation returns the client serving the PlaybookExplanation role.
func (r *Registry) PlaybookExplanation() PlaybookExplanationClient {
	return r.clients[RolePlaybookExplanation].(PlaybookExplanationClient)
}

// ChatBot returns the client serving the ChatBot role.
func (r *Registry) ChatBot() ChatClient {
	return r.clients[RoleChatBot].(ChatClient)
}

// StreamingChatBot returns the client serving the StreamingChatBot role.
func (r *Registry) StreamingChatBot() StreamingChatClient {
	return r.clients[RoleStreamingChatBot].(StreamingChatClient)
}

// HealthCheckAll runs the health check of every client whose pipeline has
// health checking enabled, in parallel, and returns the per-role outcome.
func (r *Registry) HealthCheckAll(ctx context.Context) map[Role]error {
	results := make(map[Role]error, len(r.clients))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for role, client := range r.clients {
		if !client.PipelineConfig().EnableHealthCheck {
			continue
		}
		wg.Add(1)
		go func(role Role, client Client) {
			defer wg.Done()
			err := client.HealthCheck(ctx)
			mu.Lock()
			results[role] = err
			mu.Unlock()
		}(role, client)
	}
	wg.Wait()
	return results
}
