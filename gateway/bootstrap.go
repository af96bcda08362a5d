// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"github.com/ansible/ansible-ai-connect-gateway/gateway/dummybackend"
	"github.com/ansible/ansible-ai-connect-gateway/gateway/generic"
	"github.com/ansible/ansible-ai-connect-gateway/gateway/grpcmodel"
	"github.com/ansible/ansible-ai-connect-gateway/gateway/llamacpp"
	"github.com/ansible/ansible-ai-connect-gateway/gateway/ollama"
	"github.com/ansible/ansible-ai-connect-gateway/gateway/pipeline"
	"github.com/ansible/ansible-ai-connect-gateway/gateway/secrets"
	"github.com/ansible/ansible-ai-connect-gateway/gateway/wca"
	"github.com/ansible/ansible-ai-connect-gateway/shared/logger"
)

// Builders maps every recognized provider tag to its constructor. resolver
// may be nil; wca pipelines then run without the org secret store (process
// defaults only).
func Builders(resolver secrets.Resolver, log *logger.Logger) map[pipeline.ProviderTag]pipeline.Builder {
	return map[pipeline.ProviderTag]pipeline.Builder{
		pipeline.ProviderWCA: func(role pipeline.Role, entry pipeline.Entry) (pipeline.Client, error) {
			return wca.NewSaaS(role, entry, resolver, log)
		},
		pipeline.ProviderWCAOnPrem: func(role pipeline.Role, entry pipeline.Entry) (pipeline.Client, error) {
			return wca.NewOnPrem(role, entry, log)
		},
		pipeline.ProviderWCADummy: func(role pipeline.Role, entry pipeline.Entry) (pipeline.Client, error) {
			return wca.NewDummy(role, entry), nil
		},
		pipeline.ProviderHTTP: func(role pipeline.Role, entry pipeline.Entry) (pipeline.Client, error) {
			return generic.New(role, entry, log)
		},
		pipeline.ProviderGRPC: func(role pipeline.Role, entry pipeline.Entry) (pipeline.Client, error) {
			return grpcmodel.New(role, entry, log)
		},
		pipeline.ProviderLlamaCPP: func(role pipeline.Role, entry pipeline.Entry) (pipeline.Client, error) {
			return llamacpp.New(role, entry, log)
		},
		pipeline.ProviderOllama: func(role pipeline.Role, entry pipeline.Entry) (pipeline.Client, error) {
			return ollama.New(role, entry, log)
		},
		pipeline.ProviderDummy: func(role pipeline.Role, entry pipeline.Entry) (pipeline.Client, error) {
			return dummybackend.New(role, entry), nil
		},
	}
}
