// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package grpcmodel implements the provider client for the gRPC inference
// service (model-mesh WisdomExtService).
package grpcmodel

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/ansible/ansible-ai-connect-gateway/gateway/format"
	"github.com/ansible/ansible-ai-connect-gateway/gateway/pipeline"
	"github.com/ansible/ansible-ai-connect-gateway/gateway/pipeline/sdk"
	"github.com/ansible/ansible-ai-connect-gateway/shared/logger"
)

const (
	predictMethod = "/WisdomExtService/AnsiblePredict"
	modelIDHeader = "mm-vmodel-id"
)

// Provider calls WisdomExtService.AnsiblePredict over gRPC. The model id is
// carried as the mm-vmodel-id metadata entry; deadlines map to
// ModelTimeoutError like every other provider.
type Provider struct {
	role pipeline.Role
	cfg  *pipeline.Config
	conn *grpc.ClientConn
	log  *logger.Logger
}

// New builds the gRPC client for one pipeline role.
func New(role pipeline.Role, entry pipeline.Entry, log *logger.Logger) (*Provider, error) {
	cfg := entry.Config
	if cfg.InferenceURL == "" {
		return nil, fmt.Errorf("inference_url is required")
	}
	if log == nil {
		log = logger.New("grpc-provider")
	}

	target := strings.TrimPrefix(strings.TrimPrefix(cfg.InferenceURL, "grpc://"), "dns:///")

	var creds credentials.TransportCredentials
	if cfg.VerifySSL {
		tlsConfig, err := sdk.NewTLSConfig(true, cfg.CACertFile)
		if err != nil {
			return nil, err
		}
		creds = credentials.NewTLS(tlsConfig)
	} else {
		creds = insecure.NewCredentials()
	}

	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC channel to %s: %w", target, err)
	}
	return &Provider{role: role, cfg: &cfg, conn: conn, log: log}, nil
}

// Provider implements pipeline.Client.
func (p *Provider) Provider() pipeline.ProviderTag {
	return pipeline.ProviderGRPC
}

// PipelineConfig implements pipeline.Client.
func (p *Provider) PipelineConfig() *pipeline.Config {
	return p.cfg
}

// Infer implements pipeline.CompletionsClient.
func (p *Provider) Infer(ctx context.Context, req *pipeline.InferenceRequest) (*pipeline.InferenceResponse, error) {
	modelID := req.ModelIDOverride
	if modelID == "" {
		modelID = p.cfg.ModelID
	}
	if modelID == "" {
		return nil, pipeline.NewError(pipeline.KindModelIDNotFound, "", "no model id configured", nil)
	}

	taskCount := req.TaskCount
	if taskCount < 1 {
		taskCount = format.TaskCount(req.Prompt)
	}
	if timeout := p.cfg.Timeout(taskCount); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ctx = metadata.AppendToOutgoingContext(ctx, modelIDHeader, modelID)

	in := encodeAnsibleRequest(req.Prompt, req.Context)
	var out []byte
	err := p.conn.Invoke(ctx, predictMethod, &in, &out, grpc.ForceCodec(rawCodec{}))
	if err != nil {
		st, _ := status.FromError(err)
		if st.Code() == codes.DeadlineExceeded {
			return nil, pipeline.NewError(pipeline.KindModelTimeout, modelID, "backend call timed out", err)
		}
		return nil, pipeline.NewError(pipeline.KindInferenceFailure, modelID, st.Message(), err)
	}

	text, err := decodeAnsibleResponse(out)
	if err != nil {
		return nil, pipeline.NewError(pipeline.KindInferenceFailure, modelID, "malformed inference response", err)
	}
	return &pipeline.InferenceResponse{
		Predictions: []string{text},
		ModelID:     modelID,
	}, nil
}

// HealthCheck implements pipeline.Client by inspecting channel state.
func (p *Provider) HealthCheck(ctx context.Context) error {
	state := p.conn.GetState()
	if state == connectivity.Shutdown || state == connectivity.TransientFailure {
		return fmt.Errorf("gRPC channel is %s", state)
	}
	return nil
}

// Close releases the channel. Called at shutdown.
func (p *Provider) Close() error {
	return p.conn.Close()
}

var _ pipeline.CompletionsClient = (*Provider)(nil)
