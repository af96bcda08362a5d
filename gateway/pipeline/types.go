// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
)

// Role is one of the six logical endpoints the gateway exposes. The string
// values match the keys of the pipelines configuration document.
type Role string

const (
	RoleCompletions         Role = "ModelPipelineCompletions"
	RoleContentMatch        Role = "ModelPipelineContentMatch"
	RolePlaybookGeneration  Role = "ModelPipelinePlaybookGeneration"
	RolePlaybookExplanation Role = "ModelPipelinePlaybookExplanation"
	RoleChatBot             Role = "ModelPipelineChatBot"
	RoleStreamingChatBot    Role = "ModelPipelineStreamingChatBot"
)

// Roles returns all pipeline roles in declaration order.
func Roles() []Role {
	return []Role{
		RoleCompletions,
		RoleContentMatch,
		RolePlaybookGeneration,
		RolePlaybookExplanation,
		RoleChatBot,
		RoleStreamingChatBot,
	}
}

// ProviderTag selects a concrete backend implementation at startup.
type ProviderTag string

const (
	ProviderWCA       ProviderTag = "wca"
	ProviderWCAOnPrem ProviderTag = "wca-onprem"
	ProviderWCADummy  ProviderTag = "wca-dummy"
	ProviderHTTP      ProviderTag = "http"
	ProviderGRPC      ProviderTag = "grpc"
	ProviderLlamaCPP  ProviderTag = "llamacpp"
	ProviderOllama    ProviderTag = "ollama"
	ProviderDummy     ProviderTag = "dummy"
)

// InferenceRequest is a single completion request. It is never persisted.
type InferenceRequest struct {
	Prompt          string
	Context         string
	UserID          string
	OrgID           string // empty for community users
	SuggestionID    string // UUID propagated as X-Request-ID; may be empty
	ModelIDOverride string
	TaskCount       int // derived from the prompt; >= 1
}

// InferenceResponse carries the ordered predictions and the model id the
// backend actually used.
type InferenceResponse struct {
	Predictions []string `json:"predictions"`
	ModelID     string   `json:"model_id"`
}

// CodeMatchRequest asks for attribution matches for a set of suggestions.
type CodeMatchRequest struct {
	Suggestions     []string
	OrgID           string
	ModelIDOverride string
}

// ContentMatch is one attribution result.
type ContentMatch struct {
	Repo       string  `json:"repo_name"`
	RepoURL    string  `json:"repo_url"`
	Path       string  `json:"path"`
	License    string  `json:"license"`
	DataSource string  `json:"data_source_description"`
	Score      float64 `json:"score"`
}

// CodeMatchResponse is the attribution answer for one suggestion set.
type CodeMatchResponse struct {
	ModelID        string         `json:"model_id"`
	ContentMatches []ContentMatch `json:"contentmatches"`
}

// PlaybookGenerationRequest asks the backend to write a playbook.
type PlaybookGenerationRequest struct {
	Text            string
	CreateOutline   bool
	Outline         string
	OrgID           string
	ModelIDOverride string
}

// PlaybookGenerationResponse is the generated playbook plus outline and any
// post-processing warnings.
type PlaybookGenerationResponse struct {
	Playbook string   `json:"playbook"`
	Outline  string   `json:"outline"`
	Warnings []string `json:"warnings,omitempty"`
	ModelID  string   `json:"model_id"`
}

// PlaybookExplanationRequest asks the backend to explain playbook content.
type PlaybookExplanationRequest struct {
	Content         string
	OrgID           string
	ModelIDOverride string
}

// ChatRequest is a chat-bot query.
type ChatRequest struct {
	Query           string
	ConversationID  string
	SystemPrompt    string
	ModelIDOverride string
}

// ChatReference points at a document the answer was grounded on.
type ChatReference struct {
	Title  string `json:"title"`
	DocURL string `json:"docs_url"`
}

// ChatResponse is the chat-bot answer.
type ChatResponse struct {
	Content        string          `json:"response"`
	ConversationID string          `json:"conversation_id"`
	ModelID        string          `json:"model_id"`
	References     []ChatReference `json:"referenced_documents,omitempty"`
	Truncated      bool            `json:"truncated"`
}

// StreamChunk is one chunk of a streaming chat response.
type StreamChunk struct {
	Event string
	Data  []byte
}

// StreamHandler is called for each chunk of a streaming response. Returning
// an error cancels the stream.
type StreamHandler func(chunk StreamChunk) error

// Client is the base contract every provider client implements.
// Implementations must be safe for concurrent use.
type Client interface {
	// Provider returns the tag this client was built from.
	Provider() ProviderTag

	// PipelineConfig returns the immutable configuration for this pipeline.
	PipelineConfig() *Config

	// HealthCheck verifies the backend is operational. It should complete
	// within a reasonable timeout and must not mutate backend state.
	HealthCheck(ctx context.Context) error
}

// CompletionsClient serves the Completions role.
type CompletionsClient interface {
	Client
	Infer(ctx context.Context, req *InferenceRequest) (*InferenceResponse, error)
}

// ContentMatchClient serves the ContentMatch role.
type ContentMatchClient interface {
	Client
	CodeMatch(ctx context.Context, req *CodeMatchRequest) (*CodeMatchResponse, error)
}

// PlaybookGenerationClient serves the PlaybookGeneration role.
type PlaybookGenerationClient interface {
	Client
	GeneratePlaybook(ctx context.Context, req *PlaybookGenerationRequest) (*PlaybookGenerationResponse, error)
}

// PlaybookExplanationClient serves the PlaybookExplanation role.
type PlaybookExplanationClient interface {
	Client
	ExplainPlaybook(ctx context.Context, req *PlaybookExplanationRequest) (string, error)
}

// ChatClient serves the ChatBot role.
type ChatClient interface {
	Client
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// StreamingChatClient serves the StreamingChatBot role. The handler receives
// chunks in order; cancellation propagates through ctx when the caller
// disconnects.
type StreamingChatClient interface {
	Client
	ChatStream(ctx context.Context, req *ChatRequest, handler StreamHandler) error
}
