// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ansible/ansible-ai-connect-gateway/gateway/pipeline"
	"github.com/ansible/ansible-ai-connect-gateway/shared/logger"
)

// Authorizer answers the organization-level questions the /me endpoint and
// seat gating need.
type Authorizer interface {
	IsOrgAdmin(ctx context.Context, username, rhOrgID string) bool
	OrgHasSubscription(ctx context.Context, rhOrgID string) bool
}

// Handlers owns the HTTP endpoints in front of the orchestrator.
type Handlers struct {
	orc   *Orchestrator
	authz Authorizer
	log   *logger.Logger
}

// NewHandlers builds the endpoint set. authz may be nil when the deployment
// has no account-management integration.
func NewHandlers(orc *Orchestrator, authz Authorizer, log *logger.Logger) *Handlers {
	if log == nil {
		log = logger.New("handlers")
	}
	return &Handlers{orc: orc, authz: authz, log: log}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Code: http.StatusText(status), Message: message})
}

// writeFailure maps a taxonomy error onto its HTTP status. 204 failures
// carry no body.
func (h *Handlers) writeFailure(w http.ResponseWriter, requestID string, err error) {
	var perr *pipeline.Error
	if !errors.As(err, &perr) {
		h.log.ErrorWithCode(requestID, "unclassified failure", http.StatusInternalServerError, err, nil)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	status := perr.Kind.HTTPStatus()
	h.log.ErrorWithCode(requestID, "request failed", status, perr, map[string]interface{}{
		"kind": string(perr.Kind),
	})
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, errorBody{Code: string(perr.Kind), Message: perr.Message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(out); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return false
	}
	return true
}

type completionsRequest struct {
	Prompt       string `json:"prompt"`
	Context      string `json:"context"`
	SuggestionID string `json:"suggestionId"`
	Model        string `json:"model"`
}

type completionsResponse struct {
	Predictions  []string `json:"predictions"`
	Model        string   `json:"model"`
	SuggestionID string   `json:"suggestionId,omitempty"`
}

// Completions serves POST /api/v1/ai/completions/.
func (h *Handlers) Completions(w http.ResponseWriter, r *http.Request) {
	requestID := RequestIDFromContext(r.Context())
	identity, _ := IdentityFromContext(r.Context())

	var body completionsRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Prompt == "" {
		writeJSONError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if body.SuggestionID != "" {
		if _, err := uuid.Parse(body.SuggestionID); err != nil {
			writeJSONError(w, http.StatusBadRequest, "suggestionId must be a UUID")
			return
		}
	}

	resp, err := h.orc.Complete(r.Context(), &pipeline.InferenceRequest{
		Prompt:          body.Prompt,
		Context:         body.Context,
		UserID:          identity.Username,
		OrgID:           identity.OrgID,
		SuggestionID:    body.SuggestionID,
		ModelIDOverride: body.Model,
	})
	if err != nil {
		h.writeFailure(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, completionsResponse{
		Predictions:  resp.Predictions,
		Model:        resp.ModelID,
		SuggestionID: body.SuggestionID,
	})
}

type contentMatchRequest struct {
	Suggestions []string `json:"suggestions"`
	Model       string   `json:"model"`
}

// ContentMatches serves POST /api/v1/ai/contentmatches/.
func (h *Handlers) ContentMatches(w http.ResponseWriter, r *http.Request) {
	requestID := RequestIDFromContext(r.Context())
	identity, _ := IdentityFromContext(r.Context())

	var body contentMatchRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if len(body.Suggestions) == 0 {
		writeJSONError(w, http.StatusBadRequest, "suggestions are required")
		return
	}

	resp, err := h.orc.ContentMatches(r.Context(), &pipeline.CodeMatchRequest{
		Suggestions:     body.Suggestions,
		OrgID:           identity.OrgID,
		ModelIDOverride: body.Model,
	})
	if err != nil {
		h.writeFailure(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type generationRequest struct {
	Text          string `json:"text"`
	CreateOutline bool   `json:"createOutline"`
	Outline       string `json:"outline"`
	Model         string `json:"model"`
}

// GeneratePlaybook serves POST /api/v1/ai/generations/playbook/.
func (h *Handlers) GeneratePlaybook(w http.ResponseWriter, r *http.Request) {
	requestID := RequestIDFromContext(r.Context())
	identity, _ := IdentityFromContext(r.Context())

	var body generationRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Text == "" {
		writeJSONError(w, http.StatusBadRequest, "text is required")
		return
	}

	resp, err := h.orc.GeneratePlaybook(r.Context(), &pipeline.PlaybookGenerationRequest{
		Text:            body.Text,
		CreateOutline:   body.CreateOutline,
		Outline:         body.Outline,
		OrgID:           identity.OrgID,
		ModelIDOverride: body.Model,
	})
	if err != nil {
		h.writeFailure(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type explanationRequest struct {
	Content string `json:"content"`
	Model   string `json:"model"`
}

type explanationResponse struct {
	Content string `json:"content"`
	Format  string `json:"format"`
}

// ExplainPlaybook serves POST /api/v1/ai/explanations/playbook/.
func (h *Handlers) ExplainPlaybook(w http.ResponseWriter, r *http.Request) {
	requestID := RequestIDFromContext(r.Context())
	identity, _ := IdentityFromContext(r.Context())

	var body explanationRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Content == "" {
		writeJSONError(w, http.StatusBadRequest, "content is required")
		return
	}

	explanation, err := h.orc.ExplainPlaybook(r.Context(), &pipeline.PlaybookExplanationRequest{
		Content:         body.Content,
		OrgID:           identity.OrgID,
		ModelIDOverride: body.Model,
	})
	if err != nil {
		h.writeFailure(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, explanationResponse{Content: explanation, Format: "markdown"})
}

type chatRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id"`
	SystemPrompt   string `json:"system_prompt"`
	Model          string `json:"model"`
}

// Chat serves POST /api/v1/ai/chat/.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	requestID := RequestIDFromContext(r.Context())

	var body chatRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Query == "" {
		writeJSONError(w, http.StatusBadRequest, "query is required")
		return
	}

	resp, err := h.orc.Chat(r.Context(), &pipeline.ChatRequest{
		Query:           body.Query,
		ConversationID:  body.ConversationID,
		SystemPrompt:    body.SystemPrompt,
		ModelIDOverride: body.Model,
	})
	if err != nil {
		h.writeFailure(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// StreamingChat serves POST /api/v1/ai/streaming_chat/ as a server-sent
// event stream.
func (h *Handlers) StreamingChat(w http.ResponseWriter, r *http.Request) {
	requestID := RequestIDFromContext(r.Context())

	var body chatRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Query == "" {
		writeJSONError(w, http.StatusBadRequest, "query is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	err := h.orc.ChatStream(r.Context(), &pipeline.ChatRequest{
		Query:           body.Query,
		ConversationID:  body.ConversationID,
		SystemPrompt:    body.SystemPrompt,
		ModelIDOverride: body.Model,
	}, func(chunk pipeline.StreamChunk) error {
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", chunk.Event, chunk.Data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		// Headers are already on the wire; surface the failure as a final event.
		h.log.ErrorWithCode(requestID, "streaming chat failed", http.StatusOK, err, nil)
		var perr *pipeline.Error
		if errors.As(err, &perr) {
			_, _ = fmt.Fprintf(w, "event: error\ndata: {\"code\":%q,\"message\":%q}\n\n", string(perr.Kind), perr.Message)
			flusher.Flush()
		}
	}
}

type meResponse struct {
	Username        string `json:"username"`
	OrgID           string `json:"rh_org_id,omitempty"`
	IsOrgAdmin      bool   `json:"rh_user_is_org_admin"`
	HasSubscription bool   `json:"rh_org_has_subscription"`
}

// Me serves GET /api/v1/me/.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	resp := meResponse{Username: identity.Username, OrgID: identity.OrgID}
	if h.authz != nil && identity.OrgID != "" {
		resp.IsOrgAdmin = h.authz.IsOrgAdmin(r.Context(), identity.Username, identity.OrgID)
		resp.HasSubscription = h.authz.OrgHasSubscription(r.Context(), identity.OrgID)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Healthz serves GET /health. Liveness only: no backend calls.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready serves GET /ready. Runs the enabled pipeline health checks.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	summary := h.orc.Health(ctx)
	status := http.StatusOK
	if summary.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, summary)
}
