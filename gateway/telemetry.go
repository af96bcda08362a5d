// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ansible/ansible-ai-connect-gateway/gateway/pipeline"
	"github.com/ansible/ansible-ai-connect-gateway/shared/logger"
)

// Prometheus metrics
var (
	promCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ansible_ai_gateway_backend_calls_total",
			Help: "Total number of backend calls per pipeline and outcome",
		},
		[]string{"pipeline", "provider", "outcome"},
	)
	promCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ansible_ai_gateway_backend_call_duration_milliseconds",
			Help:    "Backend call duration in milliseconds",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"pipeline", "provider"},
	)
	promFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ansible_ai_gateway_failures_total",
			Help: "Backend failures by taxonomy kind",
		},
		[]string{"pipeline", "kind"},
	)
)

func init() {
	prometheus.MustRegister(promCallsTotal)
	prometheus.MustRegister(promCallDuration)
	prometheus.MustRegister(promFailuresTotal)
}

// CallEvent is the per-call context attached to every telemetry event. No
// prompt or response content is ever attached.
type CallEvent struct {
	ModelID      string `json:"model_id,omitempty"`
	TaskCount    int    `json:"task_count"`
	SuggestionID string `json:"suggestion_id,omitempty"`
}

// FailureEvent adds the taxonomy classification to a failed call.
type FailureEvent struct {
	CallEvent
	Kind       pipeline.Kind `json:"kind"`
	XRequestID string        `json:"x_request_id,omitempty"`
}

// Telemetry emits one event per backend call. Callers must emit exactly
// once, success or failure, per call.
type Telemetry struct {
	log *logger.Logger
}

// NewTelemetry builds the telemetry sink.
func NewTelemetry(log *logger.Logger) *Telemetry {
	if log == nil {
		log = logger.New("telemetry")
	}
	return &Telemetry{log: log}
}

// RecordSuccess emits the success event for one backend call.
func (t *Telemetry) RecordSuccess(role pipeline.Role, provider pipeline.ProviderTag, call CallEvent, elapsed time.Duration) {
	promCallsTotal.WithLabelValues(string(role), string(provider), "success").Inc()
	promCallDuration.WithLabelValues(string(role), string(provider)).Observe(float64(elapsed.Milliseconds()))
	fields := map[string]interface{}{
		"pipeline":    string(role),
		"provider":    string(provider),
		"model_id":    call.ModelID,
		"task_count":  call.TaskCount,
		"duration_ms": elapsed.Milliseconds(),
	}
	if call.SuggestionID != "" {
		fields["suggestion_id"] = call.SuggestionID
	}
	t.log.Info("", "backend call succeeded", fields)
}

// RecordFailure emits the failure event for one backend call.
func (t *Telemetry) RecordFailure(role pipeline.Role, provider pipeline.ProviderTag, event FailureEvent, elapsed time.Duration) {
	promCallsTotal.WithLabelValues(string(role), string(provider), "failure").Inc()
	promCallDuration.WithLabelValues(string(role), string(provider)).Observe(float64(elapsed.Milliseconds()))
	promFailuresTotal.WithLabelValues(string(role), string(event.Kind)).Inc()
	fields := map[string]interface{}{
		"pipeline":     string(role),
		"provider":     string(provider),
		"kind":         string(event.Kind),
		"model_id":     event.ModelID,
		"task_count":   event.TaskCount,
		"x_request_id": event.XRequestID,
		"duration_ms":  elapsed.Milliseconds(),
	}
	if event.SuggestionID != "" {
		fields["suggestion_id"] = event.SuggestionID
	}
	t.log.Error("", "backend call failed", fields)
}
