// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package logger provides structured JSON logging for the gateway.

Log entries are single-line JSON written to stdout so the container
runtime can ship them to the log aggregation stack unchanged.

Each entry carries:
  - Timestamp (RFC3339Nano)
  - Level (DEBUG, INFO, WARN, ERROR)
  - Component name (gateway, pipeline, authz, ...)
  - Container hostname
  - Request ID (for correlation with backend X-Request-ID logs)
  - Message and optional custom fields

Usage:

	log := logger.New("gateway")
	log.Info(requestID, "completion served", map[string]interface{}{
	    "model_id": modelID,
	})

By policy the gateway never logs prompt or prediction content; callers
must restrict fields to identifiers, durations and status codes.

Logger instances are safe for concurrent use from multiple goroutines.
*/
package logger
