// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ansible/ansible-ai-connect-gateway/shared/logger"
)

// Server is the assembled gateway HTTP service.
type Server struct {
	addr     string
	handlers *Handlers
	secret   []byte
	log      *logger.Logger
	httpSrv  *http.Server
}

// ServerOptions configures the HTTP server.
type ServerOptions struct {
	Addr      string
	JWTSecret []byte
	Logger    *logger.Logger
}

// NewServer assembles the router around the handlers.
func NewServer(handlers *Handlers, opts ServerOptions) *Server {
	addr := opts.Addr
	if addr == "" {
		addr = ":8080"
	}
	log := opts.Logger
	if log == nil {
		log = logger.New("gateway")
	}
	s := &Server{
		addr:     addr,
		handlers: handlers,
		secret:   opts.JWTSecret,
		log:      log,
	}
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Router builds the route table. Health, readiness and metrics are exempt
// from authentication.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(s.accessLog)

	r.HandleFunc("/health", s.handlers.Healthz).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.handlers.Ready).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(AuthMiddleware(s.secret, s.log))
	api.HandleFunc("/ai/completions/", s.handlers.Completions).Methods(http.MethodPost)
	api.HandleFunc("/ai/contentmatches/", s.handlers.ContentMatches).Methods(http.MethodPost)
	api.HandleFunc("/ai/generations/playbook/", s.handlers.GeneratePlaybook).Methods(http.MethodPost)
	api.HandleFunc("/ai/explanations/playbook/", s.handlers.ExplainPlaybook).Methods(http.MethodPost)
	api.HandleFunc("/ai/chat/", s.handlers.Chat).Methods(http.MethodPost)
	api.HandleFunc("/ai/streaming_chat/", s.handlers.StreamingChat).Methods(http.MethodPost)
	api.HandleFunc("/me/", s.handlers.Me).Methods(http.MethodGet)
	return r
}

// accessLog emits one structured line per request.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.log.InfoWithDuration(RequestIDFromContext(r.Context()), r.Method+" "+r.URL.Path,
			float64(time.Since(start).Milliseconds()), map[string]interface{}{
				"status": recorder.status,
			})
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush preserves streaming support through the access-log wrapper.
func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.log.Info("", "gateway listening", map[string]interface{}{"addr": s.addr})
	return s.httpSrv.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
