// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

// Command gateway runs the Ansible AI Connect model gateway.
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"github.com/ansible/ansible-ai-connect-gateway/gateway"
	"github.com/ansible/ansible-ai-connect-gateway/gateway/authz"
	"github.com/ansible/ansible-ai-connect-gateway/gateway/pipeline"
	"github.com/ansible/ansible-ai-connect-gateway/gateway/secrets"
	"github.com/ansible/ansible-ai-connect-gateway/shared/logger"
)

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	log := logger.New("gateway")

	pipelinesPath := getEnv("ANSIBLE_AI_MODEL_PIPELINES_CONFIG_FILE", "pipelines.json")
	data, err := os.ReadFile(pipelinesPath)
	if err != nil {
		log.Error("", "failed to read pipelines document", map[string]interface{}{"path": pipelinesPath, "error": err.Error()})
		os.Exit(1)
	}
	doc, err := pipeline.LoadDocument(data)
	if err != nil {
		log.Error("", "invalid pipelines document", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	ctx := context.Background()

	var resolver secrets.Resolver
	if region := os.Getenv("WCA_SECRET_MANAGER_PRIMARY_REGION"); region != "" {
		manager, err := secrets.NewManager(ctx, secrets.Options{
			Region:         region,
			ReplicaRegions: splitCSV(os.Getenv("WCA_SECRET_MANAGER_REPLICA_REGIONS")),
			Logger:         log,
		})
		if err != nil {
			log.Error("", "failed to initialise secret manager", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
		resolver = manager
	}

	registry, err := pipeline.NewRegistry(doc, gateway.Builders(resolver, log), log)
	if err != nil {
		log.Error("", "failed to build pipeline registry", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	var authorizer gateway.Authorizer
	if amsURL := os.Getenv("ANSIBLE_AI_AMS_URL"); amsURL != "" {
		ams, err := authz.NewAMSClient(authz.AMSOptions{
			BaseURL:      amsURL,
			SSOTokenURL:  getEnv("ANSIBLE_AI_SSO_TOKEN_URL", "https://sso.redhat.com/auth/realms/redhat-external/protocol/openid-connect/token"),
			ClientID:     os.Getenv("ANSIBLE_AI_SSO_CLIENT_ID"),
			ClientSecret: os.Getenv("ANSIBLE_AI_SSO_CLIENT_SECRET"),
			RetryCount:   getEnvInt("AUTHZ_SSO_TOKEN_SERVICE_RETRY_COUNT", 3),
			VerifySSL:    true,
			Logger:       log,
		})
		if err != nil {
			log.Error("", "failed to initialise AMS client", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}

		var cache authz.Cache
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			redisOpts, err := redis.ParseURL(redisURL)
			if err != nil {
				log.Error("", "invalid REDIS_URL", map[string]interface{}{"error": err.Error()})
				os.Exit(1)
			}
			cache = authz.NewRedisCache(redis.NewClient(redisOpts), "authz")
		}
		authorizer = authz.NewService(ams, authz.ServiceOptions{Cache: cache, Logger: log})
	}

	orc := gateway.NewOrchestrator(registry, gateway.OrchestratorOptions{Logger: log})
	handlers := gateway.NewHandlers(orc, authorizer, log)
	server := gateway.NewServer(handlers, gateway.ServerOptions{
		Addr:      getEnv("GATEWAY_LISTEN_ADDR", ":8080"),
		JWTSecret: []byte(os.Getenv("JWT_SECRET")),
		Logger:    log,
	})

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		log.Error("", "server stopped", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	case sig := <-stop:
		log.Info("", "shutting down", map[string]interface{}{"signal": sig.String()})
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("", "shutdown failed", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
	}
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
