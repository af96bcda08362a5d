// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ansible/ansible-ai-connect-gateway/shared/logger"
)

type contextKey string

const (
	identityContextKey  contextKey = "identity"
	requestIDContextKey contextKey = "request_id"
)

// Identity is the authenticated caller. OrgID is empty for community users.
type Identity struct {
	Username string
	OrgID    string
}

// IdentityFromContext returns the caller identity set by AuthMiddleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(Identity)
	return identity, ok
}

// RequestIDFromContext returns the request id set by RequestIDMiddleware.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}

// RequestIDMiddleware assigns every request an id, honoring an inbound
// X-Request-ID header, and echoes it on the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), requestIDContextKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AuthMiddleware validates the bearer JWT and stores the caller identity in
// the request context. Tokens are signed with the shared HMAC secret; the
// subject claim carries the username and rh_org_id the organization.
func AuthMiddleware(secret []byte, log *logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.New("auth")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeJSONError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			tokenString := strings.TrimPrefix(header, "Bearer ")

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
				}
				return secret, nil
			})
			if err != nil || !token.Valid {
				log.Warn(RequestIDFromContext(r.Context()), "rejected invalid token", map[string]interface{}{
					"remote_addr": r.RemoteAddr,
				})
				writeJSONError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			identity := Identity{}
			if sub, err := claims.GetSubject(); err == nil {
				identity.Username = sub
			}
			if orgID, ok := claims["rh_org_id"].(string); ok {
				identity.OrgID = orgID
			}
			if identity.Username == "" {
				writeJSONError(w, http.StatusUnauthorized, "token has no subject")
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
