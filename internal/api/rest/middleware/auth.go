package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/glowdesk/automations/pkg/auth"
	"github.com/glowdesk/automations/pkg/logger"
)

type contextKey string

const (
	serviceClaimsKey contextKey = "service_claims"
	businessIDKey    contextKey = "business_id"
)

// APIKeyScopes are the scopes granted to requests authenticated with a
// static producer key instead of a JWT. Keys can push and read events only.
var APIKeyScopes = []string{"events:publish", "events:read"}

// ServiceAuth validates the bearer token issued to internal services and
// resolves the business scope from the X-Business-ID header. Every request
// below this middleware is tenant-scoped. Producers without a token issuer
// may present a static key via X-API-Key instead; keys carry event scopes
// only.
func ServiceAuth(tokens *auth.TokenManager, keys *auth.KeyRing, log *logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := authenticate(r, tokens, keys, log)
			if !ok {
				respondError(w, http.StatusUnauthorized, "Invalid or missing credentials")
				return
			}

			businessID, err := uuid.Parse(r.Header.Get("X-Business-ID"))
			if err != nil {
				respondError(w, http.StatusBadRequest, "Missing or invalid X-Business-ID header")
				return
			}

			ctx := context.WithValue(r.Context(), serviceClaimsKey, claims)
			ctx = context.WithValue(ctx, businessIDKey, businessID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(r *http.Request, tokens *auth.TokenManager, keys *auth.KeyRing, log *logger.Logger) (*auth.ServiceClaims, bool) {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		claims, err := tokens.Validate(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			log.Warn("Rejected invalid service token", logger.Err(err))
			return nil, false
		}
		return claims, true
	}

	if key := r.Header.Get("X-API-Key"); key != "" && !keys.Empty() {
		if !keys.Verify(key) {
			log.Warn("Rejected invalid API key")
			return nil, false
		}
		return &auth.ServiceClaims{Service: "api-key", Scopes: APIKeyScopes}, true
	}

	return nil, false
}

// RequireScope gates a route on a token scope
func RequireScope(scope string, log *logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetServiceClaims(r.Context())
			if claims == nil || !claims.HasScope(scope) {
				service := "unknown"
				if claims != nil {
					service = claims.Service
				}
				log.Warn("Scope denied",
					logger.String("service", service),
					logger.String("scope", scope),
				)
				respondError(w, http.StatusForbidden, "Insufficient scope")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetServiceClaims extracts the authenticated service claims from context
func GetServiceClaims(ctx context.Context) *auth.ServiceClaims {
	claims, _ := ctx.Value(serviceClaimsKey).(*auth.ServiceClaims)
	return claims
}

// GetBusinessID extracts the business scope from context
func GetBusinessID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(businessIDKey).(uuid.UUID)
	return id
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
