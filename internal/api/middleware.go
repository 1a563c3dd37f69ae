package api

import (
	"net/http"
	"strings"
	"time"

	"bookverse-notifications/internal/common/logger"
	"bookverse-notifications/internal/identity"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
)

// Authenticate resolves the bearer token through the identity provider and
// stores the user on the request context. Websocket upgrades may pass the
// token as access_token since browsers cannot set headers on them.
func Authenticate(tokens identity.TokenValidator, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w, "missing bearer token")
				return
			}

			info, err := tokens.ValidateToken(r.Context(), token)
			if err != nil {
				log.Debug("token rejected", map[string]interface{}{"path": r.URL.Path, "error": err})
				unauthorized(w, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(identity.WithUser(r.Context(), info.Sub)))
		})
	}
}

func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	if websocket.IsWebSocketUpgrade(r) {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

// RequestLogger logs one line per request with its status and latency.
func RequestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			fields := map[string]interface{}{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"durationMs": time.Since(start).Milliseconds(),
				"requestId":  chimiddleware.GetReqID(r.Context()),
			}
			switch {
			case ww.Status() >= 500:
				log.Error("request failed", fields)
			case ww.Status() >= 400:
				log.Warn("request rejected", fields)
			default:
				log.Debug("request served", fields)
			}
		})
	}
}

// CORS allows the configured origins; none configured means any.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
