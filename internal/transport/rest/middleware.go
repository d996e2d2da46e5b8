package rest

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gatherhq/registration-service/internal/security"
)

type AuthOptions struct {
	// If set, enforce exact issuer match.
	ExpectedIssuer string
}

func AuthMiddleware(verifier security.AccessTokenVerifier, opt AuthOptions) func(next http.Handler) http.Handler {
	if verifier == nil {
		panic("AuthMiddleware: nil verifier")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				unauthorized(w)
				return
			}

			claims, err := verifier.VerifyAccessToken(raw)
			if err != nil {
				unauthorized(w)
				return
			}
			if opt.ExpectedIssuer != "" && claims.Issuer != opt.ExpectedIssuer {
				unauthorized(w)
				return
			}

			uid, err := uuid.Parse(strings.TrimSpace(claims.UserID))
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := withAuth(r.Context(), AuthContext{
				UserID: uid,
				Role:   strings.TrimSpace(claims.Role),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, rest, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(rest)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter) {
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// RateLimiter is the slice of the cache the limiter needs.
type RateLimiter interface {
	AllowRequest(ctx context.Context, ip string, limit int, window time.Duration) (bool, error)
}

func RateLimitMiddleware(limiter RateLimiter) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, _ := limiter.AllowRequest(r.Context(), clientIP(r), 100, time.Minute)
			if !allowed {
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP keeps it simple: RemoteAddr host part. Trusting X-Forwarded-For
// blindly is a spoofing risk, so only the proxy layer should rewrite it.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := w.Header()
		hdr.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'")
		hdr.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		hdr.Set("X-Content-Type-Options", "nosniff")
		hdr.Set("X-Frame-Options", "DENY")
		hdr.Set("Referrer-Policy", "no-referrer")
		hdr.Set("Cross-Origin-Resource-Policy", "same-site")
		hdr.Set("Cross-Origin-Opener-Policy", "same-origin")

		next.ServeHTTP(w, r)
	})
}
