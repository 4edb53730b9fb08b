package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"familyhub/internal/models"
	"familyhub/internal/security"
	"familyhub/internal/service"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const SessionContextKey ContextKey = "session"

// identityClaims are the bearer token claims issued by the identity provider
type identityClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Middleware holds dependencies for middleware functions
type Middleware struct {
	userService *service.UserService
	parser      *jwt.Parser
	secret      []byte
}

// NewMiddleware creates a new middleware instance. An empty issuer skips the
// issuer check.
func NewMiddleware(userService *service.UserService, secret, issuer string) *Middleware {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired()}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &Middleware{
		userService: userService,
		parser:      jwt.NewParser(opts...),
		secret:      []byte(secret),
	}
}

// RequireAuth is middleware that requires a valid bearer token. The token
// subject is provisioned on first sight and the request session is stored in
// the context.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.parseBearer(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="familyhub"`)
			respondWithError(w, http.StatusUnauthorized, ErrUnauthorized, "", nil)
			return
		}

		user, err := m.userService.EnsureUser(r.Context(), claims.Subject, claims.Email, claims.Name)
		if err != nil {
			respondWithServiceError(w, err, "provision user")
			return
		}
		session, err := m.userService.BuildSession(r.Context(), user)
		if err != nil {
			respondWithServiceError(w, err, "build session")
			return
		}

		ctx := context.WithValue(r.Context(), SessionContextKey, session)
		next(w, r.WithContext(ctx))
	}
}

func (m *Middleware) parseBearer(r *http.Request) (*identityClaims, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return nil, errors.New("missing bearer token")
	}

	claims := &identityClaims{}
	token, err := m.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// RateLimit rejects requests once the session user exceeds limiter's budget.
// It must run inside RequireAuth.
func RateLimit(limiter *security.RateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := security.GetClientIP(r)
		if session, ok := GetSessionFromContext(r.Context()); ok {
			key = session.UserID
		}
		if !limiter.Allow(key) {
			respondWithError(w, http.StatusTooManyRequests, ErrTooManyRequests, "", nil)
			return
		}
		next(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Logging middleware logs HTTP requests
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		log.Printf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

// GetSessionFromContext retrieves the request session from the context
func GetSessionFromContext(ctx context.Context) (models.Session, bool) {
	session, ok := ctx.Value(SessionContextKey).(models.Session)
	return session, ok
}
