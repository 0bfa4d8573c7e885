package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/unklstewy/radarfusion/internal/auth"
	"github.com/unklstewy/radarfusion/pkg/logger"
)

// Authenticator logs operators in and validates their tokens.
// *auth.Service implements it.
type Authenticator interface {
	Login(name, password string) (string, error)
	ValidateToken(token string) (*auth.Claims, error)
}

// Option configures a Server.
type Option func(*Server)

// WithAuth requires an operator token on the source control endpoints and
// enables POST /api/v1/auth/login.
func WithAuth(a Authenticator) Option {
	return func(s *Server) {
		s.auth = a
	}
}

type claimsKey struct{}

// ClaimsFromContext returns the claims stored by the auth middleware.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return c, ok
}

// requireRole rejects requests without a valid bearer token of at least
// role. Without an Authenticator every request passes.
func (s *Server) requireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.auth == nil {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				respondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			claims, err := s.auth.ValidateToken(token)
			if err != nil {
				respondError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			if !auth.HasRole(claims.Role, role) {
				respondError(w, http.StatusForbidden, "insufficient role")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoginRequest is the body of POST /api/v1/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token.
type LoginResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := s.auth.Login(req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		s.log.Warn("Login failed", logger.String("username", req.Username))
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		s.log.Error("Token signing failed", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "login failed")
		return
	}

	s.log.Info("Operator logged in", logger.String("username", req.Username))
	respondJSON(w, http.StatusOK, LoginResponse{Token: token})
}
