package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gigan-store/session-client/internal/errors"
	"github.com/gigan-store/session-client/sessions"
	"github.com/gigan-store/session-client/users"
)

type loginRequest struct {
	Username   string `json:"username"`
	Identifier string `json:"identifier"` // Accepted in place of username
	Password   string `json:"password"`
}

type accountResponse struct {
	ID       string        `json:"id"`
	Username string        `json:"username"`
	Name     string        `json:"name,omitempty"`
	Role     sessions.Role `json:"role"`
}

type loginResponse struct {
	Token string          `json:"token"`
	User  accountResponse `json:"user"`
}

func toAccount(u *users.User) accountResponse {
	return accountResponse{ID: u.ID, Username: u.Username, Name: u.Name, Role: u.Role}
}

// LoginHandler exchanges a username and password for a bearer token.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "invalid_request", "Request body must be JSON", http.StatusBadRequest)
			return
		}
		username := req.Username
		if username == "" {
			username = req.Identifier
		}
		if username == "" || req.Password == "" {
			writeJSONError(w, "invalid_request", "Username and password are required", http.StatusBadRequest)
			return
		}

		user, err := users.Authenticate(s.users, username, req.Password)
		if err != nil {
			if errors.Is(err, errors.ErrInvalidCredentials) {
				writeJSONError(w, "invalid_credentials", "Invalid username or password", http.StatusUnauthorized)
				return
			}
			s.logger.Error().Err(err).Msg("login lookup failed")
			writeJSONError(w, "internal_error", "Internal server error", http.StatusInternalServerError)
			return
		}

		signed, err := s.issuer.Issue(user.ID, string(user.Role))
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to issue token")
			writeJSONError(w, "internal_error", "Internal server error", http.StatusInternalServerError)
			return
		}
		if err := s.users.SetLastLogin(user.ID); err != nil {
			s.logger.Warn().Err(err).Str("user", user.Username).Msg("failed to record last login")
		}

		s.logger.Info().Str("user", user.Username).Str("role", string(user.Role)).Msg("issued token")
		writeJSON(w, http.StatusOK, loginResponse{Token: signed, User: toAccount(user)})
	}
}

// AccountHandler returns the user the bearer token belongs to.
func (s *Server) AccountHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			writeJSONError(w, "unauthorized", "Missing token claims", http.StatusUnauthorized)
			return
		}
		user, err := s.users.GetByID(claims.Subject)
		if err != nil {
			writeJSONError(w, "unauthorized", "Unknown user", http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": toAccount(user)})
	}
}

// EndSessionHandler revokes the presented token. Later requests carrying it
// are answered with 401.
func (s *Server) EndSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			writeJSONError(w, "unauthorized", "Missing token claims", http.StatusUnauthorized)
			return
		}
		var exp time.Time
		if claims.ExpiresAt != nil {
			exp = claims.ExpiresAt.Time
		}
		s.revoked.Revoke(claims.ID, exp)
		if n := s.revoked.Prune(); n > 0 {
			s.logger.Debug().Int("pruned", n).Msg("pruned revocation list")
		}
		s.logger.Info().Str("subject", claims.Subject).Msg("session ended")
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "time": s.now().UTC()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{
		"error":             description,
		"error_code":        errorCode,
		"error_description": description,
	})
}
