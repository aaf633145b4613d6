package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/campuslife/apiserver/internal/auth"
	"github.com/campuslife/apiserver/internal/events"
	"github.com/campuslife/apiserver/internal/services"
	"github.com/campuslife/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// AuthHandler exchanges provider tokens for sessions and resolves the
// principal for authenticated requests.
type AuthHandler struct {
	verifier       auth.TokenVerifier
	sessions       *auth.Sessions
	resolver       *services.IdentityResolver
	publisher      *events.Publisher
	logger         *slog.Logger
	requiredDomain string
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(
	verifier auth.TokenVerifier,
	sessions *auth.Sessions,
	resolver *services.IdentityResolver,
	publisher *events.Publisher,
	logger *slog.Logger,
	requiredDomain string,
) *AuthHandler {
	return &AuthHandler{
		verifier:       verifier,
		sessions:       sessions,
		resolver:       resolver,
		publisher:      publisher,
		logger:         logger,
		requiredDomain: requiredDomain,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler) {
	r.Post("/login", handler.Login)
	r.With(handler.RequireAuth).Get("/me", handler.Me)
}

// RequireAuth parses the session token, resolves the principal through the
// identity resolver and stores it in the request context for downstream
// handlers. Resolution itself never fails the request; only a missing or
// invalid token does.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{
				Error:   "Unauthorized",
				Message: "Valid access token is required",
			})
			return
		}

		claims, err := h.sessions.Parse(tokenString)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{
				Error:   "Unauthorized",
				Message: "Valid access token is required",
			})
			return
		}

		cached := types.Principal{
			ID:    claims.UserID,
			Email: claims.Email,
			Name:  claims.Name,
			Role:  claims.Role,
		}
		principal, err := h.resolver.Resolve(r.Context(), claims.Email, claims.Name, cached)
		if err != nil {
			writeServiceError(w, h.logger, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), principal)))
	})
}

// RequireAdmin rejects non-admin principals. Must run after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := PrincipalFromContext(r.Context())
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{
				Error:   "Unauthorized",
				Message: "Valid access token is required",
			})
			return
		}
		if !principal.IsAdmin() {
			writeJSON(w, http.StatusForbidden, ErrorResponse{
				Error:   "Forbidden",
				Message: "Admin access required",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type LoginRequest struct {
	Token string `json:"token"`
}

type AuthResponse struct {
	Token string          `json:"token"`
	User  types.Principal `json:"user"`
}

// Login verifies an identity-provider token, provisions or resolves the user
// record, and returns a session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	identity, err := h.verifier.Verify(r.Context(), req.Token)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "Unauthorized",
			Message: "Valid access token is required",
		})
		return
	}

	email := services.NormalizeEmail(identity.Email)
	if h.requiredDomain != "" && !h.resolver.IsAdminEmail(email) && !strings.HasSuffix(email, h.requiredDomain) {
		writeError(w, http.StatusForbidden, "must use school email")
		return
	}

	principal, err := h.resolver.Resolve(r.Context(), email, identity.Name, types.Principal{})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	token, err := h.sessions.Issue(principal.ID, principal.Email, principal.Name, principal.Role)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	h.publisher.Emit(r.Context(), events.TopicUsers, events.UserLogin, principal.ID, principal.ID)
	h.logger.InfoContext(r.Context(), "user_login",
		"user_role", principal.Role,
		"email_domain", emailDomain(principal.Email),
	)

	writeJSON(w, http.StatusOK, AuthResponse{Token: token, User: principal})
}

// Me returns the principal resolved for this request.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, err := PrincipalFromContext(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, principal)
}

func bearerToken(r *http.Request) (string, error) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if authHeader == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}

func emailDomain(email string) string {
	if at := strings.LastIndex(email, "@"); at >= 0 {
		return email[at+1:]
	}
	return ""
}
