package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Vishal-meena/NeoFi-Api/internal/auth"
	"github.com/Vishal-meena/NeoFi-Api/internal/models"
	"github.com/Vishal-meena/NeoFi-Api/internal/repository"
)

type contextKey string

const (
	userContextKey   contextKey = "current_user"
	claimsContextKey contextKey = "token_claims"
)

// AuthHandler handles registration, login and token lifecycle, and
// provides the bearer-auth middleware for protected routes.
type AuthHandler struct {
	users  repository.UserRepository
	tokens *auth.TokenManager
	log    *zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(users repository.UserRepository, tokens *auth.TokenManager, log *zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		users:  users,
		tokens: tokens,
		log:    log,
	}
}

// Register creates a new user account
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, `{"status":"error","message":"Invalid request body"}`, http.StatusBadRequest)
		return
	}

	if err := validate.Struct(req); err != nil {
		h.log.Error().Err(err).Msg("Validation failed")
		http.Error(w, `{"status":"error","message":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to hash password")
		http.Error(w, `{"status":"error","message":"Failed to register user"}`, http.StatusInternalServerError)
		return
	}

	user := &models.User{
		ID:             uuid.New(),
		Username:       req.Username,
		Email:          req.Email,
		HashedPassword: hashed,
	}

	if err := h.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, repository.ErrUsernameAlreadyExists) || errors.Is(err, repository.ErrEmailAlreadyExists) {
			http.Error(w, `{"status":"error","message":"`+err.Error()+`"}`, http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Str("username", req.Username).Msg("Failed to create user")
		http.Error(w, `{"status":"error","message":"Failed to register user"}`, http.StatusInternalServerError)
		return
	}

	h.log.Info().Str("user_id", user.ID.String()).Msg("User registered")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user.Response())
}

// Login verifies form credentials and issues a bearer token
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, `{"status":"error","message":"Invalid form data"}`, http.StatusBadRequest)
		return
	}

	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		http.Error(w, `{"status":"error","message":"Username and password are required"}`, http.StatusBadRequest)
		return
	}

	user, err := h.users.GetByUsername(r.Context(), username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			h.unauthorized(w, "Incorrect username or password")
			return
		}
		h.log.Error().Err(err).Str("username", username).Msg("Failed to look up user")
		http.Error(w, `{"status":"error","message":"Internal server error"}`, http.StatusInternalServerError)
		return
	}

	if !auth.CheckPassword(user.HashedPassword, password) {
		h.unauthorized(w, "Incorrect username or password")
		return
	}

	token, err := h.tokens.Issue(user.Username)
	if err != nil {
		h.log.Error().Err(err).Str("username", username).Msg("Failed to issue token")
		http.Error(w, `{"status":"error","message":"Failed to generate token"}`, http.StatusInternalServerError)
		return
	}

	h.log.Info().Str("user_id", user.ID.String()).Msg("User logged in")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
	})
}

// Refresh issues a fresh token for the authenticated user
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)

	token, err := h.tokens.Issue(user.Username)
	if err != nil {
		h.log.Error().Err(err).Str("username", user.Username).Msg("Failed to issue token")
		http.Error(w, `{"status":"error","message":"Failed to generate token"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
	})
}

// Logout revokes the presented token when a revocation store is
// configured; otherwise it just acknowledges.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if claims, ok := r.Context().Value(claimsContextKey).(*auth.Claims); ok {
		if err := h.tokens.Revoke(r.Context(), claims); err != nil {
			h.log.Error().Err(err).Msg("Failed to revoke token")
			http.Error(w, `{"status":"error","message":"Failed to log out"}`, http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Successfully logged out"})
}

// Middleware authenticates requests via the Authorization header and
// attaches the resolved user to the request context.
func (h *AuthHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			h.unauthorized(w, "Missing or invalid authorization header")
			return
		}

		claims, err := h.tokens.Verify(r.Context(), strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			h.unauthorized(w, "Invalid or expired token")
			return
		}

		user, err := h.users.GetByUsername(r.Context(), claims.Username)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				h.unauthorized(w, "Invalid or expired token")
				return
			}
			h.log.Error().Err(err).Str("username", claims.Username).Msg("Failed to resolve token user")
			http.Error(w, `{"status":"error","message":"Internal server error"}`, http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		ctx = context.WithValue(ctx, claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *AuthHandler) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, `{"status":"error","message":"`+message+`"}`, http.StatusUnauthorized)
}

// CurrentUser returns the authenticated user attached by Middleware.
func CurrentUser(r *http.Request) *models.User {
	user, _ := r.Context().Value(userContextKey).(*models.User)
	return user
}
