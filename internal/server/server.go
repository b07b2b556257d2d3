package server

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/Vishal-meena/NeoFi-Api/internal/auth"
	"github.com/Vishal-meena/NeoFi-Api/internal/repository"
)

var validate = validator.New()

type Server struct {
	Server   *http.Server
	log      *zerolog.Logger
	db       *sql.DB
	authAPI  *AuthHandler
	eventAPI *EventHandler
}

func New(addr string, db *sql.DB, tokens *auth.TokenManager, log *zerolog.Logger) *Server {
	// Initialize repositories and handlers
	userRepo := repository.NewUserRepository(db, *log)
	versionRepo := repository.NewVersionRepository(db, *log)
	eventRepo := repository.NewEventRepository(db, versionRepo, *log)
	permRepo := repository.NewPermissionRepository(db, *log)

	authAPI := NewAuthHandler(userRepo, tokens, log)
	eventAPI := NewEventHandler(eventRepo, versionRepo, permRepo, log)

	s := &Server{
		Server: &http.Server{
			Addr:         addr,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		db:       db,
		log:      log,
		authAPI:  authAPI,
		eventAPI: eventAPI,
	}

	// Setup routes
	r := mux.NewRouter()
	s.setupRoutes(r)
	s.Server.Handler = cors.AllowAll().Handler(r)

	return s
}

func (s *Server) setupRoutes(r *mux.Router) {
	// Use the logging and recovery middleware for all routes
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	// Health check endpoint
	r.HandleFunc("/health", s.healthCheck).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Auth routes
	authRoutes := api.PathPrefix("/auth").Subrouter()
	authRoutes.HandleFunc("/register", s.authAPI.Register).Methods("POST")
	authRoutes.HandleFunc("/login", s.authAPI.Login).Methods("POST")

	authProtected := api.PathPrefix("/auth").Subrouter()
	authProtected.Use(s.authAPI.Middleware)
	authProtected.HandleFunc("/refresh", s.authAPI.Refresh).Methods("POST")
	authProtected.HandleFunc("/logout", s.authAPI.Logout).Methods("POST")

	// Event routes, all behind authentication
	events := api.PathPrefix("/events").Subrouter()
	events.Use(s.authAPI.Middleware)
	events.HandleFunc("/batch", s.eventAPI.CreateBatch).Methods("POST")
	events.HandleFunc("", s.eventAPI.CreateEvent).Methods("POST")
	events.HandleFunc("", s.eventAPI.ListEvents).Methods("GET")
	events.HandleFunc("/{id}", s.eventAPI.GetEvent).Methods("GET")
	events.HandleFunc("/{id}", s.eventAPI.UpdateEvent).Methods("PUT")
	events.HandleFunc("/{id}", s.eventAPI.DeleteEvent).Methods("DELETE")

	// Collaboration and version history routes
	events.HandleFunc("/{id}/share", s.eventAPI.ShareEvent).Methods("POST")
	events.HandleFunc("/{id}/history/{version}", s.eventAPI.GetVersion).Methods("GET")
	events.HandleFunc("/{id}/rollback/{version}", s.eventAPI.RollbackEvent).Methods("POST")
	events.HandleFunc("/{id}/changelog", s.eventAPI.GetChangelog).Methods("GET")
	events.HandleFunc("/{id}/diff/{version1}/{version2}", s.eventAPI.GetDiff).Methods("GET")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("address", s.Server.Addr).Msg("Starting server")
	return s.Server.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info().Msg("Shutting down server")
	return s.Server.Shutdown(ctx)
}

// loggingMiddleware logs all incoming requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer to capture the status code
		rw := &responseWriter{w, http.StatusOK}

		// Process the request
		next.ServeHTTP(rw, r)

		// Log the request
		duration := time.Since(start)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rw.status).
			Str("duration", duration.String()).
			Msg("Request processed")
	})
}

// recoveryMiddleware recovers from panics and returns a 500 error
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.log.Error().Interface("panic", err).Msg("Recovered from panic")
				http.Error(w, `{"status":"error","message":"Internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// healthCheck handles the health check endpoint
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.db == nil {
		s.log.Error().Msg("Database is not initialized")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unhealthy","error":"database not initialized"}`))
		return
	}

	// Check database connection with timeout
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		s.log.Error().Err(err).Msg("Database health check failed")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unhealthy","error":"database connection failed"}`))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
