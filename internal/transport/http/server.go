package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"studyhub-contest-service/internal/app"
)

// Server exposes the contest lifecycle over REST plus a websocket rankings
// stream.
type Server struct {
	service *app.ContestService
	router  *chi.Mux
}

func NewServer(service *app.ContestService) *Server {
	s := &Server{service: service}
	s.setupRouter()
	return s
}

// Router returns the configured router.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "X-User-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/ws/contests/{id}", s.handleRankingsStream)

	r.Route("/api/contests", func(r chi.Router) {
		r.Use(requireUser)

		r.Get("/", s.handleListContests)
		r.Post("/", s.handleCreateContest)

		r.Route("/attempt/{attemptID}", func(r chi.Router) {
			r.Post("/answer", s.handleSaveAnswer)
			r.Post("/submit", s.handleSubmit)
			r.Get("/results", s.handleResults)
		})

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetContest)
			r.Put("/", s.handleUpdateContest)
			r.Delete("/questions/{assignmentID}", s.handleRemoveAssignment)
			r.Post("/register", s.handleRegister)
			r.Delete("/unregister", s.handleUnregister)
			r.Post("/start", s.handleStart)
			r.Get("/rankings", s.handleRankings)
		})
	})

	r.With(requireUser).Post("/api/admin/auto-submit-expired", s.handleAutoSubmitExpired)

	s.router = r
}

type contextKey string

const userIDKey contextKey = "userID"

// requireUser pulls the authenticated user from the trusted X-User-ID
// header. Token verification happens upstream of this service.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			respondError(w, http.StatusUnauthorized, "unauthenticated", "missing user identity")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}

func userFrom(r *http.Request) string {
	userID, _ := r.Context().Value(userIDKey).(string)
	return userID
}

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := apiResponse{
		Success: false,
		Error:   &apiError{Code: code, Message: message},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
