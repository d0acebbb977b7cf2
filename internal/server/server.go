package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"medremind/internal/app"
	"medremind/internal/ratelimit"
	"medremind/internal/util"
	"medremind/pkg/auth"
	"medremind/pkg/domain"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App

	// Limiters are optional; nil disables rate limiting for that route.
	RegisterLimiter *ratelimit.FixedWindowLimiter
	LoginLimiter    *ratelimit.FixedWindowLimiter
}

// Server exposes the HTTP endpoints of the medication reminder API.
type Server struct {
	app             *app.App
	registerLimiter *ratelimit.FixedWindowLimiter
	loginLimiter    *ratelimit.FixedWindowLimiter
	mux             *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:             cfg.App,
		registerLimiter: cfg.RegisterLimiter,
		loginLimiter:    cfg.LoginLimiter,
		mux:             http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/auth/register", s.handleRegister)
	s.mux.HandleFunc("/auth/login", s.handleLogin)

	// medications
	s.mux.Handle("/medications", s.authenticated(s.handleMedications))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrapper
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		user, ok := s.app.UserFromToken(token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.registerLimiter, "Too many registration attempts") {
		return
	}
	var req registerRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	user, token, err := s.app.Register(req.Email, req.Password, req.Name)
	if err != nil {
		s.writeAppError(w, r, err, "Registration failed")
		return
	}
	writeSuccess(w, http.StatusCreated, "Registration successful", authResponse{User: user, Token: token})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "Too many login attempts") {
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	user, token, err := s.app.Login(req.Email, req.Password)
	if err != nil {
		s.writeAppError(w, r, err, "Login failed")
		return
	}
	writeSuccess(w, http.StatusOK, "Login successful", authResponse{User: user, Token: token})
}

func (s *Server) handleMedications(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		meds, err := s.app.ListMedications(user.ID)
		if err != nil {
			s.writeAppError(w, r, err, "Failed to fetch medications")
			return
		}
		writeSuccess(w, http.StatusOK, "Success", meds)
	case http.MethodPost:
		var req createMedicationRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		startDate, err := parseDate(req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid startDate")
			return
		}
		var endDate *time.Time
		if strings.TrimSpace(req.EndDate) != "" {
			parsed, err := parseDate(req.EndDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid endDate")
				return
			}
			endDate = &parsed
		}
		med, err := s.app.CreateMedication(user.ID, app.CreateMedicationInput{
			Name:            req.Name,
			Dosage:          req.Dosage,
			Unit:            req.Unit,
			Frequency:       req.Frequency,
			TimeSlots:       req.TimeSlots,
			StartDate:       startDate,
			EndDate:         endDate,
			TotalSupply:     req.TotalSupply,
			RefillReminder:  req.RefillReminder,
			Instructions:    req.Instructions,
			ReminderEnabled: req.ReminderEnabled,
		})
		if err != nil {
			s.writeAppError(w, r, err, "Failed to create medication")
			return
		}
		writeSuccess(w, http.StatusCreated, "Medication created successfully", med)
	default:
		methodNotAllowed(w)
	}
}

// writeAppError maps known application errors to client statuses and
// downgrades everything else to a generic 500. The original error is only
// logged, never returned to the client.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrRegistrationFieldsRequired),
		errors.Is(err, app.ErrEmailAndPasswordRequired),
		errors.Is(err, app.ErrEmailTaken),
		errors.Is(err, app.ErrMissingFields),
		errors.Is(err, auth.ErrPasswordTooShort):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", util.RequestIDFromRequest(r),
			"err", err,
		)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	if limiter == nil {
		return true
	}
	key := r.URL.Path + "|" + clientIP(r)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	User  domain.User `json:"user"`
	Token string      `json:"token"`
}

type createMedicationRequest struct {
	Name            string   `json:"name"`
	Dosage          string   `json:"dosage"`
	Unit            string   `json:"unit"`
	Frequency       string   `json:"frequency"`
	TimeSlots       []string `json:"timeSlots"`
	StartDate       string   `json:"startDate"`
	EndDate         string   `json:"endDate"`
	TotalSupply     int      `json:"totalSupply"`
	RefillReminder  *int     `json:"refillReminder"`
	Instructions    string   `json:"instructions"`
	ReminderEnabled *bool    `json:"reminderEnabled"`
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}

func clientIP(r *http.Request) string {
	if xfwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xfwd != "" {
		parts := strings.Split(xfwd, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
