// Package server exposes the HTTP API and static pages of the health
// assistant.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"beyondcare/internal/app"
	"beyondcare/internal/ratelimit"
	"beyondcare/internal/util"
	"beyondcare/pkg/auth"
	"beyondcare/pkg/domain"
	"beyondcare/pkg/extract"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                        *app.App
	PublicDir                  string
	RedisAddr                  string
	RedisPassword              string
	LoginRateLimitPerMinute    int
	RegisterRateLimitPerMinute int
}

// Server exposes HTTP endpoints for the backend.
type Server struct {
	app             *app.App
	mux             *http.ServeMux
	publicDir       string
	loginLimiter    *ratelimit.FixedWindowLimiter
	registerLimiter *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured. Rate limiting is active
// only when a Redis address is configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app required")
	}
	s := &Server{
		app:       cfg.App,
		mux:       http.NewServeMux(),
		publicDir: cfg.PublicDir,
	}
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		loginLimit := cfg.LoginRateLimitPerMinute
		if loginLimit <= 0 {
			loginLimit = 10
		}
		registerLimit := cfg.RegisterRateLimitPerMinute
		if registerLimit <= 0 {
			registerLimit = 5
		}
		var err error
		s.loginLimiter, err = ratelimit.NewFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "beyondcare:ratelimit:login", loginLimit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init login limiter: %w", err)
		}
		s.registerLimiter, err = ratelimit.NewFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "beyondcare:ratelimit:register", registerLimit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init register limiter: %w", err)
		}
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with middleware applied.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithCORS(util.WithRequestID(util.WithRequestLog(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// accounts
	s.mux.HandleFunc("/api/register", s.handleRegister)
	s.mux.HandleFunc("/api/login", s.handleLogin)

	// assistant (auth required)
	s.mux.Handle("/api/ask", s.authenticated(s.handleAsk))
	s.mux.Handle("/api/symptoms", s.authenticated(s.handleSymptoms))
	s.mux.Handle("/api/bmi", s.authenticated(s.handleBMI))

	// reports & history (auth required)
	s.mux.Handle("/api/reports", s.authenticated(s.handleReports))
	s.mux.Handle("/api/reports/", s.authenticated(s.handleReportByID))
	s.mux.Handle("/api/history", s.authenticated(s.handleHistory))

	// pages
	if s.publicDir != "" {
		s.mux.HandleFunc("/", s.page("index.html"))
		s.mux.HandleFunc("/home", s.page("home.html"))
		s.mux.HandleFunc("/bmi", s.page("bmi.html"))
		s.mux.HandleFunc("/symptoms", s.page("symptoms.html"))
		s.mux.HandleFunc("/chatbot", s.page("chatbot.html"))
		s.mux.HandleFunc("/reports", s.page("reports.html"))
		s.mux.Handle("/js/", http.StripPrefix("/js/", http.FileServer(http.Dir(filepath.Join(s.publicDir, "js")))))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// "/" is a catch-all pattern; only serve the index on an exact match.
		if name == "index.html" && r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		target := filepath.Join(s.publicDir, name)
		if _, err := os.Stat(target); err != nil {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, target)
	}
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "No token")
			return
		}
		user, err := s.app.Authenticate(token)
		if err != nil {
			s.audit(r, "auth.token.verify", "fail")
			writeError(w, http.StatusUnauthorized, "Invalid token")
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
	if !s.allowRate(w, r, s.registerLimiter, "too many registration attempts") {
		s.audit(r, "auth.register", "rate_limited")
		return
	}
	var req registerRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, err := s.app.Register(req.Name, req.Email, req.Password)
	if err != nil {
		s.audit(r, "auth.register", "fail", "reason", err.Error())
		writeAccountError(w, err)
		return
	}
	s.audit(r, "auth.register", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Registration successful"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		s.audit(r, "auth.login", "rate_limited")
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.Login(req.Email, req.Password)
	if err != nil {
		s.audit(r, "auth.login", "fail", "reason", err.Error())
		writeAccountError(w, err)
		return
	}
	s.audit(r, "auth.login", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req askRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	answer, err := s.app.Ask(r.Context(), user, req.Prompt)
	if err != nil {
		writeServerError(w, r, "ask", err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleSymptoms(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req symptomsRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	answer, err := s.app.CheckSymptoms(r.Context(), user, req.Symptoms)
	if err != nil {
		writeServerError(w, r, "symptoms", err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleBMI(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req app.BMIRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	answer, err := s.app.EvaluateBMI(r.Context(), user, req)
	if err != nil {
		writeServerError(w, r, "bmi", err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

// /api/reports
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodPost:
		s.handleUploadReport(w, r, user)
	case http.MethodGet:
		reports, err := s.app.ListReports(user)
		if err != nil {
			writeServerError(w, r, "reports.list", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleUploadReport(w http.ResponseWriter, r *http.Request, user domain.User) {
	maxBytes := s.app.MaxUploadBytes()
	// allow some slack for the multipart framing around the capped file
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+(1<<20))
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required (field: file)")
		return
	}
	defer file.Close()

	mediaType := header.Header.Get("Content-Type")
	if mediaType == "" {
		mediaType = mime.TypeByExtension(strings.ToLower(filepath.Ext(header.Filename)))
	}
	report, err := s.app.UploadReport(r.Context(), user, header.Filename, mediaType, file, header.Size)
	if err != nil {
		var extErr *extract.Error
		switch {
		case errors.Is(err, app.ErrFileTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "file exceeds 10 MiB limit")
		case errors.Is(err, app.ErrFileRequired):
			writeError(w, http.StatusBadRequest, "file is required (field: file)")
		case errors.As(err, &extErr):
			// Extraction failure is fatal to the upload.
			writeServerError(w, r, "reports.extract", err)
		default:
			writeServerError(w, r, "reports.upload", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"report": report, "message": "Analysis complete"})
}

// /api/reports/{id}
func (s *Server) handleReportByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	id := strings.TrimPrefix(r.URL.Path, "/api/reports/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		s.handleDownloadReport(w, r, user, id)
	case http.MethodDelete:
		if err := s.app.DeleteReport(r.Context(), user, id); err != nil {
			if errors.Is(err, app.ErrReportNotFound) {
				writeError(w, http.StatusNotFound, "Report not found")
				return
			}
			writeServerError(w, r, "reports.delete", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleDownloadReport(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	report, rc, err := s.app.OpenReport(r.Context(), user, id)
	if err != nil {
		if errors.Is(err, app.ErrReportNotFound) {
			writeError(w, http.StatusNotFound, "Report not found")
			return
		}
		writeServerError(w, r, "reports.download", err)
		return
	}
	defer rc.Close()

	contentType := report.MediaType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.OriginalFilename))
	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("report download aborted", "report_id", report.ID, "err", err)
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	entries, err := s.app.ListHistory(user)
	if err != nil {
		writeServerError(w, r, "history.list", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type askRequest struct {
	Prompt string `json:"prompt"`
}

type symptomsRequest struct {
	Symptoms string `json:"symptoms"`
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
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

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// writeAccountError maps account flow failures onto user-visible responses.
func writeAccountError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrEmailAlreadyExists),
		errors.Is(err, app.ErrInvalidCredentials),
		errors.Is(err, app.ErrNameEmailPasswordRequired),
		errors.Is(err, app.ErrEmailAndPasswordRequired),
		errors.Is(err, auth.ErrPasswordTooShort):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "Server error")
	}
}

func writeServerError(w http.ResponseWriter, r *http.Request, op string, err error) {
	util.LoggerFromContext(r.Context()).Error("request failed", "op", op, "err", err)
	writeError(w, http.StatusInternalServerError, "Server error")
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

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", clientIP(r),
		"request_id", util.RequestIDFromRequest(r),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}
