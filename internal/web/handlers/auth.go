package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/kozaktomas/class-track/internal/engine"
	"github.com/kozaktomas/class-track/internal/state"
	"github.com/kozaktomas/class-track/internal/web/middleware"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	state          *state.Manager
	sessionManager *middleware.SessionManager
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(st *state.Manager, sm *middleware.SessionManager) *AuthHandler {
	return &AuthHandler{
		state:          st,
		sessionManager: sm,
	}
}

// loginRequest represents a login request
type loginRequest struct {
	email    string
	password string
}

func (l *loginRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal login request: %w", err)
	}
	l.email = raw["email"]
	l.password = raw["password"]
	return nil
}

// LoginResponse represents a login response
type LoginResponse struct {
	Success   bool      `json:"success"`
	SessionID string    `json:"session_id,omitempty"`
	ExpiresAt string    `json:"expires_at,omitempty"`
	User      *userView `json:"user,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	// Require both email and password
	if req.email == "" || req.password == "" {
		respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	var user *engine.User
	h.state.Read(func(s *engine.Snapshot) {
		if u := s.UserByEmail(req.email); u != nil {
			copied := *u
			user = &copied
		}
	})

	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.password)) != nil {
		respondJSON(w, http.StatusUnauthorized, LoginResponse{
			Success: false,
			Error:   "invalid credentials",
		})
		return
	}

	session, err := h.sessionManager.CreateSession(r.Context(), user.ID, user.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	h.sessionManager.SetSessionCookie(w, session)

	view := viewOfUser(*user)
	respondJSON(w, http.StatusOK, LoginResponse{
		Success:   true,
		SessionID: session.ID,
		ExpiresAt: session.ExpiresAt.Format("2006-01-02T15:04:05Z"),
		User:      &view,
	})
}

// Logout handles user logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session := h.sessionManager.GetSessionFromRequest(r)
	if session != nil {
		h.sessionManager.DeleteSession(r.Context(), session.ID)
	}
	h.sessionManager.ClearSessionCookie(w)
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Status returns the current session state and user
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	session := h.sessionManager.GetSessionFromRequest(r)
	if session == nil {
		respondJSON(w, http.StatusOK, map[string]bool{"authenticated": false})
		return
	}

	var view *userView
	h.state.Read(func(s *engine.Snapshot) {
		if u := s.UserByID(session.UserID); u != nil {
			v := viewOfUser(*u)
			view = &v
		}
	})

	respondJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"session":       session.ToJSON(),
		"user":          view,
	})
}

// signUpRequest represents a self-service account creation request
type signUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp creates a new student account
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "name, email and password are required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user := engine.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         engine.RoleStudent,
		Avatar:       fmt.Sprintf("https://picsum.photos/seed/%s/200", uuid.NewString()[:8]),
	}

	err = h.state.Update(r.Context(), func(s *engine.Snapshot) error {
		if s.UserByEmail(user.Email) != nil {
			return engine.ErrEmailTaken
		}
		s.Users = append(s.Users, user)
		return nil
	})
	if err == engine.ErrEmailTaken {
		respondError(w, http.StatusConflict, "email is already registered")
		return
	}
	if err != nil {
		log.Printf("sign up failed for %s: %v", sanitizeForLog(req.Email), err)
		respondError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	session, err := h.sessionManager.CreateSession(r.Context(), user.ID, user.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	h.sessionManager.SetSessionCookie(w, session)

	view := viewOfUser(user)
	respondJSON(w, http.StatusCreated, LoginResponse{
		Success:   true,
		SessionID: session.ID,
		ExpiresAt: session.ExpiresAt.Format("2006-01-02T15:04:05Z"),
		User:      &view,
	})
}
