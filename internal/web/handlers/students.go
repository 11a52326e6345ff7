package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/class-track/internal/engine"
	"github.com/kozaktomas/class-track/internal/roster"
	"github.com/kozaktomas/class-track/internal/state"
)

// StudentsHandler serves the student directory endpoints
type StudentsHandler struct {
	state *state.Manager
}

// NewStudentsHandler creates a new students handler
func NewStudentsHandler(st *state.Manager) *StudentsHandler {
	return &StudentsHandler{state: st}
}

// List returns all students, optionally filtered by a free-text query.
// The search is diacritic and case insensitive.
func (h *StudentsHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	var students []engine.User
	h.state.Read(func(s *engine.Snapshot) {
		for _, u := range s.Users {
			if u.Role != engine.RoleStudent {
				continue
			}
			if !roster.MatchesQuery(u.Name, query) {
				continue
			}
			students = append(students, u)
		}
	})

	respondJSON(w, http.StatusOK, map[string]any{
		"students": viewOfUsers(students),
		"count":    len(students),
	})
}

// Get returns a single student by ID
func (h *StudentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentId")

	var view *userView
	h.state.Read(func(s *engine.Snapshot) {
		if u := s.UserByID(studentID); u != nil && u.Role == engine.RoleStudent {
			v := viewOfUser(*u)
			view = &v
		}
	})

	if view == nil {
		respondError(w, http.StatusNotFound, "student not found")
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// Attendance returns a student's attendance records across all classes
func (h *StudentsHandler) Attendance(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentId")

	var found bool
	var records []engine.AttendanceRecord
	h.state.Read(func(s *engine.Snapshot) {
		if u := s.UserByID(studentID); u != nil && u.Role == engine.RoleStudent {
			found = true
			records = engine.RecordsByStudent(s, studentID)
		}
	})

	if !found {
		respondError(w, http.StatusNotFound, "student not found")
		return
	}

	if records == nil {
		records = []engine.AttendanceRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"student_id": studentID,
		"records":    records,
		"count":      len(records),
	})
}

// GrantReenroll allows an enrolled student to restart enrollment. Admin only,
// enforced by route middleware.
func (h *StudentsHandler) GrantReenroll(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentId")

	err := h.state.Update(r.Context(), func(s *engine.Snapshot) error {
		u := s.UserByID(studentID)
		if u == nil || u.Role != engine.RoleStudent {
			return engine.ErrStudentNotFound
		}
		u.ReenrollAllowed = true
		return nil
	})
	if err == engine.ErrStudentNotFound {
		respondError(w, http.StatusNotFound, "student not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update student")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"student_id":       studentID,
		"reenroll_allowed": true,
	})
}
