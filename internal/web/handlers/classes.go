package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/class-track/internal/engine"
	"github.com/kozaktomas/class-track/internal/state"
	"github.com/kozaktomas/class-track/internal/web/middleware"
)

// ClassesHandler serves the class session endpoints
type ClassesHandler struct {
	state *state.Manager
}

// NewClassesHandler creates a new classes handler
func NewClassesHandler(st *state.Manager) *ClassesHandler {
	return &ClassesHandler{state: st}
}

// visibleTo reports whether a class should be listed for the session's user.
// Admins see everything, teachers see their own classes, students see
// classes they are rostered in.
func visibleTo(c *engine.ClassSession, session *middleware.Session) bool {
	switch session.Role {
	case engine.RoleAdmin:
		return true
	case engine.RoleTeacher:
		return c.TeacherID == session.UserID
	case engine.RoleStudent:
		for _, id := range c.Roster {
			if id == session.UserID {
				return true
			}
		}
	}
	return false
}

// List returns the classes visible to the current user
func (h *ClassesHandler) List(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())
	if session == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	classes := []engine.ClassSession{}
	h.state.Read(func(s *engine.Snapshot) {
		for i := range s.Classes {
			if visibleTo(&s.Classes[i], session) {
				classes = append(classes, s.Classes[i])
			}
		}
	})

	respondJSON(w, http.StatusOK, map[string]any{
		"classes": classes,
		"count":   len(classes),
	})
}

// classDetail is the Get response: the class plus its resolved roster and
// recorded attendance.
type classDetail struct {
	engine.ClassSession
	Students []userView                `json:"students"`
	Records  []engine.AttendanceRecord `json:"records"`
}

// Get returns a single class with roster students and attendance records
func (h *ClassesHandler) Get(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())
	if session == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	classID := chi.URLParam(r, "classId")

	var detail *classDetail
	var forbidden bool
	h.state.Read(func(s *engine.Snapshot) {
		c := s.ClassByID(classID)
		if c == nil {
			return
		}
		if !visibleTo(c, session) {
			forbidden = true
			return
		}

		d := classDetail{
			ClassSession: *c,
			Students:     []userView{},
			Records:      engine.RecordsByClass(s, classID),
		}
		for _, studentID := range c.Roster {
			if u := s.UserByID(studentID); u != nil {
				d.Students = append(d.Students, viewOfUser(*u))
			}
		}
		if d.Records == nil {
			d.Records = []engine.AttendanceRecord{}
		}
		detail = &d
	})

	if forbidden {
		respondError(w, http.StatusForbidden, "forbidden")
		return
	}
	if detail == nil {
		respondError(w, http.StatusNotFound, "class not found")
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

// Attendance returns the attendance records for a class
func (h *ClassesHandler) Attendance(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())
	if session == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	classID := chi.URLParam(r, "classId")

	var found, forbidden bool
	var records []engine.AttendanceRecord
	h.state.Read(func(s *engine.Snapshot) {
		c := s.ClassByID(classID)
		if c == nil {
			return
		}
		found = true
		if !visibleTo(c, session) {
			forbidden = true
			return
		}
		records = engine.RecordsByClass(s, classID)
	})

	if forbidden {
		respondError(w, http.StatusForbidden, "forbidden")
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "class not found")
		return
	}

	if records == nil {
		records = []engine.AttendanceRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"class_id": classID,
		"records":  records,
		"count":    len(records),
	})
}
