package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/class-track/internal/engine"
	"github.com/kozaktomas/class-track/internal/state"
	"github.com/kozaktomas/class-track/internal/web/middleware"
)

// DefaultCaptureDelay paces each enrollment capture, standing in for the
// reference processing time a real feature extractor would need. Tests pass
// zero to skip the pause.
const DefaultCaptureDelay = 800 * time.Millisecond

// activeSequence is one in-flight enrollment run with its owner.
type activeSequence struct {
	seq   *engine.Sequencer
	owner string // user ID that started the run
}

// EnrollmentHandler drives the three-step reference capture flow over HTTP.
// One run per student may be in flight at a time; runs live in memory and
// touch the snapshot only on commit.
type EnrollmentHandler struct {
	state *state.Manager
	delay time.Duration

	mu     sync.Mutex
	active map[string]*activeSequence // keyed by student ID
}

// NewEnrollmentHandler creates a new enrollment handler
func NewEnrollmentHandler(st *state.Manager, delay time.Duration) *EnrollmentHandler {
	return &EnrollmentHandler{
		state:  st,
		delay:  delay,
		active: make(map[string]*activeSequence),
	}
}

// canEnroll reports whether the session user may run enrollment for the
// student. Students enroll themselves; admins enroll anyone.
func canEnroll(session *middleware.Session, studentID string) bool {
	if session == nil {
		return false
	}
	return session.Role == engine.RoleAdmin || session.UserID == studentID
}

// stageResponse is the wire shape of an enrollment state transition.
type stageResponse struct {
	StudentID string `json:"student_id"`
	Stage     string `json:"stage"`
	Enrolled  bool   `json:"enrolled,omitempty"`
}

// Start begins an enrollment run for a student
func (h *EnrollmentHandler) Start(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentId")
	session := middleware.GetSessionFromContext(r.Context())
	if !canEnroll(session, studentID) {
		respondError(w, http.StatusForbidden, "forbidden")
		return
	}

	var student *engine.User
	h.state.Read(func(s *engine.Snapshot) {
		if u := s.UserByID(studentID); u != nil {
			copied := *u
			student = &copied
		}
	})
	if student == nil {
		respondError(w, http.StatusNotFound, "student not found")
		return
	}

	var pace func()
	if h.delay > 0 {
		pace = func() { time.Sleep(h.delay) }
	}
	seq, err := engine.NewSequencer(student, pace)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrPermissionDenied):
			respondError(w, http.StatusForbidden, "re-enrollment requires an admin grant")
		case errors.Is(err, engine.ErrNotAStudent):
			respondError(w, http.StatusBadRequest, "only students can be enrolled")
		default:
			respondError(w, http.StatusInternalServerError, "failed to start enrollment")
		}
		return
	}

	h.mu.Lock()
	// Starting over replaces any abandoned run for the same student.
	h.active[studentID] = &activeSequence{seq: seq, owner: session.UserID}
	h.mu.Unlock()

	respondJSON(w, http.StatusCreated, stageResponse{
		StudentID: studentID,
		Stage:     seq.Stage().String(),
	})
}

// lookup returns the active run for a student if the session user owns it.
func (h *EnrollmentHandler) lookup(session *middleware.Session, studentID string) (*activeSequence, int, string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	run, ok := h.active[studentID]
	if !ok {
		return nil, http.StatusNotFound, "no enrollment in progress for this student"
	}
	if session == nil || (session.Role != engine.RoleAdmin && session.UserID != run.owner) {
		return nil, http.StatusForbidden, "forbidden"
	}
	return run, 0, ""
}

// captureRequest carries one enrollment capture image (base64).
type captureRequest struct {
	Image string `json:"image"`
}

// Capture records the next reference angle for an active run. Completing the
// third capture installs the reference set into the snapshot.
func (h *EnrollmentHandler) Capture(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentId")
	session := middleware.GetSessionFromContext(r.Context())

	run, status, msg := h.lookup(session, studentID)
	if run == nil {
		respondError(w, status, msg)
		return
	}

	var req captureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	image, err := decodeCapture(req.Image)
	if err != nil {
		respondError(w, http.StatusBadRequest, "image must be base64 encoded")
		return
	}

	// A run still active at COMPLETE means a previous commit failed to
	// persist; skip straight to replaying the commit.
	stage := run.seq.Stage()
	if stage != engine.StageComplete {
		stage, err = run.seq.Capture(image)
		if err != nil {
			switch {
			case errors.Is(err, engine.ErrEmptyCapture):
				respondError(w, http.StatusBadRequest, "capture image is empty")
			case errors.Is(err, engine.ErrSequenceCancelled):
				respondError(w, http.StatusConflict, "enrollment sequence was cancelled")
			default:
				respondError(w, http.StatusInternalServerError, "capture failed")
			}
			return
		}
	}

	if stage != engine.StageComplete {
		respondJSON(w, http.StatusOK, stageResponse{
			StudentID: studentID,
			Stage:     stage.String(),
		})
		return
	}

	// All three angles captured; install them atomically.
	err = h.state.Update(r.Context(), func(s *engine.Snapshot) error {
		_, err := run.seq.Commit(s)
		return err
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to save enrollment")
		return
	}

	h.mu.Lock()
	delete(h.active, studentID)
	h.mu.Unlock()

	respondJSON(w, http.StatusOK, stageResponse{
		StudentID: studentID,
		Stage:     engine.StageComplete.String(),
		Enrolled:  true,
	})
}

// Cancel abandons an active run, leaving installed references untouched
func (h *EnrollmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentId")
	session := middleware.GetSessionFromContext(r.Context())

	run, status, msg := h.lookup(session, studentID)
	if run == nil {
		respondError(w, status, msg)
		return
	}

	run.seq.Cancel()

	h.mu.Lock()
	delete(h.active, studentID)
	h.mu.Unlock()

	respondJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

// Status reports the stage of an active run, if any
func (h *EnrollmentHandler) Status(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentId")
	session := middleware.GetSessionFromContext(r.Context())

	run, status, msg := h.lookup(session, studentID)
	if run == nil {
		respondError(w, status, msg)
		return
	}

	respondJSON(w, http.StatusOK, stageResponse{
		StudentID: studentID,
		Stage:     run.seq.Stage().String(),
	})
}
