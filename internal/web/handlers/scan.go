package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/class-track/internal/engine"
	"github.com/kozaktomas/class-track/internal/state"
)

// eventChannelBuffer sizes each SSE listener channel. A slow consumer drops
// events instead of blocking the scan path.
const eventChannelBuffer = 16

// ScanEvent is one entry on the live scan feed.
type ScanEvent struct {
	Type    string             `json:"type"`
	ClassID string             `json:"class_id"`
	Result  *engine.ScanResult `json:"result,omitempty"`
	Time    time.Time          `json:"time"`
}

// scanFeed broadcasts scan results to SSE listeners.
type scanFeed struct {
	mu        sync.RWMutex
	listeners []chan ScanEvent
}

// AddListener adds an event listener.
func (f *scanFeed) AddListener() chan ScanEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan ScanEvent, eventChannelBuffer)
	f.listeners = append(f.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (f *scanFeed) RemoveListener(ch chan ScanEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, listener := range f.listeners {
		if listener == ch {
			f.listeners = append(f.listeners[:i], f.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// Publish sends an event to all listeners, dropping it for full channels.
func (f *scanFeed) Publish(event ScanEvent) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, ch := range f.listeners {
		select {
		case ch <- event:
		default:
		}
	}
}

// ScanHandler drives capture verification for a running class session
type ScanHandler struct {
	state   *state.Manager
	matcher *engine.Matcher
	feed    scanFeed
}

// NewScanHandler creates a new scan handler
func NewScanHandler(st *state.Manager, matcher *engine.Matcher) *ScanHandler {
	return &ScanHandler{state: st, matcher: matcher}
}

// scanRequest carries one webcam capture. The image arrives base64 encoded,
// with or without a data URL prefix.
type scanRequest struct {
	Image string `json:"image"`
}

// decodeCapture strips an optional data URL prefix and base64-decodes the
// payload.
func decodeCapture(image string) ([]byte, error) {
	if idx := strings.Index(image, ","); idx >= 0 && strings.HasPrefix(image, "data:") {
		image = image[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(image)
	if err != nil {
		return nil, fmt.Errorf("decoding capture: %w", err)
	}
	return data, nil
}

// Scan evaluates one capture against the class roster. The oracle call runs
// against a private snapshot copy so other requests are not blocked; the
// ledger append afterwards is idempotent, so two captures racing on the same
// student converge on a single record.
func (h *ScanHandler) Scan(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "classId")

	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	capture, err := decodeCapture(req.Image)
	if err != nil || len(capture) == 0 {
		respondError(w, http.StatusBadRequest, "image must be base64 encoded")
		return
	}

	snap := h.state.Cloned()
	result, err := h.matcher.Scan(r.Context(), snap, classID, capture)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrClassNotFound):
			respondError(w, http.StatusNotFound, "class not found")
		case errors.Is(err, engine.ErrEmptyCapture):
			respondError(w, http.StatusBadRequest, "capture image is empty")
		case r.Context().Err() != nil:
			// Client went away; nothing to report.
		default:
			log.Printf("scan failed for class %s: %v", sanitizeForLog(classID), err)
			respondError(w, http.StatusInternalServerError, "scan failed")
		}
		return
	}

	if result.Outcome == engine.OutcomeMarkedPresent && result.Record != nil {
		err = h.state.Update(r.Context(), func(s *engine.Snapshot) error {
			existing, err := engine.AppendRecord(s, *result.Record)
			if errors.Is(err, engine.ErrDuplicateRecord) {
				// A concurrent capture won the race; report its record.
				result.Record = existing
				return nil
			}
			return err
		})
		if err != nil {
			log.Printf("failed to persist attendance record: %v", err)
			respondError(w, http.StatusInternalServerError, "failed to record attendance")
			return
		}
	}

	h.feed.Publish(ScanEvent{
		Type:    string(result.Outcome),
		ClassID: classID,
		Result:  result,
		Time:    time.Now(),
	})

	respondJSON(w, http.StatusOK, result)
}

// Events streams scan results for a class as server-sent events until the
// client disconnects.
func (h *ScanHandler) Events(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "classId")

	var exists bool
	h.state.Read(func(s *engine.Snapshot) {
		exists = s.ClassByID(classID) != nil
	})
	if !exists {
		respondError(w, http.StatusNotFound, "class not found")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	eventCh := h.feed.AddListener()
	defer h.feed.RemoveListener(eventCh)

	sendSSEEvent(w, flusher, "connected", map[string]string{"class_id": classID})

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			if event.ClassID != classID {
				continue
			}
			sendSSEEvent(w, flusher, event.Type, event)
		}
	}
}

// sendSSEEvent writes one server-sent event and flushes it.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, payload)
	flusher.Flush()
}
