package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/kozaktomas/class-track/internal/engine"
	"github.com/kozaktomas/class-track/internal/oracle"
	"github.com/kozaktomas/class-track/internal/state"
	"github.com/kozaktomas/class-track/internal/store/mock"
	"github.com/kozaktomas/class-track/internal/web/middleware"
)

// testPasswordHash is the bcrypt hash of "secret", shared across tests to
// avoid re-hashing in every case.
var testPasswordHash = func() string {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return string(hash)
}()

func testReferences(id string) [][]byte {
	return [][]byte{
		[]byte(id + "-front"),
		[]byte(id + "-left"),
		[]byte(id + "-right"),
	}
}

// testSnapshot builds the standard fixture: an admin, a teacher, one
// enrolled and one unenrolled student, and a class with both students.
func testSnapshot() *engine.Snapshot {
	return &engine.Snapshot{
		Users: []engine.User{
			{ID: "admin", Name: "Dr. Sarah Connor", Email: "admin@school.com", PasswordHash: testPasswordHash, Role: engine.RoleAdmin},
			{ID: "teacher", Name: "John Doe", Email: "teacher@school.com", PasswordHash: testPasswordHash, Role: engine.RoleTeacher},
			{ID: "alice", Name: "Alice Smith", Email: "alice@school.com", PasswordHash: testPasswordHash, Role: engine.RoleStudent, References: testReferences("alice")},
			{ID: "bob", Name: "Bob Wilson", Email: "bob@school.com", PasswordHash: testPasswordHash, Role: engine.RoleStudent},
		},
		Classes: []engine.ClassSession{
			{ID: "c1", Name: "CS101: Intro to AI", TeacherID: "teacher", StartTime: "09:00", EndTime: "10:30", Roster: []string{"alice", "bob"}},
		},
	}
}

// newTestState builds a state manager over an in-memory store seeded with
// the standard fixture.
func newTestState(t *testing.T, snap *engine.Snapshot) (*state.Manager, *mock.SnapshotStore) {
	t.Helper()
	st := mock.NewSnapshotStore()
	if snap != nil {
		st.Seed(snap)
	}
	m, err := state.NewManager(context.Background(), st)
	if err != nil {
		t.Fatalf("failed to create state manager: %v", err)
	}
	return m, st
}

// stubOracle is a scripted verification provider for handler tests.
type stubOracle struct {
	cmp   *oracle.Comparison
	err   error
	calls int
}

func (s *stubOracle) Name() string { return "stub" }

func (s *stubOracle) Compare(ctx context.Context, captured, reference []byte) (*oracle.Comparison, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.cmp, nil
}

func (s *stubOracle) GetUsage() *oracle.Usage { return &oracle.Usage{} }
func (s *stubOracle) ResetUsage()             {}

// requestWithSession creates a request carrying an authenticated session.
func requestWithSession(method, path string, body []byte, userID string, role engine.Role) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	session := &middleware.Session{ID: "test-session", UserID: userID, Role: role}
	return req.WithContext(middleware.SetSessionInContext(req.Context(), session))
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// scanBody builds the JSON body for a scan or capture request.
func scanBody(t *testing.T, image []byte) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]string{
		"image": base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	return body
}

// decodeBody decodes a JSON response body into out.
func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(out); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}
