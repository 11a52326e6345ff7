package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kozaktomas/class-track/internal/engine"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// userView is the public JSON shape of a user. The User struct already
// hides the password hash and reference images; this adds the derived
// enrollment flag clients key off.
type userView struct {
	engine.User
	Enrolled bool `json:"enrolled"`
}

func viewOfUser(u engine.User) userView {
	return userView{User: u, Enrolled: u.Enrolled()}
}

func viewOfUsers(users []engine.User) []userView {
	views := make([]userView, len(users))
	for i, u := range users {
		views[i] = viewOfUser(u)
	}
	return views
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
