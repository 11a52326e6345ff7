package handlers

import (
	"net/http"

	"github.com/kozaktomas/class-track/internal/engine"
	"github.com/kozaktomas/class-track/internal/oracle"
	"github.com/kozaktomas/class-track/internal/state"
)

// StatsHandler handles statistics endpoints
type StatsHandler struct {
	state    *state.Manager
	provider oracle.Provider
}

// NewStatsHandler creates a new stats handler. provider may be nil when the
// oracle is not configured.
func NewStatsHandler(st *state.Manager, provider oracle.Provider) *StatsHandler {
	return &StatsHandler{state: st, provider: provider}
}

// StatsResponse represents the statistics response
type StatsResponse struct {
	TotalStudents    int `json:"total_students"`
	EnrolledStudents int `json:"enrolled_students"`
	TotalTeachers    int `json:"total_teachers"`
	TotalClasses     int `json:"total_classes"`
	TotalRecords     int `json:"total_records"`

	OracleUsage *UsageInfo `json:"oracle_usage,omitempty"`
}

// UsageInfo represents verification API usage information
type UsageInfo struct {
	Provider     string  `json:"provider"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalCost    float64 `json:"total_cost"`
}

// Get returns aggregate counts over the current snapshot
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	var resp StatsResponse
	h.state.Read(func(s *engine.Snapshot) {
		for i := range s.Users {
			switch s.Users[i].Role {
			case engine.RoleStudent:
				resp.TotalStudents++
				if s.Users[i].Enrolled() {
					resp.EnrolledStudents++
				}
			case engine.RoleTeacher:
				resp.TotalTeachers++
			}
		}
		resp.TotalClasses = len(s.Classes)
		resp.TotalRecords = len(s.Attendance)
	})

	if h.provider != nil {
		usage := h.provider.GetUsage()
		resp.OracleUsage = &UsageInfo{
			Provider:     h.provider.Name(),
			InputTokens:  usage.InputTokens,
			OutputTokens: usage.OutputTokens,
			TotalCost:    usage.TotalCost,
		}
	}

	respondJSON(w, http.StatusOK, resp)
}
