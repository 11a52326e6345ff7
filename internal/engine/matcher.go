package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/class-track/internal/oracle"
)

// MatchThreshold is the confidence a comparison must strictly exceed to
// mark a student present. A fixed design constant, not per-class config.
const MatchThreshold = 0.6

// Degraded-mode constants: when the oracle is unreachable the matcher
// substitutes a biased random decision so the session keeps moving. The
// substitution is always flagged on the result.
const (
	fallbackNoMatchBias = 0.3
	fallbackConfidence  = 0.85
)

// Outcome classifies what a single capture did to the session.
type Outcome string

// Scan outcomes.
const (
	// OutcomeMarkedPresent means a record was appended (or already
	// existed, in which case the append was an idempotent no-op).
	OutcomeMarkedPresent Outcome = "marked_present"
	// OutcomeNoMatch means the comparison ran but did not pass the
	// match-and-threshold rule. The ledger is untouched.
	OutcomeNoMatch Outcome = "no_match"
	// OutcomeNoEligibleSubject means there was no pending roster member,
	// or the selected one has no enrolled references. No oracle call is
	// made in this case.
	OutcomeNoEligibleSubject Outcome = "no_eligible_subject"
)

// ErrClassNotFound is returned when scanning against an unknown class.
var ErrClassNotFound = errors.New("class not found in snapshot")

// ScanResult is the structured result of one capture event.
type ScanResult struct {
	Outcome     Outcome `json:"outcome"`
	StudentID   string  `json:"student_id,omitempty"`
	StudentName string  `json:"student_name,omitempty"`

	// Confidence and Observations echo the oracle's comparison.
	Confidence   float64 `json:"confidence"`
	Observations string  `json:"observations,omitempty"`

	// Degraded is set when the oracle call failed and the decision came
	// from the random fallback. The record shape is identical either way;
	// this flag is the audit trail.
	Degraded bool `json:"degraded"`

	Record *AttendanceRecord `json:"record,omitempty"`
}

// Matcher turns capture events into at most one attendance decision per
// call. It consults the oracle but owns the selection policy, the decision
// rule, and the ledger append.
type Matcher struct {
	oracle oracle.Provider

	// timeout bounds a single oracle call; zero means unbounded, which
	// matches the original behavior. On expiry the call fails and the
	// degraded fallback applies.
	timeout time.Duration

	// Injection points for deterministic tests.
	now   func() time.Time
	newID func() string
	rng   func() float64
}

// NewMatcher creates a matcher backed by the given verification provider.
// timeout bounds each comparison call; pass 0 for no bound.
func NewMatcher(p oracle.Provider, timeout time.Duration) *Matcher {
	return &Matcher{
		oracle:  p,
		timeout: timeout,
		now:     time.Now,
		newID:   uuid.NewString,
		rng:     rand.Float64,
	}
}

// nextPendingStudent picks the first roster member without a ledger record,
// in roster-insertion order. The capture is assumed to show that student;
// the oracle validates the guess rather than choosing among candidates.
// Known limitation, preserved deliberately: students must be scanned in
// roster order.
func nextPendingStudent(s *Snapshot, class *ClassSession) *User {
	for _, studentID := range class.Roster {
		if !HasRecord(s, class.ID, studentID) {
			return s.UserByID(studentID)
		}
	}
	return nil
}

// Scan evaluates one capture for the class and appends at most one PRESENT
// record to the snapshot's ledger. The returned result distinguishes a mark,
// a failed comparison, an empty candidate pool, and a degraded (fallback)
// decision; none of these terminate the session.
func (m *Matcher) Scan(ctx context.Context, s *Snapshot, classID string, capture []byte) (*ScanResult, error) {
	class := s.ClassByID(classID)
	if class == nil {
		return nil, fmt.Errorf("%w: %s", ErrClassNotFound, classID)
	}
	if len(capture) == 0 {
		return nil, ErrEmptyCapture
	}

	student := nextPendingStudent(s, class)
	if student == nil || len(student.References) == 0 {
		return &ScanResult{Outcome: OutcomeNoEligibleSubject}, nil
	}

	cmp, degraded := m.compare(ctx, capture, student.References[AngleFront])

	// The operator may have navigated away while the comparison was in
	// flight. A stale result must not touch the ledger.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &ScanResult{
		StudentID:    student.ID,
		StudentName:  student.Name,
		Confidence:   cmp.Confidence,
		Observations: cmp.Observations,
		Degraded:     degraded,
	}

	if !cmp.Match || cmp.Confidence <= MatchThreshold {
		result.Outcome = OutcomeNoMatch
		return result, nil
	}

	rec, err := AppendRecord(s, AttendanceRecord{
		ID:         m.newID(),
		StudentID:  student.ID,
		ClassID:    class.ID,
		Timestamp:  m.now(),
		Status:     StatusPresent,
		Confidence: cmp.Confidence,
	})
	if err != nil && !errors.Is(err, ErrDuplicateRecord) {
		return nil, err
	}
	// A duplicate means a concurrent capture already marked this student;
	// AppendRecord handed back the existing record and we report success.
	result.Outcome = OutcomeMarkedPresent
	result.Record = rec
	return result, nil
}

// compare asks the oracle for a verdict. When the call fails the session
// must not stall, so a flagged random stand-in decision is substituted.
func (m *Matcher) compare(ctx context.Context, capture, reference []byte) (*oracle.Comparison, bool) {
	if m.oracle == nil {
		return &oracle.Comparison{
			Match:        m.rng() > fallbackNoMatchBias,
			Confidence:   fallbackConfidence,
			Observations: "no verification provider configured; degraded decision",
		}, true
	}

	callCtx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	cmp, err := m.oracle.Compare(callCtx, capture, reference)
	if err != nil {
		log.Printf("oracle comparison failed, falling back to degraded decision: %v", err)
		return &oracle.Comparison{
			Match:        m.rng() > fallbackNoMatchBias,
			Confidence:   fallbackConfidence,
			Observations: "verification service unavailable; degraded decision",
		}, true
	}
	return cmp, false
}
