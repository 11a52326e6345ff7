package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kozaktomas/class-track/internal/oracle"
)

// fakeOracle returns a scripted comparison and counts calls.
type fakeOracle struct {
	cmp   *oracle.Comparison
	err   error
	calls int

	// lastReference captures the reference image handed to Compare.
	lastReference []byte
}

func (f *fakeOracle) Name() string { return "fake" }

func (f *fakeOracle) Compare(ctx context.Context, captured, reference []byte) (*oracle.Comparison, error) {
	f.calls++
	f.lastReference = reference
	if f.err != nil {
		return nil, f.err
	}
	return f.cmp, nil
}

func (f *fakeOracle) GetUsage() *oracle.Usage { return &oracle.Usage{} }
func (f *fakeOracle) ResetUsage()             {}

func enrolledUser(id, name string) User {
	return User{
		ID:   id,
		Name: name,
		Role: RoleStudent,
		References: [][]byte{
			[]byte(id + "-front"),
			[]byte(id + "-left"),
			[]byte(id + "-right"),
		},
	}
}

func matcherSnapshot() *Snapshot {
	return &Snapshot{
		Users: []User{
			enrolledUser("s1", "Alice Smith"),
			enrolledUser("s2", "Bob Wilson"),
		},
		Classes: []ClassSession{
			{ID: "c1", Name: "CS101", TeacherID: "t1", Roster: []string{"s1", "s2"}},
		},
	}
}

func testMatcher(f *fakeOracle) *Matcher {
	m := NewMatcher(f, 0)
	m.now = func() time.Time { return time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC) }
	ids := 0
	m.newID = func() string { ids++; return "rec-" + string(rune('0'+ids)) }
	return m
}

func TestScanMarksPresent(t *testing.T) {
	f := &fakeOracle{cmp: &oracle.Comparison{Match: true, Confidence: 0.95, Observations: "same person"}}
	m := testMatcher(f)
	s := matcherSnapshot()

	res, err := m.Scan(context.Background(), s, "c1", []byte("capture"))
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if res.Outcome != OutcomeMarkedPresent {
		t.Fatalf("outcome = %v, want marked_present", res.Outcome)
	}
	if res.StudentID != "s1" || res.StudentName != "Alice Smith" {
		t.Errorf("unexpected student: %s %s", res.StudentID, res.StudentName)
	}
	if res.Record == nil || res.Record.Confidence != 0.95 {
		t.Errorf("unexpected record %+v", res.Record)
	}
	if res.Degraded {
		t.Error("degraded flag set for a successful oracle call")
	}
	if !HasRecord(s, "c1", "s1") {
		t.Error("ledger not updated")
	}
	// The comparison runs against the front reference.
	if string(f.lastReference) != "s1-front" {
		t.Errorf("compared against %q, want the front reference", f.lastReference)
	}
}

func TestScanRosterOrderSelection(t *testing.T) {
	f := &fakeOracle{cmp: &oracle.Comparison{Match: true, Confidence: 0.9}}
	m := testMatcher(f)
	s := matcherSnapshot()

	// s1 already marked; the next pending roster member is s2.
	AppendRecord(s, AttendanceRecord{ID: "r0", StudentID: "s1", ClassID: "c1"})

	res, err := m.Scan(context.Background(), s, "c1", []byte("capture"))
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if res.StudentID != "s2" {
		t.Errorf("selected %s, want s2", res.StudentID)
	}
}

func TestScanThreshold(t *testing.T) {
	tests := []struct {
		name       string
		match      bool
		confidence float64
		want       Outcome
	}{
		{"above threshold", true, 0.61, OutcomeMarkedPresent},
		{"exactly at threshold", true, 0.6, OutcomeNoMatch},
		{"below threshold", true, 0.4, OutcomeNoMatch},
		{"no match high confidence", false, 0.99, OutcomeNoMatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeOracle{cmp: &oracle.Comparison{Match: tt.match, Confidence: tt.confidence}}
			m := testMatcher(f)
			s := matcherSnapshot()

			res, err := m.Scan(context.Background(), s, "c1", []byte("capture"))
			if err != nil {
				t.Fatalf("Scan() error = %v", err)
			}
			if res.Outcome != tt.want {
				t.Errorf("outcome = %v, want %v", res.Outcome, tt.want)
			}
			if tt.want == OutcomeNoMatch && len(s.Attendance) != 0 {
				t.Error("no-match scan must not touch the ledger")
			}
		})
	}
}

func TestScanNoEligibleSubject(t *testing.T) {
	f := &fakeOracle{cmp: &oracle.Comparison{Match: true, Confidence: 0.9}}
	m := testMatcher(f)
	s := matcherSnapshot()

	// Everyone already marked.
	AppendRecord(s, AttendanceRecord{ID: "r1", StudentID: "s1", ClassID: "c1"})
	AppendRecord(s, AttendanceRecord{ID: "r2", StudentID: "s2", ClassID: "c1"})

	res, err := m.Scan(context.Background(), s, "c1", []byte("capture"))
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if res.Outcome != OutcomeNoEligibleSubject {
		t.Errorf("outcome = %v, want no_eligible_subject", res.Outcome)
	}
	if f.calls != 0 {
		t.Errorf("oracle called %d times with no eligible subject, want 0", f.calls)
	}
}

func TestScanUnenrolledPendingStudent(t *testing.T) {
	f := &fakeOracle{cmp: &oracle.Comparison{Match: true, Confidence: 0.9}}
	m := testMatcher(f)
	s := matcherSnapshot()
	s.Users[0].References = nil // first pending student has no references

	res, err := m.Scan(context.Background(), s, "c1", []byte("capture"))
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if res.Outcome != OutcomeNoEligibleSubject {
		t.Errorf("outcome = %v, want no_eligible_subject", res.Outcome)
	}
	if f.calls != 0 {
		t.Error("oracle must not be called for an unenrolled subject")
	}
}

func TestScanClassNotFound(t *testing.T) {
	m := testMatcher(&fakeOracle{cmp: &oracle.Comparison{}})
	s := matcherSnapshot()

	_, err := m.Scan(context.Background(), s, "missing", []byte("capture"))
	if !errors.Is(err, ErrClassNotFound) {
		t.Errorf("err = %v, want ErrClassNotFound", err)
	}
}

func TestScanEmptyCapture(t *testing.T) {
	m := testMatcher(&fakeOracle{cmp: &oracle.Comparison{}})
	s := matcherSnapshot()

	_, err := m.Scan(context.Background(), s, "c1", nil)
	if !errors.Is(err, ErrEmptyCapture) {
		t.Errorf("err = %v, want ErrEmptyCapture", err)
	}
}

func TestScanSequentialCaptures(t *testing.T) {
	f := &fakeOracle{cmp: &oracle.Comparison{Match: true, Confidence: 0.9}}
	m := testMatcher(f)
	s := matcherSnapshot()

	res1, err := m.Scan(context.Background(), s, "c1", []byte("capture"))
	if err != nil {
		t.Fatalf("first Scan() error = %v", err)
	}
	res2, err := m.Scan(context.Background(), s, "c1", []byte("capture"))
	if err != nil {
		t.Fatalf("second Scan() error = %v", err)
	}

	if res1.StudentID != "s1" || res2.StudentID != "s2" {
		t.Errorf("scans selected %s then %s, want s1 then s2", res1.StudentID, res2.StudentID)
	}
	if len(s.Attendance) != 2 {
		t.Errorf("ledger length = %d, want 2", len(s.Attendance))
	}
}

func TestScanDegradedFallback(t *testing.T) {
	f := &fakeOracle{err: errors.New("oracle unreachable")}
	m := testMatcher(f)

	t.Run("fallback match", func(t *testing.T) {
		m.rng = func() float64 { return 0.9 } // above the no-match bias
		s := matcherSnapshot()

		res, err := m.Scan(context.Background(), s, "c1", []byte("capture"))
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		if !res.Degraded {
			t.Error("degraded flag not set on fallback decision")
		}
		if res.Outcome != OutcomeMarkedPresent {
			t.Errorf("outcome = %v, want marked_present", res.Outcome)
		}
		if res.Record.Confidence != fallbackConfidence {
			t.Errorf("fallback confidence = %f, want %f", res.Record.Confidence, fallbackConfidence)
		}
	})

	t.Run("fallback no match", func(t *testing.T) {
		m.rng = func() float64 { return 0.1 } // below the no-match bias
		s := matcherSnapshot()

		res, err := m.Scan(context.Background(), s, "c1", []byte("capture"))
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		if !res.Degraded {
			t.Error("degraded flag not set on fallback decision")
		}
		if res.Outcome != OutcomeNoMatch {
			t.Errorf("outcome = %v, want no_match", res.Outcome)
		}
	})
}

func TestScanCancelledContextDiscardsResult(t *testing.T) {
	f := &fakeOracle{cmp: &oracle.Comparison{Match: true, Confidence: 0.9}}
	m := testMatcher(f)
	s := matcherSnapshot()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Scan(ctx, s, "c1", []byte("capture"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(s.Attendance) != 0 {
		t.Error("cancelled scan must not touch the ledger")
	}
}
