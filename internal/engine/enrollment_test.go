package engine

import (
	"errors"
	"testing"
)

func testStudent() *User {
	return &User{ID: "s1", Name: "Alice Smith", Role: RoleStudent}
}

func runFullSequence(t *testing.T, q *Sequencer) {
	t.Helper()
	for i, img := range [][]byte{[]byte("front"), []byte("left"), []byte("right")} {
		if _, err := q.Capture(img); err != nil {
			t.Fatalf("capture %d failed: %v", i, err)
		}
	}
}

func TestSequencerStageProgression(t *testing.T) {
	q, err := NewSequencer(testStudent(), nil)
	if err != nil {
		t.Fatalf("NewSequencer() error = %v", err)
	}

	if q.Stage() != StageAwaitingFront {
		t.Errorf("initial stage = %v, want AWAITING_FRONT", q.Stage())
	}

	stage, err := q.Capture([]byte("front"))
	if err != nil || stage != StageAwaitingLeft {
		t.Errorf("after first capture: stage = %v, err = %v", stage, err)
	}
	stage, err = q.Capture([]byte("left"))
	if err != nil || stage != StageAwaitingRight {
		t.Errorf("after second capture: stage = %v, err = %v", stage, err)
	}
	stage, err = q.Capture([]byte("right"))
	if err != nil || stage != StageComplete {
		t.Errorf("after third capture: stage = %v, err = %v", stage, err)
	}
	if !q.Complete() {
		t.Error("Complete() = false after three captures")
	}

	if _, err := q.Capture([]byte("extra")); !errors.Is(err, ErrSequenceComplete) {
		t.Errorf("fourth capture: err = %v, want ErrSequenceComplete", err)
	}
}

func TestSequencerEmptyCapture(t *testing.T) {
	q, _ := NewSequencer(testStudent(), nil)

	if _, err := q.Capture(nil); !errors.Is(err, ErrEmptyCapture) {
		t.Errorf("empty capture: err = %v, want ErrEmptyCapture", err)
	}
	if q.Stage() != StageAwaitingFront {
		t.Error("failed capture must not advance the stage")
	}
}

func TestSequencerPermissionGuard(t *testing.T) {
	enrolled := testStudent()
	enrolled.References = [][]byte{[]byte("f"), []byte("l"), []byte("r")}

	if _, err := NewSequencer(enrolled, nil); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("enrolled student without grant: err = %v, want ErrPermissionDenied", err)
	}

	enrolled.ReenrollAllowed = true
	if _, err := NewSequencer(enrolled, nil); err != nil {
		t.Errorf("enrolled student with grant: err = %v, want nil", err)
	}

	teacher := &User{ID: "t1", Role: RoleTeacher}
	if _, err := NewSequencer(teacher, nil); !errors.Is(err, ErrNotAStudent) {
		t.Errorf("teacher: err = %v, want ErrNotAStudent", err)
	}

	if _, err := NewSequencer(nil, nil); !errors.Is(err, ErrStudentNotFound) {
		t.Errorf("nil student: err = %v, want ErrStudentNotFound", err)
	}
}

func TestSequencerCommit(t *testing.T) {
	s := &Snapshot{Users: []User{*testStudent()}}
	q, _ := NewSequencer(&s.Users[0], nil)
	runFullSequence(t, q)

	student, err := q.Commit(s)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if !student.Enrolled() {
		t.Error("student not enrolled after commit")
	}
	if string(student.References[AngleFront]) != "front" ||
		string(student.References[AngleLeft]) != "left" ||
		string(student.References[AngleRight]) != "right" {
		t.Error("references committed in wrong order")
	}
}

func TestSequencerCommitReplayable(t *testing.T) {
	s := &Snapshot{Users: []User{*testStudent()}}
	q, _ := NewSequencer(&s.Users[0], nil)
	runFullSequence(t, q)

	if _, err := q.Commit(s); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	// When the save of the first commit's snapshot fails, the commit is
	// replayed against a fresh clone. The pending buffer must survive.
	s2 := &Snapshot{Users: []User{*testStudent()}}
	student, err := q.Commit(s2)
	if err != nil {
		t.Fatalf("replayed Commit() error = %v", err)
	}
	if !student.Enrolled() {
		t.Error("student not enrolled after replayed commit")
	}

	// Installed references must not alias the buffer or each other.
	s.Users[0].References[AngleFront][0] = 'X'
	if string(s2.Users[0].References[AngleFront]) != "front" {
		t.Error("replayed commit shares reference storage with the first")
	}
}

func TestSequencerCommitIncomplete(t *testing.T) {
	s := &Snapshot{Users: []User{*testStudent()}}
	q, _ := NewSequencer(&s.Users[0], nil)
	q.Capture([]byte("front"))

	if _, err := q.Commit(s); !errors.Is(err, ErrSequenceIncomplete) {
		t.Errorf("incomplete commit: err = %v, want ErrSequenceIncomplete", err)
	}
	if s.Users[0].Enrolled() {
		t.Error("incomplete commit must not install references")
	}
}

func TestSequencerCancel(t *testing.T) {
	existing := [][]byte{[]byte("of"), []byte("ol"), []byte("or")}
	s := &Snapshot{Users: []User{{ID: "s1", Role: RoleStudent, References: existing, ReenrollAllowed: true}}}

	q, err := NewSequencer(&s.Users[0], nil)
	if err != nil {
		t.Fatalf("NewSequencer() error = %v", err)
	}
	q.Capture([]byte("front"))
	q.Capture([]byte("left"))
	q.Cancel()

	if _, err := q.Capture([]byte("right")); !errors.Is(err, ErrSequenceCancelled) {
		t.Errorf("capture after cancel: err = %v, want ErrSequenceCancelled", err)
	}
	if _, err := q.Commit(s); err == nil {
		t.Error("commit after cancel should fail")
	}
	// Cancel leaves the previously installed references alone.
	if string(s.Users[0].References[AngleFront]) != "of" {
		t.Error("cancel must not touch installed references")
	}
}

func TestSequencerReenrollReplacesReferences(t *testing.T) {
	existing := [][]byte{[]byte("of"), []byte("ol"), []byte("or")}
	s := &Snapshot{Users: []User{{ID: "s1", Role: RoleStudent, References: existing, ReenrollAllowed: true}}}

	q, _ := NewSequencer(&s.Users[0], nil)
	runFullSequence(t, q)

	if _, err := q.Commit(s); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if string(s.Users[0].References[AngleFront]) != "front" {
		t.Error("commit should replace the old reference set")
	}
}

func TestSequencerDelayCalledPerCapture(t *testing.T) {
	calls := 0
	q, _ := NewSequencer(testStudent(), func() { calls++ })
	runFullSequence(t, q)

	if calls != 3 {
		t.Errorf("delay called %d times, want 3", calls)
	}
}
