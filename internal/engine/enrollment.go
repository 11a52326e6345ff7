package engine

import "errors"

// EnrollmentStage is the position of a Sequencer in the fixed capture flow.
type EnrollmentStage int

// Enrollment stages, in capture order.
const (
	StageAwaitingFront EnrollmentStage = iota
	StageAwaitingLeft
	StageAwaitingRight
	StageComplete
)

// String returns the wire name of the stage.
func (s EnrollmentStage) String() string {
	switch s {
	case StageAwaitingFront:
		return "AWAITING_FRONT"
	case StageAwaitingLeft:
		return "AWAITING_LEFT"
	case StageAwaitingRight:
		return "AWAITING_RIGHT"
	case StageComplete:
		return "COMPLETE"
	default:
		return "UNKNOWN"
	}
}

// Enrollment and capture errors.
var (
	ErrPermissionDenied   = errors.New("re-enrollment is not permitted for this student")
	ErrEmptyCapture       = errors.New("capture image is empty")
	ErrSequenceComplete   = errors.New("enrollment sequence is already complete")
	ErrSequenceIncomplete = errors.New("enrollment sequence is not complete")
	ErrSequenceCancelled  = errors.New("enrollment sequence was cancelled")
	ErrStudentNotFound    = errors.New("student not found in snapshot")
	ErrNotAStudent        = errors.New("only student accounts hold reference images")
)

// Sequencer drives the three-step reference capture flow for one student:
// AWAITING_FRONT -> AWAITING_LEFT -> AWAITING_RIGHT -> COMPLETE. Captures
// accumulate in a pending buffer that is only installed into a snapshot by
// Commit once the flow is complete. Abandoning the sequencer at any earlier
// point has no effect on the student.
type Sequencer struct {
	studentID string
	stage     EnrollmentStage
	pending   [][]byte
	cancelled bool

	// delay paces each capture transition, standing in for feature
	// extraction time. Nil means no pause; tests leave it nil.
	delay func()
}

// NewSequencer starts an enrollment run for the student. A student who
// already holds a complete reference set must have the re-enrollment grant,
// otherwise the run is refused with ErrPermissionDenied.
func NewSequencer(student *User, delay func()) (*Sequencer, error) {
	if student == nil {
		return nil, ErrStudentNotFound
	}
	if student.Role != RoleStudent {
		return nil, ErrNotAStudent
	}
	if student.Enrolled() && !student.ReenrollAllowed {
		return nil, ErrPermissionDenied
	}
	return &Sequencer{
		studentID: student.ID,
		stage:     StageAwaitingFront,
		delay:     delay,
	}, nil
}

// StudentID returns the student this sequencer enrolls.
func (q *Sequencer) StudentID() string { return q.studentID }

// Stage returns the current stage.
func (q *Sequencer) Stage() EnrollmentStage { return q.stage }

// Complete reports whether all three angles have been captured.
func (q *Sequencer) Complete() bool { return q.stage == StageComplete }

// Capture buffers one image and advances to the next stage. The image is
// opaque to the engine; only non-emptiness is checked.
func (q *Sequencer) Capture(image []byte) (EnrollmentStage, error) {
	if q.cancelled {
		return q.stage, ErrSequenceCancelled
	}
	if q.stage == StageComplete {
		return q.stage, ErrSequenceComplete
	}
	if len(image) == 0 {
		return q.stage, ErrEmptyCapture
	}

	if q.delay != nil {
		q.delay()
	}

	buf := make([]byte, len(image))
	copy(buf, image)
	q.pending = append(q.pending, buf)
	q.stage++
	return q.stage, nil
}

// Cancel abandons the run and discards the pending buffer. The student's
// installed references are untouched; the sequencer cannot be reused.
func (q *Sequencer) Cancel() {
	q.pending = nil
	q.cancelled = true
}

// Commit atomically installs the three captured references into the
// student's record in the snapshot, replacing any prior set. It fails unless
// the sequence reached COMPLETE with a full buffer. The buffer is retained,
// so a commit whose surrounding save failed can be replayed against a fresh
// snapshot clone.
func (q *Sequencer) Commit(s *Snapshot) (*User, error) {
	if q.stage != StageComplete || len(q.pending) != ReferenceCount {
		return nil, ErrSequenceIncomplete
	}
	student := s.UserByID(q.studentID)
	if student == nil {
		return nil, ErrStudentNotFound
	}
	refs := make([][]byte, ReferenceCount)
	for i, img := range q.pending {
		buf := make([]byte, len(img))
		copy(buf, img)
		refs[i] = buf
	}
	student.References = refs
	return student, nil
}
