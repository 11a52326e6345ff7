// Package engine implements the attendance-session matching core: the
// snapshot data model, the append-only attendance ledger, the three-step
// reference enrollment sequencer, and the session matcher that turns capture
// events into attendance decisions.
//
// Every operation works on an explicit Snapshot value instead of shared
// global state, so the whole engine can be driven deterministically from
// tests without a UI or storage harness.
package engine

import (
	"errors"
	"strings"
	"time"
)

// ErrEmailTaken is returned when an account with the requested email
// already exists.
var ErrEmailTaken = errors.New("email is already registered")

// Role marks what a user account is allowed to do.
type Role string

// User roles.
const (
	RoleAdmin   Role = "ADMIN"
	RoleTeacher Role = "TEACHER"
	RoleStudent Role = "STUDENT"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	return r == RoleAdmin || r == RoleTeacher || r == RoleStudent
}

// AttendanceStatus is the status recorded on an attendance record. The
// matcher only ever produces PRESENT; LATE/ABSENT are derived elsewhere.
type AttendanceStatus string

// StatusPresent is the only status the session matcher writes.
const StatusPresent AttendanceStatus = "PRESENT"

// Reference angle indexes into User.References. The front view doubles as
// the comparison baseline during scanning.
const (
	AngleFront = iota
	AngleLeft
	AngleRight
)

// ReferenceCount is the number of angles a complete enrollment holds. A
// user has either zero references or exactly this many.
const ReferenceCount = 3

// User is one account in the snapshot. Students additionally carry their
// enrolled reference images and the re-enrollment grant flag.
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`
	Avatar       string `json:"avatar,omitempty"`

	// References holds the enrolled images in front, left, right order.
	// Either empty or exactly ReferenceCount entries; partial sets live
	// only inside an in-flight Sequencer and are never installed here.
	References [][]byte `json:"-"`

	// ReenrollAllowed gates restarting enrollment once a complete
	// reference set exists. Granted by an admin.
	ReenrollAllowed bool `json:"reenroll_allowed"`
}

// Enrolled reports whether the user holds a complete reference set.
func (u *User) Enrolled() bool {
	return len(u.References) == ReferenceCount
}

// ClassSession is one scheduled class with an ordered roster. The roster
// order matters: the matcher selects pending students in this order.
type ClassSession struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	TeacherID string   `json:"teacher_id"`
	StartTime string   `json:"start_time"`
	EndTime   string   `json:"end_time"`
	Roster    []string `json:"roster"`
}

// AttendanceRecord is one presence mark. Records are created exactly once
// per (class, student) pair and never mutated afterwards.
type AttendanceRecord struct {
	ID         string           `json:"id"`
	StudentID  string           `json:"student_id"`
	ClassID    string           `json:"class_id"`
	Timestamp  time.Time        `json:"timestamp"`
	Status     AttendanceStatus `json:"status"`
	Confidence float64          `json:"confidence"`
}

// Snapshot is the full application state the engine operates on. The
// persistence collaborator loads one on start and saves one after each
// mutation; the engine itself never does I/O.
type Snapshot struct {
	Users      []User
	Classes    []ClassSession
	Attendance []AttendanceRecord
}

// Clone returns a deep copy. Updates always run on a clone so readers of
// the current snapshot are never exposed to a half-applied mutation.
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{
		Users:      make([]User, len(s.Users)),
		Classes:    make([]ClassSession, len(s.Classes)),
		Attendance: make([]AttendanceRecord, len(s.Attendance)),
	}
	copy(c.Attendance, s.Attendance)

	for i, u := range s.Users {
		cu := u
		if u.References != nil {
			cu.References = make([][]byte, len(u.References))
			for j, ref := range u.References {
				img := make([]byte, len(ref))
				copy(img, ref)
				cu.References[j] = img
			}
		}
		c.Users[i] = cu
	}

	for i, cl := range s.Classes {
		cc := cl
		if cl.Roster != nil {
			cc.Roster = make([]string, len(cl.Roster))
			copy(cc.Roster, cl.Roster)
		}
		c.Classes[i] = cc
	}

	return c
}

// UserByID returns a pointer into the snapshot, or nil.
func (s *Snapshot) UserByID(id string) *User {
	for i := range s.Users {
		if s.Users[i].ID == id {
			return &s.Users[i]
		}
	}
	return nil
}

// UserByEmail returns a pointer into the snapshot, or nil. Emails are
// compared case-insensitively since they come from login forms.
func (s *Snapshot) UserByEmail(email string) *User {
	for i := range s.Users {
		if strings.EqualFold(s.Users[i].Email, email) {
			return &s.Users[i]
		}
	}
	return nil
}

// ClassByID returns a pointer into the snapshot, or nil.
func (s *Snapshot) ClassByID(id string) *ClassSession {
	for i := range s.Classes {
		if s.Classes[i].ID == id {
			return &s.Classes[i]
		}
	}
	return nil
}
