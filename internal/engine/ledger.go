package engine

import "errors"

// ErrDuplicateRecord is returned by AppendRecord when the class already
// holds a record for the student. Callers racing on the same capture treat
// it as an idempotent success, not a failure.
var ErrDuplicateRecord = errors.New("attendance record already exists for this class and student")

// findRecord returns a pointer to the ledger record for the pair, or nil.
func findRecord(s *Snapshot, classID, studentID string) *AttendanceRecord {
	for i := range s.Attendance {
		if s.Attendance[i].ClassID == classID && s.Attendance[i].StudentID == studentID {
			return &s.Attendance[i]
		}
	}
	return nil
}

// HasRecord reports whether the ledger holds a record for the pair.
func HasRecord(s *Snapshot, classID, studentID string) bool {
	return findRecord(s, classID, studentID) != nil
}

// AppendRecord appends rec to the ledger and returns the stored record.
// At most one record may exist per (class, student) pair; a second append
// for the same pair fails with ErrDuplicateRecord and leaves the ledger
// untouched, so the first record's confidence is always the one retained.
func AppendRecord(s *Snapshot, rec AttendanceRecord) (*AttendanceRecord, error) {
	if existing := findRecord(s, rec.ClassID, rec.StudentID); existing != nil {
		return existing, ErrDuplicateRecord
	}
	s.Attendance = append(s.Attendance, rec)
	return &s.Attendance[len(s.Attendance)-1], nil
}

// RecordsByClass returns the class ledger in insertion order, oldest first.
func RecordsByClass(s *Snapshot, classID string) []AttendanceRecord {
	var records []AttendanceRecord
	for _, rec := range s.Attendance {
		if rec.ClassID == classID {
			records = append(records, rec)
		}
	}
	return records
}

// RecordsByStudent returns the student's records across all classes in
// insertion order, oldest first.
func RecordsByStudent(s *Snapshot, studentID string) []AttendanceRecord {
	var records []AttendanceRecord
	for _, rec := range s.Attendance {
		if rec.StudentID == studentID {
			records = append(records, rec)
		}
	}
	return records
}
