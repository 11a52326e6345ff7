package engine

import (
	"errors"
	"testing"
	"time"
)

func TestAppendRecord(t *testing.T) {
	s := &Snapshot{}

	rec, err := AppendRecord(s, AttendanceRecord{
		ID:         "r1",
		StudentID:  "s1",
		ClassID:    "c1",
		Timestamp:  time.Now(),
		Status:     StatusPresent,
		Confidence: 0.9,
	})
	if err != nil {
		t.Fatalf("AppendRecord() error = %v", err)
	}
	if rec.ID != "r1" {
		t.Errorf("stored record ID = %s, want r1", rec.ID)
	}
	if len(s.Attendance) != 1 {
		t.Fatalf("ledger length = %d, want 1", len(s.Attendance))
	}
	if !HasRecord(s, "c1", "s1") {
		t.Error("HasRecord() = false after append")
	}
}

func TestAppendRecordDuplicate(t *testing.T) {
	s := &Snapshot{}
	first, _ := AppendRecord(s, AttendanceRecord{ID: "r1", StudentID: "s1", ClassID: "c1", Confidence: 0.9})

	dup, err := AppendRecord(s, AttendanceRecord{ID: "r2", StudentID: "s1", ClassID: "c1", Confidence: 0.7})
	if !errors.Is(err, ErrDuplicateRecord) {
		t.Fatalf("expected ErrDuplicateRecord, got %v", err)
	}
	if dup == nil || dup.ID != first.ID {
		t.Errorf("duplicate append should hand back the existing record, got %+v", dup)
	}
	if len(s.Attendance) != 1 {
		t.Errorf("ledger length = %d after duplicate append, want 1", len(s.Attendance))
	}
	// The first record's confidence wins.
	if s.Attendance[0].Confidence != 0.9 {
		t.Errorf("confidence = %f, want original 0.9", s.Attendance[0].Confidence)
	}
}

func TestAppendRecordSamePairDifferentClass(t *testing.T) {
	s := &Snapshot{}
	AppendRecord(s, AttendanceRecord{ID: "r1", StudentID: "s1", ClassID: "c1"})

	if _, err := AppendRecord(s, AttendanceRecord{ID: "r2", StudentID: "s1", ClassID: "c2"}); err != nil {
		t.Fatalf("same student in another class should append, got %v", err)
	}
	if _, err := AppendRecord(s, AttendanceRecord{ID: "r3", StudentID: "s2", ClassID: "c1"}); err != nil {
		t.Fatalf("another student in the same class should append, got %v", err)
	}
	if len(s.Attendance) != 3 {
		t.Errorf("ledger length = %d, want 3", len(s.Attendance))
	}
}

func TestRecordsByClassOrder(t *testing.T) {
	s := &Snapshot{}
	AppendRecord(s, AttendanceRecord{ID: "r1", StudentID: "s1", ClassID: "c1"})
	AppendRecord(s, AttendanceRecord{ID: "r2", StudentID: "s2", ClassID: "c2"})
	AppendRecord(s, AttendanceRecord{ID: "r3", StudentID: "s3", ClassID: "c1"})

	records := RecordsByClass(s, "c1")
	if len(records) != 2 {
		t.Fatalf("RecordsByClass returned %d records, want 2", len(records))
	}
	if records[0].ID != "r1" || records[1].ID != "r3" {
		t.Errorf("records out of insertion order: %s, %s", records[0].ID, records[1].ID)
	}

	if records := RecordsByClass(s, "missing"); records != nil {
		t.Errorf("unknown class should return nil, got %v", records)
	}
}

func TestRecordsByStudent(t *testing.T) {
	s := &Snapshot{}
	AppendRecord(s, AttendanceRecord{ID: "r1", StudentID: "s1", ClassID: "c1"})
	AppendRecord(s, AttendanceRecord{ID: "r2", StudentID: "s1", ClassID: "c2"})
	AppendRecord(s, AttendanceRecord{ID: "r3", StudentID: "s2", ClassID: "c1"})

	records := RecordsByStudent(s, "s1")
	if len(records) != 2 {
		t.Fatalf("RecordsByStudent returned %d records, want 2", len(records))
	}
	if records[0].ID != "r1" || records[1].ID != "r2" {
		t.Errorf("records out of insertion order: %s, %s", records[0].ID, records[1].ID)
	}
}
