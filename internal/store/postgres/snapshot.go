package postgres

import (
	"context"
	"fmt"

	"github.com/kozaktomas/class-track/internal/engine"
	"github.com/lib/pq"
)

// SnapshotRepository persists the full application snapshot in PostgreSQL.
// Save rewrites every table in one transaction so the database always holds
// a consistent snapshot, matching the in-memory write model.
type SnapshotRepository struct {
	pool *Pool
}

// NewSnapshotRepository creates a new PostgreSQL snapshot repository.
func NewSnapshotRepository(pool *Pool) *SnapshotRepository {
	return &SnapshotRepository{pool: pool}
}

// Load reads the complete snapshot from the database. An empty database
// yields an empty snapshot.
func (r *SnapshotRepository) Load(ctx context.Context) (*engine.Snapshot, error) {
	snap := &engine.Snapshot{}

	rows, err := r.pool.Query(ctx, `
		SELECT id, name, email, password_hash, role, avatar, reenroll_allowed
		FROM users ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u engine.User
		var role string
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.Avatar, &u.ReenrollAllowed); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Role = engine.Role(role)
		snap.Users = append(snap.Users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	if err := r.loadReferences(ctx, snap); err != nil {
		return nil, err
	}
	if err := r.loadClasses(ctx, snap); err != nil {
		return nil, err
	}
	if err := r.loadAttendance(ctx, snap); err != nil {
		return nil, err
	}

	return snap, nil
}

func (r *SnapshotRepository) loadReferences(ctx context.Context, snap *engine.Snapshot) error {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, angle, image FROM enrolled_references ORDER BY user_id, angle
	`)
	if err != nil {
		return fmt.Errorf("load enrolled references: %w", err)
	}
	defer rows.Close()

	refs := make(map[string][][]byte)
	for rows.Next() {
		var userID string
		var angle int
		var image []byte
		if err := rows.Scan(&userID, &angle, &image); err != nil {
			return fmt.Errorf("scan enrolled reference: %w", err)
		}
		refs[userID] = append(refs[userID], image)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate enrolled references: %w", err)
	}

	for i := range snap.Users {
		// Only a complete front/left/right set counts as enrolled.
		if imgs, ok := refs[snap.Users[i].ID]; ok && len(imgs) == engine.ReferenceCount {
			snap.Users[i].References = imgs
		}
	}
	return nil
}

func (r *SnapshotRepository) loadClasses(ctx context.Context, snap *engine.Snapshot) error {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, teacher_id, start_time, end_time FROM classes ORDER BY name
	`)
	if err != nil {
		return fmt.Errorf("load classes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c engine.ClassSession
		if err := rows.Scan(&c.ID, &c.Name, &c.TeacherID, &c.StartTime, &c.EndTime); err != nil {
			return fmt.Errorf("scan class: %w", err)
		}
		snap.Classes = append(snap.Classes, c)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate classes: %w", err)
	}

	rosterRows, err := r.pool.Query(ctx, `
		SELECT class_id, student_id FROM class_roster ORDER BY class_id, position
	`)
	if err != nil {
		return fmt.Errorf("load rosters: %w", err)
	}
	defer rosterRows.Close()

	rosters := make(map[string][]string)
	for rosterRows.Next() {
		var classID, studentID string
		if err := rosterRows.Scan(&classID, &studentID); err != nil {
			return fmt.Errorf("scan roster entry: %w", err)
		}
		rosters[classID] = append(rosters[classID], studentID)
	}
	if err := rosterRows.Err(); err != nil {
		return fmt.Errorf("iterate rosters: %w", err)
	}

	for i := range snap.Classes {
		snap.Classes[i].Roster = rosters[snap.Classes[i].ID]
	}
	return nil
}

func (r *SnapshotRepository) loadAttendance(ctx context.Context, snap *engine.Snapshot) error {
	// seq preserves insertion order across save/load cycles.
	rows, err := r.pool.Query(ctx, `
		SELECT id, student_id, class_id, recorded_at, status, confidence
		FROM attendance ORDER BY seq
	`)
	if err != nil {
		return fmt.Errorf("load attendance: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec engine.AttendanceRecord
		var status string
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.ClassID, &rec.Timestamp, &status, &rec.Confidence); err != nil {
			return fmt.Errorf("scan attendance record: %w", err)
		}
		rec.Status = engine.AttendanceStatus(status)
		snap.Attendance = append(snap.Attendance, rec)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate attendance: %w", err)
	}
	return nil
}

// Save replaces the persisted snapshot inside a single transaction.
func (r *SnapshotRepository) Save(ctx context.Context, snap *engine.Snapshot) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"attendance", "class_roster", "classes", "enrolled_references", "users"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, u := range snap.Users {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, name, email, password_hash, role, avatar, reenroll_allowed)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), u.Avatar, u.ReenrollAllowed)
		if err != nil {
			return fmt.Errorf("insert user %s: %w", u.ID, err)
		}

		for angle, image := range u.References {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO enrolled_references (user_id, angle, image) VALUES ($1, $2, $3)
			`, u.ID, angle, image)
			if err != nil {
				return fmt.Errorf("insert reference for %s: %w", u.ID, err)
			}
		}
	}

	for _, c := range snap.Classes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO classes (id, name, teacher_id, start_time, end_time)
			VALUES ($1, $2, $3, $4, $5)
		`, c.ID, c.Name, c.TeacherID, c.StartTime, c.EndTime)
		if err != nil {
			return fmt.Errorf("insert class %s: %w", c.ID, err)
		}

		for pos, studentID := range c.Roster {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO class_roster (class_id, student_id, position) VALUES ($1, $2, $3)
			`, c.ID, studentID, pos)
			if err != nil {
				return fmt.Errorf("insert roster entry for %s: %w", c.ID, err)
			}
		}
	}

	for _, rec := range snap.Attendance {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO attendance (id, student_id, class_id, recorded_at, status, confidence)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, rec.ID, rec.StudentID, rec.ClassID, rec.Timestamp, string(rec.Status), rec.Confidence)
		if err != nil {
			if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
				return fmt.Errorf("duplicate attendance record for class %s student %s: %w", rec.ClassID, rec.StudentID, err)
			}
			return fmt.Errorf("insert attendance record %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}
