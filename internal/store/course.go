package store

import (
	"database/sql"
	"strings"
	"time"

	"github.com/pavelanni/papergen/internal/model"
)

const courseColumns = `id, owner_id, code, name, semester, created_at`

func scanCourse(row interface{ Scan(...any) error }) (*model.Course, error) {
	var c model.Course
	if err := row.Scan(&c.ID, &c.OwnerID, &c.Code, &c.Name, &c.Semester, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCourse inserts a course. Course codes are stored upper-case and are
// unique per owner.
func (s *Store) CreateCourse(c model.Course) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO courses (owner_id, code, name, semester, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.OwnerID, normalizeCode(c.Code), c.Name, c.Semester, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetCourse returns an owner's course by code, or nil if there is none.
func (s *Store) GetCourse(ownerID int64, code string) (*model.Course, error) {
	c, err := scanCourse(s.db.QueryRow(
		`SELECT `+courseColumns+` FROM courses WHERE owner_id = ? AND code = ?`, ownerID, normalizeCode(code),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// EnsureCourse returns the owner's course, creating it when missing.
func (s *Store) EnsureCourse(ownerID int64, code, name, semester string) (*model.Course, error) {
	c, err := s.GetCourse(ownerID, code)
	if err != nil || c != nil {
		return c, err
	}
	if _, err := s.CreateCourse(model.Course{OwnerID: ownerID, Code: code, Name: name, Semester: semester}); err != nil {
		return nil, err
	}
	return s.GetCourse(ownerID, code)
}

// ListCourses returns an owner's courses ordered by code.
func (s *Store) ListCourses(ownerID int64) ([]model.Course, error) {
	rows, err := s.db.Query(`SELECT `+courseColumns+` FROM courses WHERE owner_id = ? ORDER BY code`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var courses []model.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, *c)
	}
	return courses, rows.Err()
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
