package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/papergen/internal/model"
)

// SavePaper persists a generated paper and returns its new ID.
func (s *Store) SavePaper(rec model.PaperRecord) (string, error) {
	assigned, err := json.Marshal(rec.Assigned)
	if err != nil {
		return "", fmt.Errorf("marshal assigned: %w", err)
	}
	stats, err := json.Marshal(rec.Stats)
	if err != nil {
		return "", fmt.Errorf("marshal stats: %w", err)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err = s.db.Exec(
		`INSERT INTO papers (id, course_id, owner_id, exam_type, semester, bank_version_id, assigned_json, rendered_text, stats_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CourseID, rec.OwnerID, rec.ExamType, rec.Semester, rec.BankVersionID,
		string(assigned), rec.RenderedText, string(stats), time.Now(),
	)
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

const paperSelect = `SELECT p.id, p.course_id, c.code, p.owner_id, p.exam_type, p.semester, p.bank_version_id,
	p.assigned_json, p.rendered_text, p.stats_json, p.created_at
	FROM papers p JOIN courses c ON c.id = p.course_id`

func scanPaper(row interface{ Scan(...any) error }) (*model.PaperRecord, error) {
	var (
		p                   model.PaperRecord
		assigned, statsJSON string
	)
	if err := row.Scan(&p.ID, &p.CourseID, &p.CourseCode, &p.OwnerID, &p.ExamType, &p.Semester, &p.BankVersionID,
		&assigned, &p.RenderedText, &statsJSON, &p.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(assigned), &p.Assigned); err != nil {
		return nil, fmt.Errorf("decode paper %s questions: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(statsJSON), &p.Stats); err != nil {
		return nil, fmt.Errorf("decode paper %s stats: %w", p.ID, err)
	}
	return &p, nil
}

// GetPaper returns a paper by ID, or nil if there is none.
func (s *Store) GetPaper(id string) (*model.PaperRecord, error) {
	p, err := scanPaper(s.db.QueryRow(paperSelect+` WHERE p.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// ListPapers returns an owner's papers, newest first.
func (s *Store) ListPapers(ownerID int64) ([]model.PaperRecord, error) {
	return s.queryPapers(paperSelect+` WHERE p.owner_id = ? ORDER BY p.rowid DESC`, ownerID)
}

// ListAllPapers returns every paper, oldest first.
func (s *Store) ListAllPapers() ([]model.PaperRecord, error) {
	return s.queryPapers(paperSelect + ` ORDER BY p.rowid`)
}

func (s *Store) queryPapers(query string, args ...any) ([]model.PaperRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var papers []model.PaperRecord
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		papers = append(papers, *p)
	}
	return papers, rows.Err()
}
