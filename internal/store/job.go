package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/papergen/internal/model"
)

const jobColumns = `id, course_id, external_id, status, message, bank_file, syllabus_file, created_at, updated_at`

// CreateJob records a new processing job in pending state.
func (s *Store) CreateJob(courseID int64, bankFile, syllabusFile string) (*model.ProcessingJob, error) {
	now := time.Now()
	job := model.ProcessingJob{
		ID:           uuid.NewString(),
		CourseID:     courseID,
		Status:       model.JobPending,
		BankFile:     bankFile,
		SyllabusFile: syllabusFile,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err := s.db.Exec(
		`INSERT INTO processing_jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.CourseID, job.ExternalID, job.Status, job.Message, job.BankFile, job.SyllabusFile, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJob returns a job by ID, or nil if there is none.
func (s *Store) GetJob(id string) (*model.ProcessingJob, error) {
	var j model.ProcessingJob
	err := s.db.QueryRow(`SELECT `+jobColumns+` FROM processing_jobs WHERE id = ?`, id).Scan(
		&j.ID, &j.CourseID, &j.ExternalID, &j.Status, &j.Message, &j.BankFile, &j.SyllabusFile, &j.CreatedAt, &j.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// UpdateJob stores the external id, status and message of a job.
func (s *Store) UpdateJob(id, externalID string, status model.JobStatus, message string) error {
	_, err := s.db.Exec(
		`UPDATE processing_jobs SET external_id = ?, status = ?, message = ?, updated_at = ? WHERE id = ?`,
		externalID, status, message, time.Now(), id,
	)
	return err
}

// ListActiveJobs returns jobs that have not reached a terminal state, oldest first.
func (s *Store) ListActiveJobs() ([]model.ProcessingJob, error) {
	rows, err := s.db.Query(
		`SELECT `+jobColumns+` FROM processing_jobs WHERE status IN (?, ?) ORDER BY created_at`,
		model.JobPending, model.JobProcessing,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var jobs []model.ProcessingJob
	for rows.Next() {
		var j model.ProcessingJob
		if err := rows.Scan(&j.ID, &j.CourseID, &j.ExternalID, &j.Status, &j.Message, &j.BankFile, &j.SyllabusFile, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
