package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/papergen/internal/model"
)

// SaveBankVersion stores a processed question bank as the next completed
// version of a course. Questions without an id get one derived from the
// version and position so that every stored candidate has a stable id.
func (s *Store) SaveBankVersion(courseID int64, pool model.CandidatePool, source string) (*model.BankVersion, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRow(
		`SELECT COALESCE(MAX(version), 0) + 1 FROM bank_versions WHERE course_id = ?`, courseID,
	).Scan(&next); err != nil {
		return nil, fmt.Errorf("next bank version: %w", err)
	}

	bv := model.BankVersion{
		ID:        uuid.NewString(),
		CourseID:  courseID,
		Version:   next,
		Status:    model.JobCompleted,
		Source:    source,
		CreatedAt: time.Now(),
	}
	if _, err := tx.Exec(
		`INSERT INTO bank_versions (id, course_id, version, status, source, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		bv.ID, bv.CourseID, bv.Version, bv.Status, bv.Source, bv.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert bank version: %w", err)
	}

	for i, q := range pool.Questions {
		id := q.ID
		if id == "" {
			id = fmt.Sprintf("v%d-q%d", bv.Version, i+1)
		}
		if _, err := tx.Exec(
			`INSERT INTO bank_questions (bank_version_id, position, question_id, text, predicted_marks, bloom_level,
			 difficulty, matched_topic, matched_unit, topic_similarity)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			bv.ID, i, id, q.Text, q.PredictedMarks, q.BloomLevel,
			q.Difficulty, q.MatchedTopic, q.MatchedUnit, q.TopicSimilarity,
		); err != nil {
			return nil, fmt.Errorf("insert bank question %d: %w", i, err)
		}
	}
	for i, t := range pool.Topics {
		if _, err := tx.Exec(
			`INSERT INTO bank_topics (bank_version_id, position, unit, topic_id, topic_name) VALUES (?, ?, ?, ?, ?)`,
			bv.ID, i, t.Unit, t.TopicID, t.TopicName,
		); err != nil {
			return nil, fmt.Errorf("insert bank topic %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	slog.Info("stored question bank", "course_id", courseID, "version", bv.Version,
		"questions", len(pool.Questions), "topics", len(pool.Topics), "source", source)
	return &bv, nil
}

// LatestBank returns the most recent completed bank version of a course and
// its pool. A course without a bank yields a nil version and an empty pool.
func (s *Store) LatestBank(courseID int64) (*model.BankVersion, model.CandidatePool, error) {
	var bv model.BankVersion
	err := s.db.QueryRow(
		`SELECT id, course_id, version, status, source, created_at FROM bank_versions
		 WHERE course_id = ? AND status = ? ORDER BY version DESC LIMIT 1`, courseID, model.JobCompleted,
	).Scan(&bv.ID, &bv.CourseID, &bv.Version, &bv.Status, &bv.Source, &bv.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, model.CandidatePool{}, nil
	}
	if err != nil {
		return nil, model.CandidatePool{}, err
	}
	pool, err := s.bankPool(bv.ID)
	if err != nil {
		return nil, model.CandidatePool{}, err
	}
	return &bv, pool, nil
}

func (s *Store) bankPool(versionID string) (model.CandidatePool, error) {
	pool := model.CandidatePool{
		Questions: []model.CandidateQuestion{},
		Topics:    []model.Topic{},
	}

	rows, err := s.db.Query(
		`SELECT question_id, text, predicted_marks, bloom_level, difficulty, matched_topic, matched_unit, topic_similarity
		 FROM bank_questions WHERE bank_version_id = ? ORDER BY position`, versionID,
	)
	if err != nil {
		return pool, err
	}
	defer rows.Close()
	for rows.Next() {
		var q model.CandidateQuestion
		if err := rows.Scan(&q.ID, &q.Text, &q.PredictedMarks, &q.BloomLevel, &q.Difficulty,
			&q.MatchedTopic, &q.MatchedUnit, &q.TopicSimilarity); err != nil {
			return pool, err
		}
		pool.Questions = append(pool.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return pool, err
	}

	trows, err := s.db.Query(
		`SELECT unit, topic_id, topic_name FROM bank_topics WHERE bank_version_id = ? ORDER BY position`, versionID,
	)
	if err != nil {
		return pool, err
	}
	defer trows.Close()
	for trows.Next() {
		var t model.Topic
		if err := trows.Scan(&t.Unit, &t.TopicID, &t.TopicName); err != nil {
			return pool, err
		}
		pool.Topics = append(pool.Topics, t)
	}
	return pool, trows.Err()
}

// ListBankVersions returns all bank versions of a course, newest first.
func (s *Store) ListBankVersions(courseID int64) ([]model.BankVersion, error) {
	rows, err := s.db.Query(
		`SELECT id, course_id, version, status, source, created_at FROM bank_versions
		 WHERE course_id = ? ORDER BY version DESC`, courseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var versions []model.BankVersion
	for rows.Next() {
		var bv model.BankVersion
		if err := rows.Scan(&bv.ID, &bv.CourseID, &bv.Version, &bv.Status, &bv.Source, &bv.CreatedAt); err != nil {
			return nil, err
		}
		versions = append(versions, bv)
	}
	return versions, rows.Err()
}
