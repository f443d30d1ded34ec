package processing

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pavelanni/papergen/internal/model"
)

// JobStore persists processing jobs and the banks they yield.
type JobStore interface {
	CreateJob(courseID int64, bankFile, syllabusFile string) (*model.ProcessingJob, error)
	GetJob(id string) (*model.ProcessingJob, error)
	UpdateJob(id, externalID string, status model.JobStatus, message string) error
	ListActiveJobs() ([]model.ProcessingJob, error)
	SaveBankVersion(courseID int64, pool model.CandidatePool, source string) (*model.BankVersion, error)
}

// Service drives jobs through the processor and stores completed banks.
type Service struct {
	client   *Client
	store    JobStore
	interval time.Duration

	// mu serializes refreshes so a completed job stores its bank once.
	mu sync.Mutex
}

func NewService(client *Client, store JobStore, interval time.Duration) *Service {
	return &Service{client: client, store: store, interval: interval}
}

// Start records a job for the course and submits it. A failed submission is
// recorded on the job and returned as an error.
func (s *Service) Start(ctx context.Context, course model.Course, bankFile, syllabusFile string) (*model.ProcessingJob, error) {
	job, err := s.store.CreateJob(course.ID, bankFile, syllabusFile)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	externalID, err := s.client.Submit(ctx, SubmitRequest{
		CourseCode:   course.Code,
		BankFile:     bankFile,
		SyllabusFile: syllabusFile,
	})
	if err != nil {
		if uerr := s.store.UpdateJob(job.ID, "", model.JobFailed, err.Error()); uerr != nil {
			slog.Error("failed to record job failure", "job_id", job.ID, "error", uerr)
		}
		return nil, err
	}
	if err := s.store.UpdateJob(job.ID, externalID, model.JobProcessing, ""); err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}
	return s.store.GetJob(job.ID)
}

// Refresh polls the processor once for a job. Terminal jobs are returned
// unchanged. When the processor reports completion the result is stored as
// a new bank version of the job's course.
func (s *Service) Refresh(ctx context.Context, jobID string) (*model.ProcessingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.store.GetJob(jobID)
	if err != nil || job == nil {
		return job, err
	}
	if job.Status.Terminal() || job.ExternalID == "" {
		return job, nil
	}

	res, err := s.client.Status(ctx, job.ExternalID)
	if err != nil {
		return nil, err
	}
	if res.Status == job.Status && res.Message == job.Message {
		return job, nil
	}

	if res.Status == model.JobCompleted {
		bv, err := s.store.SaveBankVersion(job.CourseID, *res.Pool, "processing:"+job.ExternalID)
		if err != nil {
			return nil, fmt.Errorf("store bank: %w", err)
		}
		res.Message = fmt.Sprintf("bank version %d", bv.Version)
	}
	if err := s.store.UpdateJob(job.ID, job.ExternalID, res.Status, res.Message); err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}
	slog.Info("processing job updated", "job_id", job.ID, "status", res.Status, "message", res.Message)
	return s.store.GetJob(job.ID)
}

// Run polls all active jobs every interval until ctx is done. It returns
// immediately when polling is disabled or the processor is not configured.
func (s *Service) Run(ctx context.Context) {
	if s.interval <= 0 || !s.client.Configured() {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshActive(ctx)
		}
	}
}

func (s *Service) refreshActive(ctx context.Context) {
	jobs, err := s.store.ListActiveJobs()
	if err != nil {
		slog.Error("failed to list active jobs", "error", err)
		return
	}
	for _, j := range jobs {
		if _, err := s.Refresh(ctx, j.ID); err != nil {
			slog.Warn("failed to refresh processing job", "job_id", j.ID, "error", err)
		}
	}
}
