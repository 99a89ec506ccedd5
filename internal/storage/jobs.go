package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of an image processing job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Job is one image processing request.
type Job struct {
	ID               string
	UserID           string
	Operation        string
	Status           JobStatus
	OriginalURL      string
	ResultURL        string
	PipelineID       string
	PipelineStep     int
	CreditsUsed      int
	ProcessingTimeMs int64
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CreateJob records a pending job and returns it with its new ID.
func (s *SQLiteStore) CreateJob(j Job) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	j.ID = uuid.New().String()
	j.Status = JobPending
	j.CreatedAt = now
	j.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO vintography_jobs (id, user_id, operation, status, original_url, pipeline_id,
			pipeline_step, credits_used, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.UserID, j.Operation, j.Status, j.OriginalURL, j.PipelineID, j.PipelineStep, j.CreditsUsed, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return &j, nil
}

// MarkJobProcessing moves a job to processing.
func (s *SQLiteStore) MarkJobProcessing(id string) error {
	return s.updateJob(id, `status = ?, updated_at = ?`, JobProcessing, s.now())
}

// CompleteJob records the result of a successful job.
func (s *SQLiteStore) CompleteJob(id, resultURL string, elapsed time.Duration) error {
	return s.updateJob(id, `status = ?, result_url = ?, processing_time_ms = ?, updated_at = ?`,
		JobCompleted, resultURL, elapsed.Milliseconds(), s.now())
}

// FailJob records a failed job.
func (s *SQLiteStore) FailJob(id, message string, elapsed time.Duration) error {
	return s.updateJob(id, `status = ?, error_message = ?, processing_time_ms = ?, updated_at = ?`,
		JobFailed, message, elapsed.Milliseconds(), s.now())
}

func (s *SQLiteStore) updateJob(id, set string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("UPDATE vintography_jobs SET "+set+" WHERE id = ?", append(args, id)...)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetJob returns a job or nil, nil.
func (s *SQLiteStore) GetJob(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var j Job
	err := s.db.QueryRow(`
		SELECT id, user_id, operation, status, original_url, result_url, pipeline_id, pipeline_step,
			credits_used, processing_time_ms, error_message, created_at, updated_at
		FROM vintography_jobs WHERE id = ?
	`, id).Scan(&j.ID, &j.UserID, &j.Operation, &j.Status, &j.OriginalURL, &j.ResultURL, &j.PipelineID,
		&j.PipelineStep, &j.CreditsUsed, &j.ProcessingTimeMs, &j.ErrorMessage, &j.CreatedAt, &j.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query job: %w", err)
	}
	return &j, nil
}

// PriceCheckRecord is a stored price check result.
type PriceCheckRecord struct {
	UserID         string
	Brand          string
	Title          string
	Condition      string
	Low            float64
	Median         float64
	High           float64
	SuggestedPrice float64
	Confidence     int
	Comparables    int
	SearchURL      string
}

// SavePriceCheck stores a price check and returns its ID.
func (s *SQLiteStore) SavePriceCheck(r PriceCheckRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	_, err := s.db.Exec(`
		INSERT INTO price_checks (id, user_id, brand, title, condition, price_low, price_median, price_high,
			suggested_price, confidence, comparables, search_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, r.UserID, r.Brand, r.Title, r.Condition, r.Low, r.Median, r.High, r.SuggestedPrice,
		r.Confidence, r.Comparables, r.SearchURL, s.now())
	if err != nil {
		return "", fmt.Errorf("failed to save price check: %w", err)
	}
	return id, nil
}

// CountPriceChecks returns how many price checks the user has run.
func (s *SQLiteStore) CountPriceChecks(userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM price_checks WHERE user_id = ?", userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count price checks: %w", err)
	}
	return n, nil
}
