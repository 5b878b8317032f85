package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
)

type RenderJobStatus string

const (
	RenderJobStatusPending    RenderJobStatus = "pending"
	RenderJobStatusProcessing RenderJobStatus = "processing"
	RenderJobStatusCompleted  RenderJobStatus = "completed"
	RenderJobStatusFailed     RenderJobStatus = "failed"
)

// RenderJob is one explainer-video request moving through the pipeline.
// Key is derived from the prompt content, so resubmitting the same
// question/answer pair maps onto the same job and the same artifact names.
type RenderJob struct {
	ID          string
	Key         string
	Question    string
	UserAnswer  string
	Status      RenderJobStatus
	Attempts    int
	MaxAttempts int
	LastError   string
	VideoKey    string
	VideoURL    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   time.Time
	FinishedAt  time.Time
}

// JobKey returns the deterministic storage/dedup key for a prompt pair.
// The NUL separator keeps ("ab","c") and ("a","bc") distinct.
func JobKey(question, userAnswer string) string {
	h := sha256.New()
	h.Write([]byte(question))
	h.Write([]byte{0})
	h.Write([]byte(userAnswer))
	return hex.EncodeToString(h.Sum(nil))
}

func NewRenderJob(question, userAnswer string, maxAttempts int) *RenderJob {
	now := time.Now()
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &RenderJob{
		ID:          ulid.Make().String(),
		Key:         JobKey(question, userAnswer),
		Question:    question,
		UserAnswer:  userAnswer,
		Status:      RenderJobStatusPending,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Live reports whether the job still occupies its key, i.e. a resubmission
// of the same prompt should attach to it instead of creating a new job.
func (j *RenderJob) Live() bool {
	return j.Status == RenderJobStatusPending || j.Status == RenderJobStatusProcessing
}

// ExhaustedAttempts is true once a retryable failure may no longer requeue.
func (j *RenderJob) ExhaustedAttempts() bool {
	return j.Attempts >= j.MaxAttempts
}
