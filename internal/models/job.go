package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusUpscaling JobStatus = "upscaling"
	JobStatusEncoding  JobStatus = "encoding"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether the status absorbs all further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

type Job struct {
	JobID              uuid.UUID      `json:"job_id" db:"job_id" validate:"omitempty"`
	Status             JobStatus      `json:"status" db:"status" validate:"omitempty"`
	Scenes             []*SceneSpec   `json:"scenes" validate:"required,min=1,dive"`
	ActivePredictionID sql.NullString `json:"-" db:"active_prediction_id"`
	Upscale            bool           `json:"upscale" db:"upscale"`
	ProgressStage      JobStatus      `json:"-" db:"progress_stage"`
	ProgressPercent    int            `json:"-" db:"progress_percent"`
	ProgressMessage    string         `json:"-" db:"progress_message"`
	Error              sql.NullString `json:"error,omitempty" db:"error"`
	FinalArtifactURL   sql.NullString `json:"final_artifact_url,omitempty" db:"final_artifact_url"`
	CreatedAt          time.Time      `json:"created_at" db:"created_at"`
	StartedAt          sql.NullTime   `json:"started_at,omitempty" db:"started_at"`
	CompletedAt        sql.NullTime   `json:"completed_at,omitempty" db:"completed_at"`
}

// OutputCount is the number of scenes with a recorded output. Outputs live on
// the scene rows, keyed by scene order, so the count can never exceed the
// scene count and arrival order is irrelevant.
func (j *Job) OutputCount() int {
	n := 0
	for _, s := range j.Scenes {
		if s.OutputURL.Valid {
			n++
		}
	}
	return n
}

// UpscaledCount is the number of scenes whose output has gone through the
// upscale pass.
func (j *Job) UpscaledCount() int {
	n := 0
	for _, s := range j.Scenes {
		if s.Upscaled {
			n++
		}
	}
	return n
}

// SceneByOrder returns the scene occupying the given position in the final
// sequence, or nil. Scene order is authoritative over arrival order.
func (j *Job) SceneByOrder(order int) *SceneSpec {
	for _, s := range j.Scenes {
		if s.SceneOrder == order {
			return s
		}
	}
	return nil
}

// SceneByPredictionID resolves the scene a prediction handle was issued for.
func (j *Job) SceneByPredictionID(predictionID string) *SceneSpec {
	for _, s := range j.Scenes {
		if s.PredictionID.Valid && s.PredictionID.String == predictionID {
			return s
		}
	}
	return nil
}

type JobList struct {
	Jobs       []*Job `json:"jobs"`
	TotalCount int    `json:"total_count"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	HasMore    bool   `json:"has_more"`
}

type Progress struct {
	Stage   JobStatus `json:"stage" redis:"stage"`
	Percent int       `json:"percent" redis:"percent"`
	Message string    `json:"message" redis:"message"`
	ETA     string    `json:"eta,omitempty" redis:"eta"`
}

type JobCreateInput struct {
	Scenes  []*SceneSpecInput `json:"scenes" validate:"required,min=1,dive"`
	Upscale bool              `json:"upscale"`
}

type CancelInput struct {
	Reason string `json:"reason" validate:"required,lte=512"`
}
