package models

import (
	"database/sql"

	"github.com/google/uuid"
)

type TransitionType string

const (
	TransitionNone     TransitionType = "none"
	TransitionFade     TransitionType = "fade"
	TransitionDissolve TransitionType = "dissolve"
	TransitionWipe     TransitionType = "wipe"
)

func (t TransitionType) Valid() bool {
	switch t {
	case TransitionNone, TransitionFade, TransitionDissolve, TransitionWipe:
		return true
	}
	return false
}

type SceneSpec struct {
	SceneID            uuid.UUID      `json:"scene_id" db:"scene_id"`
	JobID              uuid.UUID      `json:"job_id" db:"job_id"`
	SceneOrder         int            `json:"scene_order" db:"scene_order"`
	Prompt             string         `json:"prompt" db:"prompt"`
	DurationSeconds    float64        `json:"duration_seconds" db:"duration_seconds"`
	TrimStart          float64        `json:"trim_start" db:"trim_start"`
	TrimEnd            float64        `json:"trim_end" db:"trim_end"`
	TransitionType     TransitionType `json:"transition_type" db:"transition_type"`
	TransitionDuration float64        `json:"transition_duration" db:"transition_duration"`
	OutputURL          sql.NullString `json:"output_url,omitempty" db:"output_url"`
	PredictionID       sql.NullString `json:"-" db:"prediction_id"`
	Upscaled           bool           `json:"upscaled" db:"upscaled"`
}

// TrimmedDuration is the length of the scene after trimming, the unit the
// transition-duration constraint is checked against.
func (s *SceneSpec) TrimmedDuration() float64 {
	return s.TrimEnd - s.TrimStart
}

type SceneSpecInput struct {
	SceneOrder         int            `json:"scene_order"`
	Prompt             string         `json:"prompt" validate:"required,lte=2048"`
	DurationSeconds    float64        `json:"duration_seconds" validate:"required,gt=0"`
	TrimStart          float64        `json:"trim_start" validate:"gte=0"`
	TrimEnd            float64        `json:"trim_end" validate:"required,gt=0"`
	TransitionType     TransitionType `json:"transition_type"`
	TransitionDuration float64        `json:"transition_duration" validate:"gte=0"`
}
