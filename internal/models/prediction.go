package models

import "encoding/json"

type PredictionStatus string

const (
	PredictionPending   PredictionStatus = "pending"
	PredictionSucceeded PredictionStatus = "succeeded"
	PredictionFailed    PredictionStatus = "failed"
	PredictionCanceled  PredictionStatus = "canceled"
)

func (s PredictionStatus) IsTerminal() bool {
	switch s {
	case PredictionSucceeded, PredictionFailed, PredictionCanceled:
		return true
	}
	return false
}

// WebhookPayload is the signed push notification from the prediction service.
// It carries the external prediction id, never a job id; the owning job is
// resolved through the recorded active handle.
type WebhookPayload struct {
	ID     string           `json:"id" validate:"required"`
	Status PredictionStatus `json:"status" validate:"required"`
	Output WebhookOutput    `json:"output,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// WebhookOutput accepts both a single URL and a URL list; some models return
// one, some the other. First entry wins for a list.
type WebhookOutput struct {
	URL string
}

func (o *WebhookOutput) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		o.URL = single
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	if len(many) > 0 {
		o.URL = many[0]
	}
	return nil
}

func (o WebhookOutput) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.URL)
}
