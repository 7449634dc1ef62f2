package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/config"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/models"
)

type client struct {
	cfg        *config.PredictionConfig
	webhookCfg *config.WebhookConfig
	httpClient *http.Client
}

func NewClient(cfg *config.PredictionConfig, webhookCfg *config.WebhookConfig) Gateway {
	return &client{
		cfg:        cfg,
		webhookCfg: webhookCfg,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}
}

type submitRequest struct {
	Model   string      `json:"model"`
	Input   submitInput `json:"input"`
	Webhook string      `json:"webhook,omitempty"`
}

type submitInput struct {
	Prompt          string  `json:"prompt,omitempty"`
	Video           string  `json:"video,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
}

type predictionResponse struct {
	ID     string              `json:"id"`
	Status string              `json:"status"`
	Output models.WebhookOutput `json:"output,omitempty"`
	Error  string              `json:"error,omitempty"`
}

func (c *client) Submit(ctx context.Context, input *SubmitInput) (string, error) {
	reqBody := submitRequest{
		Model: input.Model,
		Input: submitInput{
			Prompt:          input.Prompt,
			Video:           input.SourceURL,
			DurationSeconds: input.DurationSeconds,
		},
	}
	if c.webhookCfg.CallbackURL != "" {
		reqBody.Webhook = c.webhookCfg.CallbackURL
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", errors.Wrap(err, "prediction.Submit.Marshal")
	}

	resp, err := c.do(ctx, http.MethodPost, c.cfg.BaseURL+"/predictions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", &models.ExternalServiceError{Op: "submit", Err: fmt.Errorf("empty prediction id")}
	}
	return resp.ID, nil
}

func (c *client) Poll(ctx context.Context, predictionID string) (*PollResult, error) {
	resp, err := c.do(ctx, http.MethodGet, c.cfg.BaseURL+"/predictions/"+predictionID, nil)
	if err != nil {
		return nil, err
	}
	return &PollResult{
		Status: normalizeStatus(resp.Status),
		Output: resp.Output.URL,
		Error:  resp.Error,
	}, nil
}

func (c *client) do(ctx context.Context, method, url string, body io.Reader) (*predictionResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errors.Wrap(err, "prediction.do.NewRequest")
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &models.ExternalServiceError{Op: method + " " + url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &models.ExternalServiceError{
			Op:  method + " " + url,
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(data)),
		}
	}

	var parsed predictionResponse
	if err = json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &models.ExternalServiceError{Op: "decode response", Err: err}
	}
	return &parsed, nil
}

// normalizeStatus folds provider status spellings into the internal set.
func normalizeStatus(status string) models.PredictionStatus {
	switch status {
	case "starting", "processing", "queued", "pending", "in_queue":
		return models.PredictionPending
	case "succeeded", "completed":
		return models.PredictionSucceeded
	case "canceled", "cancelled":
		return models.PredictionCanceled
	default:
		return models.PredictionFailed
	}
}
