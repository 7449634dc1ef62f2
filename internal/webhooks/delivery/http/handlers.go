package http

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/config"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/jobs"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/models"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/prediction"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/webhooks"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/pkg/logger"
)

const maxBodySize = 1 << 20

type webhookHandler struct {
	cfg       *config.Config
	jobRepo   jobs.Repository
	sequencer webhooks.Sequencer
	logger    logger.Logger
}

func NewWebhookHandler(cfg *config.Config, jobRepo jobs.Repository, sequencer webhooks.Sequencer, log logger.Logger) webhooks.Handlers {
	return &webhookHandler{
		cfg:       cfg,
		jobRepo:   jobRepo,
		sequencer: sequencer,
		logger:    log,
	}
}

// HandlePrediction is the push fast-path for prediction completions. It feeds
// the exact same sequencer entrypoint as the status poller; when both observe
// the same terminal event, the store's compare-and-swap guard lets only one
// transition apply.
func (h *webhookHandler) HandlePrediction() echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodySize))
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		}

		if err = webhooks.VerifySignature(body, c.Request().Header.Get(webhooks.SignatureHeader), h.cfg.Webhook.Secret); err != nil {
			h.logger.Warnf("Webhook - rejected delivery: %v", err)
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
		}

		payload := &models.WebhookPayload{}
		if err = json.Unmarshal(body, payload); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		}
		if payload.ID == "" || !payload.Status.IsTerminal() {
			// Only terminal notifications matter; the poller covers the rest.
			return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
		}

		// The payload carries no job id; the owning job is whichever one
		// recorded this handle as its live prediction.
		job, err := h.jobRepo.GetJobByPredictionID(c.Request().Context(), payload.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				h.logger.Infof("Webhook - no job owns prediction %s, ignoring", payload.ID)
				return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
			}
			h.logger.Errorf("Webhook - GetJobByPredictionID error: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
		}

		result := &prediction.PollResult{
			Status: payload.Status,
			Output: payload.Output.URL,
			Error:  payload.Error,
		}
		if err = h.sequencer.HandlePredictionUpdate(c.Request().Context(), job, payload.ID, result); err != nil {
			h.logger.Errorf("Webhook - HandlePredictionUpdate error for job %s: %v", job.JobID, err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "update failed"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "accepted"})
	}
}
