package http

import (
	"github.com/labstack/echo/v4"

	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/webhooks"
)

func MapWebhookRoutes(webhookGroup *echo.Group, h webhooks.Handlers) {
	webhookGroup.POST("/prediction", h.HandlePrediction())
}
