package http

import (
	"github.com/labstack/echo/v4"

	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/jobs"
)

func MapJobRoutes(jobGroup *echo.Group, h jobs.Handlers) {
	jobGroup.POST("", h.CreateJob())
	jobGroup.GET("", h.ListJobs())
	jobGroup.GET("/:job_id", h.GetJobByID())
	jobGroup.GET("/:job_id/progress", h.GetProgress())
	jobGroup.GET("/:job_id/artifact", h.GetArtifact())
	jobGroup.POST("/:job_id/cancel", h.CancelJob())
}
