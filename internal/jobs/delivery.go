package jobs

import "github.com/labstack/echo/v4"

type Handlers interface {
	CreateJob() echo.HandlerFunc
	GetJobByID() echo.HandlerFunc
	ListJobs() echo.HandlerFunc
	GetProgress() echo.HandlerFunc
	GetArtifact() echo.HandlerFunc
	CancelJob() echo.HandlerFunc
}
