package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/compositor"
	jobHttp "github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/jobs/delivery/http"
	jobRepository "github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/jobs/repository"
	jobUsecase "github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/jobs/usecase"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/middleware"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/orchestrator"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/prediction"
	webhookHttp "github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/webhooks/delivery/http"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/pkg/utils"
)

func (s *Server) MapHandlers(e *echo.Echo) (*orchestrator.SceneSequencer, error) {
	jRepo := jobRepository.NewJobRepo(s.db)
	jRedisRepo := jobRepository.NewJobRedisRepo(s.redisClient, s.cfg.Redis.ProgressKey)
	jAWSRepo := jobRepository.NewAwsRepository(s.s3Client, s.preSignClient)

	gateway := prediction.NewClient(&s.cfg.Prediction, &s.cfg.Webhook)
	composer := compositor.NewCompositor(&s.cfg.Compositor, &s.cfg.S3, jAWSRepo, s.logger)
	sequencer := orchestrator.NewSceneSequencer(s.cfg, jRepo, jRedisRepo, gateway, composer, s.logger)

	jobUC := jobUsecase.NewJobUseCase(s.cfg, jRepo, jRedisRepo, jAWSRepo, sequencer, s.logger)

	jobHandlers := jobHttp.NewJobHandler(jobUC)
	webhookHandlers := webhookHttp.NewWebhookHandler(s.cfg, jRepo, sequencer, s.logger)

	mw := middleware.NewMiddlewareManager(s.cfg, []string{"*"}, s.logger)
	e.Use(mw.RequestLoggerMiddleware)

	v1 := e.Group("/api/v1")
	health := v1.Group("/health")
	jobGroup := v1.Group("/jobs")
	webhookGroup := v1.Group("/webhooks")

	jobHttp.MapJobRoutes(jobGroup, jobHandlers)
	webhookHttp.MapWebhookRoutes(webhookGroup, webhookHandlers)
	health.GET("", func(c echo.Context) error {
		s.logger.Infof("Health check RequestID: %s", utils.GetRequestID(c))
		return c.JSON(http.StatusOK, map[string]string{"status": "OK"})
	})
	return sequencer, nil
}
