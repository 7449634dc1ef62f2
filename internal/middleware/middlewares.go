package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/config"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/pkg/logger"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/pkg/utils"
)

type MiddlewareManager struct {
	cfg     *config.Config
	origins []string
	logger  logger.Logger
}

func NewMiddlewareManager(cfg *config.Config, origins []string, logger logger.Logger) *MiddlewareManager {
	return &MiddlewareManager{
		cfg:     cfg,
		origins: origins,
		logger:  logger,
	}
}

// RequestLoggerMiddleware logs method, path, status and latency per request.
func (mw *MiddlewareManager) RequestLoggerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		req := c.Request()
		res := c.Response()
		mw.logger.Infof("RequestID: %s, Method: %s, URI: %s, Status: %v, Time: %s",
			utils.GetRequestID(c),
			req.Method,
			req.URL,
			res.Status,
			time.Since(start),
		)
		return err
	}
}
