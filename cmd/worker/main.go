package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/compositor"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/config"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/jobs/repository"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/orchestrator"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/prediction"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/pkg/db/aws"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/pkg/db/postgres"
	clientRedis "github.com/bpotrovita1998-maker/vinci-forge-90-sub002/pkg/db/redis"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/pkg/logger"
)

func main() {
	configFile := "config.yml"
	cfgFile, err := config.LoadConfig(configFile)
	if err != nil {
		log.Fatalf("loadConfig: %v", err)
	}
	cfg, err := config.ParseConfig(cfgFile)
	if err != nil {
		log.Fatalf("parseConfig: %v", err)
	}
	appLogger := logger.NewApiLogger(cfg)
	appLogger.InitLogger()
	appLogger.Infof("AppVersion: %s, LogLevel: %s, Mode: %s", cfg.Server.AppVersion, cfg.Logger.Level, cfg.Server.Mode)

	psqlDB, err := postgres.NewPsqlDB(cfg)
	if err != nil {
		appLogger.Fatalf("could not connect to db: %s", err)
	}
	appLogger.Infof("db connected, status: %#v", psqlDB.Stats())
	defer psqlDB.Close()

	redisClient, err := clientRedis.NewRedisClient(cfg)
	if err != nil {
		appLogger.Fatalf("could not connect to redis: %s", err)
	}
	appLogger.Infof("redis connected")
	defer redisClient.Close()

	awsClient, presignClient, err := aws.NewAWSClient(cfg.S3.Endpoint, cfg.S3.Region, cfg.S3.AccessKey, cfg.S3.SecretKey)
	if err != nil {
		appLogger.Fatalf("could not connect to s3: %s", err)
	}

	jobRepo := repository.NewJobRepo(psqlDB)
	redisRepo := repository.NewJobRedisRepo(redisClient, cfg.Redis.ProgressKey)
	awsRepo := repository.NewAwsRepository(awsClient, presignClient)

	gateway := prediction.NewClient(&cfg.Prediction, &cfg.Webhook)
	composer := compositor.NewCompositor(&cfg.Compositor, &cfg.S3, awsRepo, appLogger)
	sequencer := orchestrator.NewSceneSequencer(cfg, jobRepo, redisRepo, gateway, composer, appLogger)
	poller := orchestrator.NewStatusPoller(&cfg.Poller, jobRepo, gateway, sequencer, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	go poller.Run(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, os.Interrupt)
	<-quit

	appLogger.Infof("shutting down worker")
	cancel()
	sequencer.Wait()
}
