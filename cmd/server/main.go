package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	appalerts "github.com/Dmurillo722/moby/internal/application/service/alerts"
	"github.com/Dmurillo722/moby/internal/application/service/detection"
	appfactors "github.com/Dmurillo722/moby/internal/application/service/factors"
	"github.com/Dmurillo722/moby/internal/config"
	"github.com/Dmurillo722/moby/internal/domain/interfaces"
	infraalerts "github.com/Dmurillo722/moby/internal/infrastructure/alerts"
	"github.com/Dmurillo722/moby/internal/infrastructure/broker"
	inframarketdata "github.com/Dmurillo722/moby/internal/infrastructure/marketdata"
	"github.com/Dmurillo722/moby/internal/infrastructure/notify"
	"github.com/Dmurillo722/moby/internal/infrastructure/stream"
	infrahttp "github.com/Dmurillo722/moby/internal/interfaces/http"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	alertRepo, err := infraalerts.NewRepository(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.Fatalf("failed to init alerts repo: %v", err)
	}
	defer alertRepo.Close()

	marketdataRepo, err := inframarketdata.NewRepository(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.Fatalf("failed to init marketdata repo: %v", err)
	}
	defer marketdataRepo.Close()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var publisher *broker.Publisher
	if cfg.AMQP.URL != "" {
		amqpConn, err := amqp.Dial(cfg.AMQP.URL)
		if err != nil {
			logger.Fatalf("failed to connect to rabbitmq: %v", err)
		}
		defer amqpConn.Close()

		publisher, err = broker.NewPublisher(amqpConn, cfg.AMQP.AlertsExchange, logger)
		if err != nil {
			logger.Fatalf("failed to init alert publisher: %v", err)
		}
		defer publisher.Close()
	}

	notifier := notify.NewEmailNotifier(notify.EmailConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		From:     cfg.SMTP.From,
		Password: cfg.SMTP.Password,
	}, logger)

	engine := detection.NewEngine(detection.Config{
		Window:        cfg.Detection.Window,
		SizeThreshold: cfg.Detection.SizeThreshold,
	}, alertRepo, alertRepo, notifier, alertPublisher(publisher), logger)

	queue := stream.NewQueue(cfg.Pipeline.QueueCapacity)
	connector := stream.NewConnector(stream.FeedConfig{
		URL:          cfg.Feed.URL,
		Key:          cfg.Feed.Key,
		Secret:       cfg.Feed.Secret,
		TradeSymbols: cfg.Feed.TradeSymbols,
		QuoteSymbols: cfg.Feed.QuoteSymbols,
		BarSymbols:   cfg.Feed.BarSymbols,
	}, queue, logger)
	pool := stream.NewWorkerPool(queue, engine, cfg.Pipeline.Workers, logger)

	alertService := appalerts.NewService(alertRepo)
	factorService := appfactors.NewService(marketdataRepo, cfg.Factors.Lookback, cfg.Factors.Basket)

	cacheTTL := time.Duration(cfg.Cache.TTLSeconds) * time.Second
	handler := infrahttp.NewHandler(alertService, factorService, marketdataRepo, connector, queue, redisClient, cacheTTL)

	server := &http.Server{
		Addr:    cfg.HTTP.Addr(),
		Handler: handler,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return connector.Run(gctx)
	})
	g.Go(func() error {
		return pool.Run(gctx)
	})
	g.Go(func() error {
		logger.Infof("HTTP server listening on %s", cfg.HTTP.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	logger.WithFields(logrus.Fields{
		"feed":    cfg.Feed.URL,
		"symbols": len(cfg.Feed.TradeSymbols),
		"workers": cfg.Pipeline.Workers,
	}).Info("pipeline started")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("pipeline stopped with error: %v", err)
	}

	logger.Info("server stopped")
}

// alertPublisher keeps the engine's nil check meaningful when fanout is
// disabled.
func alertPublisher(p *broker.Publisher) interfaces.AlertPublisher {
	if p == nil {
		return nil
	}
	return p
}
