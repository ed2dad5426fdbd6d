package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloud-wave-best-zizon/sale-service/internal/events"
	"github.com/cloud-wave-best-zizon/sale-service/internal/handler"
	"github.com/cloud-wave-best-zizon/sale-service/internal/repository"
	"github.com/cloud-wave-best-zizon/sale-service/internal/service"
	"github.com/cloud-wave-best-zizon/sale-service/pkg/config"
	"github.com/cloud-wave-best-zizon/sale-service/pkg/logging"
	pkgtls "github.com/cloud-wave-best-zizon/sale-service/pkg/tls"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Config 로드
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// Logger 초기화
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to create logger:", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("Service stopped with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("Server exited")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	publisher, err := newPublisher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = publisher.Close() }()

	tlsCfg, err := pkgtls.LoadTLSConfig()
	if err != nil {
		return fmt.Errorf("failed to load TLS config: %w", err)
	}
	serverTLS, source, err := pkgtls.NewServerTLS(ctx, tlsCfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = source.Close() }()

	// Service, Handler 초기화
	productService := service.NewProductService(store, logger)
	saleService := service.NewSaleService(store, publisher, service.SaleServiceConfig{
		ShippingFlatCost: cfg.ShippingFlatCost,
		MaxCartLines:     cfg.MaxCartLines,
	}, logger)

	gin.SetMode(gin.ReleaseMode)
	router := handler.NewRouter(handler.Handlers{
		Products: handler.NewProductHandler(productService, logger),
		Sales:    handler.NewSaleHandler(saleService, cfg.PaymentDetails(), logger),
		Admin:    handler.NewAdminHandler(saleService, logger),
	}, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		TLSConfig:         serverTLS,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting server",
			zap.String("port", cfg.Port),
			zap.Bool("tls", serverTLS != nil),
			zap.Bool("local_mode", cfg.LocalMode))
		var err error
		if serverTLS != nil {
			// 인증서는 SPIRE 소스에서 제공
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if source != nil {
		g.Go(func() error {
			source.Watch(gctx, tlsCfg.WatchInterval)
			return nil
		})
	}

	if cfg.Events.Broker == config.BrokerKafka {
		consumer := events.NewCourierConsumer(cfg.Events.KafkaBrokers, cfg.Events.KafkaGroupID,
			cfg.Events.CourierEventsTopic, saleService, logger)
		g.Go(func() error {
			return consumer.Run(gctx)
		})
	}

	return g.Wait()
}

func newStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Store, error) {
	if cfg.LocalMode {
		store, err := repository.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite store: %w", err)
		}
		logger.Info("Using SQLite store",
			zap.String("path", cfg.SQLitePath),
			zap.String("driver", repository.SQLiteDriverName))
		return store, nil
	}

	// DynamoDB 클라이언트 초기화
	client, err := repository.NewDynamoDBClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create DynamoDB client: %w", err)
	}
	logger.Info("Using DynamoDB store",
		zap.String("region", cfg.AWSRegion),
		zap.String("sale_table", cfg.SaleTableName))
	return repository.NewDynamoStore(client, repository.TablesFromConfig(cfg)), nil
}

func newPublisher(ctx context.Context, cfg *config.Config, logger *zap.Logger) (events.Publisher, error) {
	switch cfg.Events.Broker {
	case config.BrokerKafka:
		logger.Info("Publishing sale events to Kafka",
			zap.String("brokers", cfg.Events.KafkaBrokers),
			zap.String("topic", cfg.Events.SaleEventsTopic))
		return events.NewKafkaProducer(cfg.Events.KafkaBrokers, cfg.Events.SaleEventsTopic, logger), nil
	case config.BrokerRabbitMQ:
		pub, err := events.NewRabbitMQPublisher(ctx, cfg.Events.RabbitMQURL, cfg.Events.RabbitMQExchange, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		return pub, nil
	default:
		return events.NewLogPublisher(logger), nil
	}
}
