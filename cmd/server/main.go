package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fekuna/omnipos-margin-service/config"
	"github.com/fekuna/omnipos-margin-service/internal/auth"
	"github.com/fekuna/omnipos-margin-service/internal/costing"
	"github.com/fekuna/omnipos-margin-service/internal/event"
	"github.com/fekuna/omnipos-margin-service/internal/inventory"
	appmw "github.com/fekuna/omnipos-margin-service/internal/middleware"
	"github.com/fekuna/omnipos-margin-service/internal/migrations"
	"github.com/fekuna/omnipos-margin-service/internal/model"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/broker"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/cache"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/postgres"
	"github.com/fekuna/omnipos-margin-service/internal/pkg/search"
	"github.com/fekuna/omnipos-margin-service/internal/product"
	"github.com/fekuna/omnipos-margin-service/internal/purchase"
	"github.com/fekuna/omnipos-margin-service/internal/report"

	dashH "github.com/fekuna/omnipos-margin-service/internal/dashboard/handler"
	dashUCPkg "github.com/fekuna/omnipos-margin-service/internal/dashboard/usecase"

	invH "github.com/fekuna/omnipos-margin-service/internal/inventory/handler"
	invRepoPkg "github.com/fekuna/omnipos-margin-service/internal/inventory/repository"
	invUCPkg "github.com/fekuna/omnipos-margin-service/internal/inventory/usecase"

	pricingH "github.com/fekuna/omnipos-margin-service/internal/pricing/handler"

	prodH "github.com/fekuna/omnipos-margin-service/internal/product/handler"
	prodRepoPkg "github.com/fekuna/omnipos-margin-service/internal/product/repository"
	prodUCPkg "github.com/fekuna/omnipos-margin-service/internal/product/usecase"

	purH "github.com/fekuna/omnipos-margin-service/internal/purchase/handler"
	purRepoPkg "github.com/fekuna/omnipos-margin-service/internal/purchase/repository"
	purUCPkg "github.com/fekuna/omnipos-margin-service/internal/purchase/usecase"

	saleH "github.com/fekuna/omnipos-margin-service/internal/sale/handler"
	saleListenerPkg "github.com/fekuna/omnipos-margin-service/internal/sale/listener"
	saleRepoPkg "github.com/fekuna/omnipos-margin-service/internal/sale/repository"
	saleUCPkg "github.com/fekuna/omnipos-margin-service/internal/sale/usecase"

	setH "github.com/fekuna/omnipos-margin-service/internal/settings/handler"
	setRepoPkg "github.com/fekuna/omnipos-margin-service/internal/settings/repository"
	setUCPkg "github.com/fekuna/omnipos-margin-service/internal/settings/usecase"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	// 1. Load Configuration
	_ = godotenv.Load() // Load .env file if it exists
	cfg := config.LoadEnv()

	// 2. Initialize Logger
	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     false,
		Encoding:          cfg.Logger.Encoding,
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	}
	if cfg.Server.AppEnv == "development" || cfg.Server.AppEnv == "dev" {
		logConfig.IsDevelopment = true
	}

	appLogger := logger.NewZapLogger(logConfig)
	defer appLogger.Sync()

	if err := cfg.Validate(); err != nil {
		appLogger.Fatal("Invalid configuration", zap.Error(err))
	}

	// 3. Connect to Database
	db, err := postgres.NewPostgres(&postgres.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to database", zap.Error(err))
	}
	defer db.Close()
	appLogger.Info("Connected to PostgreSQL database", zap.String("db_name", cfg.Postgres.DBName))

	if err := migrations.Up(db.DB); err != nil {
		appLogger.Fatal("Could not run migrations", zap.Error(err))
	}

	// 4. Initialize Repositories
	txManager := postgres.NewTxManager(db)
	prodRepo := prodRepoPkg.NewPGRepository(db)
	invRepo := invRepoPkg.NewPGRepository(db)
	purRepo := purRepoPkg.NewPGRepository(db)
	saleRepo := saleRepoPkg.NewPGRepository(db)
	setRepo := setRepoPkg.NewPGRepository(db)

	// 5. Initialize Redis. Without it the service runs as a single instance on in-process
	// cache and locks.
	var (
		appCache cache.Cache
		locker   inventory.Locker
	)
	redisClient, err := cache.NewRedisClient(&cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		appLogger.Warn("Could not connect to Redis, using in-memory cache and locks", zap.Error(err))
		mem := cache.NewMemory()
		appCache, locker = mem, mem
	} else {
		defer redisClient.Close()
		appCache, locker = redisClient, redisClient
		appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	// 5.5 Initialize Kafka
	var publisher event.Publisher = event.NopPublisher{}
	var kafkaConsumer *broker.KafkaConsumer
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(&broker.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.EventsTopic,
		})
		defer producer.Close()
		publisher = producer

		kafkaConsumer = broker.NewConsumer(&broker.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.OrdersTopic,
			GroupID: cfg.Kafka.GroupID,
		})
		defer kafkaConsumer.Close()
		appLogger.Info("Connected to Kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("orders_topic", cfg.Kafka.OrdersTopic),
			zap.String("events_topic", cfg.Kafka.EventsTopic),
		)
	}

	// 5.8 Initialize Elasticsearch
	var searcher product.Searcher
	esClient, err := search.NewClient(&search.Config{
		Addresses: cfg.Elastic.Addresses,
		Username:  cfg.Elastic.Username,
		Password:  cfg.Elastic.Password,
	})
	if err != nil {
		appLogger.Warn("Could not connect to Elasticsearch, product search falls back to the database", zap.Error(err))
	} else {
		searcher = esClient
		appLogger.Info("Connected to Elasticsearch", zap.Strings("addresses", cfg.Elastic.Addresses))
	}

	// 6. Initialize UseCases
	policy, _ := costing.ParseAllocationPolicy(cfg.Costing.AllocationPolicy) // checked by Validate
	thresholds := costing.StockThresholds{
		Critical: cfg.Stock.CriticalThreshold,
		Low:      cfg.Stock.LowThreshold,
	}

	setUC := setUCPkg.NewSettingsUseCase(setRepo, appCache, cfg.Channels.Fees(), model.AppSettings{
		DefaultPackagingCost: cfg.Settings.DefaultPackagingCost,
		DefaultShippingCost:  cfg.Settings.DefaultShippingCost,
	}, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := setUC.EnsureDefaults(ctx); err != nil {
		appLogger.Fatal("Could not seed settings", zap.Error(err))
	}

	prodUC := prodUCPkg.NewProductUseCase(prodRepo, txManager, appCache, searcher, cfg.Elastic.Index, appLogger)
	invUC := invUCPkg.NewInventoryUseCase(invRepo, txManager, locker, thresholds, appLogger)
	purUC := purUCPkg.NewPurchaseUseCase(purRepo, invUC, txManager, appCache, publisher, purchase.Defaults{
		ExchangeRate:     cfg.Costing.ExchangeRate,
		AllocationPolicy: policy,
	}, appLogger)
	saleUC := saleUCPkg.NewSaleUseCase(saleRepo, invUC, setUC, txManager, appCache, publisher, appLogger)
	dashUC := dashUCPkg.NewDashboardUseCase(prodRepo, saleRepo, purRepo, appCache, cfg.Dashboard.CacheTTL, report.Options{
		TopN:          cfg.Dashboard.TopN,
		RecentPerKind: cfg.Dashboard.RecentPerKind,
		RecentLimit:   cfg.Dashboard.RecentLimit,
		Thresholds:    thresholds,
	}, appLogger)

	// 6.5 Initialize Listeners
	if kafkaConsumer != nil {
		orderListener := saleListenerPkg.NewOrderListener(kafkaConsumer, saleUC, appLogger)
		go orderListener.Start(ctx)
	}

	// 7. Initialize Handlers
	verifier := auth.NewVerifier(cfg.JWT.SecretKey, cfg.JWT.Issuer)
	rateLimiter := appmw.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(appmw.Logger(appLogger))
	r.Use(appmw.CORS(cfg.Server.AllowedOrigins))
	r.Use(appmw.RateLimit(rateLimiter, appLogger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(appmw.Authenticate(verifier, appLogger))

		prodH.NewProductHandler(prodUC, appLogger).RegisterRoutes(r)
		invH.NewInventoryHandler(invUC, appLogger).RegisterRoutes(r)
		purH.NewPurchaseHandler(purUC, appLogger).RegisterRoutes(r)
		saleH.NewSaleHandler(saleUC, appLogger).RegisterRoutes(r)
		setH.NewSettingsHandler(setUC, appLogger).RegisterRoutes(r)
		dashH.NewDashboardHandler(dashUC, appLogger).RegisterRoutes(r)
		pricingH.NewPricingHandler(setUC, cfg.Costing.ExchangeRate, appLogger).RegisterRoutes(r)
	})

	httpServer := &http.Server{
		Addr:         withColon(cfg.Server.HTTPPort),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 8. Start gRPC health server
	lis, err := net.Listen("tcp", withColon(cfg.Server.GRPCPort))
	if err != nil {
		appLogger.Fatal("failed to listen", zap.Error(err))
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	appLogger.Info("Starting HTTP server", zap.String("addr", httpServer.Addr))
	appLogger.Info("Starting gRPC server", zap.String("addr", lis.Addr().String()))

	// Graceful Shutdown
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("failed to serve http", zap.Error(err))
		}
	}()
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Fatal("failed to serve grpc", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	healthServer.Shutdown()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP shutdown failed", zap.Error(err))
	}
	grpcServer.GracefulStop()
	appLogger.Info("Server stopped")
}

func withColon(port string) string {
	if !strings.HasPrefix(port, ":") {
		return ":" + port
	}
	return port
}
