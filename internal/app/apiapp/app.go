package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/learnado/backend/internal/config"
	"github.com/learnado/backend/internal/infra/httpclient"
	"github.com/learnado/backend/internal/infra/provider"
	s3infra "github.com/learnado/backend/internal/infra/s3"
	"github.com/learnado/backend/internal/jobs/expire"
	pgrepo "github.com/learnado/backend/internal/repo/postgres"
	redrepo "github.com/learnado/backend/internal/repo/redis"
	authsvc "github.com/learnado/backend/internal/services/auth"
	catalogsvc "github.com/learnado/backend/internal/services/catalog"
	couponsvc "github.com/learnado/backend/internal/services/coupons"
	entsvc "github.com/learnado/backend/internal/services/entitlements"
	"github.com/learnado/backend/internal/services/notify"
	ordersvc "github.com/learnado/backend/internal/services/orders"
	paymentsvc "github.com/learnado/backend/internal/services/payments"
	progresssvc "github.com/learnado/backend/internal/services/progress"
	ratesvc "github.com/learnado/backend/internal/services/rate"
	"github.com/learnado/backend/internal/services/receipts"
	refundsvc "github.com/learnado/backend/internal/services/refunds"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	s3         *minio.Client
	httpRouter http.Handler
	expireJob  *expire.Job
	jobCancel  context.CancelFunc
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	rateRepo := redrepo.NewRateRepo(redisClient)
	catalogCache := redrepo.NewCatalogCacheRepo(redisClient, cfg.Catalog.CacheTTL)

	txRunner := pgrepo.NewTxRunner(pool)
	courseRepo := pgrepo.NewCourseRepo(pool)
	couponRepo := pgrepo.NewCouponRepo(pool)
	purchaseRepo := pgrepo.NewPurchaseRepo(pool)
	refundRepo := pgrepo.NewRefundRepo(pool)
	entitlementRepo := pgrepo.NewEntitlementRepo(pool)
	progressRepo := pgrepo.NewProgressRepo(pool)

	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)

	catalogService := catalogsvc.NewService(courseRepo, catalogCache)
	couponService := couponsvc.NewService(couponRepo)
	rateLimiter := ratesvc.NewLimiter(rateRepo, cfg.Checkout.AttemptsPerWindow, cfg.Checkout.AttemptWindow)

	providerClient := provider.NewClient(
		httpclient.New(cfg.Provider.Timeout),
		cfg.Provider.BaseURL,
		cfg.Provider.APIKey,
	)

	orderService := ordersvc.NewService(ordersvc.Dependencies{
		Catalog:   catalogService,
		Coupons:   couponService,
		Purchases: purchaseRepo,
		Charger:   providerClient,
		Limiter:   rateLimiter,
	})

	paymentService := paymentsvc.NewService(paymentsvc.Dependencies{
		Txs:          txRunner,
		Purchases:    purchaseRepo,
		Coupons:      couponRepo,
		Entitlements: entitlementRepo,
	})

	refundService := refundsvc.NewService(refundsvc.Dependencies{
		Txs:      txRunner,
		Refunds:  refundRepo,
		Finder:   purchaseRepo,
		Refunder: paymentService,
	})

	entitlementService := entsvc.NewService(entitlementRepo)

	progressService := progresssvc.NewService(progresssvc.Dependencies{
		Store:        progressRepo,
		Entitlements: entitlementRepo,
		Catalog:      courseRepo,
	})

	if cfg.Notify.BaseURL != "" {
		notifier := notify.NewHTTPNotifier(httpclient.New(cfg.Notify.Timeout), cfg.Notify.BaseURL, cfg.Notify.APIKey)
		paymentService.AttachNotifier(notifier, log)
		refundService.AttachNotifier(notifier, log)
		progressService.AttachNotifier(notifier, log)
	}

	var s3Client *minio.Client
	if c, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
	}); err != nil {
		log.Warn("s3 init failed, continuing in degraded mode", zap.Error(err))
	} else {
		s3Client = c
	}

	if s3Client != nil {
		paymentService.AttachArchiver(receipts.NewService(s3Client, cfg.S3.Bucket))
	}

	expireJob := expire.NewJob(
		purchaseRepo,
		paymentService,
		cfg.Checkout.PendingTTL,
		cfg.Checkout.ExpireBatchSize,
		log,
	)

	RegisterRoutes(r, Dependencies{
		JWTManager:         jwtManager,
		CatalogService:     catalogService,
		CouponService:      couponService,
		OrderService:       orderService,
		PaymentService:     paymentService,
		RefundService:      refundService,
		EntitlementService: entitlementService,
		ProgressService:    progressService,
		Logger:             log,
		Config:             cfg,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		s3:         s3Client,
		httpRouter: r,
		expireJob:  expireJob,
	}, nil
}

func (a *App) Run() error {
	jobCtx, cancel := context.WithCancel(context.Background())
	a.jobCancel = cancel
	if a.postgres != nil {
		go func() {
			if err := a.expireJob.RunLoop(jobCtx, a.cfg.Checkout.ExpireInterval); err != nil {
				a.logger.Error("pending purchase expiry loop stopped", zap.Error(err))
			}
		}()
	}

	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if a.jobCancel != nil {
		a.jobCancel()
	}
	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
