package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bakery-orders/internal/config"
	httpctrl "bakery-orders/internal/controllers/http"
	"bakery-orders/internal/infra"
	"bakery-orders/internal/infra/cache"
	mmysql "bakery-orders/internal/infra/mysql"
	mpostgres "bakery-orders/internal/infra/postgres"
	"bakery-orders/internal/infra/rabbitmq"
	"bakery-orders/internal/logging"
	"bakery-orders/internal/notifications"
	"bakery-orders/internal/repository"
	"bakery-orders/internal/repository/gormrepo"
	"bakery-orders/internal/repository/memory"
	"bakery-orders/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type stores struct {
	orders        repository.OrderRepository
	items         repository.OrderItemRepository
	promotions    repository.PromotionRepository
	notifications repository.NotificationRepository
	uow           repository.UnitOfWork
	products      infra.ProductClientInterface
	close         func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	var rdb *redis.Client
	if addr := cfg.Redis.Addr(); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:         addr,
			DB:           0,
			PoolSize:     200,
			MinIdleConns: 20,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, caching degraded", zap.String("addr", addr), zap.Error(err))
		}
	}

	products := st.products
	if cfg.ProductServiceURL != "" {
		products = infra.NewProductClient(cfg.ProductServiceURL, cfg.ProductServiceTimeout)
	}
	cachedProducts := infra.NewCachedProductClient(products, rdb, logger)

	sinks := []notifications.Sink{notifications.StoreSink{Repo: st.notifications}}
	if cfg.RabbitMQ.URL != "" {
		publisher, err := rabbitmq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, logger)
		if err != nil {
			return err
		}
		defer publisher.Close()
		sinks = append(sinks, publisher)
	}

	dispatcher := notifications.NewDispatcher(notifications.Config{
		QueueSize: cfg.NotificationQueueSize,
		Workers:   cfg.NotificationWorkers,
	}, logger, sinks...)
	dispatcher.Start()
	defer dispatcher.Close()

	deps := services.Deps{
		Orders:        st.orders,
		Items:         st.items,
		Promotions:    st.promotions,
		Notifications: st.notifications,
		Products:      cachedProducts,
		UnitOfWork:    st.uow,
		Notifier:      dispatcher,
		Cache:         cache.NewOrderCache(rdb, 30*time.Second, logger),
		Logger:        logger,
	}
	orders, err := services.NewOrderService(deps)
	if err != nil {
		return err
	}
	promos, err := services.NewPromotionService(deps)
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(httpctrl.RequestLogger(logger), httpctrl.Recovery(logger))
	httpctrl.NewHandler(orders, promos, logger).RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting order service", zap.String("port", cfg.Port), zap.String("db", cfg.DB.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return promos.RunExpirySweep(gctx, cfg.PromotionSweepInterval)
	})
	if len(cfg.ProductWarmupIDs) > 0 {
		g.Go(func() error {
			cachedProducts.Warmup(gctx, cfg.ProductWarmupIDs)
			return nil
		})
	}

	err = g.Wait()
	logger.Info("order service stopped")
	return err
}

func openStores(cfg *config.Config, logger *zap.Logger) (*stores, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch cfg.DB.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		s := memory.NewStore()
		return &stores{
			orders:        s.Orders(),
			items:         s.Items(),
			promotions:    s.Promotions(),
			notifications: s.Notifications(),
			uow:           s.UnitOfWork(),
			products:      s,
			close:         func() {},
		}, nil
	case config.DriverPostgres:
		db, err = mpostgres.Open(cfg.DB, logger)
	default:
		db, err = mmysql.Open(cfg.DB, logger)
	}
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	return &stores{
		orders:        gormrepo.NewOrderRepository(db, logger),
		items:         gormrepo.NewOrderItemRepository(db),
		promotions:    gormrepo.NewPromotionRepository(db),
		notifications: gormrepo.NewNotificationRepository(db),
		uow:           gormrepo.NewUnitOfWork(db),
		products:      gormrepo.NewProductRepository(db),
		close:         func() { _ = sqlDB.Close() },
	}, nil
}
