package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"golang.org/x/sync/errgroup"

	"github.com/locvowork/public_salaries/internal/config"
	"github.com/locvowork/public_salaries/internal/database"
	"github.com/locvowork/public_salaries/internal/domain"
	"github.com/locvowork/public_salaries/internal/handler"
	"github.com/locvowork/public_salaries/internal/ingest"
	"github.com/locvowork/public_salaries/internal/logger"
	"github.com/locvowork/public_salaries/internal/repository"
	"github.com/locvowork/public_salaries/internal/service"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	Echo     *echo.Echo
	DB       *sql.DB
	Config   *config.EnvConfig
	Registry *prometheus.Registry

	Loader          *ingest.Loader
	EmployeeService *service.EmployeeService
	AgencyService   *service.AgencyService

	redis *redis.Client
}

func NewApp() *App {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.ErrorHandler
	e.Validator = handler.NewRequestValidator()
	return &App{Echo: e}
}

// InitializeStorage loads configuration, connects and migrates the database,
// and wires repositories, services and the loader. It does not touch HTTP.
func (a *App) InitializeStorage(ctx context.Context) error {
	if err := config.LoadEnvConfig(); err != nil {
		return fmt.Errorf("failed to load env config: %w", err)
	}
	a.Config = config.DefaultEnvConfig

	logger.InitLogging(a.Config.LOG_FILE_PATH, a.Config.LOG_LEVEL)
	logger.InfoLog(ctx, "Environment variables loaded successfully")

	dbConfig := database.Config{
		Host:            a.Config.DB_HOST,
		Port:            a.Config.DB_PORT,
		User:            a.Config.DB_USER,
		Password:        a.Config.DB_PASSWORD,
		DBName:          a.Config.DB_NAME,
		SSLMode:         a.Config.DB_SSL_MODE,
		MaxOpenConns:    a.Config.DB_MAX_OPEN_CONNS,
		MaxIdleConns:    a.Config.DB_MAX_IDLE_CONNS,
		ConnMaxLifetime: a.Config.DB_CONN_MAX_LIFETIME,
	}

	db, err := database.NewPostgresDB(ctx, dbConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.DB = db

	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	index := a.initSearch(ctx)

	empRepo := repository.NewEmployeeRepository(db)
	agencyRepo := repository.NewAgencyRepository(db)

	a.Loader = ingest.NewLoader(empRepo, agencyRepo, ingest.NewMetrics(a.Registry), ingest.Options{
		CSVPaths:      a.Config.CSVPaths(),
		Workers:       a.Config.INGEST_WORKERS,
		DefaultYear:   a.Config.INGEST_DEFAULT_YEAR,
		InsertRetries: a.Config.INGEST_INSERT_RETRIES,
		RetryBackoff:  a.Config.INGEST_RETRY_BACKOFF,
	})
	if index != nil {
		a.Loader.WithIndex(index)
	}
	a.EmployeeService = service.NewEmployeeService(empRepo, index)
	a.AgencyService = service.NewAgencyService(agencyRepo)

	return nil
}

// initSearch connects to Elasticsearch when ELASTIC_URL is set. Failures
// disable search instead of aborting startup.
func (a *App) initSearch(ctx context.Context) domain.EmployeeIndex {
	if a.Config.ELASTIC_URL == "" {
		logger.InfoLog(ctx, "ELASTIC_URL not set, employee search disabled")
		return nil
	}

	es, err := database.NewElasticSearchClient(a.Config.ELASTIC_URL)
	if err != nil {
		logger.ErrorLog(ctx, err, "employee search disabled")
		return nil
	}
	if err := es.EnsureIndex(ctx); err != nil {
		logger.ErrorLog(ctx, err, "employee search disabled")
		return nil
	}
	return es
}

// Initialize wires the full HTTP application.
func (a *App) Initialize(ctx context.Context) error {
	if err := a.InitializeStorage(ctx); err != nil {
		return err
	}

	empHandler := handler.NewEmployeeHandler(a.EmployeeService)
	agencyHandler := handler.NewAgencyHandler(a.AgencyService)
	healthHandler := handler.NewHealthHandler(a.DB)

	a.RegisterMiddlewares(ctx)
	a.RegisterRoutes(empHandler, agencyHandler, healthHandler)

	return nil
}

func (a *App) RegisterMiddlewares(ctx context.Context) {
	a.Echo.Use(middleware.Recover())
	a.Echo.Use(handler.RequestID())
	a.Echo.Use(handler.RequestLogger())
	a.Echo.Use(middleware.CORS())
	a.Echo.Use(handler.NewHTTPMetrics(a.Registry).Middleware())
	a.Echo.Use(handler.RateLimit(limiter.New(a.rateLimitStore(ctx), limiter.Rate{
		Period: a.Config.RATE_LIMIT_WINDOW,
		Limit:  a.Config.RATE_LIMIT_MAX,
	})))
}

// rateLimitStore picks the limiter backend, falling back to memory when redis is unusable.
func (a *App) rateLimitStore(ctx context.Context) limiter.Store {
	if a.Config.RATE_LIMIT_STORAGE != "redis" {
		return memory.NewStore()
	}

	opts, err := redis.ParseURL(a.Config.REDIS_URL)
	if err != nil {
		logger.WarnLog(ctx, "invalid REDIS_URL, rate limiting in memory: %v", err)
		return memory.NewStore()
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		logger.WarnLog(ctx, "redis unreachable, rate limiting in memory: %v", err)
		return memory.NewStore()
	}

	store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: "salaries:ratelimit"})
	if err != nil {
		client.Close()
		logger.WarnLog(ctx, "failed to create redis rate limit store, rate limiting in memory: %v", err)
		return memory.NewStore()
	}
	a.redis = client
	return store
}

func (a *App) RegisterRoutes(empHandler *handler.EmployeeHandler, agencyHandler *handler.AgencyHandler, healthHandler *handler.HealthHandler) {
	a.Echo.GET("/health", healthHandler.HealthHandler)
	a.Echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})))

	a.Echo.GET("/employees", empHandler.ListHandler)
	a.Echo.GET("/employees/search", empHandler.SearchHandler)
	a.Echo.GET("/employees/:id", empHandler.GetHandler)

	a.Echo.GET("/agencies", agencyHandler.ListHandler)
	a.Echo.GET("/agencies/stats", agencyHandler.StatsHandler)
	a.Echo.GET("/agencies/export", agencyHandler.ExportHandler)
	a.Echo.GET("/agencies/:id", agencyHandler.GetHandler)
}

// Run serves HTTP until ctx is cancelled and, when enabled, bootstraps the
// data set alongside. A failed bootstrap is logged and the server keeps running.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := ":" + a.Config.APP_PORT
		logger.InfoLog(gctx, "listening on %s", addr)
		if err := a.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.InfoLog(shutdownCtx, "shutting down http server")
		return a.Echo.Shutdown(shutdownCtx)
	})

	if a.Config.INGEST_ON_STARTUP {
		g.Go(func() error {
			if _, err := a.Loader.Run(gctx); err != nil {
				logger.ErrorLog(gctx, err, "bootstrap loader failed")
			}
			return nil
		})
	}

	return g.Wait()
}

// Close releases the database and redis connections.
func (a *App) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
