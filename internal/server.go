package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/teampulse/teampulse/internal/athletes"
	"github.com/teampulse/teampulse/internal/auth"
	"github.com/teampulse/teampulse/internal/config"
	"github.com/teampulse/teampulse/internal/dashboard"
	"github.com/teampulse/teampulse/internal/db"
	"github.com/teampulse/teampulse/internal/injuries"
	"github.com/teampulse/teampulse/internal/lifestyle"
	"github.com/teampulse/teampulse/internal/middleware"
	"github.com/teampulse/teampulse/internal/misc"
	"github.com/teampulse/teampulse/internal/risk"
	"github.com/teampulse/teampulse/internal/telemetry/metrics"
	"github.com/teampulse/teampulse/internal/telemetry/tracing"
	"github.com/teampulse/teampulse/internal/training"
	"github.com/teampulse/teampulse/internal/treatments"
	"github.com/teampulse/teampulse/internal/upload"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config *config.Config
	dbPool *pgxpool.Pool

	redisClient  *redis.Client
	loginChecker *auth.LoginChecker
	authService  *auth.Service

	riskService *risk.Service
	riskCron    *cron.Cron

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	VersionInfo             string
	AdminUsername           string
	AdminPasswordHash       string
	RedisPassword           string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:         params.Config.PostgresHost,
		DBPort:         params.Config.PostgresPort,
		DBName:         params.Config.PostgresDBName,
		TracingEnabled: params.HoneycombTracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": "teampulse_db"},
	)
	promRegistry := metrics.SetupPrometheus(pgxpoolCollector)
	metricsManager := metrics.NewManager("teampulse", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(params.Config.RedisHost, params.Config.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	authService := auth.NewAuthService(&auth.Admin{
		Username:     params.AdminUsername,
		PasswordHash: params.AdminPasswordHash,
	}, auth.DefaultTTL, rdb)
	go func() {
		for range time.Tick(time.Hour * 8) {
			authService.ScanAndClean(ctx)
		}
	}()

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "teampulse-backend", rdb)
	if err != nil {
		return nil, err
	}

	return &Server{
		config:      params.Config,
		dbPool:      dbPool,
		versionInfo: params.VersionInfo,

		redisClient:  rdb,
		authService:  authService,
		loginChecker: auth.NewLoginChecker(auth.DefaultTTL, rdb),

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func (s *Server) routerSetup() (*mux.Router, error) {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("teampulse-router"))

	athletesRepo := athletes.NewRepo(s.dbPool)
	trainingRepo := training.NewRepo(s.dbPool)
	lifestyleRepo := lifestyle.NewRepo(s.dbPool)
	treatmentsRepo := treatments.NewRepo(s.dbPool)
	injuriesRepo := injuries.NewRepo(s.dbPool)
	riskRepo := risk.NewRepo(s.dbPool)

	s.riskService = risk.NewService(
		riskRepo,
		athletesRepo,
		trainingRepo,
		lifestyleRepo,
		treatmentsRepo,
		injuriesRepo,
		s.metricsManager,
	)

	athletesHandler := athletes.NewHandler(athletesRepo, riskRepo, injuriesRepo)
	athletesHandler.SetupRoutes(r.PathPrefix("/athletes").Subrouter())

	trainingHandler := training.NewHandler(trainingRepo)
	trainingHandler.SetupRoutes(r.PathPrefix("/training-loads").Subrouter())

	lifestyleHandler := lifestyle.NewHandler(lifestyleRepo)
	lifestyleHandler.SetupRoutes(r.PathPrefix("/lifestyle").Subrouter())

	treatmentsHandler := treatments.NewHandler(treatmentsRepo)
	treatmentsHandler.SetupRoutes(r.PathPrefix("/treatments").Subrouter())

	injuriesHandler := injuries.NewHandler(injuriesRepo)
	injuriesHandler.SetupRoutes(r.PathPrefix("/injuries").Subrouter())

	riskHandler := risk.NewHandler(s.riskService, riskRepo)
	riskHandler.SetupRoutes(r.PathPrefix("/risk").Subrouter())

	dashboardHandler := dashboard.NewHandler(athletesRepo, riskRepo, s.riskService, trainingRepo)
	dashboardHandler.SetupRoutes(r.PathPrefix("/dashboard").Subrouter())

	uploadHandler := upload.NewHandler(
		athletesRepo,
		trainingRepo,
		lifestyleRepo,
		treatmentsRepo,
		injuriesRepo,
		s.metricsManager,
	)
	uploadHandler.SetupRoutes(r.PathPrefix("/upload").Subrouter())

	reqRateLimiter := redis_rate.NewLimiter(s.redisClient)
	miscHandler := misc.NewHandler(s.versionInfo, s.authService)
	miscHandler.SetupRoutes(r, reqRateLimiter, s.metricsManager, s.config.LoginRateLimitAllowedPerMin)

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "OPTIONS").Name("unknown")

	authMiddleware := middleware.NewAuthMiddlewareHandler(s.loginChecker)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors())
	r.Use(authMiddleware.AuthCheck())
	r.Use(middleware.DrainAndCloseRequest())

	return r, nil
}

func (s *Server) Serve(ctx context.Context, host string, port int) {
	router, err := s.routerSetup()
	if err != nil {
		log.Fatalf("failed to setup router: %s", err)
	}

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.setupRiskRecalcCron(ctx)

	s.metricsManager.GaugeLifeSignal.Set(1)
}

// setupRiskRecalcCron schedules the nightly batch that assesses the whole
// roster, so the morning team overview is served from fresh snapshots.
func (s *Server) setupRiskRecalcCron(ctx context.Context) {
	if !s.config.RiskRecalcCronEnabled {
		log.Debugln("nightly risk recalculation disabled")
		return
	}

	s.riskCron = cron.New()
	_, err := s.riskCron.AddFunc(s.config.RiskRecalcCronSpec, func() {
		calculated, err := s.riskService.CalculateAll(ctx, time.Now().UTC())
		if err != nil {
			log.Errorf("nightly risk recalculation: %s", err)
		}
		log.Infof("nightly risk recalculation done, %d assessments calculated", calculated)
	})
	if err != nil {
		log.Errorf("failed to schedule nightly risk recalculation: %s", err)
		return
	}

	s.riskCron.Start()
	log.Debugf("nightly risk recalculation scheduled: [%s]", s.config.RiskRecalcCronSpec)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	if s.riskCron != nil {
		cronCtx := s.riskCron.Stop()
		// let a running recalculation finish
		<-cronCtx.Done()
		log.Trace("risk recalc cron stopped ...")
	}

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown http server")
	}
	log.Warnln("server shut down")

	if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown metrics http server")
	}
	log.Warnln("metrics server shut down")
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
