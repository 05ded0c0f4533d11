package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"deenStreakAPI/config"
	"deenStreakAPI/handlers"
	"deenStreakAPI/internal/cache"
	"deenStreakAPI/internal/db"
	"deenStreakAPI/internal/notification"
	"deenStreakAPI/internal/timeutil"
	"deenStreakAPI/internal/workers"
	"deenStreakAPI/middleware"
	"deenStreakAPI/services"
	"deenStreakAPI/utils"

	_ "net/http/pprof"
)

var (
	cfg    *config.Config
	dbPool *pgxpool.Pool
	clock  *timeutil.Clock

	dailyLogService       *services.DailyLogService
	progressService       *services.ProgressService
	reconciliationService *services.ReconciliationService
	analyticsService      *services.AnalyticsService
	deviceService         *services.DeviceService
	userService           *services.UserService
)

func init() {
	cfg = config.Load()

	if err := utils.InitLogger(cfg); err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}

	if cfg.ClerkSecretKey == "" {
		utils.Logger.Fatal("CLERK_SECRET_KEY environment variable is not set")
	}
	clerk.SetKey(cfg.ClerkSecretKey)

	if cfg.DatabaseURL == "" {
		utils.Logger.Fatal("DATABASE_URL environment variable is not set")
	}

	var err error
	clock, err = timeutil.NewClock(cfg.ReportingTimezone)
	if err != nil {
		utils.Logger.Fatal("Failed to load reporting timezone", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbPool, err = db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		utils.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := db.Migrate(ctx, dbPool); err != nil {
		utils.Logger.Fatal("Failed to apply schema", zap.Error(err))
	}

	summaryCache := cache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	dailyLogService = services.NewDailyLogService(dbPool)
	progressService = services.NewProgressService(dbPool, dailyLogService, clock)
	deviceService = services.NewDeviceService(dbPool)
	reconciliationService = services.NewReconciliationService(dbPool, clock, deviceService)
	analyticsService = services.NewAnalyticsService(dbPool, clock, summaryCache)
	userService = services.NewUserService(dbPool)

	fcmService, err := notification.NewFCMService(cfg.FCMCredentialsFile)
	if err != nil {
		utils.Logger.Warn("Could not initialize FCM, pushes disabled", zap.Error(err))
	} else {
		reconciliationService.SetPushProvider(fcmService)
	}

	middleware.InitPrometheus()
}

func main() {
	defer func() {
		utils.Logger.Info("Closing database connection pool")
		dbPool.Close()
	}()

	progressHandler := handlers.NewProgressHandler(progressService)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsService)
	notificationHandler := handlers.NewNotificationHandler(deviceService)
	adminHandler := handlers.NewAdminHandler(reconciliationService)
	userHandler := handlers.NewUserHandler(userService)

	r := mux.NewRouter()

	go middleware.CleanupVisitors()

	r.Use(middleware.RateLimitMiddleware)
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler()))
	r.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(http.DefaultServeMux))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := dbPool.Ping(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "deenStreak-api"}`))
	}).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	api.Handle("/admin/reconcile",
		middleware.AdminSecretMiddleware(http.HandlerFunc(adminHandler.ReconcileNow))).Methods("POST")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.ClerkAuthMiddleware)

	protected.HandleFunc("/users/sync", userHandler.SyncUser).Methods("POST")
	protected.HandleFunc("/users/me", userHandler.GetMe).Methods("GET")

	protected.HandleFunc("/challenges/{challengeID}/start", progressHandler.StartChallenge).Methods("POST")
	protected.HandleFunc("/challenges/{challengeID}/stats", progressHandler.GetChallengeStats).Methods("GET")

	protected.HandleFunc("/progress/{progressID}", progressHandler.GetProgress).Methods("GET")
	protected.HandleFunc("/progress/{progressID}/complete-day", progressHandler.CompleteDay).Methods("POST")
	protected.HandleFunc("/progress/{progressID}/restart", progressHandler.RestartChallenge).Methods("POST")
	protected.HandleFunc("/progress/{progressID}/pause", progressHandler.PauseChallenge).Methods("POST")
	protected.HandleFunc("/progress/{progressID}/resume", progressHandler.ResumeChallenge).Methods("POST")
	protected.HandleFunc("/progress/{progressID}/calendar", progressHandler.GetCalendar).Methods("GET")

	protected.HandleFunc("/missed/summary", analyticsHandler.GetMissedSummary).Methods("GET")
	protected.HandleFunc("/completions/summary", analyticsHandler.GetCompletionCounts).Methods("GET")

	protected.HandleFunc("/notifications/register-device", notificationHandler.RegisterDevice).Methods("POST")

	corsHandler := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins([]string{"*"}),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Admin-Secret", "X-Pprof-Secret"}),
		gorillaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorillaHandlers.AllowCredentials(),
	)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	workers.StartReconciler(workerCtx, reconciliationService, cfg.ReconcileInterval)

	server := http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		utils.Logger.Info("Starting server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			utils.Logger.Fatal("Error starting server", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	sig := <-sigChan
	utils.Logger.Info("Got signal", zap.String("signal", sig.String()))

	stopWorkers()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		utils.Logger.Error("Server shutdown error", zap.Error(err))
	}

	utils.Logger.Info("Server shutdown complete")
}
