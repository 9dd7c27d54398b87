package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/vijaygopal97/convergent-server/cache"
	"github.com/vijaygopal97/convergent-server/config"
	"github.com/vijaygopal97/convergent-server/middleware"
	"github.com/vijaygopal97/convergent-server/module/jobs"
	"github.com/vijaygopal97/convergent-server/module/qcbatch"
	"github.com/vijaygopal97/convergent-server/module/qcreview"
	"github.com/vijaygopal97/convergent-server/module/survey"
	"github.com/vijaygopal97/convergent-server/module/user"
)

func main() {
	gin.SetMode(gin.ReleaseMode)

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	config.InitDB()
	defer config.CloseDB()

	if err := config.InitRedis(); err != nil {
		log.Fatalf("Cannot connect to Redis: %v", err)
	}

	// wire the QC batch read model
	kv := cache.NewRedisClient(config.RedisClient)
	batchCache := qcbatch.NewBatchCache(kv)
	batchRepo := qcbatch.NewRepository()
	qcbatch.InitService(qcbatch.NewService(batchRepo, batchCache))
	qcreview.InitService(batchRepo, batchCache)
	log.Println("QC batch service initialized")

	// background jobs run on at most one instance, elected via Redis lock
	supervisor := startBackgroundJobs(batchRepo, batchCache)

	router := gin.New()
	router.Use(gin.Recovery())

	trusted := config.LoadTrustedProxies()
	if err := router.SetTrustedProxies(trusted); err != nil {
		log.Fatalf("Failed to set trusted proxies: %v", err)
	}

	router.Use(
		middleware.CorsMiddleware(),
		middleware.RateLimitMiddleware(),
		middleware.SecurityHeadersMiddleware(),
	)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/login", user.LoginHandler)
	}

	protectedGroup := router.Group("/api")
	protectedGroup.Use(middleware.AuthMiddleware())
	{
		protectedGroup.GET("/user/current", user.GetCurrentUserHandler)
		protectedGroup.GET("/surveys", survey.GetSurveysHandler)

		// QC batch read model (v2: aggregation + cache-aside)
		protectedGroup.GET("/qc-batches-v2/survey/:surveyId", qcbatch.GetBatchesBySurveyV2Handler)
		protectedGroup.GET("/qc-batches-v2/:batchId", qcbatch.GetBatchByIDV2Handler)
		protectedGroup.GET("/qc-batches-v2/:batchId/stats", qcbatch.GetBatchStatsV2Handler)

		// QC review action
		protectedGroup.PUT("/qc-responses/:id/review", qcreview.ReviewResponseHandler)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	startServer(router, port, supervisor)
}

// startBackgroundJobs builds the supervisor with the four periodic jobs and
// tries to become the runner. Instances that lose the election serve HTTP
// only.
func startBackgroundJobs(batchRepo qcbatch.Repository, batchCache *qcbatch.BatchCache) *jobs.JobSupervisor {
	statsRefresher := jobs.NewStatsRefresher(batchRepo, batchCache)
	queueRefresher := jobs.NewAssignmentQueueRefresher()

	supervisor := jobs.NewJobSupervisor(jobs.NewRedisLocker(config.RedisClient), []jobs.Job{
		{
			Name:     "qc-batch-stats-refresh",
			Every:    5 * time.Minute,
			RunAfter: 20 * time.Second,
			Fn: func(ctx context.Context) {
				statsRefresher.UpdateAllQCBatchStats(ctx)
			},
		},
		{
			Name:  "interviewer-queue-refresh",
			Every: 15 * time.Minute,
			Fn: func(ctx context.Context) {
				_ = queueRefresher.RefreshInterviewerQueues(ctx)
			},
		},
		{
			Name:  "reviewer-queue-refresh",
			Every: 45 * time.Second,
			Fn: func(ctx context.Context) {
				_ = queueRefresher.RefreshReviewerQueue(ctx)
			},
		},
		{
			Name:  "duplicate-phone-sweep",
			Every: 60 * time.Minute,
			Fn: func(ctx context.Context) {
				_, _ = jobs.DuplicatePhoneSweep(ctx)
			},
		},
	})

	if supervisor.Start(context.Background()) {
		log.Println("Background jobs scheduled on this instance")
	}
	return supervisor
}

// startServer runs the HTTP server and shuts everything down cleanly on
// SIGINT/SIGTERM.
func startServer(router *gin.Engine, port string, supervisor *jobs.JobSupervisor) {
	log.Printf("Starting HTTP server on port %s", port)

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	supervisor.Stop(ctx)

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Forced server shutdown: %v", err)
	}

	log.Println("Server stopped")
}
