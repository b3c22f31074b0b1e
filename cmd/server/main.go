package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rivofx/newpulse/internal/account"
	"github.com/rivofx/newpulse/internal/auth"
	"github.com/rivofx/newpulse/internal/config"
	"github.com/rivofx/newpulse/internal/conversation"
	"github.com/rivofx/newpulse/internal/database"
	"github.com/rivofx/newpulse/internal/feed"
	"github.com/rivofx/newpulse/internal/handler"
	"github.com/rivofx/newpulse/internal/jobs"
	"github.com/rivofx/newpulse/internal/ratelimit"
	"github.com/rivofx/newpulse/internal/realtime"
	"github.com/rivofx/newpulse/internal/relationship"
	"github.com/rivofx/newpulse/internal/store/memory"
	"github.com/rivofx/newpulse/internal/store/postgres"

	// Swagger imports
	_ "github.com/rivofx/newpulse/docs" // This is important for swag to find the generated docs

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// backend is what both store drivers implement.
type backend interface {
	relationship.Store
	conversation.Store
	account.Store
}

// @title           Pulse API
// @version         1.0
// @description     Friends, private conversations and a public room for Pulse.
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.apiKey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logrus.WithError(err).Fatal("Unable to decode config")
	}
	configureLogging(cfg.LogLevel)
	if cfg.JWTSecret == "" {
		logrus.Fatal("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	changes, err := openFeed(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to open change feed")
	}
	defer changes.Close()

	st, err := openStore(cfg, changes)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to open store")
	}

	linker := conversation.NewLinker(st)
	var retrier relationship.LinkRetrier
	var limiter ratelimit.Keyed = ratelimit.NewMemoryKeyed(cfg.RateLimitMax, cfg.RateLimitWindow, ratelimit.SystemClock{})

	if cfg.RedisURL != "" {
		client, err := jobs.NewClient(cfg.RedisURL)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to open job client")
		}
		defer client.Close()
		retrier = jobs.NewLinkRetrier(client, "")

		worker, err := jobs.NewServer(cfg.RedisURL, 0, linker)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to create job server")
		}
		go func() {
			if err := worker.Run(ctx); err != nil {
				logrus.WithError(err).Error("Job server stopped")
			}
		}()

		rdb, err := ratelimit.ParseRedisURL(ctx, cfg.RedisURL)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to connect to redis")
		}
		defer rdb.Close()
		limiter = ratelimit.NewRedisKeyed(rdb, "pulse:ratelimit", cfg.RateLimitMax, cfg.RateLimitWindow, ratelimit.SystemClock{})
	}

	accounts := account.NewService(st, cfg.JWTSecret, cfg.JWTTTL)
	manager := relationship.NewManager(st, linker, retrier, cfg.SearchLimit)
	messages := conversation.NewService(st, linker, cfg.PageSize)
	sockets := realtime.NewServer(manager, messages, changes, cfg.RateLimitMax, cfg.RateLimitWindow)

	router := gin.New()
	router.Use(requestLogger(), gin.Recovery())

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// API v1 routes
	apiV1 := router.Group("/api/v1")
	handler.New(accounts, manager, messages, limiter).RegisterRoutes(apiV1)
	apiV1.GET("/ws", auth.AuthMiddleware(accounts), sockets.Handle)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Warn("Server shutdown")
		}
	}()

	logrus.WithFields(logrus.Fields{
		"port":    cfg.Port,
		"store":   cfg.StoreDriver,
		"feed":    cfg.FeedDriver,
		"swagger": "http://localhost:" + cfg.Port + "/swagger/index.html",
	}).Info("Server is running")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logrus.WithError(err).Fatal("Server failed")
	}
}

func configureLogging(level string) {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.WithField("level", level).Warn("Unknown LOG_LEVEL, using info")
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
	if lvl < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
}

func openFeed(cfg *config.Config) (feed.Feed, error) {
	if cfg.FeedDriver != config.DriverNSQ {
		return feed.NewHub(0), nil
	}
	serverID := cfg.ServerID
	if serverID == "" {
		serverID = uuid.NewString()[:8]
	}
	return feed.NewNSQFeed(feed.NSQConfig{
		NSQDAddr:    cfg.NSQDAddr,
		LookupdAddr: cfg.NSQLookupdAddr,
		Topic:       cfg.FeedTopic,
		// Every instance needs every event, so each gets its own channel.
		Channel: "server-" + serverID + "#ephemeral",
	})
}

func openStore(cfg *config.Config, pub feed.Publisher) (backend, error) {
	if cfg.StoreDriver == config.DriverMemory {
		logrus.Warn("Using the in-memory store; data is lost on restart")
		return memory.New(pub), nil
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	st, err := postgres.New(db, pub)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logrus.WithFields(logrus.Fields{
			"function": "http",
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"latency":  time.Since(start).String(),
			"clientIP": c.ClientIP(),
		})
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("Request handled")
		case status >= http.StatusBadRequest:
			entry.Warn("Request handled")
		default:
			entry.Debug("Request handled")
		}
	}
}
