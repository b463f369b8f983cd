package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	apirest "github.com/questlabs/questledger/api/rest"
	"github.com/questlabs/questledger/api/sse"
	"github.com/questlabs/questledger/audit"
	"github.com/questlabs/questledger/cache"
	"github.com/questlabs/questledger/config"
	dbadapter "github.com/questlabs/questledger/db"
	"github.com/questlabs/questledger/engine"
	"github.com/questlabs/questledger/events"
	mw "github.com/questlabs/questledger/middleware"
	"github.com/questlabs/questledger/model"
	"github.com/questlabs/questledger/scheduler"
	"github.com/questlabs/questledger/staking"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	if cfg.Security.JWTSecret == "" {
		logger.Warn("security.jwt_secret is not set; operator logins will not be usable")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized")

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer auditSvc.Stop(nil)

	// ---- Cache / PubSub ----
	cacheConfig := cache.Config{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	c, err := cache.NewCache(cacheConfig)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Engine ----
	bus := events.NewBus(pubsub, logger)
	notifier := staking.NewWebhookNotifier(cfg.Engine.NotifyTimeout, logger)
	eng := engine.New(db, engine.Config{
		MinQuestLead:   cfg.Engine.MinQuestLead,
		SeasonLength:   cfg.Engine.SeasonLength,
		DecayRetainPct: cfg.Engine.DecayRetainPct,
		MaxMultiplier:  cfg.Engine.MaxMultiplier,
		VerifyWith:     cfg.Engine.VerifyWith,
	}, nil, notifier, bus, logger)

	ctx := context.Background()
	if err := eng.EnsureState(ctx, cfg.Bootstrap.Governor, cfg.Bootstrap.QuestMaster, cfg.Bootstrap.QuestSigner); err != nil {
		log.Fatalf("engine state: %v", err)
	}
	if err := apirest.SeedOperator(db, cfg.Bootstrap.OperatorIdentity, cfg.Bootstrap.OperatorPassword); err != nil {
		log.Fatalf("seed operator: %v", err)
	}

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	// ---- REST API routes ----
	authH := apirest.NewAuthHandler(db, c, cfg.Security)
	questH := apirest.NewQuestHandler(eng, auditSvc)
	seasonH := apirest.NewSeasonHandler(eng, auditSvc)
	roleH := apirest.NewRoleHandler(eng, auditSvc)
	collabH := apirest.NewCollaboratorHandler(eng, auditSvc)
	complH := apirest.NewCompletionHandler(eng, logger)
	rankH := apirest.NewRankingHandler(eng, c, logger)

	sched.AddTicker("ranking_refresh", 5*time.Minute, func() {
		rankH.Refresh(context.Background())
	})

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/login", authH.Login)
		authG.POST("/logout", mw.Auth(cfg.Security, c), authH.Logout)
		authG.POST("/refresh", mw.Auth(cfg.Security, c), authH.Refresh)

		questsG := api.Group("/quests")
		questsG.GET("", questH.List)
		questsG.GET("/:id", questH.Get)
		questsG.POST("", mw.Auth(cfg.Security, c), questH.Create)
		questsG.POST("/:id/expire", mw.Auth(cfg.Security, c), questH.Expire)

		seasonG := api.Group("/season")
		seasonG.GET("", seasonH.Get)
		seasonG.POST("/rollover", mw.Auth(cfg.Security, c), seasonH.Rollover)

		rolesG := api.Group("/roles")
		rolesG.Use(mw.Auth(cfg.Security, c))
		rolesG.GET("", roleH.Get)
		rolesG.PUT("/quest-master", roleH.SetQuestMaster)
		rolesG.PUT("/quest-signer", roleH.SetQuestSigner)

		collabG := api.Group("/collaborators")
		collabG.Use(mw.Auth(cfg.Security, c))
		collabG.POST("", collabH.Register)
		collabG.GET("", collabH.List)

		accountsG := api.Group("/accounts")
		accountsG.POST("/:account/completions", complH.Complete)
		accountsG.GET("/:account/completions", complH.List)
		accountsG.GET("/:account/multiplier", complH.Multiplier)

		rankG := api.Group("/ranking")
		rankG.GET("/multiplier", rankH.TopMultiplier)
	}

	// ---- SSE event stream ----
	sseH := sse.NewHandler(pubsub, c, cfg.Security, logger)
	r.GET("/events", sseH.ServeSSE)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
