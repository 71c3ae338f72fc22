package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"

	"github.com/playmatatu/fruitmerge/internal/api"
	"github.com/playmatatu/fruitmerge/internal/api/handlers"
	"github.com/playmatatu/fruitmerge/internal/config"
	"github.com/playmatatu/fruitmerge/internal/database"
	"github.com/playmatatu/fruitmerge/internal/game"
	"github.com/playmatatu/fruitmerge/internal/migrations"
	"github.com/playmatatu/fruitmerge/internal/redis"
	"github.com/playmatatu/fruitmerge/internal/store"
	"github.com/playmatatu/fruitmerge/internal/ws"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	// CATALOG_PATH is a JSON file, or "base" for the built-in fruit catalog.
	catalog := game.DefaultCatalog()
	switch cfg.CatalogPath {
	case "":
	case "base":
		catalog = game.BaseCatalog()
		log.Println("[GAME] Using the base fruit catalog")
	default:
		c, err := game.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			log.Fatalf("Failed to load catalog: %v", err)
		}
		catalog = c
		log.Printf("[GAME] Loaded %d-tier catalog from %s", catalog.Len(), cfg.CatalogPath)
	}

	rules := rulesFromConfig(cfg)
	if err := rules.Validate(catalog); err != nil {
		log.Fatalf("Invalid game rules: %v", err)
	}

	// Postgres is optional; without it results and admin accounts are unavailable.
	var db *sqlx.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = database.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if cfg.MigrateOnStart {
			log.Println("↗ Running DB migrations on startup...")
			if err := migrations.RunMigrations(cfg.DatabaseURL, migrations.DefaultDir); err != nil {
				log.Fatalf("Failed to run migrations: %v", err)
			}
		}
	} else {
		log.Println("[DB] DATABASE_URL not set, running without Postgres")
	}

	var rdb *goredis.Client
	if cfg.RedisURL != "" {
		var err error
		rdb, err = redis.Connect(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer rdb.Close()
	} else {
		log.Println("[REDIS] REDIS_URL not set, running without Redis")
	}

	highScores := selectHighScores(cfg, db, rdb)

	var results interface {
		game.ResultRecorder
		handlers.LeaderboardReader
	} = store.NewMemoryResults()
	if db != nil {
		results = store.NewPostgresResults(db)
	}

	var snapshots game.SnapshotStore
	var activity game.ActivityTracker = store.NewMemoryActivity()
	if rdb != nil {
		snapshots = store.NewRedisSnapshots(rdb)
		activity = store.NewRedisActivity(rdb)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := ws.NewHub()
	go hub.Run()

	sm := game.NewSessionManager(game.ManagerConfig{
		Catalog: catalog,
		Rules:   rules,
		Session: game.SessionOptions{
			TickHz:      cfg.SimTickHz,
			BroadcastHz: cfg.BroadcastHz,
			Gravity:     cfg.Gravity,
		},
		IdleTimeout: time.Duration(cfg.SessionIdleSeconds) * time.Second,
	}, game.SessionDeps{
		HighScores:   highScores,
		HighScoreKey: cfg.HighScoreKey,
		Snapshots:    snapshots,
		Results:      results,
		Publisher:    hub,
	}, activity)

	// Idle notices go through Redis when available so every instance's hub relays them.
	var notify game.Publisher = hub
	if rdb != nil {
		ws.StartEventSubscriber(ctx, rdb, hub)
		notify = store.NewRedisEvents(rdb)
	}
	game.StartIdleWorker(ctx, sm, activity, time.Duration(cfg.IdleWorkerPollInterval)*time.Second, notify)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	api.SetupRoutes(router, api.Deps{
		DB:         db,
		Config:     cfg,
		Sessions:   sm,
		Hub:        hub,
		HighScores: highScores,
		Results:    results,
	})

	port := cfg.Port
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{Addr: ":" + port, Handler: router}

	go func() {
		log.Printf("Starting fruit merge server on port %s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	sm.Shutdown(shutdownCtx)
	hub.Stop()
}

func rulesFromConfig(cfg *config.Config) game.Rules {
	rules := game.DefaultRules()
	rules.FieldWidth = cfg.FieldWidth
	rules.FieldHeight = cfg.FieldHeight
	rules.LossLine = cfg.LossLine
	rules.DropY = cfg.DropY
	rules.DropMinTier = cfg.DropMinTier
	rules.DropMaxTier = cfg.DropMaxTier
	rules.DropCooldown = time.Duration(cfg.DropCooldownMs) * time.Millisecond
	rules.PopLifetime = time.Duration(cfg.PopLifetimeMs) * time.Millisecond
	rules.LossGrace = time.Duration(cfg.LossGraceMs) * time.Millisecond
	rules.KeyStep = cfg.KeyStep
	return rules
}

type highScoreStore interface {
	game.HighScoreStore
	api.HighScores
}

func selectHighScores(cfg *config.Config, db *sqlx.DB, rdb *goredis.Client) highScoreStore {
	switch cfg.HighScoreBackend {
	case "redis":
		if rdb != nil {
			log.Println("[HIGHSCORE] Using Redis")
			return store.NewRedisHighScores(rdb)
		}
		log.Println("[HIGHSCORE] Redis backend requested but REDIS_URL is empty, using memory")
	case "postgres":
		if db != nil {
			log.Println("[HIGHSCORE] Using Postgres")
			return store.NewPostgresHighScores(db)
		}
		log.Println("[HIGHSCORE] Postgres backend requested but DATABASE_URL is empty, using memory")
	}
	return store.NewMemoryHighScores()
}
