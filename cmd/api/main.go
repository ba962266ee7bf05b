package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/georgemunganga/stockroom-backend/internal/config"
	"github.com/georgemunganga/stockroom-backend/internal/modules/auth"
	"github.com/georgemunganga/stockroom-backend/internal/modules/document"
	"github.com/georgemunganga/stockroom-backend/internal/modules/inventory"
	"github.com/georgemunganga/stockroom-backend/internal/modules/location"
	"github.com/georgemunganga/stockroom-backend/internal/modules/photo"
	"github.com/georgemunganga/stockroom-backend/internal/modules/user"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		log.Fatal(err)
	}
	fmt.Println("Successfully connected to the database!")

	if err := document.EnsureSchema(ctx, db); err != nil {
		log.Fatal(err)
	}
	if err := user.EnsureSchema(ctx, db); err != nil {
		log.Fatal(err)
	}

	// ── Change notification & revocations ───────────────────
	var (
		notifier    document.Notifier
		revocations auth.Revocations
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal(err)
		}
		notifier = document.NewRedisNotifier(rdb)
		revocations = auth.NewRedisRevocations(rdb)
	} else {
		notifier, err = document.NewPQNotifier(db, cfg.DatabaseURL)
		if err != nil {
			log.Fatal(err)
		}
		revocations = auth.NewMemoryRevocations()
	}
	defer notifier.Close()

	// ── Router ──────────────────────────────────────────────
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)

	// ── Identity ────────────────────────────────────────────
	userRepo := user.NewPostgresRepository(db)
	userService := user.NewService(userRepo)
	authService := auth.NewService(userService, revocations, cfg.JWTSecret, cfg.JWTTTL)
	authenticate := auth.Middleware(authService)

	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
		user.NewHandler(userService, authenticate).RegisterRoutes(r)
		auth.NewHandler(authService).RegisterRoutes(r)
	})

	// ── Inventory ───────────────────────────────────────────
	stockMode, err := inventory.ParseStockMode(cfg.StockMode)
	if err != nil {
		log.Fatal(err)
	}
	store := document.NewPostgresStore(db, notifier)
	inventoryRepo := inventory.NewDocumentRepository(store)
	mirror := inventory.NewMirror(inventoryRepo, stockMode)
	if err := mirror.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer mirror.Close()
	synchronizer := inventory.NewSynchronizer(inventoryRepo, mirror, cfg.ResyncConcurrency)

	photos := photo.NewLocalStorage(cfg.PhotoDir, cfg.PhotoBaseURL)
	photo.NewHandler(cfg.PhotoDir).RegisterRoutes(router)

	var device *location.Coordinate
	if cfg.DeviceLatitude != nil && cfg.DeviceLongitude != nil {
		device = &location.Coordinate{Latitude: *cfg.DeviceLatitude, Longitude: *cfg.DeviceLongitude}
		if err := device.Validate(); err != nil {
			log.Fatal(err)
		}
	}
	locator := location.NewStaticProvider(location.ParseAccess(cfg.LocationAccess), device)

	inventoryService := inventory.NewService(inventoryRepo, mirror, synchronizer, photos, locator)
	inventory.NewHandler(inventoryService, authenticate, cfg.RequestTimeout).RegisterRoutes(router)

	// ── Start Server ─────────────────────────────────────────
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	fmt.Printf("Stockroom API server starting on :%s (stock mode %s)\n", cfg.Port, stockMode)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
