package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alyapos/backend/internal/cache"
	"alyapos/backend/internal/config"
	"alyapos/backend/internal/httpapi"
	"alyapos/backend/internal/service"
	"alyapos/backend/internal/store"
	filestore "alyapos/backend/internal/store/file"
	"alyapos/backend/internal/store/memory"
	pgstore "alyapos/backend/internal/store/postgres"
	"alyapos/backend/internal/upstream"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	switch {
	case cfg.DatabaseURL != "":
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("archive: postgres")
	case cfg.ArchivePath != "":
		fs, err := filestore.New(cfg.ArchivePath)
		if err != nil {
			log.Fatalf("archive file %s unusable: %v", cfg.ArchivePath, err)
		}
		repo = fs
		log.Printf("archive: file (%s)", cfg.ArchivePath)
	default:
		repo = memory.NewSeeded()
		log.Println("archive: in-memory")
	}

	searchCache := cache.SearchCache(cache.NoopSearchCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisSearchCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache", err)
		} else {
			searchCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: noop")
	}

	forwarder := upstream.New(cfg.UpstreamURL, cfg.UpstreamToken)
	if cfg.UpstreamToken == "" {
		log.Println("UPSTREAM_TOKEN not set; submissions will be archived locally")
	}

	svc := service.New(repo, forwarder, searchCache, service.Options{
		RequireCategory:     cfg.RequireCategory,
		ConfirmBeforeSubmit: cfg.ConfirmBeforeSubmit,
		ToastTTL:            time.Duration(cfg.ToastTTLSeconds) * time.Second,
		SearchTTL:           time.Duration(cfg.SearchTTLSeconds) * time.Second,
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("capture backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}
