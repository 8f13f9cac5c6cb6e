package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"deckgen/config"
	"deckgen/database"
	"deckgen/imaging"
	"deckgen/logger"
	"deckgen/metrics"
	"deckgen/webimport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	appLogger := logger.NewLogger()
	if err := appLogger.Init(cfg.LogDir); err != nil {
		fmt.Printf("Warning: file logging unavailable: %v\n", err)
	}
	defer appLogger.Close()
	log := appLogger.Log

	log("[STARTUP] deckgen starting")

	db, err := database.InitDB(cfg.FilesDB)
	if err != nil {
		return fmt.Errorf("failed to open file registry: %w", err)
	}
	defer db.Close()
	fileService := database.NewFileService(db)
	log(fmt.Sprintf("[STARTUP] file registry ready at %s", cfg.FilesDB))

	m := metrics.Default()

	fetchTimeout := time.Duration(cfg.FetchTimeoutSecs) * time.Second
	fetcher := imaging.NewFetcher(imaging.FetcherOptions{
		Timeout:           fetchTimeout,
		MaxBytes:          cfg.FetchMaxBytes,
		AllowPrivateHosts: cfg.AllowPrivateHosts,
		Logger:            log,
	})
	normalizer := imaging.NewNormalizer(imaging.NewSVGRasterizer())
	resolver := imaging.NewResolver(fetcher, normalizer, log)

	importer := webimport.NewImporter(webimport.Options{
		Timeout:           fetchTimeout,
		MaxBytes:          cfg.FetchMaxBytes,
		AllowPrivateHosts: cfg.AllowPrivateHosts,
		Logger:            log,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := NewServiceRegistry(ctx, log)

	deckService := NewDeckFacadeService(cfg, fileService, fetcher, resolver, m, log)
	importService := NewImportFacadeService(importer, log)
	retentionService := NewRetentionService(cfg, fileService, m, log)

	if err := registry.RegisterCritical(deckService); err != nil {
		return err
	}
	if err := registry.Register(importService); err != nil {
		return err
	}
	if err := registry.Register(retentionService); err != nil {
		return err
	}
	if err := registry.InitializeAll(); err != nil {
		return err
	}
	defer registry.ShutdownAll()
	log("[STARTUP] all services initialized")

	server := NewServer(cfg, deckService, importService, fileService, m, log)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return err
	case sig := <-quit:
		log(fmt.Sprintf("[SHUTDOWN] received %s, draining requests", sig))
	}

	if err := server.Stop(); err != nil {
		log(fmt.Sprintf("[SHUTDOWN] %v", err))
		return err
	}
	log("[SHUTDOWN] deckgen stopped")
	return nil
}
